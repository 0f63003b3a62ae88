package db

import (
	"context"
	"time"
)

const insertServerInstance = `
INSERT INTO server_instances (id, provider, provider_instance_id, match_id, region, ip, port, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) InsertServerInstance(ctx context.Context, arg ServerInstance) error {
	_, err := q.db.ExecContext(ctx, insertServerInstance,
		arg.ID, arg.Provider, arg.ProviderInstanceID, arg.MatchID, arg.Region, arg.Ip, arg.Port,
		arg.Status, arg.CreatedAt, arg.UpdatedAt)
	return err
}

const getServerInstance = `
SELECT id, provider, provider_instance_id, match_id, region, ip, port, status, created_at, updated_at
FROM server_instances WHERE id = ?
`

func (q *Queries) GetServerInstance(ctx context.Context, id string) (ServerInstance, error) {
	var i ServerInstance
	err := q.db.QueryRowContext(ctx, getServerInstance, id).Scan(
		&i.ID, &i.Provider, &i.ProviderInstanceID, &i.MatchID, &i.Region, &i.Ip, &i.Port,
		&i.Status, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const updateServerStatus = `
UPDATE server_instances SET status = ?, updated_at = ? WHERE id = ? AND status != ?
`

// UpdateServerStatus is a no-op when the instance already has status.
func (q *Queries) UpdateServerStatus(ctx context.Context, id, status string, now time.Time) (int64, error) {
	return affected(q.db.ExecContext(ctx, updateServerStatus, status, now, id, status))
}
