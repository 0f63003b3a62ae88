package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"matchcore/internal/db"
	"matchcore/internal/events"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

func ProvideQueries(sqlDB *sql.DB) *db.Queries {
	return db.New(sqlDB)
}

// inTx runs fn in one write transaction and commits when fn returns nil.
func inTx(ctx context.Context, sqlDB *sql.DB, queries *db.Queries, fn func(tx *sql.Tx, qtx *db.Queries) error) error {
	tx, err := sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx, queries.WithTx(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// enqueue writes evt to the outbox inside the caller's transaction. The relay
// publishes it only after that transaction commits.
func enqueue(ctx context.Context, qtx *db.Queries, evt events.Event, now time.Time) error {
	payload, err := events.Encode(evt, now)
	if err != nil {
		return err
	}
	if err := qtx.InsertOutboxEvent(ctx, string(evt.Type()), payload, now); err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", evt.Type(), err)
	}
	return nil
}

func newID() (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("failed to generate nanoid: %w", err)
	}
	return id, nil
}

func now() time.Time {
	return time.Now().UTC()
}

func nullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
