package db

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const getWalletByUser = `
SELECT id, user_id, balance, updated_at FROM wallets WHERE user_id = ?
`

func (q *Queries) GetWalletByUser(ctx context.Context, userID string) (Wallet, error) {
	var i Wallet
	err := q.db.QueryRowContext(ctx, getWalletByUser, userID).Scan(&i.ID, &i.UserID, &i.Balance, &i.UpdatedAt)
	return i, err
}

const createWallet = `
INSERT INTO wallets (id, user_id, balance, updated_at) VALUES (?, ?, '0', ?)
`

func (q *Queries) CreateWallet(ctx context.Context, id, userID string, now time.Time) error {
	_, err := q.db.ExecContext(ctx, createWallet, id, userID, now)
	return err
}

const updateWalletBalance = `
UPDATE wallets SET balance = ?, updated_at = ? WHERE id = ?
`

func (q *Queries) UpdateWalletBalance(ctx context.Context, id string, balance decimal.Decimal, now time.Time) error {
	_, err := q.db.ExecContext(ctx, updateWalletBalance, balance, now, id)
	return err
}

const insertLedgerEntry = `
INSERT INTO ledger_entries (id, wallet_id, amount, kind, reason, ref, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) InsertLedgerEntry(ctx context.Context, arg LedgerEntry) error {
	_, err := q.db.ExecContext(ctx, insertLedgerEntry,
		arg.ID, arg.WalletID, arg.Amount, arg.Kind, arg.Reason, arg.Ref, arg.CreatedAt)
	return err
}

const listLedgerEntries = `
SELECT id, wallet_id, amount, kind, reason, ref, created_at
FROM ledger_entries WHERE wallet_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?
`

// ListLedgerEntries returns newest first. A negative limit returns every entry.
func (q *Queries) ListLedgerEntries(ctx context.Context, walletID string, limit int64) ([]LedgerEntry, error) {
	rows, err := q.db.QueryContext(ctx, listLedgerEntries, walletID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []LedgerEntry
	for rows.Next() {
		var i LedgerEntry
		if err := rows.Scan(&i.ID, &i.WalletID, &i.Amount, &i.Kind, &i.Reason, &i.Ref, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
