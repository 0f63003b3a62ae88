package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"matchcore/internal/db"
	"matchcore/internal/domain"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type WalletRepository struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
}

func NewWalletRepository(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *WalletRepository {
	return &WalletRepository{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
	}
}

// Get returns the wallet and its newest entries. limit < 0 returns the full ledger.
func (r *WalletRepository) Get(ctx context.Context, userID string, limit int) (*domain.Wallet, []domain.LedgerEntry, error) {
	w, err := r.queries.GetWalletByUser(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, domain.ErrPlayerNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get wallet for %s: %w", userID, err)
	}

	rows, err := r.queries.ListLedgerEntries(ctx, w.ID, int64(limit))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list ledger for %s: %w", userID, err)
	}

	entries := make([]domain.LedgerEntry, len(rows))
	for i, e := range rows {
		entries[i] = domain.LedgerEntry{
			ID:        e.ID,
			WalletID:  e.WalletID,
			Amount:    e.Amount,
			Kind:      domain.LedgerKind(e.Kind),
			Reason:    e.Reason,
			Ref:       e.Ref,
			CreatedAt: e.CreatedAt,
		}
	}
	return &domain.Wallet{ID: w.ID, UserID: w.UserID, Balance: w.Balance, UpdatedAt: w.UpdatedAt}, entries, nil
}

func getOrCreateWallet(ctx context.Context, qtx *db.Queries, userID string, ts time.Time) (db.Wallet, error) {
	w, err := qtx.GetWalletByUser(ctx, userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return w, fmt.Errorf("failed to get wallet for %s: %w", userID, err)
	}

	id, err := newID()
	if err != nil {
		return w, err
	}
	if err := qtx.CreateWallet(ctx, id, userID, ts); err != nil {
		return w, fmt.Errorf("failed to create wallet for %s: %w", userID, err)
	}
	return db.Wallet{ID: id, UserID: userID, Balance: decimal.Zero, UpdatedAt: ts}, nil
}

// credit appends a ledger entry and moves the cached balance by the same
// amount, keeping balance equal to the ledger sum.
func credit(ctx context.Context, qtx *db.Queries, userID string, amount decimal.Decimal, kind domain.LedgerKind, reason, ref string, ts time.Time) (decimal.Decimal, error) {
	w, err := getOrCreateWallet(ctx, qtx, userID, ts)
	if err != nil {
		return decimal.Zero, err
	}

	id, err := newID()
	if err != nil {
		return decimal.Zero, err
	}
	err = qtx.InsertLedgerEntry(ctx, db.LedgerEntry{
		ID:        id,
		WalletID:  w.ID,
		Amount:    amount,
		Kind:      string(kind),
		Reason:    reason,
		Ref:       ref,
		CreatedAt: ts,
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to insert ledger entry for %s: %w", userID, err)
	}

	balance := w.Balance.Add(amount)
	if err := qtx.UpdateWalletBalance(ctx, w.ID, balance, ts); err != nil {
		return decimal.Zero, fmt.Errorf("failed to update balance for %s: %w", userID, err)
	}
	return balance, nil
}
