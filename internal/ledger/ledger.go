// Package ledger moves credits on a user's balance. Every movement happens
// inside a store transaction that holds the user's row lock.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"bluecut/internal/domain"
)

// Debit locks the user's row, checks the live balance and subtracts amount.
// The balance never goes negative; a short balance yields
// domain.ErrNotEnoughCredits and leaves it untouched.
func Debit(ctx context.Context, users domain.UserRepository, userID string, amount int) (int, error) {
	if amount < 0 {
		return 0, fmt.Errorf("ledger: negative debit %d", amount)
	}
	user, err := users.GetForUpdate(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("ledger: lock user: %w", err)
	}
	if amount == 0 {
		return user.Credits, nil
	}
	if user.Credits < amount {
		return user.Credits, domain.ErrNotEnoughCredits
	}
	balance, err := users.AddCredits(ctx, userID, -amount)
	if err != nil {
		if errors.Is(err, domain.ErrNotEnoughCredits) {
			return user.Credits, err
		}
		return 0, fmt.Errorf("ledger: debit: %w", err)
	}
	return balance, nil
}

// Credit adds amount back to the user's balance.
func Credit(ctx context.Context, users domain.UserRepository, userID string, amount int) (int, error) {
	if amount < 0 {
		return 0, fmt.Errorf("ledger: negative credit %d", amount)
	}
	if _, err := users.GetForUpdate(ctx, userID); err != nil {
		return 0, fmt.Errorf("ledger: lock user: %w", err)
	}
	balance, err := users.AddCredits(ctx, userID, amount)
	if err != nil {
		return 0, fmt.Errorf("ledger: credit: %w", err)
	}
	return balance, nil
}

// Grant adds purchased or manually granted credits in its own transaction.
// Unlike a refund it also raises the user's lifetime total.
func Grant(ctx context.Context, store domain.Store, userID string, amount int) (int, error) {
	if amount < 0 {
		return 0, fmt.Errorf("ledger: negative grant %d", amount)
	}
	var balance int
	err := store.WithinTx(ctx, func(tx domain.Repositories) error {
		if _, err := tx.Users().GetForUpdate(ctx, userID); err != nil {
			return fmt.Errorf("ledger: lock user: %w", err)
		}
		var err error
		balance, err = tx.Users().GrantCredits(ctx, userID, amount)
		if err != nil {
			return fmt.Errorf("ledger: grant: %w", err)
		}
		return nil
	})
	return balance, err
}
