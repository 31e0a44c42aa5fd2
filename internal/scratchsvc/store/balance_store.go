package store

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/avvvet/scratch-services/internal/scratchsvc/errs"
	"github.com/avvvet/scratch-services/internal/scratchsvc/models"
)

// BalanceStore is the holder ledger. Every movement is an immutable balances row with
// a unique tref, so a replayed movement fails instead of applying twice.
type BalanceStore struct {
	db DBTX
}

func NewBalanceStore(db DBTX) *BalanceStore {
	return &BalanceStore{db: db}
}

func (c *BalanceStore) GetBalanceByUserID(ctx context.Context, userId int64, currency models.Currency) (decimal.Decimal, error) {
	var totalDr, totalCr decimal.Decimal

	err := c.db.QueryRow(ctx, `
        SELECT
            COALESCE(SUM(dr), 0),
            COALESCE(SUM(cr), 0)
        FROM balances
        WHERE user_id = $1 AND currency = $2 AND status = 'verified'
    `, userId, string(currency)).Scan(&totalDr, &totalCr)

	if err != nil {
		return decimal.Zero, fmt.Errorf("balance for user %d: %w", userId, err)
	}

	balance := totalDr.Sub(totalCr)
	return balance, nil
}

func (c *BalanceStore) GetWallet(ctx context.Context, userId int64) (models.Wallet, error) {
	coins, err := c.GetBalanceByUserID(ctx, userId, models.CurrencyCoins)
	if err != nil {
		return models.Wallet{}, err
	}
	gems, err := c.GetBalanceByUserID(ctx, userId, models.CurrencyGems)
	if err != nil {
		return models.Wallet{}, err
	}
	return models.Wallet{Coins: coins, Gems: gems}, nil
}

// Debit takes amount from the holder. It must run inside a transaction: the holder row
// is locked before the balance is summed so two debits cannot both pass the check.
func (c *BalanceStore) Debit(ctx context.Context, userId int64, currency models.Currency, amount decimal.Decimal, ttype, tref string) error {
	if !amount.IsPositive() {
		return errs.E(errs.KindInvalidArgument, "debit amount must be positive, got %s", amount)
	}

	if err := NewUserStore(c.db).LockForUpdate(ctx, userId); err != nil {
		return err
	}

	balance, err := c.GetBalanceByUserID(ctx, userId, currency)
	if err != nil {
		return err
	}
	if balance.LessThan(amount) {
		return errs.E(errs.KindInsufficientFunds, "balance %s %s is below %s", balance.StringFixed(2), currency, amount.StringFixed(2))
	}

	return c.insert(ctx, userId, currency, ttype, decimal.Zero, amount, tref)
}

// Credit adds amount to the holder.
func (c *BalanceStore) Credit(ctx context.Context, userId int64, currency models.Currency, amount decimal.Decimal, ttype, tref string) error {
	if !amount.IsPositive() {
		return errs.E(errs.KindInvalidArgument, "credit amount must be positive, got %s", amount)
	}
	return c.insert(ctx, userId, currency, ttype, amount, decimal.Zero, tref)
}

func (c *BalanceStore) insert(ctx context.Context, userId int64, currency models.Currency, ttype string, dr, cr decimal.Decimal, tref string) error {
	_, err := c.db.Exec(ctx, `
		INSERT INTO balances (user_id, currency, ttype, dr, cr, tref, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'verified', NOW())
	`, userId, string(currency), ttype, dr, cr, tref)
	if err != nil {
		if isUniqueViolation(err) {
			return errs.E(errs.KindConflict, "ledger reference %s already used", tref)
		}
		return fmt.Errorf("insert %s ledger row for user %d: %w", ttype, userId, err)
	}
	return nil
}
