package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/avvvet/scratch-services/internal/scratchsvc/models"
	"github.com/avvvet/scratch-services/internal/scratchsvc/service"
)

// Repository is the Postgres backed service.Store.
type Repository struct {
	pool *pgxpool.Pool

	Users       *UserStore
	Balances    *BalanceStore
	CardTypes   *CardTypeStore
	PrizeTiers  *PrizeTierStore
	Cards       *CardStore
	Settlements *SettlementStore
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool:        pool,
		Users:       NewUserStore(pool),
		Balances:    NewBalanceStore(pool),
		CardTypes:   NewCardTypeStore(pool),
		PrizeTiers:  NewPrizeTierStore(pool),
		Cards:       NewCardStore(pool),
		Settlements: NewSettlementStore(pool),
	}
}

var _ service.Store = (*Repository)(nil)

func (r *Repository) GetCardType(ctx context.Context, id int64) (*models.CardType, error) {
	return r.CardTypes.GetCardType(ctx, id)
}

func (r *Repository) GetCard(ctx context.Context, id string) (*models.CardInstance, error) {
	return r.Cards.GetCard(ctx, id)
}

func (r *Repository) ListHolderCards(ctx context.Context, userID int64, status *models.CardStatus) ([]*models.CardInstance, error) {
	return r.Cards.ListByUser(ctx, userID, status)
}

func (r *Repository) GetWallet(ctx context.Context, userID int64) (models.Wallet, error) {
	return r.Balances.GetWallet(ctx, userID)
}

func (r *Repository) ExpireCards(ctx context.Context, now time.Time) ([]models.CardRef, error) {
	return r.Cards.ExpireOverdue(ctx, now)
}

func (r *Repository) ResetDailyCounters(ctx context.Context, day time.Time) (int64, error) {
	return r.PrizeTiers.ResetDaily(ctx, day)
}

// Tx runs fn inside one database transaction.
func (r *Repository) Tx(ctx context.Context, fn func(tx service.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(newRepoTx(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// repoTx binds every store to the same pgx.Tx.
type repoTx struct {
	users       *UserStore
	balances    *BalanceStore
	tiers       *PrizeTierStore
	cards       *CardStore
	settlements *SettlementStore
}

func newRepoTx(tx pgx.Tx) *repoTx {
	return &repoTx{
		users:       NewUserStore(tx),
		balances:    NewBalanceStore(tx),
		tiers:       NewPrizeTierStore(tx),
		cards:       NewCardStore(tx),
		settlements: NewSettlementStore(tx),
	}
}

func (t *repoTx) LockHolder(ctx context.Context, userID int64) error {
	return t.users.LockForUpdate(ctx, userID)
}

func (t *repoTx) CountPurchases(ctx context.Context, userID, cardTypeID int64, since *time.Time) (int, error) {
	return t.cards.CountPurchases(ctx, userID, cardTypeID, since)
}

func (t *repoTx) ActivePrizeTiers(ctx context.Context, cardTypeID int64) ([]models.PrizeTier, error) {
	return t.tiers.ListActive(ctx, cardTypeID)
}

func (t *repoTx) ReserveTierWin(ctx context.Context, tierID int64, day time.Time) error {
	return t.tiers.ReserveWin(ctx, tierID, day)
}

func (t *repoTx) Debit(ctx context.Context, userID int64, currency models.Currency, amount decimal.Decimal, ttype, tref string) error {
	return t.balances.Debit(ctx, userID, currency, amount, ttype, tref)
}

func (t *repoTx) Credit(ctx context.Context, userID int64, currency models.Currency, amount decimal.Decimal, ttype, tref string) error {
	return t.balances.Credit(ctx, userID, currency, amount, ttype, tref)
}

func (t *repoTx) CreateCard(ctx context.Context, c *models.CardInstance) error {
	return t.cards.CreateCard(ctx, c)
}

func (t *repoTx) GetCardForUpdate(ctx context.Context, id string) (*models.CardInstance, error) {
	return t.cards.GetCardForUpdate(ctx, id)
}

func (t *repoTx) UpdateCard(ctx context.Context, c *models.CardInstance) error {
	return t.cards.UpdateCard(ctx, c)
}

func (t *repoTx) CreateSettlement(ctx context.Context, s *models.Settlement) error {
	return t.settlements.CreateSettlement(ctx, s)
}
