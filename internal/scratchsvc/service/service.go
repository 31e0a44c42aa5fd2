package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/scratch-services/internal/scratchsvc/game"
	"github.com/avvvet/scratch-services/internal/scratchsvc/models"
)

// Store is what the service needs from persistence. Reads run standalone; every
// multi-step mutation goes through Tx.
type Store interface {
	GetCardType(ctx context.Context, id int64) (*models.CardType, error)
	GetCard(ctx context.Context, id string) (*models.CardInstance, error)
	ListHolderCards(ctx context.Context, userID int64, status *models.CardStatus) ([]*models.CardInstance, error)
	GetWallet(ctx context.Context, userID int64) (models.Wallet, error)
	ExpireCards(ctx context.Context, now time.Time) ([]models.CardRef, error)
	ResetDailyCounters(ctx context.Context, day time.Time) (int64, error)

	// Tx runs fn in one transaction, committing if fn returns nil.
	Tx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of writes that must commit or roll back together.
type Tx interface {
	LockHolder(ctx context.Context, userID int64) error
	CountPurchases(ctx context.Context, userID, cardTypeID int64, since *time.Time) (int, error)
	ActivePrizeTiers(ctx context.Context, cardTypeID int64) ([]models.PrizeTier, error)
	ReserveTierWin(ctx context.Context, tierID int64, day time.Time) error
	Debit(ctx context.Context, userID int64, currency models.Currency, amount decimal.Decimal, ttype, tref string) error
	Credit(ctx context.Context, userID int64, currency models.Currency, amount decimal.Decimal, ttype, tref string) error
	CreateCard(ctx context.Context, c *models.CardInstance) error
	GetCardForUpdate(ctx context.Context, id string) (*models.CardInstance, error)
	UpdateCard(ctx context.Context, c *models.CardInstance) error
	CreateSettlement(ctx context.Context, s *models.Settlement) error
}

// EligibilityChecker decides whether a holder may buy cards at all.
type EligibilityChecker interface {
	CheckEligibility(ctx context.Context, userID int64) error
}

// EventPublisher receives card lifecycle events after they commit.
type EventPublisher interface {
	PublishEvent(eventType string, userID int64, v any) error
}

// CommitmentRecorder archives the purchase commitment for later audit.
type CommitmentRecorder interface {
	RecordCommitment(ctx context.Context, c *models.CardInstance) error
	ArchivedHash(ctx context.Context, cardID string) (string, error)
}

type Metrics interface {
	CardPurchased(cardTypeID int64, currency string, winner bool)
	AreasScratched(n int, completed bool)
	CardsExpired(n int)
	PrizeClaimed(coins, gems float64)
	SupplyExhausted(tierID int64)
}

const DefaultCardTTL = 30 * 24 * time.Hour

type Options struct {
	CardTTL           time.Duration
	Policy            game.Policy
	MaxFillerAttempts int

	Events  EventPublisher
	Archive CommitmentRecorder
	Metrics Metrics

	// overridable in tests
	Now     func() time.Time
	NewSeed func() (string, error)
}

type Service struct {
	store       Store
	eligibility EligibilityChecker
	opts        Options
}

func NewService(store Store, eligibility EligibilityChecker, opts Options) *Service {
	if opts.CardTTL <= 0 {
		opts.CardTTL = DefaultCardTTL
	}
	if !opts.Policy.Valid() {
		opts.Policy = game.PolicyDowngrade
	}
	if opts.MaxFillerAttempts <= 0 {
		opts.MaxFillerAttempts = game.DefaultMaxFillerAttempts
	}
	if opts.Metrics == nil {
		opts.Metrics = noopMetrics{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewSeed == nil {
		opts.NewSeed = game.NewSeed
	}
	return &Service{store: store, eligibility: eligibility, opts: opts}
}

func (s *Service) now() time.Time {
	return s.opts.Now().UTC()
}

func (s *Service) publish(eventType string, userID int64, v any) {
	if s.opts.Events == nil {
		return
	}
	if err := s.opts.Events.PublishEvent(eventType, userID, v); err != nil {
		log.WithField("event", eventType).Errorf("publish event: %s", err)
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type noopMetrics struct{}

func (noopMetrics) CardPurchased(int64, string, bool) {}
func (noopMetrics) AreasScratched(int, bool)          {}
func (noopMetrics) CardsExpired(int)                  {}
func (noopMetrics) PrizeClaimed(float64, float64)     {}
func (noopMetrics) SupplyExhausted(int64)             {}
