package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avvvet/scratch-services/internal/scratchsvc/errs"
	"github.com/avvvet/scratch-services/internal/scratchsvc/models"
)

// memoryStore is an in-process Store. One mutex stands in for row locks and a
// snapshot taken at Tx start stands in for rollback.
type memoryStore struct {
	mu sync.Mutex

	cardTypes   map[int64]*models.CardType
	tiers       map[int64]*models.PrizeTier
	cards       map[string]*models.CardInstance
	settlements map[string]*models.Settlement
	ledger      map[int64]map[models.Currency]decimal.Decimal
	trefs       map[string]bool
	holders     map[int64]bool

	failCredit error
	credits    int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		cardTypes:   make(map[int64]*models.CardType),
		tiers:       make(map[int64]*models.PrizeTier),
		cards:       make(map[string]*models.CardInstance),
		settlements: make(map[string]*models.Settlement),
		ledger:      make(map[int64]map[models.Currency]decimal.Decimal),
		trefs:       make(map[string]bool),
		holders:     make(map[int64]bool),
	}
}

func (m *memoryStore) addHolder(id int64, coins, gems int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holders[id] = true
	m.ledger[id] = map[models.Currency]decimal.Decimal{
		models.CurrencyCoins: decimal.NewFromInt(coins),
		models.CurrencyGems:  decimal.NewFromInt(gems),
	}
}

func (m *memoryStore) addCardType(ct *models.CardType, tiers ...models.PrizeTier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cardTypes[ct.ID] = ct
	for i := range tiers {
		t := tiers[i]
		t.CardTypeID = ct.ID
		m.tiers[t.ID] = &t
	}
}

func (m *memoryStore) tier(id int64) models.PrizeTier {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.tiers[id]
}

func (m *memoryStore) balance(id int64, c models.Currency) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger[id][c]
}

// rawCard returns the stored, unmasked card.
func (m *memoryStore) rawCard(id string) *models.CardInstance {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneCard(m.cards[id])
}

func (m *memoryStore) GetCardType(ctx context.Context, id int64) (*models.CardType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ct, ok := m.cardTypes[id]
	if !ok {
		return nil, errs.E(errs.KindNotFound, "card type %d not found", id)
	}
	cp := *ct
	return &cp, nil
}

func (m *memoryStore) GetCard(ctx context.Context, id string) (*models.CardInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cards[id]
	if !ok {
		return nil, errs.E(errs.KindNotFound, "card %s not found", id)
	}
	return cloneCard(c), nil
}

func (m *memoryStore) ListHolderCards(ctx context.Context, userID int64, status *models.CardStatus) ([]*models.CardInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.CardInstance
	for _, c := range m.cards {
		if c.UserID != userID || (status != nil && c.Status != *status) {
			continue
		}
		out = append(out, cloneCard(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PurchasedAt.After(out[j].PurchasedAt) })
	return out, nil
}

func (m *memoryStore) GetWallet(ctx context.Context, userID int64) (models.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return models.Wallet{
		Coins: m.ledger[userID][models.CurrencyCoins],
		Gems:  m.ledger[userID][models.CurrencyGems],
	}, nil
}

func (m *memoryStore) ExpireCards(ctx context.Context, now time.Time) ([]models.CardRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var refs []models.CardRef
	for id, c := range m.cards {
		if c.IsExpired(now) {
			c.Expire()
			c.Version++
			refs = append(refs, models.CardRef{ID: id, UserID: c.UserID})
		}
	}
	return refs, nil
}

func (m *memoryStore) ResetDailyCounters(ctx context.Context, day time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, t := range m.tiers {
		if t.CounterDay.Before(day) {
			t.TodayWins = 0
			t.CounterDay = day
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) Tx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(&memoryTx{m: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	tiers       map[int64]models.PrizeTier
	cards       map[string]*models.CardInstance
	settlements map[string]models.Settlement
	ledger      map[int64]map[models.Currency]decimal.Decimal
	trefs       map[string]bool
}

func (m *memoryStore) snapshot() memorySnapshot {
	s := memorySnapshot{
		tiers:       make(map[int64]models.PrizeTier),
		cards:       make(map[string]*models.CardInstance),
		settlements: make(map[string]models.Settlement),
		ledger:      make(map[int64]map[models.Currency]decimal.Decimal),
		trefs:       make(map[string]bool),
	}
	for k, v := range m.tiers {
		s.tiers[k] = *v
	}
	for k, v := range m.cards {
		s.cards[k] = cloneCard(v)
	}
	for k, v := range m.settlements {
		s.settlements[k] = *v
	}
	for k, v := range m.ledger {
		w := make(map[models.Currency]decimal.Decimal)
		for c, a := range v {
			w[c] = a
		}
		s.ledger[k] = w
	}
	for k := range m.trefs {
		s.trefs[k] = true
	}
	return s
}

func (m *memoryStore) restore(s memorySnapshot) {
	m.tiers = make(map[int64]*models.PrizeTier)
	for k, v := range s.tiers {
		t := v
		m.tiers[k] = &t
	}
	m.cards = s.cards
	m.settlements = make(map[string]*models.Settlement)
	for k, v := range s.settlements {
		st := v
		m.settlements[k] = &st
	}
	m.ledger = s.ledger
	m.trefs = s.trefs
}

// memoryTx runs with the store mutex already held.
type memoryTx struct {
	m *memoryStore
}

func (t *memoryTx) LockHolder(ctx context.Context, userID int64) error {
	if !t.m.holders[userID] {
		return errs.E(errs.KindForbidden, "holder %d is not registered", userID)
	}
	return nil
}

func (t *memoryTx) CountPurchases(ctx context.Context, userID, cardTypeID int64, since *time.Time) (int, error) {
	n := 0
	for _, c := range t.m.cards {
		if c.UserID == userID && c.CardTypeID == cardTypeID && (since == nil || !c.PurchasedAt.Before(*since)) {
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) ActivePrizeTiers(ctx context.Context, cardTypeID int64) ([]models.PrizeTier, error) {
	var out []models.PrizeTier
	for _, tier := range t.m.tiers {
		if tier.CardTypeID == cardTypeID && tier.IsActive {
			out = append(out, *tier)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memoryTx) ReserveTierWin(ctx context.Context, tierID int64, day time.Time) error {
	tier, ok := t.m.tiers[tierID]
	if !ok || !tier.IsActive || !tier.HasSupply(day) {
		return errs.E(errs.KindSupplyExhausted, "prize tier %d has no supply left", tierID)
	}
	if !sameUTCDay(tier.CounterDay, day) {
		tier.TodayWins = 0
		tier.CounterDay = startOfDay(day)
	}
	tier.TodayWins++
	tier.TotalWins++
	return nil
}

func (t *memoryTx) Debit(ctx context.Context, userID int64, currency models.Currency, amount decimal.Decimal, ttype, tref string) error {
	if t.m.trefs[tref] {
		return errs.E(errs.KindConflict, "ledger reference %s already used", tref)
	}
	bal := t.m.ledger[userID][currency]
	if bal.LessThan(amount) {
		return errs.E(errs.KindInsufficientFunds, "balance %s is below %s", bal, amount)
	}
	t.m.ledger[userID][currency] = bal.Sub(amount)
	t.m.trefs[tref] = true
	return nil
}

func (t *memoryTx) Credit(ctx context.Context, userID int64, currency models.Currency, amount decimal.Decimal, ttype, tref string) error {
	if t.m.failCredit != nil {
		return t.m.failCredit
	}
	if t.m.trefs[tref] {
		return errs.E(errs.KindConflict, "ledger reference %s already used", tref)
	}
	if t.m.ledger[userID] == nil {
		t.m.ledger[userID] = make(map[models.Currency]decimal.Decimal)
	}
	t.m.ledger[userID][currency] = t.m.ledger[userID][currency].Add(amount)
	t.m.trefs[tref] = true
	t.m.credits++
	return nil
}

func (t *memoryTx) CreateCard(ctx context.Context, c *models.CardInstance) error {
	if _, ok := t.m.cards[c.ID]; ok {
		return errs.E(errs.KindConflict, "card %s already exists", c.ID)
	}
	t.m.cards[c.ID] = cloneCard(c)
	return nil
}

func (t *memoryTx) GetCardForUpdate(ctx context.Context, id string) (*models.CardInstance, error) {
	c, ok := t.m.cards[id]
	if !ok {
		return nil, errs.E(errs.KindNotFound, "card %s not found", id)
	}
	return cloneCard(c), nil
}

func (t *memoryTx) UpdateCard(ctx context.Context, c *models.CardInstance) error {
	cur, ok := t.m.cards[c.ID]
	if !ok || cur.Version != c.Version {
		return errs.E(errs.KindConflict, "card %s was modified concurrently", c.ID)
	}
	c.Version++
	t.m.cards[c.ID] = cloneCard(c)
	return nil
}

func (t *memoryTx) CreateSettlement(ctx context.Context, s *models.Settlement) error {
	for _, st := range t.m.settlements {
		if st.CardID == s.CardID {
			return errs.E(errs.KindAlreadyClaimed, "card %s already settled", s.CardID)
		}
	}
	cp := *s
	t.m.settlements[s.Ref] = &cp
	return nil
}

// cloneCard deep copies through JSON, the same shape the Postgres store persists.
func cloneCard(c *models.CardInstance) *models.CardInstance {
	if c == nil {
		return nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		panic(err)
	}
	var out models.CardInstance
	if err := json.Unmarshal(b, &out); err != nil {
		panic(err)
	}
	return &out
}

func sameUTCDay(a, b time.Time) bool {
	return startOfDay(a).Equal(startOfDay(b))
}

type allowAll struct{}

func (allowAll) CheckEligibility(ctx context.Context, userID int64) error { return nil }

type denyAll struct{}

func (denyAll) CheckEligibility(ctx context.Context, userID int64) error {
	return errs.E(errs.KindForbidden, "holder %d has not passed age verification", userID)
}

type memoryArchive struct {
	mu     sync.Mutex
	hashes map[string]string
}

func (a *memoryArchive) RecordCommitment(ctx context.Context, c *models.CardInstance) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hashes[c.ID] = c.VerificationHash
	return nil
}

func (a *memoryArchive) ArchivedHash(ctx context.Context, cardID string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	h, ok := a.hashes[cardID]
	if !ok {
		return "", errs.E(errs.KindNotFound, "no archived commitment for card %s", cardID)
	}
	return h, nil
}

type recordedEvent struct {
	Type string
	Data any
}

type memoryEvents struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (e *memoryEvents) PublishEvent(eventType string, userID int64, v any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, recordedEvent{Type: eventType, Data: v})
	return nil
}

func (e *memoryEvents) types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.Type)
	}
	return out
}
