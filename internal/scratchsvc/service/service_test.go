package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/scratch-services/internal/scratchsvc/errs"
	"github.com/avvvet/scratch-services/internal/scratchsvc/game"
	"github.com/avvvet/scratch-services/internal/scratchsvc/models"
)

const (
	holder = int64(1001)
	other  = int64(1002)
)

var t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func int64p(v int64) *int64 { return &v }

func bellCard(id int64) *models.CardType {
	return &models.CardType{
		ID:                id,
		Name:              "Lucky Bells",
		Theme:             "classic",
		Symbols:           []string{"bell", "cherry", "lemon", "seven", "star", "clover"},
		GridSize:          9,
		MinSymbolsToMatch: 3,
		CostCoins:         decimal.NewFromInt(10),
		IsActive:          true,
	}
}

func bellTier(id int64, p float64) models.PrizeTier {
	return models.PrizeTier{
		ID:            id,
		Name:          "three bells",
		PayoutCoins:   decimal.NewFromInt(50),
		PayoutGems:    decimal.NewFromInt(2),
		Probability:   p,
		WinningSymbol: "bell",
		SymbolCount:   3,
		IsActive:      true,
	}
}

type fixture struct {
	store *memoryStore
	svc   *Service
	clock *time.Time
	ctx   context.Context
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()

	st := newMemoryStore()
	st.addHolder(holder, 1_000_000, 100)
	st.addHolder(other, 1_000_000, 100)

	now := t0
	var seq atomic.Int64
	opts.Now = func() time.Time { return now }
	opts.NewSeed = func() (string, error) {
		return fmt.Sprintf("%064x", seq.Add(1)), nil
	}

	return &fixture{
		store: st,
		svc:   NewService(st, allowAll{}, opts),
		clock: &now,
		ctx:   context.Background(),
	}
}

func (f *fixture) buy(t *testing.T, cardTypeID int64) *models.CardInstance {
	t.Helper()
	c, err := f.svc.PurchaseCard(f.ctx, holder, cardTypeID, PurchaseOptions{Currency: models.CurrencyCoins})
	require.NoError(t, err)
	return c
}

func assertGridContract(t *testing.T, c *models.CardInstance, threshold int) {
	t.Helper()
	q := game.Qualifying(c.Grid, threshold)
	if c.Outcome.IsWinner {
		require.Equal(t, []string{c.Outcome.WinningSymbol}, q, "grid %v", c.Grid)
		require.Equal(t, c.Outcome.WinningCount, game.Count(c.Grid, c.Outcome.WinningSymbol), "grid %v", c.Grid)
	} else {
		require.Empty(t, q, "grid %v", c.Grid)
	}
}

func TestPurchase_ThousandCardsWinRate(t *testing.T) {
	f := newFixture(t, Options{})
	f.store.addCardType(bellCard(1), bellTier(1, 0.25))

	wins := 0
	for i := 0; i < 1000; i++ {
		c := f.buy(t, 1)
		assert.Equal(t, models.StatusUnscratched, c.Status)
		assert.Len(t, c.Grid, 9)
		assertGridContract(t, c, 3)
		if c.Outcome.IsWinner {
			wins++
			assert.Equal(t, "bell", c.Outcome.WinningSymbol)
			assert.True(t, c.Outcome.PayoutCoins.Equal(decimal.NewFromInt(50)))
		}
	}

	assert.InDelta(t, 0.25, float64(wins)/1000, 0.05)
	assert.Equal(t, int64(wins), f.store.tier(1).TotalWins)
	assert.True(t, f.store.balance(holder, models.CurrencyCoins).Equal(decimal.NewFromInt(1_000_000-10_000)))
}

func TestPurchase_CommitmentAndExpiry(t *testing.T) {
	f := newFixture(t, Options{CardTTL: 48 * time.Hour})
	f.store.addCardType(bellCard(1), bellTier(1, 0.5))

	c := f.buy(t, 1)
	assert.Equal(t, t0.Add(48*time.Hour), c.ExpiresAt)
	assert.Len(t, c.Seed, game.SeedSize*2)

	hash, err := game.CommitmentHash(c.ID, c.Outcome, c.Seed)
	require.NoError(t, err)
	assert.Equal(t, hash, c.VerificationHash)
	assert.True(t, f.store.trefs["BUY-"+c.ID], "cost debited under the card reference")
}

func TestPurchase_Preconditions(t *testing.T) {
	f := newFixture(t, Options{})

	inactive := bellCard(2)
	inactive.IsActive = false
	future := bellCard(3)
	from := t0.Add(time.Hour)
	future.AvailableFrom = &from
	ended := bellCard(4)
	until := t0
	ended.AvailableUntil = &until
	limited := bellCard(5)
	limited.DailyPurchaseLimit = 2
	lifetime := bellCard(6)
	lifetime.LifetimePurchaseLimit = 3
	pricey := bellCard(7)
	pricey.CostCoins = decimal.NewFromInt(2_000_000)

	for _, ct := range []*models.CardType{bellCard(1), inactive, future, ended, limited, lifetime, pricey} {
		f.store.addCardType(ct)
	}

	buy := func(id int64, c models.Currency) error {
		_, err := f.svc.PurchaseCard(f.ctx, holder, id, PurchaseOptions{Currency: c})
		return err
	}

	assert.True(t, errs.Is(buy(99, models.CurrencyCoins), errs.KindNotAvailable))
	assert.True(t, errs.Is(buy(2, models.CurrencyCoins), errs.KindNotAvailable))
	assert.True(t, errs.Is(buy(3, models.CurrencyCoins), errs.KindNotAvailable))
	assert.True(t, errs.Is(buy(4, models.CurrencyCoins), errs.KindNotAvailable))
	assert.True(t, errs.Is(buy(1, models.CurrencyGems), errs.KindNotAvailable), "no gem price")
	assert.True(t, errs.Is(buy(1, "doubloons"), errs.KindInvalidArgument))

	before := f.store.balance(holder, models.CurrencyCoins)
	err := buy(7, models.CurrencyCoins)
	assert.True(t, errors.Is(err, errs.ErrInsufficientFunds))
	assert.True(t, before.Equal(f.store.balance(holder, models.CurrencyCoins)))

	require.NoError(t, buy(5, models.CurrencyCoins))
	require.NoError(t, buy(5, models.CurrencyCoins))
	assert.True(t, errs.Is(buy(5, models.CurrencyCoins), errs.KindLimitExceeded))
	*f.clock = t0.Add(24 * time.Hour)
	assert.NoError(t, buy(5, models.CurrencyCoins), "daily limit resets at midnight")

	for i := 0; i < 3; i++ {
		require.NoError(t, buy(6, models.CurrencyCoins))
	}
	*f.clock = t0.Add(72 * time.Hour)
	assert.True(t, errs.Is(buy(6, models.CurrencyCoins), errs.KindLimitExceeded))

	cards, err := f.svc.GetHolderCards(f.ctx, holder, nil)
	require.NoError(t, err)
	assert.Len(t, cards, 6)
}

func TestPurchase_IneligibleHolder(t *testing.T) {
	st := newMemoryStore()
	st.addHolder(holder, 100, 0)
	st.addCardType(bellCard(1), bellTier(1, 1))
	svc := NewService(st, denyAll{}, Options{})

	_, err := svc.PurchaseCard(context.Background(), holder, 1, PurchaseOptions{})
	assert.True(t, errs.Is(err, errs.KindForbidden))
	assert.True(t, st.balance(holder, models.CurrencyCoins).Equal(decimal.NewFromInt(100)))
	assert.Zero(t, st.tier(1).TotalWins)
}

func TestPurchase_MaxWinsTotalUnderConcurrency(t *testing.T) {
	f := newFixture(t, Options{})
	tier := bellTier(1, 1)
	tier.MaxWinsTotal = int64p(5)
	f.store.addCardType(bellCard(1), tier)

	var (
		wg   sync.WaitGroup
		wins atomic.Int64
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := f.svc.PurchaseCard(f.ctx, holder, 1, PurchaseOptions{})
			if assert.NoError(t, err) && c.Outcome.IsWinner {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(5), wins.Load())
	assert.Equal(t, int64(5), f.store.tier(1).TotalWins)
}

func TestPurchase_DailyCapRollsOver(t *testing.T) {
	f := newFixture(t, Options{})
	tier := bellTier(1, 1)
	tier.MaxWinsPerDay = int64p(2)
	f.store.addCardType(bellCard(1), tier)

	winners := func(n int) int {
		w := 0
		for i := 0; i < n; i++ {
			if f.buy(t, 1).Outcome.IsWinner {
				w++
			}
		}
		return w
	}

	assert.Equal(t, 2, winners(4))
	*f.clock = t0.Add(24 * time.Hour)
	assert.Equal(t, 2, winners(4))
	assert.Equal(t, int64(4), f.store.tier(1).TotalWins)
}

func TestPurchase_ExhaustionPolicy(t *testing.T) {
	tiers := func() []models.PrizeTier {
		gone := bellTier(1, 0.5)
		gone.MaxWinsTotal = int64p(0)
		open := bellTier(2, 0.5)
		open.WinningSymbol = "seven"
		open.SortOrder = 1
		return []models.PrizeTier{gone, open}
	}

	t.Run("redraw", func(t *testing.T) {
		f := newFixture(t, Options{Policy: game.PolicyRedraw})
		f.store.addCardType(bellCard(1), tiers()...)
		for i := 0; i < 100; i++ {
			c := f.buy(t, 1)
			require.True(t, c.Outcome.IsWinner)
			require.Equal(t, int64(2), *c.Outcome.PrizeTierID)
			assertGridContract(t, c, 3)
		}
		assert.Zero(t, f.store.tier(1).TotalWins)
	})

	t.Run("downgrade", func(t *testing.T) {
		f := newFixture(t, Options{})
		f.store.addCardType(bellCard(1), tiers()...)
		losses := 0
		for i := 0; i < 200; i++ {
			c := f.buy(t, 1)
			if !c.Outcome.IsWinner {
				losses++
				continue
			}
			require.Equal(t, int64(2), *c.Outcome.PrizeTierID)
		}
		assert.InDelta(t, 0.5, float64(losses)/200, 0.12)
		assert.Zero(t, f.store.tier(1).TotalWins)
	})
}

// revealOrder puts every area holding sym first, so the winning combination is visible
// before the card is complete.
func revealOrder(grid []string, sym string) []int {
	var first, rest []int
	for i, s := range grid {
		if s == sym {
			first = append(first, i)
		} else {
			rest = append(rest, i)
		}
	}
	return append(first, rest...)
}

func TestScratch_EightOfNineThenClaim(t *testing.T) {
	f := newFixture(t, Options{})
	f.store.addCardType(bellCard(1), bellTier(1, 1))

	c := f.buy(t, 1)
	require.True(t, c.Outcome.IsWinner)
	order := revealOrder(f.store.rawCard(c.ID).Grid, "bell")

	var res *ScratchResult
	var err error
	for _, a := range order[:8] {
		res, err = f.svc.ScratchArea(f.ctx, c.ID, a, holder)
		require.NoError(t, err)
		assert.False(t, res.CardComplete)
	}
	assert.Equal(t, models.StatusPartiallyScratched, res.Instance.Status)
	assert.True(t, res.WinningsRevealed)
	assert.Empty(t, res.Instance.Seed, "seed stays hidden until completion")
	assert.False(t, res.Instance.Outcome.IsWinner, "outcome stays hidden until completion")

	_, err = f.svc.ClaimPrize(f.ctx, c.ID, holder)
	assert.True(t, errors.Is(err, errs.ErrNotCompleted))

	*f.clock = t0.Add(90 * time.Second)
	res, err = f.svc.ScratchArea(f.ctx, c.ID, order[8], holder)
	require.NoError(t, err)
	assert.True(t, res.CardComplete)
	assert.Equal(t, models.StatusCompleted, res.Instance.Status)
	assert.Equal(t, int64(90_000), res.Instance.RevealDurationMs)
	assert.Len(t, res.Instance.RevealLog, 9)
	assert.Equal(t, c.Seed, res.Instance.Seed)

	coins := f.store.balance(holder, models.CurrencyCoins)
	gems := f.store.balance(holder, models.CurrencyGems)

	claim, err := f.svc.ClaimPrize(f.ctx, c.ID, holder)
	require.NoError(t, err)
	assert.True(t, claim.Success)
	assert.NotEmpty(t, claim.SettlementRef)
	assert.True(t, f.store.balance(holder, models.CurrencyCoins).Equal(coins.Add(decimal.NewFromInt(50))))
	assert.True(t, f.store.balance(holder, models.CurrencyGems).Equal(gems.Add(decimal.NewFromInt(2))))

	stored := f.store.rawCard(c.ID)
	assert.True(t, stored.PrizeClaimed)
	assert.Equal(t, claim.SettlementRef, stored.SettlementRef)

	_, err = f.svc.ClaimPrize(f.ctx, c.ID, holder)
	assert.True(t, errs.Is(err, errs.KindAlreadyClaimed))
	assert.Equal(t, 2, f.store.credits, "one coin and one gem credit")
	assert.True(t, f.store.balance(holder, models.CurrencyCoins).Equal(coins.Add(decimal.NewFromInt(50))))

	_, err = f.svc.ScratchArea(f.ctx, c.ID, 0, holder)
	assert.True(t, errs.Is(err, errs.KindInvalidState), "completed card is frozen")
}

func TestScratch_ReRevealRejected(t *testing.T) {
	f := newFixture(t, Options{})
	f.store.addCardType(bellCard(1))
	c := f.buy(t, 1)

	_, err := f.svc.ScratchArea(f.ctx, c.ID, 4, holder)
	require.NoError(t, err)
	before := f.store.rawCard(c.ID)

	_, err = f.svc.ScratchArea(f.ctx, c.ID, 4, holder)
	assert.True(t, errs.Is(err, errs.KindInvalidState))

	after := f.store.rawCard(c.ID)
	assert.Equal(t, before.Version, after.Version)
	assert.Len(t, after.RevealLog, 1)
}

func TestScratch_Errors(t *testing.T) {
	f := newFixture(t, Options{})
	f.store.addCardType(bellCard(1))
	c := f.buy(t, 1)

	_, err := f.svc.ScratchArea(f.ctx, "missing", 0, holder)
	assert.True(t, errs.Is(err, errs.KindNotFound))
	_, err = f.svc.ScratchArea(f.ctx, c.ID, 0, other)
	assert.True(t, errs.Is(err, errs.KindForbidden))
	_, err = f.svc.ScratchArea(f.ctx, c.ID, 9, holder)
	assert.True(t, errs.Is(err, errs.KindInvalidArgument))
	_, err = f.svc.ScratchArea(f.ctx, c.ID, -1, holder)
	assert.True(t, errs.Is(err, errs.KindInvalidArgument))
	assert.Equal(t, models.StatusUnscratched, f.store.rawCard(c.ID).Status)
}

func TestScratch_ExpiredCard(t *testing.T) {
	f := newFixture(t, Options{CardTTL: time.Hour})
	f.store.addCardType(bellCard(1))
	c := f.buy(t, 1)

	_, err := f.svc.ScratchArea(f.ctx, c.ID, 0, holder)
	require.NoError(t, err)

	*f.clock = t0.Add(time.Hour)
	_, err = f.svc.ScratchArea(f.ctx, c.ID, 1, holder)
	assert.True(t, errs.Is(err, errs.KindInvalidState))
	assert.Equal(t, models.StatusExpired, f.store.rawCard(c.ID).Status, "expiry is persisted")

	_, err = f.svc.ScratchAll(f.ctx, c.ID, holder)
	assert.True(t, errs.Is(err, errs.KindInvalidState))
}

func TestScratchAll_CompletesLosingCard(t *testing.T) {
	f := newFixture(t, Options{})
	f.store.addCardType(bellCard(1))
	c := f.buy(t, 1)
	require.False(t, c.Outcome.IsWinner)

	_, err := f.svc.ClaimPrize(f.ctx, c.ID, holder)
	assert.True(t, errs.Is(err, errs.KindNotCompleted), "unfinished card does not reveal the loss")

	_, err = f.svc.ScratchArea(f.ctx, c.ID, 3, holder)
	require.NoError(t, err)

	res, err := f.svc.ScratchAll(f.ctx, c.ID, holder)
	require.NoError(t, err)
	assert.True(t, res.CardComplete)
	assert.Len(t, res.Revealed, 8)
	assert.False(t, res.WinningsRevealed)
	assert.Equal(t, c.Grid, res.Instance.Grid)

	_, err = f.svc.ClaimPrize(f.ctx, c.ID, holder)
	assert.True(t, errs.Is(err, errs.KindNotAWinner))
	_, err = f.svc.ClaimPrize(f.ctx, c.ID, other)
	assert.True(t, errs.Is(err, errs.KindForbidden))
	_, err = f.svc.ClaimPrize(f.ctx, "missing", holder)
	assert.True(t, errs.Is(err, errs.KindNotFound))
}

func TestClaim_CreditFailureRollsBack(t *testing.T) {
	f := newFixture(t, Options{})
	f.store.addCardType(bellCard(1), bellTier(1, 1))
	c := f.buy(t, 1)
	_, err := f.svc.ScratchAll(f.ctx, c.ID, holder)
	require.NoError(t, err)

	coins := f.store.balance(holder, models.CurrencyCoins)
	f.store.failCredit = errors.New("ledger unavailable")

	_, err = f.svc.ClaimPrize(f.ctx, c.ID, holder)
	require.Error(t, err)
	assert.Equal(t, errs.KindInternal, errs.KindOf(err))
	assert.False(t, f.store.rawCard(c.ID).PrizeClaimed)
	assert.Empty(t, f.store.settlements)
	assert.True(t, coins.Equal(f.store.balance(holder, models.CurrencyCoins)))

	f.store.failCredit = nil
	claim, err := f.svc.ClaimPrize(f.ctx, c.ID, holder)
	require.NoError(t, err)
	assert.True(t, claim.Success)
	assert.Len(t, f.store.settlements, 1)
}

func TestClaim_ConcurrentDoubleSubmit(t *testing.T) {
	f := newFixture(t, Options{})
	f.store.addCardType(bellCard(1), bellTier(1, 1))
	c := f.buy(t, 1)
	_, err := f.svc.ScratchAll(f.ctx, c.ID, holder)
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		ok      atomic.Int64
		claimed atomic.Int64
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ClaimPrize(f.ctx, c.ID, holder)
			switch {
			case err == nil:
				ok.Add(1)
			case errs.Is(err, errs.KindAlreadyClaimed):
				claimed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), ok.Load())
	assert.Equal(t, int64(9), claimed.Load())
	assert.Equal(t, 2, f.store.credits)
}

func TestQueries(t *testing.T) {
	f := newFixture(t, Options{CardTTL: time.Hour})
	f.store.addCardType(bellCard(1), bellTier(1, 1))

	first := f.buy(t, 1)
	*f.clock = t0.Add(time.Minute)
	second := f.buy(t, 1)

	cards, err := f.svc.GetHolderCards(f.ctx, holder, nil)
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, second.ID, cards[0].ID, "newest first")
	for _, c := range cards {
		assert.Equal(t, make([]string, 9), c.Grid, "unrevealed symbols are masked")
		assert.Empty(t, c.Seed)
	}

	_, err = f.svc.ScratchAll(f.ctx, first.ID, holder)
	require.NoError(t, err)
	done := models.StatusCompleted
	cards, err = f.svc.GetHolderCards(f.ctx, holder, &done)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, first.ID, cards[0].ID)

	bad := models.CardStatus("lost")
	_, err = f.svc.GetHolderCards(f.ctx, holder, &bad)
	assert.True(t, errs.Is(err, errs.KindInvalidArgument))

	_, err = f.svc.GetCard(f.ctx, first.ID, other)
	assert.True(t, errs.Is(err, errs.KindForbidden))
	got, err := f.svc.GetCard(f.ctx, first.ID, holder)
	require.NoError(t, err)
	assert.Equal(t, first.Grid, got.Grid)

	n, err := f.svc.ExpireCards(f.ctx, t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, models.StatusExpired, f.store.rawCard(second.ID).Status)
	assert.Equal(t, models.StatusCompleted, f.store.rawCard(first.ID).Status, "completed cards never expire")

	w, err := f.svc.GetWallet(f.ctx, holder)
	require.NoError(t, err)
	assert.True(t, w.Coins.Equal(decimal.NewFromInt(1_000_000-20)))
}

func TestVerifyCard(t *testing.T) {
	f := newFixture(t, Options{})
	f.store.addCardType(bellCard(1), bellTier(1, 1))
	c := f.buy(t, 1)

	v, err := f.svc.VerifyCard(f.ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Empty(t, v.Seed)
	assert.Equal(t, c.VerificationHash, v.StoredHash)

	_, err = f.svc.ScratchAll(f.ctx, c.ID, holder)
	require.NoError(t, err)

	v, err = f.svc.VerifyCard(f.ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.True(t, v.GridConsistent)
	assert.True(t, v.LayoutReproduced)
	assert.Equal(t, v.StoredHash, v.RecomputedHash)
	assert.Equal(t, c.Seed, v.Seed)

	f.store.mu.Lock()
	f.store.cards[c.ID].Outcome.PayoutCoins = decimal.NewFromInt(5000)
	f.store.mu.Unlock()

	v, err = f.svc.VerifyCard(f.ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.NotEqual(t, v.StoredHash, v.RecomputedHash)
}

func TestVerifyCard_MovedSymbolBreaksReplay(t *testing.T) {
	f := newFixture(t, Options{})
	f.store.addCardType(bellCard(1), bellTier(1, 1))
	c := f.buy(t, 1)
	require.True(t, c.Outcome.IsWinner)
	assert.Equal(t, 1, c.Outcome.Draws)

	_, err := f.svc.ScratchAll(f.ctx, c.ID, holder)
	require.NoError(t, err)

	// same symbol counts, one bell moved to a cell that held something else
	f.store.mu.Lock()
	grid := f.store.cards[c.ID].Grid
	bell := slices.Index(grid, "bell")
	spot := slices.IndexFunc(grid, func(s string) bool { return s != "bell" })
	grid[bell], grid[spot] = grid[spot], grid[bell]
	f.store.mu.Unlock()

	v, err := f.svc.VerifyCard(f.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, v.StoredHash, v.RecomputedHash)
	assert.True(t, v.GridConsistent)
	assert.False(t, v.LayoutReproduced)
	assert.False(t, v.Valid)
}

func TestResetDailyCounters(t *testing.T) {
	f := newFixture(t, Options{})
	f.store.addCardType(bellCard(1), bellTier(1, 1))
	f.buy(t, 1)
	require.Equal(t, int64(1), f.store.tier(1).TodayWins)

	n, err := f.svc.ResetDailyCounters(f.ctx, t0.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Zero(t, f.store.tier(1).TodayWins)
	assert.Equal(t, int64(1), f.store.tier(1).TotalWins)
}

func TestVerifyCard_ArchivedHash(t *testing.T) {
	archive := &memoryArchive{hashes: map[string]string{}}
	events := &memoryEvents{}
	f := newFixture(t, Options{Archive: archive, Events: events})
	f.store.addCardType(bellCard(1), bellTier(1, 1))

	c := f.buy(t, 1)
	assert.Equal(t, c.VerificationHash, archive.hashes[c.ID])

	_, err := f.svc.ScratchAll(f.ctx, c.ID, holder)
	require.NoError(t, err)
	_, err = f.svc.ClaimPrize(f.ctx, c.ID, holder)
	require.NoError(t, err)
	assert.Equal(t, []string{"card-purchased", "card-completed", "prize-claimed"}, events.types())

	v, err := f.svc.VerifyCard(f.ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, v.ArchiveMatches)
	assert.True(t, *v.ArchiveMatches)
	assert.True(t, v.Valid)

	// rewrite outcome and hash together: self-consistent, but not what was archived
	f.store.mu.Lock()
	stored := f.store.cards[c.ID]
	stored.Outcome.PayoutCoins = decimal.NewFromInt(5000)
	stored.VerificationHash, _ = game.CommitmentHash(stored.ID, stored.Outcome, stored.Seed)
	f.store.mu.Unlock()

	v, err = f.svc.VerifyCard(f.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, v.StoredHash, v.RecomputedHash)
	assert.False(t, *v.ArchiveMatches)
	assert.False(t, v.Valid)
}
