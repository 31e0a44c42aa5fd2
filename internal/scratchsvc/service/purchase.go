package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/scratch-services/internal/scratchsvc/errs"
	"github.com/avvvet/scratch-services/internal/scratchsvc/game"
	"github.com/avvvet/scratch-services/internal/scratchsvc/models"
)

type PurchaseOptions struct {
	Currency models.Currency
}

// PurchaseCard sells one card of the given type to the holder. The cost debit, tier
// reservation and card insert commit together or not at all. The returned card is
// unmasked; send Masked() to the holder.
func (s *Service) PurchaseCard(ctx context.Context, holderID, cardTypeID int64, opts PurchaseOptions) (*models.CardInstance, error) {
	now := s.now()

	currency := opts.Currency
	if currency == "" {
		currency = models.CurrencyCoins
	}
	if !currency.Valid() {
		return nil, errs.E(errs.KindInvalidArgument, "unknown currency %q", currency)
	}

	ct, err := s.store.GetCardType(ctx, cardTypeID)
	if err != nil {
		if errs.Is(err, errs.KindNotFound) {
			return nil, errs.E(errs.KindNotAvailable, "card type %d does not exist", cardTypeID)
		}
		return nil, err
	}
	if !ct.AvailableAt(now) {
		return nil, errs.E(errs.KindNotAvailable, "card type %d is not on sale", cardTypeID)
	}
	cost := ct.Cost(currency)
	if !cost.IsPositive() {
		return nil, errs.E(errs.KindNotAvailable, "card type %d is not sold for %s", cardTypeID, currency)
	}

	if s.eligibility != nil {
		if err := s.eligibility.CheckEligibility(ctx, holderID); err != nil {
			return nil, err
		}
	}

	card := &models.CardInstance{
		ID:           uuid.NewString(),
		CardTypeID:   ct.ID,
		UserID:       holderID,
		CostAmount:   cost,
		CostCurrency: currency,
		PurchasedAt:  now,
		Status:       models.StatusUnscratched,
		Areas:        make([]models.AreaState, ct.GridSize),
		RevealLog:    []models.RevealEvent{},
		ExpiresAt:    now.Add(s.opts.CardTTL),
		Version:      1,
	}

	err = s.store.Tx(ctx, func(tx Tx) error {
		if err := tx.LockHolder(ctx, holderID); err != nil {
			return err
		}
		if err := s.checkLimits(ctx, tx, ct, holderID, now); err != nil {
			return err
		}
		if err := tx.Debit(ctx, holderID, currency, cost, models.TTypeCardPurchase, "BUY-"+card.ID); err != nil {
			return err
		}
		return s.generate(ctx, tx, ct, card)
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"card":      card.ID,
		"card_type": ct.ID,
		"user":      holderID,
		"winner":    card.Outcome.IsWinner,
	}).Info("card purchased")

	if s.opts.Archive != nil {
		if err := s.opts.Archive.RecordCommitment(ctx, card); err != nil {
			log.WithField("card", card.ID).Errorf("archive commitment: %s", err)
		}
	}
	s.publish("card-purchased", holderID, card.Masked())
	s.opts.Metrics.CardPurchased(ct.ID, string(currency), card.Outcome.IsWinner)

	return card, nil
}

// checkLimits runs under the holder lock, so two concurrent purchases cannot both see
// the last free slot.
func (s *Service) checkLimits(ctx context.Context, tx Tx, ct *models.CardType, holderID int64, now time.Time) error {
	if ct.DailyPurchaseLimit > 0 {
		since := startOfDay(now)
		n, err := tx.CountPurchases(ctx, holderID, ct.ID, &since)
		if err != nil {
			return err
		}
		if n >= ct.DailyPurchaseLimit {
			return errs.E(errs.KindLimitExceeded, "daily limit of %d cards reached", ct.DailyPurchaseLimit)
		}
	}
	if ct.LifetimePurchaseLimit > 0 {
		n, err := tx.CountPurchases(ctx, holderID, ct.ID, nil)
		if err != nil {
			return err
		}
		if n >= ct.LifetimePurchaseLimit {
			return errs.E(errs.KindLimitExceeded, "lifetime limit of %d cards reached", ct.LifetimePurchaseLimit)
		}
	}
	return nil
}

// generate fixes the outcome, lays out the grid and commits to both. One seeded
// stream drives the draw, the layout and the shuffle.
func (s *Service) generate(ctx context.Context, tx Tx, ct *models.CardType, card *models.CardInstance) error {
	seed, err := s.opts.NewSeed()
	if err != nil {
		return fmt.Errorf("generate seed: %w", err)
	}
	rng, err := game.NewRand(seed)
	if err != nil {
		return err
	}

	tiers, err := tx.ActivePrizeTiers(ctx, ct.ID)
	if err != nil {
		return err
	}

	day := card.PurchasedAt
	reserve := func(t models.PrizeTier) error {
		err := tx.ReserveTierWin(ctx, t.ID, day)
		if errs.Is(err, errs.KindSupplyExhausted) {
			log.WithFields(log.Fields{"tier": t.ID, "card_type": ct.ID}).Warn("prize tier exhausted at draw")
			s.opts.Metrics.SupplyExhausted(t.ID)
		}
		return err
	}

	outcome, err := game.DrawOutcome(rng, tiers, reserve, game.DrawConfig{
		MinSymbolsToMatch: ct.MinSymbolsToMatch,
		Policy:            s.opts.Policy,
	})
	if err != nil {
		return err
	}

	grid, err := game.Layout(rng, s.layoutConfig(ct), outcome)
	if err != nil {
		return err
	}

	hash, err := game.CommitmentHash(card.ID, outcome, seed)
	if err != nil {
		return err
	}

	card.Outcome = outcome
	card.Grid = grid
	card.Seed = seed
	card.VerificationHash = hash

	return tx.CreateCard(ctx, card)
}

func (s *Service) layoutConfig(ct *models.CardType) game.LayoutConfig {
	return game.LayoutConfig{
		GridSize:          ct.GridSize,
		MatchCount:        ct.MinSymbolsToMatch,
		Symbols:           ct.Symbols,
		MaxFillerAttempts: s.opts.MaxFillerAttempts,
	}
}
