package service

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/avvvet/scratch-services/internal/scratchsvc/errs"
	"github.com/avvvet/scratch-services/internal/scratchsvc/models"
)

type ScratchResult struct {
	Symbol           string               `json:"symbol,omitempty"`
	Revealed         []models.RevealEvent `json:"revealed"`
	CardComplete     bool                 `json:"card_complete"`
	WinningsRevealed bool                 `json:"winnings_revealed"`
	Instance         *models.CardInstance `json:"instance"`
}

// ScratchArea reveals one area of the holder's card.
func (s *Service) ScratchArea(ctx context.Context, instanceID string, area int, holderID int64) (*ScratchResult, error) {
	res, err := s.reveal(ctx, instanceID, holderID, func(c *models.CardInstance) ([]int, error) {
		if area < 0 || area >= len(c.Grid) {
			return nil, errs.E(errs.KindInvalidArgument, "area %d is outside the %d area grid", area, len(c.Grid))
		}
		if c.Areas[area].Revealed {
			return nil, errs.E(errs.KindInvalidState, "area %d of card %s is already revealed", area, c.ID)
		}
		return []int{area}, nil
	})
	if err != nil {
		return nil, err
	}
	res.Symbol = res.Revealed[0].Symbol
	return res, nil
}

// ScratchAll reveals every area still covered, in area order.
func (s *Service) ScratchAll(ctx context.Context, instanceID string, holderID int64) (*ScratchResult, error) {
	return s.reveal(ctx, instanceID, holderID, func(c *models.CardInstance) ([]int, error) {
		var areas []int
		for i, a := range c.Areas {
			if !a.Revealed {
				areas = append(areas, i)
			}
		}
		return areas, nil
	})
}

// reveal locks the card, applies the shared ownership/state rules and reveals the areas
// chosen by pick. An expired card is persisted as expired and the call still fails.
func (s *Service) reveal(ctx context.Context, instanceID string, holderID int64, pick func(*models.CardInstance) ([]int, error)) (*ScratchResult, error) {
	var (
		res     *ScratchResult
		expired bool
	)

	err := s.store.Tx(ctx, func(tx Tx) error {
		card, err := tx.GetCardForUpdate(ctx, instanceID)
		if err != nil {
			return err
		}
		if card.UserID != holderID {
			return errs.E(errs.KindForbidden, "card %s belongs to another holder", instanceID)
		}
		if card.Status.Terminal() {
			return errs.E(errs.KindInvalidState, "card %s is %s", instanceID, card.Status)
		}

		now := s.now()
		if card.IsExpired(now) {
			card.Expire()
			expired = true
			return tx.UpdateCard(ctx, card)
		}

		areas, err := pick(card)
		if err != nil {
			return err
		}

		revealed := make([]models.RevealEvent, 0, len(areas))
		for _, a := range areas {
			sym := card.Reveal(a, now)
			revealed = append(revealed, models.RevealEvent{Area: a, Symbol: sym, At: now})
		}
		if err := tx.UpdateCard(ctx, card); err != nil {
			return err
		}

		res = &ScratchResult{
			Revealed:         revealed,
			CardComplete:     card.Status == models.StatusCompleted,
			WinningsRevealed: card.WinningsRevealed(),
			Instance:         card.Masked(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired {
		s.opts.Metrics.CardsExpired(1)
		s.publish("card-expired", holderID, models.CardRef{ID: instanceID, UserID: holderID})
		return nil, errs.E(errs.KindInvalidState, "card %s has expired", instanceID)
	}

	s.opts.Metrics.AreasScratched(len(res.Revealed), res.CardComplete)
	if res.CardComplete {
		log.WithFields(log.Fields{
			"card":        instanceID,
			"user":        holderID,
			"duration_ms": res.Instance.RevealDurationMs,
		}).Info("card completed")
		s.publish("card-completed", holderID, res.Instance)
	}
	return res, nil
}
