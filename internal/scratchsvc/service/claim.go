package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/scratch-services/internal/scratchsvc/errs"
	"github.com/avvvet/scratch-services/internal/scratchsvc/models"
)

type ClaimResult struct {
	Success       bool            `json:"success"`
	SettlementRef string          `json:"settlement_ref"`
	PayoutCoins   decimal.Decimal `json:"payout_coins"`
	PayoutGems    decimal.Decimal `json:"payout_gems"`
	BonusItems    []string        `json:"bonus_items,omitempty"`
}

// ClaimPrize settles a completed winning card. Credits, the settlement row and the
// claimed flag commit together; a failed credit leaves the card claimable.
//
// Checks run NotFound, Forbidden, NotCompleted, NotAWinner, AlreadyClaimed so an
// unfinished card never tells the caller whether it won.
func (s *Service) ClaimPrize(ctx context.Context, instanceID string, holderID int64) (*ClaimResult, error) {
	var res *ClaimResult

	err := s.store.Tx(ctx, func(tx Tx) error {
		card, err := tx.GetCardForUpdate(ctx, instanceID)
		if err != nil {
			return err
		}
		if card.UserID != holderID {
			return errs.E(errs.KindForbidden, "card %s belongs to another holder", instanceID)
		}
		if card.Status != models.StatusCompleted {
			return errs.E(errs.KindNotCompleted, "card %s is %s", instanceID, card.Status)
		}
		if !card.Outcome.IsWinner || card.Outcome.PrizeTierID == nil {
			return errs.E(errs.KindNotAWinner, "card %s did not win", instanceID)
		}
		if card.PrizeClaimed {
			return errs.E(errs.KindAlreadyClaimed, "card %s was settled as %s", instanceID, card.SettlementRef)
		}

		ref := uuid.NewString()
		o := card.Outcome
		if o.PayoutCoins.IsPositive() {
			if err := tx.Credit(ctx, holderID, models.CurrencyCoins, o.PayoutCoins, models.TTypePrizeCredit, "SET-"+ref+"-COINS"); err != nil {
				return err
			}
		}
		if o.PayoutGems.IsPositive() {
			if err := tx.Credit(ctx, holderID, models.CurrencyGems, o.PayoutGems, models.TTypePrizeCredit, "SET-"+ref+"-GEMS"); err != nil {
				return err
			}
		}

		now := s.now()
		if err := tx.CreateSettlement(ctx, &models.Settlement{
			Ref:         ref,
			CardID:      card.ID,
			UserID:      holderID,
			PrizeTierID: *o.PrizeTierID,
			PayoutCoins: o.PayoutCoins,
			PayoutGems:  o.PayoutGems,
			BonusItems:  o.BonusItems,
			CreatedAt:   now,
		}); err != nil {
			return err
		}

		card.PrizeClaimed = true
		card.PrizeClaimedAt = &now
		card.SettlementRef = ref
		if err := tx.UpdateCard(ctx, card); err != nil {
			return err
		}

		res = &ClaimResult{
			Success:       true,
			SettlementRef: ref,
			PayoutCoins:   o.PayoutCoins,
			PayoutGems:    o.PayoutGems,
			BonusItems:    o.BonusItems,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"card":       instanceID,
		"user":       holderID,
		"settlement": res.SettlementRef,
		"coins":      res.PayoutCoins.StringFixed(2),
		"gems":       res.PayoutGems.StringFixed(2),
	}).Info("prize claimed")

	coins, _ := res.PayoutCoins.Float64()
	gems, _ := res.PayoutGems.Float64()
	s.opts.Metrics.PrizeClaimed(coins, gems)
	s.publish("prize-claimed", holderID, res)

	return res, nil
}
