package store

import (
	"context"
	"fmt"

	"github.com/avvvet/scratch-services/internal/scratchsvc/errs"
	"github.com/avvvet/scratch-services/internal/scratchsvc/models"
)

type SettlementStore struct {
	db DBTX
}

func NewSettlementStore(db DBTX) *SettlementStore {
	return &SettlementStore{db: db}
}

// CreateSettlement inserts the immutable settlement row. card_id is unique, so a second
// settlement for the same card fails even if the claim flag check were bypassed.
func (s *SettlementStore) CreateSettlement(ctx context.Context, st *models.Settlement) error {
	bonus := st.BonusItems
	if bonus == nil {
		bonus = []string{}
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO settlements (ref, card_id, user_id, prize_tier_id, payout_coins, payout_gems, bonus_items)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, st.Ref, st.CardID, st.UserID, st.PrizeTierID, st.PayoutCoins, st.PayoutGems, bonus).Scan(&st.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return errs.E(errs.KindAlreadyClaimed, "card %s already settled", st.CardID)
		}
		return fmt.Errorf("insert settlement: %w", err)
	}
	return nil
}

func (s *SettlementStore) GetByCard(ctx context.Context, cardID string) (*models.Settlement, error) {
	st := &models.Settlement{}
	err := s.db.QueryRow(ctx, `
		SELECT ref, card_id, user_id, prize_tier_id, payout_coins, payout_gems, bonus_items, created_at
		FROM settlements
		WHERE card_id = $1
	`, cardID).Scan(&st.Ref, &st.CardID, &st.UserID, &st.PrizeTierID, &st.PayoutCoins, &st.PayoutGems,
		&st.BonusItems, &st.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, notFound("settlement for card", cardID)
		}
		return nil, fmt.Errorf("get settlement: %w", err)
	}
	return st, nil
}
