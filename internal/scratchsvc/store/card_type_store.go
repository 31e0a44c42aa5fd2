package store

import (
	"context"
	"fmt"

	"github.com/avvvet/scratch-services/internal/scratchsvc/models"
)

type CardTypeStore struct {
	db DBTX
}

func NewCardTypeStore(db DBTX) *CardTypeStore {
	return &CardTypeStore{db: db}
}

func (s *CardTypeStore) GetCardType(ctx context.Context, id int64) (*models.CardType, error) {
	query := `
		SELECT id, name, theme, symbols, grid_size, min_symbols_to_match,
		       cost_coins, cost_gems, max_prize_coins, max_prize_gems, target_rtp,
		       daily_purchase_limit, lifetime_purchase_limit, available_from, available_until,
		       is_active, created_at, updated_at
		FROM card_types
		WHERE id = $1
	`

	ct := &models.CardType{}
	err := s.db.QueryRow(ctx, query, id).Scan(
		&ct.ID,
		&ct.Name,
		&ct.Theme,
		&ct.Symbols,
		&ct.GridSize,
		&ct.MinSymbolsToMatch,
		&ct.CostCoins,
		&ct.CostGems,
		&ct.MaxPrizeCoins,
		&ct.MaxPrizeGems,
		&ct.TargetRTP,
		&ct.DailyPurchaseLimit,
		&ct.LifetimePurchaseLimit,
		&ct.AvailableFrom,
		&ct.AvailableUntil,
		&ct.IsActive,
		&ct.CreatedAt,
		&ct.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, notFound("card type", id)
		}
		return nil, fmt.Errorf("failed to get card type: %w", err)
	}

	return ct, nil
}

// UpsertCardType writes a catalog entry. Used by the catalog loader only.
func (s *CardTypeStore) UpsertCardType(ctx context.Context, ct *models.CardType) error {
	symbols := ct.Symbols
	if symbols == nil {
		symbols = []string{}
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO card_types (id, name, theme, symbols, grid_size, min_symbols_to_match,
			cost_coins, cost_gems, max_prize_coins, max_prize_gems, target_rtp,
			daily_purchase_limit, lifetime_purchase_limit, available_from, available_until, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			theme = EXCLUDED.theme,
			symbols = EXCLUDED.symbols,
			grid_size = EXCLUDED.grid_size,
			min_symbols_to_match = EXCLUDED.min_symbols_to_match,
			cost_coins = EXCLUDED.cost_coins,
			cost_gems = EXCLUDED.cost_gems,
			max_prize_coins = EXCLUDED.max_prize_coins,
			max_prize_gems = EXCLUDED.max_prize_gems,
			target_rtp = EXCLUDED.target_rtp,
			daily_purchase_limit = EXCLUDED.daily_purchase_limit,
			lifetime_purchase_limit = EXCLUDED.lifetime_purchase_limit,
			available_from = EXCLUDED.available_from,
			available_until = EXCLUDED.available_until,
			is_active = EXCLUDED.is_active,
			updated_at = now()
	`, ct.ID, ct.Name, ct.Theme, symbols, ct.GridSize, ct.MinSymbolsToMatch,
		ct.CostCoins, ct.CostGems, ct.MaxPrizeCoins, ct.MaxPrizeGems, ct.TargetRTP,
		ct.DailyPurchaseLimit, ct.LifetimePurchaseLimit, ct.AvailableFrom, ct.AvailableUntil, ct.IsActive)
	if err != nil {
		return fmt.Errorf("upsert card type %d: %w", ct.ID, err)
	}
	return nil
}
