package store

import (
	"context"
	"fmt"
	"time"

	"github.com/avvvet/scratch-services/internal/scratchsvc/errs"
	"github.com/avvvet/scratch-services/internal/scratchsvc/models"
)

type PrizeTierStore struct {
	db DBTX
}

func NewPrizeTierStore(db DBTX) *PrizeTierStore {
	return &PrizeTierStore{db: db}
}

const prizeTierColumns = `id, card_type_id, name, payout_coins, payout_gems, bonus_items, probability,
	max_wins_per_day, max_wins_total, today_wins, total_wins, counter_day,
	winning_symbol, symbol_count, is_jackpot, is_active, sort_order`

// ListActive returns the card type's active tiers in draw order.
func (s *PrizeTierStore) ListActive(ctx context.Context, cardTypeID int64) ([]models.PrizeTier, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+prizeTierColumns+`
		FROM prize_tiers
		WHERE card_type_id = $1 AND is_active
		ORDER BY sort_order, id
	`, cardTypeID)
	if err != nil {
		return nil, fmt.Errorf("list prize tiers for card type %d: %w", cardTypeID, err)
	}
	defer rows.Close()

	var tiers []models.PrizeTier
	for rows.Next() {
		var t models.PrizeTier
		if err := rows.Scan(
			&t.ID,
			&t.CardTypeID,
			&t.Name,
			&t.PayoutCoins,
			&t.PayoutGems,
			&t.BonusItems,
			&t.Probability,
			&t.MaxWinsPerDay,
			&t.MaxWinsTotal,
			&t.TodayWins,
			&t.TotalWins,
			&t.CounterDay,
			&t.WinningSymbol,
			&t.SymbolCount,
			&t.IsJackpot,
			&t.IsActive,
			&t.SortOrder,
		); err != nil {
			return nil, fmt.Errorf("scan prize tier: %w", err)
		}
		tiers = append(tiers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return tiers, nil
}

// ReserveWin counts one win against the tier's caps. The ceiling lives in the WHERE
// clause, so concurrent purchases on other processes can never push a counter past
// its cap; zero rows affected means the tier is exhausted. Day rollover is folded in.
func (s *PrizeTierStore) ReserveWin(ctx context.Context, tierID int64, day time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE prize_tiers
		SET today_wins = CASE WHEN counter_day = $2::date THEN today_wins ELSE 0 END + 1,
		    total_wins = total_wins + 1,
		    counter_day = $2::date,
		    updated_at = now()
		WHERE id = $1
		  AND is_active
		  AND (max_wins_total IS NULL OR total_wins < max_wins_total)
		  AND (max_wins_per_day IS NULL
		       OR CASE WHEN counter_day = $2::date THEN today_wins ELSE 0 END < max_wins_per_day)
	`, tierID, day.UTC())
	if err != nil {
		return fmt.Errorf("reserve prize tier %d: %w", tierID, err)
	}
	if tag.RowsAffected() != 1 {
		return errs.E(errs.KindSupplyExhausted, "prize tier %d has no supply left", tierID)
	}
	return nil
}

// ResetDaily zeroes today's counters of every tier still on an older day.
func (s *PrizeTierStore) ResetDaily(ctx context.Context, day time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE prize_tiers
		SET today_wins = 0, counter_day = $1::date, updated_at = now()
		WHERE counter_day < $1::date
	`, day.UTC())
	if err != nil {
		return 0, fmt.Errorf("reset daily prize counters: %w", err)
	}
	return tag.RowsAffected(), nil
}

// UpsertPrizeTier writes the tier definition and leaves the running counters alone.
func (s *PrizeTierStore) UpsertPrizeTier(ctx context.Context, t *models.PrizeTier) error {
	bonus := t.BonusItems
	if bonus == nil {
		bonus = []string{}
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO prize_tiers (id, card_type_id, name, payout_coins, payout_gems, bonus_items, probability,
			max_wins_per_day, max_wins_total, winning_symbol, symbol_count, is_jackpot, is_active, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			payout_coins = EXCLUDED.payout_coins,
			payout_gems = EXCLUDED.payout_gems,
			bonus_items = EXCLUDED.bonus_items,
			probability = EXCLUDED.probability,
			max_wins_per_day = EXCLUDED.max_wins_per_day,
			max_wins_total = EXCLUDED.max_wins_total,
			winning_symbol = EXCLUDED.winning_symbol,
			symbol_count = EXCLUDED.symbol_count,
			is_jackpot = EXCLUDED.is_jackpot,
			is_active = EXCLUDED.is_active,
			sort_order = EXCLUDED.sort_order,
			updated_at = now()
	`, t.ID, t.CardTypeID, t.Name, t.PayoutCoins, t.PayoutGems, bonus, t.Probability,
		t.MaxWinsPerDay, t.MaxWinsTotal, t.WinningSymbol, t.SymbolCount, t.IsJackpot, t.IsActive, t.SortOrder)
	if err != nil {
		return fmt.Errorf("upsert prize tier %d: %w", t.ID, err)
	}
	return nil
}
