package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PrizeTier struct {
	ID            int64           `json:"id" yaml:"id"`
	CardTypeID    int64           `json:"card_type_id" yaml:"-"`
	Name          string          `json:"name" yaml:"name"`
	PayoutCoins   decimal.Decimal `json:"payout_coins" yaml:"payout_coins"`
	PayoutGems    decimal.Decimal `json:"payout_gems" yaml:"payout_gems"`
	BonusItems    []string        `json:"bonus_items,omitempty" yaml:"bonus_items"`
	Probability   float64         `json:"probability" yaml:"probability"`
	MaxWinsPerDay *int64          `json:"max_wins_per_day,omitempty" yaml:"max_wins_per_day"` // nil = unlimited
	MaxWinsTotal  *int64          `json:"max_wins_total,omitempty" yaml:"max_wins_total"`     // nil = unlimited
	TodayWins     int64           `json:"today_wins" yaml:"-"`
	TotalWins     int64           `json:"total_wins" yaml:"-"`
	CounterDay    time.Time       `json:"counter_day" yaml:"-"`
	WinningSymbol string          `json:"winning_symbol" yaml:"winning_symbol"`
	SymbolCount   int             `json:"symbol_count" yaml:"symbol_count"`
	IsJackpot     bool            `json:"is_jackpot" yaml:"is_jackpot"`
	IsActive      bool            `json:"is_active" yaml:"is_active"`
	SortOrder     int             `json:"sort_order" yaml:"sort_order"`
}

// HasSupply reports whether one more win fits under both caps on day.
func (p *PrizeTier) HasSupply(day time.Time) bool {
	today := p.TodayWins
	if !sameDay(p.CounterDay, day) {
		today = 0
	}
	if p.MaxWinsPerDay != nil && today >= *p.MaxWinsPerDay {
		return false
	}
	if p.MaxWinsTotal != nil && p.TotalWins >= *p.MaxWinsTotal {
		return false
	}
	return true
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
