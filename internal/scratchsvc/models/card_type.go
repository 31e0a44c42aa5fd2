package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CardType is the catalog entry a card instance is bought from.
type CardType struct {
	ID                    int64           `json:"id" yaml:"id"`
	Name                  string          `json:"name" yaml:"name"`
	Theme                 string          `json:"theme" yaml:"theme"`
	Symbols               []string        `json:"symbols" yaml:"symbols"` // theme symbol pool
	GridSize              int             `json:"grid_size" yaml:"grid_size"`
	MinSymbolsToMatch     int             `json:"min_symbols_to_match" yaml:"min_symbols_to_match"`
	CostCoins             decimal.Decimal `json:"cost_coins" yaml:"cost_coins"`
	CostGems              decimal.Decimal `json:"cost_gems" yaml:"cost_gems"`
	MaxPrizeCoins         decimal.Decimal `json:"max_prize_coins" yaml:"max_prize_coins"`
	MaxPrizeGems          decimal.Decimal `json:"max_prize_gems" yaml:"max_prize_gems"`
	TargetRTP             float64         `json:"target_rtp" yaml:"target_rtp"`
	DailyPurchaseLimit    int             `json:"daily_purchase_limit" yaml:"daily_purchase_limit"`       // 0 = unlimited
	LifetimePurchaseLimit int             `json:"lifetime_purchase_limit" yaml:"lifetime_purchase_limit"` // 0 = unlimited
	AvailableFrom         *time.Time      `json:"available_from,omitempty" yaml:"available_from"`
	AvailableUntil        *time.Time      `json:"available_until,omitempty" yaml:"available_until"`
	IsActive              bool            `json:"is_active" yaml:"is_active"`
	CreatedAt             time.Time       `json:"created_at" yaml:"-"`
	UpdatedAt             time.Time       `json:"updated_at" yaml:"-"`
}

// AvailableAt reports whether the card type can be sold at t.
func (ct *CardType) AvailableAt(t time.Time) bool {
	if !ct.IsActive {
		return false
	}
	if ct.AvailableFrom != nil && t.Before(*ct.AvailableFrom) {
		return false
	}
	if ct.AvailableUntil != nil && !t.Before(*ct.AvailableUntil) {
		return false
	}
	return true
}

// Cost returns the price in the given currency; zero means not sold in it.
func (ct *CardType) Cost(c Currency) decimal.Decimal {
	switch c {
	case CurrencyCoins:
		return ct.CostCoins
	case CurrencyGems:
		return ct.CostGems
	}
	return decimal.Zero
}
