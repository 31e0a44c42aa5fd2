package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Settlement is the immutable record written when a prize is claimed.
type Settlement struct {
	Ref         string          `json:"ref"`
	CardID      string          `json:"card_id"`
	UserID      int64           `json:"user_id"`
	PrizeTierID int64           `json:"prize_tier_id"`
	PayoutCoins decimal.Decimal `json:"payout_coins"`
	PayoutGems  decimal.Decimal `json:"payout_gems"`
	BonusItems  []string        `json:"bonus_items,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
