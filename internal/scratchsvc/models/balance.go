package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Currency string

const (
	CurrencyCoins Currency = "coins"
	CurrencyGems  Currency = "gems"
)

func (c Currency) Valid() bool {
	return c == CurrencyCoins || c == CurrencyGems
}

// ledger entry types
const (
	TTypeCardPurchase = "card_purchase"
	TTypePrizeCredit  = "prize_credit"
	TTypeDeposit      = "deposit"
)

// Balance is one ledger row. dr adds to the holder's balance, cr takes from it.
type Balance struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Currency  Currency        `json:"currency"`
	TType     string          `json:"ttype"`
	Dr        decimal.Decimal `json:"dr"`
	Cr        decimal.Decimal `json:"cr"`
	TRef      string          `json:"tref"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Wallet is the holder's balance in both currencies.
type Wallet struct {
	Coins decimal.Decimal `json:"coins"`
	Gems  decimal.Decimal `json:"gems"`
}
