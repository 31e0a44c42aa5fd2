package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CardStatus string

const (
	StatusUnscratched        CardStatus = "unscratched"
	StatusPartiallyScratched CardStatus = "partially_scratched"
	StatusCompleted          CardStatus = "completed"
	StatusExpired            CardStatus = "expired"
)

func (s CardStatus) Valid() bool {
	switch s {
	case StatusUnscratched, StatusPartiallyScratched, StatusCompleted, StatusExpired:
		return true
	}
	return false
}

// Terminal statuses accept no further reveals.
func (s CardStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusExpired
}

// Outcome is fixed at purchase time and never changes afterwards.
type Outcome struct {
	IsWinner      bool            `json:"is_winner"`
	PrizeTierID   *int64          `json:"prize_tier_id,omitempty"`
	PayoutCoins   decimal.Decimal `json:"payout_coins"`
	PayoutGems    decimal.Decimal `json:"payout_gems"`
	WinningSymbol string          `json:"winning_symbol,omitempty"`
	WinningCount  int             `json:"winning_count,omitempty"`
	BonusItems    []string        `json:"bonus_items,omitempty"`
	// Draws is how many values the tier draw took from the card's stream.
	Draws int `json:"draws"`
}

type AreaState struct {
	Revealed   bool       `json:"revealed"`
	Symbol     string     `json:"symbol,omitempty"`
	RevealedAt *time.Time `json:"revealed_at,omitempty"`
}

type RevealEvent struct {
	Area   int       `json:"area"`
	Symbol string    `json:"symbol"`
	At     time.Time `json:"at"`
}

// CardInstance is one purchased scratch card.
type CardInstance struct {
	ID               string          `json:"id"`
	CardTypeID       int64           `json:"card_type_id"`
	UserID           int64           `json:"user_id"`
	CostAmount       decimal.Decimal `json:"cost_amount"`
	CostCurrency     Currency        `json:"cost_currency"`
	PurchasedAt      time.Time       `json:"purchased_at"`
	Outcome          Outcome         `json:"outcome"`
	Grid             []string        `json:"grid"`
	Status           CardStatus      `json:"status"`
	Areas            []AreaState     `json:"areas"`
	RevealLog        []RevealEvent   `json:"reveal_log"`
	FirstRevealedAt  *time.Time      `json:"first_revealed_at,omitempty"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	RevealDurationMs int64           `json:"reveal_duration_ms"`
	PrizeClaimed     bool            `json:"prize_claimed"`
	PrizeClaimedAt   *time.Time      `json:"prize_claimed_at,omitempty"`
	SettlementRef    string          `json:"settlement_ref,omitempty"`
	Seed             string          `json:"seed"`
	VerificationHash string          `json:"verification_hash"`
	ExpiresAt        time.Time       `json:"expires_at"`
	Version          int64           `json:"version"`
}

// RevealedCount returns how many areas are uncovered.
func (c *CardInstance) RevealedCount() int {
	n := 0
	for _, a := range c.Areas {
		if a.Revealed {
			n++
		}
	}
	return n
}

// IsExpired reports whether a non-terminal card is past its expiry at t.
func (c *CardInstance) IsExpired(t time.Time) bool {
	return !c.Status.Terminal() && !t.Before(c.ExpiresAt)
}

// Expire moves a non-terminal card to expired. It returns false if nothing changed.
func (c *CardInstance) Expire() bool {
	if c.Status.Terminal() {
		return false
	}
	c.Status = StatusExpired
	return true
}

// Reveal uncovers one area. The caller checks ownership, bounds and state first.
func (c *CardInstance) Reveal(area int, at time.Time) string {
	sym := c.Grid[area]
	ts := at
	c.Areas[area] = AreaState{Revealed: true, Symbol: sym, RevealedAt: &ts}
	c.RevealLog = append(c.RevealLog, RevealEvent{Area: area, Symbol: sym, At: at})

	if c.FirstRevealedAt == nil {
		c.FirstRevealedAt = &ts
	}
	if c.Status == StatusUnscratched {
		c.Status = StatusPartiallyScratched
	}
	if c.RevealedCount() == len(c.Grid) {
		c.Status = StatusCompleted
		c.CompletedAt = &ts
		c.RevealDurationMs = at.Sub(*c.FirstRevealedAt).Milliseconds()
	}
	return sym
}

// WinningsRevealed is UI feedback only: the winning combination is already visible.
func (c *CardInstance) WinningsRevealed() bool {
	if !c.Outcome.IsWinner || c.Outcome.WinningCount == 0 {
		return false
	}
	n := 0
	for _, a := range c.Areas {
		if a.Revealed && a.Symbol == c.Outcome.WinningSymbol {
			n++
		}
	}
	return n >= c.Outcome.WinningCount
}

// Masked returns a copy safe to show the holder: hidden symbols, and the seed and
// outcome until the card is completed. The copy shares no slices with c, so later
// reveals on c never show through a view already handed out.
func (c *CardInstance) Masked() *CardInstance {
	m := *c
	m.Grid = make([]string, len(c.Grid))
	m.Areas = make([]AreaState, len(c.Areas))
	for i, a := range c.Areas {
		if a.RevealedAt != nil {
			at := *a.RevealedAt
			a.RevealedAt = &at
		}
		m.Areas[i] = a
		if a.Revealed {
			m.Grid[i] = a.Symbol
		}
	}
	if c.RevealLog != nil {
		m.RevealLog = append(make([]RevealEvent, 0, len(c.RevealLog)), c.RevealLog...)
	}
	if c.Status != StatusCompleted {
		m.Seed = ""
		m.Outcome = Outcome{}
	} else {
		m.Outcome.BonusItems = append([]string(nil), c.Outcome.BonusItems...)
		if c.Outcome.PrizeTierID != nil {
			id := *c.Outcome.PrizeTierID
			m.Outcome.PrizeTierID = &id
		}
	}
	return &m
}

// CardRef identifies a card and its holder.
type CardRef struct {
	ID     string `json:"card_id"`
	UserID int64  `json:"user_id"`
}
