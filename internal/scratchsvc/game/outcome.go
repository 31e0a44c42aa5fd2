package game

import (
	"math/rand/v2"
	"sort"

	"github.com/avvvet/scratch-services/internal/scratchsvc/errs"
	"github.com/avvvet/scratch-services/internal/scratchsvc/models"
	"github.com/shopspring/decimal"
)

// Policy decides what happens when the drawn tier has no supply left.
type Policy string

const (
	// PolicyDowngrade turns the draw into a loss.
	PolicyDowngrade Policy = "downgrade"
	// PolicyRedraw drops the exhausted tier, renormalises the remaining mass and draws again.
	PolicyRedraw Policy = "redraw"
)

func (p Policy) Valid() bool {
	return p == PolicyDowngrade || p == PolicyRedraw
}

// ReserveFunc claims one win of the tier's supply. It returns an error of kind
// SupplyExhausted when a cap is reached; any other error aborts the draw.
type ReserveFunc func(tier models.PrizeTier) error

type DrawConfig struct {
	MinSymbolsToMatch int
	Policy            Policy
}

// ActiveTiers returns the active tiers in the stable draw order.
func ActiveTiers(tiers []models.PrizeTier) []models.PrizeTier {
	out := make([]models.PrizeTier, 0, len(tiers))
	for _, t := range tiers {
		if t.IsActive && t.Probability > 0 {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// DrawOutcome selects a prize tier or a loss. Tier mass is walked cumulatively and the
// first tier whose cumulative probability exceeds r is reserved through reserve.
// The outcome records how many values it took from rng so the layout can be replayed.
func DrawOutcome(rng *rand.Rand, tiers []models.PrizeTier, reserve ReserveFunc, cfg DrawConfig) (models.Outcome, error) {
	active := ActiveTiers(tiers)
	exhausted := make(map[int64]bool)

	draws := 0
	for attempt := 0; attempt <= len(active); attempt++ {
		draws++
		tier, ok := pick(rng.Float64(), active, exhausted)
		if !ok {
			break
		}

		err := reserve(tier)
		if err == nil {
			o := winFor(tier, cfg.MinSymbolsToMatch)
			o.Draws = draws
			return o, nil
		}
		if !errs.Is(err, errs.KindSupplyExhausted) {
			return models.Outcome{}, err
		}

		exhausted[tier.ID] = true
		if cfg.Policy != PolicyRedraw {
			break
		}
	}
	o := Loss()
	o.Draws = draws
	return o, nil
}

// pick maps r in [0,1) onto the tiers that are not exhausted. Exhausted mass is removed
// and the rest scaled up, so the implicit loss keeps its relative weight.
func pick(r float64, active []models.PrizeTier, exhausted map[int64]bool) (models.PrizeTier, bool) {
	remaining := 1.0
	for _, t := range active {
		if exhausted[t.ID] {
			remaining -= t.Probability
		}
	}
	if remaining <= 0 {
		return models.PrizeTier{}, false
	}

	u := r * remaining
	cum := 0.0
	for _, t := range active {
		if exhausted[t.ID] {
			continue
		}
		cum += t.Probability
		if cum > u {
			return t, true
		}
	}
	return models.PrizeTier{}, false
}

func Loss() models.Outcome {
	return models.Outcome{PayoutCoins: decimal.Zero, PayoutGems: decimal.Zero}
}

func winFor(t models.PrizeTier, minMatch int) models.Outcome {
	id := t.ID
	count := t.SymbolCount
	if count == 0 {
		count = minMatch
	}
	return models.Outcome{
		IsWinner:      true,
		PrizeTierID:   &id,
		PayoutCoins:   t.PayoutCoins,
		PayoutGems:    t.PayoutGems,
		WinningSymbol: t.WinningSymbol,
		WinningCount:  count,
		BonusItems:    append([]string(nil), t.BonusItems...),
	}
}
