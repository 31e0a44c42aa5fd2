// Package catalog loads card types and their prize tables from a YAML seed file.
package catalog

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/avvvet/scratch-services/internal/scratchsvc/errs"
	"github.com/avvvet/scratch-services/internal/scratchsvc/game"
	"github.com/avvvet/scratch-services/internal/scratchsvc/models"
)

type Entry struct {
	models.CardType `yaml:",inline"`
	PrizeTiers      []models.PrizeTier `yaml:"prize_tiers"`
}

type Catalog struct {
	CardTypes []Entry `yaml:"card_types"`
}

func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes and validates a catalog document.
func Parse(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, errs.Wrap(errs.KindInvalidArgument, err, "malformed catalog")
	}
	for i := range c.CardTypes {
		for j := range c.CardTypes[i].PrizeTiers {
			c.CardTypes[i].PrizeTiers[j].CardTypeID = c.CardTypes[i].ID
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects entries the draw and layout engines cannot honour.
func (c *Catalog) Validate() error {
	typeIDs := map[int64]bool{}
	tierIDs := map[int64]bool{}

	for _, e := range c.CardTypes {
		ct := e.CardType
		if ct.ID <= 0 {
			return invalid("card type %q has no id", ct.Name)
		}
		if typeIDs[ct.ID] {
			return invalid("duplicate card type id %d", ct.ID)
		}
		typeIDs[ct.ID] = true

		if ct.MinSymbolsToMatch < 2 {
			return invalid("card type %d: min_symbols_to_match must be at least 2", ct.ID)
		}
		if ct.GridSize < ct.MinSymbolsToMatch {
			return invalid("card type %d: grid_size %d is smaller than min_symbols_to_match %d",
				ct.ID, ct.GridSize, ct.MinSymbolsToMatch)
		}
		if !ct.CostCoins.IsPositive() && !ct.CostGems.IsPositive() {
			return invalid("card type %d is not priced in any currency", ct.ID)
		}
		if ct.CostCoins.IsNegative() || ct.CostGems.IsNegative() {
			return invalid("card type %d has a negative cost", ct.ID)
		}
		if ct.AvailableFrom != nil && ct.AvailableUntil != nil && !ct.AvailableFrom.Before(*ct.AvailableUntil) {
			return invalid("card type %d: available_from must be before available_until", ct.ID)
		}

		pool := map[string]bool{}
		for _, s := range ct.Symbols {
			if s == "" || s == game.Blank {
				return invalid("card type %d: %q is not a usable symbol", ct.ID, s)
			}
			pool[s] = true
		}

		sum := decimal.Zero
		for _, t := range e.PrizeTiers {
			if t.ID <= 0 {
				return invalid("card type %d: tier %q has no id", ct.ID, t.Name)
			}
			if tierIDs[t.ID] {
				return invalid("duplicate prize tier id %d", t.ID)
			}
			tierIDs[t.ID] = true

			if t.Probability < 0 || t.Probability > 1 {
				return invalid("tier %d: probability %v is outside [0,1]", t.ID, t.Probability)
			}
			if t.IsActive {
				sum = sum.Add(decimal.NewFromFloat(t.Probability))
			}
			if !pool[t.WinningSymbol] {
				return invalid("tier %d: winning symbol %q is not in the card's symbol pool", t.ID, t.WinningSymbol)
			}
			if t.SymbolCount != 0 && (t.SymbolCount < ct.MinSymbolsToMatch || t.SymbolCount > ct.GridSize) {
				return invalid("tier %d: symbol_count %d must be between %d and %d",
					t.ID, t.SymbolCount, ct.MinSymbolsToMatch, ct.GridSize)
			}
			if t.PayoutCoins.IsNegative() || t.PayoutGems.IsNegative() {
				return invalid("tier %d has a negative payout", t.ID)
			}
			if ct.MaxPrizeCoins.IsPositive() && t.PayoutCoins.GreaterThan(ct.MaxPrizeCoins) {
				return invalid("tier %d pays more coins than the card's max prize", t.ID)
			}
			if ct.MaxPrizeGems.IsPositive() && t.PayoutGems.GreaterThan(ct.MaxPrizeGems) {
				return invalid("tier %d pays more gems than the card's max prize", t.ID)
			}
			for _, limit := range []*int64{t.MaxWinsPerDay, t.MaxWinsTotal} {
				if limit != nil && *limit < 0 {
					return invalid("tier %d has a negative win cap", t.ID)
				}
			}
		}
		if sum.GreaterThan(decimal.NewFromInt(1)) {
			return invalid("card type %d: active tier probabilities sum to %s", ct.ID, sum)
		}
	}
	return nil
}

func invalid(format string, args ...interface{}) error {
	return errs.E(errs.KindInvalidArgument, format, args...)
}

type CardTypeWriter interface {
	UpsertCardType(ctx context.Context, ct *models.CardType) error
}

type PrizeTierWriter interface {
	UpsertPrizeTier(ctx context.Context, t *models.PrizeTier) error
}

// Seed writes every card type and then its tiers. Tier counters already in the
// database are kept.
func (c *Catalog) Seed(ctx context.Context, types CardTypeWriter, tiers PrizeTierWriter) error {
	for i := range c.CardTypes {
		e := &c.CardTypes[i]
		if err := types.UpsertCardType(ctx, &e.CardType); err != nil {
			return err
		}
		for j := range e.PrizeTiers {
			if err := tiers.UpsertPrizeTier(ctx, &e.PrizeTiers[j]); err != nil {
				return err
			}
		}
		log.WithFields(log.Fields{"card_type": e.ID, "tiers": len(e.PrizeTiers)}).Info("catalog entry seeded")
	}
	return nil
}
