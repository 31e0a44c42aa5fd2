package game

import (
	"math/rand/v2"
	"sort"

	"github.com/avvvet/scratch-services/internal/scratchsvc/errs"
	"github.com/avvvet/scratch-services/internal/scratchsvc/models"
)

// Blank is the neutral filler. It never counts towards a match.
const Blank = "blank"

const DefaultMaxFillerAttempts = 8

type LayoutConfig struct {
	GridSize          int
	MatchCount        int
	Symbols           []string
	MaxFillerAttempts int
}

// Layout turns an outcome into one symbol per area. A winning grid holds exactly
// WinningCount copies of the winning symbol and no other symbol reaches MatchCount.
// A losing grid holds no symbol at or above MatchCount.
func Layout(rng *rand.Rand, cfg LayoutConfig, o models.Outcome) ([]string, error) {
	if cfg.GridSize < 1 || cfg.MatchCount < 2 {
		return nil, errs.E(errs.KindInvalidArgument, "invalid layout: grid %d, match %d", cfg.GridSize, cfg.MatchCount)
	}
	if cfg.MaxFillerAttempts <= 0 {
		cfg.MaxFillerAttempts = DefaultMaxFillerAttempts
	}
	pool := symbolPool(cfg.Symbols)

	var grid []string
	if o.IsWinner {
		if o.WinningCount < 1 || o.WinningCount > cfg.GridSize || o.WinningSymbol == "" || o.WinningSymbol == Blank {
			return nil, errs.E(errs.KindInvalidArgument, "invalid winning combination %dx%q for grid %d",
				o.WinningCount, o.WinningSymbol, cfg.GridSize)
		}
		grid = winningGrid(rng, cfg, pool, o)
	} else {
		grid = losingGrid(rng, cfg, pool)
	}

	rng.Shuffle(len(grid), func(i, j int) { grid[i], grid[j] = grid[j], grid[i] })
	return grid, nil
}

// Replay rebuilds a card's grid from its seed. The recorded tier draws are consumed
// first so the layout reads the stream from the same position it did at purchase.
func Replay(seed string, cfg LayoutConfig, o models.Outcome) ([]string, error) {
	rng, err := NewRand(seed)
	if err != nil {
		return nil, err
	}
	for i := 0; i < o.Draws; i++ {
		rng.Float64()
	}
	return Layout(rng, cfg, o)
}

func winningGrid(rng *rand.Rand, cfg LayoutConfig, pool []string, o models.Outcome) []string {
	grid := make([]string, cfg.GridSize)
	for _, pos := range rng.Perm(cfg.GridSize)[:o.WinningCount] {
		grid[pos] = o.WinningSymbol
	}

	fillers := make([]string, 0, len(pool))
	for _, s := range pool {
		if s != o.WinningSymbol {
			fillers = append(fillers, s)
		}
	}

	counts := make(map[string]int)
	for i := range grid {
		if grid[i] != "" {
			continue
		}
		sym := Blank
		for a := 0; a < cfg.MaxFillerAttempts && len(fillers) > 0; a++ {
			s := fillers[rng.IntN(len(fillers))]
			if counts[s]+1 < cfg.MatchCount {
				sym = s
				break
			}
		}
		grid[i] = sym
		counts[sym]++
	}
	return grid
}

func losingGrid(rng *rand.Rand, cfg LayoutConfig, pool []string) []string {
	grid := make([]string, cfg.GridSize)
	for i := range grid {
		if len(pool) == 0 {
			grid[i] = Blank
			continue
		}
		grid[i] = pool[rng.IntN(len(pool))]
	}

	// pool order keeps the replacement pass reproducible from the seed
	for changed := true; changed; {
		changed = false
		for _, s := range pool {
			var positions []int
			for i, g := range grid {
				if g == s {
					positions = append(positions, i)
				}
			}
			if len(positions) < cfg.MatchCount {
				continue
			}
			rng.Shuffle(len(positions), func(i, j int) { positions[i], positions[j] = positions[j], positions[i] })
			for _, pos := range positions[:len(positions)-(cfg.MatchCount-1)] {
				grid[pos] = Blank
			}
			changed = true
		}
	}
	return grid
}

// symbolPool dedupes the configured symbols, keeping order and dropping Blank.
func symbolPool(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	pool := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s == "" || s == Blank || seen[s] {
			continue
		}
		seen[s] = true
		pool = append(pool, s)
	}
	return pool
}

// Qualifying lists the non-blank symbols that appear at least threshold times, sorted.
func Qualifying(grid []string, threshold int) []string {
	counts := make(map[string]int)
	for _, s := range grid {
		if s != Blank {
			counts[s]++
		}
	}
	var out []string
	for s, n := range counts {
		if n >= threshold {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// Count returns how many times sym appears in grid.
func Count(grid []string, sym string) int {
	n := 0
	for _, s := range grid {
		if s == sym {
			n++
		}
	}
	return n
}
