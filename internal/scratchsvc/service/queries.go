package service

import (
	"context"
	"slices"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/avvvet/scratch-services/internal/scratchsvc/errs"
	"github.com/avvvet/scratch-services/internal/scratchsvc/game"
	"github.com/avvvet/scratch-services/internal/scratchsvc/models"
)

// GetHolderCards lists the holder's cards, newest first. Views are masked.
func (s *Service) GetHolderCards(ctx context.Context, holderID int64, status *models.CardStatus) ([]*models.CardInstance, error) {
	if status != nil && !status.Valid() {
		return nil, errs.E(errs.KindInvalidArgument, "unknown card status %q", *status)
	}
	cards, err := s.store.ListHolderCards(ctx, holderID, status)
	if err != nil {
		return nil, err
	}
	out := make([]*models.CardInstance, 0, len(cards))
	for _, c := range cards {
		out = append(out, c.Masked())
	}
	return out, nil
}

func (s *Service) GetCard(ctx context.Context, instanceID string, holderID int64) (*models.CardInstance, error) {
	c, err := s.store.GetCard(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if c.UserID != holderID {
		return nil, errs.E(errs.KindForbidden, "card %s belongs to another holder", instanceID)
	}
	return c.Masked(), nil
}

type Verification struct {
	InstanceID       string `json:"instance_id"`
	Valid            bool   `json:"valid"`
	StoredHash       string `json:"stored_hash"`
	RecomputedHash   string `json:"recomputed_hash,omitempty"`
	GridConsistent   bool   `json:"grid_consistent"`
	LayoutReproduced bool   `json:"layout_reproduced"`
	ArchiveMatches   *bool  `json:"archive_matches,omitempty"`
	Seed             string `json:"seed,omitempty"`
}

// VerifyCard recomputes the purchase commitment, checks that the stored grid shows
// exactly the committed outcome, replays the layout from the seed and, when an archive
// is wired, checks that the stored hash is the one archived at purchase. Until the card
// is completed the seed stays hidden and only the stored hash is returned.
func (s *Service) VerifyCard(ctx context.Context, instanceID string) (*Verification, error) {
	c, err := s.store.GetCard(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	v := &Verification{InstanceID: c.ID, StoredHash: c.VerificationHash}
	if c.Status != models.StatusCompleted {
		return v, nil
	}

	ok, recomputed, err := game.VerifyCommitment(c)
	if err != nil {
		return nil, err
	}
	ct, err := s.store.GetCardType(ctx, c.CardTypeID)
	if err != nil {
		return nil, err
	}

	v.RecomputedHash = recomputed
	v.Seed = c.Seed
	v.GridConsistent = gridMatchesOutcome(c, ct.MinSymbolsToMatch)
	v.LayoutReproduced = s.layoutReproduced(c, ct)
	v.Valid = ok && v.GridConsistent && v.LayoutReproduced

	if s.opts.Archive != nil {
		archived, err := s.opts.Archive.ArchivedHash(ctx, c.ID)
		switch {
		case err == nil:
			match := archived == c.VerificationHash
			v.ArchiveMatches = &match
			v.Valid = v.Valid && match
		case !errs.Is(err, errs.KindNotFound):
			log.WithField("card", c.ID).Warnf("archived commitment lookup: %s", err)
		}
	}
	return v, nil
}

// layoutReproduced replays the purchase layout and compares it cell by cell.
func (s *Service) layoutReproduced(c *models.CardInstance, ct *models.CardType) bool {
	grid, err := game.Replay(c.Seed, s.layoutConfig(ct), c.Outcome)
	if err != nil {
		log.WithField("card", c.ID).Warnf("layout replay: %s", err)
		return false
	}
	return slices.Equal(grid, c.Grid)
}

func gridMatchesOutcome(c *models.CardInstance, threshold int) bool {
	q := game.Qualifying(c.Grid, threshold)
	if !c.Outcome.IsWinner {
		return len(q) == 0
	}
	return len(q) == 1 && q[0] == c.Outcome.WinningSymbol &&
		game.Count(c.Grid, c.Outcome.WinningSymbol) == c.Outcome.WinningCount
}

func (s *Service) GetWallet(ctx context.Context, holderID int64) (models.Wallet, error) {
	return s.store.GetWallet(ctx, holderID)
}

// ExpireCards retires every unfinished card whose expiry has passed.
func (s *Service) ExpireCards(ctx context.Context, now time.Time) (int, error) {
	refs, err := s.store.ExpireCards(ctx, now.UTC())
	if err != nil {
		return 0, err
	}
	if len(refs) > 0 {
		log.WithField("count", len(refs)).Info("cards expired")
		s.opts.Metrics.CardsExpired(len(refs))
		for _, ref := range refs {
			s.publish("card-expired", ref.UserID, ref)
		}
	}
	return len(refs), nil
}

// ResetDailyCounters starts a new supply day for every prize tier still on an older one.
func (s *Service) ResetDailyCounters(ctx context.Context, day time.Time) (int64, error) {
	n, err := s.store.ResetDailyCounters(ctx, startOfDay(day))
	if err != nil {
		return 0, err
	}
	log.WithField("tiers", n).Info("daily prize counters reset")
	return n, nil
}
