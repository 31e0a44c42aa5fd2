package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/avvvet/scratch-services/internal/scratchsvc/errs"
	"github.com/avvvet/scratch-services/internal/scratchsvc/models"
)

type CardStore struct {
	db DBTX
}

func NewCardStore(db DBTX) *CardStore {
	return &CardStore{db: db}
}

const cardColumns = `id, card_type_id, user_id, cost_amount, cost_currency, purchased_at,
	outcome, grid, status, areas, reveal_log, first_revealed_at, completed_at, reveal_duration_ms,
	prize_claimed, prize_claimed_at, COALESCE(settlement_ref, ''), seed, verification_hash, expires_at, version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (*models.CardInstance, error) {
	var (
		c                               models.CardInstance
		currency, status                string
		outcome, grid, areas, revealLog []byte
	)
	err := row.Scan(
		&c.ID,
		&c.CardTypeID,
		&c.UserID,
		&c.CostAmount,
		&currency,
		&c.PurchasedAt,
		&outcome,
		&grid,
		&status,
		&areas,
		&revealLog,
		&c.FirstRevealedAt,
		&c.CompletedAt,
		&c.RevealDurationMs,
		&c.PrizeClaimed,
		&c.PrizeClaimedAt,
		&c.SettlementRef,
		&c.Seed,
		&c.VerificationHash,
		&c.ExpiresAt,
		&c.Version,
	)
	if err != nil {
		return nil, err
	}
	c.CostCurrency = models.Currency(currency)
	c.Status = models.CardStatus(status)

	for _, f := range []struct {
		raw []byte
		dst any
	}{{outcome, &c.Outcome}, {grid, &c.Grid}, {areas, &c.Areas}, {revealLog, &c.RevealLog}} {
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return nil, fmt.Errorf("decode card %s: %w", c.ID, err)
		}
	}
	return &c, nil
}

type cardDocs struct {
	outcome, grid, areas, revealLog []byte
}

func encodeCard(c *models.CardInstance) (cardDocs, error) {
	var d cardDocs
	var err error
	if d.outcome, err = json.Marshal(c.Outcome); err != nil {
		return d, fmt.Errorf("encode outcome: %w", err)
	}
	if d.grid, err = json.Marshal(c.Grid); err != nil {
		return d, fmt.Errorf("encode grid: %w", err)
	}
	if d.areas, err = json.Marshal(c.Areas); err != nil {
		return d, fmt.Errorf("encode areas: %w", err)
	}
	log := c.RevealLog
	if log == nil {
		log = []models.RevealEvent{}
	}
	if d.revealLog, err = json.Marshal(log); err != nil {
		return d, fmt.Errorf("encode reveal log: %w", err)
	}
	return d, nil
}

func (s *CardStore) CreateCard(ctx context.Context, c *models.CardInstance) error {
	d, err := encodeCard(c)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO card_instances (id, card_type_id, user_id, cost_amount, cost_currency, purchased_at,
			outcome, grid, status, areas, reveal_log, seed, verification_hash, expires_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, c.ID, c.CardTypeID, c.UserID, c.CostAmount, string(c.CostCurrency), c.PurchasedAt,
		d.outcome, d.grid, string(c.Status), d.areas, d.revealLog, c.Seed, c.VerificationHash, c.ExpiresAt, c.Version)
	if err != nil {
		if isUniqueViolation(err) {
			return errs.E(errs.KindConflict, "card %s already exists", c.ID)
		}
		return fmt.Errorf("failed to create card: %w", err)
	}
	return nil
}

func (s *CardStore) GetCard(ctx context.Context, id string) (*models.CardInstance, error) {
	c, err := scanCard(s.db.QueryRow(ctx, `SELECT `+cardColumns+` FROM card_instances WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, notFound("card", id)
		}
		return nil, fmt.Errorf("failed to get card by id: %w", err)
	}
	return c, nil
}

// GetCardForUpdate locks the card row until the surrounding transaction ends.
func (s *CardStore) GetCardForUpdate(ctx context.Context, id string) (*models.CardInstance, error) {
	c, err := scanCard(s.db.QueryRow(ctx, `SELECT `+cardColumns+` FROM card_instances WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, notFound("card", id)
		}
		return nil, fmt.Errorf("failed to lock card: %w", err)
	}
	return c, nil
}

// UpdateCard writes the mutable state of the card if nobody else wrote it since it was
// read, and bumps c.Version on success.
func (s *CardStore) UpdateCard(ctx context.Context, c *models.CardInstance) error {
	d, err := encodeCard(c)
	if err != nil {
		return err
	}

	var ref *string
	if c.SettlementRef != "" {
		ref = &c.SettlementRef
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE card_instances
		SET status = $3, areas = $4, reveal_log = $5, first_revealed_at = $6, completed_at = $7,
		    reveal_duration_ms = $8, prize_claimed = $9, prize_claimed_at = $10, settlement_ref = $11,
		    version = version + 1
		WHERE id = $1 AND version = $2
	`, c.ID, c.Version, string(c.Status), d.areas, d.revealLog, c.FirstRevealedAt, c.CompletedAt,
		c.RevealDurationMs, c.PrizeClaimed, c.PrizeClaimedAt, ref)
	if err != nil {
		return fmt.Errorf("failed to update card: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return errs.E(errs.KindConflict, "card %s was modified concurrently", c.ID)
	}
	c.Version++
	return nil
}

// ListByUser returns the holder's cards, newest first, optionally filtered by status.
func (s *CardStore) ListByUser(ctx context.Context, userID int64, status *models.CardStatus) ([]*models.CardInstance, error) {
	var st *string
	if status != nil {
		v := string(*status)
		st = &v
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+cardColumns+`
		FROM card_instances
		WHERE user_id = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY purchased_at DESC
	`, userID, st)
	if err != nil {
		return nil, fmt.Errorf("list cards for user %d: %w", userID, err)
	}
	defer rows.Close()

	var cards []*models.CardInstance
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return cards, nil
}

// CountPurchases counts the holder's cards of a type bought at or after since (all time if nil).
func (s *CardStore) CountPurchases(ctx context.Context, userID, cardTypeID int64, since *time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM card_instances
		WHERE user_id = $1 AND card_type_id = $2 AND ($3::timestamptz IS NULL OR purchased_at >= $3)
	`, userID, cardTypeID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count purchases for user %d: %w", userID, err)
	}
	return n, nil
}

// ExpireOverdue moves every non-terminal card past its expiry to expired.
func (s *CardStore) ExpireOverdue(ctx context.Context, now time.Time) ([]models.CardRef, error) {
	rows, err := s.db.Query(ctx, `
		UPDATE card_instances
		SET status = 'expired', version = version + 1
		WHERE status IN ('unscratched', 'partially_scratched') AND expires_at <= $1
		RETURNING id, user_id
	`, now)
	if err != nil {
		return nil, fmt.Errorf("expire cards: %w", err)
	}
	defer rows.Close()

	var refs []models.CardRef
	for rows.Next() {
		var ref models.CardRef
		if err := rows.Scan(&ref.ID, &ref.UserID); err != nil {
			return nil, fmt.Errorf("scan expired card: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}
