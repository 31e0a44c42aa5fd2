package game

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/avvvet/scratch-services/internal/scratchsvc/models"
)

type commitment struct {
	InstanceID    string   `json:"instance_id"`
	IsWinner      bool     `json:"is_winner"`
	PrizeTierID   *int64   `json:"prize_tier_id"`
	PayoutCoins   string   `json:"payout_coins"`
	PayoutGems    string   `json:"payout_gems"`
	WinningSymbol string   `json:"winning_symbol"`
	WinningCount  int      `json:"winning_count"`
	BonusItems    []string `json:"bonus_items"`
	Draws         int      `json:"draws"`
	Seed          string   `json:"seed"`
}

// CommitmentHash is the hex sha256 of the canonical {instance id, outcome, seed} payload.
// Amounts are fixed to two places so a storage round trip cannot change the digest.
func CommitmentHash(instanceID string, o models.Outcome, seed string) (string, error) {
	payload, err := json.Marshal(commitment{
		InstanceID:    instanceID,
		IsWinner:      o.IsWinner,
		PrizeTierID:   o.PrizeTierID,
		PayoutCoins:   o.PayoutCoins.StringFixed(2),
		PayoutGems:    o.PayoutGems.StringFixed(2),
		WinningSymbol: o.WinningSymbol,
		WinningCount:  o.WinningCount,
		BonusItems:    append([]string{}, o.BonusItems...),
		Draws:         o.Draws,
		Seed:          seed,
	})
	if err != nil {
		return "", fmt.Errorf("marshal commitment: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// VerifyCommitment recomputes the card's hash and compares it with the stored one.
func VerifyCommitment(c *models.CardInstance) (bool, string, error) {
	h, err := CommitmentHash(c.ID, c.Outcome, c.Seed)
	if err != nil {
		return false, "", err
	}
	return h == c.VerificationHash, h, nil
}
