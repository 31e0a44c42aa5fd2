package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/avvvet/scratch-services/internal/scratchsvc/errs"
	"github.com/avvvet/scratch-services/internal/scratchsvc/models"
)

const CollectionName = "card_commitments"

// DefaultRetention is how long a commitment outlives its card.
const DefaultRetention = 90 * 24 * time.Hour

// Commitment is the archived copy of a purchase commitment. The seed stays in the
// card store; the archive only has to prove the hash was fixed at purchase time.
type Commitment struct {
	CardID           string    `bson:"_id"`
	CardTypeID       int64     `bson:"card_type_id"`
	UserID           int64     `bson:"user_id"`
	IsWinner         bool      `bson:"is_winner"`
	PrizeTierID      *int64    `bson:"prize_tier_id,omitempty"`
	VerificationHash string    `bson:"verification_hash"`
	PurchasedAt      time.Time `bson:"purchased_at"`
	Instance         string    `bson:"instance"`
	ExpiresAt        time.Time `bson:"expires_at"`
}

type collection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
}

type Archive struct {
	coll      collection
	retention time.Duration
	instance  string
}

func NewArchive(db *mongo.Database, instance string, retention time.Duration) *Archive {
	return newArchive(db.Collection(CollectionName), instance, retention)
}

func newArchive(coll collection, instance string, retention time.Duration) *Archive {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Archive{coll: coll, retention: retention, instance: instance}
}

func (a *Archive) document(c *models.CardInstance) Commitment {
	return Commitment{
		CardID:           c.ID,
		CardTypeID:       c.CardTypeID,
		UserID:           c.UserID,
		IsWinner:         c.Outcome.IsWinner,
		PrizeTierID:      c.Outcome.PrizeTierID,
		VerificationHash: c.VerificationHash,
		PurchasedAt:      c.PurchasedAt,
		Instance:         a.instance,
		ExpiresAt:        c.ExpiresAt.Add(a.retention),
	}
}

// RecordCommitment stores the card's commitment. Recording the same card twice is a no-op.
func (a *Archive) RecordCommitment(ctx context.Context, c *models.CardInstance) error {
	_, err := a.coll.InsertOne(ctx, a.document(c))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("archive commitment %s: %w", c.ID, err)
	}
	return nil
}

// ArchivedHash returns the hash recorded at purchase time.
func (a *Archive) ArchivedHash(ctx context.Context, cardID string) (string, error) {
	var doc Commitment
	err := a.coll.FindOne(ctx, bson.M{"_id": cardID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", errs.E(errs.KindNotFound, "no archived commitment for card %s", cardID)
		}
		return "", fmt.Errorf("find commitment %s: %w", cardID, err)
	}
	return doc.VerificationHash, nil
}
