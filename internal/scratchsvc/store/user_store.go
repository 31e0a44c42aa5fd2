package store

import (
	"context"
	"fmt"

	"github.com/avvvet/scratch-services/internal/scratchsvc/errs"
	"github.com/avvvet/scratch-services/internal/scratchsvc/models"
)

type UserStore struct {
	db DBTX
}

func NewUserStore(db DBTX) *UserStore {
	return &UserStore{db: db}
}

func (r *UserStore) CreateUser(ctx context.Context, user models.User) (int64, error) {
	var userId int64

	query := `
        INSERT INTO users (user_id, name, email, phone, avatar, status, age_verified)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING user_id;
    `

	err := r.db.QueryRow(ctx, query, user.UserId, user.Name, user.Email, user.Phone, user.Avatar,
		user.Status, user.AgeVerified).Scan(&userId)
	if err != nil {
		return 0, fmt.Errorf("could not create user: %w", err)
	}

	return userId, nil
}

func (r *UserStore) GetByID(ctx context.Context, id int64) (*models.User, error) {
	row := r.db.QueryRow(ctx, `
        SELECT user_id, name, email, phone, avatar, status, age_verified, created_at, updated_at
        FROM users
        WHERE user_id = $1
    `, id)

	u := &models.User{}
	err := row.Scan(
		&u.UserId,
		&u.Name,
		&u.Email,
		&u.Phone,
		&u.Avatar,
		&u.Status,
		&u.AgeVerified,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, notFound("user", id)
		}
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}

	return u, nil
}

// LockForUpdate takes the holder's row lock for the rest of the transaction, which
// serialises that holder's purchases and ledger movements.
func (r *UserStore) LockForUpdate(ctx context.Context, id int64) error {
	var uid int64
	err := r.db.QueryRow(ctx, `SELECT user_id FROM users WHERE user_id = $1 FOR UPDATE`, id).Scan(&uid)
	if err != nil {
		if isNoRows(err) {
			return errs.E(errs.KindForbidden, "holder %d is not registered", id)
		}
		return fmt.Errorf("lock user %d: %w", id, err)
	}
	return nil
}

// CheckEligibility stands in for the KYC/age collaborator: an active, age verified user.
func (r *UserStore) CheckEligibility(ctx context.Context, id int64) error {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		if errs.Is(err, errs.KindNotFound) {
			return errs.E(errs.KindForbidden, "holder %d is not registered", id)
		}
		return err
	}
	if u.Status != models.UserStatusActive {
		return errs.E(errs.KindForbidden, "holder %d is %s", id, u.Status)
	}
	if !u.AgeVerified {
		return errs.E(errs.KindForbidden, "holder %d has not passed age verification", id)
	}
	return nil
}
