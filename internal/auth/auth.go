// Package auth reads holders out of the HS256 tokens issued by the identity provider.
package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/jwtauth"
)

const (
	ClaimUserID = "user_id"
	// ClaimAgeVerified is set by the identity provider once the holder passed the age check.
	ClaimAgeVerified = "age_verified"
)

var (
	ErrNoSecret = errors.New("JWT_SECRET_KEY is empty")
	ErrNoHolder = errors.New("token has no user_id")
)

func New(secret string) (*jwtauth.JWTAuth, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	return jwtauth.New("HS256", []byte(secret), nil), nil
}

// Issue signs a token for userID. Mostly useful for tests and local tooling.
func Issue(ja *jwtauth.JWTAuth, userID int64, ttl time.Duration) (string, error) {
	return IssueClaims(ja, map[string]interface{}{ClaimUserID: userID}, ttl)
}

func IssueClaims(ja *jwtauth.JWTAuth, claims map[string]interface{}, ttl time.Duration) (string, error) {
	if ttl > 0 {
		jwtauth.SetExpiry(claims, time.Now().Add(ttl))
	}
	_, tok, err := ja.Encode(claims)
	return tok, err
}

// UserID accepts the claim as a JSON number or a numeric string.
func UserID(claims map[string]interface{}) (int64, bool) {
	var id int64
	switch v := claims[ClaimUserID].(type) {
	case float64:
		if v != float64(int64(v)) {
			return 0, false
		}
		id = int64(v)
	case int64:
		id = v
	case int:
		id = int64(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		id = n
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, false
		}
		id = n
	default:
		return 0, false
	}
	return id, id > 0
}

// AgeVerified only accepts a boolean true; anything else counts as unverified.
func AgeVerified(claims map[string]interface{}) bool {
	v, ok := claims[ClaimAgeVerified].(bool)
	return ok && v
}

// Holder is the identity a verified token carries.
type Holder struct {
	ID          int64
	AgeVerified bool
}

// HolderFromRequest is FromRequest plus the age claim.
func HolderFromRequest(r *http.Request) (Holder, error) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return Holder{}, err
	}
	id, ok := UserID(claims)
	if !ok {
		return Holder{}, ErrNoHolder
	}
	return Holder{ID: id, AgeVerified: AgeVerified(claims)}, nil
}

// FromRequest returns the holder of a request that already went through
// jwtauth.Verifier and jwtauth.Authenticator.
func FromRequest(r *http.Request) (int64, error) {
	h, err := HolderFromRequest(r)
	return h.ID, err
}
