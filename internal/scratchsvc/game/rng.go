package game

import (
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
	"math/rand/v2"
)

const SeedSize = 32

// NewSeed returns a fresh random seed, hex encoded for storage.
func NewSeed() (string, error) {
	b := make([]byte, SeedSize)
	if _, err := crand.Read(b); err != nil {
		return "", fmt.Errorf("read seed: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NewRand builds the deterministic stream every draw of a card is taken from.
// The same seed always yields the same tier draw, filler placement and shuffle.
func NewRand(seedHex string) (*rand.Rand, error) {
	b, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	if len(b) != SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", SeedSize, len(b))
	}
	return rand.New(rand.NewChaCha8([SeedSize]byte(b))), nil
}
