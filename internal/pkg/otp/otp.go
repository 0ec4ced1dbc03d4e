// Package otp generates and hashes numeric one-time codes.
package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

const DefaultLength = 6

var ten = big.NewInt(10)

// Generate returns a code of length uniformly random decimal digits.
func Generate(length int) (string, error) {
	if length <= 0 {
		length = DefaultLength
	}
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("generate otp: %w", err)
		}
		b[i] = byte('0' + n.Int64())
	}
	return string(b), nil
}

// Hasher hashes codes with bcrypt. Codes are short-lived, so a low cost is acceptable.
type Hasher struct {
	Cost int
}

func (h Hasher) Hash(code string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(code), cost)
	if err != nil {
		return "", fmt.Errorf("hash otp: %w", err)
	}
	return string(b), nil
}

func (h Hasher) Verify(candidate, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)) == nil
}
