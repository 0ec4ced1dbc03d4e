// Package password holds the password policy and bcrypt hashing.
package password

import (
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// Policy rule identifiers returned by CheckPolicy.
const (
	RuleMinLength = "min_length"
	RuleMaxLength = "max_length"
	RuleUppercase = "uppercase"
	RuleLowercase = "lowercase"
	RuleDigit     = "digit"
	RuleSpecial   = "special"
)

const (
	MinLength = 8
	// MaxLength is bcrypt's input limit in bytes.
	MaxLength = 72
)

// Rule describes one policy requirement for clients.
type Rule struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

var rules = []Rule{
	{RuleMinLength, fmt.Sprintf("at least %d characters", MinLength)},
	{RuleMaxLength, fmt.Sprintf("at most %d bytes", MaxLength)},
	{RuleUppercase, "at least one uppercase letter"},
	{RuleLowercase, "at least one lowercase letter"},
	{RuleDigit, "at least one digit"},
	{RuleSpecial, "at least one special character"},
}

// Requirements lists the policy in display order.
func Requirements() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// Describe returns the description of a rule id.
func Describe(id string) string {
	for _, r := range rules {
		if r.ID == id {
			return r.Description
		}
	}
	return id
}

// CheckPolicy returns the ids of unmet rules; nil means the password is acceptable.
func CheckPolicy(pw string) []string {
	var upper, lower, digit, special bool
	n := 0
	for _, r := range pw {
		n++
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsSpace(r):
			special = true
		}
	}
	var unmet []string
	if n < MinLength {
		unmet = append(unmet, RuleMinLength)
	}
	if len(pw) > MaxLength {
		unmet = append(unmet, RuleMaxLength)
	}
	if !upper {
		unmet = append(unmet, RuleUppercase)
	}
	if !lower {
		unmet = append(unmet, RuleLowercase)
	}
	if !digit {
		unmet = append(unmet, RuleDigit)
	}
	if !special {
		unmet = append(unmet, RuleSpecial)
	}
	return unmet
}

type Hasher struct {
	Cost int
}

func (h Hasher) Hash(pw string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

func (h Hasher) Verify(candidate, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)) == nil
}
