package utils

import (
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash equalises timing when the account does not exist.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("member-onboarding/dummy"), bcrypt.DefaultCost)

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// BurnPasswordCheck spends the same time as a real comparison.
func BurnPasswordCheck(password string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}

// CheckPasswordPolicy returns every rule the password breaks, nil when it passes.
func CheckPasswordPolicy(policy PasswordPolicy, password string) []string {
	var violations []string

	length := len([]rune(password))
	if policy.MinLength > 0 && length < policy.MinLength {
		violations = append(violations, fmt.Sprintf("must be at least %d characters", policy.MinLength))
	}
	// bcrypt only looks at the first 72 bytes
	maxLen := policy.MaxLength
	if maxLen <= 0 || maxLen > 72 {
		maxLen = 72
	}
	if len(password) > maxLen {
		violations = append(violations, fmt.Sprintf("must be at most %d bytes", maxLen))
	}

	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}

	if policy.RequireUpper && !upper {
		violations = append(violations, "must contain an uppercase letter")
	}
	if policy.RequireLower && !lower {
		violations = append(violations, "must contain a lowercase letter")
	}
	if policy.RequireDigit && !digit {
		violations = append(violations, "must contain a digit")
	}
	if policy.RequireSymbol && !symbol {
		violations = append(violations, "must contain a symbol")
	}

	return violations
}
