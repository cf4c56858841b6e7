package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
)

// TokenBytes is the entropy of opaque tokens (256 bits).
const TokenBytes = 32

func GenerateSessionToken() uuid.UUID {
	return uuid.New()
}

// GenerateOpaqueToken returns a URL-safe random token carrying TokenBytes of entropy.
func GenerateOpaqueToken() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateFileName returns a random file name keeping ext.
func GenerateFileName(ext string) string {
	return uuid.NewString() + ext
}
