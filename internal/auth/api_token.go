package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

const apiTokenPrefix = "sc_"

// APITokenGenerator issues long-lived tokens for automation clients.
// Only the sha256 of a token is stored.
type APITokenGenerator struct{}

func NewAPITokenGenerator() *APITokenGenerator {
	return &APITokenGenerator{}
}

// GenerateToken creates a new API token.
// Format: sc_<uuid>_<random_secret>
func (g *APITokenGenerator) GenerateToken() (string, string, error) {
	id := uuid.New()

	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate secret: %w", err)
	}
	secret := hex.EncodeToString(secretBytes)

	token := fmt.Sprintf("%s%s_%s", apiTokenPrefix, id.String(), secret)
	hash := g.HashToken(token)

	return token, hash, nil
}

// HashToken hashes an API token for storage.
func (g *APITokenGenerator) HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// ValidateTokenFormat checks if a token has the expected shape.
func (g *APITokenGenerator) ValidateTokenFormat(token string) bool {
	if len(token) < len(apiTokenPrefix)+36+1+64 {
		return false
	}
	return token[:len(apiTokenPrefix)] == apiTokenPrefix
}
