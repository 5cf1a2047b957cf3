package records

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// TokenAuth maps bearer tokens to user ids. Only token hashes are held.
type TokenAuth struct {
	byHash map[string]string
}

// NewTokenAuth builds an authenticator from a user id -> token map.
func NewTokenAuth(tokens map[string]string) *TokenAuth {
	a := &TokenAuth{byHash: make(map[string]string, len(tokens))}
	for user, token := range tokens {
		user = normalizeUser(user)
		token = strings.TrimSpace(token)
		if user == "" || token == "" {
			continue
		}
		a.byHash[hashToken(token)] = user
	}
	return a
}

// Authenticate returns the user owning token.
func (a *TokenAuth) Authenticate(token string) (string, bool) {
	if a == nil || token == "" {
		return "", false
	}
	h := hashToken(token)
	for known, user := range a.byHash {
		if subtle.ConstantTimeCompare([]byte(known), []byte(h)) == 1 {
			return user, true
		}
	}
	return "", false
}

func bearerToken(header string) string {
	const prefix = "bearer "
	header = strings.TrimSpace(header)
	if len(header) < len(prefix) || strings.ToLower(header[:len(prefix)]) != prefix {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
