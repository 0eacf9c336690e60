package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// --- Context Keys ---

// contextKey is a custom type used for context keys to avoid collisions.
type contextKey string

const (
	UserIDKey contextKey = "userID"
	TreeIDKey contextKey = "treeID"
)

// --- JWT Claims ---

// CustomClaims includes standard JWT claims plus the genealogy-specific
// ones: the user and the family tree the session is scoped to. Token
// issuance lives with the identity provider; this service only validates.
type CustomClaims struct {
	UserID uuid.UUID `json:"user_id"`
	TreeID string    `json:"tree_id,omitempty"`
	jwt.RegisteredClaims
}

// NewAccessToken signs a token for the given user and tree. Used by tests
// and local tooling; production tokens come from the identity provider.
func NewAccessToken(userID uuid.UUID, treeID, jwtSecret string, expiration time.Duration) (string, error) {
	claims := CustomClaims{
		UserID: userID,
		TreeID: treeID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Subject:   userID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtSecret))
}
