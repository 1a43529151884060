package auth

import (
	"context"
	"time"

	"github.com/quickserve/dispatch-api/internal/domain"
)

// JWTService issues and verifies the bearer tokens that carry a caller's
// identity.
type JWTService interface {
	// GenerateToken creates a signed access token for userID acting as role.
	GenerateToken(ctx context.Context, userID int64, role domain.Role) (string, error)

	// ValidateToken verifies tokenString and returns its normalised claims.
	// Tokens may name the user in "user_id" or "sub" and the role in "role"
	// or "user_role"; roles are matched case-insensitively.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims is the verified content of an access token.
type Claims struct {
	UserID    int64       `json:"user_id"`
	Role      domain.Role `json:"role"`
	Subject   string      `json:"sub,omitempty"`
	IssuedAt  time.Time   `json:"iat,omitempty"`
	ExpiresAt time.Time   `json:"exp,omitempty"`
	ID        string      `json:"jti,omitempty"`
}

// Identity returns the engine identity the claims stand for.
func (c *Claims) Identity() domain.Identity {
	return domain.Identity{UserID: c.UserID, Role: c.Role}
}
