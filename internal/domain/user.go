package domain

import (
	"strings"
	"time"
)

// Role identifies what a user is allowed to do. A user's role is fixed at
// creation.
type Role string

// Roles carried in identity claims.
const (
	RoleCustomer Role = "customer"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"

	// RoleSystem is the actor used for transitions the service performs on
	// its own (stale request expiry). It never appears in a token and
	// ParseRole rejects it.
	RoleSystem Role = "system"
)

// ParseRole converts a claim value into a Role. Matching is case-insensitive
// and ignores surrounding whitespace.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleCustomer, RoleProvider, RoleAdmin:
		return r, nil
	default:
		return "", NewValidationError("role", "must be one of customer, provider, admin", nil)
	}
}

// Identity is the already-verified caller of an engine operation.
type Identity struct {
	UserID int64
	Role   Role
}

// Validate checks that the identity is usable.
func (i Identity) Validate() error {
	if i.UserID <= 0 {
		return NewValidationError("user_id", "must be positive", nil)
	}
	if _, err := ParseRole(string(i.Role)); err != nil && i.Role != RoleSystem {
		return err
	}
	return nil
}

// User is a registered account.
type User struct {
	ID        int64     `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Customer is the customer profile of a user. It owns requests.
type Customer struct {
	ID     int64 `json:"id"`
	UserID int64 `json:"user_id"`
}

// CustomerAccount is a customer profile with the account it belongs to.
type CustomerAccount struct {
	CustomerID int64     `json:"customer_id"`
	UserID     int64     `json:"user_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	CreatedAt  time.Time `json:"created_at"`
}
