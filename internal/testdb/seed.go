package testdb

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/quickserve/dispatch-api/internal/domain"
	"github.com/stretchr/testify/require"
)

// InsertUser creates a user and returns its id.
func InsertUser(t *testing.T, db *sql.DB, name string, role domain.Role) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(`
		INSERT INTO users (full_name, email, role) VALUES ($1, $2, $3) RETURNING id
	`, name, fmt.Sprintf("%s-%s@example.com", role, name), string(role)).Scan(&id)
	require.NoError(t, err, "failed to insert user")
	return id
}

// InsertCustomer creates a customer user and profile and returns the
// user id and customer id.
func InsertCustomer(t *testing.T, db *sql.DB, name string) (userID, customerID int64) {
	t.Helper()
	userID = InsertUser(t, db, name, domain.RoleCustomer)
	err := db.QueryRow(`INSERT INTO customers (user_id) VALUES ($1) RETURNING id`, userID).Scan(&customerID)
	require.NoError(t, err, "failed to insert customer")
	return userID, customerID
}

// InsertProvider creates a provider user and profile and returns the user
// id and provider id.
func InsertProvider(t *testing.T, db *sql.DB, name, serviceType string, basePrice float64, kyc domain.KYCStatus, online bool) (userID, providerID int64) {
	t.Helper()
	userID = InsertUser(t, db, name, domain.RoleProvider)
	err := db.QueryRow(`
		INSERT INTO providers (user_id, service_type, base_price, kyc_status, is_online)
		VALUES ($1, $2, $3, $4, $5) RETURNING id
	`, userID, serviceType, basePrice, string(kyc), online).Scan(&providerID)
	require.NoError(t, err, "failed to insert provider")
	return userID, providerID
}
