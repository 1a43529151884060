// Command devtoken prints a signed access token for local testing. It reads
// the same configuration as the server, so the token validates against it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/quickserve/dispatch-api/internal/config"
	"github.com/quickserve/dispatch-api/internal/domain"
	"github.com/quickserve/dispatch-api/internal/service/auth"
)

func main() {
	userID := flag.Int64("user", 0, "user ID to put in the token")
	role := flag.String("role", "customer", "role claim: customer, provider or admin")
	flag.Parse()

	token, err := generate(*userID, *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "devtoken: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

func generate(userID int64, rawRole string) (string, error) {
	if userID <= 0 {
		return "", fmt.Errorf("-user must be a positive ID")
	}
	role, err := domain.ParseRole(rawRole)
	if err != nil {
		return "", err
	}

	cfg, err := config.Load()
	if err != nil {
		return "", fmt.Errorf("loading configuration: %w", err)
	}
	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return "", err
	}
	return jwtService.GenerateToken(context.Background(), userID, role)
}
