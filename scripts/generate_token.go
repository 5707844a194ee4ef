package main

import (
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/your-org/storefront-sync/internal/config"
	"github.com/your-org/storefront-sync/internal/infrastructure/database/postgres"
	"github.com/your-org/storefront-sync/internal/pkg/auth"
)

// Mints an access token for one of the seeded demo users, or any user id.
func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run scripts/generate_token.go <shopper|admin|user-uuid>")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Error loading configuration:", err)
	}

	var (
		userID  uuid.UUID
		isAdmin bool
		email   string
	)
	switch os.Args[1] {
	case "shopper":
		userID, email = postgres.DemoShopperID, "test1@example.com"
	case "admin":
		userID, email, isAdmin = postgres.DemoAdminID, "admin@example.com", true
	default:
		userID, err = uuid.Parse(os.Args[1])
		if err != nil {
			log.Fatal("Invalid user id:", err)
		}
	}

	token, err := auth.NewJWTManager(cfg.JWT).GenerateAccessToken(userID, email, isAdmin)
	if err != nil {
		log.Fatal("Error generating token:", err)
	}

	fmt.Printf("User: %s\n", userID)
	fmt.Printf("Expires in: %s\n", cfg.JWT.AccessTokenExpiry)
	fmt.Printf("Token: %s\n", token)

	if _, err := auth.NewJWTManager(cfg.JWT).ValidateAccessToken(token); err != nil {
		log.Fatal("Token verification failed:", err)
	}

	fmt.Println("✅ Token verified successfully!")
}
