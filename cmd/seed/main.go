// seed creates one user per role in the local dev database so every guarded
// page can be tried out.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/ErlanBelekov/safejob-auth/internal/domain"
	"github.com/ErlanBelekov/safejob-auth/internal/infrastructure/postgres"
	ctxlog "github.com/ErlanBelekov/safejob-auth/internal/log"
)

type seedUser struct {
	email string
	role  domain.Role
}

var users = []seedUser{
	{"candidate@test.local", domain.RoleCandidate},
	{"employer@test.local", domain.RoleEmployer},
	{"admin@test.local", domain.RoleAdmin},
}

func main() {
	ctx := context.Background()
	logger := ctxlog.New("seed", "local", slog.LevelWarn)

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set, run: direnv allow")
	}

	m, err := postgres.NewMigrator(dbURL)
	if err != nil {
		log.Fatalf("migrator: %v", err)
	}
	if err := m.Up(); err != nil {
		_ = m.Close()
		log.Fatalf("migrate: %v", err)
	}
	_ = m.Close()

	pool, err := postgres.NewPool(ctx, dbURL, logger)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	repo := postgres.NewUserRepository(pool)

	fmt.Println("Seed complete")
	fmt.Println()
	for _, u := range users {
		user, err := repo.Upsert(ctx, u.email, u.role)
		if err != nil {
			pool.Close()
			log.Fatalf("upsert %s: %v", u.email, err)
		}
		fmt.Printf("  %-9s %-22s %s\n", user.Role, user.Email, user.ID)
	}

	fmt.Println()
	fmt.Println("How to sign in:")
	fmt.Println()
	fmt.Println("  sessionctl request employer@test.local")
	fmt.Println("  # copy the token from the authserver log, then:")
	fmt.Println("  sessionctl redeem TOKEN")
	fmt.Println("  sessionctl open /employer/jobs   # allowed")
	fmt.Println("  sessionctl open /admin           # redirected to /unauthorized")
}
