// Command main seeds a development database with demo accounts.
package main

import (
	"context"
	"flag"
	"log"

	"planify/internal/config"
	"planify/internal/database"
	"planify/internal/password"
	"planify/internal/repository"
	"planify/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 25, "Number of users to create")
	pw := flag.String("password", seed.DefaultPassword, "Password shared by every seeded account")
	randSeed := flag.Int64("seed", 0, "Random seed (0 picks one)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	s := seed.NewSeeder(
		repository.NewUserRepository(db, cfg.DBQueryTimeout),
		password.NewHasher(cfg.BcryptCost, cfg.HashMaxConcurrency),
		*randSeed,
	)

	users, err := s.SeedUsers(context.Background(), *numUsers, *pw)
	if err != nil {
		log.Fatalf("User seeding failed: %v", err)
	}

	log.Printf("Created %d users. All of them use the password: %s", len(users), *pw)
}
