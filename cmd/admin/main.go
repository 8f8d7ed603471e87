// Package main provides account administration utilities for Planify.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"planify/internal/config"
	"planify/internal/database"
	"planify/internal/models"
	"planify/internal/password"
	"planify/internal/repository"
	"planify/internal/service"
)

const usage = `Usage:
  go run ./cmd/admin set-role <user_id> <role>  - Change a user's role
  go run ./cmd/admin block <user_id>            - Block a user
  go run ./cmd/admin unblock <user_id>          - Unblock a user
  go run ./cmd/admin activate <user_id>         - Reactivate a deactivated user
  go run ./cmd/admin list-admins                - List all admins`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	accounts := service.NewAccountService(
		repository.NewUserRepository(db, cfg.DBQueryTimeout),
		password.NewHasher(cfg.BcryptCost, 1),
		nil, nil, nil,
	)

	if err := run(context.Background(), accounts, os.Args[1:]); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func run(ctx context.Context, accounts *service.AccountService, args []string) error {
	command := args[0]

	switch command {
	case "set-role":
		if len(args) < 3 {
			return fmt.Errorf("usage: go run ./cmd/admin set-role <user_id> <role>")
		}
		id, err := parseUserID(args[1])
		if err != nil {
			return err
		}
		user, err := accounts.SetRole(ctx, id, service.RoleUpdate{Role: models.Role(args[2])})
		if err != nil {
			return err
		}
		fmt.Printf("User %s (ID: %d) now has role %s\n", user.Email, user.ID, user.Role)

	case "block", "unblock", "activate":
		if len(args) < 2 {
			return fmt.Errorf("usage: go run ./cmd/admin %s <user_id>", command)
		}
		id, err := parseUserID(args[1])
		if err != nil {
			return err
		}
		user, err := accounts.SetStatus(ctx, id, statusFor(command))
		if err != nil {
			return err
		}
		fmt.Printf("User %s (ID: %d) active=%t blocked=%t\n", user.Email, user.ID, user.IsActive, user.IsBlocked)

	case "list-admins":
		admins, _, err := accounts.ListUsers(ctx, repository.ListUsersFilter{Role: models.RoleAdmin})
		if err != nil {
			return err
		}
		if len(admins) == 0 {
			fmt.Println("No admins found in the system")
			return nil
		}
		fmt.Println("Current Admins:")
		for _, admin := range admins {
			fmt.Printf("ID: %d | Name: %s | Email: %s | active=%t\n", admin.ID, admin.FullName(), admin.Email, admin.IsActive)
		}

	default:
		return fmt.Errorf("unknown command: %s\n%s", command, usage)
	}
	return nil
}

func statusFor(command string) service.StatusUpdate {
	yes, no := true, false
	switch command {
	case "block":
		return service.StatusUpdate{IsBlocked: &yes}
	case "unblock":
		return service.StatusUpdate{IsBlocked: &no}
	default:
		return service.StatusUpdate{IsActive: &yes}
	}
}

func parseUserID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid user id %q", raw)
	}
	return uint(id), nil
}
