// Package seed creates demo accounts for development databases.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"planify/internal/models"
	"planify/internal/repository"
)

// DefaultPassword is shared by every seeded account.
const DefaultPassword = "Password123"

var seedRoles = []string{
	string(models.RoleUser), string(models.RoleUser), string(models.RoleUser),
	string(models.RoleClubMember), string(models.RoleClubMember),
	string(models.RoleClubLead), string(models.RoleCommunityLead),
}

// Hasher is the password hashing the seeder needs.
type Hasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
}

// Seeder builds fake accounts and persists them through the user repository.
type Seeder struct {
	users  repository.UserRepository
	hasher Hasher
	faker  *gofakeit.Faker
}

// NewSeeder returns a Seeder. A zero seed picks a time based one.
func NewSeeder(users repository.UserRepository, hasher Hasher, seed int64) *Seeder {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Seeder{users: users, hasher: hasher, faker: gofakeit.New(seed)}
}

// BuildUser returns an unsaved account populated with fake profile data.
// The index keeps generated addresses unique within a run.
func (s *Seeder) BuildUser(i int) *models.User {
	f := s.faker
	first, last := f.FirstName(), f.LastName()
	email := fmt.Sprintf("%s.%d.%s@example.com", strings.ToLower(f.LetterN(6)), i, "planify")

	u := models.NewUser(email, first, last, models.Role(f.RandomString(seedRoles)))
	bio := f.Sentence(12)
	phone := f.Phone()
	dob := f.DateRange(time.Now().AddDate(-70, 0, 0), time.Now().AddDate(-18, 0, 0)).UTC()
	u.Bio = &bio
	u.Phone = &phone
	u.DateOfBirth = &dob
	u.IsEmailVerified = f.Bool()
	return u
}

// SeedUsers creates n accounts sharing password. Addresses that already
// exist are skipped.
func (s *Seeder) SeedUsers(ctx context.Context, n int, password string) ([]*models.User, error) {
	if password == "" {
		password = DefaultPassword
	}
	digest, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return nil, fmt.Errorf("hash seed password: %w", err)
	}

	created := make([]*models.User, 0, n)
	for i := 0; i < n; i++ {
		u := s.BuildUser(i)
		u.PasswordHash = digest
		if err := s.users.Create(ctx, u); err != nil {
			if models.HasCode(err, models.CodeConflict) {
				slog.WarnContext(ctx, "seed: skipping existing account", "email", u.Email)
				continue
			}
			return created, fmt.Errorf("create seed user %d: %w", i, err)
		}
		created = append(created, u)
	}
	return created, nil
}
