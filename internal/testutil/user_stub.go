package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"planify/internal/models"
	"planify/internal/repository"
	"planify/internal/validation"
)

// UserRepoStub is an in-memory repository.UserRepository for tests.
type UserRepoStub struct {
	mu     sync.Mutex
	users  map[uint]models.User
	nextID uint

	// Err, when set, is returned from every call.
	Err error
	// TouchErr is returned from TouchLastLogin only.
	TouchErr error
	Touches  int
}

var _ repository.UserRepository = (*UserRepoStub)(nil)

// NewUserRepoStub returns an empty stub.
func NewUserRepoStub() *UserRepoStub {
	return &UserRepoStub{users: make(map[uint]models.User), nextID: 1}
}

// Put stores u as-is, assigning an id when missing, and returns the stored copy.
func (s *UserRepoStub) Put(u *models.User) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.nextID
		s.nextID++
	} else if u.ID >= s.nextID {
		s.nextID = u.ID + 1
	}
	s.users[u.ID] = *u
	return u
}

// Get returns the stored record including its digest.
func (s *UserRepoStub) Get(id uint) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	return u, ok
}

func (s *UserRepoStub) FindByID(_ context.Context, id uint, withPassword bool) (*models.User, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	u, ok := s.Get(id)
	if !ok {
		return nil, nil
	}
	if !withPassword {
		u.PasswordHash = ""
	}
	return &u, nil
}

func (s *UserRepoStub) FindByEmail(_ context.Context, email string, withPassword bool) (*models.User, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	email = models.NormalizeEmail(email)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			if !withPassword {
				u.PasswordHash = ""
			}
			return &u, nil
		}
	}
	return nil, nil
}

func (s *UserRepoStub) Create(_ context.Context, user *models.User) error {
	if s.Err != nil {
		return s.Err
	}
	user.Email = models.NormalizeEmail(user.Email)
	if err := validation.User(user); err != nil {
		return err
	}

	s.mu.Lock()
	for _, u := range s.users {
		if u.Email == user.Email {
			s.mu.Unlock()
			return models.NewConflictError("User with this email already exists")
		}
	}
	s.mu.Unlock()

	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	s.Put(user)
	return nil
}

func (s *UserRepoStub) Save(_ context.Context, user *models.User) error {
	if s.Err != nil {
		return s.Err
	}
	if err := validation.User(user); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.users[user.ID]
	if !ok {
		return models.NewNotFoundError("User", user.ID)
	}
	email, hash, created, lastLogin := stored.Email, stored.PasswordHash, stored.CreatedAt, stored.LastLogin
	stored = *user
	stored.Email, stored.PasswordHash, stored.CreatedAt, stored.LastLogin = email, hash, created, lastLogin
	stored.UpdatedAt = time.Now().UTC()
	s.users[user.ID] = stored
	user.UpdatedAt = stored.UpdatedAt
	return nil
}

func (s *UserRepoStub) UpdatePassword(_ context.Context, id uint, hash string) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.NewNotFoundError("User", id)
	}
	u.PasswordHash = hash
	s.users[id] = u
	return nil
}

func (s *UserRepoStub) TouchLastLogin(_ context.Context, id uint, at time.Time) error {
	if s.Err != nil {
		return s.Err
	}
	if s.TouchErr != nil {
		return s.TouchErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Touches++
	if u, ok := s.users[id]; ok {
		u.LastLogin = &at
		s.users[id] = u
	}
	return nil
}

func (s *UserRepoStub) List(_ context.Context, filter repository.ListUsersFilter) ([]models.User, int64, error) {
	if s.Err != nil {
		return nil, 0, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.User
	for _, u := range s.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.ActiveOnly && !u.IsActive {
			continue
		}
		u.PasswordHash = ""
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	total := int64(len(out))
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			out = nil
		} else {
			out = out[filter.Offset:]
		}
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, total, nil
}
