// Package password hashes and verifies account passwords with bcrypt.
package password

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	"planify/internal/models"
	"planify/internal/observability"
)

const (
	// DefaultCost is the bcrypt work factor used when none is configured.
	DefaultCost = 12
	// MaxBytes is the longest plaintext bcrypt accepts.
	MaxBytes = 72
)

var (
	// ErrEmptyPassword is returned when hashing an empty plaintext.
	ErrEmptyPassword = errors.New("password is empty")
	// ErrTooLong is wrapped by the validation error Hash returns for
	// plaintexts longer than MaxBytes.
	ErrTooLong = errors.New("password exceeds bcrypt input limit")
)

// Hasher computes salted bcrypt digests. At most maxConcurrent hashes or
// verifications run at once; callers beyond that wait or give up when their
// context ends.
type Hasher struct {
	cost int
	sem  *semaphore.Weighted
}

// NewHasher returns a Hasher with the given bcrypt cost and concurrency bound.
func NewHasher(cost int, maxConcurrent int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Hasher{cost: cost, sem: semaphore.NewWeighted(int64(maxConcurrent))}
}

// Cost returns the configured work factor.
func (h *Hasher) Cost() int {
	return h.cost
}

// Hash returns a bcrypt digest of plaintext. Plaintexts over MaxBytes yield a
// validation error wrapping ErrTooLong.
func (h *Hasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}
	if len(plaintext) > MaxBytes {
		return "", tooLong(ErrTooLong)
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("waiting for hash slot: %w", err)
	}
	defer h.sem.Release(1)

	start := time.Now()
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	observability.PasswordHashDuration.WithLabelValues("hash").Observe(time.Since(start).Seconds())
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", tooLong(fmt.Errorf("%w: %w", ErrTooLong, err))
	}
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(digest), nil
}

func tooLong(err error) error {
	appErr := models.NewValidationError(fmt.Sprintf("Password cannot exceed %d bytes", MaxBytes))
	appErr.Err = err
	return appErr
}

// Verify reports whether plaintext matches digest. An empty or malformed
// digest, a mismatch and a cancelled context all yield false.
func (h *Hasher) Verify(ctx context.Context, plaintext, digest string) bool {
	if digest == "" || plaintext == "" {
		return false
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false
	}
	defer h.sem.Release(1)

	start := time.Now()
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext))
	observability.PasswordHashDuration.WithLabelValues("verify").Observe(time.Since(start).Seconds())
	return err == nil
}
