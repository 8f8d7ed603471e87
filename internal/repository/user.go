// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"planify/internal/models"
	"planify/internal/observability"
	"planify/internal/validation"
)

const (
	usersTable = "users"
	// DefaultTimeout bounds a single store call when none is configured.
	DefaultTimeout = 5 * time.Second
	maxListLimit   = 100
)

// Columns a profile or administrative update may change. Email and the
// password digest are deliberately absent.
var mutableColumns = []string{
	"first_name", "last_name", "role", "profile_picture", "bio", "phone",
	"date_of_birth", "community_id", "club_id", "is_active", "is_blocked",
	"is_email_verified",
}

// ListUsersFilter narrows List.
type ListUsersFilter struct {
	Role       models.Role
	ActiveOnly bool
	Limit      int
	Offset     int
}

// UserRepository defines persistence operations for users.
//
// Finders return nil, nil when no row matches. The password digest is only
// loaded when withPassword is set.
type UserRepository interface {
	FindByID(ctx context.Context, id uint, withPassword bool) (*models.User, error)
	FindByEmail(ctx context.Context, email string, withPassword bool) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Save(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id uint, hash string) error
	TouchLastLogin(ctx context.Context, id uint, at time.Time) error
	List(ctx context.Context, filter ListUsersFilter) ([]models.User, int64, error)
}

type userRepository struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewUserRepository returns a GORM backed UserRepository. Each call is bounded
// by timeout; expiry surfaces as a service-unavailable error.
func NewUserRepository(db *gorm.DB, timeout time.Duration) UserRepository {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &userRepository{db: db, timeout: timeout}
}

func (r *userRepository) FindByID(ctx context.Context, id uint, withPassword bool) (*models.User, error) {
	ctx, finish := r.begin(ctx, "FindByID")

	var user models.User
	err := r.query(ctx, withPassword).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, finish(nil)
	}
	if err = finish(err); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string, withPassword bool) (*models.User, error) {
	ctx, finish := r.begin(ctx, "FindByEmail")

	var user models.User
	err := r.query(ctx, withPassword).Where("email = ?", models.NormalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, finish(nil)
	}
	if err = finish(err); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	user.Email = models.NormalizeEmail(user.Email)
	user.FirstName = strings.TrimSpace(user.FirstName)
	user.LastName = strings.TrimSpace(user.LastName)
	if user.Role == "" {
		user.Role = models.RoleUser
	}

	if err := validateRecord(user); err != nil {
		return err
	}
	if user.PasswordHash == "" {
		return models.NewValidationError("Validation failed", models.FieldError{Field: "password", Message: "Password is required"})
	}

	ctx, finish := r.begin(ctx, "Create")
	return finish(r.db.WithContext(ctx).Create(user).Error)
}

func (r *userRepository) Save(ctx context.Context, user *models.User) error {
	if user.ID == 0 {
		return models.NewInternalError(errors.New("save of unpersisted user"))
	}
	user.FirstName = strings.TrimSpace(user.FirstName)
	user.LastName = strings.TrimSpace(user.LastName)
	if err := validateRecord(user); err != nil {
		return err
	}

	ctx, finish := r.begin(ctx, "Save")
	res := r.db.WithContext(ctx).Model(user).Select(mutableColumns).Updates(user)
	if res.Error == nil && res.RowsAffected == 0 {
		return finish(models.NewNotFoundError("User", user.ID))
	}
	return finish(res.Error)
}

func (r *userRepository) UpdatePassword(ctx context.Context, id uint, hash string) error {
	if hash == "" {
		return models.NewInternalError(errors.New("empty password digest"))
	}

	ctx, finish := r.begin(ctx, "UpdatePassword")
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("password_hash", hash)
	if res.Error == nil && res.RowsAffected == 0 {
		return finish(models.NewNotFoundError("User", id))
	}
	return finish(res.Error)
}

func (r *userRepository) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	ctx, finish := r.begin(ctx, "TouchLastLogin")
	return finish(r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).UpdateColumn("last_login", at).Error)
}

func (r *userRepository) List(ctx context.Context, filter ListUsersFilter) ([]models.User, int64, error) {
	if filter.Limit <= 0 || filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	ctx, finish := r.begin(ctx, "List")

	q := r.query(ctx, false).Model(&models.User{})
	if filter.Role != "" {
		q = q.Where("role = ?", filter.Role)
	}
	if filter.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, finish(err)
	}

	var users []models.User
	if err := q.Order("id").Limit(filter.Limit).Offset(filter.Offset).Find(&users).Error; err != nil {
		return nil, 0, finish(err)
	}
	return users, total, finish(nil)
}

func (r *userRepository) query(ctx context.Context, withPassword bool) *gorm.DB {
	q := r.db.WithContext(ctx)
	if !withPassword {
		q = q.Omit("password_hash")
	}
	return q
}

// begin starts the span, metric and deadline for one store call. The returned
// finish must be called exactly once with the call's error.
func (r *userRepository) begin(ctx context.Context, op string) (context.Context, func(error) error) {
	ctx, span := observability.StartRepositorySpan(ctx, op, usersTable)
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	done := observability.TrackQuery(op, usersTable)

	return ctx, func(err error) error {
		err = translate(ctx, err)
		done()
		observability.EndSpan(span, err)
		cancel()
		return err
	}
}

func validateRecord(user *models.User) error {
	user.Email = models.NormalizeEmail(user.Email)
	return validation.User(user)
}

func translate(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := models.AsAppError(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return models.NewServiceUnavailableError(err)
	}
	if isUniqueConstraintError(err) {
		return models.NewConflictError("User with this email already exists")
	}
	return models.NewInternalError(err)
}

// isUniqueConstraintError checks if a DB error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint")
}
