// Package service contains the account use cases behind the HTTP handlers
// and the admin command.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"planify/internal/models"
	"planify/internal/observability"
	"planify/internal/password"
	"planify/internal/repository"
	"planify/internal/token"
	"planify/internal/validation"
)

const serviceName = "AccountService"

// Client facing messages.
const (
	MsgEmailTaken          = "User with this email already exists"
	MsgInvalidCredentials  = "Invalid email or password"
	MsgDeactivated         = "Your account has been deactivated"
	MsgBlocked             = "Your account has been blocked"
	MsgInvalidRefresh      = "Invalid refresh token"
	MsgRefreshExpired      = "Refresh token has expired"
	MsgTokenRevoked        = "Token has been revoked"
	MsgUserGone            = "User associated with this token no longer exists"
	MsgInvalidUpdates      = "Invalid updates detected"
	MsgWrongPassword       = "Current password is incorrect"
	MsgNoStatusChange      = "No status change requested"
	MsgInvalidRegistration = "Role is not available for registration"
)

// Fields a user may change on their own profile.
var profileFields = map[string]struct{}{
	"firstName":   {},
	"lastName":    {},
	"bio":         {},
	"phone":       {},
	"dateOfBirth": {},
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Verify(ctx context.Context, plaintext, digest string) bool
}

// TokenIssuer issues token pairs and verifies refresh tokens.
type TokenIssuer interface {
	IssueAccess(u *models.User) (string, *token.Claims, error)
	IssueRefresh(u *models.User) (string, *token.Claims, error)
	VerifyRefresh(raw string) (*token.Claims, error)
	AccessTTL() time.Duration
}

// Revocations records revoked token ids. A nil value disables revocation.
type Revocations interface {
	Revoke(ctx context.Context, claims *token.Claims) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// AccountService implements registration, login and account management.
type AccountService struct {
	users             repository.UserRepository
	hasher            PasswordHasher
	tokens            TokenIssuer
	revocations       Revocations
	registrationRoles map[models.Role]struct{}
	now               func() time.Time
}

// NewAccountService wires an AccountService. registrationRoles lists the roles
// a caller may pick when registering; empty means only the default role.
func NewAccountService(
	users repository.UserRepository,
	hasher PasswordHasher,
	tokens TokenIssuer,
	revocations Revocations,
	registrationRoles []models.Role,
) *AccountService {
	allowed := map[models.Role]struct{}{models.RoleUser: {}}
	for _, r := range registrationRoles {
		allowed[r] = struct{}{}
	}
	return &AccountService{
		users:             users,
		hasher:            hasher,
		tokens:            tokens,
		revocations:       revocations,
		registrationRoles: allowed,
		now:               time.Now,
	}
}

// Register creates an account and signs the new user in.
func (s *AccountService) Register(ctx context.Context, req RegisterRequest) (res *AuthResult, err error) {
	ctx, span := observability.StartServiceSpan(ctx, serviceName, "Register")
	defer func() {
		observability.EndSpan(span, err)
		observability.RecordAuthEvent("register", err == nil)
	}()

	req.normalize()
	if err := validation.Struct(&req); err != nil {
		return nil, err
	}
	if req.Role == "" {
		req.Role = models.RoleUser
	}
	if _, ok := s.registrationRoles[req.Role]; !ok {
		return nil, models.NewValidationError(MsgInvalidRegistration, models.FieldError{
			Field:   "role",
			Message: "Role must be one of: " + s.registrationRoleNames(),
		})
	}

	existing, err := s.users.FindByEmail(ctx, req.Email, false)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError(MsgEmailTaken)
	}

	digest, err := s.hasher.Hash(ctx, req.Password)
	if err != nil {
		return nil, hashFailure(err, "password")
	}

	user := models.NewUser(req.Email, req.FirstName, req.LastName, req.Role)
	user.PasswordHash = digest
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	return s.issue(user)
}

// Login verifies credentials and issues a token pair. Unknown addresses and
// wrong passwords are indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, req LoginRequest) (res *AuthResult, err error) {
	ctx, span := observability.StartServiceSpan(ctx, serviceName, "Login")
	defer func() {
		observability.EndSpan(span, err)
		observability.RecordAuthEvent("login", err == nil)
	}()

	req.Email = models.NormalizeEmail(req.Email)
	if err := validation.Struct(&req); err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, req.Email, true)
	if err != nil {
		return nil, err
	}
	if user == nil || !s.hasher.Verify(ctx, req.Password, user.PasswordHash) {
		return nil, models.NewUnauthorizedError(MsgInvalidCredentials)
	}
	if err := checkStatus(user); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		slog.WarnContext(ctx, "failed to record last login", "user_id", user.ID, "err", err)
	} else {
		user.LastLogin = &now
	}
	user.PasswordHash = ""

	return s.issue(user)
}

// Refresh exchanges a refresh token for a new token pair. With revocation
// enabled the presented refresh token is retired.
func (s *AccountService) Refresh(ctx context.Context, req RefreshRequest) (res *AuthResult, err error) {
	ctx, span := observability.StartServiceSpan(ctx, serviceName, "Refresh")
	defer func() {
		observability.EndSpan(span, err)
		observability.RecordAuthEvent("refresh", err == nil)
	}()

	if err := validation.Struct(&req); err != nil {
		return nil, err
	}

	claims, err := s.tokens.VerifyRefresh(strings.TrimSpace(req.RefreshToken))
	if err != nil {
		if errors.Is(err, token.ErrExpiredToken) {
			return nil, models.NewUnauthorizedError(MsgRefreshExpired)
		}
		return nil, models.NewUnauthorizedError(MsgInvalidRefresh)
	}

	if s.revocations != nil {
		revoked, rerr := s.revocations.IsRevoked(ctx, claims.ID)
		switch {
		case rerr != nil:
			slog.WarnContext(ctx, "revocation check failed, accepting refresh token", "err", rerr)
		case revoked:
			return nil, models.NewUnauthorizedError(MsgTokenRevoked)
		}
	}

	user, err := s.users.FindByID(ctx, claims.UserID, false)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewUnauthorizedError(MsgUserGone)
	}
	if err := checkStatus(user); err != nil {
		return nil, err
	}

	if s.revocations != nil {
		if rerr := s.revocations.Revoke(ctx, claims); rerr != nil {
			slog.WarnContext(ctx, "failed to retire refresh token", "user_id", user.ID, "err", rerr)
		}
	}

	return s.issue(user)
}

// GetProfile returns the account with id.
func (s *AccountService) GetProfile(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User", id)
	}
	return user, nil
}

// UpdateProfile applies a partial profile update. Keys outside the profile
// whitelist reject the whole payload. A JSON null clears an optional field.
func (s *AccountService) UpdateProfile(ctx context.Context, id uint, payload map[string]json.RawMessage) (user *models.User, err error) {
	ctx, span := observability.StartServiceSpan(ctx, serviceName, "UpdateProfile")
	defer func() { observability.EndSpan(span, err) }()

	for key := range payload {
		if _, ok := profileFields[key]; !ok {
			return nil, models.NewValidationError(MsgInvalidUpdates, models.FieldError{
				Field:   key,
				Message: key + " cannot be updated",
			})
		}
	}

	user, err = s.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}

	if fields := applyProfile(user, payload); len(fields) > 0 {
		return nil, models.NewValidationError("Validation failed", fields...)
	}

	if err := s.users.Save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword replaces the password after verifying the current one.
// Issued tokens stay valid.
func (s *AccountService) ChangePassword(ctx context.Context, id uint, req ChangePasswordRequest) (err error) {
	ctx, span := observability.StartServiceSpan(ctx, serviceName, "ChangePassword")
	defer func() {
		observability.EndSpan(span, err)
		observability.RecordAuthEvent("change_password", err == nil)
	}()

	user, err := s.users.FindByID(ctx, id, true)
	if err != nil {
		return err
	}
	if user == nil {
		return models.NewNotFoundError("User", id)
	}
	if !s.hasher.Verify(ctx, req.CurrentPassword, user.PasswordHash) {
		return models.NewBadRequestError(MsgWrongPassword)
	}
	if err := validation.Struct(&req); err != nil {
		return err
	}

	digest, err := s.hasher.Hash(ctx, req.NewPassword)
	if err != nil {
		return hashFailure(err, "newPassword")
	}
	return s.users.UpdatePassword(ctx, id, digest)
}

// Deactivate soft deletes the account. Outstanding tokens stop working
// because the account is no longer active.
func (s *AccountService) Deactivate(ctx context.Context, id uint) error {
	user, err := s.GetProfile(ctx, id)
	if err != nil {
		return err
	}
	user.IsActive = false
	if err := s.users.Save(ctx, user); err != nil {
		return err
	}
	observability.RecordAuthEvent("deactivate", true)
	return nil
}

// Logout revokes the presented access token and, when given, the refresh
// token. Without a revocation list it only acknowledges the request.
func (s *AccountService) Logout(ctx context.Context, access *token.Claims, req LogoutRequest) error {
	observability.RecordAuthEvent("logout", true)
	if s.revocations == nil {
		return nil
	}

	if access != nil {
		if err := s.revocations.Revoke(ctx, access); err != nil {
			return models.NewServiceUnavailableError(err)
		}
	}
	if raw := strings.TrimSpace(req.RefreshToken); raw != "" {
		refresh, err := s.tokens.VerifyRefresh(raw)
		if err != nil {
			return nil
		}
		if access != nil && refresh.UserID != access.UserID {
			return nil
		}
		if err := s.revocations.Revoke(ctx, refresh); err != nil {
			return models.NewServiceUnavailableError(err)
		}
	}
	return nil
}

// ListUsers pages through accounts for administrators.
func (s *AccountService) ListUsers(ctx context.Context, filter repository.ListUsersFilter) ([]models.User, int64, error) {
	if filter.Role != "" && !filter.Role.Valid() {
		return nil, 0, models.NewValidationError("Validation failed", models.FieldError{
			Field:   "role",
			Message: "Role must be one of: " + models.RoleNames(),
		})
	}
	return s.users.List(ctx, filter)
}

// SetRole changes the role of account id.
func (s *AccountService) SetRole(ctx context.Context, id uint, update RoleUpdate) (*models.User, error) {
	update.Role = models.Role(strings.ToLower(strings.TrimSpace(string(update.Role))))
	if err := validation.Struct(&update); err != nil {
		return nil, err
	}

	user, err := s.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role == update.Role {
		return user, nil
	}

	previous := user.Role
	user.Role = update.Role
	if err := s.users.Save(ctx, user); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "user role changed", "user_id", id, "from", previous, "to", update.Role)
	return user, nil
}

// SetStatus blocks, unblocks, activates or deactivates account id.
func (s *AccountService) SetStatus(ctx context.Context, id uint, update StatusUpdate) (*models.User, error) {
	if update.IsActive == nil && update.IsBlocked == nil {
		return nil, models.NewValidationError(MsgNoStatusChange)
	}

	user, err := s.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if update.IsActive != nil {
		user.IsActive = *update.IsActive
	}
	if update.IsBlocked != nil {
		user.IsBlocked = *update.IsBlocked
	}
	if err := s.users.Save(ctx, user); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "user status changed", "user_id", id, "active", user.IsActive, "blocked", user.IsBlocked)
	return user, nil
}

func (s *AccountService) issue(user *models.User) (*AuthResult, error) {
	access, _, err := s.tokens.IssueAccess(user)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	refresh, _, err := s.tokens.IssueRefresh(user)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &AuthResult{
		User:         user,
		Token:        access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
	}, nil
}

func (s *AccountService) registrationRoleNames() string {
	names := make([]string, 0, len(s.registrationRoles))
	for r := range s.registrationRoles {
		names = append(names, string(r))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// hashFailure keeps over-long input a client error.
func hashFailure(err error, field string) error {
	if errors.Is(err, password.ErrTooLong) {
		return validation.PasswordTooLong(field)
	}
	return models.NewInternalError(err)
}

func checkStatus(user *models.User) error {
	if !user.IsActive {
		return models.NewUnauthorizedError(MsgDeactivated)
	}
	if user.IsBlocked {
		return models.NewUnauthorizedError(MsgBlocked)
	}
	return nil
}
