package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"planify/internal/models"
	"planify/internal/password"
	"planify/internal/repository"
	"planify/internal/testutil"
	"planify/internal/token"
)

type fixture struct {
	svc    *AccountService
	repo   *testutil.UserRepoStub
	tokens *token.Service
	hasher *password.Hasher
	revs   *token.RevocationList
}

func newTokens(t *testing.T) *token.Service {
	t.Helper()
	tokens, err := token.NewService(token.Config{
		AccessSecret:  "service-access-secret-0123456789abc",
		RefreshSecret: "service-refresh-secret-0123456789abc",
	})
	require.NoError(t, err)
	return tokens
}

func newFixture(t *testing.T, withRevocation bool) *fixture {
	t.Helper()

	tokens := newTokens(t)
	f := &fixture{
		repo:   testutil.NewUserRepoStub(),
		tokens: tokens,
		hasher: password.NewHasher(bcrypt.MinCost, 4),
	}

	var revs Revocations
	if withRevocation {
		rdb, _ := testutil.NewRedis(t)
		f.revs = token.NewRevocationList(rdb)
		revs = f.revs
	}

	f.svc = NewAccountService(f.repo, f.hasher, tokens, revs,
		[]models.Role{models.RoleUser, models.RoleCommunityLead, models.RoleClubLead, models.RoleClubMember})
	return f
}

// seed stores an account whose password is "Secret123".
func (f *fixture) seed(t *testing.T, mutate func(u *models.User)) *models.User {
	t.Helper()
	digest, err := f.hasher.Hash(context.Background(), "Secret123")
	require.NoError(t, err)

	u := models.NewUser("grace@example.com", "Grace", "Hopper", models.RoleUser)
	u.PasswordHash = digest
	if mutate != nil {
		mutate(u)
	}
	return f.repo.Put(u)
}

func registerRequest() RegisterRequest {
	return RegisterRequest{
		Email:     "  Ada@Example.COM ",
		Password:  "Secret123",
		FirstName: " Ada ",
		LastName:  "Lovelace",
	}
}

func requireAppError(t *testing.T, err error, status int, message string) *models.AppError {
	t.Helper()
	appErr, ok := models.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, status, appErr.Status)
	if message != "" {
		assert.Equal(t, message, appErr.Message)
	}
	return appErr
}

func TestAccountService_Register(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	res, err := f.svc.Register(ctx, registerRequest())
	require.NoError(t, err)

	assert.Equal(t, "ada@example.com", res.User.Email)
	assert.Equal(t, "Ada", res.User.FirstName)
	assert.Equal(t, models.RoleUser, res.User.Role)
	assert.True(t, res.User.IsActive)
	assert.NotEmpty(t, res.Token)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, int64(24*time.Hour/time.Second), res.ExpiresIn)

	stored, ok := f.repo.Get(res.User.ID)
	require.True(t, ok)
	assert.NotEqual(t, "Secret123", stored.PasswordHash)
	assert.True(t, f.hasher.Verify(ctx, "Secret123", stored.PasswordHash))

	claims, err := f.tokens.VerifyAccess(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)

	raw, err := json.Marshal(res)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), stored.PasswordHash)
	assert.NotContains(t, string(raw), "password")
}

func TestAccountService_Register_Rejects(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(r *RegisterRequest)
		status     int
		message    string
		wantFields []string
	}{
		{
			name:       "every missing field reported",
			mutate:     func(r *RegisterRequest) { *r = RegisterRequest{} },
			status:     422,
			message:    "Validation failed",
			wantFields: []string{"email", "password", "firstName", "lastName"},
		},
		{
			name:       "weak password",
			mutate:     func(r *RegisterRequest) { r.Password = "alllowercase" },
			status:     422,
			wantFields: []string{"password"},
		},
		{
			name:       "bad email and long name",
			mutate:     func(r *RegisterRequest) { r.Email = "nope"; r.LastName = strings.Repeat("x", 51) },
			status:     422,
			wantFields: []string{"email", "lastName"},
		},
		{
			name:       "unknown role",
			mutate:     func(r *RegisterRequest) { r.Role = "superuser" },
			status:     422,
			wantFields: []string{"role"},
		},
		{
			name:       "password beyond the bcrypt limit",
			mutate:     func(r *RegisterRequest) { r.Password = "Aa1" + strings.Repeat("x", 70) },
			status:     422,
			wantFields: []string{"password"},
		},
		{
			name:       "multi-byte password beyond the bcrypt limit",
			mutate:     func(r *RegisterRequest) { r.Password = "Aa1" + strings.Repeat("é", 35) },
			status:     422,
			wantFields: []string{"password"},
		},
		{
			name:       "admin cannot self register",
			mutate:     func(r *RegisterRequest) { r.Role = models.RoleAdmin },
			status:     422,
			message:    MsgInvalidRegistration,
			wantFields: []string{"role"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, false)
			req := registerRequest()
			tt.mutate(&req)

			_, err := f.svc.Register(context.Background(), req)
			appErr := requireAppError(t, err, tt.status, tt.message)

			var got []string
			for _, fe := range appErr.Fields {
				got = append(got, fe.Field)
			}
			assert.ElementsMatch(t, tt.wantFields, got)
		})
	}
}

func TestAccountService_Register_MultiBytePasswordAtLimit(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	// 3 + 2*34 = 71 bytes.
	pw := "Aa1" + strings.Repeat("é", 34)
	req := registerRequest()
	req.Password = pw

	_, err := f.svc.Register(ctx, req)
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, LoginRequest{Email: "ada@example.com", Password: pw})
	require.NoError(t, err)
}

func TestHashFailure(t *testing.T) {
	_, err := password.NewHasher(bcrypt.MinCost, 1).Hash(context.Background(), strings.Repeat("A", 73))
	require.Error(t, err)

	appErr := requireAppError(t, hashFailure(err, "newPassword"), 422, "Validation failed")
	require.Len(t, appErr.Fields, 1)
	assert.Equal(t, "newPassword", appErr.Fields[0].Field)
	assert.Equal(t, "New password cannot exceed 72 bytes", appErr.Fields[0].Message)

	requireAppError(t, hashFailure(errors.New("boom"), "password"), 500, "")
}

func TestAccountService_Register_Duplicate(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, registerRequest())
	require.NoError(t, err)

	req := registerRequest()
	req.Email = "ADA@example.com"
	_, err = f.svc.Register(ctx, req)
	requireAppError(t, err, 409, MsgEmailTaken)
}

func TestAccountService_Register_ChosenRole(t *testing.T) {
	f := newFixture(t, false)
	req := registerRequest()
	req.Role = "Club_Lead"

	res, err := f.svc.Register(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.RoleClubLead, res.User.Role)
}

func TestAccountService_Login(t *testing.T) {
	f := newFixture(t, false)
	u := f.seed(t, nil)

	res, err := f.svc.Login(context.Background(), LoginRequest{Email: "GRACE@example.com ", Password: "Secret123"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, res.User.ID)
	assert.Empty(t, res.User.PasswordHash)
	require.NotNil(t, res.User.LastLogin)
	assert.Equal(t, 1, f.repo.Touches)
}

func TestAccountService_Login_Failures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(u *models.User)
		email   string
		pw      string
		message string
	}{
		{"unknown email", nil, "nobody@example.com", "Secret123", MsgInvalidCredentials},
		{"wrong password", nil, "grace@example.com", "Wrong1234", MsgInvalidCredentials},
		{"deactivated", func(u *models.User) { u.IsActive = false }, "grace@example.com", "Secret123", MsgDeactivated},
		{"blocked", func(u *models.User) { u.IsBlocked = true }, "grace@example.com", "Secret123", MsgBlocked},
		{"blocked with wrong password", func(u *models.User) { u.IsBlocked = true }, "grace@example.com", "Wrong1234", MsgInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, false)
			f.seed(t, tt.mutate)

			_, err := f.svc.Login(context.Background(), LoginRequest{Email: tt.email, Password: tt.pw})
			requireAppError(t, err, 401, tt.message)
			assert.Zero(t, f.repo.Touches)
		})
	}
}

func TestAccountService_Login_TouchFailureIsIgnored(t *testing.T) {
	f := newFixture(t, false)
	f.seed(t, nil)
	f.repo.TouchErr = errors.New("disk full")

	res, err := f.svc.Login(context.Background(), LoginRequest{Email: "grace@example.com", Password: "Secret123"})
	require.NoError(t, err)
	assert.Nil(t, res.User.LastLogin)
}

func TestAccountService_Login_StoreError(t *testing.T) {
	f := newFixture(t, false)
	f.repo.Err = models.NewServiceUnavailableError(context.DeadlineExceeded)

	_, err := f.svc.Login(context.Background(), LoginRequest{Email: "grace@example.com", Password: "Secret123"})
	requireAppError(t, err, 503, "")
}

func TestAccountService_Refresh(t *testing.T) {
	f := newFixture(t, true)
	u := f.seed(t, nil)
	ctx := context.Background()

	refresh, _, err := f.tokens.IssueRefresh(u)
	require.NoError(t, err)

	res, err := f.svc.Refresh(ctx, RefreshRequest{RefreshToken: refresh})
	require.NoError(t, err)
	assert.Equal(t, u.ID, res.User.ID)
	assert.NotEqual(t, refresh, res.RefreshToken)

	_, err = f.svc.Refresh(ctx, RefreshRequest{RefreshToken: refresh})
	requireAppError(t, err, 401, MsgTokenRevoked)

	_, err = f.svc.Refresh(ctx, RefreshRequest{RefreshToken: res.RefreshToken})
	require.NoError(t, err)
}

func TestAccountService_Refresh_Rejects(t *testing.T) {
	f := newFixture(t, false)
	u := f.seed(t, nil)
	ctx := context.Background()

	access, _, err := f.tokens.IssueAccess(u)
	require.NoError(t, err)
	_, err = f.svc.Refresh(ctx, RefreshRequest{RefreshToken: access})
	requireAppError(t, err, 401, MsgInvalidRefresh)

	_, err = f.svc.Refresh(ctx, RefreshRequest{})
	requireAppError(t, err, 422, "")

	stale := newTokens(t).WithClock(func() time.Time { return time.Now().Add(-30 * 24 * time.Hour) })
	expired, _, err := stale.IssueRefresh(u)
	require.NoError(t, err)
	_, err = f.svc.Refresh(ctx, RefreshRequest{RefreshToken: expired})
	requireAppError(t, err, 401, MsgRefreshExpired)

	ghost, _, err := f.tokens.IssueRefresh(&models.User{ID: 999, Email: "x@example.com", Role: models.RoleUser})
	require.NoError(t, err)
	_, err = f.svc.Refresh(ctx, RefreshRequest{RefreshToken: ghost})
	requireAppError(t, err, 401, MsgUserGone)

	blocked := f.seed(t, func(b *models.User) { b.ID = 50; b.Email = "blocked@example.com"; b.IsBlocked = true })
	raw, _, err := f.tokens.IssueRefresh(blocked)
	require.NoError(t, err)
	_, err = f.svc.Refresh(ctx, RefreshRequest{RefreshToken: raw})
	requireAppError(t, err, 401, MsgBlocked)
}

func TestAccountService_UpdateProfile(t *testing.T) {
	f := newFixture(t, false)
	u := f.seed(t, func(u *models.User) {
		bio := "old bio"
		u.Bio = &bio
	})

	payload := map[string]json.RawMessage{
		"firstName":   json.RawMessage(`"  <b>Amazing</b> Grace "`),
		"bio":         json.RawMessage(`null`),
		"phone":       json.RawMessage(`"+1 (555) 123-4567"`),
		"dateOfBirth": json.RawMessage(`"1906-12-09"`),
	}
	updated, err := f.svc.UpdateProfile(context.Background(), u.ID, payload)
	require.NoError(t, err)

	assert.Equal(t, "Amazing Grace", updated.FirstName)
	assert.Nil(t, updated.Bio)
	require.NotNil(t, updated.Phone)
	assert.Equal(t, "+1 (555) 123-4567", *updated.Phone)
	require.NotNil(t, updated.DateOfBirth)
	assert.Equal(t, 1906, updated.DateOfBirth.Year())

	stored, _ := f.repo.Get(u.ID)
	assert.Equal(t, "Amazing Grace", stored.FirstName)
	assert.Equal(t, u.PasswordHash, stored.PasswordHash)
	assert.Equal(t, "grace@example.com", stored.Email)
}

func TestAccountService_UpdateProfile_Idempotent(t *testing.T) {
	f := newFixture(t, false)
	u := f.seed(t, nil)
	ctx := context.Background()

	payload := map[string]json.RawMessage{
		"firstName":   json.RawMessage(`" Grace "`),
		"lastName":    json.RawMessage(`"Hopper"`),
		"bio":         json.RawMessage(`"  <i>Compiler</i> pioneer  "`),
		"phone":       json.RawMessage(`" +1 555 123 4567 "`),
		"dateOfBirth": json.RawMessage(`"1906-12-09"`),
	}

	first, err := f.svc.UpdateProfile(ctx, u.ID, payload)
	require.NoError(t, err)
	afterFirst, _ := f.repo.Get(u.ID)

	second, err := f.svc.UpdateProfile(ctx, u.ID, payload)
	require.NoError(t, err)
	afterSecond, _ := f.repo.Get(u.ID)

	require.NotNil(t, second.Bio)
	assert.Equal(t, "Compiler pioneer", *second.Bio)
	require.NotNil(t, second.Phone)
	assert.Equal(t, "+1 555 123 4567", *second.Phone)

	ignoreUpdatedAt := func(u models.User) models.User {
		u.UpdatedAt = time.Time{}
		return u
	}
	assert.Equal(t, ignoreUpdatedAt(*first), ignoreUpdatedAt(*second))
	assert.Equal(t, ignoreUpdatedAt(afterFirst), ignoreUpdatedAt(afterSecond))
	assert.False(t, afterSecond.UpdatedAt.Before(afterFirst.UpdatedAt))
}

func TestAccountService_UpdateProfile_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		message string
		fields  []string
	}{
		{"email not allowed", `{"email":"new@example.com"}`, MsgInvalidUpdates, []string{"email"}},
		{"role not allowed", `{"firstName":"A","role":"admin"}`, MsgInvalidUpdates, []string{"role"}},
		{"password not allowed", `{"password":"Secret999"}`, MsgInvalidUpdates, []string{"password"}},
		{"wrong type", `{"firstName":42}`, "Validation failed", []string{"firstName"}},
		{"unparseable date", `{"dateOfBirth":"last tuesday"}`, "Validation failed", []string{"dateOfBirth"}},
		{"future date", `{"dateOfBirth":"2999-01-01"}`, "Validation failed", []string{"dateOfBirth"}},
		{"bad phone", `{"phone":"123"}`, "Validation failed", []string{"phone"}},
		{"empty name", `{"lastName":"   "}`, "Validation failed", []string{"lastName"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, false)
			u := f.seed(t, nil)

			var payload map[string]json.RawMessage
			require.NoError(t, json.Unmarshal([]byte(tt.payload), &payload))

			_, err := f.svc.UpdateProfile(context.Background(), u.ID, payload)
			appErr := requireAppError(t, err, 422, tt.message)
			var got []string
			for _, fe := range appErr.Fields {
				got = append(got, fe.Field)
			}
			assert.ElementsMatch(t, tt.fields, got)

			stored, _ := f.repo.Get(u.ID)
			assert.Equal(t, "Grace", stored.FirstName)
			assert.Equal(t, "Hopper", stored.LastName)
		})
	}
}

func TestAccountService_ChangePassword(t *testing.T) {
	f := newFixture(t, false)
	u := f.seed(t, nil)
	ctx := context.Background()

	err := f.svc.ChangePassword(ctx, u.ID, ChangePasswordRequest{CurrentPassword: "Wrong1234", NewPassword: "Fresh4567"})
	requireAppError(t, err, 400, MsgWrongPassword)

	err = f.svc.ChangePassword(ctx, u.ID, ChangePasswordRequest{CurrentPassword: "Secret123", NewPassword: "weak"})
	requireAppError(t, err, 422, "")

	err = f.svc.ChangePassword(ctx, u.ID, ChangePasswordRequest{
		CurrentPassword: "Secret123",
		NewPassword:     "Aa1" + strings.Repeat("x", 70),
	})
	appErr := requireAppError(t, err, 422, "")
	require.Len(t, appErr.Fields, 1)
	assert.Equal(t, "New password cannot exceed 72 bytes", appErr.Fields[0].Message)

	require.NoError(t, f.svc.ChangePassword(ctx, u.ID, ChangePasswordRequest{CurrentPassword: "Secret123", NewPassword: "Fresh4567"}))

	_, err = f.svc.Login(ctx, LoginRequest{Email: u.Email, Password: "Secret123"})
	requireAppError(t, err, 401, MsgInvalidCredentials)
	_, err = f.svc.Login(ctx, LoginRequest{Email: u.Email, Password: "Fresh4567"})
	require.NoError(t, err)
}

func TestAccountService_Deactivate(t *testing.T) {
	f := newFixture(t, false)
	u := f.seed(t, nil)
	ctx := context.Background()

	require.NoError(t, f.svc.Deactivate(ctx, u.ID))
	stored, _ := f.repo.Get(u.ID)
	assert.False(t, stored.IsActive)
	assert.NotEmpty(t, stored.PasswordHash)

	_, err := f.svc.Login(ctx, LoginRequest{Email: u.Email, Password: "Secret123"})
	requireAppError(t, err, 401, MsgDeactivated)

	requireAppError(t, f.svc.Deactivate(ctx, 404), 404, "")
}

func TestAccountService_Logout(t *testing.T) {
	t.Run("stateless", func(t *testing.T) {
		f := newFixture(t, false)
		assert.NoError(t, f.svc.Logout(context.Background(), &token.Claims{}, LogoutRequest{}))
	})

	t.Run("revokes access and refresh tokens", func(t *testing.T) {
		f := newFixture(t, true)
		u := f.seed(t, nil)
		ctx := context.Background()

		_, access, err := f.tokens.IssueAccess(u)
		require.NoError(t, err)
		refreshRaw, refresh, err := f.tokens.IssueRefresh(u)
		require.NoError(t, err)

		require.NoError(t, f.svc.Logout(ctx, access, LogoutRequest{RefreshToken: refreshRaw}))

		revoked, err := f.revs.IsRevoked(ctx, access.ID)
		require.NoError(t, err)
		assert.True(t, revoked)
		revoked, err = f.revs.IsRevoked(ctx, refresh.ID)
		require.NoError(t, err)
		assert.True(t, revoked)
	})

	t.Run("ignores another user's refresh token", func(t *testing.T) {
		f := newFixture(t, true)
		u := f.seed(t, nil)
		other := f.seed(t, func(o *models.User) { o.ID = 9; o.Email = "other@example.com" })
		ctx := context.Background()

		_, access, err := f.tokens.IssueAccess(u)
		require.NoError(t, err)
		raw, refresh, err := f.tokens.IssueRefresh(other)
		require.NoError(t, err)

		require.NoError(t, f.svc.Logout(ctx, access, LogoutRequest{RefreshToken: raw}))
		revoked, err := f.revs.IsRevoked(ctx, refresh.ID)
		require.NoError(t, err)
		assert.False(t, revoked)
	})
}

func TestAccountService_AdminOperations(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	u := f.seed(t, nil)
	f.seed(t, func(a *models.User) { a.ID = 2; a.Email = "admin@example.com"; a.Role = models.RoleAdmin })

	updated, err := f.svc.SetRole(ctx, u.ID, RoleUpdate{Role: " Community_Lead "})
	require.NoError(t, err)
	assert.Equal(t, models.RoleCommunityLead, updated.Role)

	_, err = f.svc.SetRole(ctx, u.ID, RoleUpdate{Role: "emperor"})
	requireAppError(t, err, 422, "")
	_, err = f.svc.SetRole(ctx, 404, RoleUpdate{Role: models.RoleAdmin})
	requireAppError(t, err, 404, "User with ID 404 not found")

	blocked := true
	updated, err = f.svc.SetStatus(ctx, u.ID, StatusUpdate{IsBlocked: &blocked})
	require.NoError(t, err)
	assert.True(t, updated.IsBlocked)
	assert.True(t, updated.IsActive)

	_, err = f.svc.SetStatus(ctx, u.ID, StatusUpdate{})
	requireAppError(t, err, 422, MsgNoStatusChange)

	admins, total, err := f.svc.ListUsers(ctx, repository.ListUsersFilter{Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, admins, 1)
	assert.Equal(t, "admin@example.com", admins[0].Email)

	_, _, err = f.svc.ListUsers(ctx, repository.ListUsersFilter{Role: "wizard"})
	requireAppError(t, err, 422, "")
}
