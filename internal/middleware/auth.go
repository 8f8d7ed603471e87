package middleware

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"planify/internal/models"
	"planify/internal/observability"
	"planify/internal/token"
)

// Fiber locals written by the authenticator.
const (
	LocalUser   = "user"
	LocalClaims = "tokenClaims"
	LocalUserID = "userID"
)

// Rejection messages returned to clients.
const (
	MsgTokenRequired = "Access token is required"
	MsgInvalidToken  = "Invalid token"
	MsgTokenExpired  = "Token has expired"
	MsgTokenRevoked  = "Token has been revoked"
	MsgUserGone      = "User associated with this token no longer exists"
	MsgDeactivated   = "Your account has been deactivated"
	MsgBlocked       = "Your account has been blocked"
)

// UserLoader is the slice of the credential store the authenticator needs.
type UserLoader interface {
	FindByID(ctx context.Context, id uint, withPassword bool) (*models.User, error)
	TouchLastLogin(ctx context.Context, id uint, at time.Time) error
}

// TokenVerifier verifies bearer access tokens.
type TokenVerifier interface {
	VerifyAccess(raw string) (*token.Claims, error)
}

// RevocationChecker reports revoked token ids. A nil checker disables the
// check.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Authenticator resolves the bearer token of a request to an active account.
type Authenticator struct {
	tokens      TokenVerifier
	users       UserLoader
	revocations RevocationChecker
	now         func() time.Time
}

// NewAuthenticator wires an Authenticator. revocations may be nil.
func NewAuthenticator(tokens TokenVerifier, users UserLoader, revocations RevocationChecker) *Authenticator {
	return &Authenticator{tokens: tokens, users: users, revocations: revocations, now: time.Now}
}

// Required rejects the request with 401 unless it carries a valid access
// token for an active, unblocked account.
func (a *Authenticator) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, claims, err := a.authenticate(c)
		if err != nil {
			return err
		}
		admit(c, user, claims)
		return c.Next()
	}
}

// Optional attaches the caller's identity when a valid token is present and
// otherwise continues anonymously.
func (a *Authenticator) Optional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) == "" {
			return c.Next()
		}
		user, claims, err := a.authenticate(c)
		if err != nil {
			Logger.DebugContext(c.UserContext(), "optional auth ignored token", slog.String("reason", err.Error()))
			return c.Next()
		}
		admit(c, user, claims)
		return c.Next()
	}
}

func (a *Authenticator) authenticate(c *fiber.Ctx) (*models.User, *token.Claims, error) {
	ctx := c.UserContext()

	raw, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
	if !ok {
		return nil, nil, reject("missing", MsgTokenRequired)
	}

	claims, err := a.tokens.VerifyAccess(raw)
	if err != nil {
		if errors.Is(err, token.ErrExpiredToken) {
			return nil, nil, reject("expired", MsgTokenExpired)
		}
		return nil, nil, reject("invalid", MsgInvalidToken)
	}

	if a.revocations != nil {
		revoked, err := a.revocations.IsRevoked(ctx, claims.ID)
		switch {
		case err != nil:
			Logger.WarnContext(ctx, "revocation check failed, admitting token", slog.String("error", err.Error()))
		case revoked:
			return nil, nil, reject("revoked", MsgTokenRevoked)
		}
	}

	user, err := a.users.FindByID(ctx, claims.UserID, false)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, reject("user_missing", MsgUserGone)
	}
	if !user.IsActive {
		return nil, nil, reject("deactivated", MsgDeactivated)
	}
	if user.IsBlocked {
		return nil, nil, reject("blocked", MsgBlocked)
	}

	now := a.now().UTC()
	if err := a.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		Logger.WarnContext(ctx, "failed to record last login", slog.Uint64("user_id", uint64(user.ID)), slog.String("error", err.Error()))
	} else {
		user.LastLogin = &now
	}

	return user, claims, nil
}

func admit(c *fiber.Ctx, user *models.User, claims *token.Claims) {
	c.Locals(LocalUser, user)
	c.Locals(LocalClaims, claims)
	c.Locals(LocalUserID, user.ID)
	c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, user.ID))
}

func reject(reason, message string) error {
	observability.TokenRejections.WithLabelValues(reason).Inc()
	return models.NewUnauthorizedError(message)
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	raw := strings.TrimSpace(header[len(prefix):])
	return raw, raw != ""
}

// CurrentUser returns the authenticated account, if any.
func CurrentUser(c *fiber.Ctx) (*models.User, bool) {
	u, ok := c.Locals(LocalUser).(*models.User)
	return u, ok && u != nil
}

// CurrentClaims returns the verified token claims, if any.
func CurrentClaims(c *fiber.Ctx) (*token.Claims, bool) {
	claims, ok := c.Locals(LocalClaims).(*token.Claims)
	return claims, ok && claims != nil
}
