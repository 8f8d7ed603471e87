// Package token issues and verifies signed session tokens.
//
// Two independent families exist: short-lived access tokens presented as
// bearer credentials, and long-lived refresh tokens exchanged for new access
// tokens. Each family has its own secret, so a token from one never verifies
// as the other.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"planify/internal/models"
)

var (
	// ErrInvalidToken covers malformed tokens, bad signatures, the wrong token
	// family, issuer or audience.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned for well-formed tokens past their expiry.
	ErrExpiredToken = errors.New("token has expired")
)

// Type distinguishes the two token families.
type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
)

// Claims carried by every token.
type Claims struct {
	UserID    uint        `json:"userId"`
	Email     string      `json:"email"`
	Role      models.Role `json:"role"`
	TokenType Type        `json:"tokenType"`
	jwt.RegisteredClaims
}

// Config configures a Service.
type Config struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
}

// Service signs and verifies tokens with HS256.
type Service struct {
	cfg Config
	now func() time.Time
}

// NewService returns a Service. Both secrets are required and must differ.
func NewService(cfg Config) (*Service, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("token: access and refresh secrets are required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("token: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 24 * time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "planify-api"
	}
	if cfg.Audience == "" {
		cfg.Audience = "planify-client"
	}
	return &Service{cfg: cfg, now: time.Now}, nil
}

// WithClock replaces the time source. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// AccessTTL returns the access token lifetime.
func (s *Service) AccessTTL() time.Duration { return s.cfg.AccessTTL }

// IssueAccess returns a signed access token for u.
func (s *Service) IssueAccess(u *models.User) (string, *Claims, error) {
	return s.issue(u, TypeAccess, s.cfg.AccessSecret, s.cfg.AccessTTL)
}

// IssueRefresh returns a signed refresh token for u.
func (s *Service) IssueRefresh(u *models.User) (string, *Claims, error) {
	return s.issue(u, TypeRefresh, s.cfg.RefreshSecret, s.cfg.RefreshTTL)
}

// VerifyAccess checks signature, expiry and family of an access token.
func (s *Service) VerifyAccess(raw string) (*Claims, error) {
	return s.verify(raw, TypeAccess, s.cfg.AccessSecret)
}

// VerifyRefresh checks signature, expiry and family of a refresh token.
func (s *Service) VerifyRefresh(raw string) (*Claims, error) {
	return s.verify(raw, TypeRefresh, s.cfg.RefreshSecret)
}

// DecodeUnsafe parses the claims without checking the signature or expiry.
// It is meant for logging and inspection only and returns nil on any failure.
func DecodeUnsafe(raw string) *Claims {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil
	}
	return claims
}

func (s *Service) issue(u *models.User, typ Type, secret string, ttl time.Duration) (string, *Claims, error) {
	if u == nil || u.ID == 0 {
		return "", nil, errors.New("token: user without id")
	}

	now := s.now()
	claims := &Claims{
		UserID:    u.ID,
		Email:     u.Email,
		Role:      u.Role,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(u.ID), 10),
			Issuer:    s.cfg.Issuer,
			Audience:  jwt.ClaimStrings{s.cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", nil, fmt.Errorf("signing %s token: %w", typ, err)
	}
	return signed, claims, nil
}

func (s *Service) verify(raw string, typ Type, secret string) (*Claims, error) {
	if raw == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(secret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(s.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.TokenType != typ || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	if claims.Subject != strconv.FormatUint(uint64(claims.UserID), 10) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
