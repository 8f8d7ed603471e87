// Package authz gates routes on the caller's role, on configured permissions
// and on resource ownership.
package authz

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"planify/internal/middleware"
	"planify/internal/models"
)

// Rejection messages returned to clients.
const (
	MsgAuthRequired = "Authentication required"
	MsgForbidden    = "You do not have permission to access this resource"
	MsgNotOwner     = "You can only access your own resources"
)

// HasAnyRole reports whether u holds one of roles.
func HasAnyRole(u *models.User, roles ...models.Role) bool {
	if u == nil {
		return false
	}
	for _, want := range roles {
		if u.Role == want {
			return true
		}
	}
	return false
}

// RequireRoles admits callers whose role is in roles. It must run after the
// authentication middleware.
func RequireRoles(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u, ok := middleware.CurrentUser(c)
		if !ok {
			return models.NewUnauthorizedError(MsgAuthRequired)
		}
		if !HasAnyRole(u, roles...) {
			return models.NewForbiddenError(MsgForbidden)
		}
		return c.Next()
	}
}

// RequirePermission admits callers whose role holds perm under p.
func RequirePermission(p *Policy, perm string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u, ok := middleware.CurrentUser(c)
		if !ok {
			return models.NewUnauthorizedError(MsgAuthRequired)
		}
		if !p.Allows(u.Role, perm) {
			return models.NewForbiddenError(MsgForbidden)
		}
		return c.Next()
	}
}

// RequireOwnership admits admins and callers whose id equals the owner id
// named by field, read from the route parameter or else the JSON body.
func RequireOwnership(field string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u, ok := middleware.CurrentUser(c)
		if !ok {
			return models.NewUnauthorizedError(MsgAuthRequired)
		}
		if u.Role == models.RoleAdmin {
			return c.Next()
		}

		owner, ok := ownerID(c, field)
		if !ok || owner != strconv.FormatUint(uint64(u.ID), 10) {
			return models.NewForbiddenError(MsgNotOwner)
		}
		return c.Next()
	}
}

func ownerID(c *fiber.Ctx, field string) (string, bool) {
	if v := strings.TrimSpace(c.Params(field)); v != "" {
		return v, true
	}

	body := c.Body()
	if len(body) == 0 {
		return "", false
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", false
	}
	raw, ok := payload[field]
	if !ok {
		return "", false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), s != ""
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}
