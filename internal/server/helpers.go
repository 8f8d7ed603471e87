package server

import (
	"strings"
	"unicode"

	"github.com/gofiber/fiber/v2"

	"planify/internal/models"
	"planify/internal/repository"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// parseID extracts a route parameter by name as a positive uint.
// The error message is derived from the parameter name (e.g. "userId" ->
// "Invalid user ID").
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		return 0, models.NewBadRequestError("Invalid " + humanizeParam(param))
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		return strings.ToLower(strings.Join(splitCamel(param[:len(param)-2]), " ")) + " ID"
	}
	return param
}

func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	return append(words, s[start:])
}

// parseBody decodes the JSON request body into out.
func parseBody(c *fiber.Ctx, out interface{}) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return models.NewBadRequestError("Invalid request body")
	}
	return nil
}

// parseUserFilter reads role, active, limit and offset query parameters.
func parseUserFilter(c *fiber.Ctx) repository.ListUsersFilter {
	limit := c.QueryInt("limit", defaultPageLimit)
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	return repository.ListUsersFilter{
		Role:       models.Role(strings.ToLower(strings.TrimSpace(c.Query("role")))),
		ActiveOnly: c.QueryBool("active", false),
		Limit:      limit,
		Offset:     offset,
	}
}
