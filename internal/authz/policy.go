package authz

import (
	"sort"
	"strings"

	"planify/internal/models"
)

// Permission names used by the HTTP surface.
const (
	PermUsersList   = "users.list"
	PermUsersManage = "users.manage"
	PermMetricsView = "metrics.view"
)

// Policy maps named permissions to the roles that hold them.
// Example: "users.list=admin|community_lead,users.manage=admin"
type Policy struct {
	grants map[string]map[models.Role]struct{}
}

// ParsePolicy builds a Policy from a comma-separated permission list. Role
// names are not checked against the known roles so new roles can be granted
// before code learns about them. Malformed entries are skipped.
func ParsePolicy(raw string) *Policy {
	grants := make(map[string]map[models.Role]struct{})

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		perm := normalize(parts[0])
		if perm == "" {
			continue
		}
		for _, r := range strings.Split(parts[1], "|") {
			if r = normalize(r); r == "" {
				continue
			}
			if grants[perm] == nil {
				grants[perm] = make(map[models.Role]struct{})
			}
			grants[perm][models.Role(r)] = struct{}{}
		}
	}

	return &Policy{grants: grants}
}

// Allows reports whether role holds perm. Unknown permissions deny.
func (p *Policy) Allows(role models.Role, perm string) bool {
	if p == nil {
		return false
	}
	roles, ok := p.grants[normalize(perm)]
	if !ok {
		return false
	}
	_, ok = roles[models.Role(normalize(string(role)))]
	return ok
}

// Roles returns the roles granted perm in sorted order.
func (p *Policy) Roles(perm string) []models.Role {
	if p == nil {
		return nil
	}
	out := make([]models.Role, 0, len(p.grants[normalize(perm)]))
	for r := range p.grants[normalize(perm)] {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
