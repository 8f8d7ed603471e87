package cache

import "fmt"

const (
	rateLimitKeyPattern    = "ratelimit:%s:%s"
	revokedTokenKeyPattern = "revoked:%s"
)

// RateLimitKey is the counter key for one client of a limited resource.
func RateLimitKey(resource, clientID string) string {
	return fmt.Sprintf(rateLimitKeyPattern, resource, clientID)
}

// RevokedTokenKey marks a token id as revoked.
func RevokedTokenKey(jti string) string {
	return fmt.Sprintf(revokedTokenKeyPattern, jti)
}
