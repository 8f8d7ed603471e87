package server

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"planify/internal/database"
	"planify/internal/middleware"
	"planify/internal/models"
)

const readinessTimeout = 5 * time.Second

// Welcome handles GET /api/ and greets authenticated callers by name.
// @Summary Welcome
// @Tags meta
// @Produce json
// @Success 200 {object} models.Response
// @Router / [get]
func (s *Server) Welcome(c *fiber.Ctx) error {
	message := "Welcome to Planify API"
	if u, ok := middleware.CurrentUser(c); ok {
		message = fmt.Sprintf("Welcome back to Planify API, %s", u.FirstName)
	}
	return models.RespondOK(c, fiber.StatusOK, message, fiber.Map{
		"version":       version,
		"documentation": "/api/swagger/index.html",
		"health":        "/health",
	})
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return models.RespondOK(c, fiber.StatusOK, "Server is alive", fiber.Map{
		"status": "up",
		"time":   time.Now().UTC(),
	})
}

// ReadinessCheck handles readiness probe requests. The database is required;
// Redis is reported but optional.
// @Summary Health check
// @Tags meta
// @Produce json
// @Success 200 {object} models.Response
// @Failure 503 {object} models.Response
// @Router /health [get]
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
	defer cancel()

	dbStatus := "healthy"
	if s.db == nil {
		dbStatus = "unavailable"
	} else if err := database.Ping(ctx, s.db, readinessTimeout); err != nil {
		dbStatus = "unhealthy"
		middleware.Logger.WarnContext(ctx, "readiness: database ping failed", "error", err.Error())
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	data := fiber.Map{
		"timestamp":   time.Now().UTC(),
		"environment": s.config.Env,
		"version":     version,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
	}

	if dbStatus != "healthy" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(models.Response{
			Success: false,
			Message: "Server is unhealthy",
			Data:    data,
		})
	}
	return models.RespondOK(c, fiber.StatusOK, "Server is healthy", data)
}

// NotFound answers every unmatched route.
func (s *Server) NotFound(c *fiber.Ctx) error {
	return fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("Route %s not found", c.OriginalURL()))
}
