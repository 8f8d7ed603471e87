package server

import (
	"github.com/gofiber/fiber/v2"

	"planify/internal/models"
	"planify/internal/service"
)

// GetUser handles GET /api/users/:userId
// @Summary Get user
// @Description Owners and admins only
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param userId path int true "User ID"
// @Success 200 {object} models.Response{data=object{user=models.User}}
// @Failure 403 {object} models.Response
// @Failure 404 {object} models.Response
// @Router /users/{userId} [get]
func (s *Server) GetUser(c *fiber.Ctx) error {
	id, err := parseID(c, "userId")
	if err != nil {
		return err
	}
	user, err := s.accounts.GetProfile(c.UserContext(), id)
	if err != nil {
		return err
	}
	return models.RespondOK(c, fiber.StatusOK, "User retrieved successfully", fiber.Map{"user": user})
}

// ListUsers handles GET /api/admin/users
// @Summary List users
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param role query string false "Filter by role"
// @Param active query bool false "Only active accounts"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {object} models.Response{data=object{users=[]models.User,total=int}}
// @Failure 403 {object} models.Response
// @Router /admin/users [get]
func (s *Server) ListUsers(c *fiber.Ctx) error {
	filter := parseUserFilter(c)
	users, total, err := s.accounts.ListUsers(c.UserContext(), filter)
	if err != nil {
		return err
	}
	if users == nil {
		users = []models.User{}
	}
	return models.RespondOK(c, fiber.StatusOK, "Users retrieved successfully", fiber.Map{
		"users":  users,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// SetUserRole handles PATCH /api/admin/users/:userId/role
// @Summary Change a user's role
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path int true "User ID"
// @Param request body service.RoleUpdate true "New role"
// @Success 200 {object} models.Response{data=object{user=models.User}}
// @Failure 404 {object} models.Response
// @Failure 422 {object} models.Response
// @Router /admin/users/{userId}/role [patch]
func (s *Server) SetUserRole(c *fiber.Ctx) error {
	id, err := parseID(c, "userId")
	if err != nil {
		return err
	}
	var req service.RoleUpdate
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := s.accounts.SetRole(c.UserContext(), id, req)
	if err != nil {
		return err
	}
	return models.RespondOK(c, fiber.StatusOK, "User role updated successfully", fiber.Map{"user": user})
}

// SetUserStatus handles PATCH /api/admin/users/:userId/status
// @Summary Block, unblock, activate or deactivate a user
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path int true "User ID"
// @Param request body service.StatusUpdate true "Status flags"
// @Success 200 {object} models.Response{data=object{user=models.User}}
// @Failure 404 {object} models.Response
// @Failure 422 {object} models.Response
// @Router /admin/users/{userId}/status [patch]
func (s *Server) SetUserStatus(c *fiber.Ctx) error {
	id, err := parseID(c, "userId")
	if err != nil {
		return err
	}
	var req service.StatusUpdate
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := s.accounts.SetStatus(c.UserContext(), id, req)
	if err != nil {
		return err
	}
	return models.RespondOK(c, fiber.StatusOK, "User status updated successfully", fiber.Map{"user": user})
}
