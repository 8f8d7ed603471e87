package server

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"planify/internal/middleware"
	"planify/internal/models"
	"planify/internal/service"
)

// Register handles POST /api/auth/register
// @Summary Register
// @Description Create an account and receive an access and refresh token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.RegisterRequest true "Registration data"
// @Success 201 {object} models.Response{data=service.AuthResult}
// @Failure 409 {object} models.Response
// @Failure 422 {object} models.Response
// @Failure 429 {object} models.Response
// @Router /auth/register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var req service.RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	res, err := s.accounts.Register(c.UserContext(), req)
	if err != nil {
		return err
	}
	return models.RespondOK(c, fiber.StatusCreated, "User registered successfully", res)
}

// Login handles POST /api/auth/login
// @Summary Login
// @Description Authenticate with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.LoginRequest true "Login credentials"
// @Success 200 {object} models.Response{data=service.AuthResult}
// @Failure 401 {object} models.Response
// @Failure 422 {object} models.Response
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req service.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	res, err := s.accounts.Login(c.UserContext(), req)
	if err != nil {
		return err
	}
	return models.RespondOK(c, fiber.StatusOK, "Login successful", res)
}

// Refresh handles POST /api/auth/refresh
// @Summary Refresh tokens
// @Description Exchange a refresh token for a new token pair
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.RefreshRequest true "Refresh token"
// @Success 200 {object} models.Response{data=service.AuthResult}
// @Failure 401 {object} models.Response
// @Router /auth/refresh [post]
func (s *Server) Refresh(c *fiber.Ctx) error {
	var req service.RefreshRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	res, err := s.accounts.Refresh(c.UserContext(), req)
	if err != nil {
		return err
	}
	return models.RespondOK(c, fiber.StatusOK, "Token refreshed successfully", res)
}

// GetProfile handles GET /api/auth/profile
// @Summary Current profile
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Response{data=object{user=models.User}}
// @Failure 401 {object} models.Response
// @Router /auth/profile [get]
func (s *Server) GetProfile(c *fiber.Ctx) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return models.NewUnauthorizedError("Authentication required")
	}
	return models.RespondOK(c, fiber.StatusOK, "Profile retrieved successfully", fiber.Map{"user": user})
}

// UpdateProfile handles PUT /api/auth/profile
// @Summary Update profile
// @Description Only firstName, lastName, bio, phone and dateOfBirth may be changed
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{firstName=string,lastName=string,bio=string,phone=string,dateOfBirth=string} true "Profile fields"
// @Success 200 {object} models.Response{data=object{user=models.User}}
// @Failure 401 {object} models.Response
// @Failure 422 {object} models.Response
// @Router /auth/profile [put]
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return models.NewUnauthorizedError("Authentication required")
	}

	payload := map[string]json.RawMessage{}
	if body := c.Body(); len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			return models.NewBadRequestError("Invalid request body")
		}
	}

	updated, err := s.accounts.UpdateProfile(c.UserContext(), user.ID, payload)
	if err != nil {
		return err
	}
	return models.RespondOK(c, fiber.StatusOK, "Profile updated successfully", fiber.Map{"user": updated})
}

// ChangePassword handles PUT /api/auth/change-password
// @Summary Change password
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.ChangePasswordRequest true "Current and new password"
// @Success 200 {object} models.Response
// @Failure 400 {object} models.Response
// @Failure 422 {object} models.Response
// @Router /auth/change-password [put]
func (s *Server) ChangePassword(c *fiber.Ctx) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return models.NewUnauthorizedError("Authentication required")
	}

	var req service.ChangePasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := s.accounts.ChangePassword(c.UserContext(), user.ID, req); err != nil {
		return err
	}
	return models.RespondOK(c, fiber.StatusOK, "Password changed successfully", nil)
}

// Logout handles POST /api/auth/logout
// @Summary Logout
// @Description Revokes the presented tokens when revocation is enabled
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.LogoutRequest false "Refresh token to revoke"
// @Success 200 {object} models.Response
// @Failure 401 {object} models.Response
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	var req service.LogoutRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	claims, _ := middleware.CurrentClaims(c)
	if err := s.accounts.Logout(c.UserContext(), claims, req); err != nil {
		return err
	}
	return models.RespondOK(c, fiber.StatusOK, "Logged out successfully", nil)
}

// DeleteAccount handles DELETE /api/auth/account
// @Summary Deactivate account
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Response
// @Failure 401 {object} models.Response
// @Router /auth/account [delete]
func (s *Server) DeleteAccount(c *fiber.Ctx) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return models.NewUnauthorizedError("Authentication required")
	}
	if err := s.accounts.Deactivate(c.UserContext(), user.ID); err != nil {
		return err
	}
	return models.RespondOK(c, fiber.StatusOK, "Account deactivated successfully", nil)
}
