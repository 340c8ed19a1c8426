package server

import (
	"murmur/internal/service"

	"github.com/gofiber/fiber/v2"
)

type profileRequest struct {
	Username  *string `json:"username"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

// ListUsers handles GET /api/user
// @Summary List users
// @Tags users
// @Security BearerAuth
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} models.User
// @Router /user [get]
func (s *Server) ListUsers(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	users, err := s.userService.ListUsers(c.UserContext(), actorFrom(c), page.Limit, page.Offset)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(users)
}

// GetMe handles GET /api/user/me
func (s *Server) GetMe(c *fiber.Ctx) error {
	actor := actorFrom(c)
	user, err := s.userService.GetUser(c.UserContext(), actor, actor.ID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(user)
}

// GetUser handles GET /api/user/:id
func (s *Server) GetUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	user, err := s.userService.GetUser(c.UserContext(), actorFrom(c), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(user)
}

// UpdateUser handles PATCH /api/user/:id. Users may only edit themselves.
// @Summary Update the caller's profile
// @Tags users
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param request body profileRequest true "Profile fields"
// @Success 200 {object} models.User
// @Failure 403 {object} models.ErrorResponse
// @Router /user/{id} [patch]
func (s *Server) UpdateUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req profileRequest
	if err := bindJSON(c, &req); err != nil {
		return nil
	}

	user, err := s.userService.UpdateProfile(c.UserContext(), actorFrom(c), id, service.UpdateProfileInput{
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(user)
}
