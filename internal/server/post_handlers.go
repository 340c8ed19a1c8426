package server

import (
	"murmur/internal/models"
	"murmur/internal/repository"
	"murmur/internal/service"

	"github.com/gofiber/fiber/v2"
)

type postRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

type postPage struct {
	Next     *string        `json:"next"`
	Previous *string        `json:"previous"`
	Results  []*models.Post `json:"results"`
}

// ListPosts handles GET /api/post
// @Summary List posts, most recently updated first
// @Tags posts
// @Security BearerAuth
// @Produce json
// @Param cursor query string false "Page cursor"
// @Param user__username query string false "Exact owner username"
// @Param user__username__icontains query string false "Owner username contains"
// @Success 200 {object} postPage
// @Failure 401 {object} models.ErrorResponse
// @Router /post [get]
func (s *Server) ListPosts(c *fiber.Ctx) error {
	page, err := s.postService.ListPosts(c.UserContext(), actorFrom(c), service.ListPostsInput{
		Filter: repository.PostFilter{
			Username:         c.Query("user__username"),
			UsernameContains: c.Query("user__username__icontains"),
		},
		Cursor: c.Query("cursor"),
	})
	if err != nil {
		return s.respondError(c, err)
	}

	results := page.Results
	if results == nil {
		results = []*models.Post{}
	}
	return c.JSON(postPage{
		Next:     pageURL(c, page.Next),
		Previous: pageURL(c, page.Previous),
		Results:  results,
	})
}

// CreatePost handles POST /api/post. The owner is always the caller.
// @Summary Create a post owned by the caller
// @Tags posts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body postRequest true "Post"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Router /post [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req postRequest
	if err := bindJSON(c, &req); err != nil {
		return nil
	}

	in := service.CreatePostInput{}
	if req.Title != nil {
		in.Title = *req.Title
	}
	if req.Content != nil {
		in.Content = *req.Content
	}

	post, err := s.postService.CreatePost(c.UserContext(), actorFrom(c), in)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetPost handles GET /api/post/:id
// @Summary Get a post
// @Tags posts
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /post/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.GetPost(c.UserContext(), actorFrom(c), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(post)
}

// UpdatePost handles PUT and PATCH /api/post/:id. PUT needs both fields.
// @Summary Update a post
// @Tags posts
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body postRequest true "Fields"
// @Success 200 {object} models.Post
// @Failure 403 {object} models.ErrorResponse
// @Router /post/{id} [put]
// @Router /post/{id} [patch]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	actor := actorFrom(c)
	partial := c.Method() == fiber.MethodPatch
	if err := s.postService.AuthorizeUpdate(c.UserContext(), actor, id, partial); err != nil {
		return s.respondError(c, err)
	}
	var req postRequest
	if err := bindJSON(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.UpdatePost(c.UserContext(), actor, id, service.UpdatePostInput{
		Title:   req.Title,
		Content: req.Content,
		Partial: partial,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/post/:id
// @Summary Delete a post
// @Tags posts
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Router /post/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.postService.DeletePost(c.UserContext(), actorFrom(c), id); err != nil {
		return s.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// LikePost handles POST /api/post/:id/like and flips the caller's like.
// @Summary Toggle the caller's like
// @Tags posts
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 401 {object} models.ErrorResponse
// @Router /post/{id}/like [post]
func (s *Server) LikePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	res, err := s.postService.ToggleLike(c.UserContext(), actorFrom(c), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(res.Post)
}
