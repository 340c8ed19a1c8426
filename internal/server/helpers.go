package server

import (
	"errors"
	"net/url"

	"murmur/internal/auth"
	"murmur/internal/authz"
	"murmur/internal/middleware"
	"murmur/internal/models"
	"murmur/internal/repository"

	"github.com/gofiber/fiber/v2"
)

// Fiber locals set by Authenticate.
const (
	localUserID = "userID"
	localClaims = "claims"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

const maxPaginationLimit = 100

// parsePagination extracts limit and offset query parameters with the given default limit.
func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	return Pagination{Limit: limit, Offset: offset}
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.Respond(c, models.NewValidationError("Invalid ID"))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// bindJSON decodes the request body into v. An empty body leaves v untouched.
// On failure it writes a 400 JSON response and returns errResponseWritten.
func bindJSON(c *fiber.Ctx, v any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(v); err != nil {
		_ = models.Respond(c, models.NewValidationError("Invalid request body"))
		return errResponseWritten
	}
	return nil
}

// actorFrom returns the caller set by Authenticate, or the anonymous actor.
func actorFrom(c *fiber.Ctx) authz.Actor {
	if id, ok := c.Locals(localUserID).(uint); ok {
		return authz.Actor{ID: id}
	}
	return authz.Anonymous
}

func claimsFrom(c *fiber.Ctx) *auth.Claims {
	claims, _ := c.Locals(localClaims).(*auth.Claims)
	return claims
}

// respondError writes err and logs it when it maps to a server error.
func (s *Server) respondError(c *fiber.Ctx, err error) error {
	status := models.StatusFor(err)
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			"path", c.Path(), "method", c.Method(), "error", err)
	}
	return models.RespondWithError(c, status, err)
}

// pageURL is the absolute URL of the current request with its cursor replaced.
// Other query parameters, such as filters, are kept.
func pageURL(c *fiber.Ctx, cur *repository.Cursor) *string {
	if cur == nil {
		return nil
	}
	q := url.Values{}
	c.Context().QueryArgs().VisitAll(func(k, v []byte) {
		q.Add(string(k), string(v))
	})
	q.Set("cursor", cur.Encode())
	u := c.BaseURL() + c.Path() + "?" + q.Encode()
	return &u
}
