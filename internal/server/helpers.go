package server

import (
	"errors"
	"strings"
	"unicode"

	"lionboard/internal/middleware"
	"lionboard/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// parseKind reads the :kind route segment ("threads" or "answers").
func parseKind(c *fiber.Ctx) (models.ContentKind, error) {
	kind, err := models.ParseContentKind(c.Params("kind"))
	if err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest, err)
		return "", errResponseWritten
	}
	return kind, nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "threadId" -> "thread ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		words := splitCamel(param[:len(param)-2])
		return strings.ToLower(strings.Join(words, " ")) + " ID"
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

// respondError writes err with the status its code maps to.
func respondError(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, models.StatusFor(err), err)
}

// requireModerator writes 403 unless the caller may moderate. It returns
// errResponseWritten when the response is already committed.
func (s *Server) requireModerator(c *fiber.Ctx) error {
	ok, err := s.roleService.CanModerate(c.UserContext(), middleware.UserID(c))
	if err != nil {
		_ = respondError(c, models.NewInternalError(err))
		return errResponseWritten
	}
	if !ok {
		_ = respondError(c, models.NewUnauthorizedError("moderator privileges required"))
		return errResponseWritten
	}
	return nil
}
