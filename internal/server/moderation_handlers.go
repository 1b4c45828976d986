package server

import (
	"lionboard/internal/middleware"
	"lionboard/internal/models"
	"lionboard/internal/service"

	"github.com/gofiber/fiber/v2"
)

type redactRequest struct {
	Reason string `json:"reason"`
	State  string `json:"state"`
}

// RedactContent handles PATCH /api/moderation/:kind/:id/redact.
func (s *Server) RedactContent(c *fiber.Ctx) error {
	kind, err := parseKind(c)
	if err != nil {
		return nil
	}
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	var req redactRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return respondError(c, models.NewValidationError("Invalid request body"))
		}
	}

	item, err := s.redactionService.Redact(c.UserContext(), service.RedactInput{
		Kind:    kind,
		ItemID:  id,
		ActorID: middleware.UserID(c),
		Reason:  req.Reason,
		State:   req.State,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(item)
}

// UnredactContent handles PATCH /api/moderation/:kind/:id/unredact.
func (s *Server) UnredactContent(c *fiber.Ctx) error {
	kind, err := parseKind(c)
	if err != nil {
		return nil
	}
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	item, err := s.redactionService.Unredact(c.UserContext(), service.UnredactInput{
		Kind:    kind,
		ItemID:  id,
		ActorID: middleware.UserID(c),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(item)
}

// GetAuditEntries handles GET /api/moderation/:kind/:id/audit.
func (s *Server) GetAuditEntries(c *fiber.Ctx) error {
	kind, err := parseKind(c)
	if err != nil {
		return nil
	}
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.requireModerator(c); err != nil {
		return nil
	}

	entries, err := s.auditService.Query(c.UserContext(), models.AuditTarget{Kind: kind, ID: id})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(entries)
}

// GetModerationQueue handles GET /api/moderation/threads.
func (s *Server) GetModerationQueue(c *fiber.Ctx) error {
	threads, err := s.redactionService.ModerationQueue(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(threads)
}
