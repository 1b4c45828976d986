package server

import (
	"lionboard/internal/middleware"
	"lionboard/internal/models"
	"lionboard/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetThreadIdentity returns the caller's pseudonym in a thread, creating it
// on first use.
func (s *Server) GetThreadIdentity(c *fiber.Ctx) error {
	threadID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	pseudonym, err := s.identityService.Resolve(c.UserContext(), middleware.UserID(c), threadID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"thread_id": threadID,
		"pseudonym": pseudonym,
	})
}

// ListThreadIdentities shows every pseudonym mapping of a thread. The
// mapping links pseudonyms to accounts, so only moderators may read it.
func (s *Server) ListThreadIdentities(c *fiber.Ctx) error {
	threadID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.requireModerator(c); err != nil {
		return nil
	}

	identities, err := s.identityService.ListForThread(c.UserContext(), threadID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(identities)
}

// RevealIdentity handles POST /api/{threads|answers}/:id/reveal.
func (s *Server) RevealIdentity(kind models.ContentKind) fiber.Handler {
	return s.toggleIdentity(kind, true)
}

// HideIdentity handles POST /api/{threads|answers}/:id/hide.
func (s *Server) HideIdentity(kind models.ContentKind) fiber.Handler {
	return s.toggleIdentity(kind, false)
}

func (s *Server) toggleIdentity(kind models.ContentKind, show bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return nil
		}

		in := service.IdentityInput{Kind: kind, ItemID: id, ActorID: middleware.UserID(c)}
		var changed bool
		if show {
			changed, err = s.contentService.RevealIdentity(c.UserContext(), in)
		} else {
			changed, err = s.contentService.HideIdentity(c.UserContext(), in)
		}
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"type":               kind,
			"id":                 id,
			"show_real_identity": show,
			"changed":            changed,
		})
	}
}
