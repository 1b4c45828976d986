package server

import (
	"time"

	"lionboard/internal/middleware"
	"lionboard/internal/models"
	"lionboard/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createThreadRequest struct {
	Title            string     `json:"title"`
	Body             string     `json:"body"`
	ShowRealIdentity bool       `json:"show_real_identity"`
	ExpiresAt        *time.Time `json:"expires_at"`
}

type createReplyRequest struct {
	Body             string `json:"body"`
	ShowRealIdentity bool   `json:"show_real_identity"`
}

// CreateThread handles POST /api/threads.
func (s *Server) CreateThread(c *fiber.Ctx) error {
	var req createThreadRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}

	created, err := s.contentService.CreateThread(c.UserContext(), service.CreateThreadInput{
		UserID:           middleware.UserID(c),
		Title:            req.Title,
		Body:             req.Body,
		ShowRealIdentity: req.ShowRealIdentity,
		ExpiresAt:        req.ExpiresAt,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// CreateAnswer handles POST /api/threads/:id/answers.
func (s *Server) CreateAnswer(c *fiber.Ctx) error {
	threadID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req createReplyRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}

	created, err := s.contentService.CreateAnswer(c.UserContext(), service.CreateAnswerInput{
		UserID:           middleware.UserID(c),
		ThreadID:         threadID,
		Body:             req.Body,
		ShowRealIdentity: req.ShowRealIdentity,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// CreateComment handles POST /api/threads/:id/comments.
func (s *Server) CreateComment(c *fiber.Ctx) error {
	threadID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req createReplyRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}

	created, err := s.contentService.CreateComment(c.UserContext(), service.CreateCommentInput{
		UserID:           middleware.UserID(c),
		ThreadID:         threadID,
		Body:             req.Body,
		ShowRealIdentity: req.ShowRealIdentity,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}
