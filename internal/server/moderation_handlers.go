package server

import (
	"hubmedia/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetModerationQueue returns pending messages, oldest first
// @Summary Get moderation queue
// @Tags Moderation
// @Produce json
// @Param id path int true "Stream ID"
// @Success 200 {array} models.Message
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /streams/{id}/moderation [get]
func (s *Server) GetModerationQueue(c *fiber.Ctx) error {
	streamID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	queue, err := s.moderationService.ListQueue(c.UserContext(), service.QueueQuery{
		StreamID: streamID,
		ActorID:  actorID(c),
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(queue)
}

// ApproveMessage publishes a queued message
// @Summary Approve a message
// @Tags Moderation
// @Produce json
// @Param messageId path int true "Message ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /moderation/{messageId}/approve [post]
func (s *Server) ApproveMessage(c *fiber.Ctx) error {
	messageID, err := s.parseID(c, "messageId")
	if err != nil {
		return nil
	}

	msg, err := s.moderationService.Approve(c.UserContext(), service.ModerationActionInput{
		MessageID: messageID,
		ActorID:   actorID(c),
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"ok":      true,
		"message": msg,
	})
}

// RejectMessage deletes a queued message
// @Summary Reject a message
// @Tags Moderation
// @Produce json
// @Param messageId path int true "Message ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /moderation/{messageId}/reject [post]
func (s *Server) RejectMessage(c *fiber.Ctx) error {
	messageID, err := s.parseID(c, "messageId")
	if err != nil {
		return nil
	}

	if _, err := s.moderationService.Reject(c.UserContext(), service.ModerationActionInput{
		MessageID: messageID,
		ActorID:   actorID(c),
	}); err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"ok": true})
}
