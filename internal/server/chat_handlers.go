package server

import (
	"hubmedia/internal/featureflags"
	"hubmedia/internal/models"
	"hubmedia/internal/service"
	"hubmedia/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// SendMessageRequest represents a chat submission
type SendMessageRequest struct {
	Author       string `json:"author" validate:"notblank"`
	Text         string `json:"text" validate:"notblank"`
	AuthorUserID string `json:"authorUserId,omitempty" validate:"max=64"`
	Avatar       string `json:"avatar,omitempty"`
}

// SendStreamMessage posts a chat message. Moderated streams answer 202 and
// hold the message for review.
// @Summary Send a chat message
// @Tags Chat
// @Accept json
// @Produce json
// @Param id path int true "Stream ID"
// @Param message body SendMessageRequest true "Message"
// @Success 201 {object} models.Message
// @Success 202 {object} map[string]interface{}
// @Failure 409 {object} models.ErrorResponse
// @Router /streams/{id}/messages [post]
func (s *Server) SendStreamMessage(c *fiber.Ctx) error {
	streamID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if err := validation.Struct(req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(err.Error()))
	}

	authorUserID := req.AuthorUserID
	if uid := actorID(c); uid != "" {
		authorUserID = uid
	}

	msg, err := s.chatService.Send(c.UserContext(), service.SendMessageInput{
		StreamID:     streamID,
		Author:       req.Author,
		AuthorUserID: authorUserID,
		AvatarURL:    req.Avatar,
		Text:         req.Text,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	if msg.IsPending() {
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"queued":  true,
			"message": msg,
		})
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// GetStreamMessages returns approved messages in insertion order
// @Summary Get chat feed
// @Tags Chat
// @Produce json
// @Param id path int true "Stream ID"
// @Param after query int false "Return messages with an ID greater than this"
// @Param limit query int false "Maximum number of messages (0 = all)"
// @Success 200 {array} models.Message
// @Router /streams/{id}/messages [get]
func (s *Server) GetStreamMessages(c *fiber.Ctx) error {
	streamID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	afterID, err := parseQueryUint(c, "after")
	if err != nil {
		return nil
	}
	limit, err := parseQueryUint(c, "limit")
	if err != nil {
		return nil
	}

	feed, err := s.chatService.GetVisibleFeed(c.UserContext(), service.FeedQuery{
		StreamID: streamID,
		AfterID:  afterID,
		Limit:    int(limit),
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(feed)
}

// SimulateStreamMessage posts one canned viewer message
// @Summary Simulate chatter
// @Tags Chat
// @Produce json
// @Param id path int true "Stream ID"
// @Success 201 {object} models.Message
// @Success 202 {object} map[string]interface{}
// @Failure 403 {object} models.ErrorResponse
// @Router /streams/{id}/messages/simulate [post]
func (s *Server) SimulateStreamMessage(c *fiber.Ctx) error {
	streamID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if !s.featureFlags.Enabled(featureflags.ChatSimulation, actorID(c)) {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("Chat simulation is disabled"))
	}

	msg, err := s.chatService.Simulate(c.UserContext(), streamID)
	if err != nil {
		return respondServiceError(c, err)
	}

	if msg.IsPending() {
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"queued":  true,
			"message": msg,
		})
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}
