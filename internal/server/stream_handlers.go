package server

import (
	"strings"

	"hubmedia/internal/models"
	"hubmedia/internal/service"
	"hubmedia/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// StartStreamRequest represents the request body for going live
type StartStreamRequest struct {
	OwnerID           string `json:"ownerId" validate:"max=64"`
	Title             string `json:"title" validate:"max=255"`
	ModerationEnabled bool   `json:"moderationEnabled"`
}

// SetModerationRequest represents the request body for toggling the moderation gate
type SetModerationRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// ListLiveStreams returns the streams currently on air
// @Summary List live streams
// @Tags Streams
// @Produce json
// @Param limit query int false "Limit results" default(20)
// @Param offset query int false "Offset for pagination" default(0)
// @Success 200 {object} map[string]interface{}
// @Router /streams [get]
func (s *Server) ListLiveStreams(c *fiber.Ctx) error {
	page := parsePagination(c, 20)

	streams, total, err := s.streamService.ListLive(c.UserContext(), page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"streams": streams,
		"total":   total,
		"limit":   page.Limit,
		"offset":  page.Offset,
	})
}

// StartStream creates a live stream for the caller
// @Summary Start a stream
// @Tags Streams
// @Accept json
// @Produce json
// @Param stream body StartStreamRequest true "Stream data"
// @Success 201 {object} map[string]interface{}
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /streams [post]
func (s *Server) StartStream(c *fiber.Ctx) error {
	var req StartStreamRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if err := validation.Struct(req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(err.Error()))
	}

	// An authenticated caller always streams as themselves.
	ownerID := strings.TrimSpace(req.OwnerID)
	if uid := actorID(c); uid != "" {
		ownerID = uid
	}

	stream, err := s.streamService.StartStream(c.UserContext(), service.StartStreamInput{
		OwnerID:           ownerID,
		Title:             req.Title,
		ModerationEnabled: req.ModerationEnabled,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"streamId": stream.ID,
		"stream":   stream,
	})
}

// GetOwnerStreams returns a broadcaster's streams, newest first
// @Summary List streams by owner
// @Tags Streams
// @Produce json
// @Param ownerId path string true "Owner ID"
// @Param limit query int false "Limit results" default(20)
// @Param offset query int false "Offset for pagination" default(0)
// @Success 200 {object} map[string]interface{}
// @Router /streams/owner/{ownerId} [get]
func (s *Server) GetOwnerStreams(c *fiber.Ctx) error {
	page := parsePagination(c, 20)

	streams, err := s.streamService.ListByOwner(c.UserContext(), c.Params("ownerId"), page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"streams": streams,
		"limit":   page.Limit,
		"offset":  page.Offset,
	})
}

// GetStreamStatus returns the polling snapshot of a stream.
// Unknown streams report offline rather than 404.
// @Summary Get stream status
// @Tags Streams
// @Produce json
// @Param id path int true "Stream ID"
// @Success 200 {object} models.StreamStatus
// @Router /streams/{id}/status [get]
func (s *Server) GetStreamStatus(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	status, err := s.streamService.GetStatus(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(status)
}

// GetViewerCount returns the simulated audience size
// @Summary Get viewer count
// @Tags Streams
// @Produce json
// @Param id path int true "Stream ID"
// @Success 200 {object} map[string]int
// @Router /streams/{id}/viewers [get]
func (s *Server) GetViewerCount(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	count, err := s.viewerService.GetCount(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"count": count})
}

// GetStream returns a stream with its pending moderation count
// @Summary Get stream by ID
// @Tags Streams
// @Produce json
// @Param id path int true "Stream ID"
// @Success 200 {object} service.StreamDetail
// @Failure 404 {object} models.ErrorResponse
// @Router /streams/{id} [get]
func (s *Server) GetStream(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	detail, err := s.streamService.GetStreamDetail(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(detail)
}

// SetStreamModeration turns the moderation gate on or off
// @Summary Toggle moderation
// @Tags Moderation
// @Accept json
// @Produce json
// @Param id path int true "Stream ID"
// @Param body body SetModerationRequest true "Moderation state"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /streams/{id}/moderation [put]
func (s *Server) SetStreamModeration(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req SetModerationRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if err := validation.Struct(req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(err.Error()))
	}

	stream, err := s.streamService.SetModeration(c.UserContext(), service.SetModerationInput{
		StreamID: id,
		ActorID:  actorID(c),
		Enabled:  *req.Enabled,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"ok":                true,
		"moderationEnabled": stream.ModerationEnabled,
	})
}

// EndStream takes a stream off air. Ending an ended stream is a no-op.
// @Summary End a stream
// @Tags Streams
// @Produce json
// @Param id path int true "Stream ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /streams/{id}/end [post]
func (s *Server) EndStream(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	stream, err := s.streamService.EndStream(c.UserContext(), service.EndStreamInput{
		StreamID: id,
		ActorID:  actorID(c),
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"ok":     true,
		"stream": stream,
	})
}
