package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"hubmedia/internal/middleware"
	"hubmedia/internal/models"
	"hubmedia/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// StreamFeedSocket pushes feed events for one stream. Anyone may listen.
func (s *Server) StreamFeedSocket() fiber.Handler {
	return s.streamSocket(models.AudienceFeed)
}

// StreamModerationSocket pushes queue events for one stream to its owner.
func (s *Server) StreamModerationSocket() fiber.Handler {
	return s.streamSocket(models.AudienceModeration)
}

func (s *Server) streamSocket(audience models.EventAudience) fiber.Handler {
	upgrade := websocket.New(func(conn *websocket.Conn) {
		ctx, _ := conn.Locals("ctx").(context.Context)
		if ctx == nil {
			ctx = context.Background()
		}

		middleware.ActiveWebSockets.Inc()
		defer middleware.ActiveWebSockets.Dec()

		streamID, _ := conn.Locals("streamID").(uint)
		userID, _ := conn.Locals("userID").(string)
		ctx = middleware.WithStreamID(ctx, streamID)

		client, err := s.hub.Register(streamID, audience, userID, conn)
		if err != nil {
			middleware.Logger.WarnContext(ctx, "push registration refused",
				slog.Uint64("stream_id", uint64(streamID)),
				slog.String("audience", string(audience)),
				slog.String("error", err.Error()),
			)
			payload, _ := json.Marshal(fiber.Map{"type": "error", "payload": fiber.Map{"message": err.Error()}})
			_ = conn.WriteMessage(websocket.TextMessage, payload)
			_ = conn.Close()
			return
		}

		if hello, err := json.Marshal(fiber.Map{
			"type":     "connected",
			"streamId": streamID,
			"audience": audience,
		}); err == nil {
			client.TrySend(hello)
		}

		go client.WritePump()

		// Blocks until the peer goes away.
		client.ReadPump()
	})

	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return models.RespondWithError(c, fiber.StatusUpgradeRequired,
				models.NewValidationError("WebSocket upgrade required"))
		}

		streamID, err := s.parseID(c, "id")
		if err != nil {
			return nil
		}

		stream, err := s.streamService.GetStream(c.UserContext(), streamID)
		if err != nil {
			return respondServiceError(c, err)
		}
		if audience == models.AudienceModeration {
			if err := service.CheckOwner(stream, actorID(c)); err != nil {
				return respondServiceError(c, err)
			}
		}

		c.Locals("streamID", streamID)
		c.Locals("ctx", c.UserContext())
		return upgrade(c)
	}
}
