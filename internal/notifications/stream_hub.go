package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"hubmedia/internal/models"
	"hubmedia/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Max connections per authenticated user across all streams
	maxConnsPerUser = 12
	// Max total connections
	maxTotalConns = 10000
)

// ErrHubClosed is returned by Register after Shutdown.
var ErrHubClosed = errors.New("stream hub is shutting down")

type roomKey struct {
	streamID uint
	audience models.EventAudience
}

// StreamHub keeps the push connections of every stream, grouped by audience.
type StreamHub struct {
	mu         sync.RWMutex
	rooms      map[roomKey]map[*Client]struct{}
	perUser    map[string]int
	totalConns int
	closed     bool
	logger     *observability.PushLogger
}

// NewStreamHub creates an empty hub.
func NewStreamHub() *StreamHub {
	return &StreamHub{
		rooms:   make(map[roomKey]map[*Client]struct{}),
		perUser: make(map[string]int),
		logger:  observability.NewPushLogger("stream hub"),
	}
}

// Name returns a human-readable identifier for this hub.
func (h *StreamHub) Name() string { return "stream hub" }

// Register adds a connection to the stream's audience room.
// userID may be empty for anonymous viewers; only authenticated users are capped per user.
func (h *StreamHub) Register(
	streamID uint, audience models.EventAudience, userID string, conn *websocket.Conn,
) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	if h.totalConns >= maxTotalConns {
		return nil, errors.New("server connection limit reached")
	}
	if userID != "" && h.perUser[userID] >= maxConnsPerUser {
		return nil, errors.New("user connection limit reached")
	}

	key := roomKey{streamID: streamID, audience: audience}
	room, ok := h.rooms[key]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[key] = room
	}

	client := NewClient(h, conn, streamID, audience, userID)
	room[client] = struct{}{}
	h.totalConns++
	if userID != "" {
		h.perUser[userID]++
	}

	observability.StreamConnections.WithLabelValues(observability.StreamLabel(streamID), string(audience)).Inc()
	h.logger.LogConnect(context.Background(), streamID, string(audience), userID)
	return client, nil
}

// UnregisterClient removes the client. Calling it twice is a no-op.
func (h *StreamHub) UnregisterClient(client *Client) {
	h.mu.Lock()
	key := roomKey{streamID: client.StreamID, audience: client.Audience}
	room, ok := h.rooms[key]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, exists := room[client]; !exists {
		h.mu.Unlock()
		return
	}
	delete(room, client)
	if len(room) == 0 {
		delete(h.rooms, key)
	}
	h.totalConns--
	if client.UserID != "" {
		h.perUser[client.UserID]--
		if h.perUser[client.UserID] <= 0 {
			delete(h.perUser, client.UserID)
		}
	}
	close(client.Send)
	h.mu.Unlock()

	observability.StreamConnections.WithLabelValues(observability.StreamLabel(client.StreamID), string(client.Audience)).Dec()
	h.logger.LogDisconnect(context.Background(), client.StreamID, string(client.Audience), client.UserID, "unregistered")
}

// Count returns the number of connections in one audience room of a stream.
func (h *StreamHub) Count(streamID uint, audience models.EventAudience) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomKey{streamID: streamID, audience: audience}])
}

// Deliver pushes payload to every client of the room and returns how many accepted it.
func (h *StreamHub) Deliver(streamID uint, audience models.EventAudience, eventType string, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for c := range h.rooms[roomKey{streamID: streamID, audience: audience}] {
		if c.TrySend(payload) {
			delivered++
		}
	}
	if delivered > 0 {
		observability.StreamEventsDelivered.WithLabelValues(eventType).Add(float64(delivered))
	}
	return delivered
}

// PublishStreamEvent delivers ev to local connections directly.
// It is the publisher used when no Redis client is configured.
func (h *StreamHub) PublishStreamEvent(_ context.Context, ev models.StreamEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal stream event: %w", err)
	}
	for _, audience := range ev.Audiences() {
		h.Deliver(ev.StreamID, audience, string(ev.Type), payload)
	}
	return nil
}

// StartWiring subscribes the hub to the notifier's stream channels so that
// events published by any instance reach the local connections.
func (h *StreamHub) StartWiring(ctx context.Context, n *Notifier) error {
	if err := n.StartStreamSubscriber(ctx, func(channel, payload string) {
		streamID, audience, ok := ParseStreamChannel(channel)
		if !ok {
			slog.Warn("invalid stream channel", slog.String("channel", channel))
			return
		}
		var head struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal([]byte(payload), &head)
		h.Deliver(streamID, audience, head.Type, []byte(payload))
	}); err != nil {
		return err
	}
	h.logger.LogLifecycle(ctx, "wired", map[string]interface{}{"redis": n.Enabled()})
	return nil
}

// Shutdown sends a going-away close frame to every connection and empties the hub.
func (h *StreamHub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	closed := 0
	for key, room := range h.rooms {
		for client := range room {
			if client.Conn != nil {
				if err := client.Conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")); err != nil {
					slog.Debug("failed to write close message",
						slog.Uint64("stream_id", uint64(key.streamID)),
						slog.String("error", err.Error()),
					)
				}
				_ = client.Conn.Close()
			}
			close(client.Send)
			closed++
		}
		observability.StreamConnections.DeleteLabelValues(observability.StreamLabel(key.streamID), string(key.audience))
	}
	h.rooms = make(map[roomKey]map[*Client]struct{})
	h.perUser = make(map[string]int)
	h.totalConns = 0

	h.logger.LogLifecycle(ctx, "shutdown", map[string]interface{}{"closed_connections": closed})
	return nil
}
