package models

import "time"

// StreamEventType names a state change emitted to stream observers.
type StreamEventType string

// Event type constants prevent typos in event names.
const (
	EventStreamStarted     StreamEventType = "stream_started"
	EventStreamEnded       StreamEventType = "stream_ended"
	EventMessageSent       StreamEventType = "message_sent"
	EventMessageQueued     StreamEventType = "message_queued"
	EventMessageApproved   StreamEventType = "message_approved"
	EventMessageRejected   StreamEventType = "message_rejected"
	EventModerationToggled StreamEventType = "moderation_toggled"
	EventViewerCount       StreamEventType = "viewer_count"
)

// EventAudience selects which subscribers receive an event.
type EventAudience string

const (
	// AudienceFeed reaches every viewer of the stream.
	AudienceFeed EventAudience = "feed"
	// AudienceModeration reaches the stream's moderators only.
	AudienceModeration EventAudience = "moderation"
)

// StreamEvent is the payload published for every observable change of a stream.
type StreamEvent struct {
	Type              StreamEventType `json:"type"`
	StreamID          uint            `json:"streamId"`
	Message           *Message        `json:"message,omitempty"`
	MessageID         uint            `json:"messageId,omitempty"`
	Status            *StreamStatus   `json:"status,omitempty"`
	ModerationEnabled *bool           `json:"moderationEnabled,omitempty"`
	At                time.Time       `json:"at"`
}

// Audiences returns the subscriber groups the event must be delivered to.
// Pending messages never reach the public feed.
func (e StreamEvent) Audiences() []EventAudience {
	switch e.Type {
	case EventMessageQueued, EventMessageRejected:
		return []EventAudience{AudienceModeration}
	case EventMessageApproved, EventModerationToggled, EventStreamEnded:
		return []EventAudience{AudienceFeed, AudienceModeration}
	default:
		return []EventAudience{AudienceFeed}
	}
}
