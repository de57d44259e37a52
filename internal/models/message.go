package models

import "time"

const (
	// DefaultAvatarURL is shown for senders that did not supply an avatar.
	DefaultAvatarURL = "/default-avatar.png"
	// SystemAuthorName is the display name of lifecycle announcements.
	SystemAuthorName = "System"

	// StreamStartedText announces a stream going live.
	StreamStartedText = "Stream started. You are now live!"
	// StreamEndedText announces the end of a stream.
	StreamEndedText = "Stream ended."
)

// Message is one chat entry of a stream.
// Ordering is by ID, which the store assigns in insertion order.
// A system message is approved at creation and stays approved.
type Message struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	StreamID     uint      `gorm:"not null;index:idx_stream_messages_visibility,priority:1" json:"streamId"`
	AuthorUserID *string   `gorm:"size:64" json:"authorUserId,omitempty"`
	AuthorName   string    `gorm:"size:100;not null" json:"author"`
	AvatarURL    string    `gorm:"size:512" json:"avatar"`
	Text         string    `gorm:"type:text;not null" json:"text"`
	IsSystem     bool      `gorm:"not null" json:"isSystem"`
	IsApproved   bool      `gorm:"not null;index:idx_stream_messages_visibility,priority:2" json:"isApproved"`
	CreatedAt    time.Time `json:"createdAt"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string {
	return "stream_messages"
}

// IsPending reports whether the message is waiting in the moderation queue.
func (m *Message) IsPending() bool {
	return !m.IsApproved && !m.IsSystem
}
