// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// DefaultStreamTitle is used when a broadcaster starts a stream without a title.
const DefaultStreamTitle = "Untitled Stream"

// Stream represents a single broadcast session.
// EndedAt is nil exactly while IsLive is true; an ended stream is never revived.
type Stream struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	OwnerID           string     `gorm:"size:64;not null;index" json:"ownerId"`
	Title             string     `gorm:"size:255;not null" json:"title"`
	IsLive            bool       `gorm:"not null;index" json:"isLive"`
	ModerationEnabled bool       `gorm:"not null" json:"moderationEnabled"`
	ViewerCount       int        `gorm:"not null" json:"viewerCount"`
	StartedAt         time.Time  `gorm:"not null" json:"startedAt"`
	EndedAt           *time.Time `json:"endedAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// TableName returns the database table name for Stream.
func (Stream) TableName() string {
	return "streams"
}

// Status returns the polling snapshot of the stream.
func (s *Stream) Status() StreamStatus {
	if s == nil || !s.IsLive {
		return StreamStatus{}
	}
	return StreamStatus{IsLive: true, ViewerCount: s.ViewerCount}
}

// Duration reports how long the stream has been (or was) on air.
func (s *Stream) Duration(now time.Time) time.Duration {
	end := now
	if s.EndedAt != nil {
		end = *s.EndedAt
	}
	if end.Before(s.StartedAt) {
		return 0
	}
	return end.Sub(s.StartedAt)
}

// StreamStatus is the read model served to polling clients.
// The zero value is the offline default returned for unknown streams.
type StreamStatus struct {
	IsLive      bool `json:"isLive"`
	ViewerCount int  `json:"viewerCount"`
}
