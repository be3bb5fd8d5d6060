// Gallery change notifications
package notify

import (
	"encoding/json"
	"time"

	"photo-booth/internal/effects"
	"photo-booth/internal/gallery"
)

// Event types
const (
	EventPhotoSaved     = "photo.saved"
	EventGalleryCleared = "gallery.cleared"
	EventSessionEnded   = "session.ended"
)

// Event describes one state change of a session's gallery
type Event struct {
	Type      string         `json:"type"`
	SessionID string         `json:"sessionId"`
	PhotoID   int            `json:"photoId,omitempty"`
	Effect    *effects.Kind  `json:"effect,omitempty"`
	Source    gallery.Source `json:"source,omitempty"`
	Total     int            `json:"total"`
	Timestamp time.Time      `json:"timestamp"`
}

// PhotoSaved builds the event for a newly saved record
func PhotoSaved(sessionID string, record gallery.PhotoRecord, total int) Event {
	effect := record.Effect()
	return Event{
		Type:      EventPhotoSaved,
		SessionID: sessionID,
		PhotoID:   record.ID(),
		Effect:    &effect,
		Source:    record.Source(),
		Total:     total,
		Timestamp: record.Timestamp(),
	}
}

// GalleryCleared builds the event for a cleared gallery
func GalleryCleared(sessionID string, at time.Time) Event {
	return Event{
		Type:      EventGalleryCleared,
		SessionID: sessionID,
		Timestamp: at,
	}
}

// SessionEnded builds the event sent when a session is removed
func SessionEnded(sessionID string, at time.Time) Event {
	return Event{
		Type:      EventSessionEnded,
		SessionID: sessionID,
		Timestamp: at,
	}
}

// Notifier receives events. Publish must not block the caller for long.
type Notifier interface {
	Publish(event Event)
}

// Multi fans an event out to several notifiers
type Multi []Notifier

func (m Multi) Publish(event Event) {
	for _, n := range m {
		if n != nil {
			n.Publish(event)
		}
	}
}

// Discard drops every event
type Discard struct{}

func (Discard) Publish(Event) {}

func mustMarshal(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte(`{"type":"error"}`)
	}
	return data
}
