package gallery

import (
	"strings"
	"time"

	"photo-booth/internal/core"
	"photo-booth/internal/effects"
	apperrors "photo-booth/internal/errors"
)

// Source is where a photo came from
type Source string

const (
	SourceCamera Source = "camera"
	SourceUpload Source = "upload"
	SourceRemote Source = "remote"
)

// ParseSource rejects anything outside the three known origins
func ParseSource(s string) (Source, error) {
	switch src := Source(strings.ToLower(strings.TrimSpace(s))); src {
	case SourceCamera, SourceUpload, SourceRemote:
		return src, nil
	default:
		return "", apperrors.ErrInvalidSource.With("source", s)
	}
}

func (s Source) String() string { return string(s) }

// PhotoRecord is a saved photo. Fields are only reachable through
// accessors so a record cannot change after Save.
type PhotoRecord struct {
	id        int
	image     core.Image
	effect    effects.Kind
	source    Source
	timestamp time.Time
}

func (p PhotoRecord) ID() int                 { return p.id }
func (p PhotoRecord) Image() core.Image       { return p.image }
func (p PhotoRecord) Effect() effects.Kind    { return p.effect }
func (p PhotoRecord) Source() Source          { return p.source }
func (p PhotoRecord) Timestamp() time.Time    { return p.timestamp }
func (p PhotoRecord) TimestampString() string { return p.timestamp.Format(timestampLayout) }

// PhotoInfo is the JSON view of a record without pixel data
type PhotoInfo struct {
	ID        int                `json:"id"`
	Effect    effects.Kind       `json:"effect"`
	Source    Source             `json:"source"`
	Timestamp string             `json:"timestamp"`
	CreatedAt time.Time          `json:"createdAt"`
	Image     core.ImageMetadata `json:"image"`
}

func (p PhotoRecord) Info() PhotoInfo {
	return PhotoInfo{
		ID:        p.id,
		Effect:    p.effect,
		Source:    p.source,
		Timestamp: p.TimestampString(),
		CreatedAt: p.timestamp,
		Image:     p.image.Metadata(),
	}
}

const timestampLayout = "20060102_150405"
