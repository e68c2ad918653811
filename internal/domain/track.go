package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Track is one playlist entry. SourceRef is an opaque handle to playable
// bytes owned by the uploading client's context; it is recorded best-effort
// and is not guaranteed to be playable after the originating context dies.
type Track struct {
	ID         TrackID       `json:"id"`
	Name       string        `json:"name"`
	SourceRef  string        `json:"sourceRef"`
	Duration   float64       `json:"duration"`
	UploadedBy ParticipantID `json:"uploadedBy"`
}

// NewTrack validates the upload and mints a creation-time-derived id.
// The caller must have already resolved duration from the decoder; anything
// that is not an audio source with a finite non-negative duration is
// rejected before any record is touched.
func NewTrack(name, sourceRef, mediaType string, duration float64, uploadedBy ParticipantID) (Track, error) {
	if !strings.HasPrefix(mediaType, "audio/") {
		return Track{}, fmt.Errorf("%w: media type %q", ErrInvalidTrack, mediaType)
	}
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration < 0 {
		return Track{}, fmt.Errorf("%w: duration %v", ErrInvalidTrack, duration)
	}
	if name == "" {
		return Track{}, fmt.Errorf("%w: empty name", ErrInvalidTrack)
	}
	return Track{
		ID:         newTrackID(),
		Name:       name,
		SourceRef:  sourceRef,
		Duration:   duration,
		UploadedBy: uploadedBy,
	}, nil
}

// newTrackID derives the id from the creation instant, with a uuid suffix
// so two clients uploading in the same millisecond cannot collide.
func newTrackID() TrackID {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return TrackID(fmt.Sprintf("%d-%s", time.Now().UnixMilli(), suffix))
}
