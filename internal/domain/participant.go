package domain

import (
	"errors"
	"strings"
)

const MaxParticipantNameLen = 36

var (
	ErrNameEmpty   = errors.New("participant name empty")
	ErrNameTooLong = errors.New("participant name too long")
)

// ParseParticipant validates a display name. Display names double as
// participant identifiers in room records, so they are kept short.
func ParseParticipant(name string) (ParticipantID, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", ErrNameEmpty
	}
	if len(trimmed) > MaxParticipantNameLen {
		return "", ErrNameTooLong
	}
	return ParticipantID(trimmed), nil
}
