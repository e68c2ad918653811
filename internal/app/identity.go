package app

import (
	"fmt"

	"github.com/kdanilin/jamroom/internal/core"
	"github.com/kdanilin/jamroom/internal/domain"
)

const (
	keyCurrentUser = "currentUser"
	keyCurrentRoom = "currentRoom"
)

// Identity tracks which participant and room this client context belongs
// to. Simple string values, set at join/create, cleared at leave.
type Identity struct {
	storage core.Storage
}

func NewIdentity(storage core.Storage) *Identity {
	return &Identity{storage: storage}
}

// Current returns the established identity, or ErrUserNotSet.
func (i *Identity) Current() (domain.ParticipantID, domain.RoomCode, error) {
	user, ok, err := i.storage.Get(keyCurrentUser)
	if err != nil {
		return "", "", fmt.Errorf("%w: read identity: %v", domain.ErrStorageUnavailable, err)
	}
	if !ok || user == "" {
		return "", "", domain.ErrUserNotSet
	}
	room, _, err := i.storage.Get(keyCurrentRoom)
	if err != nil {
		return "", "", fmt.Errorf("%w: read identity: %v", domain.ErrStorageUnavailable, err)
	}
	return domain.ParticipantID(user), domain.RoomCode(room), nil
}

func (i *Identity) Set(user domain.ParticipantID, room domain.RoomCode) error {
	if err := i.storage.Set(keyCurrentUser, string(user)); err != nil {
		return fmt.Errorf("%w: set identity: %v", domain.ErrStorageUnavailable, err)
	}
	if err := i.storage.Set(keyCurrentRoom, string(room)); err != nil {
		return fmt.Errorf("%w: set identity: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

func (i *Identity) Clear() error {
	if err := i.storage.Remove(keyCurrentUser); err != nil {
		return fmt.Errorf("%w: clear identity: %v", domain.ErrStorageUnavailable, err)
	}
	if err := i.storage.Remove(keyCurrentRoom); err != nil {
		return fmt.Errorf("%w: clear identity: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}
