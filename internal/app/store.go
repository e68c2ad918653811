// Package app orchestrates the sync core: typed room storage, local
// identity, the create/join flows and the per-client room session.
package app

import (
	"encoding/json"
	"fmt"

	"github.com/kdanilin/jamroom/internal/core"
	"github.com/kdanilin/jamroom/internal/domain"
)

const roomKeyPrefix = "room_"

func roomKey(code domain.RoomCode) string {
	return roomKeyPrefix + string(code)
}

// RoomStore is typed read/write access to one room record per code. It
// owns key naming and serialization; merge discipline lives in core, so
// there is no locking here.
type RoomStore struct {
	storage core.Storage
}

func NewRoomStore(storage core.Storage) *RoomStore {
	return &RoomStore{storage: storage}
}

func (s *RoomStore) Read(code domain.RoomCode) (domain.RoomRecord, error) {
	raw, ok, err := s.storage.Get(roomKey(code))
	if err != nil {
		return domain.RoomRecord{}, fmt.Errorf("%w: read %s: %v", domain.ErrStorageUnavailable, code, err)
	}
	if !ok {
		return domain.RoomRecord{}, domain.ErrRoomNotFound
	}
	var rec domain.RoomRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return domain.RoomRecord{}, fmt.Errorf("%w: decode %s: %v", domain.ErrStorageUnavailable, code, err)
	}
	return rec, nil
}

// Write persists the record verbatim, a total overwrite. The caller has
// already stamped LastUpdated/LastUpdatedBy.
func (s *RoomStore) Write(rec domain.RoomRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", domain.ErrStorageUnavailable, rec.RoomCode, err)
	}
	if err := s.storage.Set(roomKey(rec.RoomCode), string(raw)); err != nil {
		return fmt.Errorf("%w: write %s: %v", domain.ErrStorageUnavailable, rec.RoomCode, err)
	}
	return nil
}

func (s *RoomStore) Watch(code domain.RoomCode) (<-chan struct{}, func(), error) {
	ch, cancel, err := s.storage.Watch(roomKey(code))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: watch %s: %v", domain.ErrStorageUnavailable, code, err)
	}
	return ch, cancel, nil
}
