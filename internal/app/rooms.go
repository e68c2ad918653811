package app

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/kdanilin/jamroom/internal/core"
	"github.com/kdanilin/jamroom/internal/domain"
	"github.com/rs/zerolog/log"
)

const roomCodeLength = 6

var ErrRoomNameEmpty = errors.New("room name empty")

// RoomService owns the create/join flows. Whichever client creates a room
// first owns nothing special afterwards: the record in storage is the only
// authority.
type RoomService struct {
	store    *RoomStore
	identity *Identity
	clock    *core.Clock
}

func NewRoomService(storage core.Storage, clock *core.Clock) *RoomService {
	return &RoomService{
		store:    NewRoomStore(storage),
		identity: NewIdentity(storage),
		clock:    clock,
	}
}

func (s *RoomService) Store() *RoomStore   { return s.store }
func (s *RoomService) Identity() *Identity { return s.identity }

// GenerateRoomCode mints a short shareable code.
func GenerateRoomCode() domain.RoomCode {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return domain.RoomCode(strings.ToUpper(raw[:roomCodeLength]))
}

// Create writes the initial room record and establishes local identity.
func (s *RoomService) Create(roomName, userName string) (domain.RoomRecord, error) {
	user, err := domain.ParseParticipant(userName)
	if err != nil {
		return domain.RoomRecord{}, err
	}
	roomName = strings.TrimSpace(roomName)
	if roomName == "" {
		return domain.RoomRecord{}, ErrRoomNameEmpty
	}

	rec := domain.NewRoomRecord(GenerateRoomCode(), roomName, user)
	rec.LastUpdated = s.clock.Now()
	rec.LastUpdatedBy = user
	if err := s.store.Write(rec); err != nil {
		return domain.RoomRecord{}, err
	}
	if err := s.identity.Set(user, rec.RoomCode); err != nil {
		return domain.RoomRecord{}, err
	}
	log.Info().Str("module", "app.rooms").Str("room", string(rec.RoomCode)).Str("user", string(user)).Msg("room created")
	return rec, nil
}

// Join appends the user to an existing room (duplicates suppressed by
// name) and establishes local identity. ErrRoomNotFound is fatal to the
// join flow; the caller routes elsewhere.
func (s *RoomService) Join(code, userName string) (domain.RoomRecord, error) {
	user, err := domain.ParseParticipant(userName)
	if err != nil {
		return domain.RoomRecord{}, err
	}
	roomCode := domain.RoomCode(strings.ToUpper(strings.TrimSpace(code)))

	rec, err := s.store.Read(roomCode)
	if err != nil {
		return domain.RoomRecord{}, err
	}
	s.clock.Observe(rec.LastUpdated)
	if !rec.HasUser(user) {
		rec = rec.Clone()
		rec.Users = append(rec.Users, user)
		rec.LastUpdated = s.clock.Now()
		rec.LastUpdatedBy = user
		if err := s.store.Write(rec); err != nil {
			return domain.RoomRecord{}, err
		}
	}
	if err := s.identity.Set(user, roomCode); err != nil {
		return domain.RoomRecord{}, err
	}
	log.Info().Str("module", "app.rooms").Str("room", string(roomCode)).Str("user", string(user)).Msg("room joined")
	return rec, nil
}
