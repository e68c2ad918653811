package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/kdanilin/jamroom/internal/core"
	"github.com/kdanilin/jamroom/internal/domain"
	"github.com/rs/zerolog/log"
)

// DefaultPollInterval matches the one-second sync cadence the protocol
// was tuned for.
const DefaultPollInterval = time.Second

type SessionState int

const (
	StateUninitialized SessionState = iota
	StateLoaded
	StateIdle
	StateReconciling
	StateTerminated
)

// Session is the per-client room facade. The view layer drives it with
// imperative intents; a background loop reconciles the local copy against
// the shared record on every notifier tick. All intents are synchronous:
// the new record is written and adopted locally before the call returns,
// so a client sees its own change without waiting for a round trip.
type Session struct {
	store    *RoomStore
	identity *Identity
	player   core.Player
	clock    *core.Clock
	self     domain.ParticipantID
	code     domain.RoomCode

	mu    sync.Mutex
	state SessionState
	local domain.RoomRecord

	notifier    *core.ChangeNotifier
	cancelWatch func()
	done        chan struct{}
	onState     func(domain.RoomRecord)
}

// OpenSession loads the room and binds it to the established identity.
// Fails with domain.ErrUserNotSet or domain.ErrRoomNotFound; both are
// fatal to this session and the caller must route elsewhere.
func OpenSession(storage core.Storage, player core.Player, clock *core.Clock, code domain.RoomCode) (*Session, error) {
	identity := NewIdentity(storage)
	self, _, err := identity.Current()
	if err != nil {
		return nil, err
	}
	store := NewRoomStore(storage)
	rec, err := store.Read(code)
	if err != nil {
		return nil, err
	}
	clock.Observe(rec.LastUpdated)
	log.Info().Str("module", "app.session").Str("room", string(code)).Str("user", string(self)).Msg("session loaded")
	return &Session{
		store:    store,
		identity: identity,
		player:   player,
		clock:    clock,
		self:     self,
		code:     code,
		state:    StateLoaded,
		local:    rec,
	}, nil
}

// OnState registers the view callback invoked (outside the session lock)
// with a snapshot after every state change. Set before Start.
func (s *Session) OnState(fn func(domain.RoomRecord)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onState = fn
}

// Start begins the reconciliation loop: a poll ticker and the storage
// change signal feed one coalesced notifier.
func (s *Session) Start(interval time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateTerminated {
		return domain.ErrSessionClosed
	}
	if s.state != StateLoaded {
		return nil // already running
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ch, cancel, err := s.store.Watch(s.code)
	if err != nil {
		return err
	}
	s.cancelWatch = cancel
	s.notifier = core.NewChangeNotifier(interval, ch)
	s.done = make(chan struct{})
	s.state = StateIdle
	go s.run()
	go s.playerLoop()
	return nil
}

func (s *Session) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.notifier.Ticks():
			s.Sync()
		}
	}
}

// Sync performs one reconciliation pass: read the shared record, merge,
// apply the resulting audio actions in order. Safe to call directly; the
// notifier calls it on every tick. A failed read is simply superseded by
// the next tick.
func (s *Session) Sync() {
	s.mu.Lock()
	if s.state == StateTerminated || s.state == StateReconciling {
		s.mu.Unlock()
		return
	}
	prev := s.state
	s.state = StateReconciling
	local := s.local
	s.mu.Unlock()

	remote, err := s.store.Read(s.code)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.session").Str("room", string(s.code)).Msg("sync read failed")
		s.restore(prev)
		return
	}
	res := core.Reconcile(local, remote, s.self, s.player.Position())

	s.mu.Lock()
	if s.state == StateTerminated {
		s.mu.Unlock()
		return
	}
	// An intent may have advanced local while we were reading; a remote
	// that no longer wins must not undo the just-written state.
	if res.Applied && remote.LastUpdated > s.local.LastUpdated {
		s.local = res.Next
		s.clock.Observe(remote.LastUpdated)
	} else {
		res.Applied = false
		res.Actions = nil
	}
	next := s.local
	s.state = prev
	s.mu.Unlock()

	if !res.Applied {
		return
	}
	log.Debug().Str("module", "app.session").Str("room", string(s.code)).
		Str("from", string(remote.LastUpdatedBy)).Int("actions", len(res.Actions)).Msg("remote applied")
	s.applyActions(res.Actions)
	s.publish(next)
}

func (s *Session) restore(prev SessionState) {
	s.mu.Lock()
	if s.state == StateReconciling {
		s.state = prev
	}
	s.mu.Unlock()
}

func (s *Session) applyActions(actions []core.AudioAction) {
	for _, a := range actions {
		switch a.Kind {
		case core.ActionLoad:
			s.player.Load(a.Track.SourceRef)
		case core.ActionSeekAndPlay:
			s.player.Seek(a.Position)
			s.playOrCorrect()
		case core.ActionSeekTo:
			s.player.Seek(a.Position)
		case core.ActionPlay:
			s.playOrCorrect()
		case core.ActionPause:
			s.player.Pause()
		}
	}
}

// playOrCorrect recovers a rejected play() by writing isPlaying=false, so
// other clients are not left waiting on a state that will never arrive.
func (s *Session) playOrCorrect() {
	err := s.player.Play()
	if err == nil {
		return
	}
	log.Warn().Err(err).Str("module", "app.session").Str("room", string(s.code)).Msg("play rejected, correcting")
	if rec, werr := s.write(func(rec *domain.RoomRecord) {
		rec.IsPlaying = false
	}); werr == nil {
		s.publish(rec)
	}
}

// write clones the local record, applies mutate, stamps it and persists
// it, adopting the result locally on success.
func (s *Session) write(mutate func(*domain.RoomRecord)) (domain.RoomRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(mutate)
}

func (s *Session) writeLocked(mutate func(*domain.RoomRecord)) (domain.RoomRecord, error) {
	if s.state == StateTerminated {
		return domain.RoomRecord{}, domain.ErrSessionClosed
	}
	rec := s.local.Clone()
	mutate(&rec)
	rec.LastUpdated = s.clock.Now()
	rec.LastUpdatedBy = s.self
	if err := s.store.Write(rec); err != nil {
		return domain.RoomRecord{}, err
	}
	s.local = rec
	return rec, nil
}

// AddTrack appends an already-resolved upload to the playlist. The
// decoder collaborator must have produced duration before this call;
// anything not audio or without a sane duration is rejected with no write.
func (s *Session) AddTrack(name, sourceRef, mediaType string, duration float64) (domain.Track, error) {
	track, err := domain.NewTrack(name, sourceRef, mediaType, duration, s.self)
	if err != nil {
		return domain.Track{}, err
	}
	rec, err := s.write(func(rec *domain.RoomRecord) {
		rec.Playlist = append(rec.Playlist, track)
	})
	if err != nil {
		return domain.Track{}, err
	}
	log.Info().Str("module", "app.session").Str("room", string(s.code)).Str("track", string(track.ID)).Msg("track added")
	s.publish(rec)
	return track, nil
}

// SetCurrentAndPlay makes the track current, restarts it from zero and
// starts playback locally.
func (s *Session) SetCurrentAndPlay(id domain.TrackID) error {
	s.mu.Lock()
	track, ok := s.local.TrackByID(id)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrTrackNotFound, id)
	}
	rec, err := s.writeLocked(func(rec *domain.RoomRecord) {
		rec.CurrentTrackID = id
		rec.IsPlaying = true
		rec.CurrentTime = 0
	})
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.publish(rec)

	s.player.Load(track.SourceRef)
	s.player.Seek(0)
	if err := s.player.Play(); err != nil {
		if rec, werr := s.write(func(rec *domain.RoomRecord) {
			rec.IsPlaying = false
		}); werr == nil {
			s.publish(rec)
		}
		return fmt.Errorf("%w: %v", domain.ErrPlaybackFailed, err)
	}
	return nil
}

// TogglePlayPause flips playback intent, stamping the player's live
// position so the authoritative position reflects actual device state.
func (s *Session) TogglePlayPause() error {
	pos := s.player.Position()

	s.mu.Lock()
	playing := s.local.IsPlaying
	s.mu.Unlock()

	if playing {
		s.player.Pause()
		rec, err := s.write(func(rec *domain.RoomRecord) {
			rec.IsPlaying = false
			rec.CurrentTime = pos
		})
		if err != nil {
			return err
		}
		s.publish(rec)
		return nil
	}

	if err := s.player.Play(); err != nil {
		if rec, werr := s.write(func(rec *domain.RoomRecord) {
			rec.IsPlaying = false
			rec.CurrentTime = pos
		}); werr == nil {
			s.publish(rec)
		}
		return fmt.Errorf("%w: %v", domain.ErrPlaybackFailed, err)
	}
	rec, err := s.write(func(rec *domain.RoomRecord) {
		rec.IsPlaying = true
		rec.CurrentTime = pos
	})
	if err != nil {
		return err
	}
	s.publish(rec)
	return nil
}

// playerLoop mirrors the audio collaborator's notifications into room
// writes: the playing client keeps the shared position fresh, and ended
// or errored playback stops the room for everyone.
func (s *Session) playerLoop() {
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.player.Events():
			if !ok {
				return
			}
			s.handlePlayerEvent(ev)
		}
	}
}

func (s *Session) handlePlayerEvent(ev core.PlayerEvent) {
	switch ev.Kind {
	case core.PlayerTimeUpdate:
		s.mu.Lock()
		if !s.local.IsPlaying || s.state == StateTerminated {
			s.mu.Unlock()
			return
		}
		rec, err := s.writeLocked(func(rec *domain.RoomRecord) {
			rec.CurrentTime = ev.Position
		})
		s.mu.Unlock()
		if err == nil {
			s.publish(rec)
		}
	case core.PlayerEnded:
		if rec, err := s.write(func(rec *domain.RoomRecord) {
			rec.IsPlaying = false
			rec.CurrentTime = ev.Position
		}); err == nil {
			s.publish(rec)
		}
	case core.PlayerError:
		log.Warn().Err(ev.Err).Str("module", "app.session").Str("room", string(s.code)).Msg("player error")
		if rec, err := s.write(func(rec *domain.RoomRecord) {
			rec.IsPlaying = false
		}); err == nil {
			s.publish(rec)
		}
	}
}

// Leave clears the identity markers and tears the loops down. It does not
// remove this participant from the room's user list. Idempotent; after it
// returns, no timer or storage callback fires.
func (s *Session) Leave() error {
	s.mu.Lock()
	if s.state == StateTerminated {
		s.mu.Unlock()
		return nil
	}
	started := s.state != StateLoaded
	s.state = StateTerminated
	s.mu.Unlock()

	if started {
		close(s.done)
		s.notifier.Stop()
		s.cancelWatch()
	}
	log.Info().Str("module", "app.session").Str("room", string(s.code)).Str("user", string(s.self)).Msg("session left")
	return s.identity.Clear()
}

// Snapshot returns a copy of the current room view.
func (s *Session) Snapshot() domain.RoomRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.local.Clone()
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Self() domain.ParticipantID { return s.self }
func (s *Session) RoomCode() domain.RoomCode  { return s.code }

func (s *Session) publish(rec domain.RoomRecord) {
	s.mu.Lock()
	fn := s.onState
	s.mu.Unlock()
	if fn != nil {
		fn(rec)
	}
}
