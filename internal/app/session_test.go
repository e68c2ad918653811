package app_test

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/kdanilin/jamroom/internal/adapters/storage"
	"github.com/kdanilin/jamroom/internal/app"
	"github.com/kdanilin/jamroom/internal/core"
	"github.com/kdanilin/jamroom/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePlayer records the actions a session issues and lets tests script
// position and play() failures.
type fakePlayer struct {
	mu      sync.Mutex
	pos     float64
	playing bool
	playErr error
	calls   []string
	events  chan core.PlayerEvent
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{events: make(chan core.PlayerEvent, 16)}
}

func (p *fakePlayer) record(call string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
}

func (p *fakePlayer) Load(ref string) { p.record("load:" + ref) }

func (p *fakePlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "play")
	if p.playErr != nil {
		return p.playErr
	}
	p.playing = true
	return nil
}

func (p *fakePlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "pause")
	p.playing = false
}

func (p *fakePlayer) Seek(pos float64) {
	p.record(fmt.Sprintf("seek:%g", pos))
	p.mu.Lock()
	p.pos = pos
	p.mu.Unlock()
}

func (p *fakePlayer) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pos
}

func (p *fakePlayer) setPosition(pos float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pos = pos
}

func (p *fakePlayer) Duration() float64               { return 0 }
func (p *fakePlayer) Events() <-chan core.PlayerEvent { return p.events }

func (p *fakePlayer) callsSnapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

type fixture struct {
	store  *storage.MemStore
	clock  *core.Clock
	rooms  *app.RoomService
	record domain.RoomRecord
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storage.NewMemStore()
	clock := &core.Clock{}
	rooms := app.NewRoomService(store, clock)
	rec, err := rooms.Create("Friday Night", "alice")
	require.NoError(t, err)
	return &fixture{store: store, clock: clock, rooms: rooms, record: rec}
}

func (f *fixture) open(t *testing.T, player core.Player) *app.Session {
	t.Helper()
	sess, err := app.OpenSession(f.store, player, f.clock, f.record.RoomCode)
	require.NoError(t, err)
	return sess
}

func TestOpenSessionRequiresIdentity(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.rooms.Identity().Clear())

	_, err := app.OpenSession(f.store, newFakePlayer(), f.clock, f.record.RoomCode)
	assert.ErrorIs(t, err, domain.ErrUserNotSet)
}

func TestOpenSessionUnknownRoom(t *testing.T) {
	f := newFixture(t)

	_, err := app.OpenSession(f.store, newFakePlayer(), f.clock, "NOSUCH")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestAddTrackRejectsNonAudio(t *testing.T) {
	f := newFixture(t)
	sess := f.open(t, newFakePlayer())

	_, err := sess.AddTrack("Clip", "blob:clip", "video/mp4", 120)
	assert.ErrorIs(t, err, domain.ErrInvalidTrack)

	stored, rerr := f.rooms.Store().Read(f.record.RoomCode)
	require.NoError(t, rerr)
	assert.Empty(t, stored.Playlist, "rejected upload must not touch the playlist")
}

func TestAddTrackRejectsBadDuration(t *testing.T) {
	f := newFixture(t)
	sess := f.open(t, newFakePlayer())

	for _, dur := range []float64{-1, nan(), inf()} {
		_, err := sess.AddTrack("Song", "blob:s", "audio/mpeg", dur)
		assert.ErrorIs(t, err, domain.ErrInvalidTrack)
	}
}

func TestAddTrackAppendsAndStamps(t *testing.T) {
	f := newFixture(t)
	sess := f.open(t, newFakePlayer())
	before := sess.Snapshot().LastUpdated

	track, err := sess.AddTrack("First Song", "blob:one", "audio/mpeg", 180)
	require.NoError(t, err)
	assert.NotEmpty(t, track.ID)
	assert.Equal(t, domain.ParticipantID("alice"), track.UploadedBy)

	snap := sess.Snapshot()
	require.Len(t, snap.Playlist, 1)
	assert.Greater(t, snap.LastUpdated, before, "every write strictly bumps the stamp")
	assert.Equal(t, domain.ParticipantID("alice"), snap.LastUpdatedBy)

	stored, err := f.rooms.Store().Read(f.record.RoomCode)
	require.NoError(t, err)
	assert.Equal(t, snap, stored, "local state and stored record stay identical after an intent")
}

func TestSetCurrentAndPlay(t *testing.T) {
	f := newFixture(t)
	player := newFakePlayer()
	sess := f.open(t, player)
	track, err := sess.AddTrack("First Song", "blob:one", "audio/mpeg", 180)
	require.NoError(t, err)

	require.NoError(t, sess.SetCurrentAndPlay(track.ID))

	snap := sess.Snapshot()
	assert.Equal(t, track.ID, snap.CurrentTrackID)
	assert.True(t, snap.IsPlaying)
	assert.Equal(t, 0.0, snap.CurrentTime)
	assert.Equal(t, []string{"load:blob:one", "seek:0", "play"}, player.callsSnapshot())
}

func TestSetCurrentAndPlayUnknownTrack(t *testing.T) {
	f := newFixture(t)
	sess := f.open(t, newFakePlayer())

	err := sess.SetCurrentAndPlay("missing")
	assert.ErrorIs(t, err, domain.ErrTrackNotFound)
}

func TestPlaybackFailureWritesCorrection(t *testing.T) {
	f := newFixture(t)
	player := newFakePlayer()
	player.playErr = errors.New("autoplay blocked")
	sess := f.open(t, player)
	track, err := sess.AddTrack("First Song", "blob:one", "audio/mpeg", 180)
	require.NoError(t, err)

	err = sess.SetCurrentAndPlay(track.ID)
	assert.ErrorIs(t, err, domain.ErrPlaybackFailed)

	stored, rerr := f.rooms.Store().Read(f.record.RoomCode)
	require.NoError(t, rerr)
	assert.False(t, stored.IsPlaying, "the correction must be written so peers do not wait forever")
	assert.False(t, sess.Snapshot().IsPlaying)
}

func TestTogglePlayPauseStampsLivePosition(t *testing.T) {
	f := newFixture(t)
	player := newFakePlayer()
	sess := f.open(t, player)
	track, err := sess.AddTrack("First Song", "blob:one", "audio/mpeg", 180)
	require.NoError(t, err)
	require.NoError(t, sess.SetCurrentAndPlay(track.ID))

	player.setPosition(42.5)
	require.NoError(t, sess.TogglePlayPause())

	snap := sess.Snapshot()
	assert.False(t, snap.IsPlaying)
	assert.Equal(t, 42.5, snap.CurrentTime, "toggle stamps the device's live position, not the stale record value")

	player.setPosition(43.0)
	require.NoError(t, sess.TogglePlayPause())
	snap = sess.Snapshot()
	assert.True(t, snap.IsPlaying)
	assert.Equal(t, 43.0, snap.CurrentTime)
}

func TestSyncConvergesSecondClient(t *testing.T) {
	f := newFixture(t)
	alicePlayer := newFakePlayer()
	aliceSess := f.open(t, alicePlayer)

	_, err := f.rooms.Join(string(f.record.RoomCode), "bob")
	require.NoError(t, err)
	bobPlayer := newFakePlayer()
	bobSess := f.open(t, bobPlayer)

	track, err := aliceSess.AddTrack("First Song", "blob:one", "audio/mpeg", 180)
	require.NoError(t, err)
	require.NoError(t, aliceSess.SetCurrentAndPlay(track.ID))

	bobSess.Sync()

	snap := bobSess.Snapshot()
	assert.Equal(t, aliceSess.Snapshot(), snap, "one tick after a single writer, both clients see the same state")
	assert.Equal(t, track.ID, snap.CurrentTrackID)
	assert.True(t, snap.IsPlaying)
	assert.Equal(t, []string{"load:blob:one", "seek:0", "play"}, bobPlayer.callsSnapshot())
}

func TestSyncIgnoresOwnWrites(t *testing.T) {
	f := newFixture(t)
	player := newFakePlayer()
	sess := f.open(t, player)
	_, err := sess.AddTrack("First Song", "blob:one", "audio/mpeg", 180)
	require.NoError(t, err)
	before := sess.Snapshot()

	sess.Sync()

	assert.Equal(t, before, sess.Snapshot(), "reading back an own write must be a no-op")
	assert.Empty(t, player.callsSnapshot())
}

func TestStampsMonotonicAcrossWriters(t *testing.T) {
	f := newFixture(t)
	aliceSess := f.open(t, newFakePlayer())
	_, err := f.rooms.Join(string(f.record.RoomCode), "bob")
	require.NoError(t, err)
	bobSess := f.open(t, newFakePlayer())

	last := int64(0)
	observe := func() {
		stored, err := f.rooms.Store().Read(f.record.RoomCode)
		require.NoError(t, err)
		require.GreaterOrEqual(t, stored.LastUpdated, last)
		last = stored.LastUpdated
	}

	for i := 0; i < 5; i++ {
		_, err := aliceSess.AddTrack(fmt.Sprintf("a%d", i), "blob:a", "audio/mpeg", 60)
		require.NoError(t, err)
		observe()
		bobSess.Sync()
		_, err = bobSess.AddTrack(fmt.Sprintf("b%d", i), "blob:b", "audio/mpeg", 60)
		require.NoError(t, err)
		observe()
		aliceSess.Sync()
	}
}

func TestLeaveIsIdempotentAndKeepsUserListed(t *testing.T) {
	f := newFixture(t)
	sess := f.open(t, newFakePlayer())
	require.NoError(t, sess.Start(10*time.Millisecond))

	require.NoError(t, sess.Leave())
	require.NoError(t, sess.Leave())
	assert.Equal(t, app.StateTerminated, sess.State())

	_, _, err := f.rooms.Identity().Current()
	assert.ErrorIs(t, err, domain.ErrUserNotSet, "leave clears the identity markers")

	stored, rerr := f.rooms.Store().Read(f.record.RoomCode)
	require.NoError(t, rerr)
	assert.Contains(t, stored.Users, domain.ParticipantID("alice"), "leave does not remove the participant from users")

	_, err = sess.AddTrack("late", "blob:l", "audio/mpeg", 10)
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
}

func TestStartedSessionsConvergeViaNotifier(t *testing.T) {
	f := newFixture(t)
	aliceSess := f.open(t, newFakePlayer())

	_, err := f.rooms.Join(string(f.record.RoomCode), "bob")
	require.NoError(t, err)
	bobPlayer := newFakePlayer()
	bobSess := f.open(t, bobPlayer)
	require.NoError(t, bobSess.Start(20*time.Millisecond))
	defer bobSess.Leave()

	track, err := aliceSess.AddTrack("First Song", "blob:one", "audio/mpeg", 180)
	require.NoError(t, err)
	require.NoError(t, aliceSess.SetCurrentAndPlay(track.ID))

	want := aliceSess.Snapshot()
	assert.Eventually(t, func() bool {
		snap := bobSess.Snapshot()
		return snap.CurrentTrackID == track.ID && snap.IsPlaying && snap.LastUpdated == want.LastUpdated
	}, 2*time.Second, 10*time.Millisecond, "bob's session must pick the change up from the notifier")
}

func nan() float64 { return math.NaN() }
func inf() float64 { return math.Inf(1) }
