package audio

import (
	"testing"
	"time"

	"github.com/kdanilin/jamroom/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitEvent(t *testing.T, p *Player, kind core.PlayerEventKind, timeout time.Duration) core.PlayerEvent {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-p.Events():
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event kind %d", kind)
		}
	}
}

func TestPlayerLoadEmitsCanPlay(t *testing.T) {
	p := New(10 * time.Millisecond)
	defer p.Close()
	p.Register("blob:one", 180)

	p.Load("blob:one")

	waitEvent(t, p, core.PlayerLoadStart, time.Second)
	waitEvent(t, p, core.PlayerCanPlay, time.Second)
	assert.Equal(t, 180.0, p.Duration())
}

func TestPlayerLoadUnknownRefErrors(t *testing.T) {
	p := New(10 * time.Millisecond)
	defer p.Close()

	p.Load("blob:missing")

	ev := waitEvent(t, p, core.PlayerError, time.Second)
	assert.ErrorIs(t, ev.Err, ErrNoMedia)
	assert.Error(t, p.Play())
}

func TestPlayerPositionAdvancesWhilePlaying(t *testing.T) {
	p := New(5 * time.Millisecond)
	defer p.Close()
	p.Register("blob:one", 180)
	p.Load("blob:one")

	require.NoError(t, p.Play())
	time.Sleep(50 * time.Millisecond)
	pos := p.Position()
	assert.Greater(t, pos, 0.0)

	p.Pause()
	frozen := p.Position()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, frozen, p.Position(), "position freezes while paused")
}

func TestPlayerSeek(t *testing.T) {
	p := New(10 * time.Millisecond)
	defer p.Close()
	p.Register("blob:one", 180)
	p.Load("blob:one")

	p.Seek(90)
	assert.Equal(t, 90.0, p.Position())

	p.Seek(-5)
	assert.Equal(t, 0.0, p.Position())
}

func TestPlayerEmitsTimeUpdatesAndEnded(t *testing.T) {
	p := New(5 * time.Millisecond)
	defer p.Close()
	p.Register("blob:short", 0.05)
	p.Load("blob:short")

	require.NoError(t, p.Play())

	ev := waitEvent(t, p, core.PlayerEnded, 2*time.Second)
	assert.InDelta(t, 0.05, ev.Position, 0.01)
	assert.Equal(t, 0.05, p.Position(), "position clamps at duration")
}
