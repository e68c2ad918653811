// Package audio provides a simulated core.Player. Position advances with
// the wall clock while playing and the event stream mirrors an audio
// element's notifications, which is enough for the client daemon and for
// exercising the sync loop end to end.
package audio

import (
	"errors"
	"sync"
	"time"

	"github.com/kdanilin/jamroom/internal/core"
	"github.com/rs/zerolog/log"
)

var ErrNoMedia = errors.New("no media for source ref")

// Player simulates playback of registered media. Register makes a source
// ref playable with a known duration, standing in for the decoder that
// would resolve real bytes.
type Player struct {
	mu        sync.Mutex
	media     map[string]float64
	loaded    string
	duration  float64
	base      float64
	startedAt time.Time
	playing   bool
	closed    bool

	events chan core.PlayerEvent
	done   chan struct{}
}

func New(tick time.Duration) *Player {
	p := &Player{
		media:  make(map[string]float64),
		events: make(chan core.PlayerEvent, 16),
		done:   make(chan struct{}),
	}
	go p.loop(tick)
	return p
}

// Register declares a playable source with its resolved duration.
func (p *Player) Register(sourceRef string, duration float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.media[sourceRef] = duration
}

func (p *Player) Load(sourceRef string) {
	p.mu.Lock()
	p.loaded = sourceRef
	p.duration = p.media[sourceRef]
	p.base = 0
	p.playing = false
	known := p.duration > 0
	p.mu.Unlock()

	p.emit(core.PlayerEvent{Kind: core.PlayerLoadStart})
	if known {
		p.emit(core.PlayerEvent{Kind: core.PlayerCanPlay})
	} else {
		p.emit(core.PlayerEvent{Kind: core.PlayerError, Err: ErrNoMedia})
	}
}

func (p *Player) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loaded == "" || p.media[p.loaded] <= 0 {
		return ErrNoMedia
	}
	if !p.playing {
		p.playing = true
		p.startedAt = time.Now()
	}
	return nil
}

func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		p.base = p.positionLocked()
		p.playing = false
	}
}

func (p *Player) Seek(position float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if position < 0 {
		position = 0
	}
	p.base = position
	p.startedAt = time.Now()
}

func (p *Player) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked()
}

func (p *Player) positionLocked() float64 {
	if !p.playing {
		return p.base
	}
	pos := p.base + time.Since(p.startedAt).Seconds()
	if p.duration > 0 && pos > p.duration {
		return p.duration
	}
	return pos
}

func (p *Player) Duration() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration
}

func (p *Player) Events() <-chan core.PlayerEvent { return p.events }

func (p *Player) loop(tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
		}

		p.mu.Lock()
		if !p.playing {
			p.mu.Unlock()
			continue
		}
		pos := p.positionLocked()
		ended := p.duration > 0 && pos >= p.duration
		if ended {
			p.base = p.duration
			p.playing = false
		}
		p.mu.Unlock()

		if ended {
			p.emit(core.PlayerEvent{Kind: core.PlayerEnded, Position: pos})
			continue
		}
		p.emit(core.PlayerEvent{Kind: core.PlayerTimeUpdate, Position: pos})
	}
}

func (p *Player) emit(ev core.PlayerEvent) {
	select {
	case p.events <- ev:
	default:
		log.Debug().Str("module", "adapters.audio").Int("kind", int(ev.Kind)).Msg("event dropped")
	}
}

// Close stops the event loop. Idempotent.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.done)
}
