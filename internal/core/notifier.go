package core

import (
	"sync"
	"time"
)

// ChangeNotifier coalesces the two wake-up sources for a room, a fixed
// polling interval and the storage facility's cross-context change signal,
// into one "room may have changed" tick channel. A tick already pending
// absorbs further signals, so a burst of changes costs one reconciliation.
type ChangeNotifier struct {
	ticks   chan struct{}
	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewChangeNotifier starts the notifier. external may be nil for
// poll-only operation; a closed external channel degrades to poll-only.
func NewChangeNotifier(interval time.Duration, external <-chan struct{}) *ChangeNotifier {
	n := &ChangeNotifier{
		ticks:   make(chan struct{}, 1),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go n.run(interval, external)
	return n
}

func (n *ChangeNotifier) run(interval time.Duration, external <-chan struct{}) {
	defer close(n.stopped)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-n.stop:
			return
		case <-ticker.C:
		case _, ok := <-external:
			if !ok {
				external = nil // nil channel blocks forever
				continue
			}
		}
		select {
		case n.ticks <- struct{}{}:
		default:
		}
	}
}

func (n *ChangeNotifier) Ticks() <-chan struct{} { return n.ticks }

// Stop tears the notifier down. Idempotent; when it returns, the run loop
// has exited and any buffered tick has been drained, so nothing fires
// afterward.
func (n *ChangeNotifier) Stop() {
	n.once.Do(func() { close(n.stop) })
	<-n.stopped
	select {
	case <-n.ticks:
	default:
	}
}
