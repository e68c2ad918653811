package core

type PlayerEventKind int

const (
	PlayerLoadStart PlayerEventKind = iota
	PlayerCanPlay
	PlayerTimeUpdate
	PlayerEnded
	PlayerError
)

// PlayerEvent mirrors the audio element notifications the session reacts
// to. Position carries the playback position for time updates.
type PlayerEvent struct {
	Kind     PlayerEventKind
	Position float64
	Err      error
}

// Player is the audio collaborator. Play may be asynchronous underneath
// and may reject; the session treats a rejection as recoverable.
// Owned by the adapter; the adapter must close it.
type Player interface {
	Load(sourceRef string)
	Play() error
	Pause()
	Seek(position float64)
	Position() float64
	Duration() float64
	Events() <-chan PlayerEvent
}
