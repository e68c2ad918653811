package core

import (
	"math"

	"github.com/kdanilin/jamroom/internal/domain"
)

// SeekDeadband is the position drift, in seconds, tolerated before a
// corrective seek. Periodic time-update writes keep remote positions a
// little behind the live one; seeking on every tick would stutter.
const SeekDeadband = 2.0

type ActionKind int

const (
	ActionLoad ActionKind = iota
	ActionPlay
	ActionPause
	ActionSeekTo
	ActionSeekAndPlay
)

// AudioAction is one playback adjustment the session issues to the player.
// Track is set for ActionLoad, Position for the seeking kinds.
type AudioAction struct {
	Kind     ActionKind
	Track    *domain.Track
	Position float64
}

// Result is the outcome of one reconciliation. Applied reports whether the
// remote record superseded the local one; when false, Next is local and
// Actions is empty.
type Result struct {
	Next    domain.RoomRecord
	Actions []AudioAction
	Applied bool
}

// Reconcile decides whether remote supersedes local and derives the
// minimal playback adjustments to converge. Pure: no clocks, no I/O.
//
// A remote record loses when its stamp is not strictly newer, or when this
// client authored it (anti-echo: a client never re-applies its own write,
// even read back with a larger stamp). Equal stamps are "not newer":
// strict last-writer-wins avoids two clients oscillating over a tie, at
// the cost of silently dropping one genuinely simultaneous write.
//
// livePosition is the player's actual position at reconcile time, not the
// stale CurrentTime in the local record.
func Reconcile(local, remote domain.RoomRecord, self domain.ParticipantID, livePosition float64) Result {
	if remote.LastUpdated <= local.LastUpdated || remote.LastUpdatedBy == self {
		return Result{Next: local}
	}

	res := Result{Next: remote, Applied: true}

	switch {
	case remote.CurrentTrackID != local.CurrentTrackID && remote.CurrentTrackID != "":
		track, ok := remote.TrackByID(remote.CurrentTrackID)
		if !ok {
			// Playlist entries are never removed, so this only happens on a
			// corrupt record. Adopt the state, touch nothing audible.
			break
		}
		res.Actions = append(res.Actions, AudioAction{Kind: ActionLoad, Track: &track})
		if remote.IsPlaying {
			res.Actions = append(res.Actions, AudioAction{Kind: ActionSeekAndPlay, Position: remote.CurrentTime})
		}
	case remote.IsPlaying && !local.IsPlaying:
		res.Actions = append(res.Actions,
			AudioAction{Kind: ActionSeekTo, Position: remote.CurrentTime},
			AudioAction{Kind: ActionPlay},
		)
	case !remote.IsPlaying && local.IsPlaying:
		res.Actions = append(res.Actions, AudioAction{Kind: ActionPause})
	case math.Abs(livePosition-remote.CurrentTime) > SeekDeadband:
		res.Actions = append(res.Actions, AudioAction{Kind: ActionSeekTo, Position: remote.CurrentTime})
	}

	return res
}
