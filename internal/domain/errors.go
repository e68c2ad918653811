package domain

import "errors"

var (
	// ErrRoomNotFound means the room code has no record in storage.
	// Fatal to a join: surfaced to the user, never retried.
	ErrRoomNotFound = errors.New("room not found")

	// ErrUserNotSet means no local identity is established.
	ErrUserNotSet = errors.New("no local user set")

	// ErrTrackNotFound means the referenced track is not in the playlist.
	ErrTrackNotFound = errors.New("track not found")

	// ErrInvalidTrack rejects an upload before any write happens.
	ErrInvalidTrack = errors.New("invalid track")

	// ErrPlaybackFailed wraps a rejected play(); the session has already
	// written the isPlaying=false correction when this is returned.
	ErrPlaybackFailed = errors.New("playback failed")

	// ErrStorageUnavailable wraps store read/write failures. Fatal to the
	// current operation only; the user retries the action.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrSessionClosed means the session has been terminated by Leave.
	ErrSessionClosed = errors.New("session closed")
)
