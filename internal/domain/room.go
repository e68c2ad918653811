// Package domain contains the shared room aggregate and its construction
// helpers. No storage or playback logic lives here.
package domain

type (
	RoomCode      string
	TrackID       string
	ParticipantID string
)

// RoomRecord is the single shared aggregate for one room. It is the sole
// source of truth: every client mutates it read-modify-write and the
// LastUpdated stamp arbitrates concurrent writers.
type RoomRecord struct {
	RoomCode       RoomCode        `json:"roomCode"`
	RoomName       string          `json:"roomName"`
	Creator        ParticipantID   `json:"creator"`
	Users          []ParticipantID `json:"users"`
	Playlist       []Track         `json:"playlist"`
	CurrentTrackID TrackID         `json:"currentTrackId,omitempty"`
	IsPlaying      bool            `json:"isPlaying"`
	CurrentTime    float64         `json:"currentTime"`
	LastUpdated    int64           `json:"lastUpdated"`
	LastUpdatedBy  ParticipantID   `json:"lastUpdatedBy"`
}

// NewRoomRecord builds the initial record for a freshly created room.
// The caller stamps LastUpdated/LastUpdatedBy before writing.
func NewRoomRecord(code RoomCode, name string, creator ParticipantID) RoomRecord {
	return RoomRecord{
		RoomCode: code,
		RoomName: name,
		Creator:  creator,
		Users:    []ParticipantID{creator},
		Playlist: []Track{},
	}
}

// TrackByID looks a track up in the playlist.
func (r RoomRecord) TrackByID(id TrackID) (Track, bool) {
	for _, t := range r.Playlist {
		if t.ID == id {
			return t, true
		}
	}
	return Track{}, false
}

// HasUser reports whether name is already in the member list.
func (r RoomRecord) HasUser(name ParticipantID) bool {
	for _, u := range r.Users {
		if u == name {
			return true
		}
	}
	return false
}

// Clone deep-copies the record so a mutation never aliases a snapshot
// someone else is still reading.
func (r RoomRecord) Clone() RoomRecord {
	out := r
	out.Users = append([]ParticipantID(nil), r.Users...)
	out.Playlist = append([]Track(nil), r.Playlist...)
	return out
}
