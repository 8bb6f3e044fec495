package connect

// Empty is the request of parameterless procedures.
type Empty struct{}

// CommandResponse reports the outcome of a playback command.
type CommandResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Status  *StatusMessage `json:"status,omitempty"`
}

// StartAtRequest selects a track by playlist index.
type StartAtRequest struct {
	Index int `json:"index"`
}

// TrackMessage describes one playlist entry.
type TrackMessage struct {
	Index   int    `json:"index"`
	Locator string `json:"locator"`
	Title   string `json:"title,omitempty"`
	Album   string `json:"album,omitempty"`
	Artist  string `json:"artist,omitempty"`
}

// StatusMessage is the player status.
type StatusMessage struct {
	State          string        `json:"state"`
	Index          int           `json:"index"`
	Track          *TrackMessage `json:"track,omitempty"`
	PausedBy       string        `json:"paused_by,omitempty"`
	ResumePosition int           `json:"resume_position_ms"`
	Ducked         bool          `json:"ducked"`
	Length         int           `json:"length"`
	SessionID      string        `json:"session_id"`
	Playlist       string        `json:"playlist"`
	Phase          string        `json:"phase"`
	Rejected       int           `json:"rejected"`
}

// ListTracksResponse lists the loaded playlist.
type ListTracksResponse struct {
	Name   string          `json:"name"`
	Tracks []*TrackMessage `json:"tracks"`
}

// NowPlayingMessage is one now-playing snapshot.
type NowPlayingMessage struct {
	Locator      string   `json:"locator,omitempty"`
	Title        string   `json:"title,omitempty"`
	Album        string   `json:"album,omitempty"`
	Artist       string   `json:"artist,omitempty"`
	ArtworkRef   string   `json:"artwork_ref,omitempty"`
	State        string   `json:"state"`
	Capabilities []string `json:"capabilities,omitempty"`
	Cleared      bool     `json:"cleared"`
	SequenceNo   uint64   `json:"sequence_no"`
}

// CallStateRequest reports a telephony state: idle, ringing or offhook.
type CallStateRequest struct {
	State string `json:"state"`
}

// RouteChangeRequest reports an audio route change: unavailable or available.
type RouteChangeRequest struct {
	Change string `json:"change"`
}

// FocusChangeRequest reports an audio focus change: gain, loss_transient,
// duck or loss.
type FocusChangeRequest struct {
	State string `json:"state"`
}

// FocusPolicyRequest makes the focus authority refuse or grant requests.
type FocusPolicyRequest struct {
	Deny bool `json:"deny"`
}

// AckResponse acknowledges a bridge signal.
type AckResponse struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message,omitempty"`
}
