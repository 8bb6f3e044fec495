package notification

import (
	"strings"

	zlog "github.com/rs/zerolog/log"
)

// LogSink writes every snapshot to the global logger.
type LogSink struct{}

// Send implements Sink.
func (LogSink) Send(s Snapshot) error {
	if s.Cleared {
		zlog.Info().Uint64("seq", s.SequenceNo).Msg("now playing: cleared")
		return nil
	}
	caps := make([]string, len(s.Capabilities))
	for i, c := range s.Capabilities {
		caps[i] = string(c)
	}
	zlog.Info().
		Uint64("seq", s.SequenceNo).
		Str("state", s.State).
		Str("artist", s.Artist).
		Str("album", s.Album).
		Str("artwork", s.ArtworkRef).
		Str("controls", strings.Join(caps, ",")).
		Msgf("now playing: %s", s.Title)
	return nil
}
