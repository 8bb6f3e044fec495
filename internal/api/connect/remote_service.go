package connect

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/bgplayer/internal/app/notification"
	"github.com/osa030/bgplayer/internal/app/session"
	"github.com/osa030/bgplayer/internal/domain/track"
)

// Player is the session surface used by RemoteControlService.
type Player interface {
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	Stop(ctx context.Context) error
	StartAt(ctx context.Context, index int) error
	Status(ctx context.Context) (session.Status, error)
	Tracks() []track.Track
	Subscribe(sink notification.Sink) string
	Unsubscribe(id string)
	NowPlaying() (notification.Snapshot, bool)
	Done() <-chan struct{}
}

var _ Player = (*session.Manager)(nil)

// RemoteControlService implements the RemoteControlService RPC.
type RemoteControlService struct {
	player Player
}

// NewRemoteControlService creates a new RemoteControlService.
func NewRemoteControlService(player Player) *RemoteControlService {
	return &RemoteControlService{player: player}
}

// Handler returns the service path and its HTTP handler.
func (s *RemoteControlService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)

	mux := http.NewServeMux()
	mux.Handle(RemoteControlPlayProcedure, connect.NewUnaryHandler(RemoteControlPlayProcedure, s.Play, opts...))
	mux.Handle(RemoteControlPauseProcedure, connect.NewUnaryHandler(RemoteControlPauseProcedure, s.Pause, opts...))
	mux.Handle(RemoteControlNextProcedure, connect.NewUnaryHandler(RemoteControlNextProcedure, s.Next, opts...))
	mux.Handle(RemoteControlPreviousProcedure, connect.NewUnaryHandler(RemoteControlPreviousProcedure, s.Previous, opts...))
	mux.Handle(RemoteControlStopProcedure, connect.NewUnaryHandler(RemoteControlStopProcedure, s.Stop, opts...))
	mux.Handle(RemoteControlStartAtProcedure, connect.NewUnaryHandler(RemoteControlStartAtProcedure, s.StartAt, opts...))
	mux.Handle(RemoteControlGetStatusProcedure, connect.NewUnaryHandler(RemoteControlGetStatusProcedure, s.GetStatus, opts...))
	mux.Handle(RemoteControlListTracksProcedure, connect.NewUnaryHandler(RemoteControlListTracksProcedure, s.ListTracks, opts...))
	mux.Handle(RemoteControlWatchNowPlayingProcedure, connect.NewServerStreamHandler(RemoteControlWatchNowPlayingProcedure, s.WatchNowPlaying, opts...))
	return "/" + RemoteControlServiceName + "/", mux
}

// Play starts or resumes playback.
func (s *RemoteControlService) Play(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[CommandResponse], error) {
	return s.command(ctx, "Playing", s.player.Play(ctx))
}

// Pause pauses playback.
func (s *RemoteControlService) Pause(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[CommandResponse], error) {
	return s.command(ctx, "Paused", s.player.Pause(ctx))
}

// Next skips to the next track.
func (s *RemoteControlService) Next(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[CommandResponse], error) {
	return s.command(ctx, "Skipped to next track", s.player.Next(ctx))
}

// Previous goes back one track.
func (s *RemoteControlService) Previous(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[CommandResponse], error) {
	return s.command(ctx, "Skipped to previous track", s.player.Previous(ctx))
}

// Stop stops playback.
func (s *RemoteControlService) Stop(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[CommandResponse], error) {
	return s.command(ctx, "Stopped", s.player.Stop(ctx))
}

// StartAt plays the track at the requested index.
func (s *RemoteControlService) StartAt(
	ctx context.Context,
	req *connect.Request[StartAtRequest],
) (*connect.Response[CommandResponse], error) {
	return s.command(ctx, "Starting track", s.player.StartAt(ctx, req.Msg.Index))
}

// GetStatus returns the current status.
func (s *RemoteControlService) GetStatus(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[StatusMessage], error) {
	st, err := s.player.Status(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(buildStatus(st)), nil
}

// ListTracks returns the loaded playlist.
func (s *RemoteControlService) ListTracks(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[ListTracksResponse], error) {
	resp := &ListTracksResponse{}
	if st, err := s.player.Status(ctx); err == nil {
		resp.Name = st.Session.PlaylistName
	}
	for i, t := range s.player.Tracks() {
		resp.Tracks = append(resp.Tracks, buildTrack(i, t))
	}
	return connect.NewResponse(resp), nil
}

// WatchNowPlaying streams now-playing snapshots until the client goes away
// or the session ends. The latest snapshot is sent first.
func (s *RemoteControlService) WatchNowPlaying(
	ctx context.Context,
	req *connect.Request[Empty],
	stream *connect.ServerStream[NowPlayingMessage],
) error {
	sink := newStreamSink()
	id := s.player.Subscribe(sink)
	defer s.player.Unsubscribe(id)

	if latest, ok := s.player.NowPlaying(); ok {
		if err := stream.Send(buildNowPlaying(latest)); err != nil {
			return err
		}
	}

	zlog.Debug().Msgf("connect: now-playing watcher %s attached", id)
	for {
		select {
		case <-ctx.Done():
			zlog.Debug().Msgf("connect: now-playing watcher %s detached", id)
			return nil
		case <-s.player.Done():
			return nil
		case snap := <-sink.ch:
			if err := stream.Send(buildNowPlaying(snap)); err != nil {
				return err
			}
		}
	}
}

func (s *RemoteControlService) command(ctx context.Context, ok string, err error) (*connect.Response[CommandResponse], error) {
	if err != nil {
		if isUnavailable(err) {
			return nil, toConnectError(err)
		}
		return connect.NewResponse(&CommandResponse{
			Success: false,
			Message: err.Error(),
		}), nil
	}

	resp := &CommandResponse{Success: true, Message: ok}
	if st, err := s.player.Status(ctx); err == nil {
		resp.Status = buildStatus(st)
	}
	return connect.NewResponse(resp), nil
}

// streamSink buffers snapshots for one stream. A watcher that falls behind
// loses snapshots rather than stalling the publisher.
type streamSink struct {
	ch chan notification.Snapshot
}

func newStreamSink() *streamSink {
	return &streamSink{ch: make(chan notification.Snapshot, 16)}
}

var errWatcherBehind = errors.New("now-playing watcher is behind")

func (s *streamSink) Send(snap notification.Snapshot) error {
	select {
	case s.ch <- snap:
		return nil
	default:
		return errWatcherBehind
	}
}

func isUnavailable(err error) bool {
	return errors.Is(err, session.ErrSessionClosed) || errors.Is(err, session.ErrSessionNotRunning)
}

func toConnectError(err error) error {
	switch {
	case isUnavailable(err):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

func buildTrack(index int, t track.Track) *TrackMessage {
	return &TrackMessage{
		Index:   index,
		Locator: t.Locator,
		Title:   t.Title,
		Album:   t.Album,
		Artist:  t.Artist,
	}
}

func buildStatus(st session.Status) *StatusMessage {
	msg := &StatusMessage{
		State:          st.Playback.State.String(),
		Index:          st.Playback.Index,
		PausedBy:       st.Playback.PausedBy,
		ResumePosition: st.Playback.ResumePosition,
		Ducked:         st.Playback.Ducked,
		Length:         st.Playback.Length,
		SessionID:      st.Session.SessionID,
		Playlist:       st.Session.PlaylistName,
		Phase:          st.Session.Phase.String(),
		Rejected:       st.Session.Rejected,
	}
	if st.Playback.Track != nil {
		msg.Track = buildTrack(st.Playback.Index, *st.Playback.Track)
	}
	return msg
}

func buildNowPlaying(s notification.Snapshot) *NowPlayingMessage {
	caps := make([]string, len(s.Capabilities))
	for i, c := range s.Capabilities {
		caps[i] = string(c)
	}
	return &NowPlayingMessage{
		Locator:      s.Locator,
		Title:        s.Title,
		Album:        s.Album,
		Artist:       s.Artist,
		ArtworkRef:   s.ArtworkRef,
		State:        s.State,
		Capabilities: caps,
		Cleared:      s.Cleared,
		SequenceNo:   s.SequenceNo,
	}
}
