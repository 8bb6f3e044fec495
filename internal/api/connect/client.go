package connect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
)

// RemoteControlClient calls RemoteControlService.
type RemoteControlClient struct {
	play       *connect.Client[Empty, CommandResponse]
	pause      *connect.Client[Empty, CommandResponse]
	next       *connect.Client[Empty, CommandResponse]
	previous   *connect.Client[Empty, CommandResponse]
	stop       *connect.Client[Empty, CommandResponse]
	startAt    *connect.Client[StartAtRequest, CommandResponse]
	getStatus  *connect.Client[Empty, StatusMessage]
	listTracks *connect.Client[Empty, ListTracksResponse]
	watch      *connect.Client[Empty, NowPlayingMessage]
}

// NewRemoteControlClient creates a client for the server at baseURL.
func NewRemoteControlClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *RemoteControlClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{withClientJSON()}, opts...)
	return &RemoteControlClient{
		play:       connect.NewClient[Empty, CommandResponse](httpClient, baseURL+RemoteControlPlayProcedure, opts...),
		pause:      connect.NewClient[Empty, CommandResponse](httpClient, baseURL+RemoteControlPauseProcedure, opts...),
		next:       connect.NewClient[Empty, CommandResponse](httpClient, baseURL+RemoteControlNextProcedure, opts...),
		previous:   connect.NewClient[Empty, CommandResponse](httpClient, baseURL+RemoteControlPreviousProcedure, opts...),
		stop:       connect.NewClient[Empty, CommandResponse](httpClient, baseURL+RemoteControlStopProcedure, opts...),
		startAt:    connect.NewClient[StartAtRequest, CommandResponse](httpClient, baseURL+RemoteControlStartAtProcedure, opts...),
		getStatus:  connect.NewClient[Empty, StatusMessage](httpClient, baseURL+RemoteControlGetStatusProcedure, opts...),
		listTracks: connect.NewClient[Empty, ListTracksResponse](httpClient, baseURL+RemoteControlListTracksProcedure, opts...),
		watch:      connect.NewClient[Empty, NowPlayingMessage](httpClient, baseURL+RemoteControlWatchNowPlayingProcedure, opts...),
	}
}

// Command runs a parameterless command by name: play, pause, next,
// previous or stop.
func (c *RemoteControlClient) Command(ctx context.Context, name string) (*CommandResponse, error) {
	var client *connect.Client[Empty, CommandResponse]
	switch name {
	case "play":
		client = c.play
	case "pause":
		client = c.pause
	case "next":
		client = c.next
	case "previous":
		client = c.previous
	case "stop":
		client = c.stop
	default:
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.Newf("unknown command: %q", name))
	}
	return unary(ctx, client, &Empty{})
}

// StartAt plays the track at index.
func (c *RemoteControlClient) StartAt(ctx context.Context, index int) (*CommandResponse, error) {
	return unary(ctx, c.startAt, &StartAtRequest{Index: index})
}

// GetStatus returns the player status.
func (c *RemoteControlClient) GetStatus(ctx context.Context) (*StatusMessage, error) {
	return unary(ctx, c.getStatus, &Empty{})
}

// ListTracks returns the playlist.
func (c *RemoteControlClient) ListTracks(ctx context.Context) (*ListTracksResponse, error) {
	return unary(ctx, c.listTracks, &Empty{})
}

// WatchNowPlaying opens the now-playing stream.
func (c *RemoteControlClient) WatchNowPlaying(ctx context.Context) (*connect.ServerStreamForClient[NowPlayingMessage], error) {
	return c.watch.CallServerStream(ctx, connect.NewRequest(&Empty{}))
}

// PlatformBridgeClient calls PlatformBridgeService with a bridge token.
type PlatformBridgeClient struct {
	callState   *connect.Client[CallStateRequest, AckResponse]
	routeChange *connect.Client[RouteChangeRequest, AckResponse]
	focusChange *connect.Client[FocusChangeRequest, AckResponse]
	focusPolicy *connect.Client[FocusPolicyRequest, AckResponse]
}

// NewPlatformBridgeClient creates a client for the server at baseURL.
func NewPlatformBridgeClient(httpClient connect.HTTPClient, baseURL, token string, opts ...connect.ClientOption) *PlatformBridgeClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{
		withClientJSON(),
		connect.WithInterceptors(NewTokenInjector(token)),
	}, opts...)
	return &PlatformBridgeClient{
		callState:   connect.NewClient[CallStateRequest, AckResponse](httpClient, baseURL+PlatformBridgeReportCallStateProcedure, opts...),
		routeChange: connect.NewClient[RouteChangeRequest, AckResponse](httpClient, baseURL+PlatformBridgeReportRouteChangeProcedure, opts...),
		focusChange: connect.NewClient[FocusChangeRequest, AckResponse](httpClient, baseURL+PlatformBridgeReportFocusChangeProcedure, opts...),
		focusPolicy: connect.NewClient[FocusPolicyRequest, AckResponse](httpClient, baseURL+PlatformBridgeSetFocusPolicyProcedure, opts...),
	}
}

// ReportCallState reports a telephony state.
func (c *PlatformBridgeClient) ReportCallState(ctx context.Context, state string) (*AckResponse, error) {
	return unary(ctx, c.callState, &CallStateRequest{State: state})
}

// ReportRouteChange reports an audio route change.
func (c *PlatformBridgeClient) ReportRouteChange(ctx context.Context, change string) (*AckResponse, error) {
	return unary(ctx, c.routeChange, &RouteChangeRequest{Change: change})
}

// ReportFocusChange reports an audio focus change.
func (c *PlatformBridgeClient) ReportFocusChange(ctx context.Context, state string) (*AckResponse, error) {
	return unary(ctx, c.focusChange, &FocusChangeRequest{State: state})
}

// SetFocusPolicy makes the server refuse or grant focus requests.
func (c *PlatformBridgeClient) SetFocusPolicy(ctx context.Context, deny bool) (*AckResponse, error) {
	return unary(ctx, c.focusPolicy, &FocusPolicyRequest{Deny: deny})
}

func unary[Req, Res any](ctx context.Context, c *connect.Client[Req, Res], msg *Req) (*Res, error) {
	resp, err := c.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// DefaultHTTPClient is used by the command line clients.
var DefaultHTTPClient connect.HTTPClient = http.DefaultClient
