package connect

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/bgplayer/internal/app/focus"
	"github.com/osa030/bgplayer/internal/app/interruption"
	"github.com/osa030/bgplayer/internal/app/session"
)

// Bridge is the session surface used by PlatformBridgeService.
type Bridge interface {
	ReportCall(s interruption.CallState) error
	ReportRoute(r interruption.RouteChange) error
	ReportFocus(s focus.State) error
	SetFocusDenied(deny bool)
}

var _ Bridge = (*session.Manager)(nil)

// PlatformBridgeService implements the PlatformBridgeService RPC: the
// platform side reports telephony, audio route and focus signals.
type PlatformBridgeService struct {
	bridge Bridge
}

// NewPlatformBridgeService creates a new PlatformBridgeService.
func NewPlatformBridgeService(bridge Bridge) *PlatformBridgeService {
	return &PlatformBridgeService{bridge: bridge}
}

// Handler returns the service path and its HTTP handler. Every procedure
// requires the bridge token.
func (s *PlatformBridgeService) Handler(token string, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{
		WithJSON(),
		connect.WithInterceptors(NewBridgeAuthInterceptor(token)),
	}, opts...)

	mux := http.NewServeMux()
	mux.Handle(PlatformBridgeReportCallStateProcedure, connect.NewUnaryHandler(PlatformBridgeReportCallStateProcedure, s.ReportCallState, opts...))
	mux.Handle(PlatformBridgeReportRouteChangeProcedure, connect.NewUnaryHandler(PlatformBridgeReportRouteChangeProcedure, s.ReportRouteChange, opts...))
	mux.Handle(PlatformBridgeReportFocusChangeProcedure, connect.NewUnaryHandler(PlatformBridgeReportFocusChangeProcedure, s.ReportFocusChange, opts...))
	mux.Handle(PlatformBridgeSetFocusPolicyProcedure, connect.NewUnaryHandler(PlatformBridgeSetFocusPolicyProcedure, s.SetFocusPolicy, opts...))
	return "/" + PlatformBridgeServiceName + "/", mux
}

// ReportCallState delivers a telephony state.
func (s *PlatformBridgeService) ReportCallState(
	ctx context.Context,
	req *connect.Request[CallStateRequest],
) (*connect.Response[AckResponse], error) {
	state, err := interruption.ParseCallState(req.Msg.State)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	zlog.Debug().Msgf("connect: bridge call state %s", state)
	return ack(s.bridge.ReportCall(state))
}

// ReportRouteChange delivers an audio route change.
func (s *PlatformBridgeService) ReportRouteChange(
	ctx context.Context,
	req *connect.Request[RouteChangeRequest],
) (*connect.Response[AckResponse], error) {
	change, err := interruption.ParseRouteChange(req.Msg.Change)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	zlog.Debug().Msgf("connect: bridge route change %s", change)
	return ack(s.bridge.ReportRoute(change))
}

// ReportFocusChange delivers an audio focus change to the focus holder.
// Without a holder the change is not accepted.
func (s *PlatformBridgeService) ReportFocusChange(
	ctx context.Context,
	req *connect.Request[FocusChangeRequest],
) (*connect.Response[AckResponse], error) {
	state, err := focus.ParseState(req.Msg.State)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	zlog.Debug().Msgf("connect: bridge focus change %s", state)

	err = s.bridge.ReportFocus(state)
	if errors.Is(err, focus.ErrNoHolder) {
		return connect.NewResponse(&AckResponse{Accepted: false, Message: err.Error()}), nil
	}
	return ack(err)
}

// SetFocusPolicy makes the focus authority refuse or grant requests.
func (s *PlatformBridgeService) SetFocusPolicy(
	ctx context.Context,
	req *connect.Request[FocusPolicyRequest],
) (*connect.Response[AckResponse], error) {
	s.bridge.SetFocusDenied(req.Msg.Deny)
	zlog.Info().Msgf("connect: focus requests denied=%v", req.Msg.Deny)
	return connect.NewResponse(&AckResponse{Accepted: true}), nil
}

func ack(err error) (*connect.Response[AckResponse], error) {
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&AckResponse{Accepted: true}), nil
}
