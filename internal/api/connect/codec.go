// Package connect provides Connect RPC service implementations.
package connect

import (
	"encoding/json"

	"connectrpc.com/connect"
)

// Service and procedure names.
const (
	RemoteControlServiceName  = "bgplayer.v1.RemoteControlService"
	PlatformBridgeServiceName = "bgplayer.v1.PlatformBridgeService"

	RemoteControlPlayProcedure            = "/" + RemoteControlServiceName + "/Play"
	RemoteControlPauseProcedure           = "/" + RemoteControlServiceName + "/Pause"
	RemoteControlNextProcedure            = "/" + RemoteControlServiceName + "/Next"
	RemoteControlPreviousProcedure        = "/" + RemoteControlServiceName + "/Previous"
	RemoteControlStopProcedure            = "/" + RemoteControlServiceName + "/Stop"
	RemoteControlStartAtProcedure         = "/" + RemoteControlServiceName + "/StartAt"
	RemoteControlGetStatusProcedure       = "/" + RemoteControlServiceName + "/GetStatus"
	RemoteControlListTracksProcedure      = "/" + RemoteControlServiceName + "/ListTracks"
	RemoteControlWatchNowPlayingProcedure = "/" + RemoteControlServiceName + "/WatchNowPlaying"

	PlatformBridgeReportCallStateProcedure   = "/" + PlatformBridgeServiceName + "/ReportCallState"
	PlatformBridgeReportRouteChangeProcedure = "/" + PlatformBridgeServiceName + "/ReportRouteChange"
	PlatformBridgeReportFocusChangeProcedure = "/" + PlatformBridgeServiceName + "/ReportFocusChange"
	PlatformBridgeSetFocusPolicyProcedure    = "/" + PlatformBridgeServiceName + "/SetFocusPolicy"
)

// jsonCodec encodes plain Go messages as JSON. It replaces the built-in
// "json" codec, which only accepts protobuf messages.
type jsonCodec struct{}

var _ connect.Codec = jsonCodec{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// WithJSON returns the handler option installing the JSON codec.
func WithJSON() connect.HandlerOption {
	return connect.WithCodec(jsonCodec{})
}

// withClientJSON returns the client option installing the JSON codec.
func withClientJSON() connect.ClientOption {
	return connect.WithCodec(jsonCodec{})
}
