package connect

import (
	"context"
	"crypto/subtle"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
)

const (
	// BridgeTokenHeader is the header name for the platform bridge token.
	BridgeTokenHeader = "X-Bridge-Token"
)

var errInvalidToken = errors.New("invalid bridge token")

// NewBridgeAuthInterceptor creates an interceptor that validates the bridge
// token on every PlatformBridgeService call.
func NewBridgeAuthInterceptor(token string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			got := req.Header().Get(BridgeTokenHeader)
			if got == "" || token == "" {
				return nil, connect.NewError(connect.CodeUnauthenticated, errInvalidToken)
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				return nil, connect.NewError(connect.CodeUnauthenticated, errInvalidToken)
			}
			return next(ctx, req)
		}
	}
}

// NewTokenInjector creates a client interceptor that sends token with every
// unary call.
func NewTokenInjector(token string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if req.Spec().IsClient {
				req.Header().Set(BridgeTokenHeader, token)
			}
			return next(ctx, req)
		}
	}
}
