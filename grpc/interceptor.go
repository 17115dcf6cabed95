package grpc

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/oauth"
	"google.golang.org/grpc/status"

	"github.com/panyam/wardwatch/client"
)

// UnaryClientInterceptor returns a gRPC client interceptor that authenticates
// every call with the session's access token. A call rejected with
// codes.Unauthenticated triggers one refresh and one retry; a second rejection
// is returned to the caller. A failed refresh is returned unchanged, so
// client.IsUnauthorized and errors.As work on it.
func UnaryClientInterceptor(ac *client.AuthClient) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = RequestIDToOutgoingContext(ctx, uuid.NewString())

		err := invoker(TokenToOutgoingContext(ctx, ac.Session().AccessToken()), method, req, reply, cc, opts...)
		if status.Code(err) != codes.Unauthenticated {
			return err
		}

		if _, rerr := ac.Refresh(ctx); rerr != nil {
			return rerr
		}

		return invoker(TokenToOutgoingContext(ctx, ac.Session().AccessToken()), method, req, reply, cc, opts...)
	}
}

// PerRPCCredentials exposes the session as per-RPC credentials. Tokens are
// refreshed ahead of expiry rather than on rejection; combine with
// UnaryClientInterceptor when the server can revoke tokens early.
func PerRPCCredentials(ctx context.Context, ac *client.AuthClient) oauth.TokenSource {
	return oauth.TokenSource{TokenSource: ac.TokenSource(ctx)}
}

// DialOptions returns the options that wire an AuthClient into a gRPC connection.
func DialOptions(ac *client.AuthClient) []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithChainUnaryInterceptor(UnaryClientInterceptor(ac)),
	}
}
