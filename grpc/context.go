// Package grpc carries wardwatch bearer tokens over gRPC metadata, so the
// same session that authenticates REST calls can authenticate gRPC calls.
package grpc

import (
	"context"
	"strings"

	"google.golang.org/grpc/metadata"
)

// Default metadata keys.
const (
	// DefaultMetadataKeyAuthorization is the gRPC metadata key for the bearer token
	DefaultMetadataKeyAuthorization = "authorization"

	// DefaultMetadataKeyRequestID is the gRPC metadata key for the request correlation id
	DefaultMetadataKeyRequestID = "x-request-id"
)

const bearerPrefix = "Bearer "

// TokenToOutgoingContext adds "authorization: Bearer <token>" to outgoing gRPC metadata.
// Any authorization value already present is replaced.
func TokenToOutgoingContext(ctx context.Context, token string) context.Context {
	md, ok := metadata.FromOutgoingContext(ctx)
	if ok {
		md = md.Copy()
	} else {
		md = metadata.MD{}
	}
	md.Set(DefaultMetadataKeyAuthorization, bearerPrefix+token)
	return metadata.NewOutgoingContext(ctx, md)
}

// RequestIDToOutgoingContext adds the request id to outgoing gRPC metadata.
func RequestIDToOutgoingContext(ctx context.Context, requestID string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, DefaultMetadataKeyRequestID, requestID)
}

// BearerFromIncomingContext extracts the bearer token from incoming gRPC metadata.
// Returns empty string if no bearer token is present.
func BearerFromIncomingContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, v := range md.Get(DefaultMetadataKeyAuthorization) {
		if len(v) > len(bearerPrefix) && strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
			return v[len(bearerPrefix):]
		}
	}
	return ""
}

// RequestIDFromIncomingContext extracts the request id from incoming gRPC metadata.
func RequestIDFromIncomingContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(DefaultMetadataKeyRequestID); len(values) > 0 {
		return values[0]
	}
	return ""
}
