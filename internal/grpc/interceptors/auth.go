package interceptors

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"browserctl/internal/auth"
)

// bearerToken extracts the "authorization" metadata value from ctx, the
// same header name the REST transport reads, stripping its "Bearer " prefix.
func bearerToken(ctx context.Context) (string, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", false
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return "", false
	}
	token, ok := strings.CutPrefix(values[0], "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

// AuthInterceptor verifies the bearer token on every unary call and
// attaches the resulting auth.Principal to the handler's context, where
// controlplane.Service reads it back for ownership checks.
func AuthInterceptor(verifier *auth.Verifier) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		token, ok := bearerToken(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing bearer token")
		}
		principal, err := verifier.Verify(token)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid bearer token")
		}
		return handler(auth.WithPrincipal(ctx, principal), req)
	}
}

// authServerStream wraps a grpc.ServerStream to substitute the context
// carrying the verified auth.Principal, the stream analogue of what
// AuthInterceptor does for unary calls.
type authServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *authServerStream) Context() context.Context {
	return s.ctx
}

// StreamAuthInterceptor is the streaming-call counterpart of AuthInterceptor.
func StreamAuthInterceptor(verifier *auth.Verifier) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		token, ok := bearerToken(ss.Context())
		if !ok {
			return status.Error(codes.Unauthenticated, "missing bearer token")
		}
		principal, err := verifier.Verify(token)
		if err != nil {
			return status.Error(codes.Unauthenticated, "invalid bearer token")
		}
		return handler(srv, &authServerStream{ServerStream: ss, ctx: auth.WithPrincipal(ss.Context(), principal)})
	}
}
