// Package auth guards write operations with HS256 JWTs, for gRPC through a
// unary interceptor and for HTTP through a middleware.
package auth

import (
	"context"

	pb "github.com/gartstein/hiring/api/hiring/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Interceptor authenticates calls to a fixed set of gRPC methods.
type Interceptor struct {
	jwtSecret        string
	protectedMethods map[string]bool
}

// NewAuthInterceptor guards the given full method names. Without any it
// guards the job store write.
func NewAuthInterceptor(jwtSecret string, methods ...string) *Interceptor {
	if len(methods) == 0 {
		methods = []string{pb.SaveJobsMethod}
	}
	protected := make(map[string]bool, len(methods))
	for _, m := range methods {
		protected[m] = true
	}
	return &Interceptor{
		jwtSecret:        jwtSecret,
		protectedMethods: protected,
	}
}

// Unary returns a gRPC unary interceptor; calls to unprotected methods pass
// through untouched.
func (i *Interceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !i.protectedMethods[info.FullMethod] {
			return handler(ctx, req)
		}
		authed, err := i.authenticate(ctx)
		if err != nil {
			return nil, err
		}
		return handler(authed, req)
	}
}

func (i *Interceptor) authenticate(ctx context.Context) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "metadata missing")
	}
	token, err := extractTokenFromMetadata(md)
	if err != nil {
		return nil, err
	}
	claims, err := validateToken(token, i.jwtSecret)
	if err != nil {
		return nil, status.Errorf(codes.Unauthenticated, "invalid token: %v", err)
	}
	return withClaims(ctx, claims), nil
}

// extractTokenFromMetadata reads the bearer token of the authorization key.
func extractTokenFromMetadata(md metadata.MD) (string, error) {
	values := md.Get("authorization")
	if len(values) == 0 {
		return "", status.Error(codes.Unauthenticated, "authorization header missing")
	}
	token, err := bearerToken(values[0])
	if err != nil {
		return "", status.Error(codes.Unauthenticated, err.Error())
	}
	return token, nil
}
