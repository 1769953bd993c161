package grpc

import (
	"context"
	"crypto/subtle"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	_ "google.golang.org/grpc/encoding/gzip"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/talktojer/ge-sub000/internal/config"
	"github.com/talktojer/ge-sub000/internal/logging"
)

// SharedSecretMetadataKey carries the collaborator shared secret.
const SharedSecretMetadataKey = "x-ge-shared-secret"

// ServerOptions assembles the interceptor chain: trace propagation first, then the shared
// secret check when one is configured.
func ServerOptions(cfg config.GRPCConfig, logger *logging.Logger) []grpc.ServerOption {
	if logger == nil {
		logger = logging.L()
	}
	unary := []grpc.UnaryServerInterceptor{traceUnaryInterceptor(logger)}
	stream := []grpc.StreamServerInterceptor{traceStreamInterceptor(logger)}
	if secret := strings.TrimSpace(cfg.SharedSecret); secret != "" {
		unary = append(unary, sharedSecretUnaryInterceptor(secret))
		stream = append(stream, sharedSecretStreamInterceptor(secret))
		logger.Info("gRPC shared-secret authentication enabled")
	} else {
		logger.Warn("gRPC bridge running without authentication")
	}
	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(unary...),
		grpc.ChainStreamInterceptor(stream...),
	}
}

// NewServer builds a gRPC server exposing the simulation core. The gzip compressor is
// registered so collaborators may compress their payloads.
func NewServer(sim Simulation, source EventSource, cfg config.GRPCConfig, logger *logging.Logger) *grpc.Server {
	server := grpc.NewServer(ServerOptions(cfg, logger)...)
	Register(server, NewService(sim, WithEventSource(source), WithLogger(logger)))
	return server
}

func sharedSecretUnaryInterceptor(secret string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if err := authorize(ctx, secret); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

func sharedSecretStreamInterceptor(secret string) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if err := authorize(ss.Context(), secret); err != nil {
			return err
		}
		return handler(srv, ss)
	}
}

func authorize(ctx context.Context, secret string) error {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing metadata")
	}
	candidate := extractSharedSecret(md)
	if candidate == "" {
		return status.Error(codes.Unauthenticated, "missing shared secret")
	}
	if subtle.ConstantTimeCompare([]byte(candidate), []byte(secret)) != 1 {
		return status.Error(codes.Unauthenticated, "invalid shared secret")
	}
	return nil
}

func extractSharedSecret(md metadata.MD) string {
	for _, value := range md.Get(SharedSecretMetadataKey) {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	for _, value := range md.Get("authorization") {
		if strings.HasPrefix(strings.ToLower(value), "bearer ") {
			if token := strings.TrimSpace(value[7:]); token != "" {
				return token
			}
		}
	}
	return ""
}

func incomingTraceID(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, value := range md.Get(logging.TraceIDMetadataKey) {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func traceUnaryInterceptor(base *logging.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, logger, traceID := logging.WithTrace(ctx, base, incomingTraceID(ctx))
		_ = grpc.SetHeader(ctx, metadata.Pairs(logging.TraceIDMetadataKey, traceID))
		resp, err := handler(ctx, req)
		if err != nil {
			logger.Debug("grpc call failed", logging.String("method", info.FullMethod), logging.String("code", status.Code(err).String()))
		}
		return resp, err
	}
}

// tracedStream swaps the stream context for one carrying the trace logger.
type tracedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *tracedStream) Context() context.Context {
	return s.ctx
}

func traceStreamInterceptor(base *logging.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, logger, traceID := logging.WithTrace(ss.Context(), base, incomingTraceID(ss.Context()))
		_ = ss.SetHeader(metadata.Pairs(logging.TraceIDMetadataKey, traceID))
		logger.Info("grpc stream opened", logging.String("method", info.FullMethod))
		err := handler(srv, &tracedStream{ServerStream: ss, ctx: ctx})
		logger.Info("grpc stream closed", logging.String("method", info.FullMethod), logging.String("code", status.Code(err).String()))
		return err
	}
}
