package middleware

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// CorrelationMetadataKey carries the correlation ID in gRPC metadata.
const CorrelationMetadataKey = "x-correlation-id"

// UnaryLogger logs every unary call with its status code and duration.
// The correlation ID is taken from incoming metadata or minted, and is
// returned to the caller as a response header.
func UnaryLogger(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()

		correlationID := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get(CorrelationMetadataKey); len(vals) > 0 {
				correlationID = vals[0]
			}
		}
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		if err := grpc.SetHeader(ctx, metadata.Pairs(CorrelationMetadataKey, correlationID)); err != nil {
			logger.Debug().
				Err(err).
				Str("correlation_id", correlationID).
				Str("method", info.FullMethod).
				Msg("Failed to set correlation header")
		}

		resp, err := handler(ctx, req)

		code := status.Code(err)
		level := zerolog.DebugLevel
		switch code {
		case codes.OK:
		case codes.Internal, codes.Unknown, codes.DataLoss, codes.Unavailable:
			level = zerolog.ErrorLevel
		default:
			level = zerolog.WarnLevel
		}

		event := logger.WithLevel(level).
			Str("correlation_id", correlationID).
			Str("method", info.FullMethod).
			Str("code", code.String()).
			Dur("duration", time.Since(start))
		if err != nil {
			event = event.Err(err)
		}
		event.Msg("RPC completed")

		return resp, err
	}
}
