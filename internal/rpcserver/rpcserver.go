// Package rpcserver builds the gRPC server that fronts
// internal/controller.PartitionController: a chained interceptor stack
// for metrics, logging, and panic recovery, with occerrors mapped onto
// gRPC status codes. Registering the actual PartitionControl service
// against this server is left to generated stubs; this package only
// builds the transport-level server infrastructure the generated
// service would be registered on.
package rpcserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"

	grpcprometheus "github.com/grpc-ecosystem/go-grpc-middleware/providers/prometheus"
	grpclogging "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	grpcrecovery "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	occerrors "github.com/o2control/odc/internal/errors"
)

// NewServer builds a *grpc.Server with the metrics/logging/recovery
// interceptor chain wired in. Auth and TLS are omitted; nothing in the
// request surface requires either.
func NewServer(registry *prometheus.Registry) *grpc.Server {
	srvMetrics := grpcprometheus.NewServerMetrics(
		grpcprometheus.WithServerHandlingTimeHistogram(
			grpcprometheus.WithHistogramBuckets([]float64{0.001, 0.01, 0.1, 0.3, 0.6, 1, 3, 6, 9, 20, 30}),
		),
	)
	registry.MustRegister(srvMetrics)

	return grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			srvMetrics.UnaryServerInterceptor(),
			grpclogging.UnaryServerInterceptor(interceptorLogger()),
			errorCodeUnaryInterceptor,
			grpcrecovery.UnaryServerInterceptor(grpcrecovery.WithRecoveryHandler(panicRecoveryHandler)),
		),
		grpc.ChainStreamInterceptor(
			srvMetrics.StreamServerInterceptor(),
			grpclogging.StreamServerInterceptor(interceptorLogger()),
			grpcrecovery.StreamServerInterceptor(grpcrecovery.WithRecoveryHandler(panicRecoveryHandler)),
		),
	)
}

// errorCodeUnaryInterceptor rewrites a handler's plain occerrors.Error
// into the matching gRPC status code.
func errorCodeUnaryInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	resp, err := handler(ctx, req)
	if err == nil {
		return resp, nil
	}
	if _, ok := status.FromError(err); ok {
		return resp, err
	}
	return resp, status.Error(occerrors.CodeFromError(err), err.Error())
}

func panicRecoveryHandler(p interface{}) error {
	log.Errorf("grpc handler panic: %v\n%s", p, string(debug.Stack()))
	return status.Errorf(codes.Internal, "internal server error: %v", p)
}

func interceptorLogger() grpclogging.Logger {
	return grpclogging.LoggerFunc(func(_ context.Context, lvl grpclogging.Level, msg string, fields ...any) {
		logFields := make(map[string]any, len(fields)/2)
		it := grpclogging.Fields(fields).Iterator()
		for it.Next() {
			k, v := it.At()
			logFields[k] = v
		}
		entry := log.WithFields(logFields)
		switch lvl {
		case grpclogging.LevelDebug:
			entry.Debug(msg)
		case grpclogging.LevelInfo:
			entry.Info(msg)
		case grpclogging.LevelWarn:
			entry.Warn(msg)
		case grpclogging.LevelError:
			entry.Error(msg)
		}
	})
}

// Listen starts grpcServer on addr in a goroutine.
func Listen(addr string, grpcServer *grpc.Server) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			log.WithError(err).Error("grpc server exited")
		}
	}()
	return nil
}

// ServeMetrics serves registry's collectors over HTTP at addr via
// promhttp.Handler().
func ServeMetrics(addr string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.WithError(err).Error("metrics server exited")
		}
	}()
}
