package rpcserver

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	occerrors "github.com/o2control/odc/internal/errors"
)

func TestNewServerRegistersMetricsOnRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	srv := NewServer(registry)
	require.NotNil(t, srv)

	// Gather succeeding at all confirms the server metrics collector
	// registered cleanly; individual families may be empty until a call
	// is actually served.
	_, err := registry.Gather()
	require.NoError(t, err)
}

func noopHandler(_ context.Context, _ interface{}) (interface{}, error) {
	return "ok", nil
}

func TestErrorCodeInterceptorPassesThroughSuccess(t *testing.T) {
	resp, err := errorCodeUnaryInterceptor(context.Background(), nil, &grpc.UnaryServerInfo{}, noopHandler)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
}

func TestErrorCodeInterceptorMapsOccerror(t *testing.T) {
	handler := func(_ context.Context, _ interface{}) (interface{}, error) {
		return nil, occerrors.New(occerrors.RequestTimeout, "deadline exceeded")
	}
	_, err := errorCodeUnaryInterceptor(context.Background(), nil, &grpc.UnaryServerInfo{}, handler)
	require.Error(t, err)

	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, occerrors.CodeFromError(occerrors.New(occerrors.RequestTimeout, "x")), st.Code())
}

func TestErrorCodeInterceptorLeavesExistingStatusUntouched(t *testing.T) {
	original := status.Error(codes.PermissionDenied, "denied")
	handler := func(_ context.Context, _ interface{}) (interface{}, error) {
		return nil, original
	}
	_, err := errorCodeUnaryInterceptor(context.Background(), nil, &grpc.UnaryServerInfo{}, handler)
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.PermissionDenied, st.Code())
}

func TestErrorCodeInterceptorMapsPlainErrorToUnknown(t *testing.T) {
	handler := func(_ context.Context, _ interface{}) (interface{}, error) {
		return nil, errors.New("boom")
	}
	_, err := errorCodeUnaryInterceptor(context.Background(), nil, &grpc.UnaryServerInfo{}, handler)
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.Unknown, st.Code())
}

func TestListenBindsAndServesOnFreePort(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	srv := grpc.NewServer()
	require.NoError(t, Listen(addr, srv))
	srv.Stop()
}

func TestListenErrorsOnInvalidAddress(t *testing.T) {
	srv := grpc.NewServer()
	err := Listen("not-a-valid-address", srv)
	assert.Error(t, err)
}
