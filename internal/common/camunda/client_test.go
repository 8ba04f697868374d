package camunda

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"matching-workers/internal/common/config"
)

func testClient() *Client {
	return &Client{config: &ClientConfig{
		ConnectionTimeout: time.Second,
		RequestTimeout:    time.Second,
		RetryConfig:       &RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
	}}
}

func TestExecuteWithRetry_RetriesTransientErrors(t *testing.T) {
	c := testClient()
	calls := 0

	result, err := c.ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("rpc error: code = Unavailable desc = connection refused")
		}
		return "ok", nil
	}, "create-instance")

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, calls)
}

func TestExecuteWithRetry_StopsOnPermanentError(t *testing.T) {
	c := testClient()
	calls := 0

	_, err := c.ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
		calls++
		return nil, status.Error(codes.NotFound, "Expected to find process definition with process ID 'person-matching', but none found")
	}, "create-instance")

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, ErrProcessNotFound)
}

func TestExecuteWithRetry_GivesUpAfterMaxRetries(t *testing.T) {
	c := testClient()
	calls := 0

	_, err := c.ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
		calls++
		return nil, errors.New("context deadline exceeded")
	}, "create-instance")

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, ErrBrokerTimeout)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestExecuteWithRetry_HonoursCancellation(t *testing.T) {
	c := testClient()
	c.config.RetryConfig.BaseDelay = time.Hour
	c.config.RetryConfig.MaxDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ExecuteWithRetry(ctx, func(context.Context) (interface{}, error) {
		return nil, errors.New("connection reset by peer")
	}, "create-instance")

	assert.ErrorIs(t, err, context.Canceled)
}

func TestMapZeebeError(t *testing.T) {
	tests := []struct {
		msg  string
		want error
	}{
		{"connection refused", ErrBrokerUnavailable},
		{"deadline exceeded", ErrBrokerTimeout},
		{"process not found", ErrProcessNotFound},
		{"Unauthenticated: missing token", ErrPermissionDenied},
		{"something odd", ErrBrokerUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			cause := errors.New(tt.msg)
			err := mapZeebeError(cause, "op", 0)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, cause)
		})
	}
}

func TestMapZeebeError_StatusCodes(t *testing.T) {
	tests := []struct {
		code      codes.Code
		want      error
		retryable bool
	}{
		{codes.NotFound, ErrProcessNotFound, false},
		{codes.PermissionDenied, ErrPermissionDenied, false},
		{codes.Unauthenticated, ErrPermissionDenied, false},
		{codes.DeadlineExceeded, ErrBrokerTimeout, true},
		{codes.Unavailable, ErrBrokerUnavailable, true},
		{codes.ResourceExhausted, ErrBrokerUnavailable, true},
		{codes.InvalidArgument, ErrBrokerUnavailable, false},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			cause := status.Error(tt.code, "request rejected by gateway")
			assert.ErrorIs(t, mapZeebeError(cause, "create-instance", 0), tt.want)
			assert.Equal(t, tt.retryable, isRetryableZeebeError(cause))
		})
	}
}

func TestMapZeebeError_UntypedNotFound(t *testing.T) {
	cause := errors.New("rpc error: code = NotFound desc = Expected to find process definition with process ID 'person-matching', but none found")
	assert.ErrorIs(t, mapZeebeError(cause, "create-instance", 0), ErrProcessNotFound)
	assert.False(t, isRetryableZeebeError(cause))
}

func TestConfigFrom(t *testing.T) {
	cc := ConfigFrom(config.CamundaConfig{BrokerAddress: "zeebe:26500", UsePlaintext: true})
	assert.Equal(t, "zeebe:26500", cc.GatewayAddress)
	assert.True(t, cc.UsePlaintextConnection)
	assert.Equal(t, 30*time.Second, cc.RequestTimeout)

	cc = ConfigFrom(config.CamundaConfig{RequestTimeout: 1500})
	assert.Equal(t, 1500*time.Millisecond, cc.RequestTimeout)
}
