package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_NilError(t *testing.T) {
	assert.Nil(t, Classify(nil))
}

func TestClassify_ContextErrors(t *testing.T) {
	c := Classify(context.Canceled)
	require.NotNil(t, c)
	assert.Equal(t, FailureCanceled, c.Type)

	c = Classify(context.DeadlineExceeded)
	require.NotNil(t, c)
	assert.Equal(t, FailureTimeout, c.Type)

	// Wrapped deadline errors still classify
	wrapped := fmt.Errorf("attempt 3: %w", context.DeadlineExceeded)
	assert.Equal(t, FailureTimeout, Classify(wrapped).Type)
}

func TestClassify_NetTimeout(t *testing.T) {
	var netErr net.Error = &net.DNSError{IsTimeout: true}
	c := Classify(netErr)
	require.NotNil(t, c)
	assert.Equal(t, FailureTimeout, c.Type)
}

func TestClassify_ConnectionPatterns(t *testing.T) {
	for _, msg := range []string{
		"dial tcp 10.0.0.1:6379: connect: connection refused",
		"read tcp: Connection Reset by peer",
		"write: broken pipe",
		"lookup redis: no such host",
	} {
		t.Run(msg, func(t *testing.T) {
			c := Classify(errors.New(msg))
			require.NotNil(t, c)
			assert.Equal(t, FailureConnection, c.Type)
		})
	}
}

func TestClassify_UnknownError(t *testing.T) {
	c := Classify(errors.New("record malformed"))
	require.NotNil(t, c)
	assert.Equal(t, FailureUnknown, c.Type)
}

func TestClassifiedError_Unwrap(t *testing.T) {
	base := errors.New("boom: timeout")
	c := Classify(base)
	assert.ErrorIs(t, c, base)
	assert.Contains(t, c.Error(), "boom")
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.True(t, IsTransient(errors.New("dial tcp: connection refused")))
	assert.False(t, IsTransient(context.Canceled))
	assert.False(t, IsTransient(errors.New("record malformed")))
	assert.False(t, IsTransient(nil))
}

func TestIsTimeoutAndConnectionHelpers(t *testing.T) {
	opErr := &net.OpError{Op: "dial", Net: "tcp", Err: timeoutErr{}}
	assert.True(t, IsTimeoutError(opErr))
	assert.True(t, IsConnectionError(errors.New("can't connect to server")))
	assert.False(t, IsConnectionError(errors.New("syntax error")))
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }
