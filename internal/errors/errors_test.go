package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodes(t *testing.T) {
	codes := []string{
		ErrConfig,
		ErrConnect,
		ErrTransport,
		ErrHealth,
		ErrCycle,
		ErrServer,
	}

	seen := make(map[string]bool)
	for _, code := range codes {
		assert.NotEmpty(t, code, "error code should not be empty")
		assert.False(t, seen[code], "error code %q should be unique", code)
		seen[code] = true
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		code       string
		message    string
		suggestion string
	}{
		{
			name:       "config error",
			code:       ErrConfig,
			message:    "Invalid configuration in .connmon.yaml",
			suggestion: "Check your configuration file syntax",
		},
		{
			name:       "connect error",
			code:       ErrConnect,
			message:    "Could not reach any endpoint",
			suggestion: "Check your session id and network",
		},
		{
			name:       "server error",
			code:       ErrServer,
			message:    "Listen failed",
			suggestion: "Pick another --addr",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, tt.suggestion)

			require.NotNil(t, err)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.message, err.Message)
			assert.Equal(t, tt.suggestion, err.Suggestion)
			assert.Nil(t, err.Cause)
		})
	}
}

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name          string
		err           *Error
		expectedParts []string
		notExpected   []string
	}{
		{
			name:          "message and suggestion",
			err:           New(ErrConfig, "Invalid configuration", "Check .connmon.yaml syntax"),
			expectedParts: []string{"✗", "Invalid configuration", "Check .connmon.yaml syntax"},
		},
		{
			name:          "with cause",
			err:           WrapWithCode(errors.New("dial tcp: refused"), ErrConnect, "Connect failed", ""),
			expectedParts: []string{"Connect failed", "dial tcp: refused"},
		},
		{
			name:          "no suggestion",
			err:           New(ErrCycle, "Cycle panicked", ""),
			expectedParts: []string{"Cycle panicked"},
			notExpected:   []string{"\n\n  \n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := tt.err.Error()
			for _, part := range tt.expectedParts {
				assert.Contains(t, output, part)
			}
			for _, part := range tt.notExpected {
				assert.NotContains(t, output, part)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("broken pipe")
	wrapped := Wrap(cause, "Send failed")

	require.NotNil(t, wrapped)
	assert.Equal(t, ErrTransport, wrapped.Code, "Wrap should default to ErrTransport")
	assert.Equal(t, "Send failed", wrapped.Message)
	assert.Equal(t, cause, wrapped.Cause)
}

func TestUnwrapAndIs(t *testing.T) {
	cause := errors.New("root cause")
	wrapped := WrapWithCode(cause, ErrHealth, "Health probe failed", "")

	assert.Equal(t, cause, wrapped.Unwrap())
	assert.True(t, errors.Is(wrapped, cause))

	var cmErr *Error
	require.True(t, errors.As(fmt.Errorf("outer: %w", wrapped), &cmErr))
	assert.Equal(t, ErrHealth, cmErr.Code)
}

func TestIsCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
		want bool
	}{
		{"nil error", nil, ErrConfig, false},
		{"plain error", errors.New("x"), ErrConfig, false},
		{"matching code", New(ErrConnect, "x", ""), ErrConnect, true},
		{"different code", New(ErrConnect, "x", ""), ErrServer, false},
		{"wrapped match", fmt.Errorf("ctx: %w", New(ErrServer, "x", "")), ErrServer, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCode(tt.err, tt.code))
		})
	}
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain", errors.New("timeout"), "timeout"},
		{"structured without cause", New(ErrConnect, "No endpoint answered", "retry"), "No endpoint answered"},
		{
			name: "nested structured",
			err:  WrapWithCode(New(ErrTransport, "handshake failed", ""), ErrConnect, "Connect failed", "retry"),
			want: "Connect failed: handshake failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Summarize(tt.err))
		})
	}
}
