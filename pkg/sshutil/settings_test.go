package sshutil

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestResolveSettings(t *testing.T) {
	t.Setenv("USER", "tester")
	cfg := writeConfig(t, `
Host box
  HostName 10.0.0.5
  Port 2200
  User ops
  IdentityFile ~/.ssh/box_key
`)

	tests := []struct {
		name     string
		host     string
		wantHost string
		wantPort string
		wantUser string
	}{
		{"plain host", "example.com", "example.com", "22", "tester"},
		{"user at host", "alice@example.com", "example.com", "22", "alice"},
		{"host with port", "example.com:2222", "example.com", "2222", "tester"},
		{"full form", "bob@example.com:2022", "example.com", "2022", "bob"},
		{"alias from config", "box", "10.0.0.5", "2200", "ops"},
		{"explicit user beats config", "root@box", "10.0.0.5", "2200", "root"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := resolveSettings(tt.host, cfg)
			assert.Equal(t, tt.wantHost, s.hostname)
			assert.Equal(t, tt.wantPort, s.port)
			assert.Equal(t, tt.wantUser, s.user)
		})
	}

	s := resolveSettings("box", cfg)
	assert.Equal(t, filepath.Join(homeDir(), ".ssh", "box_key"), s.identityFile)
	assert.Equal(t, "10.0.0.5:2200", s.address())
}

func TestResolveSettings_MissingConfig(t *testing.T) {
	s := resolveSettings("example.com", filepath.Join(t.TempDir(), "nope"))
	assert.Equal(t, "example.com", s.hostname)
	assert.Equal(t, "22", s.port)
}

func TestStripMatchBlocks(t *testing.T) {
	path := writeConfig(t, "Host a\n  Port 1\nMatch host b\n  Port 2\nHost c\n")

	content, line, err := stripMatchBlocks(path)
	require.NoError(t, err)
	assert.Equal(t, 3, line)
	assert.Equal(t, "Host a\n  Port 1", string(content))

	path = writeConfig(t, "Host a\n")
	content, line, err = stripMatchBlocks(path)
	require.NoError(t, err)
	assert.Zero(t, line)
	assert.Equal(t, "Host a\n", string(content))
}

func TestExpandPath(t *testing.T) {
	assert.Equal(t, filepath.Join(homeDir(), "x"), expandPath("~/x"))
	assert.Equal(t, "/abs/x", expandPath("/abs/x"))
}

func TestDialSuggestion(t *testing.T) {
	tests := []struct {
		err  string
		want string
	}{
		{"dial tcp: connection refused", "Is SSH running"},
		{"dial tcp: no route to host", "Can't route"},
		{"dial tcp: i/o timeout", "timed out"},
		{"something else", "Make sure the host is reachable"},
	}
	for _, tt := range tests {
		t.Run(tt.err, func(t *testing.T) {
			assert.Contains(t, dialSuggestion(errors.New(tt.err)), tt.want)
		})
	}
}

func TestHandshakeSuggestion(t *testing.T) {
	authErr := errors.New("ssh: unable to authenticate")
	assert.Contains(t, handshakeSuggestion(authErr, nil), "ssh-add -l")
	assert.Contains(t, handshakeSuggestion(authErr, []string{"/k"}), "ssh-add")
	assert.Contains(t, handshakeSuggestion(authErr, []string{"/k"}), "/k")
	assert.Contains(t, handshakeSuggestion(errors.New("ssh: host key mismatch"), nil), "Host key")
	assert.Contains(t, handshakeSuggestion(errors.New("eof"), nil), "Try: ssh <host>")
}

func TestDial_NoAuthMethods(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SSH_AUTH_SOCK", "")

	// No keys in an empty HOME, so this fails before touching the network.
	_, err := Dial(context.Background(), "127.0.0.1:1", DialOptions{Timeout: time.Second})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No SSH auth methods")
}
