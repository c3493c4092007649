package transport

import (
	"fmt"
	"strings"

	"github.com/rileyhilliard/connmon/internal/errors"
	"github.com/rileyhilliard/connmon/internal/logger"
	"github.com/rileyhilliard/connmon/pkg/sshutil"
)

// Transport kinds accepted in configuration.
const (
	KindMock     = "mock"
	KindSocketIO = "socketio"
	KindSSH      = "ssh"
)

// Kinds lists the valid transport kinds.
var Kinds = []string{KindMock, KindSocketIO, KindSSH}

// FactoryOptions selects and configures a transport implementation.
type FactoryOptions struct {
	Kind     string
	Mock     MockConfig
	SocketIO SocketIOConfig
	SSH      SSHConfig
	// SSHDial overrides sshutil.Dial.
	SSHDial sshutil.Dialer
	Logger  logger.Logger
}

// NewFactory returns a Factory for opts.Kind.
func NewFactory(opts FactoryOptions) (Factory, error) {
	log := logger.OrDefault(opts.Logger)

	switch strings.ToLower(opts.Kind) {
	case "", KindMock:
		return func(s Session) (Transport, error) {
			return NewMockClient(s, opts.Mock, log), nil
		}, nil
	case KindSocketIO:
		return func(s Session) (Transport, error) {
			if s.SSID == "" {
				return nil, errors.New(errors.ErrConfig,
					"No session id configured for the Socket.IO transport",
					"Set session.ssid in your config or export CONNMON_SESSION_SSID.")
			}
			return NewSocketIOClient(s, opts.SocketIO, log), nil
		}, nil
	case KindSSH:
		if opts.SSH.Host == "" {
			return nil, errors.New(errors.ErrConfig,
				"No host configured for the ssh transport",
				"Set ssh.host to an alias from ~/.ssh/config or user@host:port.")
		}
		return func(s Session) (Transport, error) {
			return NewSSHClient(s, opts.SSH, opts.SSHDial, log), nil
		}, nil
	default:
		return nil, errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown transport %q", opts.Kind),
			fmt.Sprintf("Use one of: %s", strings.Join(Kinds, ", ")))
	}
}
