package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/flo-mic/osbctl/internal/config"
)

// ErrNotConnected is returned by every inventory or mutation call made without an active session.
var ErrNotConnected = errors.New("not connected to any environment")

// ConnectionError reports a failed attempt to connect to an environment.
// The manager is Disconnected after it.
type ConnectionError struct {
	Environment string
	Endpoint    string
	Err         error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connecting to %s (%s): %v", e.Environment, e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// State of the manager's single connection.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Dialer opens a session against an environment.
type Dialer interface {
	Dial(ctx context.Context, profile config.EnvironmentProfile) (Session, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, profile config.EnvironmentProfile) (Session, error)

func (f DialerFunc) Dial(ctx context.Context, profile config.EnvironmentProfile) (Session, error) {
	return f(ctx, profile)
}

// Manager owns the one active session and swaps it when the operator switches environment.
type Manager struct {
	dialer Dialer
	log    *slog.Logger

	mu         sync.Mutex
	state      State
	profile    config.EnvironmentProfile
	session    Session
	generation uint64
}

// NewManager returns a Disconnected manager.
func NewManager(d Dialer, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{dialer: d, log: log}
}

// SwitchEnvironment tears down the current session (if any) and connects to profile.
// On failure the manager stays Disconnected; the previous session is not restored.
func (m *Manager) SwitchEnvironment(ctx context.Context, profile config.EnvironmentProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.teardownLocked()
	m.state = Connecting
	m.log.Info("connecting", "env", profile.Name, "url", profile.Endpoint, "user", profile.Username)

	s, err := m.dialer.Dial(ctx, profile)
	if err != nil {
		m.state = Disconnected
		m.log.Error("connection failed", "env", profile.Name, "err", err)
		return &ConnectionError{Environment: profile.Name, Endpoint: profile.Endpoint, Err: err}
	}

	m.session = s
	m.profile = profile
	m.state = Connected
	m.generation++
	m.log.Info("connected", "env", profile.Name)
	return nil
}

// Close tears down the active session.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.teardownLocked()
}

func (m *Manager) teardownLocked() error {
	if m.session == nil {
		m.state = Disconnected
		return nil
	}
	err := m.session.Close()
	if err != nil {
		m.log.Warn("closing session", "env", m.profile.Name, "err", err)
	} else {
		m.log.Info("disconnected", "env", m.profile.Name)
	}
	m.session = nil
	m.profile = config.EnvironmentProfile{}
	m.state = Disconnected
	return err
}

// CurrentEnvironment returns the connected profile, or false when Disconnected.
func (m *Manager) CurrentEnvironment() (config.EnvironmentProfile, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Connected {
		return config.EnvironmentProfile{}, false
	}
	return m.profile, true
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Generation increases on every successful switch. Data fetched under an older
// generation belongs to a previous connection.
func (m *Manager) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// Session returns the active session or ErrNotConnected.
func (m *Manager) Session() (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Connected || m.session == nil {
		return nil, ErrNotConnected
	}
	return m.session, nil
}
