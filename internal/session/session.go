package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/ecst/vbuild/internal/gateway"
)

type Credentials struct {
	Username string
	Password string
	Insecure bool
}

// Session is an authenticated handle on one vCenter.
type Session interface {
	Server() string
	Active(ctx context.Context) bool
	Gateway() gateway.Gateway
	Close(ctx context.Context) error
}

type Dialer interface {
	Dial(ctx context.Context, server string, creds Credentials) (Session, error)
}

// Manager holds at most one session. It is not safe for concurrent use;
// a run drives the vCenter sequentially.
type Manager struct {
	dialer  Dialer
	current Session
}

func NewManager(dialer Dialer) *Manager {
	return &Manager{dialer: dialer}
}

func (m *Manager) Current() Session {
	return m.current
}

// Connect returns the held session when it targets server and is still
// active. Otherwise it drops the held session and dials, retrying failed
// attempts after a fixed delay up to maxAttempts times.
func (m *Manager) Connect(ctx context.Context, server string, creds Credentials, maxAttempts int, retryDelay time.Duration) (Session, error) {
	logger := zap.S().Named("session").With("server", server)

	if m.current != nil {
		if strings.EqualFold(m.current.Server(), server) && m.current.Active(ctx) {
			logger.Debug("reusing active session")
			return m.current, nil
		}
		logger.Infow("closing previous session", "previous", m.current.Server())
		m.Disconnect(ctx)
	}

	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var (
		lastErr error
		attempt int
		s       Session
	)
	backoff := wait.Backoff{Duration: retryDelay, Factor: 1.0, Steps: maxAttempts}
	err := wait.ExponentialBackoffWithContext(ctx, backoff, func(ctx context.Context) (bool, error) {
		attempt++
		var err error
		s, err = m.dialer.Dial(ctx, server, creds)
		if err != nil {
			lastErr = err
			logger.Warnw("connection attempt failed", "attempt", attempt, "max-attempts", maxAttempts, "error", err)
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		if lastErr == nil {
			lastErr = err
		}
		return nil, NewErrConnection(server, attempt, lastErr)
	}

	logger.Infow("connected", "attempt", attempt)
	m.current = s
	return s, nil
}

// Disconnect logs out of the held session, if any. Errors are logged only.
func (m *Manager) Disconnect(ctx context.Context) {
	if m.current == nil {
		return
	}
	if err := m.current.Close(ctx); err != nil {
		zap.S().Named("session").Warnw("failed to close session", "server", m.current.Server(), "error", err)
	}
	m.current = nil
}

// IsConnectionError reports whether err came from exhausting Connect.
func IsConnectionError(err error) bool {
	var e *ErrConnection
	return errors.As(err, &e)
}
