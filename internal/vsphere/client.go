// Package vsphere implements gateway.Gateway against a live vCenter using
// govmomi.
package vsphere

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/vmware/govmomi"
	"github.com/vmware/govmomi/session"
	"github.com/vmware/govmomi/vim25"
	"github.com/vmware/govmomi/vim25/soap"
	"go.uber.org/zap"

	"github.com/ecst/vbuild/internal/gateway"
	vsession "github.com/ecst/vbuild/internal/session"
)

const pingTimeout = 10 * time.Second

// Dialer opens authenticated vCenter sessions.
type Dialer struct{}

func NewDialer() *Dialer {
	return &Dialer{}
}

func (d *Dialer) Dial(ctx context.Context, server string, creds vsession.Credentials) (vsession.Session, error) {
	u, err := parseURL(server)
	if err != nil {
		return nil, err
	}
	u.User = url.UserPassword(creds.Username, creds.Password)

	vimClient, err := vim25.NewClient(ctx, soap.NewClient(u, creds.Insecure))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create client for %s", server)
	}
	client := &govmomi.Client{
		SessionManager: session.NewManager(vimClient),
		Client:         vimClient,
	}

	zap.S().Named("vsphere").Infow("logging into vCenter", "server", server, "username", creds.Username)
	if err := client.Login(ctx, u.User); err != nil {
		client.CloseIdleConnections()
		return nil, errors.Wrapf(err, "failed to log into %s", server)
	}

	return &Session{
		server:  server,
		client:  client,
		gateway: newGateway(server, client),
	}, nil
}

// Session is one logged in vCenter connection.
type Session struct {
	server  string
	client  *govmomi.Client
	gateway *Gateway
}

func (s *Session) Server() string {
	return s.server
}

func (s *Session) Active(ctx context.Context) bool {
	active, err := s.client.SessionManager.SessionIsActive(ctx)
	if err != nil {
		zap.S().Named("vsphere").Debugw("session check failed", "server", s.server, "error", err)
		return false
	}
	return active
}

func (s *Session) Gateway() gateway.Gateway {
	return s.gateway
}

func (s *Session) Close(ctx context.Context) error {
	defer s.client.CloseIdleConnections()
	if err := s.client.Logout(ctx); err != nil {
		return errors.Wrapf(err, "failed to log out of %s", s.server)
	}
	return nil
}

// Ping returns a check that succeeds once the vCenter answers SOAP
// requests. It does not log in.
func Ping(server string, insecure bool) vsession.Ping {
	return func(ctx context.Context) error {
		u, err := parseURL(server)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()

		c, err := vim25.NewClient(ctx, soap.NewClient(u, insecure))
		if err != nil {
			return errors.Wrapf(err, "%s is not answering", server)
		}
		c.CloseIdleConnections()
		return nil
	}
}

// parseURL accepts a bare hostname or a full URL and points it at the SDK
// endpoint.
func parseURL(server string) (*url.URL, error) {
	if !strings.Contains(server, "://") {
		server = "https://" + server
	}
	u, err := url.ParseRequestURI(server)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid vCenter address %q", server)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/sdk"
	}
	return u, nil
}
