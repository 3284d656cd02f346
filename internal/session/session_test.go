package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ecst/vbuild/internal/gateway"
	"github.com/ecst/vbuild/internal/gateway/fake"
	"github.com/ecst/vbuild/internal/session"
)

func TestSession(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Session Suite")
}

type stubSession struct {
	server string
	active bool
	closed int
}

func (s *stubSession) Server() string              { return s.server }
func (s *stubSession) Active(context.Context) bool { return s.active }
func (s *stubSession) Gateway() gateway.Gateway    { return fake.NewGateway() }
func (s *stubSession) Close(context.Context) error { s.closed++; return nil }

type stubDialer struct {
	failures int
	dials    int
	sessions []*stubSession
}

func (d *stubDialer) Dial(_ context.Context, server string, _ session.Credentials) (session.Session, error) {
	d.dials++
	if d.dials <= d.failures {
		return nil, errors.New("connection refused")
	}
	s := &stubSession{server: server, active: true}
	d.sessions = append(d.sessions, s)
	return s, nil
}

var _ = Describe("Manager", func() {
	var (
		ctx    context.Context
		dialer *stubDialer
		mgr    *session.Manager
		creds  session.Credentials
	)

	BeforeEach(func() {
		ctx = context.Background()
		dialer = &stubDialer{}
		mgr = session.NewManager(dialer)
		creds = session.Credentials{Username: "administrator@vsphere.local", Password: "secret"}
	})

	Context("Connect", func() {
		It("reuses an active session to the same server", func() {
			first, err := mgr.Connect(ctx, "vc01.lab.local", creds, 3, time.Millisecond)
			Expect(err).To(BeNil())

			second, err := mgr.Connect(ctx, "VC01.lab.local", creds, 3, time.Millisecond)
			Expect(err).To(BeNil())
			Expect(second).To(BeIdenticalTo(first))
			Expect(dialer.dials).To(Equal(1))
		})

		It("closes the previous session when the server changes", func() {
			_, err := mgr.Connect(ctx, "vc01.lab.local", creds, 3, time.Millisecond)
			Expect(err).To(BeNil())

			s, err := mgr.Connect(ctx, "vc02.lab.local", creds, 3, time.Millisecond)
			Expect(err).To(BeNil())
			Expect(s.Server()).To(Equal("vc02.lab.local"))
			Expect(dialer.sessions[0].closed).To(Equal(1))
			Expect(dialer.dials).To(Equal(2))
		})

		It("replaces a session that is no longer active", func() {
			_, err := mgr.Connect(ctx, "vc01.lab.local", creds, 3, time.Millisecond)
			Expect(err).To(BeNil())
			dialer.sessions[0].active = false

			_, err = mgr.Connect(ctx, "vc01.lab.local", creds, 3, time.Millisecond)
			Expect(err).To(BeNil())
			Expect(dialer.dials).To(Equal(2))
			Expect(dialer.sessions[0].closed).To(Equal(1))
		})

		It("retries failed attempts", func() {
			dialer.failures = 2

			s, err := mgr.Connect(ctx, "vc01.lab.local", creds, 3, time.Millisecond)
			Expect(err).To(BeNil())
			Expect(s).NotTo(BeNil())
			Expect(dialer.dials).To(Equal(3))
		})

		It("returns a connection error once the attempts are exhausted", func() {
			dialer.failures = 10

			s, err := mgr.Connect(ctx, "vc01.lab.local", creds, 3, time.Millisecond)
			Expect(s).To(BeNil())
			Expect(session.IsConnectionError(err)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("connection refused"))
			Expect(dialer.dials).To(Equal(3))
			Expect(mgr.Current()).To(BeNil())
		})
	})

	Context("Disconnect", func() {
		It("closes and clears the held session", func() {
			_, err := mgr.Connect(ctx, "vc01.lab.local", creds, 1, time.Millisecond)
			Expect(err).To(BeNil())

			mgr.Disconnect(ctx)
			Expect(dialer.sessions[0].closed).To(Equal(1))
			Expect(mgr.Current()).To(BeNil())

			mgr.Disconnect(ctx)
			Expect(dialer.sessions[0].closed).To(Equal(1))
		})
	})
})

var _ = Describe("WaitForAvailability", func() {
	It("returns true as soon as the endpoint answers", func() {
		calls := 0
		ping := func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("not yet")
			}
			return nil
		}
		Expect(session.WaitForAvailability(context.Background(), ping, time.Second, 5*time.Millisecond)).To(BeTrue())
		Expect(calls).To(Equal(3))
	})

	It("returns false when the timeout elapses", func() {
		ping := func(context.Context) error { return errors.New("down") }
		Expect(session.WaitForAvailability(context.Background(), ping, 30*time.Millisecond, 5*time.Millisecond)).To(BeFalse())
	})
})
