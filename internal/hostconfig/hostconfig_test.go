package hostconfig_test

import (
	"context"
	"errors"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ecst/vbuild/internal/gateway"
	"github.com/ecst/vbuild/internal/gateway/fake"
	"github.com/ecst/vbuild/internal/hostconfig"
)

func TestHostconfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Hostconfig Suite")
}

var _ = Describe("Configurator", func() {
	var (
		ctx  context.Context
		gw   *fake.Gateway
		c    *hostconfig.Configurator
		host *fake.HostState
	)

	BeforeEach(func() {
		ctx = context.Background()
		gw = fake.NewGateway()
		gw.SeedDatacenter("DC-01")
		gw.SeedCluster("DC-01", "Cluster-01")
		host = gw.SeedHost("DC-01", "Cluster-01", "esx01.lab.local")
		c = hostconfig.NewConfigurator(gw)
	})

	Context("ConfigureServices", func() {
		services := hostconfig.Services{
			NTP: hostconfig.NTP{Servers: []string{"ntp1.lab.local", "ntp2.lab.local"}, Policy: gateway.ServicePolicyOn},
			DNS: gateway.DNSConfig{Servers: []string{"10.0.0.53"}, SearchDomains: []string{"lab.local"}},
			Syslog: hostconfig.Syslog{
				Protocol: "udp",
				Server:   "syslog.lab.local",
				Port:     514,
			},
		}

		It("replaces the NTP servers and starts ntpd", func() {
			host.NTP = []string{"pool.ntp.org"}

			rep, err := c.ConfigureServices(ctx, "DC-01", "Cluster-01", services)
			Expect(err).To(BeNil())
			Expect(rep.Succeeded).To(Equal([]string{"esx01.lab.local"}))
			Expect(host.NTP).To(Equal([]string{"ntp1.lab.local", "ntp2.lab.local"}))
			Expect(host.Services["ntpd"].Running).To(BeTrue())
			Expect(host.Services["ntpd"].Policy).To(Equal(gateway.ServicePolicyOn))
		})

		It("replaces DNS wholesale", func() {
			host.DNS = gateway.DNSConfig{Servers: []string{"8.8.8.8"}, SearchDomains: []string{"old.local"}}
			_, err := c.ConfigureServices(ctx, "DC-01", "Cluster-01", services)
			Expect(err).To(BeNil())
			Expect(host.DNS).To(Equal(services.DNS))
		})

		It("forwards syslog and opens the ruleset", func() {
			_, err := c.ConfigureServices(ctx, "DC-01", "Cluster-01", services)
			Expect(err).To(BeNil())
			Expect(host.Options["Syslog.global.logHost"]).To(Equal("udp://syslog.lab.local:514"))
			Expect(host.Rulesets["syslog"]).To(BeTrue())
			Expect(gw.Calls).To(ContainElement("RestartService esx01.lab.local/vmsyslogd"))
		})

		It("does not touch a missing syslog ruleset", func() {
			delete(host.Rulesets, "syslog")
			rep, err := c.ConfigureServices(ctx, "DC-01", "Cluster-01", services)
			Expect(err).To(BeNil())
			Expect(rep.Failed).To(BeEmpty())
			Expect(gw.CallsWithPrefix("EnableFirewallRuleset")).To(BeEmpty())
		})

		It("keeps going when one setting fails", func() {
			gw.Failures["UpdateDNS esx01.lab.local"] = errors.New("dns locked")

			rep, err := c.ConfigureServices(ctx, "DC-01", "Cluster-01", services)
			Expect(err).To(BeNil())
			Expect(rep.Failed).To(HaveLen(1))
			Expect(rep.Failed[0].Reason).To(ContainSubstring("dns: dns locked"))
			Expect(host.NTP).To(HaveLen(2))
			Expect(host.Options["Syslog.global.logHost"]).To(Equal("udp://syslog.lab.local:514"))
		})

		It("leaves unset services alone", func() {
			rep, err := c.ConfigureServices(ctx, "DC-01", "Cluster-01", hostconfig.Services{})
			Expect(err).To(BeNil())
			Expect(rep.Succeeded).To(HaveLen(1))
			Expect(gw.Calls).To(BeEmpty())
		})
	})

	Context("ConfigureSecurity", func() {
		security := hostconfig.Security{
			SSHEnabled:       true,
			ShellTimeout:     900,
			LockdownMode:     gateway.LockdownNormal,
			FirewallRulesets: []string{"sshServer", "nfsClient"},
		}

		It("applies every security setting", func() {
			rep, err := c.ConfigureSecurity(ctx, "DC-01", "Cluster-01", security)
			Expect(err).To(BeNil())
			Expect(rep.Succeeded).To(Equal([]string{"esx01.lab.local"}))
			Expect(host.Services["TSM-SSH"].Running).To(BeTrue())
			Expect(host.Services["TSM-SSH"].Policy).To(Equal(gateway.ServicePolicyOn))
			Expect(host.Options["UserVars.ESXiShellTimeOut"]).To(Equal(int64(900)))
			Expect(host.Rulesets["sshServer"]).To(BeTrue())
			Expect(host.Lockdown).To(Equal(gateway.LockdownNormal))
		})

		It("stops SSH when disabled", func() {
			host.Services["TSM-SSH"].Running = true
			s := security
			s.SSHEnabled = false

			_, err := c.ConfigureSecurity(ctx, "DC-01", "Cluster-01", s)
			Expect(err).To(BeNil())
			Expect(host.Services["TSM-SSH"].Running).To(BeFalse())
			Expect(host.Services["TSM-SSH"].Policy).To(Equal(gateway.ServicePolicyOff))
		})

		It("treats an unsupported shell timeout as satisfied", func() {
			delete(host.Options, "UserVars.ESXiShellTimeOut")
			rep, err := c.ConfigureSecurity(ctx, "DC-01", "Cluster-01", security)
			Expect(err).To(BeNil())
			Expect(rep.Failed).To(BeEmpty())
		})

		It("skips lockdown when disabled", func() {
			s := security
			s.LockdownMode = gateway.LockdownDisabled
			_, err := c.ConfigureSecurity(ctx, "DC-01", "Cluster-01", s)
			Expect(err).To(BeNil())
			Expect(gw.CallsWithPrefix("SetLockdownMode")).To(BeEmpty())
		})

		It("rejects an unknown lockdown mode", func() {
			s := security
			s.LockdownMode = "total"
			_, err := c.ConfigureSecurity(ctx, "DC-01", "Cluster-01", s)
			Expect(gateway.IsValidation(err)).To(BeTrue())
		})

		It("still sets lockdown after a failing ssh step", func() {
			gw.Failures["StartService esx01.lab.local/TSM-SSH"] = errors.New("service busy")
			rep, err := c.ConfigureSecurity(ctx, "DC-01", "Cluster-01", security)
			Expect(err).To(BeNil())
			Expect(rep.Failed).To(HaveLen(1))
			Expect(host.Lockdown).To(Equal(gateway.LockdownNormal))
		})
	})
})
