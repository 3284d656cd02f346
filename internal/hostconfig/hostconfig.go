// Package hostconfig applies the baseline services and security settings
// to every host of a cluster.
package hostconfig

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/ecst/vbuild/internal/gateway"
	"github.com/ecst/vbuild/internal/report"
)

const (
	ntpService    = "ntpd"
	sshService    = "TSM-SSH"
	syslogService = "vmsyslogd"

	syslogRuleset = "syslog"

	syslogHostOption   = "Syslog.global.logHost"
	shellTimeoutOption = "UserVars.ESXiShellTimeOut"
)

type NTP struct {
	Servers []string
	Policy  gateway.ServicePolicy
}

type Syslog struct {
	Protocol string
	Server   string
	Port     int
}

// Target is the value written to Syslog.global.logHost.
func (s Syslog) Target() string {
	return fmt.Sprintf("%s://%s:%d", s.Protocol, s.Server, s.Port)
}

// Services lists the settings to push. Empty settings are left alone.
type Services struct {
	NTP    NTP
	DNS    gateway.DNSConfig
	Syslog Syslog
}

type Security struct {
	SSHEnabled       bool
	ShellTimeout     int64
	LockdownMode     gateway.LockdownMode
	FirewallRulesets []string
}

type Configurator struct {
	gw gateway.HostServices
}

func NewConfigurator(gw gateway.HostServices) *Configurator {
	return &Configurator{gw: gw}
}

type hostStep func(ctx context.Context, host *gateway.Host) error

// forEachHost runs every step on every cluster host. Steps are independent:
// a failing step is logged and the next one still runs. A host with any
// failed step is reported failed with all the messages.
func (c *Configurator) forEachHost(ctx context.Context, operation, datacenter, clusterName string, steps map[string]hostStep, order []string) (*report.Report, error) {
	logger := zap.S().Named("hostconfig")
	rep := report.New(operation)

	dc, err := c.gw.FindDatacenter(ctx, datacenter)
	if err != nil {
		return rep, err
	}
	cluster, err := c.gw.FindCluster(ctx, dc, clusterName)
	if err != nil {
		return rep, err
	}
	hosts, err := c.gw.ListHosts(ctx, cluster)
	if err != nil {
		return rep, err
	}

	for i := range hosts {
		host := &hosts[i]
		var errs []error
		for _, name := range order {
			if err := steps[name](ctx, host); err != nil {
				logger.Warnw("host setting failed", "host", host.Name, "setting", name, "error", err)
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			}
		}
		if agg := utilerrors.NewAggregate(errs); agg != nil {
			rep.Fail(host.Name, agg)
			continue
		}
		rep.Succeed(host.Name)
	}
	return rep, nil
}

// ConfigureServices converges NTP, DNS and syslog forwarding on every
// cluster host.
func (c *Configurator) ConfigureServices(ctx context.Context, datacenter, clusterName string, services Services) (*report.Report, error) {
	steps := map[string]hostStep{}
	var order []string
	if len(services.NTP.Servers) > 0 {
		steps["ntp"] = func(ctx context.Context, host *gateway.Host) error { return c.configureNTP(ctx, host, services.NTP) }
		order = append(order, "ntp")
	}
	if len(services.DNS.Servers) > 0 {
		steps["dns"] = func(ctx context.Context, host *gateway.Host) error { return c.gw.UpdateDNS(ctx, host, services.DNS) }
		order = append(order, "dns")
	}
	if services.Syslog.Server != "" {
		steps["syslog"] = func(ctx context.Context, host *gateway.Host) error {
			return c.configureSyslog(ctx, host, services.Syslog)
		}
		order = append(order, "syslog")
	}
	return c.forEachHost(ctx, "host-services", datacenter, clusterName, steps, order)
}

func (c *Configurator) configureNTP(ctx context.Context, host *gateway.Host, ntp NTP) error {
	current, err := c.gw.NTPServers(ctx, host)
	if err != nil {
		return err
	}
	if len(current) > 0 {
		if err := c.gw.RemoveNTPServers(ctx, host, current); err != nil {
			return err
		}
	}
	if err := c.gw.AddNTPServers(ctx, host, ntp.Servers); err != nil {
		return err
	}

	policy := ntp.Policy
	if policy == "" {
		policy = gateway.ServicePolicyOn
	}
	if err := c.gw.SetServicePolicy(ctx, host, ntpService, policy); err != nil {
		return err
	}
	svc, err := c.gw.Service(ctx, host, ntpService)
	if err != nil {
		return err
	}
	if !svc.Running {
		return c.gw.StartService(ctx, host, ntpService)
	}
	return nil
}

func (c *Configurator) configureSyslog(ctx context.Context, host *gateway.Host, syslog Syslog) error {
	if err := c.gw.SetAdvancedOption(ctx, host, syslogHostOption, syslog.Target()); err != nil {
		return err
	}
	if err := c.gw.RestartService(ctx, host, syslogService); err != nil {
		return err
	}
	rulesets, err := c.gw.FirewallRulesets(ctx, host)
	if err != nil {
		return err
	}
	for _, r := range rulesets {
		if r.Key == syslogRuleset {
			if r.Enabled {
				return nil
			}
			return c.gw.EnableFirewallRuleset(ctx, host, syslogRuleset)
		}
	}
	return nil
}

// ConfigureSecurity converges SSH, the shell timeout, the firewall
// rulesets and the lockdown mode on every cluster host.
func (c *Configurator) ConfigureSecurity(ctx context.Context, datacenter, clusterName string, security Security) (*report.Report, error) {
	if _, ok := security.LockdownMode.Level(); security.LockdownMode != "" && !ok {
		return report.New("host-security"), gateway.NewErrValidation("unknown lockdown mode %q", security.LockdownMode)
	}

	steps := map[string]hostStep{
		"ssh": func(ctx context.Context, host *gateway.Host) error {
			return c.configureSSH(ctx, host, security.SSHEnabled)
		},
		"shell-timeout": func(ctx context.Context, host *gateway.Host) error {
			return c.configureShellTimeout(ctx, host, security.ShellTimeout)
		},
		"firewall": func(ctx context.Context, host *gateway.Host) error {
			return c.enableRulesets(ctx, host, security.FirewallRulesets)
		},
		"lockdown": func(ctx context.Context, host *gateway.Host) error {
			if security.LockdownMode == "" || security.LockdownMode == gateway.LockdownDisabled {
				return nil
			}
			return c.gw.SetLockdownMode(ctx, host, security.LockdownMode)
		},
	}
	return c.forEachHost(ctx, "host-security", datacenter, clusterName, steps, []string{"ssh", "shell-timeout", "firewall", "lockdown"})
}

func (c *Configurator) configureSSH(ctx context.Context, host *gateway.Host, enabled bool) error {
	svc, err := c.gw.Service(ctx, host, sshService)
	if err != nil {
		return err
	}
	if enabled {
		if !svc.Running {
			if err := c.gw.StartService(ctx, host, sshService); err != nil {
				return err
			}
		}
		return c.gw.SetServicePolicy(ctx, host, sshService, gateway.ServicePolicyOn)
	}
	if svc.Running {
		if err := c.gw.StopService(ctx, host, sshService); err != nil {
			return err
		}
	}
	return c.gw.SetServicePolicy(ctx, host, sshService, gateway.ServicePolicyOff)
}

func (c *Configurator) configureShellTimeout(ctx context.Context, host *gateway.Host, seconds int64) error {
	err := c.gw.SetAdvancedOption(ctx, host, shellTimeoutOption, seconds)
	if gateway.IsUnsupported(err) {
		zap.S().Named("hostconfig").Infow("shell timeout not supported on host", "host", host.Name)
		return nil
	}
	return err
}

func (c *Configurator) enableRulesets(ctx context.Context, host *gateway.Host, wanted []string) error {
	if len(wanted) == 0 {
		return nil
	}
	rulesets, err := c.gw.FirewallRulesets(ctx, host)
	if err != nil {
		return err
	}
	known := map[string]bool{}
	for _, r := range rulesets {
		known[r.Key] = r.Enabled
	}

	var errs []error
	for _, key := range sets.List(sets.New(wanted...)) {
		enabled, ok := known[key]
		if !ok {
			zap.S().Named("hostconfig").Debugw("unknown firewall ruleset", "host", host.Name, "ruleset", key)
			continue
		}
		if enabled {
			continue
		}
		if err := c.gw.EnableFirewallRuleset(ctx, host, key); err != nil {
			errs = append(errs, fmt.Errorf("ruleset %s: %w", key, err))
		}
	}
	return utilerrors.NewAggregate(errs)
}

// ParseLockdownMode accepts the configuration spelling in any case.
func ParseLockdownMode(s string) gateway.LockdownMode {
	return gateway.LockdownMode(strings.ToLower(s))
}
