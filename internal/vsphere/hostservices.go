package vsphere

import (
	"context"

	"github.com/pkg/errors"
	"github.com/vmware/govmomi/fault"
	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/vim25/methods"
	"github.com/vmware/govmomi/vim25/mo"
	"github.com/vmware/govmomi/vim25/types"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/ecst/vbuild/internal/gateway"
)

func (g *Gateway) dateTimeSystem(ctx context.Context, host *gateway.Host) (*object.HostDateTimeSystem, []string, error) {
	dts, err := g.hostSystem(host).ConfigManager().DateTimeSystem(ctx)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to resolve date time system of %q", host.Name)
	}
	var m mo.HostDateTimeSystem
	if err := dts.Properties(ctx, dts.Reference(), []string{"dateTimeInfo"}, &m); err != nil {
		return nil, nil, translate(err, "host", host.Name, "read NTP configuration of")
	}
	if m.DateTimeInfo.NtpConfig == nil {
		return dts, nil, nil
	}
	return dts, m.DateTimeInfo.NtpConfig.Server, nil
}

func (g *Gateway) NTPServers(ctx context.Context, host *gateway.Host) ([]string, error) {
	_, servers, err := g.dateTimeSystem(ctx, host)
	return servers, err
}

func (g *Gateway) updateNTP(ctx context.Context, host *gateway.Host, dts *object.HostDateTimeSystem, servers []string) error {
	err := dts.UpdateConfig(ctx, types.HostDateTimeConfig{NtpConfig: &types.HostNtpConfig{Server: servers}})
	return translate(err, "NTP configuration", host.Name, "update")
}

func (g *Gateway) RemoveNTPServers(ctx context.Context, host *gateway.Host, servers []string) error {
	dts, current, err := g.dateTimeSystem(ctx, host)
	if err != nil {
		return err
	}
	drop := sets.New(servers...)
	keep := make([]string, 0, len(current))
	for _, s := range current {
		if !drop.Has(s) {
			keep = append(keep, s)
		}
	}
	return g.updateNTP(ctx, host, dts, keep)
}

func (g *Gateway) AddNTPServers(ctx context.Context, host *gateway.Host, servers []string) error {
	dts, current, err := g.dateTimeSystem(ctx, host)
	if err != nil {
		return err
	}
	have := sets.New(current...)
	for _, s := range servers {
		if !have.Has(s) {
			current = append(current, s)
			have.Insert(s)
		}
	}
	return g.updateNTP(ctx, host, dts, current)
}

func (g *Gateway) serviceSystem(ctx context.Context, host *gateway.Host) (*object.HostServiceSystem, error) {
	ss, err := g.hostSystem(host).ConfigManager().ServiceSystem(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve service system of %q", host.Name)
	}
	return ss, nil
}

func (g *Gateway) Service(ctx context.Context, host *gateway.Host, key string) (*gateway.HostService, error) {
	ss, err := g.serviceSystem(ctx, host)
	if err != nil {
		return nil, err
	}
	services, err := ss.Service(ctx)
	if err != nil {
		return nil, translate(err, "host", host.Name, "list services of")
	}
	for _, s := range services {
		if s.Key == key {
			return &gateway.HostService{Key: s.Key, Running: s.Running, Policy: gateway.ServicePolicy(s.Policy)}, nil
		}
	}
	return nil, gateway.NewErrNotFound("service", key)
}

func (g *Gateway) StartService(ctx context.Context, host *gateway.Host, key string) error {
	ss, err := g.serviceSystem(ctx, host)
	if err != nil {
		return err
	}
	return translate(ss.Start(ctx, key), "service", host.Name+"/"+key, "start")
}

func (g *Gateway) StopService(ctx context.Context, host *gateway.Host, key string) error {
	ss, err := g.serviceSystem(ctx, host)
	if err != nil {
		return err
	}
	return translate(ss.Stop(ctx, key), "service", host.Name+"/"+key, "stop")
}

func (g *Gateway) RestartService(ctx context.Context, host *gateway.Host, key string) error {
	ss, err := g.serviceSystem(ctx, host)
	if err != nil {
		return err
	}
	return translate(ss.Restart(ctx, key), "service", host.Name+"/"+key, "restart")
}

func (g *Gateway) SetServicePolicy(ctx context.Context, host *gateway.Host, key string, policy gateway.ServicePolicy) error {
	ss, err := g.serviceSystem(ctx, host)
	if err != nil {
		return err
	}
	return translate(ss.UpdatePolicy(ctx, key, string(policy)), "service", host.Name+"/"+key, "update policy of")
}

// UpdateDNS replaces the server and search domain lists, keeping the host
// and domain names already configured.
func (g *Gateway) UpdateDNS(ctx context.Context, host *gateway.Host, dns gateway.DNSConfig) error {
	ns, err := g.hostSystem(host).ConfigManager().NetworkSystem(ctx)
	if err != nil {
		return errors.Wrapf(err, "failed to resolve network system of %q", host.Name)
	}
	var m mo.HostNetworkSystem
	if err := ns.Properties(ctx, ns.Reference(), []string{"dnsConfig"}, &m); err != nil {
		return translate(err, "host", host.Name, "read DNS configuration of")
	}

	cfg := &types.HostDnsConfig{}
	if m.DnsConfig != nil {
		*cfg = *m.DnsConfig.GetHostDnsConfig()
	}
	cfg.Dhcp = false
	cfg.Address = dns.Servers
	cfg.SearchDomain = dns.SearchDomains

	_, err = methods.UpdateDnsConfig(ctx, g.client, &types.UpdateDnsConfig{This: ns.Reference(), Config: cfg})
	return translate(err, "DNS configuration", host.Name, "update")
}

func (g *Gateway) SetAdvancedOption(ctx context.Context, host *gateway.Host, key string, value any) error {
	om, err := g.hostSystem(host).ConfigManager().OptionManager(ctx)
	if err != nil {
		return errors.Wrapf(err, "failed to resolve option manager of %q", host.Name)
	}
	err = om.Update(ctx, []types.BaseOptionValue{&types.OptionValue{Key: key, Value: value}})
	if fault.Is(err, &types.InvalidName{}) {
		return gateway.NewErrUnsupported("advanced option", key)
	}
	return translate(err, "advanced option", host.Name+"/"+key, "set")
}

func (g *Gateway) firewallSystem(ctx context.Context, host *gateway.Host) (*object.HostFirewallSystem, error) {
	fw, err := g.hostSystem(host).ConfigManager().FirewallSystem(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve firewall system of %q", host.Name)
	}
	return fw, nil
}

func (g *Gateway) FirewallRulesets(ctx context.Context, host *gateway.Host) ([]gateway.FirewallRuleset, error) {
	fw, err := g.firewallSystem(ctx, host)
	if err != nil {
		return nil, err
	}
	var m mo.HostFirewallSystem
	if err := fw.Properties(ctx, fw.Reference(), []string{"firewallInfo"}, &m); err != nil {
		return nil, translate(err, "host", host.Name, "read firewall of")
	}
	if m.FirewallInfo == nil {
		return nil, nil
	}
	rulesets := make([]gateway.FirewallRuleset, 0, len(m.FirewallInfo.Ruleset))
	for _, r := range m.FirewallInfo.Ruleset {
		rulesets = append(rulesets, gateway.FirewallRuleset{Key: r.Key, Enabled: r.Enabled})
	}
	return rulesets, nil
}

func (g *Gateway) EnableFirewallRuleset(ctx context.Context, host *gateway.Host, key string) error {
	fw, err := g.firewallSystem(ctx, host)
	if err != nil {
		return err
	}
	_, err = methods.EnableRuleset(ctx, g.client, &types.EnableRuleset{This: fw.Reference(), Id: key})
	return translate(err, "firewall ruleset", host.Name+"/"+key, "enable")
}

func (g *Gateway) SetLockdownMode(ctx context.Context, host *gateway.Host, mode gateway.LockdownMode) error {
	level, ok := mode.Level()
	if !ok {
		return gateway.NewErrValidation("unknown lockdown mode %q", mode)
	}
	var h mo.HostSystem
	hs := g.hostSystem(host)
	if err := hs.Properties(ctx, hs.Reference(), []string{"configManager.hostAccessManager"}, &h); err != nil {
		return translate(err, "host", host.Name, "resolve access manager of")
	}
	if h.ConfigManager.HostAccessManager == nil {
		return gateway.NewErrUnsupported("lockdown mode on host", host.Name)
	}
	_, err := methods.ChangeLockdownMode(ctx, g.client, &types.ChangeLockdownMode{
		This: *h.ConfigManager.HostAccessManager,
		Mode: types.HostLockdownMode(level),
	})
	return translate(err, "lockdown mode", host.Name, "set")
}
