// Package fake provides an in-memory gateway.Gateway. It keeps enough
// inventory state for the reconcilers to converge against it and records
// every mutating call so tests can assert on ordering and idempotence.
package fake

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ecst/vbuild/internal/gateway"
)

type ClusterState struct {
	gateway.Cluster
	Spec       gateway.ClusterSpec
	HAUpdates  int
	DRSUpdates int
	EVCUpdates int
	Vsan       *gateway.VsanSpec
}

type SwitchState struct {
	gateway.Switch
	PortGroups []gateway.PortGroup
	// Uplinks bound per host, keyed by host name.
	Bindings map[string][]string
}

type HostState struct {
	gateway.Host
	Datacenter string
	Nics       []string
	Adapters   []gateway.KernelAdapter
	Routes     map[string]string
	Devices    []gateway.StorageDevice
	DiskGroups []gateway.DiskGroup
	NTP        []string
	Services   map[string]*gateway.HostService
	DNS        gateway.DNSConfig
	Options    map[string]any
	Rulesets   map[string]bool
	Lockdown   gateway.LockdownMode
}

// NewHostState returns a host with four NICs and the stock ESXi services
// and firewall rulesets.
func NewHostState(name string) *HostState {
	return &HostState{
		Host: gateway.Host{
			Name:            name,
			ConnectionState: gateway.HostConnected,
			Ref:             "host-" + name,
		},
		Nics:   []string{"vmnic0", "vmnic1", "vmnic2", "vmnic3"},
		Routes: map[string]string{},
		Services: map[string]*gateway.HostService{
			"ntpd":      {Key: "ntpd", Policy: gateway.ServicePolicyOff},
			"TSM-SSH":   {Key: "TSM-SSH", Policy: gateway.ServicePolicyOff},
			"TSM":       {Key: "TSM", Policy: gateway.ServicePolicyOff},
			"vmsyslogd": {Key: "vmsyslogd", Running: true, Policy: gateway.ServicePolicyOn},
		},
		Options: map[string]any{
			"Syslog.global.logHost":     "",
			"UserVars.ESXiShellTimeOut": int64(0),
		},
		Rulesets: map[string]bool{
			"syslog":    false,
			"sshServer": false,
			"ntpClient": false,
			"vMotion":   true,
		},
		Lockdown: gateway.LockdownDisabled,
	}
}

type Gateway struct {
	Server      string
	Version     string
	Folders     map[string]bool
	Datacenters map[string]*gateway.Datacenter
	Clusters    map[string]*ClusterState
	Switches    map[string]*SwitchState
	Hosts       map[string]*HostState
	Policies    map[string]*gateway.StoragePolicy
	// Standalone holds hosts reachable over the network but not yet in the
	// inventory. AddHost takes the template from here when present.
	Standalone map[string]*HostState
	// Failures injects an error for a call, keyed "<Method> <name>".
	Failures map[string]error
	// Calls lists every mutating call, "<Method> <name>", in order.
	Calls []string
}

var _ gateway.Gateway = &Gateway{}

func NewGateway() *Gateway {
	return &Gateway{
		Server:      "vcenter.fake.local",
		Version:     "8.0.3",
		Folders:     map[string]bool{},
		Datacenters: map[string]*gateway.Datacenter{},
		Clusters:    map[string]*ClusterState{},
		Switches:    map[string]*SwitchState{},
		Hosts:       map[string]*HostState{},
		Policies:    map[string]*gateway.StoragePolicy{},
		Standalone:  map[string]*HostState{},
		Failures:    map[string]error{},
	}
}

func key(parts ...string) string {
	return strings.ToLower(strings.Join(parts, "/"))
}

func (g *Gateway) record(method, name string) error {
	call := method + " " + name
	if err, ok := g.Failures[call]; ok {
		return err
	}
	g.Calls = append(g.Calls, call)
	return nil
}

func (g *Gateway) failure(method, name string) error {
	return g.Failures[method+" "+name]
}

// CallsWithPrefix returns the recorded calls whose method starts with prefix.
func (g *Gateway) CallsWithPrefix(prefix string) []string {
	var out []string
	for _, c := range g.Calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// Seeding helpers.

func (g *Gateway) SeedDatacenter(name string) *gateway.Datacenter {
	dc := &gateway.Datacenter{Name: name, Ref: "datacenter-" + name}
	g.Datacenters[key(name)] = dc
	return dc
}

func (g *Gateway) SeedCluster(dc, name string) *ClusterState {
	c := &ClusterState{Cluster: gateway.Cluster{Name: name, Datacenter: dc, Ref: "domain-c-" + name}}
	g.Clusters[key(dc, name)] = c
	return c
}

func (g *Gateway) SeedHost(dc, cluster, name string) *HostState {
	h := NewHostState(name)
	h.Datacenter = dc
	h.Cluster = cluster
	g.Hosts[key(name)] = h
	return h
}

func (g *Gateway) SeedSwitch(dc string, sw gateway.Switch) *SwitchState {
	sw.Datacenter = dc
	if sw.Ref == "" {
		sw.Ref = "dvs-" + sw.Name
	}
	s := &SwitchState{Switch: sw, Bindings: map[string][]string{}}
	g.Switches[key(dc, sw.Name)] = s
	return s
}

func (g *Gateway) host(h *gateway.Host) (*HostState, error) {
	st, ok := g.Hosts[key(h.Name)]
	if !ok {
		return nil, gateway.NewErrHostNotFound(h.Name)
	}
	return st, nil
}

func (g *Gateway) cluster(c *gateway.Cluster) (*ClusterState, error) {
	st, ok := g.Clusters[key(c.Datacenter, c.Name)]
	if !ok {
		return nil, gateway.NewErrClusterNotFound(c.Name)
	}
	return st, nil
}

func (g *Gateway) dvs(sw *gateway.Switch) (*SwitchState, error) {
	st, ok := g.Switches[key(sw.Datacenter, sw.Name)]
	if !ok {
		return nil, gateway.NewErrSwitchNotFound(sw.Name)
	}
	return st, nil
}

// Inventory

func (g *Gateway) FindDatacenter(_ context.Context, name string) (*gateway.Datacenter, error) {
	if err := g.failure("FindDatacenter", name); err != nil {
		return nil, err
	}
	dc, ok := g.Datacenters[key(name)]
	if !ok {
		return nil, gateway.NewErrDatacenterNotFound(name)
	}
	cp := *dc
	return &cp, nil
}

func (g *Gateway) FindCluster(_ context.Context, dc *gateway.Datacenter, name string) (*gateway.Cluster, error) {
	if err := g.failure("FindCluster", name); err != nil {
		return nil, err
	}
	c, ok := g.Clusters[key(dc.Name, name)]
	if !ok {
		return nil, gateway.NewErrClusterNotFound(name)
	}
	cp := c.Cluster
	return &cp, nil
}

func (g *Gateway) ListHosts(_ context.Context, cluster *gateway.Cluster) ([]gateway.Host, error) {
	if err := g.failure("ListHosts", cluster.Name); err != nil {
		return nil, err
	}
	var hosts []gateway.Host
	for _, h := range g.Hosts {
		if strings.EqualFold(h.Cluster, cluster.Name) && strings.EqualFold(h.Datacenter, cluster.Datacenter) {
			hosts = append(hosts, h.Host)
		}
	}
	sort.Slice(hosts, func(i, j int) bool { return hosts[i].Name < hosts[j].Name })
	return hosts, nil
}

// Topology

func (g *Gateway) FolderExists(_ context.Context, name string) (bool, error) {
	return g.Folders[name], nil
}

func (g *Gateway) CreateDatacenter(_ context.Context, name, folder string) (*gateway.Datacenter, error) {
	if err := g.record("CreateDatacenter", name); err != nil {
		return nil, err
	}
	if _, ok := g.Datacenters[key(name)]; ok {
		return nil, gateway.NewErrAlreadyExists("datacenter", name)
	}
	dc := g.SeedDatacenter(name)
	if folder != "" {
		dc.Ref = folder + "/" + dc.Ref
	}
	cp := *dc
	return &cp, nil
}

func (g *Gateway) CreateCluster(_ context.Context, dc *gateway.Datacenter, name string, spec gateway.ClusterSpec) (*gateway.Cluster, error) {
	if err := g.record("CreateCluster", name); err != nil {
		return nil, err
	}
	if _, ok := g.Clusters[key(dc.Name, name)]; ok {
		return nil, gateway.NewErrAlreadyExists("cluster", name)
	}
	c := g.SeedCluster(dc.Name, name)
	c.Spec = spec
	cp := c.Cluster
	return &cp, nil
}

func (g *Gateway) UpdateClusterHA(_ context.Context, cluster *gateway.Cluster, spec gateway.HASpec) error {
	c, err := g.cluster(cluster)
	if err != nil {
		return err
	}
	if err := g.record("UpdateClusterHA", cluster.Name); err != nil {
		return err
	}
	c.Spec.HA = spec
	c.HAUpdates++
	return nil
}

func (g *Gateway) UpdateClusterDRS(_ context.Context, cluster *gateway.Cluster, spec gateway.DRSSpec) error {
	c, err := g.cluster(cluster)
	if err != nil {
		return err
	}
	if err := g.record("UpdateClusterDRS", cluster.Name); err != nil {
		return err
	}
	c.Spec.DRS = spec
	c.DRSUpdates++
	return nil
}

func (g *Gateway) UpdateClusterEVC(_ context.Context, cluster *gateway.Cluster, spec gateway.EVCSpec) error {
	c, err := g.cluster(cluster)
	if err != nil {
		return err
	}
	if err := g.record("UpdateClusterEVC", cluster.Name); err != nil {
		return err
	}
	c.Spec.EVC = spec
	c.EVCUpdates++
	return nil
}

func (g *Gateway) FindHost(_ context.Context, dc *gateway.Datacenter, name string) (*gateway.Host, error) {
	h, ok := g.Hosts[key(name)]
	if !ok || !strings.EqualFold(h.Datacenter, dc.Name) {
		return nil, gateway.NewErrHostNotFound(name)
	}
	cp := h.Host
	return &cp, nil
}

func (g *Gateway) AddHost(_ context.Context, cluster *gateway.Cluster, spec gateway.HostConnectSpec) (*gateway.Host, error) {
	if err := g.record("AddHost", spec.Name); err != nil {
		return nil, err
	}
	if _, ok := g.Hosts[key(spec.Name)]; ok {
		return nil, gateway.NewErrAlreadyExists("host", spec.Name)
	}
	h, ok := g.Standalone[key(spec.Name)]
	if !ok {
		h = NewHostState(spec.Name)
	}
	delete(g.Standalone, key(spec.Name))
	h.Datacenter = cluster.Datacenter
	h.Cluster = cluster.Name
	g.Hosts[key(spec.Name)] = h
	cp := h.Host
	return &cp, nil
}

func (g *Gateway) MoveHost(_ context.Context, cluster *gateway.Cluster, host *gateway.Host) error {
	h, err := g.host(host)
	if err != nil {
		return err
	}
	if err := g.record("MoveHost", host.Name); err != nil {
		return err
	}
	h.Datacenter = cluster.Datacenter
	h.Cluster = cluster.Name
	return nil
}

// Network

func (g *Gateway) FindSwitch(_ context.Context, dc *gateway.Datacenter, name string) (*gateway.Switch, error) {
	s, ok := g.Switches[key(dc.Name, name)]
	if !ok {
		return nil, gateway.NewErrSwitchNotFound(name)
	}
	cp := s.Switch
	cp.Hosts = append([]string(nil), s.Hosts...)
	return &cp, nil
}

func (g *Gateway) CreateSwitch(_ context.Context, dc *gateway.Datacenter, spec gateway.SwitchSpec) (*gateway.Switch, error) {
	if err := g.record("CreateSwitch", spec.Name); err != nil {
		return nil, err
	}
	if _, ok := g.Switches[key(dc.Name, spec.Name)]; ok {
		return nil, gateway.NewErrAlreadyExists("distributed switch", spec.Name)
	}
	s := g.SeedSwitch(dc.Name, gateway.Switch{
		Name:    spec.Name,
		Version: spec.Version,
		MTU:     spec.MTU,
		Uplinks: append([]string(nil), spec.UplinkNames...),
	})
	cp := s.Switch
	return &cp, nil
}

func (g *Gateway) UpdateSwitchMTU(_ context.Context, sw *gateway.Switch, mtu int32) error {
	s, err := g.dvs(sw)
	if err != nil {
		return err
	}
	if err := g.record("UpdateSwitchMTU", sw.Name); err != nil {
		return err
	}
	s.MTU = mtu
	return nil
}

func (g *Gateway) ListPortGroups(_ context.Context, sw *gateway.Switch) ([]gateway.PortGroup, error) {
	s, err := g.dvs(sw)
	if err != nil {
		return nil, err
	}
	return append([]gateway.PortGroup(nil), s.PortGroups...), nil
}

func (g *Gateway) CreatePortGroup(_ context.Context, sw *gateway.Switch, spec gateway.PortGroupSpec) (*gateway.PortGroup, error) {
	s, err := g.dvs(sw)
	if err != nil {
		return nil, err
	}
	if err := g.record("CreatePortGroup", spec.Name); err != nil {
		return nil, err
	}
	for _, pg := range s.PortGroups {
		if strings.EqualFold(pg.Name, spec.Name) {
			return nil, gateway.NewErrAlreadyExists("port group", spec.Name)
		}
	}
	pg := gateway.PortGroup{Name: spec.Name, Switch: sw.Name, VLAN: spec.VLAN, Ref: "dvportgroup-" + spec.Name}
	s.PortGroups = append(s.PortGroups, pg)
	return &pg, nil
}

func (g *Gateway) AddSwitchHost(_ context.Context, sw *gateway.Switch, host *gateway.Host) error {
	s, err := g.dvs(sw)
	if err != nil {
		return err
	}
	if err := g.record("AddSwitchHost", host.Name); err != nil {
		return err
	}
	if !s.HasHost(host.Name) {
		s.Hosts = append(s.Hosts, host.Name)
	}
	return nil
}

func (g *Gateway) ListPhysicalNics(_ context.Context, host *gateway.Host) ([]string, error) {
	h, err := g.host(host)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), h.Nics...), nil
}

func (g *Gateway) BindUplink(_ context.Context, sw *gateway.Switch, host *gateway.Host, nic string) error {
	s, err := g.dvs(sw)
	if err != nil {
		return err
	}
	if err := g.record("BindUplink", host.Name+"/"+nic); err != nil {
		return err
	}
	s.Bindings[host.Name] = append(s.Bindings[host.Name], nic)
	return nil
}

func (g *Gateway) ListKernelAdapters(_ context.Context, host *gateway.Host) ([]gateway.KernelAdapter, error) {
	h, err := g.host(host)
	if err != nil {
		return nil, err
	}
	return append([]gateway.KernelAdapter(nil), h.Adapters...), nil
}

func (g *Gateway) CreateKernelAdapter(_ context.Context, dc *gateway.Datacenter, host *gateway.Host, spec gateway.KernelAdapterSpec) (*gateway.KernelAdapter, error) {
	h, err := g.host(host)
	if err != nil {
		return nil, err
	}
	found := false
	for _, s := range g.Switches {
		if !strings.EqualFold(s.Datacenter, dc.Name) {
			continue
		}
		for _, pg := range s.PortGroups {
			if strings.EqualFold(pg.Name, spec.PortGroup) {
				found = true
			}
		}
	}
	if !found {
		return nil, gateway.NewErrPortGroupNotFound(spec.PortGroup)
	}
	if err := g.record("CreateKernelAdapter", host.Name+"/"+string(spec.Purpose)); err != nil {
		return nil, err
	}
	ka := gateway.KernelAdapter{
		Device:     fmt.Sprintf("vmk%d", len(h.Adapters)+1),
		Host:       host.Name,
		PortGroup:  spec.PortGroup,
		IP:         spec.IP,
		SubnetMask: spec.SubnetMask,
		NetStack:   spec.NetStack,
		Purposes:   []gateway.Purpose{spec.Purpose},
	}
	h.Adapters = append(h.Adapters, ka)
	return &ka, nil
}

func (g *Gateway) AddDefaultRoute(_ context.Context, host *gateway.Host, stack, gw string) error {
	h, err := g.host(host)
	if err != nil {
		return err
	}
	if err := g.record("AddDefaultRoute", host.Name+"/"+stack); err != nil {
		return err
	}
	if h.Routes[stack] != "" {
		return gateway.NewErrAlreadyExists("default route on stack", stack)
	}
	h.Routes[stack] = gw
	return nil
}

// Storage

func (g *Gateway) EnableVsan(_ context.Context, cluster *gateway.Cluster, spec gateway.VsanSpec) error {
	c, err := g.cluster(cluster)
	if err != nil {
		return err
	}
	if err := g.record("EnableVsan", cluster.Name); err != nil {
		return err
	}
	c.Vsan = &spec
	return nil
}

func (g *Gateway) ListDevices(_ context.Context, host *gateway.Host) ([]gateway.StorageDevice, error) {
	h, err := g.host(host)
	if err != nil {
		return nil, err
	}
	if err := g.failure("ListDevices", host.Name); err != nil {
		return nil, err
	}
	return append([]gateway.StorageDevice(nil), h.Devices...), nil
}

func (g *Gateway) ListDiskGroups(_ context.Context, host *gateway.Host) ([]gateway.DiskGroup, error) {
	h, err := g.host(host)
	if err != nil {
		return nil, err
	}
	return append([]gateway.DiskGroup(nil), h.DiskGroups...), nil
}

func (g *Gateway) CreateDiskGroup(_ context.Context, host *gateway.Host, cache gateway.StorageDevice, capacity []gateway.StorageDevice) error {
	h, err := g.host(host)
	if err != nil {
		return err
	}
	if err := g.record("CreateDiskGroup", host.Name); err != nil {
		return err
	}
	claim := map[string]gateway.DeviceState{cache.CanonicalName: gateway.DeviceCache}
	for _, d := range capacity {
		claim[d.CanonicalName] = gateway.DeviceCapacity
	}
	for i := range h.Devices {
		if st, ok := claim[h.Devices[i].CanonicalName]; ok {
			h.Devices[i].State = st
		}
	}
	h.DiskGroups = append(h.DiskGroups, gateway.DiskGroup{
		Host:     host.Name,
		Cache:    cache,
		Capacity: append([]gateway.StorageDevice(nil), capacity...),
	})
	return nil
}

func (g *Gateway) FindStoragePolicy(_ context.Context, name string) (*gateway.StoragePolicy, error) {
	p, ok := g.Policies[key(name)]
	if !ok {
		return nil, gateway.NewErrStoragePolicyNotFound(name)
	}
	cp := *p
	return &cp, nil
}

func (g *Gateway) CreateStoragePolicy(_ context.Context, spec gateway.StoragePolicySpec) (*gateway.StoragePolicy, error) {
	if err := g.record("CreateStoragePolicy", spec.Name); err != nil {
		return nil, err
	}
	p := &gateway.StoragePolicy{
		Name:               spec.Name,
		ID:                 fmt.Sprintf("policy-%d", len(g.Policies)+1),
		FailuresToTolerate: spec.FailuresToTolerate,
		RAIDType:           spec.RAIDType,
	}
	g.Policies[key(spec.Name)] = p
	cp := *p
	return &cp, nil
}

// Host services

func (g *Gateway) NTPServers(_ context.Context, host *gateway.Host) ([]string, error) {
	h, err := g.host(host)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), h.NTP...), nil
}

func (g *Gateway) RemoveNTPServers(_ context.Context, host *gateway.Host, servers []string) error {
	h, err := g.host(host)
	if err != nil {
		return err
	}
	if err := g.record("RemoveNTPServers", host.Name); err != nil {
		return err
	}
	drop := map[string]bool{}
	for _, s := range servers {
		drop[s] = true
	}
	var kept []string
	for _, s := range h.NTP {
		if !drop[s] {
			kept = append(kept, s)
		}
	}
	h.NTP = kept
	return nil
}

func (g *Gateway) AddNTPServers(_ context.Context, host *gateway.Host, servers []string) error {
	h, err := g.host(host)
	if err != nil {
		return err
	}
	if err := g.record("AddNTPServers", host.Name); err != nil {
		return err
	}
	h.NTP = append(h.NTP, servers...)
	return nil
}

func (g *Gateway) service(host *gateway.Host, key string) (*gateway.HostService, error) {
	h, err := g.host(host)
	if err != nil {
		return nil, err
	}
	svc, ok := h.Services[key]
	if !ok {
		return nil, gateway.NewErrNotFound("service", key)
	}
	return svc, nil
}

func (g *Gateway) Service(_ context.Context, host *gateway.Host, key string) (*gateway.HostService, error) {
	svc, err := g.service(host, key)
	if err != nil {
		return nil, err
	}
	cp := *svc
	return &cp, nil
}

func (g *Gateway) StartService(_ context.Context, host *gateway.Host, key string) error {
	svc, err := g.service(host, key)
	if err != nil {
		return err
	}
	if err := g.record("StartService", host.Name+"/"+key); err != nil {
		return err
	}
	svc.Running = true
	return nil
}

func (g *Gateway) StopService(_ context.Context, host *gateway.Host, key string) error {
	svc, err := g.service(host, key)
	if err != nil {
		return err
	}
	if err := g.record("StopService", host.Name+"/"+key); err != nil {
		return err
	}
	svc.Running = false
	return nil
}

func (g *Gateway) RestartService(_ context.Context, host *gateway.Host, key string) error {
	svc, err := g.service(host, key)
	if err != nil {
		return err
	}
	if err := g.record("RestartService", host.Name+"/"+key); err != nil {
		return err
	}
	svc.Running = true
	return nil
}

func (g *Gateway) SetServicePolicy(_ context.Context, host *gateway.Host, key string, policy gateway.ServicePolicy) error {
	svc, err := g.service(host, key)
	if err != nil {
		return err
	}
	if err := g.record("SetServicePolicy", host.Name+"/"+key); err != nil {
		return err
	}
	svc.Policy = policy
	return nil
}

func (g *Gateway) UpdateDNS(_ context.Context, host *gateway.Host, dns gateway.DNSConfig) error {
	h, err := g.host(host)
	if err != nil {
		return err
	}
	if err := g.record("UpdateDNS", host.Name); err != nil {
		return err
	}
	h.DNS = gateway.DNSConfig{
		Servers:       append([]string(nil), dns.Servers...),
		SearchDomains: append([]string(nil), dns.SearchDomains...),
	}
	return nil
}

func (g *Gateway) SetAdvancedOption(_ context.Context, host *gateway.Host, key string, value any) error {
	h, err := g.host(host)
	if err != nil {
		return err
	}
	if err := g.record("SetAdvancedOption", host.Name+"/"+key); err != nil {
		return err
	}
	if _, ok := h.Options[key]; !ok {
		return gateway.NewErrUnsupported("advanced option", key)
	}
	h.Options[key] = value
	return nil
}

func (g *Gateway) FirewallRulesets(_ context.Context, host *gateway.Host) ([]gateway.FirewallRuleset, error) {
	h, err := g.host(host)
	if err != nil {
		return nil, err
	}
	var out []gateway.FirewallRuleset
	for k, enabled := range h.Rulesets {
		out = append(out, gateway.FirewallRuleset{Key: k, Enabled: enabled})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (g *Gateway) EnableFirewallRuleset(_ context.Context, host *gateway.Host, key string) error {
	h, err := g.host(host)
	if err != nil {
		return err
	}
	if err := g.record("EnableFirewallRuleset", host.Name+"/"+key); err != nil {
		return err
	}
	if _, ok := h.Rulesets[key]; !ok {
		return gateway.NewErrNotFound("firewall ruleset", key)
	}
	h.Rulesets[key] = true
	return nil
}

func (g *Gateway) SetLockdownMode(_ context.Context, host *gateway.Host, mode gateway.LockdownMode) error {
	h, err := g.host(host)
	if err != nil {
		return err
	}
	if err := g.record("SetLockdownMode", host.Name); err != nil {
		return err
	}
	h.Lockdown = mode
	return nil
}

// Status

func (g *Gateway) Summary(_ context.Context) (*gateway.Summary, error) {
	s := &gateway.Summary{Server: g.Server, Version: g.Version}
	for _, dc := range g.Datacenters {
		s.Datacenters = append(s.Datacenters, dc.Name)
	}
	sort.Strings(s.Datacenters)
	for _, c := range g.Clusters {
		cs := gateway.ClusterSummary{
			Name:        c.Name,
			Datacenter:  c.Datacenter,
			HAEnabled:   c.Spec.HA.Enabled,
			DRSEnabled:  c.Spec.DRS.Enabled,
			VsanEnabled: c.Vsan != nil,
		}
		for _, h := range g.Hosts {
			if strings.EqualFold(h.Cluster, c.Name) && strings.EqualFold(h.Datacenter, c.Datacenter) {
				cs.Hosts++
			}
		}
		s.Clusters = append(s.Clusters, cs)
	}
	sort.Slice(s.Clusters, func(i, j int) bool { return s.Clusters[i].Name < s.Clusters[j].Name })
	for _, h := range g.Hosts {
		s.Hosts = append(s.Hosts, h.Host)
	}
	sort.Slice(s.Hosts, func(i, j int) bool { return s.Hosts[i].Name < s.Hosts[j].Name })
	for _, sw := range g.Switches {
		s.Switches = append(s.Switches, gateway.SwitchSummary{
			Name:       sw.Name,
			Datacenter: sw.Datacenter,
			Version:    sw.Version,
			MTU:        sw.MTU,
			Hosts:      len(sw.Hosts),
			PortGroups: len(sw.PortGroups),
		})
	}
	sort.Slice(s.Switches, func(i, j int) bool { return s.Switches[i].Name < s.Switches[j].Name })
	return s, nil
}
