package vsphere

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/vmware/govmomi/view"
	"github.com/vmware/govmomi/vim25/mo"
	"github.com/vmware/govmomi/vim25/types"

	"github.com/ecst/vbuild/internal/gateway"
)

// Summary walks every datacenter once and counts what it finds.
func (g *Gateway) Summary(ctx context.Context) (*gateway.Summary, error) {
	s := &gateway.Summary{Server: g.server, Version: g.client.ServiceContent.About.Version}

	m := view.NewManager(g.client)
	root, err := m.CreateContainerView(ctx, g.client.ServiceContent.RootFolder, []string{"Datacenter"}, true)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create datacenter view")
	}
	defer root.Destroy(ctx) //nolint:errcheck

	var dcs []mo.Datacenter
	if err := root.Retrieve(ctx, []string{"Datacenter"}, []string{"name"}, &dcs); err != nil {
		return nil, errors.Wrap(err, "failed to list datacenters")
	}

	for _, dc := range dcs {
		s.Datacenters = append(s.Datacenters, dc.Name)
		if err := g.summarizeDatacenter(ctx, m, dc, s); err != nil {
			return nil, errors.Wrapf(err, "datacenter %q", dc.Name)
		}
	}

	sort.Strings(s.Datacenters)
	sort.Slice(s.Clusters, func(i, j int) bool { return s.Clusters[i].Name < s.Clusters[j].Name })
	sort.Slice(s.Hosts, func(i, j int) bool { return s.Hosts[i].Name < s.Hosts[j].Name })
	sort.Slice(s.Switches, func(i, j int) bool { return s.Switches[i].Name < s.Switches[j].Name })
	return s, nil
}

func (g *Gateway) summarizeDatacenter(ctx context.Context, m *view.Manager, dc mo.Datacenter, s *gateway.Summary) error {
	kinds := []string{"ClusterComputeResource", "HostSystem", "DistributedVirtualSwitch"}
	v, err := m.CreateContainerView(ctx, dc.Self, kinds, true)
	if err != nil {
		return err
	}
	defer v.Destroy(ctx) //nolint:errcheck

	var clusters []mo.ClusterComputeResource
	if err := v.Retrieve(ctx, []string{"ClusterComputeResource"}, []string{"name", "host", "configurationEx"}, &clusters); err != nil {
		return err
	}
	for _, c := range clusters {
		cs := gateway.ClusterSummary{Name: c.Name, Datacenter: dc.Name, Hosts: len(c.Host)}
		if cfg, ok := c.ConfigurationEx.(*types.ClusterConfigInfoEx); ok {
			cs.HAEnabled = cfg.DasConfig.Enabled != nil && *cfg.DasConfig.Enabled
			cs.DRSEnabled = cfg.DrsConfig.Enabled != nil && *cfg.DrsConfig.Enabled
			cs.VsanEnabled = cfg.VsanConfigInfo != nil && cfg.VsanConfigInfo.Enabled != nil && *cfg.VsanConfigInfo.Enabled
		}
		s.Clusters = append(s.Clusters, cs)
	}

	hostRefs, err := v.Find(ctx, []string{"HostSystem"}, nil)
	if err != nil {
		return err
	}
	hosts, err := g.hosts(ctx, hostRefs)
	if err != nil {
		return err
	}
	s.Hosts = append(s.Hosts, hosts...)

	var switches []mo.DistributedVirtualSwitch
	if err := v.Retrieve(ctx, []string{"DistributedVirtualSwitch"}, []string{"name", "config", "portgroup"}, &switches); err != nil {
		return err
	}
	for _, sw := range switches {
		ss := gateway.SwitchSummary{Name: sw.Name, Datacenter: dc.Name}
		if sw.Config != nil {
			cfg := sw.Config.GetDVSConfigInfo()
			ss.Version = cfg.ProductInfo.Version
			ss.Hosts = len(cfg.Host)
			ss.PortGroups = len(sw.Portgroup) - len(cfg.UplinkPortgroup)
		}
		if vmw, ok := sw.Config.(*types.VMwareDVSConfigInfo); ok {
			ss.MTU = vmw.MaxMtu
		}
		s.Switches = append(s.Switches, ss)
	}
	return nil
}
