package vsphere

import (
	"context"

	"github.com/pkg/errors"
	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/property"
	"github.com/vmware/govmomi/vim25/methods"
	"github.com/vmware/govmomi/vim25/mo"
	"github.com/vmware/govmomi/vim25/types"

	"github.com/ecst/vbuild/internal/gateway"
)

const defaultPortGroupPorts = 8

// switchConfig loads the switch and its current configuration.
func (g *Gateway) switchConfig(ctx context.Context, sw *gateway.Switch) (*object.DistributedVirtualSwitch, *mo.DistributedVirtualSwitch, error) {
	dvs := object.NewDistributedVirtualSwitch(g.client, moref(sw.Ref))
	var m mo.DistributedVirtualSwitch
	if err := dvs.Properties(ctx, dvs.Reference(), []string{"name", "config", "portgroup"}, &m); err != nil {
		return nil, nil, translate(err, "distributed switch", sw.Name, "read")
	}
	if m.Config == nil {
		return nil, nil, errors.Errorf("distributed switch %q has no configuration", sw.Name)
	}
	return dvs, &m, nil
}

func (g *Gateway) FindSwitch(ctx context.Context, dc *gateway.Datacenter, name string) (*gateway.Switch, error) {
	ref, err := g.findByName(ctx, moref(dc.Ref), "DistributedVirtualSwitch", name)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, gateway.NewErrSwitchNotFound(name)
	}

	sw := &gateway.Switch{Name: name, Datacenter: dc.Name, Ref: ref.String()}
	_, m, err := g.switchConfig(ctx, sw)
	if err != nil {
		return nil, err
	}
	cfg := m.Config.GetDVSConfigInfo()
	sw.Version = cfg.ProductInfo.Version
	if vmw, ok := m.Config.(*types.VMwareDVSConfigInfo); ok {
		sw.MTU = vmw.MaxMtu
	}
	if p, ok := cfg.UplinkPortPolicy.(*types.DVSNameArrayUplinkPortPolicy); ok {
		sw.Uplinks = p.UplinkPortName
	}

	var members []types.ManagedObjectReference
	for _, h := range cfg.Host {
		if h.Config.Host != nil {
			members = append(members, *h.Config.Host)
		}
	}
	names, err := g.names(ctx, members)
	if err != nil {
		return nil, err
	}
	for _, ref := range members {
		sw.Hosts = append(sw.Hosts, names[ref])
	}
	return sw, nil
}

func (g *Gateway) CreateSwitch(ctx context.Context, dc *gateway.Datacenter, spec gateway.SwitchSpec) (*gateway.Switch, error) {
	portConfig := &types.VMwareDVSPortSetting{}
	if spec.LoadBalancing != "" {
		policy, ok := spec.LoadBalancing.Policy()
		if !ok {
			return nil, gateway.NewErrValidation("unknown load balancing policy %q", spec.LoadBalancing)
		}
		portConfig.UplinkTeamingPolicy = &types.VmwareUplinkPortTeamingPolicy{
			Policy: &types.StringPolicy{Value: policy},
		}
	}
	folders, err := object.NewDatacenter(g.client, moref(dc.Ref)).Folders(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve folders of datacenter %q", dc.Name)
	}

	create := types.DVSCreateSpec{
		ConfigSpec: &types.VMwareDVSConfigSpec{
			DVSConfigSpec: types.DVSConfigSpec{
				Name:              spec.Name,
				UplinkPortPolicy:  &types.DVSNameArrayUplinkPortPolicy{UplinkPortName: spec.UplinkNames},
				DefaultPortConfig: portConfig,
			},
			MaxMtu: spec.MTU,
		},
	}
	if spec.Version != "" {
		create.ProductInfo = &types.DistributedVirtualSwitchProductSpec{Version: spec.Version}
	}

	task, err := folders.NetworkFolder.CreateDVS(ctx, create)
	if err != nil {
		return nil, translate(err, "distributed switch", spec.Name, "create")
	}
	info, err := task.WaitForResult(ctx)
	if err != nil {
		return nil, translate(err, "distributed switch", spec.Name, "create")
	}
	ref, ok := info.Result.(types.ManagedObjectReference)
	if !ok {
		return nil, errors.Errorf("creating distributed switch %q returned no reference", spec.Name)
	}
	return &gateway.Switch{
		Name:       spec.Name,
		Datacenter: dc.Name,
		Version:    spec.Version,
		MTU:        spec.MTU,
		Uplinks:    spec.UplinkNames,
		Ref:        ref.String(),
	}, nil
}

func (g *Gateway) reconfigureSwitch(ctx context.Context, sw *gateway.Switch, dvs *object.DistributedVirtualSwitch, spec types.BaseDVSConfigSpec) error {
	task, err := dvs.Reconfigure(ctx, spec)
	if err != nil {
		return translate(err, "distributed switch", sw.Name, "reconfigure")
	}
	return translate(task.WaitEx(ctx), "distributed switch", sw.Name, "reconfigure")
}

func (g *Gateway) UpdateSwitchMTU(ctx context.Context, sw *gateway.Switch, mtu int32) error {
	dvs, m, err := g.switchConfig(ctx, sw)
	if err != nil {
		return err
	}
	return g.reconfigureSwitch(ctx, sw, dvs, &types.VMwareDVSConfigSpec{
		DVSConfigSpec: types.DVSConfigSpec{ConfigVersion: m.Config.GetDVSConfigInfo().ConfigVersion},
		MaxMtu:        mtu,
	})
}

func (g *Gateway) ListPortGroups(ctx context.Context, sw *gateway.Switch) ([]gateway.PortGroup, error) {
	_, m, err := g.switchConfig(ctx, sw)
	if err != nil {
		return nil, err
	}
	if len(m.Portgroup) == 0 {
		return nil, nil
	}

	var pgs []mo.DistributedVirtualPortgroup
	if err := property.DefaultCollector(g.client).Retrieve(ctx, m.Portgroup, []string{"name", "config"}, &pgs); err != nil {
		return nil, errors.Wrapf(err, "failed to retrieve port groups of %q", sw.Name)
	}

	uplinks := make(map[types.ManagedObjectReference]bool)
	for _, ref := range m.Config.GetDVSConfigInfo().UplinkPortgroup {
		uplinks[ref] = true
	}

	out := make([]gateway.PortGroup, 0, len(pgs))
	for _, pg := range pgs {
		if uplinks[pg.Self] {
			continue
		}
		item := gateway.PortGroup{Name: pg.Name, Switch: sw.Name, Ref: pg.Self.String()}
		if setting, ok := pg.Config.DefaultPortConfig.(*types.VMwareDVSPortSetting); ok {
			if vlan, ok := setting.Vlan.(*types.VmwareDistributedVirtualSwitchVlanIdSpec); ok {
				item.VLAN = vlan.VlanId
			}
		}
		out = append(out, item)
	}
	return out, nil
}

func (g *Gateway) CreatePortGroup(ctx context.Context, sw *gateway.Switch, spec gateway.PortGroupSpec) (*gateway.PortGroup, error) {
	dvs := object.NewDistributedVirtualSwitch(g.client, moref(sw.Ref))
	task, err := dvs.AddPortgroup(ctx, []types.DVPortgroupConfigSpec{{
		Name:       spec.Name,
		Type:       string(types.DistributedVirtualPortgroupPortgroupTypeEarlyBinding),
		NumPorts:   defaultPortGroupPorts,
		AutoExpand: types.NewBool(true),
		DefaultPortConfig: &types.VMwareDVSPortSetting{
			Vlan: &types.VmwareDistributedVirtualSwitchVlanIdSpec{VlanId: spec.VLAN},
		},
	}})
	if err != nil {
		return nil, translate(err, "port group", spec.Name, "create")
	}
	if err := task.WaitEx(ctx); err != nil {
		return nil, translate(err, "port group", spec.Name, "create")
	}

	pgs, err := g.ListPortGroups(ctx, sw)
	if err != nil {
		return nil, err
	}
	for _, pg := range pgs {
		if pg.Name == spec.Name {
			return &pg, nil
		}
	}
	return &gateway.PortGroup{Name: spec.Name, Switch: sw.Name, VLAN: spec.VLAN}, nil
}

func (g *Gateway) AddSwitchHost(ctx context.Context, sw *gateway.Switch, host *gateway.Host) error {
	dvs, m, err := g.switchConfig(ctx, sw)
	if err != nil {
		return err
	}
	return g.reconfigureSwitch(ctx, sw, dvs, &types.DVSConfigSpec{
		ConfigVersion: m.Config.GetDVSConfigInfo().ConfigVersion,
		Host: []types.DistributedVirtualSwitchHostMemberConfigSpec{{
			Operation: string(types.ConfigSpecOperationAdd),
			Host:      moref(host.Ref),
		}},
	})
}

func (g *Gateway) ListPhysicalNics(ctx context.Context, host *gateway.Host) ([]string, error) {
	var h mo.HostSystem
	hs := g.hostSystem(host)
	if err := hs.Properties(ctx, hs.Reference(), []string{"config.network.pnic"}, &h); err != nil {
		return nil, translate(err, "host", host.Name, "read network of")
	}
	if h.Config == nil || h.Config.Network == nil {
		return nil, nil
	}
	nics := make([]string, 0, len(h.Config.Network.Pnic))
	for _, p := range h.Config.Network.Pnic {
		nics = append(nics, p.Device)
	}
	return nics, nil
}

// BindUplink adds nic to the host's uplink backing on the switch, keeping
// the NICs already bound.
func (g *Gateway) BindUplink(ctx context.Context, sw *gateway.Switch, host *gateway.Host, nic string) error {
	dvs, m, err := g.switchConfig(ctx, sw)
	if err != nil {
		return err
	}
	cfg := m.Config.GetDVSConfigInfo()
	hostRef := moref(host.Ref)

	var member *types.DistributedVirtualSwitchHostMember
	for i := range cfg.Host {
		if cfg.Host[i].Config.Host != nil && *cfg.Host[i].Config.Host == hostRef {
			member = &cfg.Host[i]
			break
		}
	}
	if member == nil {
		return gateway.NewErrNotFound("switch member", host.Name)
	}

	backing := &types.DistributedVirtualSwitchHostMemberPnicBacking{}
	if b, ok := member.Config.Backing.(*types.DistributedVirtualSwitchHostMemberPnicBacking); ok {
		backing.PnicSpec = append(backing.PnicSpec, b.PnicSpec...)
	}
	for _, p := range backing.PnicSpec {
		if p.PnicDevice == nic {
			return nil
		}
	}

	pnic := types.DistributedVirtualSwitchHostMemberPnicSpec{PnicDevice: nic}
	if len(cfg.UplinkPortgroup) > 0 {
		var uplink mo.DistributedVirtualPortgroup
		if err := property.DefaultCollector(g.client).RetrieveOne(ctx, cfg.UplinkPortgroup[0], []string{"key"}, &uplink); err != nil {
			return errors.Wrapf(err, "failed to read uplink port group of %q", sw.Name)
		}
		pnic.UplinkPortgroupKey = uplink.Key
	}
	backing.PnicSpec = append(backing.PnicSpec, pnic)

	return g.reconfigureSwitch(ctx, sw, dvs, &types.DVSConfigSpec{
		ConfigVersion: cfg.ConfigVersion,
		Host: []types.DistributedVirtualSwitchHostMemberConfigSpec{{
			Operation: string(types.ConfigSpecOperationEdit),
			Host:      hostRef,
			Backing:   backing,
		}},
	})
}

func (g *Gateway) ListKernelAdapters(ctx context.Context, host *gateway.Host) ([]gateway.KernelAdapter, error) {
	var h mo.HostSystem
	hs := g.hostSystem(host)
	props := []string{"config.network.vnic", "config.virtualNicManagerInfo"}
	if err := hs.Properties(ctx, hs.Reference(), props, &h); err != nil {
		return nil, translate(err, "host", host.Name, "read adapters of")
	}
	if h.Config == nil || h.Config.Network == nil {
		return nil, nil
	}

	// Selected vnics are keys into the candidate list of the same net config.
	purposes := make(map[string][]gateway.Purpose)
	if h.Config.VirtualNicManagerInfo != nil {
		for _, nc := range h.Config.VirtualNicManagerInfo.NetConfig {
			p := gateway.Purpose(nc.NicType)
			if !p.Valid() {
				continue
			}
			devices := make(map[string]string, len(nc.CandidateVnic))
			for _, c := range nc.CandidateVnic {
				devices[c.Key] = c.Device
			}
			for _, key := range nc.SelectedVnic {
				if dev, ok := devices[key]; ok {
					purposes[dev] = append(purposes[dev], p)
				}
			}
		}
	}

	adapters := make([]gateway.KernelAdapter, 0, len(h.Config.Network.Vnic))
	for _, v := range h.Config.Network.Vnic {
		a := gateway.KernelAdapter{
			Device:    v.Device,
			Host:      host.Name,
			PortGroup: v.Portgroup,
			NetStack:  v.Spec.NetStackInstanceKey,
			Purposes:  purposes[v.Device],
		}
		if a.NetStack == "" {
			a.NetStack = gateway.DefaultNetStack
		}
		if a.NetStack == gateway.VMotionNetStack && !a.Serves(gateway.PurposeVMotion) {
			a.Purposes = append(a.Purposes, gateway.PurposeVMotion)
		}
		if v.Spec.DistributedVirtualPort != nil && a.PortGroup == "" {
			a.PortGroup = v.Spec.DistributedVirtualPort.PortgroupKey
		}
		if v.Spec.Ip != nil {
			a.IP = v.Spec.Ip.IpAddress
			a.SubnetMask = v.Spec.Ip.SubnetMask
		}
		adapters = append(adapters, a)
	}
	return adapters, nil
}

func (g *Gateway) CreateKernelAdapter(ctx context.Context, dc *gateway.Datacenter, host *gateway.Host, spec gateway.KernelAdapterSpec) (*gateway.KernelAdapter, error) {
	ref, err := g.findByName(ctx, moref(dc.Ref), "DistributedVirtualPortgroup", spec.PortGroup)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, gateway.NewErrPortGroupNotFound(spec.PortGroup)
	}
	backing, err := object.NewDistributedVirtualPortgroup(g.client, *ref).EthernetCardBackingInfo(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve port group %q", spec.PortGroup)
	}
	port, ok := backing.(*types.VirtualEthernetCardDistributedVirtualPortBackingInfo)
	if !ok {
		return nil, errors.Errorf("port group %q is not a distributed port group", spec.PortGroup)
	}

	hs := g.hostSystem(host)
	ns, err := hs.ConfigManager().NetworkSystem(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve network system of %q", host.Name)
	}

	nicSpec := types.HostVirtualNicSpec{
		Ip:                     &types.HostIpConfig{IpAddress: spec.IP, SubnetMask: spec.SubnetMask},
		DistributedVirtualPort: &port.Port,
	}
	stack := spec.NetStack
	if stack == "" {
		stack = gateway.DefaultNetStack
	}
	if stack != gateway.DefaultNetStack {
		nicSpec.NetStackInstanceKey = stack
	}

	device, err := ns.AddVirtualNic(ctx, "", nicSpec)
	if err != nil {
		return nil, translate(err, "VMkernel adapter", host.Name+"/"+string(spec.Purpose), "create")
	}

	// Adapters on the vmotion stack carry vMotion traffic without tagging.
	if stack != gateway.VMotionNetStack {
		vnm, err := hs.ConfigManager().VirtualNicManager(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to resolve virtual NIC manager of %q", host.Name)
		}
		if err := vnm.SelectVnic(ctx, string(spec.Purpose), device); err != nil {
			return nil, errors.Wrapf(err, "failed to tag %s on %q for %s", device, host.Name, spec.Purpose)
		}
	}

	return &gateway.KernelAdapter{
		Device:     device,
		Host:       host.Name,
		PortGroup:  spec.PortGroup,
		IP:         spec.IP,
		SubnetMask: spec.SubnetMask,
		NetStack:   stack,
		Purposes:   []gateway.Purpose{spec.Purpose},
	}, nil
}

func (g *Gateway) AddDefaultRoute(ctx context.Context, host *gateway.Host, stack, gw string) error {
	var h mo.HostSystem
	hs := g.hostSystem(host)
	if err := hs.Properties(ctx, hs.Reference(), []string{"config.network.netStackInstance"}, &h); err != nil {
		return translate(err, "host", host.Name, "read TCP/IP stacks of")
	}
	if h.Config != nil && h.Config.Network != nil {
		for _, inst := range h.Config.Network.NetStackInstance {
			if inst.Key != stack || inst.IpRouteConfig == nil {
				continue
			}
			if inst.IpRouteConfig.GetHostIpRouteConfig().DefaultGateway != "" {
				return gateway.NewErrAlreadyExists("default route", host.Name+"/"+stack)
			}
		}
	}

	ns, err := hs.ConfigManager().NetworkSystem(ctx)
	if err != nil {
		return errors.Wrapf(err, "failed to resolve network system of %q", host.Name)
	}
	_, err = methods.UpdateNetworkConfig(ctx, g.client, &types.UpdateNetworkConfig{
		This: ns.Reference(),
		Config: types.HostNetworkConfig{
			NetStackSpec: []types.HostNetworkConfigNetStackSpec{{
				Operation: string(types.ConfigSpecOperationEdit),
				NetStackInstance: types.HostNetStackInstance{
					Key:           stack,
					IpRouteConfig: &types.HostIpRouteConfig{DefaultGateway: gw},
				},
			}},
		},
		ChangeMode: string(types.HostConfigChangeModeModify),
	})
	return translate(err, "default route", host.Name+"/"+stack, "set")
}
