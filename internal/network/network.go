// Package network converges the distributed switch, its port groups, the
// host uplinks and the VMkernel adapters carrying vMotion and vSAN.
package network

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/ecst/vbuild/internal/gateway"
	"github.com/ecst/vbuild/internal/report"
)

const DefaultUplinkCount = 2

type Builder struct {
	gw gateway.Network
}

func NewBuilder(gw gateway.Network) *Builder {
	return &Builder{gw: gw}
}

// UplinkNames returns the explicit names or "Uplink 1".."Uplink N".
func UplinkNames(spec gateway.SwitchSpec) []string {
	if len(spec.UplinkNames) > 0 {
		return spec.UplinkNames
	}
	count := spec.UplinkCount
	if count <= 0 {
		count = DefaultUplinkCount
	}
	names := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		names = append(names, fmt.Sprintf("Uplink %d", i))
	}
	return names
}

// EnsureSwitch returns the distributed switch, creating it when absent.
// On an existing switch only the MTU is converged.
func (b *Builder) EnsureSwitch(ctx context.Context, datacenter string, spec gateway.SwitchSpec) (*gateway.Switch, error) {
	logger := zap.S().Named("network").With("switch", spec.Name)

	if spec.Name == "" {
		return nil, gateway.NewErrValidation("distributed switch name is required")
	}
	if spec.LoadBalancing != "" {
		if _, ok := spec.LoadBalancing.Policy(); !ok {
			return nil, gateway.NewErrValidation("unknown load balancing policy %q", spec.LoadBalancing)
		}
	}

	dc, err := b.gw.FindDatacenter(ctx, datacenter)
	if err != nil {
		return nil, err
	}

	sw, err := b.gw.FindSwitch(ctx, dc, spec.Name)
	switch {
	case err == nil:
		if spec.MTU > 0 && sw.MTU != spec.MTU {
			if err := b.gw.UpdateSwitchMTU(ctx, sw, spec.MTU); err != nil {
				return nil, fmt.Errorf("failed to update MTU of %q: %w", spec.Name, err)
			}
			logger.Infow("switch MTU updated", "from", sw.MTU, "to", spec.MTU)
			sw.MTU = spec.MTU
		} else {
			logger.Info("switch already exists")
		}
		return sw, nil
	case !gateway.IsNotFound(err):
		return nil, err
	}

	spec.UplinkNames = UplinkNames(spec)
	sw, err = b.gw.CreateSwitch(ctx, dc, spec)
	if err != nil {
		return nil, fmt.Errorf("failed to create distributed switch %q: %w", spec.Name, err)
	}
	logger.Infow("switch created", "version", spec.Version, "mtu", spec.MTU, "uplinks", spec.UplinkNames)
	return sw, nil
}

func (b *Builder) findSwitch(ctx context.Context, datacenter, name string) (*gateway.Datacenter, *gateway.Switch, error) {
	dc, err := b.gw.FindDatacenter(ctx, datacenter)
	if err != nil {
		return nil, nil, err
	}
	sw, err := b.gw.FindSwitch(ctx, dc, name)
	if err != nil {
		return nil, nil, err
	}
	return dc, sw, nil
}

// EnsurePortGroups creates the port groups missing from the switch.
func (b *Builder) EnsurePortGroups(ctx context.Context, datacenter, switchName string, specs []gateway.PortGroupSpec) (*report.Report, error) {
	logger := zap.S().Named("network").With("switch", switchName)
	rep := report.New("port-groups")

	_, sw, err := b.findSwitch(ctx, datacenter, switchName)
	if err != nil {
		return rep, err
	}
	existing, err := b.gw.ListPortGroups(ctx, sw)
	if err != nil {
		return rep, err
	}
	names := sets.New[string]()
	for _, pg := range existing {
		names.Insert(strings.ToLower(pg.Name))
	}

	for _, spec := range specs {
		if names.Has(strings.ToLower(spec.Name)) {
			logger.Infow("port group already exists", "portgroup", spec.Name)
			rep.Skip(spec.Name, "already exists")
			continue
		}
		if _, err := b.gw.CreatePortGroup(ctx, sw, spec); err != nil {
			logger.Warnw("failed to create port group", "portgroup", spec.Name, "error", err)
			rep.Fail(spec.Name, err)
			continue
		}
		names.Insert(strings.ToLower(spec.Name))
		logger.Infow("port group created", "portgroup", spec.Name, "vlan", spec.VLAN, "type", spec.Type)
		rep.Succeed(spec.Name)
	}
	return rep, nil
}

// BindHostsToSwitch makes every cluster host a member of the switch and
// binds the named physical NICs as uplinks. Items are reported as
// "<host>/<nic>"; a host that cannot join is reported by name.
func (b *Builder) BindHostsToSwitch(ctx context.Context, datacenter, switchName, clusterName string, nics []string) (*report.Report, error) {
	logger := zap.S().Named("network").With("switch", switchName)
	rep := report.New("uplinks")

	dc, sw, err := b.findSwitch(ctx, datacenter, switchName)
	if err != nil {
		return rep, err
	}
	cluster, err := b.gw.FindCluster(ctx, dc, clusterName)
	if err != nil {
		return rep, err
	}
	hosts, err := b.gw.ListHosts(ctx, cluster)
	if err != nil {
		return rep, err
	}

	for i := range hosts {
		host := &hosts[i]
		if !sw.HasHost(host.Name) {
			if err := b.gw.AddSwitchHost(ctx, sw, host); err != nil {
				logger.Warnw("failed to add host to switch", "host", host.Name, "error", err)
				rep.Fail(host.Name, err)
				continue
			}
			logger.Infow("host added to switch", "host", host.Name)
		}

		present, err := b.gw.ListPhysicalNics(ctx, host)
		if err != nil {
			logger.Warnw("failed to list physical NICs", "host", host.Name, "error", err)
			rep.Fail(host.Name, err)
			continue
		}
		available := sets.New(present...)
		for _, nic := range nics {
			item := host.Name + "/" + nic
			if !available.Has(nic) {
				logger.Warnw("physical NIC not present on host", "host", host.Name, "nic", nic)
				rep.Skip(item, "not present on host")
				continue
			}
			if err := b.gw.BindUplink(ctx, sw, host, nic); err != nil {
				logger.Warnw("failed to bind uplink", "host", host.Name, "nic", nic, "error", err)
				rep.Fail(item, err)
				continue
			}
			rep.Succeed(item)
		}
	}
	return rep, nil
}

type KernelEndpointSpec struct {
	Purpose   gateway.Purpose
	PortGroup string
	// Addresses maps lower-cased host names to the adapter IP.
	Addresses  map[string]string
	SubnetMask string
	Gateway    string
	// DedicatedStack places the adapter on the purpose's own TCP/IP stack
	// instead of the default one.
	DedicatedStack bool
}

func (s KernelEndpointSpec) netStack() string {
	if s.DedicatedStack && s.Purpose == gateway.PurposeVMotion {
		return gateway.VMotionNetStack
	}
	return gateway.DefaultNetStack
}

// EnsureKernelEndpoint gives every cluster host one VMkernel adapter
// tagged for spec.Purpose. Hosts that already have one are skipped
// whatever its address.
func (b *Builder) EnsureKernelEndpoint(ctx context.Context, datacenter, clusterName string, spec KernelEndpointSpec) (*report.Report, error) {
	logger := zap.S().Named("network").With("purpose", spec.Purpose)
	rep := report.New(string(spec.Purpose) + "-adapters")

	if !spec.Purpose.Valid() {
		return rep, gateway.NewErrValidation("unknown adapter purpose %q", spec.Purpose)
	}
	if spec.PortGroup == "" {
		return rep, gateway.NewErrValidation("no port group configured for %s adapters", spec.Purpose)
	}

	dc, err := b.gw.FindDatacenter(ctx, datacenter)
	if err != nil {
		return rep, err
	}
	cluster, err := b.gw.FindCluster(ctx, dc, clusterName)
	if err != nil {
		return rep, err
	}
	hosts, err := b.gw.ListHosts(ctx, cluster)
	if err != nil {
		return rep, err
	}

	stack := spec.netStack()
	for i := range hosts {
		host := &hosts[i]

		adapters, err := b.gw.ListKernelAdapters(ctx, host)
		if err != nil {
			rep.Fail(host.Name, err)
			continue
		}
		if existing := servingAdapter(adapters, spec.Purpose); existing != nil {
			logger.Infow("adapter already present", "host", host.Name, "device", existing.Device, "ip", existing.IP)
			rep.Skip(host.Name, fmt.Sprintf("%s already serves %s", existing.Device, spec.Purpose))
			continue
		}

		ip, ok := spec.Addresses[strings.ToLower(host.Name)]
		if !ok {
			logger.Warnw("no address configured for host", "host", host.Name)
			rep.Skip(host.Name, "no address configured")
			continue
		}

		ka, err := b.gw.CreateKernelAdapter(ctx, dc, host, gateway.KernelAdapterSpec{
			PortGroup:  spec.PortGroup,
			IP:         ip,
			SubnetMask: spec.SubnetMask,
			NetStack:   stack,
			Purpose:    spec.Purpose,
		})
		if err != nil {
			logger.Warnw("failed to create adapter", "host", host.Name, "error", err)
			rep.Fail(host.Name, err)
			continue
		}
		logger.Infow("adapter created", "host", host.Name, "device", ka.Device, "ip", ip, "stack", stack)

		switch {
		case spec.Gateway == "":
		case stack == gateway.DefaultNetStack:
			// The default stack routes management traffic.
			logger.Warnw("gateway ignored, adapter is on the default stack", "host", host.Name, "gateway", spec.Gateway)
			rep.Skip(host.Name+"/route", "default stack route left unchanged")
		default:
			err := b.gw.AddDefaultRoute(ctx, host, stack, spec.Gateway)
			switch {
			case gateway.IsAlreadyExists(err):
				logger.Infow("default route already set", "host", host.Name, "stack", stack)
			case err != nil:
				logger.Warnw("failed to add default route", "host", host.Name, "stack", stack, "error", err)
			}
		}
		rep.Succeed(host.Name)
	}
	return rep, nil
}

func servingAdapter(adapters []gateway.KernelAdapter, purpose gateway.Purpose) *gateway.KernelAdapter {
	for i := range adapters {
		if adapters[i].Serves(purpose) {
			return &adapters[i]
		}
	}
	return nil
}
