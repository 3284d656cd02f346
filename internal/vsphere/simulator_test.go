package vsphere_test

import (
	"fmt"

	"github.com/vmware/govmomi/simulator"
	"github.com/vmware/govmomi/vim25/methods"
	"github.com/vmware/govmomi/vim25/mo"
	"github.com/vmware/govmomi/vim25/soap"
	"github.com/vmware/govmomi/vim25/types"
)

// hostDateTimeSystem keeps the NTP configuration written by UpdateDateTimeConfig.
type hostDateTimeSystem struct {
	mo.HostDateTimeSystem
}

func (s *hostDateTimeSystem) UpdateDateTimeConfig(req *types.UpdateDateTimeConfig) soap.HasFault {
	if req.Config.NtpConfig != nil {
		s.DateTimeInfo.NtpConfig = req.Config.NtpConfig
	}
	return &methods.UpdateDateTimeConfigBody{Res: new(types.UpdateDateTimeConfigResponse)}
}

// hostNetworkSystem adds DNS updates and VMkernel adapter creation.
type hostNetworkSystem struct {
	*simulator.HostNetworkSystem
}

func (s *hostNetworkSystem) UpdateDnsConfig(req *types.UpdateDnsConfig) soap.HasFault {
	s.DnsConfig = req.Config
	return &methods.UpdateDnsConfigBody{Res: new(types.UpdateDnsConfigResponse)}
}

func (s *hostNetworkSystem) AddVirtualNic(req *types.AddVirtualNic) soap.HasFault {
	network := s.Host.Config.Network
	device := fmt.Sprintf("vmk%d", len(network.Vnic))
	network.Vnic = append(network.Vnic, types.HostVirtualNic{
		Device:    device,
		Key:       "key-vim.host.VirtualNic-" + device,
		Portgroup: req.Portgroup,
		Spec:      req.Nic,
	})
	return &methods.AddVirtualNicBody{Res: &types.AddVirtualNicResponse{Returnval: device}}
}

// hostVirtualNicManager records selected adapters in the host's vnic manager info.
type hostVirtualNicManager struct {
	*simulator.HostVirtualNicManager
}

func (m *hostVirtualNicManager) SelectVnicForNicType(req *types.SelectVnicForNicType) soap.HasFault {
	body := new(methods.SelectVnicForNicTypeBody)
	info := m.Host.Config.VirtualNicManagerInfo
	for i := range info.NetConfig {
		nc := &info.NetConfig[i]
		if nc.NicType != req.NicType {
			continue
		}
		key := req.NicType + ".key-vim.host.VirtualNic-" + req.Device
		nc.CandidateVnic = append(nc.CandidateVnic, types.HostVirtualNic{Device: req.Device, Key: key})
		nc.SelectedVnic = append(nc.SelectedVnic, key)
		body.Res = new(types.SelectVnicForNicTypeResponse)
		return body
	}
	body.Fault_ = simulator.Fault("", &types.InvalidArgument{InvalidProperty: "nicType"})
	return body
}

// extendHosts installs the host managers vcsim does not implement.
func extendHosts(model *simulator.Model) {
	registry := model.Map()
	for _, e := range registry.All("HostSystem") {
		host, ok := e.(*simulator.HostSystem)
		if !ok {
			continue
		}
		cm := host.ConfigManager

		if cm.DateTimeSystem != nil {
			dts := &hostDateTimeSystem{}
			dts.Self = types.ManagedObjectReference{Type: "HostDateTimeSystem", Value: "dateTimeSystem-" + host.Self.Value}
			registry.Put(dts)
			ref := dts.Self
			host.ConfigManager.DateTimeSystem = &ref
		}
		if cm.NetworkSystem != nil {
			if ns, ok := registry.Get(*cm.NetworkSystem).(*simulator.HostNetworkSystem); ok {
				registry.Put(&hostNetworkSystem{ns})
			}
		}
		if cm.VirtualNicManager != nil {
			if vnm, ok := registry.Get(*cm.VirtualNicManager).(*simulator.HostVirtualNicManager); ok {
				registry.Put(&hostVirtualNicManager{vnm})
			}
		}
	}
}
