package network_test

import (
	"context"
	"errors"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ecst/vbuild/internal/gateway"
	"github.com/ecst/vbuild/internal/gateway/fake"
	"github.com/ecst/vbuild/internal/network"
)

func TestNetwork(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Network Suite")
}

var _ = Describe("UplinkNames", func() {
	It("generates names from the count", func() {
		Expect(network.UplinkNames(gateway.SwitchSpec{UplinkCount: 3})).To(Equal([]string{"Uplink 1", "Uplink 2", "Uplink 3"}))
	})

	It("defaults to two uplinks", func() {
		Expect(network.UplinkNames(gateway.SwitchSpec{})).To(HaveLen(2))
	})

	It("keeps explicit names", func() {
		Expect(network.UplinkNames(gateway.SwitchSpec{UplinkNames: []string{"uplink-a"}, UplinkCount: 4})).To(Equal([]string{"uplink-a"}))
	})
})

var _ = Describe("Builder", func() {
	var (
		ctx context.Context
		gw  *fake.Gateway
		b   *network.Builder
	)

	BeforeEach(func() {
		ctx = context.Background()
		gw = fake.NewGateway()
		gw.SeedDatacenter("DC-01")
		gw.SeedCluster("DC-01", "Cluster-01")
		b = network.NewBuilder(gw)
	})

	Context("EnsureSwitch", func() {
		spec := gateway.SwitchSpec{Name: "VDS-Core", Version: "8.0.0", MTU: 9000, UplinkCount: 2, LoadBalancing: gateway.LoadBalanceSrcID}

		It("creates a missing switch with generated uplink names", func() {
			sw, err := b.EnsureSwitch(ctx, "DC-01", spec)
			Expect(err).To(BeNil())
			Expect(sw.Uplinks).To(Equal([]string{"Uplink 1", "Uplink 2"}))
			Expect(gw.Calls).To(Equal([]string{"CreateSwitch VDS-Core"}))
		})

		It("only updates the MTU of an existing switch", func() {
			gw.SeedSwitch("DC-01", gateway.Switch{Name: "VDS-Core", Version: "7.0.0", MTU: 1500})

			sw, err := b.EnsureSwitch(ctx, "DC-01", spec)
			Expect(err).To(BeNil())
			Expect(sw.MTU).To(Equal(int32(9000)))
			Expect(gw.Calls).To(Equal([]string{"UpdateSwitchMTU VDS-Core"}))
			Expect(gw.Switches["dc-01/vds-core"].Version).To(Equal("7.0.0"))
		})

		It("does nothing when the switch matches", func() {
			gw.SeedSwitch("DC-01", gateway.Switch{Name: "VDS-Core", MTU: 9000})
			_, err := b.EnsureSwitch(ctx, "DC-01", spec)
			Expect(err).To(BeNil())
			Expect(gw.Calls).To(BeEmpty())
		})

		It("rejects an unknown load balancing policy", func() {
			bad := spec
			bad.LoadBalancing = "RoundRobin"
			_, err := b.EnsureSwitch(ctx, "DC-01", bad)
			Expect(gateway.IsValidation(err)).To(BeTrue())
		})
	})

	Context("EnsurePortGroups", func() {
		specs := []gateway.PortGroupSpec{
			{Name: "PG-Mgmt", VLAN: 10, Type: gateway.PortGroupManagement},
			{Name: "PG-vMotion", VLAN: 20, Type: gateway.PortGroupVMotion},
		}

		BeforeEach(func() {
			gw.SeedSwitch("DC-01", gateway.Switch{Name: "VDS-Core", MTU: 9000})
		})

		It("creates only the missing port groups", func() {
			gw.Switches["dc-01/vds-core"].PortGroups = []gateway.PortGroup{{Name: "PG-Mgmt", VLAN: 10}}

			rep, err := b.EnsurePortGroups(ctx, "DC-01", "VDS-Core", specs)
			Expect(err).To(BeNil())
			Expect(rep.Succeeded).To(Equal([]string{"PG-vMotion"}))
			Expect(rep.Skipped).To(ConsistOf(HaveField("Reason", "already exists")))
			Expect(gw.Calls).To(Equal([]string{"CreatePortGroup PG-vMotion"}))
		})

		It("records a creation failure and continues", func() {
			gw.Failures["CreatePortGroup PG-Mgmt"] = errors.New("vlan conflict")

			rep, err := b.EnsurePortGroups(ctx, "DC-01", "VDS-Core", specs)
			Expect(err).To(BeNil())
			Expect(rep.Failed).To(HaveLen(1))
			Expect(rep.Succeeded).To(Equal([]string{"PG-vMotion"}))
		})

		It("fails when the switch is missing", func() {
			_, err := b.EnsurePortGroups(ctx, "DC-01", "VDS-Other", specs)
			Expect(gateway.IsNotFound(err)).To(BeTrue())
		})
	})

	Context("BindHostsToSwitch", func() {
		BeforeEach(func() {
			gw.SeedSwitch("DC-01", gateway.Switch{Name: "VDS-Core", MTU: 9000})
			gw.SeedHost("DC-01", "Cluster-01", "esx01.lab.local")
			h := gw.SeedHost("DC-01", "Cluster-01", "esx02.lab.local")
			h.Nics = []string{"vmnic0", "vmnic2"}
		})

		It("joins hosts and binds the NICs present on each host", func() {
			rep, err := b.BindHostsToSwitch(ctx, "DC-01", "VDS-Core", "Cluster-01", []string{"vmnic2", "vmnic3"})
			Expect(err).To(BeNil())

			sw := gw.Switches["dc-01/vds-core"]
			Expect(sw.Hosts).To(ConsistOf("esx01.lab.local", "esx02.lab.local"))
			Expect(sw.Bindings["esx01.lab.local"]).To(Equal([]string{"vmnic2", "vmnic3"}))
			Expect(sw.Bindings["esx02.lab.local"]).To(Equal([]string{"vmnic2"}))
			Expect(rep.Skipped).To(ConsistOf(HaveField("Name", "esx02.lab.local/vmnic3")))
		})

		It("keeps binding after a failed NIC", func() {
			gw.Failures["BindUplink esx01.lab.local/vmnic2"] = errors.New("nic busy")

			rep, err := b.BindHostsToSwitch(ctx, "DC-01", "VDS-Core", "Cluster-01", []string{"vmnic2", "vmnic3"})
			Expect(err).To(BeNil())
			Expect(rep.Failed).To(ConsistOf(HaveField("Name", "esx01.lab.local/vmnic2")))
			Expect(rep.Succeeded).To(ContainElements("esx01.lab.local/vmnic3", "esx02.lab.local/vmnic2"))
		})

		It("does not add hosts that are already members", func() {
			gw.Switches["dc-01/vds-core"].Hosts = []string{"esx01.lab.local", "esx02.lab.local"}

			_, err := b.BindHostsToSwitch(ctx, "DC-01", "VDS-Core", "Cluster-01", nil)
			Expect(err).To(BeNil())
			Expect(gw.CallsWithPrefix("AddSwitchHost")).To(BeEmpty())
		})
	})

	Context("EnsureKernelEndpoint", func() {
		var spec network.KernelEndpointSpec

		BeforeEach(func() {
			sw := gw.SeedSwitch("DC-01", gateway.Switch{Name: "VDS-Core", MTU: 9000})
			sw.PortGroups = []gateway.PortGroup{{Name: "PG-vMotion", VLAN: 20}}
			gw.SeedHost("DC-01", "Cluster-01", "esx01.lab.local")
			gw.SeedHost("DC-01", "Cluster-01", "esx02.lab.local")
			spec = network.KernelEndpointSpec{
				Purpose:   gateway.PurposeVMotion,
				PortGroup: "PG-vMotion",
				Addresses: map[string]string{
					"esx01.lab.local": "10.0.20.11",
					"esx02.lab.local": "10.0.20.12",
				},
				SubnetMask:     "255.255.255.0",
				Gateway:        "10.0.20.1",
				DedicatedStack: true,
			}
		})

		It("creates one adapter per host on the dedicated stack", func() {
			rep, err := b.EnsureKernelEndpoint(ctx, "DC-01", "Cluster-01", spec)
			Expect(err).To(BeNil())
			Expect(rep.Succeeded).To(Equal([]string{"esx01.lab.local", "esx02.lab.local"}))

			adapters := gw.Hosts["esx02.lab.local"].Adapters
			Expect(adapters).To(HaveLen(1))
			Expect(adapters[0].IP).To(Equal("10.0.20.12"))
			Expect(adapters[0].NetStack).To(Equal(gateway.VMotionNetStack))
			Expect(gw.Hosts["esx01.lab.local"].Routes).To(HaveKeyWithValue(gateway.VMotionNetStack, "10.0.20.1"))
		})

		It("skips a host that already has an adapter for the purpose regardless of its IP", func() {
			gw.Hosts["esx01.lab.local"].Adapters = []gateway.KernelAdapter{{
				Device:   "vmk1",
				IP:       "192.168.99.9",
				Purposes: []gateway.Purpose{gateway.PurposeVMotion},
			}}

			rep, err := b.EnsureKernelEndpoint(ctx, "DC-01", "Cluster-01", spec)
			Expect(err).To(BeNil())
			Expect(rep.Skipped).To(ConsistOf(HaveField("Name", "esx01.lab.local")))
			Expect(gw.CallsWithPrefix("CreateKernelAdapter")).To(Equal([]string{"CreateKernelAdapter esx02.lab.local/vmotion"}))
			Expect(gw.Hosts["esx01.lab.local"].Adapters[0].IP).To(Equal("192.168.99.9"))
		})

		It("skips hosts without a configured address", func() {
			delete(spec.Addresses, "esx02.lab.local")
			rep, err := b.EnsureKernelEndpoint(ctx, "DC-01", "Cluster-01", spec)
			Expect(err).To(BeNil())
			Expect(rep.Skipped).To(ConsistOf(HaveField("Reason", "no address configured")))
		})

		It("treats an existing default route as satisfied", func() {
			gw.Hosts["esx01.lab.local"].Routes[gateway.VMotionNetStack] = "10.0.20.254"
			rep, err := b.EnsureKernelEndpoint(ctx, "DC-01", "Cluster-01", spec)
			Expect(err).To(BeNil())
			Expect(rep.Failed).To(BeEmpty())
			Expect(gw.Hosts["esx01.lab.local"].Routes[gateway.VMotionNetStack]).To(Equal("10.0.20.254"))
		})

		It("uses the default stack for vSAN adapters", func() {
			gw.Switches["dc-01/vds-core"].PortGroups = append(gw.Switches["dc-01/vds-core"].PortGroups, gateway.PortGroup{Name: "PG-vSAN"})
			spec.Purpose = gateway.PurposeVSAN
			spec.PortGroup = "PG-vSAN"
			spec.Gateway = ""

			_, err := b.EnsureKernelEndpoint(ctx, "DC-01", "Cluster-01", spec)
			Expect(err).To(BeNil())
			Expect(gw.Hosts["esx01.lab.local"].Adapters[0].NetStack).To(Equal(gateway.DefaultNetStack))
			Expect(gw.CallsWithPrefix("AddDefaultRoute")).To(BeEmpty())
		})

		It("never writes a gateway to the default stack", func() {
			gw.Switches["dc-01/vds-core"].PortGroups = append(gw.Switches["dc-01/vds-core"].PortGroups, gateway.PortGroup{Name: "PG-vSAN"})
			spec.Purpose = gateway.PurposeVSAN
			spec.PortGroup = "PG-vSAN"
			spec.Gateway = "10.0.30.1"

			rep, err := b.EnsureKernelEndpoint(ctx, "DC-01", "Cluster-01", spec)
			Expect(err).To(BeNil())
			Expect(rep.Succeeded).To(Equal([]string{"esx01.lab.local", "esx02.lab.local"}))
			Expect(rep.Skipped).To(ConsistOf(
				HaveField("Name", "esx01.lab.local/route"),
				HaveField("Name", "esx02.lab.local/route"),
			))
			Expect(gw.CallsWithPrefix("AddDefaultRoute")).To(BeEmpty())
			Expect(gw.Hosts["esx01.lab.local"].Routes).NotTo(HaveKey(gateway.DefaultNetStack))
		})

		It("leaves the gateway alone for vMotion without a dedicated stack", func() {
			spec.DedicatedStack = false

			rep, err := b.EnsureKernelEndpoint(ctx, "DC-01", "Cluster-01", spec)
			Expect(err).To(BeNil())
			Expect(rep.Failed).To(BeEmpty())
			Expect(gw.Hosts["esx02.lab.local"].Adapters[0].NetStack).To(Equal(gateway.DefaultNetStack))
			Expect(gw.CallsWithPrefix("AddDefaultRoute")).To(BeEmpty())
		})

		It("requires a port group", func() {
			spec.PortGroup = ""
			_, err := b.EnsureKernelEndpoint(ctx, "DC-01", "Cluster-01", spec)
			Expect(gateway.IsValidation(err)).To(BeTrue())
		})
	})
})
