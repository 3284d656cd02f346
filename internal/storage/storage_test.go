package storage_test

import (
	"context"
	"errors"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ecst/vbuild/internal/gateway"
	"github.com/ecst/vbuild/internal/gateway/fake"
	"github.com/ecst/vbuild/internal/storage"
)

func TestStorage(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Storage Suite")
}

const gb = int64(1) << 30

func disk(name string, size int64, ssd bool) gateway.StorageDevice {
	return gateway.StorageDevice{CanonicalName: name, CapacityBytes: size * gb, SSD: ssd, State: gateway.DeviceEligible}
}

var _ = Describe("Engine", func() {
	var (
		ctx context.Context
		gw  *fake.Gateway
		e   *storage.Engine
	)

	BeforeEach(func() {
		ctx = context.Background()
		gw = fake.NewGateway()
		gw.SeedDatacenter("DC-01")
		gw.SeedCluster("DC-01", "Cluster-01")
		e = storage.NewEngine(gw)
	})

	Context("AutoDiscoverDiskGroup", func() {
		var host *gateway.Host

		BeforeEach(func() {
			host = &gw.SeedHost("DC-01", "Cluster-01", "esx01.lab.local").Host
		})

		It("creates an all-flash group with the smallest SSD as cache", func() {
			ok := e.AutoDiscoverDiskGroup(ctx, host, []gateway.StorageDevice{
				disk("naa.400", 400, true), disk("naa.800", 800, true), disk("naa.1200", 1200, true),
			})
			Expect(ok).To(BeTrue())
			groups := gw.Hosts["esx01.lab.local"].DiskGroups
			Expect(groups).To(HaveLen(1))
			Expect(groups[0].Cache.CanonicalName).To(Equal("naa.400"))
			Expect(groups[0].Capacity).To(HaveLen(2))
		})

		It("refuses an all-flash group with a single SSD", func() {
			Expect(e.AutoDiscoverDiskGroup(ctx, host, []gateway.StorageDevice{disk("naa.400", 400, true)})).To(BeFalse())
			Expect(gw.CallsWithPrefix("CreateDiskGroup")).To(BeEmpty())
		})

		It("creates a hybrid group", func() {
			ok := e.AutoDiscoverDiskGroup(ctx, host, []gateway.StorageDevice{
				disk("naa.ssd", 400, true), disk("naa.hdd1", 1800, false), disk("naa.hdd2", 1800, false),
			})
			Expect(ok).To(BeTrue())
			group := gw.Hosts["esx01.lab.local"].DiskGroups[0]
			Expect(group.Cache.CanonicalName).To(Equal("naa.ssd"))
			Expect(group.Capacity).To(HaveLen(2))
		})

		It("refuses a hybrid group without SSD", func() {
			Expect(e.AutoDiscoverDiskGroup(ctx, host, []gateway.StorageDevice{disk("naa.hdd1", 1800, false)})).To(BeFalse())
		})

		It("reports a creation failure as false", func() {
			gw.Failures["CreateDiskGroup esx01.lab.local"] = errors.New("disk in use")
			Expect(e.AutoDiscoverDiskGroup(ctx, host, []gateway.StorageDevice{disk("a", 400, true), disk("b", 800, true)})).To(BeFalse())
		})
	})

	Context("ConfigureDiskGroups", func() {
		BeforeEach(func() {
			h1 := gw.SeedHost("DC-01", "Cluster-01", "esx01.lab.local")
			h1.Devices = []gateway.StorageDevice{disk("naa.1", 400, true), disk("naa.2", 800, true)}
			h2 := gw.SeedHost("DC-01", "Cluster-01", "esx02.lab.local")
			h2.Devices = []gateway.StorageDevice{disk("naa.3", 400, true), disk("naa.4", 1800, false)}
			h2.DiskGroups = []gateway.DiskGroup{{Host: "esx02.lab.local"}}
			gw.SeedHost("DC-01", "Cluster-01", "esx03.lab.local")
		})

		It("short-circuits hosts with an existing disk group", func() {
			rep, err := e.ConfigureDiskGroups(ctx, "DC-01", "Cluster-01", storage.ClaimAutomatic)
			Expect(err).To(BeNil())
			Expect(rep.Succeeded).To(Equal([]string{"esx01.lab.local"}))
			Expect(rep.Skipped).To(ConsistOf(
				HaveField("Name", "esx02.lab.local"),
				skippedItem("esx03.lab.local", "no eligible devices"),
			))
			Expect(gw.CallsWithPrefix("CreateDiskGroup")).To(Equal([]string{"CreateDiskGroup esx01.lab.local"}))
		})

		It("is idempotent", func() {
			_, err := e.ConfigureDiskGroups(ctx, "DC-01", "Cluster-01", storage.ClaimAutomatic)
			Expect(err).To(BeNil())
			rep, err := e.ConfigureDiskGroups(ctx, "DC-01", "Cluster-01", storage.ClaimAutomatic)
			Expect(err).To(BeNil())
			Expect(rep.Succeeded).To(BeEmpty())
			Expect(gw.CallsWithPrefix("CreateDiskGroup")).To(HaveLen(1))
		})

		It("only logs guidance in manual mode", func() {
			rep, err := e.ConfigureDiskGroups(ctx, "DC-01", "Cluster-01", storage.ClaimManual)
			Expect(err).To(BeNil())
			Expect(rep.Skipped).To(ContainElement(skippedItem("esx01.lab.local", "manual claim mode")))
			Expect(gw.CallsWithPrefix("CreateDiskGroup")).To(BeEmpty())
		})

		It("marks a host failed when discovery fails", func() {
			gw.Hosts["esx01.lab.local"].Devices = []gateway.StorageDevice{disk("naa.1", 400, true)}
			rep, err := e.ConfigureDiskGroups(ctx, "DC-01", "Cluster-01", storage.ClaimAutomatic)
			Expect(err).To(BeNil())
			Expect(rep.Failed).To(ConsistOf(HaveField("Name", "esx01.lab.local")))
		})
	})

	Context("Inventory", func() {
		It("reports eligible and claimed devices", func() {
			h := gw.SeedHost("DC-01", "Cluster-01", "esx01.lab.local")
			h.Devices = []gateway.StorageDevice{
				disk("naa.1", 400, true),
				{CanonicalName: "naa.2", CapacityBytes: 800 * gb, SSD: true, State: gateway.DeviceCache},
				{CanonicalName: "naa.3", CapacityBytes: 1800 * gb, State: gateway.DeviceCapacity},
				{CanonicalName: "mpx.boot", CapacityBytes: 32 * gb, State: gateway.DeviceIneligible},
			}

			rows, err := e.Inventory(ctx, "DC-01", "Cluster-01")
			Expect(err).To(BeNil())
			Expect(rows).To(HaveLen(3))
			Expect(rows[0].Status).To(Equal(storage.StatusEligible))
			Expect(rows[1].Status).To(Equal(storage.StatusCache))
			Expect(rows[2].Status).To(Equal(storage.StatusCapacity))
			Expect(rows[2].Media).To(Equal(storage.MediaHDD))
			Expect(gw.Calls).To(BeEmpty())
		})
	})

	Context("ClaimDisks", func() {
		BeforeEach(func() {
			h := gw.SeedHost("DC-01", "Cluster-01", "esx01.lab.local")
			h.Devices = []gateway.StorageDevice{disk("naa.ssd", 400, true), disk("naa.hdd", 1800, false)}
		})

		It("creates the requested disk group", func() {
			err := e.ClaimDisks(ctx, "DC-01", "Cluster-01", "esx01.lab.local", "naa.ssd", []string{"naa.hdd"})
			Expect(err).To(BeNil())
			Expect(gw.Hosts["esx01.lab.local"].Devices[0].State).To(Equal(gateway.DeviceCache))
		})

		It("rejects a rotational cache device", func() {
			err := e.ClaimDisks(ctx, "DC-01", "Cluster-01", "esx01.lab.local", "naa.hdd", []string{"naa.ssd"})
			Expect(gateway.IsValidation(err)).To(BeTrue())
		})

		It("rejects unknown devices", func() {
			err := e.ClaimDisks(ctx, "DC-01", "Cluster-01", "esx01.lab.local", "naa.ssd", []string{"naa.missing"})
			Expect(gateway.IsValidation(err)).To(BeTrue())
		})

		It("rejects hosts outside the cluster", func() {
			err := e.ClaimDisks(ctx, "DC-01", "Cluster-01", "esx09.lab.local", "naa.ssd", []string{"naa.hdd"})
			Expect(gateway.IsNotFound(err)).To(BeTrue())
		})
	})

	Context("EnableVsan", func() {
		It("enables vSAN with the data efficiency settings", func() {
			err := e.EnableVsan(ctx, "DC-01", "Cluster-01", gateway.VsanSpec{Deduplication: true, Compression: true})
			Expect(err).To(BeNil())
			Expect(gw.Clusters["dc-01/cluster-01"].Vsan).To(Equal(&gateway.VsanSpec{Deduplication: true, Compression: true}))
		})
	})

	Context("CreateStoragePolicy", func() {
		spec := gateway.StoragePolicySpec{Name: "vSAN-FTT1", FailuresToTolerate: 1, RAIDType: "RAID-1"}

		It("creates the policy once", func() {
			p, created, err := e.CreateStoragePolicy(ctx, spec)
			Expect(err).To(BeNil())
			Expect(created).To(BeTrue())
			Expect(p.FailuresToTolerate).To(Equal(int32(1)))

			again, created, err := e.CreateStoragePolicy(ctx, gateway.StoragePolicySpec{Name: "vSAN-FTT1", FailuresToTolerate: 2})
			Expect(err).To(BeNil())
			Expect(created).To(BeFalse())
			Expect(again.ID).To(Equal(p.ID))
			Expect(again.FailuresToTolerate).To(Equal(int32(1)))
			Expect(gw.CallsWithPrefix("CreateStoragePolicy")).To(HaveLen(1))
		})

		It("requires a name", func() {
			_, _, err := e.CreateStoragePolicy(ctx, gateway.StoragePolicySpec{})
			Expect(gateway.IsValidation(err)).To(BeTrue())
		})
	})
})

func skippedItem(name, reason string) any {
	return And(HaveField("Name", name), HaveField("Reason", reason))
}
