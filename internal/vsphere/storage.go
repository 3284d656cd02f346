package vsphere

import (
	"context"

	"github.com/pkg/errors"
	"github.com/vmware/govmomi/object"
	pbmtypes "github.com/vmware/govmomi/pbm/types"
	"github.com/vmware/govmomi/vim25/methods"
	"github.com/vmware/govmomi/vim25/mo"
	"github.com/vmware/govmomi/vim25/types"
	"github.com/vmware/govmomi/vsan"
	vsantypes "github.com/vmware/govmomi/vsan/types"

	"github.com/ecst/vbuild/internal/gateway"
)

const (
	vsanNamespace           = "VSAN"
	capFailuresToTolerate   = "hostFailuresToTolerate"
	capReplicaPreference    = "replicaPreference"
	replicaMirroring        = "RAID-1 (Mirroring) - Performance"
	replicaErasureCoding    = "RAID-5/6 (Erasure Coding) - Capacity"
	raidMirroring           = "RAID-1"
	raidErasureCoding       = "RAID-5/6"
	storageResourceType     = string(pbmtypes.PbmProfileResourceTypeEnumSTORAGE)
	requirementCategory     = string(pbmtypes.PbmProfileCategoryEnumREQUIREMENT)
	vsanSubProfileName      = "VSAN"
	diskResultStateInUse    = string(types.VsanHostDiskResultStateInUse)
	diskResultStateEligible = string(types.VsanHostDiskResultStateEligible)
)

var replicaPreferences = map[string]string{
	raidMirroring:     replicaMirroring,
	"RAID-5":          replicaErasureCoding,
	"RAID-6":          replicaErasureCoding,
	raidErasureCoding: replicaErasureCoding,
}

// EnableVsan turns vSAN on with automatic claiming off; disk groups are
// claimed explicitly afterwards.
func (g *Gateway) EnableVsan(ctx context.Context, cluster *gateway.Cluster, spec gateway.VsanSpec) error {
	err := g.reconfigureCluster(ctx, cluster, &types.ClusterConfigSpecEx{
		VsanConfig: &types.VsanClusterConfigInfo{
			Enabled: types.NewBool(true),
			DefaultConfig: &types.VsanClusterConfigInfoHostDefaultInfo{
				AutoClaimStorage: types.NewBool(false),
			},
		},
	})
	if err != nil {
		return err
	}
	if !spec.Deduplication && !spec.Compression {
		return nil
	}

	vc, err := vsan.NewClient(ctx, g.client)
	if err != nil {
		return errors.Wrap(err, "failed to create vSAN client")
	}
	task, err := vc.VsanClusterReconfig(ctx, moref(cluster.Ref), vsantypes.VimVsanReconfigSpec{
		Modify: true,
		DataEfficiencyConfig: &vsantypes.VsanDataEfficiencyConfig{
			DedupEnabled: spec.Deduplication,
			// deduplication implies compression
			CompressionEnabled: types.NewBool(spec.Compression || spec.Deduplication),
		},
	})
	if err != nil {
		return translate(err, "cluster", cluster.Name, "configure data efficiency on")
	}
	return translate(task.WaitEx(ctx), "cluster", cluster.Name, "configure data efficiency on")
}

func (g *Gateway) vsanSystem(ctx context.Context, host *gateway.Host) (*object.HostVsanSystem, error) {
	vs, err := g.hostSystem(host).ConfigManager().VsanSystem(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve vSAN system of %q", host.Name)
	}
	return vs, nil
}

func storageDevice(disk types.HostScsiDisk, state gateway.DeviceState) gateway.StorageDevice {
	return gateway.StorageDevice{
		CanonicalName: disk.CanonicalName,
		CapacityBytes: int64(disk.Capacity.BlockSize) * disk.Capacity.Block,
		SSD:           disk.Ssd != nil && *disk.Ssd,
		State:         state,
	}
}

func (g *Gateway) diskMappings(ctx context.Context, vs *object.HostVsanSystem) ([]types.VsanHostDiskMapping, error) {
	var m mo.HostVsanSystem
	if err := vs.Properties(ctx, vs.Reference(), []string{"config"}, &m); err != nil {
		return nil, errors.Wrap(err, "failed to read vSAN configuration")
	}
	if m.Config.StorageInfo == nil {
		return nil, nil
	}
	return m.Config.StorageInfo.DiskMapping, nil
}

func (g *Gateway) queryDisks(ctx context.Context, vs *object.HostVsanSystem) ([]types.VsanHostDiskResult, error) {
	res, err := methods.QueryDisksForVsan(ctx, g.client, &types.QueryDisksForVsan{This: vs.Reference()})
	if err != nil {
		return nil, errors.Wrap(err, "failed to query vSAN disks")
	}
	return res.Returnval, nil
}

func (g *Gateway) ListDevices(ctx context.Context, host *gateway.Host) ([]gateway.StorageDevice, error) {
	vs, err := g.vsanSystem(ctx, host)
	if err != nil {
		return nil, err
	}
	results, err := g.queryDisks(ctx, vs)
	if err != nil {
		return nil, errors.Wrapf(err, "host %q", host.Name)
	}
	mappings, err := g.diskMappings(ctx, vs)
	if err != nil {
		return nil, errors.Wrapf(err, "host %q", host.Name)
	}

	roles := make(map[string]gateway.DeviceState)
	for _, m := range mappings {
		roles[m.Ssd.CanonicalName] = gateway.DeviceCache
		for _, d := range m.NonSsd {
			roles[d.CanonicalName] = gateway.DeviceCapacity
		}
	}

	devices := make([]gateway.StorageDevice, 0, len(results))
	for _, r := range results {
		state := gateway.DeviceIneligible
		switch r.State {
		case diskResultStateEligible:
			state = gateway.DeviceEligible
		case diskResultStateInUse:
			state = gateway.DeviceCapacity
			if role, ok := roles[r.Disk.CanonicalName]; ok {
				state = role
			}
		}
		devices = append(devices, storageDevice(r.Disk, state))
	}
	return devices, nil
}

func (g *Gateway) ListDiskGroups(ctx context.Context, host *gateway.Host) ([]gateway.DiskGroup, error) {
	vs, err := g.vsanSystem(ctx, host)
	if err != nil {
		return nil, err
	}
	mappings, err := g.diskMappings(ctx, vs)
	if err != nil {
		return nil, errors.Wrapf(err, "host %q", host.Name)
	}
	groups := make([]gateway.DiskGroup, 0, len(mappings))
	for _, m := range mappings {
		dg := gateway.DiskGroup{Host: host.Name, Cache: storageDevice(m.Ssd, gateway.DeviceCache)}
		for _, d := range m.NonSsd {
			dg.Capacity = append(dg.Capacity, storageDevice(d, gateway.DeviceCapacity))
		}
		groups = append(groups, dg)
	}
	return groups, nil
}

func (g *Gateway) CreateDiskGroup(ctx context.Context, host *gateway.Host, cache gateway.StorageDevice, capacity []gateway.StorageDevice) error {
	vs, err := g.vsanSystem(ctx, host)
	if err != nil {
		return err
	}
	results, err := g.queryDisks(ctx, vs)
	if err != nil {
		return errors.Wrapf(err, "host %q", host.Name)
	}
	disks := make(map[string]types.HostScsiDisk, len(results))
	for _, r := range results {
		disks[r.Disk.CanonicalName] = r.Disk
	}

	ssd, ok := disks[cache.CanonicalName]
	if !ok {
		return gateway.NewErrNotFound("device", cache.CanonicalName)
	}
	mapping := types.VsanHostDiskMapping{Ssd: ssd}
	for _, c := range capacity {
		d, ok := disks[c.CanonicalName]
		if !ok {
			return gateway.NewErrNotFound("device", c.CanonicalName)
		}
		mapping.NonSsd = append(mapping.NonSsd, d)
	}

	res, err := methods.InitializeDisks_Task(ctx, g.client, &types.InitializeDisks_Task{
		This:    vs.Reference(),
		Mapping: []types.VsanHostDiskMapping{mapping},
	})
	if err != nil {
		return translate(err, "disk group", host.Name+"/"+cache.CanonicalName, "create")
	}
	return translate(object.NewTask(g.client, res.Returnval).WaitEx(ctx), "disk group", host.Name+"/"+cache.CanonicalName, "create")
}

func (g *Gateway) FindStoragePolicy(ctx context.Context, name string) (*gateway.StoragePolicy, error) {
	c, err := g.pbmClient(ctx)
	if err != nil {
		return nil, err
	}
	pm, err := c.ProfileMap(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list storage policies")
	}
	for _, p := range pm.Profile {
		cp, ok := p.(*pbmtypes.PbmCapabilityProfile)
		if !ok || cp.Name != name {
			continue
		}
		return storagePolicy(cp), nil
	}
	return nil, gateway.NewErrStoragePolicyNotFound(name)
}

func storagePolicy(cp *pbmtypes.PbmCapabilityProfile) *gateway.StoragePolicy {
	policy := &gateway.StoragePolicy{Name: cp.Name, ID: cp.ProfileId.UniqueId}
	constraints, ok := cp.Constraints.(*pbmtypes.PbmCapabilitySubProfileConstraints)
	if !ok {
		return policy
	}
	for _, sub := range constraints.SubProfiles {
		for _, capability := range sub.Capability {
			for _, c := range capability.Constraint {
				for _, prop := range c.PropertyInstance {
					switch prop.Id {
					case capFailuresToTolerate:
						if v, ok := prop.Value.(int32); ok {
							policy.FailuresToTolerate = v
						}
					case capReplicaPreference:
						if v, ok := prop.Value.(string); ok {
							policy.RAIDType = raidMirroring
							if v == replicaErasureCoding {
								policy.RAIDType = raidErasureCoding
							}
						}
					}
				}
			}
		}
	}
	return policy
}

func capability(id string, value any) pbmtypes.PbmCapabilityInstance {
	return pbmtypes.PbmCapabilityInstance{
		Id: pbmtypes.PbmCapabilityMetadataUniqueId{Namespace: vsanNamespace, Id: id},
		Constraint: []pbmtypes.PbmCapabilityConstraintInstance{{
			PropertyInstance: []pbmtypes.PbmCapabilityPropertyInstance{{Id: id, Value: value}},
		}},
	}
}

func (g *Gateway) CreateStoragePolicy(ctx context.Context, spec gateway.StoragePolicySpec) (*gateway.StoragePolicy, error) {
	c, err := g.pbmClient(ctx)
	if err != nil {
		return nil, err
	}

	caps := []pbmtypes.PbmCapabilityInstance{capability(capFailuresToTolerate, spec.FailuresToTolerate)}
	if spec.RAIDType != "" {
		pref, ok := replicaPreferences[spec.RAIDType]
		if !ok {
			return nil, gateway.NewErrValidation("unknown RAID type %q", spec.RAIDType)
		}
		caps = append(caps, capability(capReplicaPreference, pref))
	}

	id, err := c.CreateProfile(ctx, pbmtypes.PbmCapabilityProfileCreateSpec{
		Name:         spec.Name,
		ResourceType: pbmtypes.PbmProfileResourceType{ResourceType: storageResourceType},
		Category:     requirementCategory,
		Constraints: &pbmtypes.PbmCapabilitySubProfileConstraints{
			SubProfiles: []pbmtypes.PbmCapabilitySubProfile{{
				Name:       vsanSubProfileName,
				Capability: caps,
			}},
		},
	})
	if err != nil {
		return nil, translate(err, "storage policy", spec.Name, "create")
	}
	return &gateway.StoragePolicy{
		Name:               spec.Name,
		ID:                 id.UniqueId,
		FailuresToTolerate: spec.FailuresToTolerate,
		RAIDType:           spec.RAIDType,
	}, nil
}
