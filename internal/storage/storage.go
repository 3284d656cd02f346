// Package storage discovers local devices, claims them into vSAN disk
// groups and manages the cluster storage policy.
package storage

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ecst/vbuild/internal/gateway"
	"github.com/ecst/vbuild/internal/report"
)

const (
	ClaimAutomatic = "Automatic"
	ClaimManual    = "Manual"

	StatusEligible = "Eligible"
	StatusCache    = "Cache (In Use)"
	StatusCapacity = "Capacity (In Use)"
)

type InventoryRow struct {
	Host string `json:"host"`
	Classification
	Status string `json:"status"`
}

type Engine struct {
	gw gateway.Storage
}

func NewEngine(gw gateway.Storage) *Engine {
	return &Engine{gw: gw}
}

func (e *Engine) clusterHosts(ctx context.Context, datacenter, clusterName string) (*gateway.Cluster, []gateway.Host, error) {
	dc, err := e.gw.FindDatacenter(ctx, datacenter)
	if err != nil {
		return nil, nil, err
	}
	cluster, err := e.gw.FindCluster(ctx, dc, clusterName)
	if err != nil {
		return nil, nil, err
	}
	hosts, err := e.gw.ListHosts(ctx, cluster)
	if err != nil {
		return nil, nil, err
	}
	return cluster, hosts, nil
}

// Inventory lists the eligible and claimed devices of every cluster host.
// Ineligible devices are left out.
func (e *Engine) Inventory(ctx context.Context, datacenter, clusterName string) ([]InventoryRow, error) {
	_, hosts, err := e.clusterHosts(ctx, datacenter, clusterName)
	if err != nil {
		return nil, err
	}

	var rows []InventoryRow
	for i := range hosts {
		devices, err := e.gw.ListDevices(ctx, &hosts[i])
		if err != nil {
			return nil, fmt.Errorf("failed to list devices of %s: %w", hosts[i].Name, err)
		}
		for _, d := range devices {
			status := ""
			switch d.State {
			case gateway.DeviceEligible:
				status = StatusEligible
			case gateway.DeviceCache:
				status = StatusCache
			case gateway.DeviceCapacity:
				status = StatusCapacity
			default:
				continue
			}
			rows = append(rows, InventoryRow{Host: hosts[i].Name, Classification: Classify(d), Status: status})
		}
	}
	return rows, nil
}

func eligibleDevices(devices []gateway.StorageDevice) []gateway.StorageDevice {
	var out []gateway.StorageDevice
	for _, d := range devices {
		if d.State == gateway.DeviceEligible {
			out = append(out, d)
		}
	}
	return out
}

// AutoDiscoverDiskGroup builds one disk group out of the eligible devices.
// It never returns an error; failures are logged and reported as false.
func (e *Engine) AutoDiscoverDiskGroup(ctx context.Context, host *gateway.Host, eligible []gateway.StorageDevice) bool {
	logger := zap.S().Named("storage").With("host", host.Name)

	cache, capacity, err := SelectDiskGroup(eligible)
	if err != nil {
		logger.Warnw("cannot build a disk group", "error", err)
		return false
	}

	names := make([]string, 0, len(capacity))
	for _, d := range capacity {
		names = append(names, d.CanonicalName)
	}
	logger.Infow("creating disk group", "cache", cache.String(), "capacity", names)

	if err := e.gw.CreateDiskGroup(ctx, host, cache, capacity); err != nil {
		logger.Errorw("failed to create disk group", "error", err)
		return false
	}
	return true
}

// ConfigureDiskGroups gives every cluster host without a disk group one,
// unless claiming is manual.
func (e *Engine) ConfigureDiskGroups(ctx context.Context, datacenter, clusterName, mode string) (*report.Report, error) {
	logger := zap.S().Named("storage").With("cluster", clusterName)
	rep := report.New("disk-groups")

	_, hosts, err := e.clusterHosts(ctx, datacenter, clusterName)
	if err != nil {
		return rep, err
	}

	for i := range hosts {
		host := &hosts[i]

		groups, err := e.gw.ListDiskGroups(ctx, host)
		if err != nil {
			rep.Fail(host.Name, err)
			continue
		}
		if len(groups) > 0 {
			logger.Infow("host already has disk groups", "host", host.Name, "count", len(groups))
			rep.Skip(host.Name, fmt.Sprintf("%d disk group(s) present", len(groups)))
			continue
		}

		devices, err := e.gw.ListDevices(ctx, host)
		if err != nil {
			rep.Fail(host.Name, err)
			continue
		}
		eligible := eligibleDevices(devices)
		if len(eligible) == 0 {
			logger.Warnw("no eligible devices", "host", host.Name)
			rep.Skip(host.Name, "no eligible devices")
			continue
		}

		if !strings.EqualFold(mode, ClaimAutomatic) {
			logger.Infow("manual claim mode, use claim-disks to build the disk group", "host", host.Name, "eligible", len(eligible))
			rep.Skip(host.Name, "manual claim mode")
			continue
		}

		if !e.AutoDiscoverDiskGroup(ctx, host, eligible) {
			rep.Fail(host.Name, fmt.Errorf("automatic disk group creation failed"))
			continue
		}
		rep.Succeed(host.Name)
	}
	return rep, nil
}

// ClaimDisks creates a disk group from explicitly named devices on a
// single host.
func (e *Engine) ClaimDisks(ctx context.Context, datacenter, clusterName, hostName, cacheName string, capacityNames []string) error {
	if cacheName == "" || len(capacityNames) == 0 {
		return gateway.NewErrValidation("a cache device and at least one capacity device are required")
	}

	_, hosts, err := e.clusterHosts(ctx, datacenter, clusterName)
	if err != nil {
		return err
	}
	var host *gateway.Host
	for i := range hosts {
		if strings.EqualFold(hosts[i].Name, hostName) {
			host = &hosts[i]
		}
	}
	if host == nil {
		return gateway.NewErrHostNotFound(hostName)
	}

	devices, err := e.gw.ListDevices(ctx, host)
	if err != nil {
		return err
	}
	byName := map[string]gateway.StorageDevice{}
	for _, d := range eligibleDevices(devices) {
		byName[d.CanonicalName] = d
	}

	cache, ok := byName[cacheName]
	if !ok {
		return gateway.NewErrValidation("device %s is not eligible on %s", cacheName, hostName)
	}
	if !cache.SSD {
		return gateway.NewErrValidation("cache device %s is not an SSD", cacheName)
	}
	capacity := make([]gateway.StorageDevice, 0, len(capacityNames))
	for _, name := range capacityNames {
		d, ok := byName[name]
		if !ok || name == cacheName {
			return gateway.NewErrValidation("device %s is not eligible for capacity on %s", name, hostName)
		}
		capacity = append(capacity, d)
	}

	if err := e.gw.CreateDiskGroup(ctx, host, cache, capacity); err != nil {
		return fmt.Errorf("failed to create disk group on %s: %w", hostName, err)
	}
	zap.S().Named("storage").Infow("disk group created", "host", hostName, "cache", cacheName, "capacity", capacityNames)
	return nil
}

// EnableVsan turns vSAN on for the cluster without automatic claiming.
func (e *Engine) EnableVsan(ctx context.Context, datacenter, clusterName string, spec gateway.VsanSpec) error {
	dc, err := e.gw.FindDatacenter(ctx, datacenter)
	if err != nil {
		return err
	}
	cluster, err := e.gw.FindCluster(ctx, dc, clusterName)
	if err != nil {
		return err
	}
	if err := e.gw.EnableVsan(ctx, cluster, spec); err != nil {
		return fmt.Errorf("failed to enable vSAN on %s: %w", clusterName, err)
	}
	zap.S().Named("storage").Infow("vSAN enabled", "cluster", clusterName, "deduplication", spec.Deduplication, "compression", spec.Compression)
	return nil
}

// CreateStoragePolicy returns the policy with the given name, creating it
// when absent. created reports whether a new policy was made.
func (e *Engine) CreateStoragePolicy(ctx context.Context, spec gateway.StoragePolicySpec) (policy *gateway.StoragePolicy, created bool, err error) {
	logger := zap.S().Named("storage").With("policy", spec.Name)

	if spec.Name == "" {
		return nil, false, gateway.NewErrValidation("storage policy name is required")
	}

	policy, err = e.gw.FindStoragePolicy(ctx, spec.Name)
	if err == nil {
		logger.Info("storage policy already exists")
		return policy, false, nil
	}
	if !gateway.IsNotFound(err) {
		return nil, false, err
	}

	policy, err = e.gw.CreateStoragePolicy(ctx, spec)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create storage policy %q: %w", spec.Name, err)
	}
	logger.Infow("storage policy created", "ftt", spec.FailuresToTolerate, "raid", spec.RAIDType)
	return policy, true, nil
}
