// Package topology converges the logical containers: datacenter, cluster
// and cluster membership of the hosts.
package topology

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ecst/vbuild/internal/gateway"
	"github.com/ecst/vbuild/internal/report"
)

// DatacentersFolder is used as parent for new datacenters when present.
const DatacentersFolder = "Datacenters"

type HostCredentials struct {
	Username string
	Password string
}

type Reconciler struct {
	gw gateway.Topology
}

func NewReconciler(gw gateway.Topology) *Reconciler {
	return &Reconciler{gw: gw}
}

// EnsureDatacenter returns the named datacenter, creating it when absent.
// An existing datacenter is never modified.
func (r *Reconciler) EnsureDatacenter(ctx context.Context, name string) (*gateway.Datacenter, error) {
	logger := zap.S().Named("topology").With("datacenter", name)

	dc, err := r.gw.FindDatacenter(ctx, name)
	if err == nil {
		logger.Info("datacenter already exists")
		return dc, nil
	}
	if !gateway.IsNotFound(err) {
		return nil, err
	}

	folder := ""
	exists, err := r.gw.FolderExists(ctx, DatacentersFolder)
	if err != nil {
		return nil, err
	}
	if exists {
		folder = DatacentersFolder
	}

	dc, err = r.gw.CreateDatacenter(ctx, name, folder)
	if err != nil {
		return nil, fmt.Errorf("failed to create datacenter %q: %w", name, err)
	}
	logger.Infow("datacenter created", "folder", folder)
	return dc, nil
}

// EnsureCluster returns the named cluster, creating it with spec when
// absent. HA, DRS and EVC are re-asserted in both cases.
func (r *Reconciler) EnsureCluster(ctx context.Context, datacenter, name string, spec gateway.ClusterSpec) (*gateway.Cluster, error) {
	logger := zap.S().Named("topology").With("datacenter", datacenter, "cluster", name)

	dc, err := r.gw.FindDatacenter(ctx, datacenter)
	if err != nil {
		return nil, err
	}

	cluster, err := r.gw.FindCluster(ctx, dc, name)
	switch {
	case err == nil:
		logger.Info("cluster already exists")
	case gateway.IsNotFound(err):
		cluster, err = r.gw.CreateCluster(ctx, dc, name, spec)
		if err != nil {
			return nil, fmt.Errorf("failed to create cluster %q: %w", name, err)
		}
		logger.Infow("cluster created", "ha", spec.HA.Enabled, "drs", spec.DRS.Enabled, "automation-level", spec.DRS.AutomationLevel)
	default:
		return nil, err
	}

	r.ApplyClusterSettings(ctx, cluster, spec)
	return cluster, nil
}

// ApplyClusterSettings pushes HA, DRS and, when enabled, EVC to the cluster.
// Each update is attempted independently and failures are only logged.
func (r *Reconciler) ApplyClusterSettings(ctx context.Context, cluster *gateway.Cluster, spec gateway.ClusterSpec) {
	logger := zap.S().Named("topology").With("cluster", cluster.Name)

	ha := spec.HA
	if ha.AdmissionControlType != gateway.AdmissionControlResourcePercentage {
		ha.CPUPercent, ha.MemoryPercent = 0, 0
	}
	if err := r.gw.UpdateClusterHA(ctx, cluster, ha); err != nil {
		logger.Warnw("failed to apply HA settings", "error", err)
	}

	if err := r.gw.UpdateClusterDRS(ctx, cluster, spec.DRS); err != nil {
		logger.Warnw("failed to apply DRS settings", "error", err)
	}

	if spec.EVC.Enabled {
		if err := r.gw.UpdateClusterEVC(ctx, cluster, spec.EVC); err != nil {
			logger.Warnw("failed to apply EVC mode", "mode", spec.EVC.Mode, "error", err)
		}
	}
}

// EnsureHosts joins every host to the cluster. Standalone hosts of the
// datacenter are moved in; hosts already in another cluster are left alone
// unless force is set.
func (r *Reconciler) EnsureHosts(ctx context.Context, datacenter, clusterName string, hosts []string, creds HostCredentials, force bool) (*report.Report, error) {
	logger := zap.S().Named("topology").With("cluster", clusterName)
	rep := report.New("hosts")

	dc, err := r.gw.FindDatacenter(ctx, datacenter)
	if err != nil {
		return rep, err
	}
	cluster, err := r.gw.FindCluster(ctx, dc, clusterName)
	if err != nil {
		return rep, err
	}

	for _, name := range hosts {
		host, err := r.gw.FindHost(ctx, dc, name)
		switch {
		case err == nil && strings.EqualFold(host.Cluster, cluster.Name):
			rep.Skip(name, "already member")
			continue
		case err == nil && host.Cluster != "" && !force:
			reason := fmt.Sprintf("member of cluster %s", host.Cluster)
			logger.Warnw("host belongs elsewhere, use force to move it", "host", name, "reason", reason)
			rep.Skip(name, reason)
			continue
		case err == nil:
			if err := r.gw.MoveHost(ctx, cluster, host); err != nil {
				logger.Warnw("failed to move host", "host", name, "error", err)
				rep.Fail(name, err)
				continue
			}
			logger.Infow("host moved", "host", name, "from", host.Cluster)
			rep.Succeed(name)
			continue
		case !gateway.IsNotFound(err):
			rep.Fail(name, err)
			continue
		}

		_, err = r.gw.AddHost(ctx, cluster, gateway.HostConnectSpec{
			Name:     name,
			Username: creds.Username,
			Password: creds.Password,
			Force:    force,
		})
		if err != nil {
			logger.Warnw("failed to add host", "host", name, "error", err)
			rep.Fail(name, err)
			continue
		}
		logger.Infow("host added", "host", name)
		rep.Succeed(name)
	}

	return rep, nil
}
