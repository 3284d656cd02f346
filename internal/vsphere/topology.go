package vsphere

import (
	"context"

	"github.com/pkg/errors"
	"github.com/vmware/govmomi/fault"
	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/vim25/methods"
	"github.com/vmware/govmomi/vim25/types"
	"go.uber.org/zap"

	"github.com/ecst/vbuild/internal/gateway"
)

var drsBehaviors = map[gateway.AutomationLevel]types.DrsBehavior{
	gateway.AutomationManual:             types.DrsBehaviorManual,
	gateway.AutomationPartiallyAutomated: types.DrsBehaviorPartiallyAutomated,
	gateway.AutomationFullyAutomated:     types.DrsBehaviorFullyAutomated,
}

func dasConfig(spec gateway.HASpec) *types.ClusterDasConfigInfo {
	cfg := &types.ClusterDasConfigInfo{Enabled: types.NewBool(spec.Enabled)}
	switch spec.AdmissionControlType {
	case gateway.AdmissionControlResourcePercentage:
		cfg.AdmissionControlEnabled = types.NewBool(true)
		cfg.AdmissionControlPolicy = &types.ClusterFailoverResourcesAdmissionControlPolicy{
			CpuFailoverResourcesPercent:    spec.CPUPercent,
			MemoryFailoverResourcesPercent: spec.MemoryPercent,
		}
	case gateway.AdmissionControlSlotPolicy:
		cfg.AdmissionControlEnabled = types.NewBool(true)
		cfg.AdmissionControlPolicy = &types.ClusterFailoverLevelAdmissionControlPolicy{FailoverLevel: 1}
	case gateway.AdmissionControlDisabled:
		cfg.AdmissionControlEnabled = types.NewBool(false)
	}
	return cfg
}

func drsConfig(spec gateway.DRSSpec) *types.ClusterDrsConfigInfo {
	cfg := &types.ClusterDrsConfigInfo{Enabled: types.NewBool(spec.Enabled)}
	if b, ok := drsBehaviors[spec.AutomationLevel]; ok {
		cfg.DefaultVmBehavior = b
	}
	return cfg
}

// FolderExists looks only at the direct children of the root folder.
func (g *Gateway) FolderExists(ctx context.Context, name string) (bool, error) {
	children, err := object.NewRootFolder(g.client).Children(ctx)
	if err != nil {
		return false, errors.Wrap(err, "failed to list root folder")
	}
	var folders []types.ManagedObjectReference
	for _, c := range children {
		if c.Reference().Type == "Folder" {
			folders = append(folders, c.Reference())
		}
	}
	names, err := g.names(ctx, folders)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

func (g *Gateway) CreateDatacenter(ctx context.Context, name, folder string) (*gateway.Datacenter, error) {
	parent := object.NewRootFolder(g.client)
	if folder != "" {
		ref, err := g.findByName(ctx, g.client.ServiceContent.RootFolder, "Folder", folder)
		if err != nil {
			return nil, err
		}
		if ref == nil {
			return nil, gateway.NewErrNotFound("folder", folder)
		}
		parent = object.NewFolder(g.client, *ref)
	}

	dc, err := parent.CreateDatacenter(ctx, name)
	if err != nil {
		return nil, translate(err, "datacenter", name, "create")
	}
	return &gateway.Datacenter{Name: name, Ref: dc.Reference().String()}, nil
}

func (g *Gateway) CreateCluster(ctx context.Context, dc *gateway.Datacenter, name string, spec gateway.ClusterSpec) (*gateway.Cluster, error) {
	folders, err := object.NewDatacenter(g.client, moref(dc.Ref)).Folders(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve folders of datacenter %q", dc.Name)
	}
	cluster, err := folders.HostFolder.CreateCluster(ctx, name, types.ClusterConfigSpecEx{
		DasConfig: dasConfig(spec.HA),
		DrsConfig: drsConfig(spec.DRS),
	})
	if err != nil {
		return nil, translate(err, "cluster", name, "create")
	}
	return &gateway.Cluster{Name: name, Datacenter: dc.Name, Ref: cluster.Reference().String()}, nil
}

func (g *Gateway) reconfigureCluster(ctx context.Context, cluster *gateway.Cluster, spec *types.ClusterConfigSpecEx) error {
	task, err := object.NewClusterComputeResource(g.client, moref(cluster.Ref)).Reconfigure(ctx, spec, true)
	if err != nil {
		return translate(err, "cluster", cluster.Name, "reconfigure")
	}
	return translate(task.WaitEx(ctx), "cluster", cluster.Name, "reconfigure")
}

func (g *Gateway) UpdateClusterHA(ctx context.Context, cluster *gateway.Cluster, spec gateway.HASpec) error {
	return g.reconfigureCluster(ctx, cluster, &types.ClusterConfigSpecEx{DasConfig: dasConfig(spec)})
}

func (g *Gateway) UpdateClusterDRS(ctx context.Context, cluster *gateway.Cluster, spec gateway.DRSSpec) error {
	return g.reconfigureCluster(ctx, cluster, &types.ClusterConfigSpecEx{DrsConfig: drsConfig(spec)})
}

func (g *Gateway) UpdateClusterEVC(ctx context.Context, cluster *gateway.Cluster, spec gateway.EVCSpec) error {
	res, err := methods.EvcManager(ctx, g.client, &types.EvcManager{This: moref(cluster.Ref)})
	if err != nil {
		return translate(err, "cluster", cluster.Name, "resolve EVC manager of")
	}
	if res.Returnval == nil {
		return gateway.NewErrUnsupported("EVC on cluster", cluster.Name)
	}

	var taskRef types.ManagedObjectReference
	if spec.Enabled {
		r, err := methods.ConfigureEvcMode_Task(ctx, g.client, &types.ConfigureEvcMode_Task{
			This:       *res.Returnval,
			EvcModeKey: spec.Mode,
		})
		if err != nil {
			return translate(err, "cluster", cluster.Name, "configure EVC on")
		}
		taskRef = r.Returnval
	} else {
		r, err := methods.DisableEvcMode_Task(ctx, g.client, &types.DisableEvcMode_Task{This: *res.Returnval})
		if err != nil {
			return translate(err, "cluster", cluster.Name, "disable EVC on")
		}
		taskRef = r.Returnval
	}
	return translate(object.NewTask(g.client, taskRef).WaitEx(ctx), "cluster", cluster.Name, "configure EVC on")
}

// AddHost joins a host to the cluster. An untrusted certificate is
// accepted by retrying with the thumbprint the host presented.
func (g *Gateway) AddHost(ctx context.Context, cluster *gateway.Cluster, spec gateway.HostConnectSpec) (*gateway.Host, error) {
	c := object.NewClusterComputeResource(g.client, moref(cluster.Ref))
	connect := types.HostConnectSpec{
		HostName: spec.Name,
		UserName: spec.Username,
		Password: spec.Password,
		Force:    spec.Force,
	}

	info, err := g.addHost(ctx, c, connect)
	var sslFault *types.SSLVerifyFault
	if _, ok := fault.As(err, &sslFault); ok {
		zap.S().Named("vsphere").Infow("accepting host certificate", "host", spec.Name, "thumbprint", sslFault.Thumbprint)
		connect.SslThumbprint = sslFault.Thumbprint
		info, err = g.addHost(ctx, c, connect)
	}
	if err != nil {
		return nil, translate(err, "host", spec.Name, "add")
	}

	ref, ok := info.Result.(types.ManagedObjectReference)
	if !ok {
		return nil, errors.Errorf("adding host %q returned no host reference", spec.Name)
	}
	hosts, err := g.hosts(ctx, []types.ManagedObjectReference{ref})
	if err != nil {
		return nil, err
	}
	if len(hosts) == 0 {
		return &gateway.Host{Name: spec.Name, Cluster: cluster.Name, Ref: ref.String()}, nil
	}
	return &hosts[0], nil
}

func (g *Gateway) addHost(ctx context.Context, c *object.ClusterComputeResource, spec types.HostConnectSpec) (*types.TaskInfo, error) {
	task, err := c.AddHost(ctx, spec, true, nil, nil)
	if err != nil {
		return nil, err
	}
	return task.WaitForResult(ctx)
}

func (g *Gateway) MoveHost(ctx context.Context, cluster *gateway.Cluster, host *gateway.Host) error {
	task, err := object.NewClusterComputeResource(g.client, moref(cluster.Ref)).MoveInto(ctx, g.hostSystem(host))
	if err != nil {
		return translate(err, "host", host.Name, "move")
	}
	return translate(task.WaitEx(ctx), "host", host.Name, "move")
}
