package vsphere

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/vmware/govmomi"
	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/pbm"
	"github.com/vmware/govmomi/property"
	"github.com/vmware/govmomi/view"
	"github.com/vmware/govmomi/vim25"
	"github.com/vmware/govmomi/vim25/mo"
	"github.com/vmware/govmomi/vim25/types"

	"github.com/ecst/vbuild/internal/gateway"
)

// Gateway talks to one vCenter through an authenticated client.
type Gateway struct {
	server string
	client *vim25.Client

	pbmOnce sync.Once
	pbm     *pbm.Client
	pbmErr  error
}

var _ gateway.Gateway = &Gateway{}

func newGateway(server string, c *govmomi.Client) *Gateway {
	return &Gateway{server: server, client: c.Client}
}

func (g *Gateway) pbmClient(ctx context.Context) (*pbm.Client, error) {
	g.pbmOnce.Do(func() {
		g.pbm, g.pbmErr = pbm.NewClient(ctx, g.client)
		if g.pbmErr != nil {
			g.pbmErr = errors.Wrap(g.pbmErr, "failed to create storage policy client")
		}
	})
	return g.pbm, g.pbmErr
}

func moref(ref string) types.ManagedObjectReference {
	var r types.ManagedObjectReference
	r.FromString(ref)
	return r
}

// findByName returns the first object of kind named name below container,
// or nil when there is none.
func (g *Gateway) findByName(ctx context.Context, container types.ManagedObjectReference, kind, name string) (*types.ManagedObjectReference, error) {
	m := view.NewManager(g.client)
	v, err := m.CreateContainerView(ctx, container, []string{kind}, true)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create %s view", kind)
	}
	defer v.Destroy(ctx) //nolint:errcheck

	refs, err := v.Find(ctx, []string{kind}, property.Match{"name": name})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to search for %s %q", kind, name)
	}
	if len(refs) == 0 {
		return nil, nil
	}
	return &refs[0], nil
}

// names resolves the display name of each reference.
func (g *Gateway) names(ctx context.Context, refs []types.ManagedObjectReference) (map[types.ManagedObjectReference]string, error) {
	out := make(map[types.ManagedObjectReference]string, len(refs))
	if len(refs) == 0 {
		return out, nil
	}
	var entities []mo.ManagedEntity
	if err := property.DefaultCollector(g.client).Retrieve(ctx, refs, []string{"name"}, &entities); err != nil {
		return nil, errors.Wrap(err, "failed to retrieve object names")
	}
	for _, e := range entities {
		out[e.Self] = e.Name
	}
	return out, nil
}

func (g *Gateway) FindDatacenter(ctx context.Context, name string) (*gateway.Datacenter, error) {
	ref, err := g.findByName(ctx, g.client.ServiceContent.RootFolder, "Datacenter", name)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, gateway.NewErrDatacenterNotFound(name)
	}
	return &gateway.Datacenter{Name: name, Ref: ref.String()}, nil
}

func (g *Gateway) FindCluster(ctx context.Context, dc *gateway.Datacenter, name string) (*gateway.Cluster, error) {
	ref, err := g.findByName(ctx, moref(dc.Ref), "ClusterComputeResource", name)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, gateway.NewErrClusterNotFound(name)
	}
	return &gateway.Cluster{Name: name, Datacenter: dc.Name, Ref: ref.String()}, nil
}

func (g *Gateway) ListHosts(ctx context.Context, cluster *gateway.Cluster) ([]gateway.Host, error) {
	members, err := object.NewClusterComputeResource(g.client, moref(cluster.Ref)).Hosts(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list hosts of cluster %q", cluster.Name)
	}
	refs := make([]types.ManagedObjectReference, 0, len(members))
	for _, h := range members {
		refs = append(refs, h.Reference())
	}
	return g.hosts(ctx, refs)
}

func (g *Gateway) FindHost(ctx context.Context, dc *gateway.Datacenter, name string) (*gateway.Host, error) {
	ref, err := g.findByName(ctx, moref(dc.Ref), "HostSystem", name)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, gateway.NewErrHostNotFound(name)
	}
	hosts, err := g.hosts(ctx, []types.ManagedObjectReference{*ref})
	if err != nil {
		return nil, err
	}
	if len(hosts) == 0 {
		return nil, gateway.NewErrHostNotFound(name)
	}
	return &hosts[0], nil
}

// hosts loads the host view for refs, resolving the owning cluster name.
func (g *Gateway) hosts(ctx context.Context, refs []types.ManagedObjectReference) ([]gateway.Host, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	var systems []mo.HostSystem
	props := []string{"name", "parent", "runtime.connectionState", "runtime.inMaintenanceMode"}
	if err := property.DefaultCollector(g.client).Retrieve(ctx, refs, props, &systems); err != nil {
		return nil, errors.Wrap(err, "failed to retrieve hosts")
	}

	var parents []types.ManagedObjectReference
	for _, s := range systems {
		if s.Parent != nil && s.Parent.Type == "ClusterComputeResource" {
			parents = append(parents, *s.Parent)
		}
	}
	clusters, err := g.names(ctx, parents)
	if err != nil {
		return nil, err
	}

	hosts := make([]gateway.Host, 0, len(systems))
	for _, s := range systems {
		h := gateway.Host{
			Name:            s.Name,
			ConnectionState: gateway.ConnectionState(s.Runtime.ConnectionState),
			InMaintenance:   s.Runtime.InMaintenanceMode,
			Ref:             s.Self.String(),
		}
		if s.Parent != nil {
			h.Cluster = clusters[*s.Parent]
		}
		hosts = append(hosts, h)
	}
	return hosts, nil
}

func (g *Gateway) hostSystem(h *gateway.Host) *object.HostSystem {
	return object.NewHostSystem(g.client, moref(h.Ref))
}
