// Package gateway describes the operations the reconcilers need from a
// vCenter. Every operation is a single round trip against the inventory;
// the reconcilers own the diffing and the gateway never decides whether a
// change is needed.
package gateway

import "context"

// Inventory resolves the objects every other operation hangs off.
type Inventory interface {
	FindDatacenter(ctx context.Context, name string) (*Datacenter, error)
	FindCluster(ctx context.Context, dc *Datacenter, name string) (*Cluster, error)
	ListHosts(ctx context.Context, cluster *Cluster) ([]Host, error)
}

type Topology interface {
	Inventory
	// FolderExists reports whether a top level folder with the given name
	// exists under the inventory root.
	FolderExists(ctx context.Context, name string) (bool, error)
	// CreateDatacenter creates the datacenter inside folder, or at the root
	// when folder is empty.
	CreateDatacenter(ctx context.Context, name, folder string) (*Datacenter, error)
	CreateCluster(ctx context.Context, dc *Datacenter, name string, spec ClusterSpec) (*Cluster, error)
	UpdateClusterHA(ctx context.Context, cluster *Cluster, spec HASpec) error
	UpdateClusterDRS(ctx context.Context, cluster *Cluster, spec DRSSpec) error
	UpdateClusterEVC(ctx context.Context, cluster *Cluster, spec EVCSpec) error
	FindHost(ctx context.Context, dc *Datacenter, name string) (*Host, error)
	AddHost(ctx context.Context, cluster *Cluster, spec HostConnectSpec) (*Host, error)
	MoveHost(ctx context.Context, cluster *Cluster, host *Host) error
}

type Network interface {
	Inventory
	FindSwitch(ctx context.Context, dc *Datacenter, name string) (*Switch, error)
	CreateSwitch(ctx context.Context, dc *Datacenter, spec SwitchSpec) (*Switch, error)
	UpdateSwitchMTU(ctx context.Context, sw *Switch, mtu int32) error
	ListPortGroups(ctx context.Context, sw *Switch) ([]PortGroup, error)
	CreatePortGroup(ctx context.Context, sw *Switch, spec PortGroupSpec) (*PortGroup, error)
	AddSwitchHost(ctx context.Context, sw *Switch, host *Host) error
	ListPhysicalNics(ctx context.Context, host *Host) ([]string, error)
	BindUplink(ctx context.Context, sw *Switch, host *Host, nic string) error
	ListKernelAdapters(ctx context.Context, host *Host) ([]KernelAdapter, error)
	// CreateKernelAdapter creates a VMkernel adapter on the named
	// distributed port group and tags it with spec.Purpose.
	CreateKernelAdapter(ctx context.Context, dc *Datacenter, host *Host, spec KernelAdapterSpec) (*KernelAdapter, error)
	// AddDefaultRoute returns ErrAlreadyExists when the stack already has a
	// default gateway.
	AddDefaultRoute(ctx context.Context, host *Host, stack, gateway string) error
}

type Storage interface {
	Inventory
	EnableVsan(ctx context.Context, cluster *Cluster, spec VsanSpec) error
	// ListDevices returns every local device the host reports for vSAN,
	// including devices already claimed into a disk group.
	ListDevices(ctx context.Context, host *Host) ([]StorageDevice, error)
	ListDiskGroups(ctx context.Context, host *Host) ([]DiskGroup, error)
	CreateDiskGroup(ctx context.Context, host *Host, cache StorageDevice, capacity []StorageDevice) error
	FindStoragePolicy(ctx context.Context, name string) (*StoragePolicy, error)
	CreateStoragePolicy(ctx context.Context, spec StoragePolicySpec) (*StoragePolicy, error)
}

type HostServices interface {
	Inventory
	NTPServers(ctx context.Context, host *Host) ([]string, error)
	RemoveNTPServers(ctx context.Context, host *Host, servers []string) error
	AddNTPServers(ctx context.Context, host *Host, servers []string) error
	Service(ctx context.Context, host *Host, key string) (*HostService, error)
	StartService(ctx context.Context, host *Host, key string) error
	StopService(ctx context.Context, host *Host, key string) error
	RestartService(ctx context.Context, host *Host, key string) error
	SetServicePolicy(ctx context.Context, host *Host, key string, policy ServicePolicy) error
	UpdateDNS(ctx context.Context, host *Host, dns DNSConfig) error
	// SetAdvancedOption returns ErrUnsupported when the host does not know
	// the option.
	SetAdvancedOption(ctx context.Context, host *Host, key string, value any) error
	FirewallRulesets(ctx context.Context, host *Host) ([]FirewallRuleset, error)
	EnableFirewallRuleset(ctx context.Context, host *Host, key string) error
	SetLockdownMode(ctx context.Context, host *Host, mode LockdownMode) error
}

type Status interface {
	Summary(ctx context.Context) (*Summary, error)
}

type Gateway interface {
	Topology
	Network
	Storage
	HostServices
	Status
}
