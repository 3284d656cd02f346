package gateway

import (
	"fmt"
	"strings"
)

type Datacenter struct {
	Name string
	Ref  string
}

type Cluster struct {
	Name       string
	Datacenter string
	Ref        string
}

type AdmissionControlType string

const (
	AdmissionControlResourcePercentage AdmissionControlType = "resourcePercentage"
	AdmissionControlSlotPolicy         AdmissionControlType = "slotPolicy"
	AdmissionControlDisabled           AdmissionControlType = "disabled"
)

type HASpec struct {
	Enabled              bool
	AdmissionControlType AdmissionControlType
	CPUPercent           int32
	MemoryPercent        int32
}

type AutomationLevel string

const (
	AutomationManual             AutomationLevel = "Manual"
	AutomationPartiallyAutomated AutomationLevel = "PartiallyAutomated"
	AutomationFullyAutomated     AutomationLevel = "FullyAutomated"
)

type DRSSpec struct {
	Enabled         bool
	AutomationLevel AutomationLevel
}

type EVCSpec struct {
	Enabled bool
	Mode    string
}

type ClusterSpec struct {
	HA  HASpec
	DRS DRSSpec
	EVC EVCSpec
}

type ConnectionState string

const (
	HostConnected     ConnectionState = "connected"
	HostDisconnected  ConnectionState = "disconnected"
	HostNotResponding ConnectionState = "notResponding"
)

type Host struct {
	Name string
	// Cluster is empty for standalone hosts.
	Cluster         string
	ConnectionState ConnectionState
	InMaintenance   bool
	Ref             string
}

// HostConnectSpec carries what is needed to join a host to a cluster.
type HostConnectSpec struct {
	Name     string
	Username string
	Password string
	// Force takes the host over even if it is managed by another vCenter.
	Force bool
}

type LoadBalancing string

const (
	LoadBalanceSrcID     LoadBalancing = "LoadBalanceSrcId"
	LoadBalanceSrcMac    LoadBalancing = "LoadBalanceSrcMac"
	LoadBalanceIP        LoadBalancing = "LoadBalanceIP"
	LoadBalanceLoadBased LoadBalancing = "LoadBalanceLoadBased"
	ExplicitFailover     LoadBalancing = "ExplicitFailover"
)

// loadBalancingPolicies maps the configuration names onto the teaming
// policy identifiers understood by vSphere.
var loadBalancingPolicies = map[LoadBalancing]string{
	LoadBalanceSrcID:     "loadbalance_srcid",
	LoadBalanceSrcMac:    "loadbalance_srcmac",
	LoadBalanceIP:        "loadbalance_ip",
	LoadBalanceLoadBased: "loadbalance_loadbased",
	ExplicitFailover:     "failover_explicit",
}

// Policy returns the vSphere teaming policy name; ok is false for unknown
// values.
func (l LoadBalancing) Policy() (string, bool) {
	p, ok := loadBalancingPolicies[l]
	return p, ok
}

type Switch struct {
	Name       string
	Datacenter string
	Version    string
	MTU        int32
	Uplinks    []string
	// Hosts are the names of the member hosts.
	Hosts []string
	Ref   string
}

func (s *Switch) HasHost(name string) bool {
	for _, h := range s.Hosts {
		if strings.EqualFold(h, name) {
			return true
		}
	}
	return false
}

type SwitchSpec struct {
	Name          string
	Version       string
	MTU           int32
	UplinkCount   int
	UplinkNames   []string
	LoadBalancing LoadBalancing
}

type PortGroupType string

const (
	PortGroupManagement PortGroupType = "Management"
	PortGroupVMotion    PortGroupType = "vMotion"
	PortGroupVMTraffic  PortGroupType = "VMTraffic"
	PortGroupVSAN       PortGroupType = "vSAN"
	PortGroupCustom     PortGroupType = "Custom"
)

var portGroupTypes = map[PortGroupType]struct{}{
	PortGroupManagement: {},
	PortGroupVMotion:    {},
	PortGroupVMTraffic:  {},
	PortGroupVSAN:       {},
	PortGroupCustom:     {},
}

func (t PortGroupType) Valid() bool {
	_, ok := portGroupTypes[t]
	return ok
}

type PortGroup struct {
	Name   string
	Switch string
	VLAN   int32
	Ref    string
}

type PortGroupSpec struct {
	Name string
	VLAN int32
	Type PortGroupType
}

// Purpose is the system traffic a VMkernel adapter is tagged for.
type Purpose string

const (
	PurposeVMotion Purpose = "vmotion"
	PurposeVSAN    Purpose = "vsan"
)

func (p Purpose) Valid() bool {
	return p == PurposeVMotion || p == PurposeVSAN
}

type KernelAdapter struct {
	Device     string
	Host       string
	PortGroup  string
	IP         string
	SubnetMask string
	// NetStack is the TCP/IP stack key, "defaultTcpipStack" unless a
	// dedicated stack was requested.
	NetStack string
	Purposes []Purpose
}

func (k *KernelAdapter) Serves(p Purpose) bool {
	for _, s := range k.Purposes {
		if s == p {
			return true
		}
	}
	return false
}

const (
	DefaultNetStack = "defaultTcpipStack"
	VMotionNetStack = "vmotion"
)

type KernelAdapterSpec struct {
	PortGroup  string
	IP         string
	SubnetMask string
	NetStack   string
	Purpose    Purpose
}

type DeviceState string

const (
	DeviceEligible   DeviceState = "eligible"
	DeviceCache      DeviceState = "cache"
	DeviceCapacity   DeviceState = "capacity"
	DeviceIneligible DeviceState = "ineligible"
)

type StorageDevice struct {
	CanonicalName string
	CapacityBytes int64
	SSD           bool
	State         DeviceState
}

func (d StorageDevice) String() string {
	media := "HDD"
	if d.SSD {
		media = "SSD"
	}
	return fmt.Sprintf("%s (%s, %d bytes)", d.CanonicalName, media, d.CapacityBytes)
}

type DiskGroup struct {
	Host     string
	Cache    StorageDevice
	Capacity []StorageDevice
}

type VsanSpec struct {
	Deduplication bool
	Compression   bool
}

type StoragePolicy struct {
	Name               string
	ID                 string
	FailuresToTolerate int32
	RAIDType           string
}

type StoragePolicySpec struct {
	Name               string
	FailuresToTolerate int32
	RAIDType           string
}

type ServicePolicy string

const (
	ServicePolicyOn        ServicePolicy = "on"
	ServicePolicyOff       ServicePolicy = "off"
	ServicePolicyAutomatic ServicePolicy = "automatic"
)

type HostService struct {
	Key     string
	Running bool
	Policy  ServicePolicy
}

type DNSConfig struct {
	Servers       []string
	SearchDomains []string
}

type FirewallRuleset struct {
	Key     string
	Enabled bool
}

type LockdownMode string

const (
	LockdownDisabled LockdownMode = "disabled"
	LockdownNormal   LockdownMode = "normal"
	LockdownStrict   LockdownMode = "strict"
)

// lockdownLevels maps configuration levels onto vSphere HostLockdownMode
// values.
var lockdownLevels = map[LockdownMode]string{
	LockdownDisabled: "lockdownDisabled",
	LockdownNormal:   "lockdownNormal",
	LockdownStrict:   "lockdownStrict",
}

func (m LockdownMode) Level() (string, bool) {
	l, ok := lockdownLevels[m]
	return l, ok
}

// Summaries returned by the read-only status view.

type ClusterSummary struct {
	Name        string
	Datacenter  string
	HAEnabled   bool
	DRSEnabled  bool
	VsanEnabled bool
	Hosts       int
}

type SwitchSummary struct {
	Name       string
	Datacenter string
	Version    string
	MTU        int32
	Hosts      int
	PortGroups int
}

type Summary struct {
	Server      string
	Version     string
	Datacenters []string
	Clusters    []ClusterSummary
	Hosts       []Host
	Switches    []SwitchSummary
}
