package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/ecst/vbuild/internal/gateway"
)

const (
	ClaimModeAutomatic = "Automatic"
	ClaimModeManual    = "Manual"

	DefaultSwitchVersion = "8.0.0"
	DefaultSwitchMTU     = 9000
	DefaultUplinkCount   = 2
	DefaultSyslogPort    = 514
	DefaultShellTimeout  = 900
)

// DesiredState is the environment build document.
type DesiredState struct {
	Environment Environment `json:"environment"`
	VCenter     VCenter     `json:"vcenter"`
	Datacenter  Datacenter  `json:"datacenter"`
	Cluster     Cluster     `json:"cluster"`
	EsxiHosts   []EsxiHost  `json:"esxiHosts" validate:"dive"`
	Networking  Networking  `json:"networking"`
	Storage     Storage     `json:"storage"`
	Services    Services    `json:"services"`
	Security    Security    `json:"security"`
}

type Environment struct {
	Name string `json:"name"`
}

type VCenter struct {
	Server    string `json:"server" validate:"required"`
	DeployNew bool   `json:"deployNew"`
	VCSA      VCSA   `json:"vcsa"`
}

// VCSA describes the appliance used when deployNew is set. The builder
// only waits for it to become reachable.
type VCSA struct {
	TargetEsxiHost string `json:"targetEsxiHost"`
	Hostname       string `json:"hostname"`
	IP             string `json:"ip"`
	DeploymentSize string `json:"deploymentSize"`
	SSODomain      string `json:"ssoDomain"`
}

type Datacenter struct {
	Name string `json:"name" validate:"required"`
}

type Cluster struct {
	Name string `json:"name" validate:"required"`
	HA   HA     `json:"ha"`
	DRS  DRS    `json:"drs"`
	EVC  EVC    `json:"evc"`
}

type HA struct {
	Enabled          bool             `json:"enabled"`
	AdmissionControl AdmissionControl `json:"admissionControl"`
}

type AdmissionControl struct {
	Type          string `json:"type" validate:"admission_control"`
	CPUPercent    int32  `json:"cpuPercent" validate:"min=0,max=100"`
	MemoryPercent int32  `json:"memoryPercent" validate:"min=0,max=100"`
}

type DRS struct {
	Enabled         bool   `json:"enabled"`
	AutomationLevel string `json:"automationLevel" validate:"automation_level"`
}

type EVC struct {
	Enabled bool   `json:"enabled"`
	Mode    string `json:"mode" validate:"required_if=Enabled true"`
}

type EsxiHost struct {
	Hostname     string `json:"hostname" validate:"required"`
	ManagementIP string `json:"managementIp" validate:"omitempty,ip"`
	VMotionIP    string `json:"vmotionIp" validate:"omitempty,ip"`
	VsanIP       string `json:"vsanIp" validate:"omitempty,ip"`
}

type Networking struct {
	VDS               VDS               `json:"vds"`
	PortGroups        []PortGroup       `json:"portGroups" validate:"dive"`
	VMotionTCPIPStack VMotionTCPIPStack `json:"vmotionTcpIpStack"`
	VsanNetwork       KernelNetwork     `json:"vsanNetwork"`
}

// VDS is the distributed switch. Uplinks names the physical NICs bound
// on every host; the switch gets max(uplinkCount, len(uplinks)) uplink
// ports.
type VDS struct {
	Name          string   `json:"name"`
	Version       string   `json:"version"`
	MTU           int32    `json:"mtu" validate:"min=1280,max=9000"`
	Uplinks       []string `json:"uplinks"`
	UplinkCount   int      `json:"uplinkCount" validate:"min=0,max=32"`
	LoadBalancing string   `json:"loadBalancing" validate:"omitempty,load_balancing"`
}

type PortGroup struct {
	Name   string `json:"name" validate:"required"`
	VLANID int32  `json:"vlanId" validate:"min=0,max=4094"`
	Type   string `json:"type" validate:"portgroup_type"`
}

type VMotionTCPIPStack struct {
	Enabled    bool   `json:"enabled"`
	SubnetMask string `json:"subnetMask" validate:"omitempty,subnet_mask"`
	Gateway    string `json:"gateway" validate:"omitempty,ip"`
	PortGroup  string `json:"portGroup"`
}

type KernelNetwork struct {
	SubnetMask string `json:"subnetMask" validate:"omitempty,subnet_mask"`
	Gateway    string `json:"gateway" validate:"omitempty,ip"`
	PortGroup  string `json:"portGroup"`
}

type Storage struct {
	Vsan Vsan `json:"vsan"`
}

type Vsan struct {
	Enabled              bool          `json:"enabled"`
	ClaimMode            string        `json:"claimMode" validate:"claim_mode"`
	DeduplicationEnabled bool          `json:"deduplicationEnabled"`
	CompressionEnabled   bool          `json:"compressionEnabled"`
	DiskGroups           int           `json:"diskGroups"`
	StoragePolicy        StoragePolicy `json:"storagePolicy"`
}

type StoragePolicy struct {
	Name               string `json:"name"`
	FailuresToTolerate int32  `json:"failuresToTolerate" validate:"min=0,max=3"`
	RAIDType           string `json:"raidType"`
}

type Services struct {
	NTP    NTP    `json:"ntp"`
	DNS    DNS    `json:"dns"`
	Syslog Syslog `json:"syslog"`
}

type NTP struct {
	Servers []string `json:"servers"`
	Policy  string   `json:"policy" validate:"omitempty,service_policy"`
}

type DNS struct {
	Servers       []string `json:"servers" validate:"dive,ip"`
	SearchDomains []string `json:"searchDomains"`
}

type Syslog struct {
	Server   string `json:"server"`
	Port     int    `json:"port" validate:"min=0,max=65535"`
	Protocol string `json:"protocol" validate:"omitempty,syslog_protocol"`
}

type Security struct {
	SSHEnabled              bool     `json:"sshEnabled"`
	LockdownMode            string   `json:"lockdownMode" validate:"omitempty,lockdown_mode"`
	ShellTimeout            int64    `json:"shellTimeout" validate:"min=0"`
	FirewallRulesetsEnabled []string `json:"firewallRulesetsEnabled"`
}

func NewDefault() *DesiredState {
	return &DesiredState{
		Cluster: Cluster{
			HA: HA{
				Enabled: true,
				AdmissionControl: AdmissionControl{
					Type:          string(gateway.AdmissionControlResourcePercentage),
					CPUPercent:    25,
					MemoryPercent: 25,
				},
			},
			DRS: DRS{
				Enabled:         true,
				AutomationLevel: string(gateway.AutomationFullyAutomated),
			},
		},
		Networking: Networking{
			VDS: VDS{
				Version:       DefaultSwitchVersion,
				MTU:           DefaultSwitchMTU,
				UplinkCount:   DefaultUplinkCount,
				LoadBalancing: string(gateway.LoadBalanceSrcID),
			},
		},
		Storage: Storage{
			Vsan: Vsan{ClaimMode: ClaimModeAutomatic},
		},
		Services: Services{
			NTP:    NTP{Policy: string(gateway.ServicePolicyOn)},
			Syslog: Syslog{Port: DefaultSyslogPort, Protocol: "udp"},
		},
		Security: Security{
			LockdownMode: string(gateway.LockdownDisabled),
			ShellTimeout: DefaultShellTimeout,
		},
	}
}

// ParseConfigFile reads a JSON or YAML document over the defaults.
func (d *DesiredState) ParseConfigFile(path string) error {
	contents, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return d.Parse(contents)
}

func (d *DesiredState) Parse(contents []byte) error {
	if err := yaml.Unmarshal(contents, d); err != nil {
		return fmt.Errorf("failed to unmarshal config file: %w", err)
	}
	return nil
}

func (d *DesiredState) Validate() error {
	if err := NewValidator().Struct(d); err != nil {
		return gateway.NewErrValidation("invalid desired state: %v", err)
	}
	seen := map[string]bool{}
	for _, h := range d.EsxiHosts {
		name := strings.ToLower(h.Hostname)
		if seen[name] {
			return gateway.NewErrValidation("esxi host %q is listed twice", h.Hostname)
		}
		seen[name] = true
	}
	return nil
}

// Load builds the defaults, overlays the file and validates the result.
func Load(path string) (*DesiredState, error) {
	d := NewDefault()
	if err := d.ParseConfigFile(path); err != nil {
		return nil, err
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *DesiredState) String() string {
	contents, err := json.Marshal(d)
	if err != nil {
		return "<error>"
	}
	return string(contents)
}

func (d *DesiredState) ClusterSpec() gateway.ClusterSpec {
	c := d.Cluster
	return gateway.ClusterSpec{
		HA: gateway.HASpec{
			Enabled:              c.HA.Enabled,
			AdmissionControlType: gateway.AdmissionControlType(c.HA.AdmissionControl.Type),
			CPUPercent:           c.HA.AdmissionControl.CPUPercent,
			MemoryPercent:        c.HA.AdmissionControl.MemoryPercent,
		},
		DRS: gateway.DRSSpec{
			Enabled:         c.DRS.Enabled,
			AutomationLevel: gateway.AutomationLevel(c.DRS.AutomationLevel),
		},
		EVC: gateway.EVCSpec{Enabled: c.EVC.Enabled, Mode: c.EVC.Mode},
	}
}

func (d *DesiredState) SwitchSpec() gateway.SwitchSpec {
	v := d.Networking.VDS
	return gateway.SwitchSpec{
		Name:          v.Name,
		Version:       v.Version,
		MTU:           v.MTU,
		UplinkCount:   max(v.UplinkCount, len(v.Uplinks)),
		LoadBalancing: gateway.LoadBalancing(v.LoadBalancing),
	}
}

func (d *DesiredState) PortGroupSpecs() []gateway.PortGroupSpec {
	specs := make([]gateway.PortGroupSpec, 0, len(d.Networking.PortGroups))
	for _, pg := range d.Networking.PortGroups {
		specs = append(specs, gateway.PortGroupSpec{Name: pg.Name, VLAN: pg.VLANID, Type: gateway.PortGroupType(pg.Type)})
	}
	return specs
}

// PortGroupFor returns the port group carrying the given traffic: the
// explicit name when set, else the first port group typed for it.
func (d *DesiredState) PortGroupFor(purpose gateway.Purpose) string {
	explicit, want := d.Networking.VMotionTCPIPStack.PortGroup, gateway.PortGroupVMotion
	if purpose == gateway.PurposeVSAN {
		explicit, want = d.Networking.VsanNetwork.PortGroup, gateway.PortGroupVSAN
	}
	if explicit != "" {
		return explicit
	}
	for _, pg := range d.Networking.PortGroups {
		if gateway.PortGroupType(pg.Type) == want {
			return pg.Name
		}
	}
	return ""
}

// KernelAddresses maps host names onto the address wanted for purpose.
// Hosts without an address are left out.
func (d *DesiredState) KernelAddresses(purpose gateway.Purpose) map[string]string {
	out := map[string]string{}
	for _, h := range d.EsxiHosts {
		ip := h.VMotionIP
		if purpose == gateway.PurposeVSAN {
			ip = h.VsanIP
		}
		if ip != "" {
			out[strings.ToLower(h.Hostname)] = ip
		}
	}
	return out
}

func (d *DesiredState) Hostnames() []string {
	out := make([]string, 0, len(d.EsxiHosts))
	for _, h := range d.EsxiHosts {
		out = append(out, h.Hostname)
	}
	return out
}

func (d *DesiredState) VsanSpec() gateway.VsanSpec {
	return gateway.VsanSpec{
		Deduplication: d.Storage.Vsan.DeduplicationEnabled,
		Compression:   d.Storage.Vsan.CompressionEnabled,
	}
}

func (d *DesiredState) StoragePolicySpec() gateway.StoragePolicySpec {
	p := d.Storage.Vsan.StoragePolicy
	return gateway.StoragePolicySpec{Name: p.Name, FailuresToTolerate: p.FailuresToTolerate, RAIDType: p.RAIDType}
}
