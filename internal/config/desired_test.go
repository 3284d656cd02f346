package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecst/vbuild/internal/gateway"
)

const sampleDocument = `
environment:
  name: lab
vcenter:
  server: vc01.lab.local
datacenter:
  name: DC-01
cluster:
  name: Cluster-01
  drs:
    enabled: true
    automationLevel: PartiallyAutomated
esxiHosts:
  - hostname: esx01.lab.local
    vmotionIp: 10.0.20.11
    vsanIp: 10.0.30.11
  - hostname: esx02.lab.local
    vmotionIp: 10.0.20.12
networking:
  vds:
    name: VDS-Core
    uplinks: [vmnic2, vmnic3]
  portGroups:
    - name: PG-Mgmt
      vlanId: 10
      type: Management
    - name: PG-vMotion
      vlanId: 20
      type: vMotion
    - name: PG-vSAN
      vlanId: 30
      type: vSAN
  vmotionTcpIpStack:
    enabled: true
    subnetMask: 255.255.255.0
    gateway: 10.0.20.1
storage:
  vsan:
    enabled: true
    storagePolicy:
      name: vSAN-FTT1
      failuresToTolerate: 1
      raidType: RAID-1
security:
  lockdownMode: normal
  firewallRulesetsEnabled: [sshServer]
`

func TestParseKeepsDefaults(t *testing.T) {
	d := NewDefault()
	require.NoError(t, d.Parse([]byte(sampleDocument)))
	require.NoError(t, d.Validate())

	assert.Equal(t, "DC-01", d.Datacenter.Name)
	assert.Equal(t, int32(DefaultSwitchMTU), d.Networking.VDS.MTU)
	assert.Equal(t, DefaultSwitchVersion, d.Networking.VDS.Version)
	assert.Equal(t, ClaimModeAutomatic, d.Storage.Vsan.ClaimMode)
	assert.Equal(t, gateway.AutomationPartiallyAutomated, d.ClusterSpec().DRS.AutomationLevel)
	assert.Equal(t, gateway.AdmissionControlResourcePercentage, d.ClusterSpec().HA.AdmissionControlType)
}

func TestParseConfigFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"vcenter":{"server":"vc01"},"datacenter":{"name":"DC"},"cluster":{"name":"C"}}`), 0o600))

	d, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "vc01", d.VCenter.Server)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *DesiredState)
	}{
		{
			name:   "missing datacenter name",
			mutate: func(d *DesiredState) { d.Datacenter.Name = "" },
		},
		{
			name:   "unknown port group type",
			mutate: func(d *DesiredState) { d.Networking.PortGroups[0].Type = "Storage" },
		},
		{
			name:   "unknown automation level",
			mutate: func(d *DesiredState) { d.Cluster.DRS.AutomationLevel = "Auto" },
		},
		{
			name:   "unknown load balancing",
			mutate: func(d *DesiredState) { d.Networking.VDS.LoadBalancing = "RoundRobin" },
		},
		{
			name:   "unknown lockdown mode",
			mutate: func(d *DesiredState) { d.Security.LockdownMode = "total" },
		},
		{
			name:   "unknown claim mode",
			mutate: func(d *DesiredState) { d.Storage.Vsan.ClaimMode = "Auto" },
		},
		{
			name:   "bad subnet mask",
			mutate: func(d *DesiredState) { d.Networking.VMotionTCPIPStack.SubnetMask = "255.0.255.0" },
		},
		{
			name:   "evc enabled without mode",
			mutate: func(d *DesiredState) { d.Cluster.EVC.Enabled = true },
		},
		{
			name: "duplicate host",
			mutate: func(d *DesiredState) {
				d.EsxiHosts = append(d.EsxiHosts, EsxiHost{Hostname: "ESX01.lab.local"})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDefault()
			require.NoError(t, d.Parse([]byte(sampleDocument)))
			tt.mutate(d)
			err := d.Validate()
			require.Error(t, err)
			assert.True(t, gateway.IsValidation(err))
		})
	}
}

func TestKernelAddressesKeyedByHostname(t *testing.T) {
	d := NewDefault()
	require.NoError(t, d.Parse([]byte(sampleDocument)))

	assert.Equal(t, map[string]string{
		"esx01.lab.local": "10.0.20.11",
		"esx02.lab.local": "10.0.20.12",
	}, d.KernelAddresses(gateway.PurposeVMotion))
	assert.Equal(t, map[string]string{"esx01.lab.local": "10.0.30.11"}, d.KernelAddresses(gateway.PurposeVSAN))
}

func TestPortGroupFor(t *testing.T) {
	d := NewDefault()
	require.NoError(t, d.Parse([]byte(sampleDocument)))

	assert.Equal(t, "PG-vMotion", d.PortGroupFor(gateway.PurposeVMotion))
	assert.Equal(t, "PG-vSAN", d.PortGroupFor(gateway.PurposeVSAN))

	d.Networking.VsanNetwork.PortGroup = "PG-Storage"
	assert.Equal(t, "PG-Storage", d.PortGroupFor(gateway.PurposeVSAN))
}

func TestLoadSettings(t *testing.T) {
	t.Setenv("VBUILD_VCENTER_PASSWORD", "vc-secret")
	t.Setenv("VBUILD_ESXI_ROOT_PASSWORD", "root-secret")
	t.Setenv("VBUILD_CONNECT_ATTEMPTS", "5")

	s, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, "administrator@vsphere.local", s.VCenter.Username)
	assert.Equal(t, "vc-secret", s.VCenter.Password)
	assert.Equal(t, "root", s.Esxi.Username)
	assert.Equal(t, "root-secret", s.Esxi.Password)
	assert.Equal(t, 5, s.Connection.MaxAttempts)
	assert.Equal(t, "info", s.LogLevel)
}
