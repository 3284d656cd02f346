// Package orchestrator runs the build steps in order against one vCenter
// session.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ecst/vbuild/internal/config"
	"github.com/ecst/vbuild/internal/gateway"
	"github.com/ecst/vbuild/internal/hostconfig"
	"github.com/ecst/vbuild/internal/network"
	"github.com/ecst/vbuild/internal/report"
	"github.com/ecst/vbuild/internal/session"
	"github.com/ecst/vbuild/internal/storage"
	"github.com/ecst/vbuild/internal/topology"
	"github.com/ecst/vbuild/pkg/metrics"
)

const (
	StepConnect  = "connect"
	StepTopology = "topology"
	StepHosts    = "hosts"
	StepNetwork  = "network"
	StepStorage  = "storage"
	StepServices = "services"

	defaultSubnetMask = "255.255.255.0"
)

type Options struct {
	SkipTopology bool
	SkipNetwork  bool
	SkipStorage  bool
	SkipServices bool
	// ForceHosts moves hosts that belong to another cluster.
	ForceHosts bool
}

type RunResult struct {
	RunID string
	// Reports holds the per-item outcome of every executed step, in order.
	Reports []*report.Report
	// FailedStep names the step that aborted the run.
	FailedStep string
	Err        error
}

// HasItemFailures reports whether any item of any step failed.
func (r *RunResult) HasItemFailures() bool {
	for _, rep := range r.Reports {
		if rep.HasFailures() {
			return true
		}
	}
	return false
}

type Orchestrator struct {
	sessions *session.Manager
	desired  *config.DesiredState
	settings *config.Settings
	opts     Options
}

func New(sessions *session.Manager, desired *config.DesiredState, settings *config.Settings, opts Options) *Orchestrator {
	return &Orchestrator{sessions: sessions, desired: desired, settings: settings, opts: opts}
}

type step struct {
	name string
	skip bool
	run  func(ctx context.Context, gw gateway.Gateway) ([]*report.Report, error)
}

// Run executes connect, topology, hosts, network, storage and services.
// A step error aborts the remaining steps; the session is always closed.
func (o *Orchestrator) Run(ctx context.Context) *RunResult {
	result := &RunResult{RunID: uuid.NewString()}
	logger := zap.S().Named("orchestrator").With("run-id", result.RunID)

	start := time.Now()
	sess, err := o.sessions.Connect(ctx, o.desired.VCenter.Server, session.Credentials{
		Username: o.settings.VCenter.Username,
		Password: o.settings.VCenter.Password,
		Insecure: o.settings.VCenter.Insecure,
	}, o.settings.Connection.MaxAttempts, o.settings.Connection.RetryDelay)
	metrics.ObserveStepDuration(StepConnect, time.Since(start).Seconds())
	if err != nil {
		metrics.IncreaseStepFailures(StepConnect)
		result.FailedStep, result.Err = StepConnect, err
		logger.Errorw("connection failed", "error", err)
		return result
	}
	defer o.sessions.Disconnect(ctx)

	gw := sess.Gateway()
	steps := []step{
		{name: StepTopology, skip: o.opts.SkipTopology, run: o.topology},
		{name: StepHosts, run: o.hosts},
		{name: StepNetwork, skip: o.opts.SkipNetwork, run: o.network},
		{name: StepStorage, skip: o.opts.SkipStorage || !o.desired.Storage.Vsan.Enabled, run: o.storage},
		{name: StepServices, skip: o.opts.SkipServices, run: o.services},
	}

	for _, s := range steps {
		if s.skip {
			logger.Infow("step skipped", "step", s.name)
			continue
		}
		logger.Infow("step started", "step", s.name)
		start := time.Now()
		reports, err := s.run(ctx, gw)
		metrics.ObserveStepDuration(s.name, time.Since(start).Seconds())

		for _, rep := range reports {
			metrics.AddReconcileItems(s.name, metrics.OutcomeSucceeded, len(rep.Succeeded))
			metrics.AddReconcileItems(s.name, metrics.OutcomeSkipped, len(rep.Skipped))
			metrics.AddReconcileItems(s.name, metrics.OutcomeFailed, len(rep.Failed))
			if rep.HasFailures() {
				logger.Warn(rep.String())
			} else {
				logger.Info(rep.String())
			}
		}
		result.Reports = append(result.Reports, reports...)

		if err != nil {
			metrics.IncreaseStepFailures(s.name)
			result.FailedStep, result.Err = s.name, err
			logger.Errorw("step failed, aborting", "step", s.name, "error", err)
			return result
		}
		logger.Infow("step finished", "step", s.name, "duration", time.Since(start).String())
	}
	return result
}

func (o *Orchestrator) topology(ctx context.Context, gw gateway.Gateway) ([]*report.Report, error) {
	r := topology.NewReconciler(gw)
	if _, err := r.EnsureDatacenter(ctx, o.desired.Datacenter.Name); err != nil {
		return nil, err
	}
	if _, err := r.EnsureCluster(ctx, o.desired.Datacenter.Name, o.desired.Cluster.Name, o.desired.ClusterSpec()); err != nil {
		return nil, err
	}
	return nil, nil
}

func (o *Orchestrator) hosts(ctx context.Context, gw gateway.Gateway) ([]*report.Report, error) {
	r := topology.NewReconciler(gw)
	rep, err := r.EnsureHosts(ctx, o.desired.Datacenter.Name, o.desired.Cluster.Name, o.desired.Hostnames(), topology.HostCredentials{
		Username: o.settings.Esxi.Username,
		Password: o.settings.Esxi.Password,
	}, o.opts.ForceHosts)
	return []*report.Report{rep}, err
}

func (o *Orchestrator) network(ctx context.Context, gw gateway.Gateway) ([]*report.Report, error) {
	logger := zap.S().Named("orchestrator")
	b := network.NewBuilder(gw)
	dc, cluster := o.desired.Datacenter.Name, o.desired.Cluster.Name
	var reports []*report.Report

	sw, err := b.EnsureSwitch(ctx, dc, o.desired.SwitchSpec())
	if err != nil {
		return reports, err
	}

	rep, err := b.EnsurePortGroups(ctx, dc, sw.Name, o.desired.PortGroupSpecs())
	reports = append(reports, rep)
	if err != nil {
		return reports, err
	}

	rep, err = b.BindHostsToSwitch(ctx, dc, sw.Name, cluster, o.desired.Networking.VDS.Uplinks)
	reports = append(reports, rep)
	if err != nil {
		return reports, err
	}

	vmotion := o.desired.Networking.VMotionTCPIPStack
	vsan := o.desired.Networking.VsanNetwork
	endpoints := []network.KernelEndpointSpec{
		{
			Purpose:        gateway.PurposeVMotion,
			PortGroup:      o.desired.PortGroupFor(gateway.PurposeVMotion),
			Addresses:      o.desired.KernelAddresses(gateway.PurposeVMotion),
			SubnetMask:     orDefault(vmotion.SubnetMask, defaultSubnetMask),
			Gateway:        vmotion.Gateway,
			DedicatedStack: vmotion.Enabled,
		},
		{
			Purpose:    gateway.PurposeVSAN,
			PortGroup:  o.desired.PortGroupFor(gateway.PurposeVSAN),
			Addresses:  o.desired.KernelAddresses(gateway.PurposeVSAN),
			SubnetMask: orDefault(vsan.SubnetMask, defaultSubnetMask),
			Gateway:    vsan.Gateway,
		},
	}
	for _, spec := range endpoints {
		if len(spec.Addresses) == 0 {
			logger.Infow("no adapter addresses configured", "purpose", spec.Purpose)
			continue
		}
		if spec.PortGroup == "" {
			logger.Warnw("no port group for adapters, skipping", "purpose", spec.Purpose)
			continue
		}
		rep, err := b.EnsureKernelEndpoint(ctx, dc, cluster, spec)
		reports = append(reports, rep)
		if err != nil {
			return reports, err
		}
	}
	return reports, nil
}

func (o *Orchestrator) storage(ctx context.Context, gw gateway.Gateway) ([]*report.Report, error) {
	e := storage.NewEngine(gw)
	dc, cluster := o.desired.Datacenter.Name, o.desired.Cluster.Name
	vsan := o.desired.Storage.Vsan

	if err := e.EnableVsan(ctx, dc, cluster, o.desired.VsanSpec()); err != nil {
		return nil, err
	}

	rep, err := e.ConfigureDiskGroups(ctx, dc, cluster, vsan.ClaimMode)
	reports := []*report.Report{rep}
	if err != nil {
		return reports, err
	}

	if vsan.StoragePolicy.Name != "" {
		policy := report.New("storage-policy")
		_, created, err := e.CreateStoragePolicy(ctx, o.desired.StoragePolicySpec())
		switch {
		case err != nil:
			policy.Fail(vsan.StoragePolicy.Name, err)
		case created:
			policy.Succeed(vsan.StoragePolicy.Name)
		default:
			policy.Skip(vsan.StoragePolicy.Name, "already exists")
		}
		reports = append(reports, policy)
	}
	return reports, nil
}

func (o *Orchestrator) services(ctx context.Context, gw gateway.Gateway) ([]*report.Report, error) {
	c := hostconfig.NewConfigurator(gw)
	dc, cluster := o.desired.Datacenter.Name, o.desired.Cluster.Name
	svc := o.desired.Services
	sec := o.desired.Security

	services, err := c.ConfigureServices(ctx, dc, cluster, hostconfig.Services{
		NTP: hostconfig.NTP{Servers: svc.NTP.Servers, Policy: gateway.ServicePolicy(svc.NTP.Policy)},
		DNS: gateway.DNSConfig{Servers: svc.DNS.Servers, SearchDomains: svc.DNS.SearchDomains},
		Syslog: hostconfig.Syslog{
			Protocol: orDefault(svc.Syslog.Protocol, "udp"),
			Server:   svc.Syslog.Server,
			Port:     svc.Syslog.Port,
		},
	})
	reports := []*report.Report{services}
	if err != nil {
		return reports, err
	}

	security, err := c.ConfigureSecurity(ctx, dc, cluster, hostconfig.Security{
		SSHEnabled:       sec.SSHEnabled,
		ShellTimeout:     sec.ShellTimeout,
		LockdownMode:     hostconfig.ParseLockdownMode(sec.LockdownMode),
		FirewallRulesets: sec.FirewallRulesetsEnabled,
	})
	reports = append(reports, security)
	return reports, err
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Summary formats the outcome of a run for the console.
func (r *RunResult) Summary() string {
	all := report.New("run " + r.RunID)
	for _, rep := range r.Reports {
		all.Merge(rep)
	}
	s := fmt.Sprintf("run %s: %d items, %d succeeded, %d skipped, %d failed",
		r.RunID, all.Total(), len(all.Succeeded), len(all.Skipped), len(all.Failed))
	if r.Err != nil {
		s += fmt.Sprintf("; aborted at %s: %v", r.FailedStep, r.Err)
	}
	return s
}
