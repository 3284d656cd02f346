package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/ecst/vbuild/internal/orchestrator"
	"github.com/ecst/vbuild/pkg/metrics"
)

type DeployOptions struct {
	GlobalOptions

	SkipTopology bool
	SkipNetwork  bool
	SkipStorage  bool
	SkipServices bool
	ForceHosts   bool
	MetricsFile  string
}

func DefaultDeployOptions() *DeployOptions {
	return &DeployOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdDeploy() *cobra.Command {
	o := DefaultDeployOptions()
	cmd := &cobra.Command{
		Use:     "deploy [FLAGS]",
		Short:   "Build the environment described by the desired-state file",
		Example: "deploy -c environment.yaml --skip-storage --metrics-file /var/lib/node_exporter/vbuild.prom",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(args); err != nil {
				return err
			}
			return o.Run(cmd.Context(), args)
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *DeployOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.BoolVar(&o.SkipTopology, "skip-topology", o.SkipTopology, "Do not create or reconfigure the datacenter and cluster")
	fs.BoolVar(&o.SkipNetwork, "skip-network", o.SkipNetwork, "Do not configure the distributed switch and VMkernel adapters")
	fs.BoolVar(&o.SkipStorage, "skip-storage", o.SkipStorage, "Do not configure vSAN")
	fs.BoolVar(&o.SkipServices, "skip-services", o.SkipServices, "Do not configure host services and security")
	fs.BoolVar(&o.ForceHosts, "force-hosts", o.ForceHosts, "Move hosts that already belong to another cluster")
	fs.StringVar(&o.MetricsFile, "metrics-file", o.MetricsFile, "Write run metrics to this file in the Prometheus text format")
}

func (o *DeployOptions) Run(ctx context.Context, args []string) error {
	result := orchestrator.New(o.Sessions(), o.desired, o.settings, orchestrator.Options{
		SkipTopology: o.SkipTopology,
		SkipNetwork:  o.SkipNetwork,
		SkipStorage:  o.SkipStorage,
		SkipServices: o.SkipServices,
		ForceHosts:   o.ForceHosts,
	}).Run(ctx)

	fmt.Println(result.Summary())

	if o.MetricsFile != "" {
		if err := metrics.WriteTextfile(o.MetricsFile); err != nil {
			zap.S().Named("cli").Warnw("failed to write metrics", "file", o.MetricsFile, "error", err)
		}
	}

	if result.Err != nil {
		return fmt.Errorf("step %s failed: %w", result.FailedStep, result.Err)
	}
	if result.HasItemFailures() {
		zap.S().Named("cli").Warnw("run finished with item failures", "run-id", result.RunID)
	}
	return nil
}
