package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/ecst/vbuild/internal/storage"
)

type ClaimDisksOptions struct {
	GlobalOptions

	Host     string
	Cache    string
	Capacity []string
}

func DefaultClaimDisksOptions() *ClaimDisksOptions {
	return &ClaimDisksOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdClaimDisks() *cobra.Command {
	o := DefaultClaimDisksOptions()
	cmd := &cobra.Command{
		Use:     "claim-disks --host HOST --cache DEVICE --capacity DEVICE[,DEVICE]",
		Short:   "Create one vSAN disk group on a host from the named devices",
		Example: "claim-disks --host esx01.lab.local --cache naa.5000c500a1 --capacity naa.5000c500b1,naa.5000c500b2",
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

func (o *ClaimDisksOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.StringVar(&o.Host, "host", o.Host, "Host to claim the disks on")
	fs.StringVar(&o.Cache, "cache", o.Cache, "Canonical name of the cache device")
	fs.StringSliceVar(&o.Capacity, "capacity", o.Capacity, "Canonical names of the capacity devices")
}

func (o *ClaimDisksOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	switch {
	case o.Host == "":
		return fmt.Errorf("--host is required")
	case o.Cache == "":
		return fmt.Errorf("--cache is required")
	case len(o.Capacity) == 0:
		return fmt.Errorf("at least one --capacity device is required")
	}
	return nil
}

func (o *ClaimDisksOptions) Run(ctx context.Context, args []string) error {
	gw, disconnect, err := o.connect(ctx)
	if err != nil {
		return err
	}
	defer disconnect()

	err = storage.NewEngine(gw).ClaimDisks(ctx, o.desired.Datacenter.Name, o.desired.Cluster.Name, o.Host, o.Cache, o.Capacity)
	if err != nil {
		return fmt.Errorf("claiming disks on %s: %w", o.Host, err)
	}
	zap.S().Named("cli").Infow("disk group created", "host", o.Host, "cache", o.Cache, "capacity", o.Capacity)
	return nil
}
