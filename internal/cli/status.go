package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/ecst/vbuild/internal/status"
)

type StatusOptions struct {
	GlobalOptions
}

func DefaultStatusOptions() *StatusOptions {
	return &StatusOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdStatus() *cobra.Command {
	o := DefaultStatusOptions()
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show datacenters, clusters, hosts and switches of the vCenter",
		Args:  cobra.NoArgs,
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

func (o *StatusOptions) Run(ctx context.Context, args []string) error {
	gw, disconnect, err := o.connect(ctx)
	if err != nil {
		return err
	}
	defer disconnect()

	summary, err := status.Collect(ctx, gw)
	if err != nil {
		return err
	}
	return status.Print(os.Stdout, summary)
}
