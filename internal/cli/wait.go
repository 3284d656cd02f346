package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ecst/vbuild/internal/session"
	"github.com/ecst/vbuild/internal/vsphere"
)

type WaitOptions struct {
	GlobalOptions

	Server   string
	Timeout  time.Duration
	Interval time.Duration
	Insecure bool
}

func DefaultWaitOptions() *WaitOptions {
	return &WaitOptions{
		GlobalOptions: DefaultGlobalOptions(),
		Timeout:       30 * time.Minute,
		Interval:      30 * time.Second,
		Insecure:      true,
	}
}

func NewCmdWait() *cobra.Command {
	o := DefaultWaitOptions()
	cmd := &cobra.Command{
		Use:   "wait",
		Short: "Wait until the vCenter answers API requests",
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

func (o *WaitOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.StringVar(&o.Server, "server", o.Server, "vCenter address; defaults to vcenter.server of the desired-state file")
	fs.DurationVar(&o.Timeout, "timeout", o.Timeout, "Give up after this long")
	fs.DurationVar(&o.Interval, "interval", o.Interval, "Time between checks")
	fs.BoolVar(&o.Insecure, "insecure", o.Insecure, "Skip TLS certificate verification")
}

// Complete only reads the desired-state file when no server was given.
func (o *WaitOptions) Complete(cmd *cobra.Command, args []string) error {
	if o.Server != "" {
		return nil
	}
	if err := o.GlobalOptions.Complete(cmd, args); err != nil {
		return err
	}
	o.Server = o.desired.VCenter.Server
	return nil
}

func (o *WaitOptions) Validate(args []string) error {
	if o.Server == "" {
		return fmt.Errorf("no vCenter server given")
	}
	if o.Interval <= 0 || o.Timeout <= 0 {
		return fmt.Errorf("--timeout and --interval must be positive")
	}
	return nil
}

func (o *WaitOptions) Run(ctx context.Context, args []string) error {
	if !session.WaitForAvailability(ctx, vsphere.Ping(o.Server, o.Insecure), o.Timeout, o.Interval) {
		return fmt.Errorf("%s did not become available within %s", o.Server, o.Timeout)
	}
	fmt.Printf("%s is available\n", o.Server)
	return nil
}
