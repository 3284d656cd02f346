package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ecst/vbuild/internal/config"
	"github.com/ecst/vbuild/internal/gateway"
	"github.com/ecst/vbuild/internal/session"
	"github.com/ecst/vbuild/internal/vsphere"
)

type GlobalOptions struct {
	ConfigFile string

	desired  *config.DesiredState
	settings *config.Settings
}

func DefaultGlobalOptions() GlobalOptions {
	return GlobalOptions{
		ConfigFile: "environment.yaml",
	}
}

func (o *GlobalOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.ConfigFile, "config", "c", o.ConfigFile, "Path of the desired-state file (YAML or JSON)")
}

// Complete loads the desired-state file and the environment settings.
func (o *GlobalOptions) Complete(cmd *cobra.Command, args []string) error {
	desired, err := config.Load(o.ConfigFile)
	if err != nil {
		return err
	}
	settings, err := config.LoadSettings()
	if err != nil {
		return fmt.Errorf("reading environment: %w", err)
	}
	o.desired, o.settings = desired, settings
	return nil
}

func (o *GlobalOptions) Validate(args []string) error {
	if o.ConfigFile == "" {
		return fmt.Errorf("a desired-state file is required")
	}
	return nil
}

func (o *GlobalOptions) Sessions() *session.Manager {
	return session.NewManager(vsphere.NewDialer())
}

// connect opens a session on the configured vCenter for the read-only
// commands. The returned func closes it.
func (o *GlobalOptions) connect(ctx context.Context) (gateway.Gateway, func(), error) {
	sessions := o.Sessions()
	sess, err := sessions.Connect(ctx, o.desired.VCenter.Server, session.Credentials{
		Username: o.settings.VCenter.Username,
		Password: o.settings.VCenter.Password,
		Insecure: o.settings.VCenter.Insecure,
	}, o.settings.Connection.MaxAttempts, o.settings.Connection.RetryDelay)
	if err != nil {
		return nil, nil, err
	}
	return sess.Gateway(), func() { sessions.Disconnect(ctx) }, nil
}
