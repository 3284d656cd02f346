package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ecst/vbuild/internal/cli"
	"github.com/ecst/vbuild/internal/config"
	"github.com/ecst/vbuild/pkg/log"
	"github.com/ecst/vbuild/pkg/version"
)

func main() {
	level := "info"
	if settings, err := config.LoadSettings(); err == nil {
		level = settings.LogLevel
	}
	flush := log.Setup(level, zap.String("version", version.Get().GitVersion))

	command := NewVbuildCommand()
	err := command.Execute()
	flush()
	if err != nil {
		os.Exit(1)
	}
}

func NewVbuildCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vbuild [flags] [options]",
		Short: "vbuild builds a vSphere environment from a desired-state file.",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
			os.Exit(1)
		},
	}
	cmd.AddCommand(cli.NewCmdDeploy())
	cmd.AddCommand(cli.NewCmdInventory())
	cmd.AddCommand(cli.NewCmdStatus())
	cmd.AddCommand(cli.NewCmdClaimDisks())
	cmd.AddCommand(cli.NewCmdWait())
	cmd.AddCommand(cli.NewCmdVersion())

	return cmd
}
