package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thoas/go-funk"

	"github.com/ecst/vbuild/pkg/version"
)

type VersionOptions struct {
	Output string
}

func DefaultVersionOptions() *VersionOptions {
	return &VersionOptions{
		Output: "",
	}
}

func NewCmdVersion() *cobra.Command {
	o := DefaultVersionOptions()
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print vbuild version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Validate(args); err != nil {
				return err
			}
			return o.Run(cmd.Context(), args)
		},
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *VersionOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.Output, "output", "o", o.Output, "Output format. One of: (json).")
}

func (o *VersionOptions) Validate(args []string) error {
	if o.Output != "" && !funk.ContainsString([]string{jsonFormat}, o.Output) {
		return fmt.Errorf("output format must be one of %s", strings.Join([]string{jsonFormat}, ", "))
	}
	return nil
}

func (o *VersionOptions) Run(ctx context.Context, args []string) error {
	versionInfo := version.Get()
	if o.Output == jsonFormat {
		marshalled, err := json.Marshal(versionInfo)
		if err != nil {
			return fmt.Errorf("marshalling version: %w", err)
		}
		fmt.Printf("%s\n", string(marshalled))
		return nil
	}
	fmt.Printf("vbuild Version: %s\n", versionInfo.String())
	return nil
}
