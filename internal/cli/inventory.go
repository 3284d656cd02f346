package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thoas/go-funk"
	"github.com/xuri/excelize/v2"
	"sigs.k8s.io/yaml"

	"github.com/ecst/vbuild/internal/storage"
)

const (
	jsonFormat  = "json"
	yamlFormat  = "yaml"
	tableFormat = "table"
	xlsxFormat  = "xlsx"

	inventorySheet = "Disks"
)

var (
	legalOutputTypes = []string{jsonFormat, yamlFormat, tableFormat, xlsxFormat}
	inventoryHeaders = []string{"Host", "Device", "Capacity (GB)", "Media", "Status"}
)

type InventoryOptions struct {
	GlobalOptions

	Output   string
	XlsxFile string
}

func DefaultInventoryOptions() *InventoryOptions {
	return &InventoryOptions{
		GlobalOptions: DefaultGlobalOptions(),
		Output:        tableFormat,
		XlsxFile:      "disk-inventory.xlsx",
	}
}

func NewCmdInventory() *cobra.Command {
	o := DefaultInventoryOptions()
	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "List the vSAN eligible and claimed disks of every cluster host",
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

func (o *InventoryOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.StringVarP(&o.Output, "output", "o", o.Output, fmt.Sprintf("Output format. One of: (%s).", strings.Join(legalOutputTypes, ", ")))
	fs.StringVar(&o.XlsxFile, "xlsx-file", o.XlsxFile, "Workbook written when the output format is xlsx")
}

func (o *InventoryOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if !funk.ContainsString(legalOutputTypes, o.Output) {
		return fmt.Errorf("output format must be one of %s", strings.Join(legalOutputTypes, ", "))
	}
	return nil
}

func (o *InventoryOptions) Run(ctx context.Context, args []string) error {
	gw, disconnect, err := o.connect(ctx)
	if err != nil {
		return err
	}
	defer disconnect()

	rows, err := storage.NewEngine(gw).Inventory(ctx, o.desired.Datacenter.Name, o.desired.Cluster.Name)
	if err != nil {
		return fmt.Errorf("reading disk inventory: %w", err)
	}
	return printInventory(os.Stdout, rows, o.Output, o.XlsxFile)
}

func printInventory(out io.Writer, rows []storage.InventoryRow, output, xlsxFile string) error {
	switch output {
	case jsonFormat:
		marshalled, err := json.Marshal(rows)
		if err != nil {
			return fmt.Errorf("marshalling inventory: %w", err)
		}
		fmt.Fprintf(out, "%s\n", string(marshalled))
	case yamlFormat:
		marshalled, err := yaml.Marshal(rows)
		if err != nil {
			return fmt.Errorf("marshalling inventory: %w", err)
		}
		fmt.Fprintf(out, "%s\n", string(marshalled))
	case xlsxFormat:
		if err := writeInventoryWorkbook(xlsxFile, rows); err != nil {
			return err
		}
		fmt.Fprintf(out, "inventory written to %s\n", xlsxFile)
	default:
		printInventoryTable(out, rows)
	}
	return nil
}

func printInventoryTable(out io.Writer, rows []storage.InventoryRow) {
	w := tabwriter.NewWriter(out, 0, 8, 1, '\t', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(inventoryHeaders, "\t")))
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\n", r.Host, r.CanonicalName, r.CapacityGB, r.Media, r.Status)
	}
	w.Flush()
}

func writeInventoryWorkbook(path string, rows []storage.InventoryRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), inventorySheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	if err := f.SetSheetRow(inventorySheet, "A1", &inventoryHeaders); err != nil {
		return fmt.Errorf("writing headers: %w", err)
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{r.Host, r.CanonicalName, r.CapacityGB, string(r.Media), r.Status}
		if err := f.SetSheetRow(inventorySheet, cell, &values); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}
