// Package status renders a read-only view of the vCenter inventory.
package status

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ecst/vbuild/internal/gateway"
)

func Collect(ctx context.Context, gw gateway.Status) (*gateway.Summary, error) {
	s, err := gw.Summary(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory summary: %w", err)
	}
	return s, nil
}

func enabled(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

// Print writes the summary as aligned tables.
func Print(out io.Writer, s *gateway.Summary) error {
	w := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)

	fmt.Fprintf(w, "vCenter:\t%s\t%s\n", s.Server, s.Version)
	fmt.Fprintf(w, "Datacenters:\t%d\n\n", len(s.Datacenters))

	fmt.Fprintln(w, "CLUSTER\tDATACENTER\tHA\tDRS\tVSAN\tHOSTS")
	for _, c := range s.Clusters {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n", c.Name, c.Datacenter, enabled(c.HAEnabled), enabled(c.DRSEnabled), enabled(c.VsanEnabled), c.Hosts)
	}

	fmt.Fprintln(w, "\nHOST\tCLUSTER\tSTATE\tMAINTENANCE")
	for _, h := range s.Hosts {
		cluster := h.Cluster
		if cluster == "" {
			cluster = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", h.Name, cluster, h.ConnectionState, h.InMaintenance)
	}

	fmt.Fprintln(w, "\nSWITCH\tDATACENTER\tVERSION\tMTU\tHOSTS\tPORTGROUPS")
	for _, sw := range s.Switches {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n", sw.Name, sw.Datacenter, sw.Version, sw.MTU, sw.Hosts, sw.PortGroups)
	}
	return w.Flush()
}
