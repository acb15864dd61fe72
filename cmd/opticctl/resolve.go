package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/opticfit/internal/catalog"
	"github.com/JonMunkholm/opticfit/internal/core"
)

func newResolveCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "resolve <model-id>",
		Short: "List the optics that fit a handgun model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid model id %q", args[0])
			}
			svc, err := a.catalog(cmd.Context())
			if err != nil {
				return err
			}
			res, err := svc.Resolve(cmd.Context(), id)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printResolution(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the resolution as JSON")
	return cmd
}

func printResolution(w io.Writer, res *core.Resolution) {
	if res.Model == nil {
		fmt.Fprintln(w, "model not found")
		return
	}
	title := res.Model.Name
	if res.Make != nil {
		title = res.Make.Name + " " + title
	}
	fmt.Fprintf(w, "%s (%s)\n", title, res.Model.FitType.Label())
	if res.Empty() {
		fmt.Fprintln(w, "no compatible optics")
		return
	}

	tw := newTable(w)
	for _, g := range res.FootprintGroups {
		fmt.Fprintf(tw, "\n%s footprint\t\n", g.Footprint.Name)
		writeOptics(tw, g.Optics)
	}
	for _, g := range res.PlateGroups {
		fmt.Fprintf(tw, "\n%s plate (%s)\t\n", g.Plate.Name, g.Footprint.Name)
		writeOptics(tw, g.Optics)
	}
	if len(res.DirectOptics) > 0 {
		fmt.Fprintf(tw, "\ndirect mount\t\n")
		writeOptics(tw, res.DirectOptics)
	}
	tw.Flush()
}

func writeOptics(w io.Writer, optics []catalog.Optic) {
	if len(optics) == 0 {
		fmt.Fprintf(w, "  (none)\t\n")
		return
	}
	for _, o := range optics {
		price := "-"
		if o.MSRP != nil {
			price = fmt.Sprintf("$%.2f", *o.MSRP)
		}
		fmt.Fprintf(w, "  %s\t%s\n", o.Name, price)
	}
}
