package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/opticfit/internal/catalog"
	"github.com/JonMunkholm/opticfit/internal/core"
)

func newImportCmd(a *app) *cobra.Command {
	var preview bool

	cmd := &cobra.Command{
		Use:   "import <table> <file.csv>",
		Short: "Upsert a CSV file into a catalog table",
		Long: fmt.Sprintf(`Upsert a CSV file into a catalog table, matching rows by name.

Load parent tables first: %s.`, strings.Join(catalog.ImportOrder, ", ")),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, path := args[0], filepath.Clean(args[1])
			svc, err := a.catalog(cmd.Context())
			if err != nil {
				return err
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			limit := a.cfg.Import.MaxFileSize
			out := cmd.OutOrStdout()
			if preview {
				res, err := svc.PreviewCSV(cmd.Context(), table, f, limit)
				if err != nil {
					return err
				}
				printPreview(out, res)
				return nil
			}

			res, err := svc.ImportCSV(cliContext(cmd.Context()), table, f, limit)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s: %d rows, %d inserted, %d updated, %d skipped\n",
				res.Table, res.Total(), res.Inserted, res.Updated, len(res.Skipped))
			for _, s := range res.Skipped {
				fmt.Fprintf(out, "  skipped: %s\n", s)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&preview, "preview", false, "Report what the import would change without writing")
	return cmd
}

func printPreview(w io.Writer, res *core.PreviewResponse) {
	s := res.Summary
	fmt.Fprintf(w, "%s: %d rows, %d new, %d updates, %d errors, %d duplicates in file\n",
		res.Table, s.TotalRows, s.NewRows, s.UpdateRows, s.ErrorRows, s.DuplicateInFile)
	for _, d := range res.UpdateDiffs {
		if len(d.Changed) > 0 {
			fmt.Fprintf(w, "  row %d %q changes %s\n", d.Row, d.Name, strings.Join(d.Changed, ", "))
		}
	}
	for _, e := range res.ErrorSamples {
		fmt.Fprintf(w, "  row %d: %s\n", e.Row, e.Reason)
	}
}

func newExportCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:       "export <table>",
		Short:     "Write a catalog table as CSV",
		Args:      cobra.ExactArgs(1),
		ValidArgs: catalog.CatalogTables,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.catalog(cmd.Context())
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			n, err := svc.ExportCSV(cmd.Context(), args[0], &buf)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(buf.Bytes())
				return err
			}
			if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d rows to %s\n", n, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to file instead of stdout")
	return cmd
}

func newTemplateCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "template <table>",
		Short:       "Print the CSV header an import of table expects",
		Args:        cobra.ExactArgs(1),
		ValidArgs:   catalog.ImportOrder,
		Annotations: map[string]string{"config": "none"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return core.Template(args[0], cmd.OutOrStdout())
		},
	}
}

// newTable returns a tabwriter in the layout every listing uses.
func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}
