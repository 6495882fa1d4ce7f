package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ehr/reconciler/internal/batch"
	"github.com/ehr/reconciler/internal/domain/comparison"
	"github.com/ehr/reconciler/internal/export"
)

func compareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare two bundle files of one patient",
		Long: `Compare reads one FHIR Bundle per source, classifies every record as
common or unique and prints the report. Markdown is the default output.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			pathA, err := requireFlag(cmd, "a")
			if err != nil {
				return err
			}
			pathB, err := requireFlag(cmd, "b")
			if err != nil {
				return err
			}
			patientID, _ := cmd.Flags().GetString("patient")
			nowText, _ := cmd.Flags().GetString("now")
			categories, _ := cmd.Flags().GetStringSlice("category")
			format, _ := cmd.Flags().GetString("format")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg, os.Stderr)

			now, err := comparison.ParseAnchor(nowText)
			if err != nil {
				return err
			}
			cats, err := comparison.ParseCategories(categories)
			if err != nil {
				return err
			}
			a, err := batch.ReadBundleFile(pathA)
			if err != nil {
				return err
			}
			b, err := batch.ReadBundleFile(pathB)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, repo, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			if pool != nil {
				defer pool.Close()
			}

			svc := comparison.NewService(repo, logger)
			out, err := svc.ComparePatient(ctx, comparison.PatientInput{
				PatientID:  patientID,
				Now:        now,
				A:          a,
				B:          b,
				Categories: cats,
			})
			if err != nil {
				return err
			}
			return writeComparison(cmd.OutOrStdout(), out, format)
		},
	}
	cmd.Flags().String("a", "", "Bundle file of source A")
	cmd.Flags().String("b", "", "Bundle file of source B")
	cmd.Flags().String("patient", "patient", "Patient identifier used in the report")
	cmd.Flags().String("now", "", "Anchor for the last-year window (default: current time)")
	cmd.Flags().StringSlice("category", nil, "Category to compare; repeat for several (default: all)")
	cmd.Flags().String("format", "markdown", "Output format: markdown, json or csv")
	return cmd
}

func writeComparison(w io.Writer, out *comparison.PatientComparison, format string) error {
	switch format {
	case "markdown", "md":
		_, err := io.WriteString(w, out.Markdown)
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "csv":
		return export.WriteCSV(w, out.Rows())
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
