package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ehr/reconciler/internal/batch"
	"github.com/ehr/reconciler/internal/domain/comparison"
	"github.com/ehr/reconciler/internal/export"
)

func batchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Compare every patient of a YAML manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			manifestPath, err := requireFlag(cmd, "manifest")
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if out, _ := cmd.Flags().GetString("out"); out != "" {
				cfg.OutputDir = out
			}
			if cmd.Flags().Changed("width") {
				cfg.BatchWidth, _ = cmd.Flags().GetInt("width")
			}
			logger := newLogger(cfg, os.Stderr)

			m, err := batch.LoadManifest(manifestPath)
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
			res, err := batch.NewRunner(svc, cfg.BatchWidth, logger).Run(ctx, m)
			if err != nil {
				return err
			}

			files, err := export.WriteAll(cfg.OutputDir, res.Comparisons)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Run %s: %d compared, %d failed\n", res.RunID, len(res.Comparisons), len(res.Failures))
			fmt.Fprintf(w, "Summary: %s\n", files.Summary)
			fmt.Fprintf(w, "Patient reports: %d in %s\n", len(files.Patients), cfg.OutputDir)
			for _, f := range res.Failures {
				fmt.Fprintf(w, "FAILED %s: %s\n", f.PatientID, f.Err)
			}
			if len(res.Failures) > 0 {
				return fmt.Errorf("%d patient(s) failed", len(res.Failures))
			}
			return nil
		},
	}
	cmd.Flags().String("manifest", "", "YAML manifest listing patients and bundle files")
	cmd.Flags().String("out", "", "Output directory (default OUTPUT_DIR)")
	cmd.Flags().Int("width", 0, "Patients compared concurrently (default BATCH_WIDTH)")
	return cmd
}
