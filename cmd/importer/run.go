package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/seedimport/internal/core"
	"github.com/spf13/cobra"
)

type runOptions struct {
	dryRun     bool
	tables     []string
	dataDir    string
	reportPath string
}

func newRunCmd(a *app) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Import every configured entity from the data directory",
		Long: "Import every configured entity in dependency order. Rows that already exist\n" +
			"are skipped, so the command can be re-run safely.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("data-dir") {
				opts.dataDir = a.cfg.Import.DataDir
			}
			if !cmd.Flags().Changed("report") {
				opts.reportPath = a.cfg.Import.ReportPath
			}
			if !cmd.Flags().Changed("table") {
				opts.tables = a.cfg.Import.Entities
			}
			return a.runImport(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Validate and resolve everything without writing")
	cmd.Flags().StringSliceVar(&opts.tables, "table", nil, "Only import these entities (comma separated)")
	cmd.Flags().StringVar(&opts.dataDir, "data-dir", "", "Directory holding the CSV files (default from IMPORT_DATA_DIR)")
	cmd.Flags().StringVar(&opts.reportPath, "report", "", "Also write the report to a .json or .yaml file")

	return cmd
}

func (a *app) runImport(cmd *cobra.Command, opts runOptions) error {
	ctx := cmd.Context()

	if opts.reportPath != "" {
		if _, err := core.FormatFromPath(opts.reportPath); err != nil {
			return &exitError{code: exitFatal, err: err}
		}
	}

	hasher, err := core.NewPasswordHasher(a.cfg.Import.HashCost)
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}
	loc, err := a.cfg.Import.Location()
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}

	pool, err := a.connect(ctx)
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}
	defer pool.Close()

	orch := core.NewOrchestrator(core.NewPgStore(pool), hasher, a.logger)
	report, runErr := orch.Run(ctx, core.All(), core.RunOptions{
		DryRun:      opts.dryRun,
		Entities:    normalizeKeys(opts.tables),
		DataDir:     opts.dataDir,
		MaxFileSize: a.cfg.Import.MaxFileSize,
		Location:    loc,
	})

	if report != nil {
		if err := report.WriteText(cmd.OutOrStdout()); err != nil {
			return &exitError{code: exitFatal, err: fmt.Errorf("write report: %w", err)}
		}
		if opts.reportPath != "" {
			if err := report.WriteFile(opts.reportPath); err != nil {
				return &exitError{code: exitFatal, err: err}
			}
			a.logger.Info("report written", "path", opts.reportPath)
		}
	}

	if runErr != nil {
		var defErr *core.DefinitionError
		if errors.As(runErr, &defErr) {
			a.logger.Error("entity definitions are invalid", "problems", len(defErr.Problems))
		}
		return &exitError{code: exitFatal, err: runErr}
	}
	if report.HasFailures() {
		return &exitError{code: exitFailures}
	}
	return nil
}

func normalizeKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			out = append(out, k)
		}
	}
	return out
}
