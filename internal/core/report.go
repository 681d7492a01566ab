package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"
)

// DryRunBanner heads the console report of a dry run.
const DryRunBanner = "DRY RUN: no data was written"

// maxDetailRows caps how many skipped/failed rows the console lists per entity.
const maxDetailRows = 20

// Totals sums the entity results of a run.
type Totals struct {
	Total    int `json:"total" yaml:"total"`
	Imported int `json:"imported" yaml:"imported"`
	Updated  int `json:"updated" yaml:"updated"`
	Skipped  int `json:"skipped" yaml:"skipped"`
	Failed   int `json:"failed" yaml:"failed"`
	Missing  int `json:"missingFiles" yaml:"missing_files"`
	Fatal    int `json:"fatalEntities" yaml:"fatal_entities"`
}

// Report is the outcome of one run.
type Report struct {
	RunID     string         `json:"runId" yaml:"run_id"`
	DryRun    bool           `json:"dryRun" yaml:"dry_run"`
	StartedAt time.Time      `json:"startedAt" yaml:"started_at"`
	Duration  time.Duration  `json:"durationNs" yaml:"duration"`
	Entities  []EntityResult `json:"entities" yaml:"entities"`
	Totals    Totals         `json:"totals" yaml:"totals"`
}

func (r *Report) add(res EntityResult) {
	r.Entities = append(r.Entities, res)
	r.Totals.Total += res.Total
	r.Totals.Imported += res.Imported
	r.Totals.Updated += res.Updated
	r.Totals.Skipped += res.Skipped
	r.Totals.Failed += res.Failed
	if res.Missing {
		r.Totals.Missing++
	}
	if res.Fatal != "" {
		r.Totals.Fatal++
	}
}

func (r *Report) finish() {
	r.Duration = time.Since(r.StartedAt)
}

// HasFailures reports whether any row failed or any entity aborted.
// Skipped rows and missing files are not failures.
func (r *Report) HasFailures() bool {
	return r.Totals.Failed > 0 || r.Totals.Fatal > 0
}

// Entity returns the result for an entity key.
func (r *Report) Entity(key string) (EntityResult, bool) {
	for _, e := range r.Entities {
		if e.Entity == key {
			return e, true
		}
	}
	return EntityResult{}, false
}

func entityStatus(e EntityResult) string {
	switch {
	case e.Missing:
		return "missing file"
	case e.Fatal != "":
		return "aborted: " + e.Fatal
	case e.Failed > 0:
		return "errors"
	default:
		return "ok"
	}
}

// WriteText renders the console report.
func (r *Report) WriteText(w io.Writer) error {
	if r.DryRun {
		if _, err := fmt.Fprintln(w, DryRunBanner); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "Run %s (%s)\n\n", r.RunID, r.Duration.Round(time.Millisecond)); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ENTITY\tFILE\tTOTAL\tIMPORTED\tUPDATED\tSKIPPED\tFAILED\tSTATUS")
	for _, e := range r.Entities {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			e.Entity, e.SourceFile, e.Total, e.Imported, e.Updated, e.Skipped, e.Failed, entityStatus(e))
	}
	fmt.Fprintf(tw, "TOTAL\t\t%d\t%d\t%d\t%d\t%d\t\n",
		r.Totals.Total, r.Totals.Imported, r.Totals.Updated, r.Totals.Skipped, r.Totals.Failed)
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, e := range r.Entities {
		if len(e.Errors) == 0 && e.Fatal == "" {
			continue
		}
		if _, err := fmt.Fprintf(w, "\n%s:\n", e.Entity); err != nil {
			return err
		}
		if e.Fatal != "" {
			if msg := MapError(errors.New(e.Fatal)); msg.Code != defaultMessage.Code {
				fmt.Fprintf(w, "  aborted: %s\n", msg)
			}
		}
		for i, re := range e.Errors {
			if i == maxDetailRows {
				fmt.Fprintf(w, "  ... and %d more\n", len(e.Errors)-maxDetailRows)
				break
			}
			fmt.Fprintf(w, "  line %d: %s: %s [%s]\n", re.Line, re.Outcome, re.Reason, re.Code)
		}
		for _, code := range distinctCodes(e.Errors) {
			fmt.Fprintf(w, "  %s\n", MessageForCode(code))
		}
	}

	return nil
}

// distinctCodes returns the codes of errs in first-seen order.
func distinctCodes(errs []RowError) []string {
	seen := make(map[string]bool)
	var codes []string
	for _, re := range errs {
		if re.Code == "" || seen[re.Code] {
			continue
		}
		seen[re.Code] = true
		codes = append(codes, re.Code)
	}
	return codes
}

// ReportFormat selects the machine-readable encoding.
type ReportFormat string

const (
	FormatJSON ReportFormat = "json"
	FormatYAML ReportFormat = "yaml"
)

// FormatFromPath picks the encoding from a file extension.
func FormatFromPath(path string) (ReportFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("report %q: extension must be .json, .yaml or .yml", path)
	}
}

// Encode writes the report in format.
func (r *Report) Encode(w io.Writer, format ReportFormat) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// WriteFile writes the report to path, choosing the encoding by extension.
func (r *Report) WriteFile(path string) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}

	if err := r.Encode(f, format); err != nil {
		f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	return f.Close()
}
