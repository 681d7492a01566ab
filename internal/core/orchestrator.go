package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
)

// Orchestrator runs a full import: connectivity check, definition
// validation, dependency ordering, cache warm-up and one Importer pass per
// entity.
type Orchestrator struct {
	store  Store
	hasher *PasswordHasher
	logger *slog.Logger
}

// NewOrchestrator creates an orchestrator. A nil logger uses slog.Default.
func NewOrchestrator(store Store, hasher *PasswordHasher, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{store: store, hasher: hasher, logger: logger}
}

// Run imports defs. The returned error is non-nil only for problems that
// stop the run as a whole: an unreachable database, invalid definitions,
// an unknown entity filter, or cancellation. Row and file problems are in
// the report.
func (o *Orchestrator) Run(ctx context.Context, defs []EntityDefinition, opts RunOptions) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		DryRun:    opts.DryRun,
		StartedAt: time.Now().UTC(),
	}
	logger := o.logger.With("run_id", report.RunID)

	if err := o.store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("database unavailable: %w", err)
	}

	if err := ValidateDefinitions(defs); err != nil {
		return nil, err
	}

	selected, err := Select(defs, opts.Entities)
	if err != nil {
		return nil, err
	}
	ordered, err := Ordered(selected)
	if err != nil {
		return nil, err
	}

	resolver := NewResolver(o.store, defs, opts.Location)
	for _, key := range sharedReferences(ordered) {
		n, err := resolver.Warm(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("warm %s lookup: %w", key, err)
		}
		logger.Debug("lookup warmed", "entity", key, "rows", n)
	}

	files := opts.Files
	if files == nil {
		dir := opts.DataDir
		if dir == "" {
			dir = "."
		}
		files = os.DirFS(dir)
	}

	if opts.DryRun {
		logger.Info("dry run, nothing will be written")
	}
	logger.Info("import started", "entities", len(ordered), "data_dir", opts.DataDir)

	importer := NewImporter(o.store, resolver, o.hasher, ImportOptions{
		DryRun:      opts.DryRun,
		MaxFileSize: opts.MaxFileSize,
		Location:    opts.Location,
	}, logger)
	for _, def := range ordered {
		if err := ctx.Err(); err != nil {
			report.finish()
			return report, fmt.Errorf("import interrupted: %w", err)
		}
		report.add(o.importFile(ctx, importer, files, def, logger))
	}

	resolver.LogStats(logger)
	report.finish()

	logger.Info("import finished",
		"total", report.Totals.Total,
		"imported", report.Totals.Imported,
		"updated", report.Totals.Updated,
		"skipped", report.Totals.Skipped,
		"failed", report.Totals.Failed,
		"duration", report.Duration,
	)

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("import interrupted: %w", err)
	}
	return report, nil
}

func (o *Orchestrator) importFile(ctx context.Context, im *Importer, files fs.FS, def EntityDefinition, logger *slog.Logger) EntityResult {
	logger = logger.With("entity", def.Key, "file", def.SourceFile)
	res := EntityResult{Entity: def.Key, Table: def.Table, SourceFile: def.SourceFile}

	f, err := files.Open(def.SourceFile)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("source file not found, skipping entity")
		res.Missing = true
		return res
	}
	if err != nil {
		res.Fatal = fmt.Sprintf("open %s: %v", def.SourceFile, err)
		logger.Error("open source file", "error", err)
		return res
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil && im.maxSize > 0 && info.Size() > im.maxSize {
		res.Fatal = fmt.Sprintf("file too large: %d bytes exceeds %d", info.Size(), im.maxSize)
		logger.Error("source file too large", "bytes", info.Size(), "limit", im.maxSize)
		return res
	}

	logger.Info("importing entity")
	res = im.ImportEntity(ctx, def, f)

	if res.Fatal != "" {
		logger.Error("entity aborted", "reason", res.Fatal, "rows", res.Total)
	} else {
		logger.Info("entity finished",
			"total", res.Total,
			"imported", res.Imported,
			"updated", res.Updated,
			"skipped", res.Skipped,
			"failed", res.Failed,
			"duration", res.Duration,
		)
	}
	return res
}

// sharedReferences returns entities referenced by more than one foreign key
// across defs, in first-reference order.
func sharedReferences(defs []EntityDefinition) []string {
	counts := make(map[string]int)
	var order []string
	for _, def := range defs {
		for _, fk := range def.ForeignKeys {
			if counts[fk.Entity] == 0 {
				order = append(order, fk.Entity)
			}
			counts[fk.Entity]++
		}
	}

	var shared []string
	for _, k := range order {
		if counts[k] > 1 {
			shared = append(shared, k)
		}
	}
	return shared
}
