package core

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// skipError marks a row that is intentionally not imported.
type skipError struct {
	reason string
	err    error
}

func (e *skipError) Error() string { return e.reason }
func (e *skipError) Unwrap() error { return e.err }

func skipRow(reason string, err error) error {
	return &skipError{reason: reason, err: err}
}

// Importer loads CSV rows of one entity at a time. Keys written earlier in
// the run are remembered per table, so later rows and a dry run see them.
type Importer struct {
	store    Store
	resolver *Resolver
	hasher   *PasswordHasher
	dryRun   bool
	maxSize  int64
	loc      *time.Location
	logger   *slog.Logger
	seen     map[string]map[string]struct{}
}

// NewImporter creates an importer. A nil logger uses slog.Default.
func NewImporter(store Store, resolver *Resolver, hasher *PasswordHasher, opts ImportOptions, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Importer{
		store:    store,
		resolver: resolver,
		hasher:   hasher,
		dryRun:   opts.DryRun,
		maxSize:  fileLimit(opts.MaxFileSize),
		loc:      loc,
		logger:   logger,
		seen:     make(map[string]map[string]struct{}),
	}
}

// fileLimit maps a configured size to the limit applied: zero is the
// default, negative disables it.
func fileLimit(n int64) int64 {
	switch {
	case n == 0:
		return DefaultMaxFileSize
	case n < 0:
		return 0
	default:
		return n
	}
}

// entityRun is the state of one ImportEntity call.
type entityRun struct {
	*Importer
	store     Store
	def       EntityDefinition
	idx       HeaderIndex
	logger    *slog.Logger
	byColumn  map[string]ColumnMapping
	fkColumns map[string]ForeignKey
	added     []string

	hashed   int
	hashTime time.Duration
}

// ImportEntity streams source and imports every row of def. Row problems
// are counted in the result; a broken file or header sets Fatal. Outside a
// dry run the rows of one entity commit together, each row behind its own
// savepoint.
func (im *Importer) ImportEntity(ctx context.Context, def EntityDefinition, source io.Reader) (res EntityResult) {
	start := time.Now()
	res = EntityResult{Entity: def.Key, Table: def.Table, SourceFile: def.SourceFile}
	logger := im.logger.With("entity", def.Key)
	defer func() { res.Duration = time.Since(start) }()

	if def.HasCredential() {
		logger.Info("entity hashes credentials with bcrypt", "hash_cost", im.hasher.Cost())
	}

	run := &entityRun{
		Importer:  im,
		store:     im.store,
		def:       def,
		logger:    logger,
		byColumn:  make(map[string]ColumnMapping, len(def.Columns)),
		fkColumns: make(map[string]ForeignKey, len(def.ForeignKeys)),
	}
	for _, c := range def.Columns {
		run.byColumn[c.Column] = c
	}
	for _, fk := range def.ForeignKeys {
		run.fkColumns[fk.Column] = fk
	}

	defer run.logHashing()

	if im.dryRun {
		run.importRows(ctx, source, &res)
		return res
	}

	err := im.store.RunInTx(ctx, func(ctx context.Context, tx Store) error {
		run.store = tx
		run.importRows(ctx, source, &res)
		return ctx.Err()
	})
	if err != nil {
		run.rollback(&res, err)
	}

	return res
}

func (r *entityRun) logHashing() {
	if r.hashed == 0 {
		return
	}
	r.logger.Info("credentials hashed",
		"count", r.hashed,
		"per_row", r.hashTime/time.Duration(r.hashed),
		"hash_cost", r.hasher.Cost(),
	)
}

// rollback undoes the in-memory effects of an entity whose transaction did
// not commit.
func (r *entityRun) rollback(res *EntityResult, err error) {
	msg := fmt.Sprintf("transaction rolled back: %v", err)
	if res.Fatal != "" {
		msg = res.Fatal + "; " + msg
	}
	res.Fatal = msg
	res.Imported = 0
	res.Updated = 0

	seen := r.seen[r.def.Table]
	for _, k := range r.added {
		delete(seen, k)
	}
	if r.def.Lookup != nil {
		r.resolver.Forget(r.def.Key)
	}
	r.logger.Error("entity rolled back", "error", err)
}

func (r *entityRun) importRows(ctx context.Context, source io.Reader, res *EntityResult) {
	reader := csv.NewReader(WrapForStreaming(source, r.maxSize))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		res.Fatal = "empty file"
		return
	}
	if err != nil {
		res.Fatal = readFatal(err)
		return
	}

	r.idx, err = ValidateHeaders(header, r.def)
	if err != nil {
		res.Fatal = err.Error()
		return
	}

	for {
		if err := ctx.Err(); err != nil {
			res.Fatal = fmt.Sprintf("import cancelled: %v", err)
			return
		}

		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			res.Fatal = readFatal(err)
			return
		}
		if isEmptyRow(row) {
			continue
		}

		line, _ := reader.FieldPos(0)
		res.Total++

		updated, err := r.importRow(ctx, row)
		var skip *skipError
		switch {
		case err == nil && updated:
			res.Updated++
		case err == nil:
			res.Imported++
		case errors.As(err, &skip):
			res.skip(line, skip.reason, skip.err)
			r.logger.Debug("row skipped", "line", line, "reason", skip.reason)
		default:
			res.fail(line, err)
			r.logger.Warn("row failed", "line", line, "error", err)
		}
	}
}

func readFatal(err error) string {
	if errors.Is(err, ErrFileTooLarge) {
		return err.Error()
	}
	return fmt.Sprintf("invalid csv: %v", err)
}

// importRow runs one row through mapping, transforms, reference resolution,
// the existence check and the insert. updated is true when an existing row
// was filled in.
func (r *entityRun) importRow(ctx context.Context, row []string) (updated bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("internal error: %v", p)
		}
	}()

	if err := r.checkUniqueKeyCells(row); err != nil {
		return false, err
	}

	rec, err := r.transform(row)
	if err != nil {
		return false, err
	}

	if err := r.resolveForeignKeys(ctx, row, rec); err != nil {
		return false, err
	}

	for _, col := range r.def.UniqueKey {
		if _, ok := rec[col]; ok {
			continue
		}
		if m, mapped := r.byColumn[col]; mapped && m.Optional {
			continue
		}
		if fk, isFK := r.fkColumns[col]; isFK && fk.Optional {
			continue
		}
		return false, skipRow("missing unique key", fmt.Errorf("%s: %w", col, ErrMissingUniqueKey))
	}

	seenKey := recordKey(rec, r.def.UniqueKey)
	exists, err := r.exists(ctx, rec, seenKey)
	if err != nil {
		return false, err
	}
	if exists {
		return r.merge(ctx, rec)
	}
	if r.def.MergeOnly {
		return false, skipRow("matching row not found", fmt.Errorf("%s: %w", r.def.Table, ErrForeignKeyNotFound))
	}

	return false, r.insert(ctx, row, rec, seenKey)
}

// checkUniqueKeyCells skips rows whose identifying cells are empty before
// any transform runs.
func (r *entityRun) checkUniqueKeyCells(row []string) error {
	for _, col := range r.def.UniqueKey {
		if m, ok := r.byColumn[col]; ok {
			if !m.Optional && r.idx.Value(row, m) == "" {
				return skipRow("missing unique key", fmt.Errorf("%s: %w", m.Source, ErrMissingUniqueKey))
			}
			continue
		}
		if fk, ok := r.fkColumns[col]; ok && !fk.Optional {
			for _, src := range fk.Sources {
				if r.idx.Cell(row, src) == "" {
					return skipRow("missing unique key", fmt.Errorf("%s: %w", src, ErrMissingUniqueKey))
				}
			}
		}
	}
	return nil
}

// transform maps source cells into a record, applying coercions,
// normalizers and derived fields. Empty cells are omitted. Password columns
// stay plaintext until insert so rows that already exist are never hashed.
func (r *entityRun) transform(row []string) (Record, error) {
	rec := make(Record, len(r.def.Columns)+len(r.def.Derived)+len(r.def.ForeignKeys))

	for _, m := range r.def.Columns {
		raw := r.idx.Value(row, m)
		if raw != "" && m.Normalizer != nil && m.Type != FieldPassword {
			raw = m.Normalizer(raw)
		}
		if raw == "" {
			continue
		}

		v, err := Coerce(m, raw, r.loc)
		if err != nil {
			return nil, err
		}
		rec[m.Column] = v
	}

	for _, d := range r.def.Derived {
		v, ok, err := d.Derive(rec)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.Column, err)
		}
		if ok {
			rec[d.Column] = v
		}
	}

	return rec, nil
}

func (r *entityRun) resolveForeignKeys(ctx context.Context, row []string, rec Record) error {
	for _, fk := range r.def.ForeignKeys {
		parts, empty, err := r.resolver.Normalize(fk.Entity, r.idx.Cells(row, fk.Sources))
		if err != nil {
			return fmt.Errorf("%s: %w", strings.Join(fk.Sources, "/"), err)
		}
		if empty {
			if fk.Optional {
				continue
			}
			return skipRow("missing "+strings.Join(fk.Sources, "/"),
				fmt.Errorf("%s: %w", fk.Column, ErrMissingUniqueKey))
		}

		id, ok, err := r.resolver.Resolve(ctx, fk.Entity, parts)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", r.resolver.Noun(fk.Entity), err)
		}
		if !ok {
			noun := r.resolver.Noun(fk.Entity)
			return skipRow(noun+" not found",
				fmt.Errorf("%s %q: %w", noun, strings.Join(parts, " @ "), ErrForeignKeyNotFound))
		}
		rec[fk.Column] = id
	}
	return nil
}

func (r *entityRun) exists(ctx context.Context, rec Record, seenKey string) (bool, error) {
	if _, ok := r.seen[r.def.Table][seenKey]; ok {
		return true, nil
	}
	return r.store.Exists(ctx, r.def.Table, keyValues(rec, r.def.UniqueKey))
}

// merge handles a row whose unique key already exists. Entities with
// merge columns fill NULLs on the existing row; others skip it.
func (r *entityRun) merge(ctx context.Context, rec Record) (bool, error) {
	alreadyExists := skipRow("already exists", ErrAlreadyExists)
	if len(r.def.MergeColumns) == 0 {
		return false, alreadyExists
	}

	values := make(Record, len(r.def.MergeColumns))
	for _, col := range r.def.MergeColumns {
		if v, ok := rec[col]; ok {
			values[col] = v
		}
	}
	if len(values) == 0 {
		return false, alreadyExists
	}

	var changed bool
	err := r.store.Savepoint(ctx, func() error {
		var err error
		changed, err = r.store.FillMissing(ctx, r.def.Table, keyValues(rec, r.def.UniqueKey), values, !r.dryRun)
		return err
	})
	if err != nil {
		return false, err
	}
	if !changed {
		return false, alreadyExists
	}

	if r.dryRun {
		r.logger.Debug("would update", "columns", sortedColumns(values))
	}
	return true, nil
}

// hashCredentials replaces plaintext password columns of rec with hashes.
func (r *entityRun) hashCredentials(rec Record) error {
	for _, m := range r.def.Columns {
		if m.Type != FieldPassword {
			continue
		}
		plain, ok := rec.Text(m.Column)
		if !ok {
			continue
		}
		start := time.Now()
		hash, err := r.hasher.EnsureHashed(plain)
		if err != nil {
			return fmt.Errorf("%s: %w", m.Source, err)
		}
		if hash != plain {
			r.hashed++
			r.hashTime += time.Since(start)
		}
		rec[m.Column] = hash
	}
	return nil
}

func (r *entityRun) insert(ctx context.Context, row []string, rec Record, seenKey string) error {
	if err := r.hashCredentials(rec); err != nil {
		return err
	}

	var id int64
	if r.dryRun {
		id = r.resolver.PendingID()
		r.logger.Debug("would insert", "columns", sortedColumns(rec))
	} else {
		err := r.store.Savepoint(ctx, func() error {
			var err error
			id, err = r.store.Insert(ctx, r.def.Table, rec, r.def.IDColumn)
			return err
		})
		if IsUniqueViolation(err) {
			return skipRow("already exists", fmt.Errorf("%w: %v", ErrAlreadyExists, err))
		}
		if err != nil {
			return err
		}
	}

	seen, ok := r.seen[r.def.Table]
	if !ok {
		seen = make(map[string]struct{})
		r.seen[r.def.Table] = seen
	}
	seen[seenKey] = struct{}{}
	r.added = append(r.added, seenKey)

	if r.def.Lookup != nil {
		sources := make([]string, len(r.def.Lookup.KeyParts))
		for i, kp := range r.def.Lookup.KeyParts {
			sources[i] = kp.Source
		}
		parts, empty, err := r.resolver.Normalize(r.def.Key, r.idx.Cells(row, sources))
		if err == nil && !empty {
			r.resolver.Remember(r.def.Key, parts, id)
		}
	}

	return nil
}
