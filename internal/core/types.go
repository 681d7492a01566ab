package core

import (
	"context"
	"io/fs"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// FieldType represents the expected data type for a CSV field.
type FieldType int

const (
	FieldText FieldType = iota
	FieldEnum
	FieldDate
	FieldTimestamp
	FieldNumeric
	FieldCurrency
	FieldInt
	FieldPassword
)

// ColumnMapping maps one CSV column to one destination column.
type ColumnMapping struct {
	Source     string              // CSV header name (matched case-insensitively)
	Column     string              // Destination column name
	Type       FieldType           // Coercion applied before insert
	Required   bool                // Column must exist in the CSV header
	Optional   bool                // May be empty even when part of the unique key
	EnumValues []string            // Valid values for FieldEnum
	Normalizer func(string) string // Applied to the cleaned cell before coercion; not to passwords
}

// Record is one mapped row: destination column -> value.
// Columns whose source cell was empty are absent, not nil.
type Record map[string]any

// DeriveFunc computes a destination value from an already mapped record.
// Returning ok=false omits the column.
type DeriveFunc func(rec Record) (value any, ok bool, err error)

// DerivedField is a destination column computed from other columns.
type DerivedField struct {
	Column string
	Derive DeriveFunc
}

// ForeignKey resolves a natural key found in the CSV into the surrogate id
// of another entity.
type ForeignKey struct {
	Column   string   // Destination column receiving the surrogate id
	Sources  []string // CSV columns forming the natural key, in LookupSpec.KeyParts order
	Entity   string   // Key of the referenced entity
	Optional bool     // Empty natural key stores NULL instead of skipping the row
}

// KeyPart is one component of a natural key.
type KeyPart struct {
	// Source is the CSV column of the entity's own file holding this part.
	// It is used to remember rows inserted during the run.
	Source string

	// Expr is a SQL expression over LookupSpec.From yielding the canonical
	// text form of this part.
	Expr string

	// Normalize converts a CSV cell into the same canonical text form.
	// Nil means strings.TrimSpace.
	Normalize func(string) (string, error)

	// Timestamp parts are parsed in the run's time zone and compared in
	// CanonicalTimestamp form. Normalize is ignored for them.
	Timestamp bool
}

// LookupSpec describes how other entities find rows of this entity by
// natural key.
type LookupSpec struct {
	Noun     string    // Singular noun used in skip reasons: "participant"
	From     string    // FROM clause, may contain joins
	IDExpr   string    // SQL expression selecting the surrogate id
	KeyParts []KeyPart // Natural key components
}

// EntityDefinition contains everything needed to import one CSV file into
// one destination table.
type EntityDefinition struct {
	Key        string // Unique identifier and --table value: "participants"
	Label      string // Display name: "Participants"
	SourceFile string // File name inside the data directory
	Table      string // Destination table
	IDColumn   string // Surrogate key column returned by INSERT

	// UniqueKey lists destination columns that identify a row for
	// duplicate suppression. Columns backed by a ForeignKey are allowed.
	UniqueKey []string

	Columns     []ColumnMapping
	Derived     []DerivedField
	ForeignKeys []ForeignKey

	// Lookup is set when other entities reference this one.
	Lookup *LookupSpec

	// MergeColumns are filled on an existing row when they are NULL there,
	// instead of skipping the row as a duplicate.
	MergeColumns []string

	// MergeOnly skips rows that match no existing row instead of
	// inserting them.
	MergeOnly bool

	// After lists entity keys that must be imported before this one in
	// addition to the referenced entities of ForeignKeys.
	After []string

	order int
}

// HasCredential reports whether any column is hashed before insert.
func (d EntityDefinition) HasCredential() bool {
	for _, c := range d.Columns {
		if c.Type == FieldPassword {
			return true
		}
	}
	return false
}

// HeaderIndex maps column names (lowercase) to their position in the CSV row.
type HeaderIndex map[string]int

// Outcome classifies a row that was not imported.
type Outcome string

const (
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// RowError describes one row that was skipped or failed.
type RowError struct {
	Line    int     `json:"line" yaml:"line"`
	Outcome Outcome `json:"outcome" yaml:"outcome"`
	Reason  string  `json:"reason" yaml:"reason"`
	Code    string  `json:"code" yaml:"code"`
}

// EntityResult contains the final result of importing one entity.
type EntityResult struct {
	Entity     string        `json:"entity" yaml:"entity"`
	Table      string        `json:"table" yaml:"table"`
	SourceFile string        `json:"sourceFile" yaml:"source_file"`
	Total      int           `json:"total" yaml:"total"`
	Imported   int           `json:"imported" yaml:"imported"`
	Updated    int           `json:"updated" yaml:"updated"`
	Skipped    int           `json:"skipped" yaml:"skipped"`
	Failed     int           `json:"failed" yaml:"failed"`
	Errors     []RowError    `json:"errors,omitempty" yaml:"errors,omitempty"`
	Missing    bool          `json:"missing,omitempty" yaml:"missing,omitempty"`
	Fatal      string        `json:"fatal,omitempty" yaml:"fatal,omitempty"`
	Duration   time.Duration `json:"durationNs" yaml:"duration"`
}

// HasFailures reports whether any row failed or the entity aborted.
func (r EntityResult) HasFailures() bool {
	return r.Failed > 0 || r.Fatal != ""
}

func (r *EntityResult) skip(line int, reason string, err error) {
	r.Skipped++
	r.Errors = append(r.Errors, RowError{
		Line:    line,
		Outcome: OutcomeSkipped,
		Reason:  reason,
		Code:    MapError(err).Code,
	})
}

func (r *EntityResult) fail(line int, err error) {
	r.Failed++
	r.Errors = append(r.Errors, RowError{
		Line:    line,
		Outcome: OutcomeFailed,
		Reason:  err.Error(),
		Code:    MapError(err).Code,
	})
}

// RunOptions controls a single import run.
type RunOptions struct {
	DryRun   bool
	Entities []string // Restrict the run to these entity keys (empty = all)
	DataDir  string   // Directory holding the source CSV files

	// Files overrides DataDir as the source of CSV files.
	Files fs.FS

	MaxFileSize int64          // Per-file byte limit; zero uses DefaultMaxFileSize, negative disables it
	Location    *time.Location // Zone of timestamps without an offset (UTC when nil)
}

// ImportOptions configures an Importer.
type ImportOptions struct {
	DryRun      bool
	MaxFileSize int64
	Location    *time.Location
}
