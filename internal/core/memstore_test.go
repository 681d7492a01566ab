package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing/fstest"

	"github.com/jackc/pgx/v5/pgconn"
)

// memLookup tells memStore how to compute the natural key of a stored row.
type memLookup struct {
	table    string
	idColumn string
	key      func(Record) []string
}

// memStore is an in-memory Store. Transactions and savepoints snapshot the
// tables and restore them on error.
type memStore struct {
	tables  map[string][]Record
	lookups map[string]memLookup // by LookupSpec.Noun
	nextID  int64

	pingErr   error
	insertErr func(table string, rec Record) error
	commitErr error

	inserts int
	updates int
	loads   int
	finds   int
}

func newMemStore() *memStore {
	return &memStore{
		tables:  make(map[string][]Record),
		lookups: make(map[string]memLookup),
	}
}

func (s *memStore) Ping(ctx context.Context) error { return s.pingErr }

func (s *memStore) rows(table string) []Record { return s.tables[table] }

func matches(row Record, key []KeyValue) bool {
	for _, kv := range key {
		if canonicalValue(row[kv.Column]) != canonicalValue(kv.Value) {
			return false
		}
	}
	return true
}

func (s *memStore) Exists(ctx context.Context, table string, key []KeyValue) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	for _, row := range s.tables[table] {
		if matches(row, key) {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) Insert(ctx context.Context, table string, rec Record, idColumn string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s.insertErr != nil {
		if err := s.insertErr(table, rec); err != nil {
			return 0, err
		}
	}

	row := make(Record, len(rec)+1)
	for k, v := range rec {
		row[k] = v
	}
	var id int64
	if idColumn != "" {
		s.nextID++
		id = s.nextID
		row[idColumn] = id
	}
	s.tables[table] = append(s.tables[table], row)
	s.inserts++
	return id, nil
}

func (s *memStore) FillMissing(ctx context.Context, table string, key []KeyValue, values Record, apply bool) (bool, error) {
	changed := false
	for _, row := range s.tables[table] {
		if !matches(row, key) {
			continue
		}
		for col, v := range values {
			if existing, ok := row[col]; ok && existing != nil {
				continue
			}
			changed = true
			if apply {
				row[col] = v
			}
		}
	}
	if changed && apply {
		s.updates++
	}
	return changed, nil
}

func (s *memStore) lookup(spec LookupSpec) (memLookup, error) {
	l, ok := s.lookups[spec.Noun]
	if !ok {
		return memLookup{}, fmt.Errorf("no lookup for %s", spec.Noun)
	}
	return l, nil
}

func (s *memStore) LoadLookup(ctx context.Context, spec LookupSpec) (map[string]int64, error) {
	l, err := s.lookup(spec)
	if err != nil {
		return nil, err
	}
	s.loads++

	out := make(map[string]int64)
	for _, row := range s.tables[l.table] {
		out[joinKey(l.key(row))] = row[l.idColumn].(int64)
	}
	return out, nil
}

func (s *memStore) FindLookup(ctx context.Context, spec LookupSpec, parts []string) (int64, bool, error) {
	l, err := s.lookup(spec)
	if err != nil {
		return 0, false, err
	}
	s.finds++

	want := joinKey(parts)
	for _, row := range s.tables[l.table] {
		if joinKey(l.key(row)) == want {
			return row[l.idColumn].(int64), true, nil
		}
	}
	return 0, false, nil
}

func (s *memStore) snapshot() (map[string][]Record, int64) {
	copyTables := make(map[string][]Record, len(s.tables))
	for t, rows := range s.tables {
		cp := make([]Record, len(rows))
		for i, row := range rows {
			r := make(Record, len(row))
			for k, v := range row {
				r[k] = v
			}
			cp[i] = r
		}
		copyTables[t] = cp
	}
	return copyTables, s.nextID
}

func (s *memStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	tables, next := s.snapshot()
	if err := fn(ctx, s); err != nil {
		s.tables, s.nextID = tables, next
		return err
	}
	if s.commitErr != nil {
		s.tables, s.nextID = tables, next
		return s.commitErr
	}
	return nil
}

func (s *memStore) Savepoint(ctx context.Context, fn func() error) error {
	tables, next := s.snapshot()
	if err := fn(); err != nil {
		s.tables, s.nextID = tables, next
		return err
	}
	return nil
}

var errUniqueViolation = &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}

// Fixture entities: a small participant/event/donation schema.

func lowerKey(s string) (string, error) { return strings.ToLower(strings.TrimSpace(s)), nil }

func participantsDef() EntityDefinition {
	return EntityDefinition{
		Key:        "participants",
		Label:      "Participants",
		SourceFile: "participants.csv",
		Table:      "participants",
		IDColumn:   "participant_id",
		UniqueKey:  []string{"email"},
		Columns: []ColumnMapping{
			{Source: "email", Column: "email", Type: FieldText, Required: true, Normalizer: strings.ToLower},
			{Source: "first_name", Column: "first_name", Type: FieldText},
			{Source: "role", Column: "role", Type: FieldEnum, EnumValues: []string{"participant", "admin"}},
			{Source: "password", Column: "password_hash", Type: FieldPassword},
			{Source: "created_at", Column: "created_at", Type: FieldTimestamp},
		},
		Lookup: &LookupSpec{
			Noun:     "participant",
			From:     "participants p",
			IDExpr:   "p.participant_id",
			KeyParts: []KeyPart{{Source: "email", Expr: "lower(p.email)", Normalize: lowerKey}},
		},
	}
}

func eventsDef() EntityDefinition {
	return EntityDefinition{
		Key:        "events",
		Label:      "Events",
		SourceFile: "events.csv",
		Table:      "events",
		IDColumn:   "event_id",
		UniqueKey:  []string{"name"},
		Columns: []ColumnMapping{
			{Source: "name", Column: "name", Type: FieldText, Required: true},
			{Source: "capacity", Column: "capacity", Type: FieldInt},
		},
		Lookup: &LookupSpec{
			Noun:     "event",
			From:     "events e",
			IDExpr:   "e.event_id",
			KeyParts: []KeyPart{{Source: "name", Expr: "lower(e.name)", Normalize: lowerKey}},
		},
	}
}

func donationsDef() EntityDefinition {
	return EntityDefinition{
		Key:        "donations",
		Label:      "Donations",
		SourceFile: "donations.csv",
		Table:      "donations",
		IDColumn:   "donation_id",
		UniqueKey:  []string{"amount", "participant_id", "donated_on"},
		Columns: []ColumnMapping{
			{Source: "amount", Column: "amount", Type: FieldCurrency, Required: true},
			{Source: "donated_on", Column: "donated_on", Type: FieldDate, Optional: true},
		},
		ForeignKeys: []ForeignKey{
			{Column: "participant_id", Sources: []string{"email"}, Entity: "participants", Optional: true},
		},
	}
}

var registrationFKs = []ForeignKey{
	{Column: "participant_id", Sources: []string{"email"}, Entity: "participants"},
	{Column: "event_id", Sources: []string{"event_name"}, Entity: "events"},
}

func registrationsDef() EntityDefinition {
	return EntityDefinition{
		Key:         "registrations",
		Label:       "Registrations",
		SourceFile:  "registrations.csv",
		Table:       "registrations",
		IDColumn:    "registration_id",
		UniqueKey:   []string{"participant_id", "event_id"},
		Columns:     []ColumnMapping{{Source: "status", Column: "status", Type: FieldText}},
		ForeignKeys: registrationFKs,
	}
}

func surveysDef() EntityDefinition {
	return EntityDefinition{
		Key:        "surveys",
		Label:      "Surveys",
		SourceFile: "surveys.csv",
		Table:      "registrations",
		UniqueKey:  []string{"participant_id", "event_id"},
		Columns: []ColumnMapping{
			{Source: "score", Column: "score", Type: FieldNumeric},
			{Source: "comments", Column: "comments", Type: FieldText},
		},
		ForeignKeys:  registrationFKs,
		MergeColumns: []string{"score", "comments"},
		MergeOnly:    true,
		After:        []string{"registrations"},
	}
}

// fixtureDefs lists the fixture entities deliberately out of dependency order.
func fixtureDefs() []EntityDefinition {
	return []EntityDefinition{surveysDef(), donationsDef(), registrationsDef(), eventsDef(), participantsDef()}
}

// newFixtureStore returns a memStore that knows the fixture lookups.
func newFixtureStore() *memStore {
	s := newMemStore()
	s.lookups["participant"] = memLookup{
		table:    "participants",
		idColumn: "participant_id",
		key:      func(r Record) []string { return []string{strings.ToLower(r["email"].(string))} },
	}
	s.lookups["event"] = memLookup{
		table:    "events",
		idColumn: "event_id",
		key:      func(r Record) []string { return []string{strings.ToLower(r["name"].(string))} },
	}
	return s
}

func csvFile(lines ...string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(strings.Join(lines, "\n") + "\n")}
}

func errorReasons(res EntityResult) []string {
	out := make([]string, len(res.Errors))
	for i, e := range res.Errors {
		out[i] = e.Reason
	}
	return out
}

var errBoom = errors.New("boom")
