package admin

import (
	"context"
	"errors"
	"testing"

	"github.com/JonMunkholm/seedimport/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execRecorder is a core.DBTX that records statements.
type execRecorder struct {
	sql []string
	err error
}

func (e *execRecorder) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	e.sql = append(e.sql, sql)
	return pgconn.NewCommandTag("TRUNCATE TABLE"), e.err
}

func (e *execRecorder) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (e *execRecorder) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return nil
}

func testDefs() []core.EntityDefinition {
	return []core.EntityDefinition{
		{Key: "surveys", Table: "registrations", After: []string{"registrations"}},
		{Key: "registrations", Table: "registrations", ForeignKeys: []core.ForeignKey{{Entity: "participants"}}},
		{Key: "donations", Table: "donations", ForeignKeys: []core.ForeignKey{{Entity: "participants"}}},
		{Key: "participants", Table: "participants"},
	}
}

func TestTables(t *testing.T) {
	tables, err := Tables(testDefs())
	require.NoError(t, err)
	assert.Equal(t, []string{"donations", "registrations", "participants"}, tables)
}

func TestTables_Empty(t *testing.T) {
	_, err := Tables(nil)
	assert.ErrorIs(t, err, ErrNothingToReset)
}

func TestStatement(t *testing.T) {
	tests := []struct {
		name   string
		tables []string
		want   string
	}{
		{
			name:   "single table",
			tables: []string{"participants"},
			want:   `TRUNCATE TABLE "participants" RESTART IDENTITY`,
		},
		{
			name:   "several tables",
			tables: []string{"donations", "participants"},
			want:   `TRUNCATE TABLE "donations", "participants" RESTART IDENTITY`,
		},
		{
			name:   "quotes escaped",
			tables: []string{`bad"name`},
			want:   `TRUNCATE TABLE "bad""name" RESTART IDENTITY`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Statement(tt.tables))
		})
	}
}

func TestResetEntities(t *testing.T) {
	db := &execRecorder{}
	r := &Reset{DB: db}

	tables, err := r.ResetEntities(context.Background(), testDefs())
	require.NoError(t, err)
	assert.Len(t, tables, 3)
	require.Len(t, db.sql, 1, "one statement")
	assert.Equal(t, `TRUNCATE TABLE "donations", "registrations", "participants" RESTART IDENTITY`, db.sql[0])
}

func TestResetEntities_Error(t *testing.T) {
	db := &execRecorder{err: errors.New("cannot truncate a table referenced in a foreign key constraint")}
	r := &Reset{DB: db}

	_, err := r.ResetEntities(context.Background(), testDefs())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reset donations, registrations, participants")
}
