package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDefinitions_Fixture(t *testing.T) {
	assert.NoError(t, ValidateDefinitions(fixtureDefs()))
}

func TestValidateDefinitions_Problems(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(defs []EntityDefinition) []EntityDefinition
		want   string
	}{
		{
			name: "duplicate key",
			mutate: func(defs []EntityDefinition) []EntityDefinition {
				return append(defs, eventsDef())
			},
			want: "events: duplicate entity key",
		},
		{
			name: "missing key",
			mutate: func(defs []EntityDefinition) []EntityDefinition {
				return append(defs, EntityDefinition{Table: "staff"})
			},
			want: `entity with table "staff" has no key`,
		},
		{
			name: "missing table",
			mutate: func(defs []EntityDefinition) []EntityDefinition {
				defs[3].Table = ""
				return defs
			},
			want: "events: missing table",
		},
		{
			name: "missing source file",
			mutate: func(defs []EntityDefinition) []EntityDefinition {
				defs[3].SourceFile = ""
				return defs
			},
			want: "events: missing source file",
		},
		{
			name: "enum without values",
			mutate: func(defs []EntityDefinition) []EntityDefinition {
				defs[4].Columns[2].EnumValues = nil
				return defs
			},
			want: `participants: enum column "role" has no values`,
		},
		{
			name: "column produced twice",
			mutate: func(defs []EntityDefinition) []EntityDefinition {
				defs[3].Columns = append(defs[3].Columns, ColumnMapping{Source: "title", Column: "name"})
				return defs
			},
			want: `events: column "name" produced by both source name and source title`,
		},
		{
			name: "derived without function",
			mutate: func(defs []EntityDefinition) []EntityDefinition {
				defs[3].Derived = []DerivedField{{Column: "slug"}}
				return defs
			},
			want: `events: derived column "slug" has no function`,
		},
		{
			name: "unknown referenced entity",
			mutate: func(defs []EntityDefinition) []EntityDefinition {
				defs[1].ForeignKeys[0].Entity = "donors"
				return defs
			},
			want: `donations: foreign key "participant_id" references unknown entity "donors"`,
		},
		{
			name: "referenced entity without lookup",
			mutate: func(defs []EntityDefinition) []EntityDefinition {
				defs[3].Lookup = nil
				return defs
			},
			want: `registrations: foreign key "event_id" references "events" which declares no lookup`,
		},
		{
			name: "source count mismatch",
			mutate: func(defs []EntityDefinition) []EntityDefinition {
				defs[1].ForeignKeys[0].Sources = []string{"email", "phone"}
				return defs
			},
			want: `donations: foreign key "participant_id" has 2 source columns, "participants" lookup needs 1`,
		},
		{
			name: "unique key not produced",
			mutate: func(defs []EntityDefinition) []EntityDefinition {
				defs[3].UniqueKey = []string{"name", "starts_at"}
				return defs
			},
			want: `events: unique key column "starts_at" is not produced by any mapping`,
		},
		{
			name: "merge column in unique key",
			mutate: func(defs []EntityDefinition) []EntityDefinition {
				defs[0].MergeColumns = append(defs[0].MergeColumns, "event_id")
				return defs
			},
			want: `surveys: merge column "event_id" is part of the unique key`,
		},
		{
			name: "merge only without merge columns",
			mutate: func(defs []EntityDefinition) []EntityDefinition {
				defs[0].MergeColumns = nil
				return defs
			},
			want: "surveys: merge-only entity has no merge columns",
		},
		{
			name: "lookup without id column",
			mutate: func(defs []EntityDefinition) []EntityDefinition {
				defs[3].IDColumn = ""
				return defs
			},
			want: "events: lookup needs an id column",
		},
		{
			name: "unknown After dependency",
			mutate: func(defs []EntityDefinition) []EntityDefinition {
				defs[0].After = []string{"checkins"}
				return defs
			},
			want: `surveys: depends on unknown entity "checkins"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDefinitions(tt.mutate(fixtureDefs()))

			var defErr *DefinitionError
			require.ErrorAs(t, err, &defErr)
			assert.Contains(t, defErr.Problems, tt.want)
		})
	}
}

func TestValidateDefinitions_ReportsEveryProblem(t *testing.T) {
	defs := fixtureDefs()
	defs[3].Table = ""
	defs[4].SourceFile = ""

	var defErr *DefinitionError
	require.ErrorAs(t, ValidateDefinitions(defs), &defErr)
	assert.Len(t, defErr.Problems, 2)
	assert.Contains(t, defErr.Error(), "invalid entity definitions:\n  - ")
}

func TestValidateDefinitions_Cycle(t *testing.T) {
	defs := fixtureDefs()
	defs[4].After = []string{"surveys"}

	var defErr *DefinitionError
	require.ErrorAs(t, ValidateDefinitions(defs), &defErr)
	require.Len(t, defErr.Problems, 1)
	assert.Contains(t, defErr.Problems[0], "dependency cycle")
}

func TestValidateHeaders(t *testing.T) {
	t.Run("case insensitive", func(t *testing.T) {
		idx, err := ValidateHeaders([]string{"EMAIL", "Event_Name", "Status"}, registrationsDef())
		require.NoError(t, err)
		assert.Equal(t, 1, idx["event_name"])
	})

	t.Run("lists every missing column", func(t *testing.T) {
		_, err := ValidateHeaders([]string{"status"}, registrationsDef())
		require.Error(t, err)
		assert.Equal(t, "missing required column(s): email, event_name", err.Error())
	})

	t.Run("optional reference not required", func(t *testing.T) {
		_, err := ValidateHeaders([]string{"amount"}, donationsDef())
		assert.NoError(t, err)
	})

	t.Run("lookup key parts required", func(t *testing.T) {
		_, err := ValidateHeaders([]string{"capacity"}, eventsDef())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "name")
	})
}

func TestFieldTypeString(t *testing.T) {
	tests := []struct {
		ft   FieldType
		want string
	}{
		{FieldText, "text"},
		{FieldEnum, "enum"},
		{FieldDate, "date"},
		{FieldTimestamp, "timestamp"},
		{FieldNumeric, "numeric"},
		{FieldCurrency, "currency"},
		{FieldInt, "integer"},
		{FieldPassword, "password"},
		{FieldType(99), "value"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.ft.String())
	}
}
