package tables

import "github.com/JonMunkholm/seedimport/internal/core"

// startsAtKey renders an occurrence start the way core.CanonicalTimestamp does.
const startsAtKey = `to_char(o.starts_at AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"')`

func registerEventTemplates() {
	core.Register(core.EntityDefinition{
		Key:        "event_templates",
		Label:      "Event templates",
		SourceFile: "event_templates.csv",
		Table:      "event_templates",
		IDColumn:   "event_template_id",
		UniqueKey:  []string{"name"},
		Columns: []core.ColumnMapping{
			{Source: "name", Column: "name", Type: core.FieldText, Required: true, Normalizer: NormalizeTitle},
			{Source: "event_type", Column: "event_type", Type: core.FieldText},
			{Source: "description", Column: "description", Type: core.FieldText},
			{Source: "recurrence_pattern", Column: "recurrence_pattern", Type: core.FieldText},
			{Source: "default_capacity", Column: "default_capacity", Type: core.FieldInt},
		},
		Lookup: &core.LookupSpec{
			Noun:   "event template",
			From:   "event_templates t",
			IDExpr: "t.event_template_id",
			KeyParts: []core.KeyPart{
				{Source: "name", Expr: "t.name", Normalize: TitleKey},
			},
		},
	})
}

func registerAttendanceStatuses() {
	core.Register(core.EntityDefinition{
		Key:        "attendance_statuses",
		Label:      "Attendance statuses",
		SourceFile: "attendance_statuses.csv",
		Table:      "attendance_statuses",
		IDColumn:   "attendance_status_id",
		UniqueKey:  []string{"name"},
		Columns: []core.ColumnMapping{
			{Source: "name", Column: "name", Type: core.FieldText, Required: true, Normalizer: NormalizeTitle},
			{Source: "description", Column: "description", Type: core.FieldText},
		},
		Lookup: &core.LookupSpec{
			Noun:   "attendance status",
			From:   "attendance_statuses a",
			IDExpr: "a.attendance_status_id",
			KeyParts: []core.KeyPart{
				{Source: "name", Expr: "a.name", Normalize: TitleKey},
			},
		},
	})
}

func registerEventOccurrences() {
	core.Register(core.EntityDefinition{
		Key:        "event_occurrences",
		Label:      "Event occurrences",
		SourceFile: "event_occurrences.csv",
		Table:      "event_occurrences",
		IDColumn:   "event_occurrence_id",
		UniqueKey:  []string{"event_template_id", "starts_at"},
		Columns: []core.ColumnMapping{
			{Source: "starts_at", Column: "starts_at", Type: core.FieldTimestamp, Required: true},
			{Source: "ends_at", Column: "ends_at", Type: core.FieldTimestamp},
			{Source: "location", Column: "location", Type: core.FieldText},
			{Source: "capacity", Column: "capacity", Type: core.FieldInt},
			{Source: "registration_deadline", Column: "registration_deadline", Type: core.FieldTimestamp},
		},
		ForeignKeys: []core.ForeignKey{
			{Column: "event_template_id", Sources: []string{"event_name"}, Entity: "event_templates"},
		},
		Lookup: &core.LookupSpec{
			Noun:   "event occurrence",
			From:   "event_occurrences o JOIN event_templates t ON t.event_template_id = o.event_template_id",
			IDExpr: "o.event_occurrence_id",
			KeyParts: []core.KeyPart{
				{Source: "event_name", Expr: "t.name", Normalize: TitleKey},
				{Source: "starts_at", Expr: startsAtKey, Timestamp: true},
			},
		},
	})
}
