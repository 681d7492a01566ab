package tables

import "github.com/JonMunkholm/seedimport/internal/core"

// EnrollmentStatuses are the values of program_enrollments.status.
var EnrollmentStatuses = []string{"active", "completed", "withdrawn"}

func registerPrograms() {
	core.Register(core.EntityDefinition{
		Key:        "programs",
		Label:      "Programs",
		SourceFile: "programs.csv",
		Table:      "programs",
		IDColumn:   "program_id",
		UniqueKey:  []string{"name"},
		Columns: []core.ColumnMapping{
			{Source: "name", Column: "name", Type: core.FieldText, Required: true, Normalizer: NormalizeTitle},
			{Source: "description", Column: "description", Type: core.FieldText},
			{Source: "monthly_fee", Column: "monthly_fee", Type: core.FieldCurrency},
			{Source: "age_range", Column: "age_range", Type: core.FieldText},
		},
		Lookup: &core.LookupSpec{
			Noun:   "program",
			From:   "programs g",
			IDExpr: "g.program_id",
			KeyParts: []core.KeyPart{
				{Source: "name", Expr: "g.name", Normalize: TitleKey},
			},
		},
	})
}

func registerProgramEnrollments() {
	core.Register(core.EntityDefinition{
		Key:        "program_enrollments",
		Label:      "Program enrollments",
		SourceFile: "program_enrollments.csv",
		Table:      "program_enrollments",
		IDColumn:   "program_enrollment_id",
		UniqueKey:  []string{"participant_id", "program_id"},
		Columns: []core.ColumnMapping{
			{Source: "enrolled_on", Column: "enrolled_on", Type: core.FieldDate},
			{Source: "status", Column: "status", Type: core.FieldEnum, EnumValues: EnrollmentStatuses},
		},
		ForeignKeys: []core.ForeignKey{
			{Column: "participant_id", Sources: []string{"email"}, Entity: "participants"},
			{Column: "program_id", Sources: []string{"program_name"}, Entity: "programs"},
		},
	})
}
