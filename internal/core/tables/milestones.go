package tables

import "github.com/JonMunkholm/seedimport/internal/core"

func registerMilestones() {
	core.Register(core.EntityDefinition{
		Key:        "milestones",
		Label:      "Milestones",
		SourceFile: "milestones.csv",
		Table:      "milestones",
		IDColumn:   "milestone_id",
		UniqueKey:  []string{"participant_id", "title"},
		Columns: []core.ColumnMapping{
			{Source: "title", Column: "title", Type: core.FieldText, Required: true, Normalizer: NormalizeTitle},
			{Source: "category", Column: "category", Type: core.FieldText},
			{Source: "achieved_on", Column: "achieved_on", Type: core.FieldDate},
		},
		ForeignKeys: []core.ForeignKey{
			{Column: "participant_id", Sources: []string{"email"}, Entity: "participants"},
		},
	})
}
