package tables

import (
	"strings"

	"github.com/JonMunkholm/seedimport/internal/core"
)

// ParticipantRoles are the values of participants.role.
var ParticipantRoles = []string{"participant", "admin"}

func registerParticipants() {
	core.Register(core.EntityDefinition{
		Key:        "participants",
		Label:      "Participants",
		SourceFile: "participants.csv",
		Table:      "participants",
		IDColumn:   "participant_id",
		UniqueKey:  []string{"email"},
		Columns: []core.ColumnMapping{
			{Source: "email", Column: "email", Type: core.FieldText, Required: true, Normalizer: NormalizeEmail},
			{Source: "first_name", Column: "first_name", Type: core.FieldText, Normalizer: NormalizeTitle},
			{Source: "last_name", Column: "last_name", Type: core.FieldText, Normalizer: NormalizeTitle},
			{Source: "date_of_birth", Column: "date_of_birth", Type: core.FieldDate},
			{Source: "role", Column: "role", Type: core.FieldEnum, EnumValues: ParticipantRoles, Normalizer: NormalizeRole},
			{Source: "password", Column: "password_hash", Type: core.FieldPassword},
			{Source: "phone", Column: "phone", Type: core.FieldText, Normalizer: NormalizePhone},
			{Source: "city", Column: "city", Type: core.FieldText},
			{Source: "state", Column: "state", Type: core.FieldText, Normalizer: NormalizeUsState},
			{Source: "zip", Column: "zip", Type: core.FieldText, Normalizer: NormalizeZip},
			{Source: "school_or_employer", Column: "school_or_employer", Type: core.FieldText},
			{Source: "field_of_interest", Column: "field_of_interest", Type: core.FieldText},
			{Source: "created_at", Column: "created_at", Type: core.FieldTimestamp},
		},
		Derived: []core.DerivedField{
			{Column: "display_name", Derive: displayName},
		},
		Lookup: &core.LookupSpec{
			Noun:   "participant",
			From:   "participants p",
			IDExpr: "p.participant_id",
			KeyParts: []core.KeyPart{
				{Source: "email", Expr: "lower(p.email)", Normalize: EmailKey},
			},
		},
	})
}

// displayName joins first and last name.
func displayName(rec core.Record) (any, bool, error) {
	first, _ := rec.Text("first_name")
	last, _ := rec.Text("last_name")
	name := strings.TrimSpace(first + " " + last)
	return name, name != "", nil
}
