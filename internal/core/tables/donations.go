package tables

import "github.com/JonMunkholm/seedimport/internal/core"

// registerDonations loads gifts. A donation without an email is
// anonymous; one with an unknown email is skipped.
func registerDonations() {
	core.Register(core.EntityDefinition{
		Key:        "donations",
		Label:      "Donations",
		SourceFile: "donations.csv",
		Table:      "donations",
		IDColumn:   "donation_id",
		UniqueKey:  []string{"amount", "participant_id", "donated_on"},
		Columns: []core.ColumnMapping{
			{Source: "amount", Column: "amount", Type: core.FieldCurrency, Required: true},
			{Source: "donated_on", Column: "donated_on", Type: core.FieldDate, Optional: true},
			{Source: "payment_method", Column: "payment_method", Type: core.FieldText},
			{Source: "note", Column: "note", Type: core.FieldText},
		},
		ForeignKeys: []core.ForeignKey{
			{Column: "participant_id", Sources: []string{"email"}, Entity: "participants", Optional: true},
		},
	})
}
