package tables

import (
	"fmt"

	"github.com/JonMunkholm/seedimport/internal/core"
	"github.com/shopspring/decimal"
)

// RegistrationStatuses are the values of registrations.registration_status.
var RegistrationStatuses = []string{"registered", "waitlisted", "cancelled"}

// NPS buckets derived from the recommendation score.
const (
	NPSPromoter  = "Promoter"
	NPSPassive   = "Passive"
	NPSDetractor = "Detractor"
)

var (
	npsPromoterMin = decimal.NewFromInt(9)
	npsPassiveMin  = decimal.NewFromInt(7)
	npsMax         = decimal.NewFromInt(10)
)

// NPSBucket classifies a 0-10 recommendation score.
func NPSBucket(score decimal.Decimal) (string, error) {
	if score.IsNegative() || score.GreaterThan(npsMax) {
		return "", fmt.Errorf("invalid number %s: recommendation score must be 0-10", score)
	}
	switch {
	case score.GreaterThanOrEqual(npsPromoterMin):
		return NPSPromoter, nil
	case score.GreaterThanOrEqual(npsPassiveMin):
		return NPSPassive, nil
	default:
		return NPSDetractor, nil
	}
}

func npsBucket(rec core.Record) (any, bool, error) {
	score, ok := rec.Decimal("survey_recommendation_score")
	if !ok {
		return nil, false, nil
	}
	bucket, err := NPSBucket(score)
	if err != nil {
		return nil, false, err
	}
	return bucket, true, nil
}

// registrationKeys identify a registration by participant email and event
// occurrence (template name, start).
var registrationKeys = []core.ForeignKey{
	{Column: "participant_id", Sources: []string{"email"}, Entity: "participants"},
	{Column: "event_occurrence_id", Sources: []string{"event_name", "event_start"}, Entity: "event_occurrences"},
}

// surveyColumns are shared by registrations.csv and surveys.csv.
var surveyColumns = []core.ColumnMapping{
	{Source: "satisfaction_score", Column: "survey_satisfaction_score", Type: core.FieldNumeric},
	{Source: "usefulness_score", Column: "survey_usefulness_score", Type: core.FieldNumeric},
	{Source: "instructor_score", Column: "survey_instructor_score", Type: core.FieldNumeric},
	{Source: "recommendation_score", Column: "survey_recommendation_score", Type: core.FieldNumeric},
	{Source: "overall_score", Column: "survey_overall_score", Type: core.FieldNumeric},
	{Source: "comments", Column: "survey_comments", Type: core.FieldText},
	{Source: "submitted_at", Column: "survey_submitted_at", Type: core.FieldTimestamp},
}

var surveyDerived = []core.DerivedField{
	{Column: "survey_nps_bucket", Derive: npsBucket},
}

func registerRegistrations() {
	columns := []core.ColumnMapping{
		{Source: "registration_status", Column: "registration_status", Type: core.FieldEnum, EnumValues: RegistrationStatuses},
		{Source: "registered_at", Column: "registered_at", Type: core.FieldTimestamp},
		{Source: "check_in_at", Column: "check_in_at", Type: core.FieldTimestamp},
	}
	columns = append(columns, surveyColumns...)

	fks := append([]core.ForeignKey{}, registrationKeys...)
	fks = append(fks, core.ForeignKey{
		Column: "attendance_status_id", Sources: []string{"attendance_status"}, Entity: "attendance_statuses", Optional: true,
	})

	core.Register(core.EntityDefinition{
		Key:         "registrations",
		Label:       "Registrations",
		SourceFile:  "registrations.csv",
		Table:       "registrations",
		IDColumn:    "registration_id",
		UniqueKey:   []string{"participant_id", "event_occurrence_id"},
		Columns:     columns,
		Derived:     surveyDerived,
		ForeignKeys: fks,
	})
}

// registerSurveys fills survey answers into registrations that already
// exist. Columns that are set on the registration are left alone.
func registerSurveys() {
	merge := make([]string, 0, len(surveyColumns)+len(surveyDerived))
	for _, c := range surveyColumns {
		merge = append(merge, c.Column)
	}
	for _, d := range surveyDerived {
		merge = append(merge, d.Column)
	}

	core.Register(core.EntityDefinition{
		Key:          "surveys",
		Label:        "Survey responses",
		SourceFile:   "surveys.csv",
		Table:        "registrations",
		UniqueKey:    []string{"participant_id", "event_occurrence_id"},
		Columns:      surveyColumns,
		Derived:      surveyDerived,
		ForeignKeys:  registrationKeys,
		MergeColumns: merge,
		MergeOnly:    true,
		After:        []string{"registrations"},
	})
}
