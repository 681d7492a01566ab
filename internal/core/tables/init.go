// Package tables registers all entity definitions with the core registry.
// Import this package to ensure all entities are registered.
package tables

// Registration order is the tie-break of the import order, so every
// entity is registered from this single init.
func init() {
	registerParticipants()
	registerEventTemplates()
	registerAttendanceStatuses()
	registerPrograms()
	registerEventOccurrences()
	registerRegistrations()
	registerDonations()
	registerMilestones()
	registerProgramEnrollments()
	registerSurveys()
}
