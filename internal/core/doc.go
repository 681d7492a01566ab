// Package core provides the business logic for CSV seed imports.
//
// This package holds all import logic independent of the command line.
// It can be driven by the importer CLI, an admin job or tests without
// modification.
//
// # Architecture
//
// The package is organized around a few key concepts:
//
//   - Entity Definitions: Registered via the registry, each entity maps one
//     CSV file onto one table: columns, field types, unique key, foreign keys.
//   - Resolver: Turns natural keys (an email, an event name and start) into
//     surrogate ids, with one cache per referenced entity.
//   - Importer: Streams one file, transforms rows and inserts the ones that
//     are not already present.
//   - Orchestrator: Runs every entity in dependency order and collects a
//     [Report].
//
// # Entity Registry
//
// Entities are registered at init time using [Register]:
//
//	core.Register(core.EntityDefinition{
//	    Key:        "participants",
//	    SourceFile: "participants.csv",
//	    Table:      "participants",
//	    IDColumn:   "participant_id",
//	    UniqueKey:  []string{"email"},
//	    Columns: []core.ColumnMapping{
//	        {Source: "email", Column: "email", Required: true},
//	        {Source: "password", Column: "password_hash", Type: core.FieldPassword},
//	    },
//	})
//
// Definitions are checked by [ValidateDefinitions] before any file is read.
//
// # Idempotence
//
// A row is inserted only when no row with the same unique key exists, in
// the database or earlier in the same file. Missing key values compare as
// NULL. Running the same files twice changes nothing. Credentials that are
// already bcrypt hashes are stored as they are.
//
// # Transactions
//
// Each entity is imported in one transaction and each row in a savepoint,
// so a failing row is rolled back alone and a failing commit leaves nothing
// behind. A dry run performs every read and no write.
//
// # Error Handling
//
// Row problems are classified with [MapError]; see error_messages.go for
// the code table.
package core
