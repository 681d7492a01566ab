package core

// # Error Codes Reference
//
// Every skipped or failed row in a report carries a code so operators can
// grep logs and reports for one class of problem.
//
// # Import Outcomes (IMP001-IMP099)
//
//	IMP001 - Missing unique key: a column identifying the row is empty
//	IMP002 - Reference not found: a natural key did not resolve
//	IMP003 - Already exists: the row is a duplicate of an existing row
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key
//	DB002 - Unique constraint
//	DB003 - Foreign key
//	DB004 - Connection refused
//	DB005 - Connection reset
//	DB006 - Timeout
//	DB007 - Deadlock
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Invalid date
//	VAL002 - Invalid number
//	VAL003 - Required field
//	VAL004 - Missing column
//	VAL005 - Column not found
//	VAL006 - Invalid enum
//	VAL007 - Invalid timestamp
//	VAL008 - Invalid integer
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large
//	FILE002 - Invalid CSV
//	FILE003 - Encoding error
//	FILE004 - File not found
//	FILE005 - Empty file
//
// ERR000 is the fallback for anything unrecognized.

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for row and run outcomes. Match with errors.Is.
var (
	ErrMissingUniqueKey   = errors.New("missing unique key")
	ErrForeignKeyNotFound = errors.New("reference not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrEmptyCredential    = errors.New("empty credential")
	ErrUnknownEntity      = errors.New("unknown entity")
)

// UserMessage contains a user-friendly error message with action guidance.
type UserMessage struct {
	Message string // What went wrong (user-friendly)
	Action  string // What the operator should do
	Code    string // Error code for support reference
}

// sentinelMessages is checked with errors.Is before the pattern table.
var sentinelMessages = []struct {
	err error
	msg UserMessage
}{
	{
		err: ErrMissingUniqueKey,
		msg: UserMessage{
			Message: "Row is missing a column that identifies it",
			Action:  "Fill in the key columns or remove the row",
			Code:    "IMP001",
		},
	},
	{
		err: ErrForeignKeyNotFound,
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "Import the referenced entity first or fix the reference",
			Code:    "IMP002",
		},
	},
	{
		err: ErrAlreadyExists,
		msg: UserMessage{
			Message: "Row already exists",
			Action:  "No action needed",
			Code:    "IMP003",
		},
	},
}

// errorPatterns maps error substrings (lowercase) to user-friendly messages.
// Order matters: first match wins, so more specific patterns come first.
var errorPatterns = []struct {
	pattern string
	msg     UserMessage
}{
	// Database errors
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this key already exists",
			Action:  "Review the source file for duplicates",
			Code:    "DB001",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Check for duplicate entries in your CSV",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Check for duplicate entries in your CSV",
			Code:    "DB002",
		},
	},
	{
		pattern: "foreign key constraint",
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "Ensure parent records are imported first",
			Code:    "DB003",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Check DATABASE_URL and that the server is running",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Re-run the import; finished rows are skipped",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Re-run the import; finished rows are skipped",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadline exceeded",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Re-run the import; finished rows are skipped",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Re-run the import",
			Code:    "DB007",
		},
	},

	// Validation errors
	{
		pattern: "invalid date",
		msg: UserMessage{
			Message: "Invalid date format detected",
			Action:  "Use YYYY-MM-DD, MM/DD/YYYY, or Jan 15, 2024",
			Code:    "VAL001",
		},
	},
	{
		pattern: "invalid number",
		msg: UserMessage{
			Message: "Invalid number format detected",
			Action:  "Use a plain decimal such as 1234.56",
			Code:    "VAL002",
		},
	},
	{
		pattern: "required field",
		msg: UserMessage{
			Message: "Required field is empty",
			Action:  "Ensure all required columns have values",
			Code:    "VAL003",
		},
	},
	{
		pattern: "missing required column",
		msg: UserMessage{
			Message: "Required column is missing from CSV",
			Action:  "Check that all required columns are present in your file",
			Code:    "VAL004",
		},
	},
	{
		pattern: "column not found",
		msg: UserMessage{
			Message: "Expected column not found in CSV",
			Action:  "Verify column headers match the entity definition",
			Code:    "VAL005",
		},
	},
	{
		pattern: "invalid enum",
		msg: UserMessage{
			Message: "Value is not in the allowed list",
			Action:  "Check the allowed values for this field",
			Code:    "VAL006",
		},
	},
	{
		pattern: "invalid timestamp",
		msg: UserMessage{
			Message: "Invalid date/time format detected",
			Action:  "Use YYYY-MM-DD HH:MM or an RFC 3339 timestamp",
			Code:    "VAL007",
		},
	},
	{
		pattern: "invalid integer",
		msg: UserMessage{
			Message: "Invalid whole number detected",
			Action:  "Use digits only, without decimals",
			Code:    "VAL008",
		},
	},

	// File errors
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the file or raise IMPORT_MAX_FILE_SIZE",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure file is comma-separated with balanced quotes",
			Code:    "FILE002",
		},
	},
	{
		pattern: "encoding error",
		msg: UserMessage{
			Message: "File contains invalid characters",
			Action:  "Save file as UTF-8 encoding",
			Code:    "FILE003",
		},
	},
	{
		pattern: "file not found",
		msg: UserMessage{
			Message: "Source file is not in the data directory",
			Action:  "Check --data-dir and the file name",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The file is empty",
			Action:  "Provide a CSV file with a header row",
			Code:    "FILE005",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the log output for the underlying error",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Sentinel errors are matched with errors.Is first, then the error text is
// searched case-insensitively for known patterns.
//
// Example:
//
//	msg := MapError(fmt.Errorf("participant not found: %w", ErrForeignKeyNotFound))
//	// msg.Code == "IMP002"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
		}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// String formats the message for display.
// The format is: "Message (Code: XXX). Action"
func (m UserMessage) String() string {
	if m.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", m.Message, m.Code, m.Action)
}

// MessageForCode returns the message behind a code stored in a report row.
// Unknown codes return the ERR000 message.
func MessageForCode(code string) UserMessage {
	for _, sm := range sentinelMessages {
		if sm.msg.Code == code {
			return sm.msg
		}
	}
	for _, ep := range errorPatterns {
		if ep.msg.Code == code {
			return ep.msg
		}
	}
	return defaultMessage
}
