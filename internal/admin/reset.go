// Package admin provides administrative operations for the seed database.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/seedimport/internal/core"
	"github.com/jackc/pgx/v5"
)

// ResetTimeout is the maximum duration for database reset operations.
const ResetTimeout = 30 * time.Second

// ErrNothingToReset is returned when no definition names a table.
var ErrNothingToReset = errors.New("no tables to reset")

// Reset empties the destination tables of imported entities so a seed run
// can start over.
type Reset struct {
	DB core.DBTX
}

// Tables returns the distinct destination tables of defs, dependents
// first. Entities merging into another entity's table share it.
func Tables(defs []core.EntityDefinition) ([]string, error) {
	ordered, err := core.Ordered(defs)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(ordered))
	tables := make([]string, 0, len(ordered))
	for i := len(ordered) - 1; i >= 0; i-- {
		t := ordered[i].Table
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tables = append(tables, t)
	}
	if len(tables) == 0 {
		return nil, ErrNothingToReset
	}
	return tables, nil
}

// Statement builds the TRUNCATE for tables. Identities restart so a fresh
// seed gets the same surrogate ids. There is no CASCADE: PostgreSQL
// refuses when a referencing table is left out.
func Statement(tables []string) string {
	quoted := make([]string, len(tables))
	for i, t := range tables {
		quoted[i] = pgx.Identifier{t}.Sanitize()
	}
	return "TRUNCATE TABLE " + strings.Join(quoted, ", ") + " RESTART IDENTITY"
}

// ResetEntities truncates the tables of defs in one statement and returns
// the tables emptied.
func (r *Reset) ResetEntities(ctx context.Context, defs []core.EntityDefinition) ([]string, error) {
	tables, err := Tables(defs)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, ResetTimeout)
	defer cancel()

	if _, err := r.DB.Exec(ctx, Statement(tables)); err != nil {
		return nil, fmt.Errorf("reset %s: %w", strings.Join(tables, ", "), err)
	}
	return tables, nil
}
