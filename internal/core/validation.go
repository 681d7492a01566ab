package core

// validation.go checks entity definitions before any row is read, and CSV
// headers before any row of a file is processed.

import (
	"fmt"
	"strings"
)

// DefinitionError lists every problem found in a set of definitions.
type DefinitionError struct {
	Problems []string
}

func (e *DefinitionError) Error() string {
	return "invalid entity definitions:\n  - " + strings.Join(e.Problems, "\n  - ")
}

// ValidateDefinitions checks a configured set of entities: keys are unique,
// unique keys point at produced columns, referenced entities exist and are
// looked up by the right number of parts, and dependencies are acyclic.
func ValidateDefinitions(defs []EntityDefinition) error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	byKey := make(map[string]EntityDefinition, len(defs))
	for _, def := range defs {
		if def.Key == "" {
			addf("entity with table %q has no key", def.Table)
			continue
		}
		if _, dup := byKey[def.Key]; dup {
			addf("%s: duplicate entity key", def.Key)
			continue
		}
		byKey[def.Key] = def
	}

	for _, def := range defs {
		if def.Key == "" {
			continue
		}
		name := def.Key

		if def.Table == "" {
			addf("%s: missing table", name)
		}
		if def.SourceFile == "" {
			addf("%s: missing source file", name)
		}
		if len(def.UniqueKey) == 0 {
			addf("%s: unique key is empty", name)
		}

		produced := make(map[string]string)
		produce := func(col, by string) {
			if col == "" {
				addf("%s: %s with empty destination column", name, by)
				return
			}
			if prev, dup := produced[col]; dup {
				addf("%s: column %q produced by both %s and %s", name, col, prev, by)
				return
			}
			produced[col] = by
		}

		for _, c := range def.Columns {
			if c.Source == "" {
				addf("%s: column %q has no source", name, c.Column)
			}
			if c.Type == FieldEnum && len(c.EnumValues) == 0 {
				addf("%s: enum column %q has no values", name, c.Column)
			}
			produce(c.Column, "source "+c.Source)
		}
		for _, d := range def.Derived {
			if d.Derive == nil {
				addf("%s: derived column %q has no function", name, d.Column)
			}
			produce(d.Column, "derivation")
		}
		for _, fk := range def.ForeignKeys {
			produce(fk.Column, "foreign key")

			target, ok := byKey[fk.Entity]
			switch {
			case !ok:
				addf("%s: foreign key %q references unknown entity %q", name, fk.Column, fk.Entity)
			case target.Lookup == nil:
				addf("%s: foreign key %q references %q which declares no lookup", name, fk.Column, fk.Entity)
			case len(fk.Sources) != len(target.Lookup.KeyParts):
				addf("%s: foreign key %q has %d source columns, %q lookup needs %d",
					name, fk.Column, len(fk.Sources), fk.Entity, len(target.Lookup.KeyParts))
			}
		}

		for _, col := range def.UniqueKey {
			if _, ok := produced[col]; !ok {
				addf("%s: unique key column %q is not produced by any mapping", name, col)
			}
		}

		for _, col := range def.MergeColumns {
			if _, ok := produced[col]; !ok {
				addf("%s: merge column %q is not produced by any mapping", name, col)
			}
			for _, uk := range def.UniqueKey {
				if uk == col {
					addf("%s: merge column %q is part of the unique key", name, col)
				}
			}
		}

		if def.MergeOnly && len(def.MergeColumns) == 0 {
			addf("%s: merge-only entity has no merge columns", name)
		}

		if def.Lookup != nil {
			if len(def.Lookup.KeyParts) == 0 {
				addf("%s: lookup has no key parts", name)
			}
			if def.IDColumn == "" {
				addf("%s: lookup needs an id column", name)
			}
			if def.Lookup.From == "" || def.Lookup.IDExpr == "" {
				addf("%s: lookup needs From and IDExpr", name)
			}
			for i, kp := range def.Lookup.KeyParts {
				if kp.Source == "" || kp.Expr == "" {
					addf("%s: lookup key part %d needs Source and Expr", name, i)
				}
			}
		}

		for _, dep := range def.After {
			if _, ok := byKey[dep]; !ok {
				addf("%s: depends on unknown entity %q", name, dep)
			}
		}
	}

	if len(problems) == 0 {
		if _, err := Ordered(defs); err != nil {
			addf("%v", err)
		}
	}

	if len(problems) > 0 {
		return &DefinitionError{Problems: problems}
	}
	return nil
}

// requiredSources lists the CSV columns a file must carry for def.
func requiredSources(def EntityDefinition) []string {
	var sources []string
	seen := make(map[string]bool)
	add := func(s string) {
		k := strings.ToLower(s)
		if s == "" || seen[k] {
			return
		}
		seen[k] = true
		sources = append(sources, s)
	}

	for _, c := range def.Columns {
		if c.Required {
			add(c.Source)
		}
	}
	for _, fk := range def.ForeignKeys {
		if !fk.Optional {
			for _, s := range fk.Sources {
				add(s)
			}
		}
	}
	if def.Lookup != nil {
		for _, kp := range def.Lookup.KeyParts {
			add(kp.Source)
		}
	}
	return sources
}

// ValidateHeaders checks that every required column of def is present in
// the CSV header and returns the header index.
func ValidateHeaders(headers []string, def EntityDefinition) (HeaderIndex, error) {
	idx := MakeHeaderIndex(headers)
	var missing []string

	for _, src := range requiredSources(def) {
		if _, ok := idx[strings.ToLower(src)]; !ok {
			missing = append(missing, src)
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required column(s): %s", strings.Join(missing, ", "))
	}

	return idx, nil
}

// String returns a human-readable name for a field type.
func (ft FieldType) String() string {
	switch ft {
	case FieldText:
		return "text"
	case FieldEnum:
		return "enum"
	case FieldDate:
		return "date"
	case FieldTimestamp:
		return "timestamp"
	case FieldNumeric:
		return "numeric"
	case FieldCurrency:
		return "currency"
	case FieldInt:
		return "integer"
	case FieldPassword:
		return "password"
	default:
		return "value"
	}
}
