package core

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]EntityDefinition)
	registryMu sync.RWMutex
	nextOrder  int
)

// Register adds an entity definition to the registry.
// Panics if an entity with the same key is already registered.
func Register(def EntityDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Key]; exists {
		panic(fmt.Sprintf("entity already registered: %s", def.Key))
	}

	if def.Label == "" {
		def.Label = def.Key
	}
	nextOrder++
	def.order = nextOrder

	registry[def.Key] = def
}

// Get returns an entity definition by key.
func Get(key string) (EntityDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[key]
	return def, ok
}

// All returns all registered definitions in registration order.
func All() []EntityDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]EntityDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].order < result[j].order
	})

	return result
}

// Count returns the number of registered entities.
func Count() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered entities.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]EntityDefinition)
	nextOrder = 0
}

// dependencies returns the keys def must be imported after, restricted to
// entities present in the set.
func dependencies(def EntityDefinition, present map[string]bool) []string {
	var deps []string
	seen := make(map[string]bool)
	add := func(k string) {
		if k == def.Key || seen[k] || !present[k] {
			return
		}
		seen[k] = true
		deps = append(deps, k)
	}
	for _, fk := range def.ForeignKeys {
		add(fk.Entity)
	}
	for _, k := range def.After {
		add(k)
	}
	return deps
}

// Ordered sorts defs so every entity follows the entities it references.
// Ties keep the input order. Dependencies outside defs are ignored, so a
// filtered subset can be ordered on its own.
func Ordered(defs []EntityDefinition) ([]EntityDefinition, error) {
	present := make(map[string]bool, len(defs))
	for _, def := range defs {
		present[def.Key] = true
	}

	indegree := make(map[string]int, len(defs))
	dependents := make(map[string][]string)
	for _, def := range defs {
		deps := dependencies(def, present)
		indegree[def.Key] = len(deps)
		for _, d := range deps {
			dependents[d] = append(dependents[d], def.Key)
		}
	}

	done := make(map[string]bool, len(defs))
	result := make([]EntityDefinition, 0, len(defs))

	// Repeatedly take the first ready entity in input order.
	for len(result) < len(defs) {
		picked := -1
		for i, def := range defs {
			if !done[def.Key] && indegree[def.Key] == 0 {
				picked = i
				break
			}
		}
		if picked < 0 {
			var stuck []string
			for _, def := range defs {
				if !done[def.Key] {
					stuck = append(stuck, def.Key)
				}
			}
			return nil, fmt.Errorf("dependency cycle among entities: %v", stuck)
		}

		def := defs[picked]
		done[def.Key] = true
		result = append(result, def)
		for _, dep := range dependents[def.Key] {
			indegree[dep]--
		}
	}

	return result, nil
}

// Select returns the definitions named in keys, in the order of defs.
// An unknown key is an error wrapping ErrUnknownEntity.
func Select(defs []EntityDefinition, keys []string) ([]EntityDefinition, error) {
	if len(keys) == 0 {
		return defs, nil
	}

	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}

	var result []EntityDefinition
	for _, def := range defs {
		if want[def.Key] {
			result = append(result, def)
			delete(want, def.Key)
		}
	}

	if len(want) > 0 {
		var unknown []string
		for _, k := range keys {
			if want[k] {
				unknown = append(unknown, k)
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrUnknownEntity, unknown)
	}

	return result, nil
}
