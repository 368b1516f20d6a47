// Package catalog builds the immutable entity lookup snapshot used by one enrichment run.
package catalog

import (
	"sort"
	"strings"

	"github.com/raphaelgruber/signalroom/internal/models"
)

// Entry is the lower-cased view of one catalog entity.
type Entry struct {
	ID        string
	Name      string // canonical display name
	Canonical string // lower-cased canonical name
	Aliases   []string
	FirstName string
	LastName  string // empty for single-token names
}

// Index is a point-in-time snapshot of the active catalog. It is never
// mutated after Build; rebuild it when the catalog changes.
type Index struct {
	entries    []Entry
	byTerm     map[string][]int
	firstNames map[string][]int
	lastNames  map[string][]int
}

// Build creates an index from the active entities in the given set.
// Inactive entities and entities with blank names are skipped.
func Build(entities []models.MonitoredEntity) *Index {
	idx := &Index{
		byTerm:     make(map[string][]int),
		firstNames: make(map[string][]int),
		lastNames:  make(map[string][]int),
	}

	for _, e := range entities {
		if !e.Active {
			continue
		}
		canonical := normalize(e.Name)
		if canonical == "" {
			continue
		}

		entry := Entry{ID: e.ID, Name: e.Name, Canonical: canonical}
		seen := map[string]bool{canonical: true}
		for _, a := range e.Aliases {
			alias := normalize(a)
			if alias == "" || seen[alias] {
				continue
			}
			seen[alias] = true
			entry.Aliases = append(entry.Aliases, alias)
		}

		tokens := strings.Fields(canonical)
		entry.FirstName = tokens[0]
		if len(tokens) > 1 {
			entry.LastName = tokens[len(tokens)-1]
		}

		i := len(idx.entries)
		idx.entries = append(idx.entries, entry)
		idx.byTerm[canonical] = append(idx.byTerm[canonical], i)
		for _, alias := range entry.Aliases {
			idx.byTerm[alias] = append(idx.byTerm[alias], i)
		}
		idx.firstNames[entry.FirstName] = append(idx.firstNames[entry.FirstName], i)
		if entry.LastName != "" {
			idx.lastNames[entry.LastName] = append(idx.lastNames[entry.LastName], i)
		}
	}

	return idx
}

// Len returns the number of indexed entities.
func (x *Index) Len() int {
	return len(x.entries)
}

// Entries returns the indexed entities in catalog order.
func (x *Index) Entries() []Entry {
	out := make([]Entry, len(x.entries))
	copy(out, x.entries)
	return out
}

// Lookup returns the entities whose canonical name or alias equals term.
func (x *Index) Lookup(term string) []Entry {
	ids := x.byTerm[normalize(term)]
	out := make([]Entry, 0, len(ids))
	for _, i := range ids {
		out = append(out, x.entries[i])
	}
	return out
}

// Contains reports whether term is a canonical name or alias of any entity.
func (x *Index) Contains(term string) bool {
	return len(x.byTerm[normalize(term)]) > 0
}

// FirstNameUnique reports whether exactly one entity has this first name.
func (x *Index) FirstNameUnique(name string) bool {
	return len(x.firstNames[normalize(name)]) == 1
}

// LastNameUnique reports whether exactly one entity has this last name.
func (x *Index) LastNameUnique(name string) bool {
	return len(x.lastNames[normalize(name)]) == 1
}

// Names returns the canonical display names, sorted.
func (x *Index) Names() []string {
	names := make([]string, 0, len(x.entries))
	for _, e := range x.entries {
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
