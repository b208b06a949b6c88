package domain

import (
	"fmt"
	"strings"
)

type TaxonomyEntry struct {
	Name          string   `yaml:"name" json:"name"`
	Subcategories []string `yaml:"subcategories" json:"subcategories,omitempty"`
}

// Taxonomy is the static category tree uploads are validated against.
type Taxonomy struct {
	entries []TaxonomyEntry
}

func NewTaxonomy(entries []TaxonomyEntry) Taxonomy {
	out := make([]TaxonomyEntry, 0, len(entries))
	for _, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			continue
		}
		subs := make([]string, 0, len(e.Subcategories))
		for _, s := range e.Subcategories {
			if s = strings.TrimSpace(s); s != "" {
				subs = append(subs, s)
			}
		}
		out = append(out, TaxonomyEntry{Name: name, Subcategories: subs})
	}
	return Taxonomy{entries: out}
}

func (t Taxonomy) Entries() []TaxonomyEntry {
	return t.entries
}

// Resolve validates a category/subcategory pair and returns both in their
// canonical spelling. A subcategory is required exactly when the category
// declares at least one.
func (t Taxonomy) Resolve(category, subcategory string) (string, string, error) {
	category = strings.TrimSpace(category)
	subcategory = strings.TrimSpace(subcategory)
	if category == "" {
		return "", "", WrapError(ErrInvalidInput, "validate taxonomy", fmt.Errorf("category is required"))
	}

	entry, ok := t.lookup(category)
	if !ok {
		return "", "", WrapError(ErrInvalidInput, "validate taxonomy", fmt.Errorf("unknown category %q", category))
	}

	if len(entry.Subcategories) == 0 {
		if subcategory != "" {
			return "", "", WrapError(ErrInvalidInput, "validate taxonomy",
				fmt.Errorf("category %q does not accept subcategories", entry.Name))
		}
		return entry.Name, "", nil
	}

	if subcategory == "" {
		return "", "", WrapError(ErrInvalidInput, "validate taxonomy",
			fmt.Errorf("subcategory is required for category %q", entry.Name))
	}
	for _, s := range entry.Subcategories {
		if strings.EqualFold(s, subcategory) {
			return entry.Name, s, nil
		}
	}
	return "", "", WrapError(ErrInvalidInput, "validate taxonomy",
		fmt.Errorf("subcategory %q is not valid for category %q", subcategory, entry.Name))
}

func (t Taxonomy) lookup(category string) (TaxonomyEntry, bool) {
	for _, e := range t.entries {
		if strings.EqualFold(e.Name, category) {
			return e, true
		}
	}
	return TaxonomyEntry{}, false
}
