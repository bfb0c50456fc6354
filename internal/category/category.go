// Package category reconciles a board's declared categories with the
// category references stored on tasks. Every function here is pure: inputs
// are never mutated and results depend only on the arguments.
package category

import (
	"regexp"
	"strings"

	"github.com/existflow/ironboard/internal/model"
)

// Equals compares two category keys ignoring case and surrounding space.
// It is the only equality used for category matching.
func Equals(a, b string) bool {
	return fold(a) == fold(b)
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Normalize guarantees a General category is present.
// A list that already has one (any case or spacing) is returned as is;
// otherwise a synthesized General is prepended to a copy.
func Normalize(list []model.Category) []model.Category {
	for _, c := range list {
		if Equals(c.Name, model.GeneralCategoryName) {
			return list
		}
	}
	out := make([]model.Category, 0, len(list)+1)
	out = append(out, model.GeneralCategory())
	return append(out, list...)
}

// General returns the General entry of a normalized list
func General(normalized []model.Category) model.Category {
	for _, c := range normalized {
		if Equals(c.Name, model.GeneralCategoryName) {
			return c
		}
	}
	return model.GeneralCategory()
}

// Find looks a single reference up in list
func Find(list []model.Category, ref model.CategoryRef) (model.Category, bool) {
	switch ref.Kind {
	case model.RefByID:
		return findBy(list, ref.Value, byID)
	case model.RefByName:
		if c, ok := findBy(list, ref.Value, byName); ok {
			return c, true
		}
		// Legacy writers sometimes stored the slug in the name field
		return findBy(list, ref.Value, byID)
	case model.RefEmbedded:
		if c, ok := findBy(list, ref.Category.ID, byID); ok {
			return c, true
		}
		return findBy(list, ref.Category.Name, byName)
	}
	return model.Category{}, false
}

func byID(c model.Category) string   { return c.ID }
func byName(c model.Category) string { return c.Name }

func findBy(list []model.Category, key string, field func(model.Category) string) (model.Category, bool) {
	if strings.TrimSpace(key) == "" {
		return model.Category{}, false
	}
	for _, c := range list {
		if Equals(field(c), key) {
			return c, true
		}
	}
	return model.Category{}, false
}

// Lookup resolves the task's references in precedence order without fallback
func Lookup(task model.Task, normalized []model.Category) (model.Category, bool) {
	for _, ref := range task.CategoryRefs() {
		if c, ok := Find(normalized, ref); ok {
			return c, true
		}
	}
	return model.Category{}, false
}

// Resolve returns the category the task belongs to, falling back to General
// when no reference matches the board's current categories.
func Resolve(task model.Task, normalized []model.Category) model.Category {
	if c, ok := Lookup(task, normalized); ok {
		return c
	}
	return General(normalized)
}

// Counts tallies Backlog tasks per category id. Every normalized category is
// present, empty ones at zero; unresolvable tasks count toward General.
func Counts(tasks []model.Task, boardCategories []model.Category) map[string]int {
	normalized := Normalize(boardCategories)
	counts := make(map[string]int, len(normalized))
	for _, c := range normalized {
		counts[c.ID] = 0
	}
	for _, t := range tasks {
		if t.Status != model.StageBacklog {
			continue
		}
		counts[Resolve(t, normalized).ID]++
	}
	return counts
}

// Counted is a category with its backlog badge count
type Counted struct {
	model.Category
	Count int
}

// WithCounts pairs each normalized category with its count
func WithCounts(boardCategories []model.Category, counts map[string]int) []Counted {
	normalized := Normalize(boardCategories)
	out := make([]Counted, 0, len(normalized))
	for _, c := range normalized {
		out = append(out, Counted{Category: c, Count: counts[c.ID]})
	}
	return out
}

// Sanitize drops entries without an id or name and removes duplicates,
// keeping the first entry for each id and for each normalized name.
func Sanitize(list []model.Category) []model.Category {
	out := make([]model.Category, 0, len(list))
	seenIDs := make(map[string]bool, len(list))
	seenNames := make(map[string]bool, len(list))
	for _, c := range list {
		id, name := fold(c.ID), fold(c.Name)
		if id == "" || name == "" || seenIDs[id] || seenNames[name] {
			continue
		}
		seenIDs[id] = true
		seenNames[name] = true
		out = append(out, c)
	}
	return out
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug derives a stable id from a category name
func Slug(name string) string {
	return strings.Trim(nonSlug.ReplaceAllString(fold(name), "-"), "-")
}
