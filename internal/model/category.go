package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// GeneralCategoryID is the id of the fallback category every board carries
	GeneralCategoryID = "general"
	// GeneralCategoryName is the display name of the fallback category
	GeneralCategoryName = "General"
	// DefaultCategoryColor is used when a category has no color of its own
	DefaultCategoryColor = "#3b82f6"
)

// Category groups backlog tasks
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// GeneralCategory returns the synthesized fallback category
func GeneralCategory() Category {
	return Category{
		ID:    GeneralCategoryID,
		Name:  GeneralCategoryName,
		Color: DefaultCategoryColor,
	}
}

// DefaultCategories returns the categories a new board starts with
func DefaultCategories() []Category {
	return []Category{
		GeneralCategory(),
		{ID: "bug", Name: "Bug", Color: "#ef4444"},
		{ID: "feature", Name: "Feature", Color: "#10b981"},
		{ID: "documentation", Name: "Documentation", Color: "#f59e0b"},
		{ID: "research", Name: "Research", Color: "#8b5cf6"},
	}
}

// RefKind tags the variant held by a CategoryRef
type RefKind uint8

const (
	RefNone RefKind = iota
	RefByID
	RefByName
	RefEmbedded
)

// CategoryRef is a stored reference from a task to a category.
// Legacy documents hold a bare name or a whole category object;
// current documents reference the category by id.
type CategoryRef struct {
	Kind     RefKind
	Value    string
	Category Category
}

// ByID references a category by its slug
func ByID(id string) CategoryRef {
	return CategoryRef{Kind: RefByID, Value: id}
}

// ByName references a category by its display name
func ByName(name string) CategoryRef {
	return CategoryRef{Kind: RefByName, Value: name}
}

// Embedded carries a full category copy, as legacy task documents did
func Embedded(c Category) CategoryRef {
	return CategoryRef{Kind: RefEmbedded, Category: c}
}

// IsZero reports whether the reference points nowhere
func (r CategoryRef) IsZero() bool {
	switch r.Kind {
	case RefByID, RefByName:
		return strings.TrimSpace(r.Value) == ""
	case RefEmbedded:
		return strings.TrimSpace(r.Category.ID) == "" && strings.TrimSpace(r.Category.Name) == ""
	default:
		return true
	}
}

func (r CategoryRef) String() string {
	switch r.Kind {
	case RefByID:
		return "id:" + r.Value
	case RefByName:
		return "name:" + r.Value
	case RefEmbedded:
		return fmt.Sprintf("embedded:%s/%s", r.Category.ID, r.Category.Name)
	default:
		return "none"
	}
}

// MarshalJSON writes the legacy shape: a name string or a category object
func (r CategoryRef) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case RefByID, RefByName:
		return json.Marshal(r.Value)
	case RefEmbedded:
		return json.Marshal(r.Category)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a string (name) or an object (embedded category)
func (r *CategoryRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = CategoryRef{}
		return nil
	}
	switch data[0] {
	case '"':
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*r = ByName(name)
	case '{':
		var c Category
		if err := json.Unmarshal(data, &c); err != nil {
			return err
		}
		*r = Embedded(c)
	default:
		// Numbers and other scalars are not references we understand
		*r = CategoryRef{}
	}
	return nil
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
