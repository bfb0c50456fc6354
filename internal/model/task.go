package model

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Task is a work item on a board.
// Order ranks the task inside its stage; CategoryOrder ranks it inside its
// category while the task sits in the Backlog. Both are optional on legacy
// documents and read as absent rather than zero.
type Task struct {
	ID             string       `json:"-"`
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	Assignees      []string     `json:"assignees"`
	Status         Stage        `json:"status"`
	CategoryID     string       `json:"categoryId,omitempty"`
	CategoryName   string       `json:"categoryName,omitempty"`
	CategoryColor  string       `json:"categoryColor,omitempty"`
	LegacyCategory *CategoryRef `json:"category,omitempty"`
	CreatedAt      Timestamp    `json:"createdAt"`
	CreatedBy      string       `json:"createdBy,omitempty"`
	CreatedByEmail string       `json:"createdByEmail,omitempty"`
	CreatedByName  string       `json:"createdByName,omitempty"`
	Order          *int         `json:"order,omitempty"`
	CategoryOrder  *int         `json:"categoryOrder,omitempty"`
	CompletedAt    *Timestamp   `json:"completedAt,omitempty"`
}

// UnmarshalJSON decodes a task document. Ranks written as numeric strings or
// floats are truncated to ints; any other rank value reads as absent so a
// malformed rank never drops the task.
func (t *Task) UnmarshalJSON(data []byte) error {
	type plain Task
	aux := struct {
		*plain
		Order         json.RawMessage `json:"order"`
		CategoryOrder json.RawMessage `json:"categoryOrder"`
	}{plain: (*plain)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	t.Order = parseRank(aux.Order)
	t.CategoryOrder = parseRank(aux.CategoryOrder)
	return nil
}

func parseRank(raw json.RawMessage) *int {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil
		}
		f = n
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt32 || f < math.MinInt32 {
		return nil
	}
	return IntPtr(int(math.Trunc(f)))
}

// CategoryRefs returns the task's category references in lookup precedence:
// the category id, then the category name, then the legacy category field.
func (t Task) CategoryRefs() []CategoryRef {
	var refs []CategoryRef
	if ref := ByID(t.CategoryID); !ref.IsZero() {
		refs = append(refs, ref)
	}
	if ref := ByName(t.CategoryName); !ref.IsZero() {
		refs = append(refs, ref)
	}
	if t.LegacyCategory != nil && !t.LegacyCategory.IsZero() {
		refs = append(refs, *t.LegacyCategory)
	}
	return refs
}

// OrderValue returns the stage rank, treating an absent order as 0
func (t Task) OrderValue() int {
	if t.Order == nil {
		return 0
	}
	return *t.Order
}

// BacklogRank returns categoryOrder, falling back to order, then 0
func (t Task) BacklogRank() int {
	if t.CategoryOrder != nil {
		return *t.CategoryOrder
	}
	return t.OrderValue()
}

// IsDone reports whether the task sits in the Done stage
func (t Task) IsDone() bool {
	return t.Status == StageDone
}

// CompletedMillis returns the completion time in epoch milliseconds, or 0
func (t Task) CompletedMillis() int64 {
	if t.CompletedAt == nil {
		return 0
	}
	return t.CompletedAt.Millis()
}

// Clone returns a deep copy so published views can't be mutated through slices
func (t Task) Clone() Task {
	out := t
	if t.Assignees != nil {
		out.Assignees = append([]string(nil), t.Assignees...)
	}
	if t.LegacyCategory != nil {
		ref := *t.LegacyCategory
		out.LegacyCategory = &ref
	}
	if t.Order != nil {
		out.Order = IntPtr(*t.Order)
	}
	if t.CategoryOrder != nil {
		out.CategoryOrder = IntPtr(*t.CategoryOrder)
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		out.CompletedAt = &ts
	}
	return out
}

// NewTask creates a task with defaults for a new Backlog entry
func NewTask(title string, creator User) Task {
	return Task{
		Title:          title,
		Assignees:      []string{},
		Status:         StageBacklog,
		CategoryID:     GeneralCategoryID,
		CategoryName:   GeneralCategoryName,
		CategoryColor:  DefaultCategoryColor,
		CreatedAt:      NewTimestamp(time.Now()),
		CreatedBy:      creator.ID,
		CreatedByEmail: creator.Email,
		CreatedByName:  creator.Name,
	}
}

// IntPtr returns a pointer to v
func IntPtr(v int) *int {
	return &v
}
