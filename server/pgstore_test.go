package server

import (
	"reflect"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/existflow/ironboard/internal/store"
)

func TestBuildQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		filters  []store.Filter
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "collection only",
			wantSQL:  "SELECT id, data FROM documents WHERE collection = $1 ORDER BY seq",
			wantArgs: []any{"boards"},
		},
		{
			name:     "eq",
			filters:  []store.Filter{store.Eq("owner", "u1")},
			wantSQL:  "SELECT id, data FROM documents WHERE collection = $1 AND data -> $2::text = $3::jsonb ORDER BY seq",
			wantArgs: []any{"boards", "owner", `"u1"`},
		},
		{
			name:    "contains",
			filters: []store.Filter{store.ArrayContains("collaborators", "me@x.io")},
			wantSQL: "SELECT id, data FROM documents WHERE collection = $1 AND " +
				"jsonb_typeof(data -> $2::text) = 'array' AND data -> $3::text @> $4::jsonb ORDER BY seq",
			wantArgs: []any{"boards", "collaborators", "collaborators", `["me@x.io"]`},
		},
	}
	for _, tt := range tests {
		q, args, err := buildQuery("boards", tt.filters)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if got := sqlx.Rebind(sqlx.DOLLAR, q); got != tt.wantSQL {
			t.Errorf("%s: sql\n got %s\nwant %s", tt.name, got, tt.wantSQL)
		}
		if !reflect.DeepEqual(args, tt.wantArgs) {
			t.Errorf("%s: args got %v want %v", tt.name, args, tt.wantArgs)
		}
	}
}

func TestBuildQueryRejectsBadFilters(t *testing.T) {
	t.Parallel()

	bad := [][]store.Filter{
		{store.Eq("", "x")},
		{{Field: "f", Op: "regex", Value: "x"}},
	}
	for _, filters := range bad {
		if _, _, err := buildQuery("boards", filters); err == nil {
			t.Errorf("expected error for %v", filters)
		}
	}
}
