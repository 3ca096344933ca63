package model

import (
	"errors"
	"testing"
)

// newActionTestSchema builds the base schema the action tests replay
// against: name TEXT, age INTEGER, joined DATETIME.
func newActionTestSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := NewSchema([]Column{
		{Name: "name", Type: ColumnTypeText},
		{Name: "age", Type: ColumnTypeInteger},
		{Name: "joined", Type: ColumnTypeDatetime},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

func TestActionDescribe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		action   Action
		kind     ActionKind
		expected string
	}{
		{
			name:     "Rename",
			action:   NewRenameAction("old", "new"),
			kind:     ActionRename,
			expected: "rename old to new",
		},
		{
			name:     "Delete",
			action:   NewDeleteAction("age"),
			kind:     ActionDelete,
			expected: "delete age",
		},
		{
			name:     "Cast",
			action:   NewCastAction("age", ColumnTypeReal),
			kind:     ActionCast,
			expected: "cast age to REAL",
		},
		{
			name:     "Filter",
			action:   NewFilterAction("age", OperatorGreaterThan, "30"),
			kind:     ActionFilter,
			expected: `filter age greater than "30"`,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.action.Kind(); got != tt.kind {
				t.Errorf("expected kind %v, got %v", tt.kind, got)
			}
			if got := tt.action.Describe(); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestActionStack_Basics(t *testing.T) {
	t.Parallel()

	stack := NewActionStack()
	if stack.Len() != 0 {
		t.Errorf("expected empty stack, got %d", stack.Len())
	}

	stack.Push(NewRenameAction("name", "customer"))
	stack.Push(NewDeleteAction("joined"))
	if stack.Len() != 2 {
		t.Errorf("expected 2 actions, got %d", stack.Len())
	}

	actions := stack.Actions()
	actions[0] = NewDeleteAction("age")
	if stack.Actions()[0].Kind() != ActionRename {
		t.Error("Actions must return a copy, not the backing slice")
	}
}

func TestResolveActions_Rename(t *testing.T) {
	t.Parallel()

	t.Run("Rename changes the display name only", func(t *testing.T) {
		t.Parallel()

		s := newActionTestSchema(t)
		states, err := ResolveActions(s, []Action{NewRenameAction("name", "customer")})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if states[0].Name != "customer" || states[0].Index != 0 {
			t.Errorf("unexpected state: %+v", states[0])
		}
	})

	t.Run("Rename to itself is allowed", func(t *testing.T) {
		t.Parallel()

		s := newActionTestSchema(t)
		if _, err := ResolveActions(s, []Action{NewRenameAction("name", "name")}); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("Rename of unknown column fails", func(t *testing.T) {
		t.Parallel()

		s := newActionTestSchema(t)
		_, err := ResolveActions(s, []Action{NewRenameAction("missing", "x")})
		if !errors.Is(err, ErrUnknownColumn) {
			t.Errorf("expected ErrUnknownColumn, got %v", err)
		}
	})

	t.Run("Rename onto an existing name fails", func(t *testing.T) {
		t.Parallel()

		s := newActionTestSchema(t)
		_, err := ResolveActions(s, []Action{NewRenameAction("name", "age")})
		if !errors.Is(err, ErrDuplicateColumnName) {
			t.Errorf("expected ErrDuplicateColumnName, got %v", err)
		}
	})

	t.Run("Rename onto a deleted name is allowed", func(t *testing.T) {
		t.Parallel()

		s := newActionTestSchema(t)
		states, err := ResolveActions(s, []Action{
			NewDeleteAction("age"),
			NewRenameAction("name", "age"),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if states[0].Name != "age" || states[1].Visible {
			t.Errorf("unexpected states: %+v", states)
		}
	})
}

func TestResolveActions_DeleteAndCast(t *testing.T) {
	t.Parallel()

	t.Run("Delete hides the column", func(t *testing.T) {
		t.Parallel()

		s := newActionTestSchema(t)
		states, err := ResolveActions(s, []Action{NewDeleteAction("age")})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(states) != 3 {
			t.Fatalf("expected all source columns in the state, got %d", len(states))
		}
		if states[1].Visible {
			t.Error("expected deleted column to be invisible")
		}
	})

	t.Run("Deleted column cannot be referenced again", func(t *testing.T) {
		t.Parallel()

		s := newActionTestSchema(t)
		_, err := ResolveActions(s, []Action{
			NewDeleteAction("age"),
			NewFilterAction("age", OperatorGreaterThan, "30"),
		})
		if !errors.Is(err, ErrUnknownColumn) {
			t.Errorf("expected ErrUnknownColumn, got %v", err)
		}
	})

	t.Run("Cast changes the effective type", func(t *testing.T) {
		t.Parallel()

		s := newActionTestSchema(t)
		states, err := ResolveActions(s, []Action{NewCastAction("name", ColumnTypeInteger)})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if states[0].Type != ColumnTypeInteger {
			t.Errorf("expected INTEGER, got %v", states[0].Type)
		}
	})

	t.Run("Cast to unknown fails", func(t *testing.T) {
		t.Parallel()

		s := newActionTestSchema(t)
		_, err := ResolveActions(s, []Action{NewCastAction("name", ColumnTypeUnknown)})
		if !errors.Is(err, ErrInvalidCastType) {
			t.Errorf("expected ErrInvalidCastType, got %v", err)
		}
	})
}

func TestResolveFilterSpecs(t *testing.T) {
	t.Parallel()

	t.Run("Filter resolves to the original column index after rename", func(t *testing.T) {
		t.Parallel()

		s := newActionTestSchema(t)
		specs, err := ResolveFilterSpecs(s, []Action{
			NewRenameAction("age", "years"),
			NewFilterAction("years", OperatorGreaterThan, "30"),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(specs) != 1 {
			t.Fatalf("expected 1 spec, got %d", len(specs))
		}
		if specs[0].Column != 1 {
			t.Errorf("expected source column 1, got %d", specs[0].Column)
		}
		if specs[0].Name != "years" {
			t.Errorf("expected resolved name years, got %s", specs[0].Name)
		}
	})

	t.Run("Relational filter on text column fails at resolution", func(t *testing.T) {
		t.Parallel()

		s := newActionTestSchema(t)
		_, err := ResolveFilterSpecs(s, []Action{
			NewFilterAction("name", OperatorGreaterThan, "10"),
		})
		if !errors.Is(err, ErrOperatorMismatch) {
			t.Errorf("expected ErrOperatorMismatch, got %v", err)
		}
	})

	t.Run("Cast then rename then filter", func(t *testing.T) {
		t.Parallel()

		s := newActionTestSchema(t)
		specs, err := ResolveFilterSpecs(s, []Action{
			NewCastAction("name", ColumnTypeInteger),
			NewRenameAction("name", "code"),
			NewFilterAction("code", OperatorGreaterOrEqual, "100"),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if specs[0].Column != 0 || specs[0].Type != ColumnTypeInteger {
			t.Errorf("unexpected spec: %+v", specs[0])
		}
		if !specs[0].Match("150") || specs[0].Match("50") {
			t.Error("expected the cast type to drive relational matching")
		}
	})

	t.Run("Filters keep the column state of their stack position", func(t *testing.T) {
		t.Parallel()

		s := newActionTestSchema(t)
		specs, err := ResolveFilterSpecs(s, []Action{
			NewFilterAction("name", OperatorContains, "a"),
			NewCastAction("name", ColumnTypeInteger),
			NewFilterAction("name", OperatorLessThan, "10"),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(specs) != 2 {
			t.Fatalf("expected 2 specs, got %d", len(specs))
		}
		if specs[0].Type != ColumnTypeText {
			t.Errorf("first filter must keep the pre-cast type, got %v", specs[0].Type)
		}
		if specs[1].Type != ColumnTypeInteger {
			t.Errorf("second filter must see the cast type, got %v", specs[1].Type)
		}
	})

	t.Run("Multiple filters combine with AND through MatchRow", func(t *testing.T) {
		t.Parallel()

		s := newActionTestSchema(t)
		specs, err := ResolveFilterSpecs(s, []Action{
			NewFilterAction("name", OperatorContains, "a"),
			NewFilterAction("age", OperatorGreaterThan, "30"),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !MatchRow(specs, []string{"Alice", "35", "2024-01-01"}) {
			t.Error("expected row to pass both filters")
		}
		if MatchRow(specs, []string{"Alice", "20", "2024-01-01"}) {
			t.Error("expected second filter to exclude the row")
		}
	})
}

// bogusAction exercises the unknown-variant guard in replay.
type bogusAction struct{}

func (bogusAction) Kind() ActionKind { return ActionKind(99) }
func (bogusAction) Describe() string { return "bogus" }

func TestResolveActions_UnknownVariant(t *testing.T) {
	t.Parallel()

	s := newActionTestSchema(t)
	_, err := ResolveActions(s, []Action{bogusAction{}})
	if !errors.Is(err, ErrUnknownAction) {
		t.Errorf("expected ErrUnknownAction, got %v", err)
	}
}
