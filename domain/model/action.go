// Package model provides domain model for tablens
package model

import "fmt"

// ActionKind discriminates the viewer action variants.
type ActionKind int

const (
	// ActionRename changes a column's display name
	ActionRename ActionKind = iota
	// ActionDelete hides a column from view
	ActionDelete
	// ActionCast overrides a column's effective type
	ActionCast
	// ActionFilter restricts visible rows by a predicate on one column
	ActionFilter
)

// String returns the action kind name
func (k ActionKind) String() string {
	switch k {
	case ActionRename:
		return "rename"
	case ActionDelete:
		return "delete"
	case ActionCast:
		return "cast"
	case ActionFilter:
		return "filter"
	default:
		return "unknown"
	}
}

// Action is a single entry of the viewer's action stack. Actions describe
// how the schema is presented; they never transform the underlying data.
type Action interface {
	// Kind returns the action variant.
	Kind() ActionKind
	// Describe returns a short human-readable summary for the action list.
	Describe() string
}

// RenameAction changes the display name of the column currently named
// Column to NewName.
type RenameAction struct {
	Column  string
	NewName string
}

// NewRenameAction creates a rename action.
func NewRenameAction(column, newName string) RenameAction {
	return RenameAction{Column: column, NewName: newName}
}

// Kind returns ActionRename.
func (a RenameAction) Kind() ActionKind { return ActionRename }

// Describe returns a summary like "rename age to age_years".
func (a RenameAction) Describe() string {
	return fmt.Sprintf("rename %s to %s", a.Column, a.NewName)
}

// DeleteAction hides the column currently named Column.
type DeleteAction struct {
	Column string
}

// NewDeleteAction creates a delete action.
func NewDeleteAction(column string) DeleteAction {
	return DeleteAction{Column: column}
}

// Kind returns ActionDelete.
func (a DeleteAction) Kind() ActionKind { return ActionDelete }

// Describe returns a summary like "delete notes".
func (a DeleteAction) Describe() string {
	return "delete " + a.Column
}

// CastAction overrides the effective type of the column currently named
// Column. Later filters on the column resolve against the cast type.
type CastAction struct {
	Column string
	Type   ColumnType
}

// NewCastAction creates a cast action.
func NewCastAction(column string, typ ColumnType) CastAction {
	return CastAction{Column: column, Type: typ}
}

// Kind returns ActionCast.
func (a CastAction) Kind() ActionKind { return ActionCast }

// Describe returns a summary like "cast age to INTEGER".
func (a CastAction) Describe() string {
	return fmt.Sprintf("cast %s to %s", a.Column, a.Type)
}

// FilterAction restricts visible rows to those whose cell in the column
// currently named Column satisfies Op against Value.
type FilterAction struct {
	Column string
	Op     Operator
	Value  string
}

// NewFilterAction creates a filter action.
func NewFilterAction(column string, op Operator, value string) FilterAction {
	return FilterAction{Column: column, Op: op, Value: value}
}

// Kind returns ActionFilter.
func (a FilterAction) Kind() ActionKind { return ActionFilter }

// Describe returns a summary like `filter name contains "al"`.
func (a FilterAction) Describe() string {
	return fmt.Sprintf("filter %s %s %q", a.Column, a.Op, a.Value)
}

// ColumnState is the presentation state of one source column after
// replaying the action stack: its current name, effective type, and
// whether it is still visible. Index is the column's position in the
// source file and is the stable identity actions track columns by.
type ColumnState struct {
	Index    int
	Name     string
	Type     ColumnType
	Nullable bool
	Visible  bool
}

// ActionStack is the ordered, append-only sequence of viewer actions.
//
// The stack holds no derived state. Current column names, effective types
// and active filters are always computed by replaying the sequence from
// the base schema, so there is exactly one source of truth for "what did
// the user do".
type ActionStack struct {
	actions []Action
}

// NewActionStack creates an empty action stack.
func NewActionStack() *ActionStack {
	return &ActionStack{}
}

// Push appends an action. Push never validates; callers that need the
// stack to stay resolvable replay the candidate sequence first.
func (s *ActionStack) Push(a Action) {
	s.actions = append(s.actions, a)
}

// Len returns the number of actions.
func (s *ActionStack) Len() int {
	return len(s.actions)
}

// Actions returns a copy of the action sequence in push order.
func (s *ActionStack) Actions() []Action {
	out := make([]Action, len(s.actions))
	copy(out, s.actions)
	return out
}

// Resolve replays the stack against a base schema.
func (s *ActionStack) Resolve(schema *Schema) ([]ColumnState, error) {
	return ResolveActions(schema, s.actions)
}

// FilterSpecs replays the stack and returns the resolved filters in push
// order. Each filter is resolved against the column state as of its own
// position in the stack, so a filter pushed before a cast keeps the
// pre-cast type.
func (s *ActionStack) FilterSpecs(schema *Schema) ([]FilterSpec, error) {
	_, specs, err := replayActions(schema, s.actions)
	return specs, err
}

// ResolveActions replays an action sequence against a base schema and
// returns the per-column presentation state. Unknown column names and
// relational filters on non-comparable effective types fail; the error
// identifies the offending action.
func ResolveActions(schema *Schema, actions []Action) ([]ColumnState, error) {
	states, _, err := replayActions(schema, actions)
	return states, err
}

// ResolveFilterSpecs replays an action sequence and returns the resolved
// filter specs in push order.
func ResolveFilterSpecs(schema *Schema, actions []Action) ([]FilterSpec, error) {
	_, specs, err := replayActions(schema, actions)
	return specs, err
}

// replayActions is the single left-to-right fold both resolvers share.
func replayActions(schema *Schema, actions []Action) ([]ColumnState, []FilterSpec, error) {
	states := make([]ColumnState, schema.ColumnCount())
	for i, c := range schema.Columns() {
		states[i] = ColumnState{
			Index:    c.Index,
			Name:     c.Name,
			Type:     c.Type,
			Nullable: c.Nullable,
			Visible:  true,
		}
	}

	find := func(name string) int {
		for i := range states {
			if states[i].Visible && states[i].Name == name {
				return i
			}
		}
		return -1
	}

	var specs []FilterSpec
	for pos, action := range actions {
		switch a := action.(type) {
		case RenameAction:
			i := find(a.Column)
			if i < 0 {
				return nil, nil, fmt.Errorf("action %d: %w: %s", pos, ErrUnknownColumn, a.Column)
			}
			if a.NewName != a.Column {
				if j := find(a.NewName); j >= 0 {
					return nil, nil, fmt.Errorf("action %d: %w: %s", pos, ErrDuplicateColumnName, a.NewName)
				}
			}
			states[i].Name = a.NewName
		case DeleteAction:
			i := find(a.Column)
			if i < 0 {
				return nil, nil, fmt.Errorf("action %d: %w: %s", pos, ErrUnknownColumn, a.Column)
			}
			states[i].Visible = false
		case CastAction:
			i := find(a.Column)
			if i < 0 {
				return nil, nil, fmt.Errorf("action %d: %w: %s", pos, ErrUnknownColumn, a.Column)
			}
			if a.Type == ColumnTypeUnknown {
				return nil, nil, fmt.Errorf("action %d: %w: %s", pos, ErrInvalidCastType, a.Type)
			}
			states[i].Type = a.Type
		case FilterAction:
			i := find(a.Column)
			if i < 0 {
				return nil, nil, fmt.Errorf("action %d: %w: %s", pos, ErrUnknownColumn, a.Column)
			}
			spec, err := NewFilterSpec(states[i].Index, states[i].Name, states[i].Type, a.Op, a.Value)
			if err != nil {
				return nil, nil, fmt.Errorf("action %d: %w", pos, err)
			}
			specs = append(specs, spec)
		default:
			return nil, nil, fmt.Errorf("action %d: %w: %T", pos, ErrUnknownAction, action)
		}
	}

	return states, specs, nil
}
