package workflow

import (
	"fmt"
	"sort"
)

// Table is a closed set of states and the trigger edges between them.
// A state without outgoing edges is terminal. Tables are filled once at
// package init and read concurrently afterwards.
type Table struct {
	name  string
	edges map[State]map[Trigger]State
}

// Edges adds transitions out of one state.
type Edges struct {
	table *Table
	from  State
}

// NewTable declares a table over states. Every state starts terminal.
func NewTable(name string, states ...State) *Table {
	t := &Table{name: name, edges: make(map[State]map[Trigger]State, len(states))}
	for _, s := range states {
		t.edges[s] = map[Trigger]State{}
	}
	return t
}

// From selects the source state. It panics on an undeclared state since
// tables are static.
func (t *Table) From(s State) *Edges {
	t.mustHave(s)
	return &Edges{table: t, from: s}
}

// Permit adds the edge from --trigger--> to.
func (e *Edges) Permit(trigger Trigger, to State) *Edges {
	e.table.mustHave(to)
	e.table.edges[e.from][trigger] = to
	return e
}

func (t *Table) mustHave(s State) {
	if _, ok := t.edges[s]; !ok {
		panic(fmt.Sprintf("%s table: undeclared state %q", t.name, s))
	}
}

// Accepts reports whether s is one of the table's states.
func (t *Table) Accepts(s State) bool {
	_, ok := t.edges[s]
	return ok
}

// Next returns the state reached by firing trigger in from.
func (t *Table) Next(from State, trigger Trigger) (State, error) {
	out, ok := t.edges[from]
	if !ok {
		return from, fmt.Errorf("%w: %s status %q", ErrInvalidState, t.name, from)
	}
	to, ok := out[trigger]
	if !ok {
		return from, fmt.Errorf("%w: %s cannot %s from %s", ErrInvalidTransition, t.name, trigger, from)
	}
	return to, nil
}

// Triggers lists the triggers permitted in from, sorted. Empty means terminal.
func (t *Table) Triggers(from State) []Trigger {
	out := t.edges[from]
	triggers := make([]Trigger, 0, len(out))
	for trigger := range out {
		triggers = append(triggers, trigger)
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })
	return triggers
}

// Machine tracks one entity's position in a table.
type Machine struct {
	table   *Table
	current State
}

// Machine starts a machine at initial.
func (t *Table) Machine(initial State) (*Machine, error) {
	if !t.Accepts(initial) {
		return nil, fmt.Errorf("%w: %s status %q", ErrInvalidState, t.name, initial)
	}
	return &Machine{table: t, current: initial}, nil
}

func (m *Machine) State() State { return m.current }

// CanFire reports whether trigger has an edge out of the current state.
func (m *Machine) CanFire(trigger Trigger) bool {
	_, err := m.table.Next(m.current, trigger)
	return err == nil
}

// Fire moves along the trigger's edge or leaves the state unchanged on error.
func (m *Machine) Fire(trigger Trigger) error {
	next, err := m.table.Next(m.current, trigger)
	if err != nil {
		return err
	}
	m.current = next
	return nil
}

func (m *Machine) PermittedTriggers() []Trigger { return m.table.Triggers(m.current) }
