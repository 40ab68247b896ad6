package vgraph

// State is a lifecycle state of a Context or a Node.
type State uint8

const (
	// StateUninitialized is the initial state of contexts and nodes. A
	// destroyed context and a disconnected node return to it.
	StateUninitialized State = iota
	// StateCreated is a context with a live surface.
	StateCreated
	// StateConnected is a node with an output.
	StateConnected
	// StateClosed is the terminal node state.
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateCreated:
		return "created"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// transition is one row of a transition table.
type transition struct {
	from []State
	to   State
}

// Transition operations.
const (
	opCreate     = "create"
	opDestroy    = "destroy"
	opConnect    = "connect"
	opDisconnect = "disconnect"
	opClose      = "close"
)

var contextTransitions = map[string]transition{
	opCreate:  {from: []State{StateUninitialized}, to: StateCreated},
	opDestroy: {from: []State{StateCreated}, to: StateUninitialized},
}

var nodeTransitions = map[string]transition{
	opConnect:    {from: []State{StateUninitialized}, to: StateConnected},
	opDisconnect: {from: []State{StateConnected}, to: StateUninitialized},
	opClose:      {from: []State{StateUninitialized, StateConnected}, to: StateClosed},
}

// machine is a finite state machine validated against a transition table.
type machine struct {
	entity string
	state  State
	table  map[string]transition
}

func newMachine(entity string, table map[string]transition) machine {
	return machine{entity: entity, table: table}
}

// check reports whether op is allowed from the current state.
func (m *machine) check(op string) error {
	t, ok := m.table[op]
	if ok {
		for _, s := range t.from {
			if s == m.state {
				return nil
			}
		}
	}
	return &StateError{Entity: m.entity, Op: op, From: m.state}
}

// fire applies op or returns a *StateError leaving the state unchanged.
func (m *machine) fire(op string) error {
	if err := m.check(op); err != nil {
		return err
	}
	m.state = m.table[op].to
	return nil
}
