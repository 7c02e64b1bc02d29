package workflow

import (
	"errors"
	"fmt"
	"time"
)

// State is a step of the provisioning workflow.
type State string

const (
	StateRequested           State = "Requested"
	StateSubmitted           State = "Submitted"
	StateAddressPending      State = "AddressPending"
	StateAddressAssigned     State = "AddressAssigned"
	StateBootstrapAttempting State = "BootstrapAttempting"
	StateBootstrapSucceeded  State = "BootstrapSucceeded"
	StateBootstrapFailed     State = "BootstrapFailed"
	StateProvisionFailed     State = "ProvisionFailed"
	StateAddressTimedOut     State = "AddressTimedOut"
	// StateAborted ends a run that failed before anything was created.
	StateAborted   State = "Aborted"
	StateCancelled State = "Cancelled"
)

// transitions lists the legal successors of every non-terminal state.
var transitions = map[State][]State{
	StateRequested:           {StateSubmitted, StateAborted, StateCancelled},
	StateSubmitted:           {StateAddressPending, StateProvisionFailed, StateCancelled},
	StateAddressPending:      {StateAddressAssigned, StateProvisionFailed, StateAddressTimedOut, StateCancelled},
	StateAddressAssigned:     {StateBootstrapAttempting, StateCancelled},
	StateBootstrapAttempting: {StateBootstrapSucceeded, StateBootstrapFailed, StateCancelled},
}

// Terminal reports whether s has no successors.
func (s State) Terminal() bool {
	_, ok := transitions[s]
	return !ok
}

// CanTransition reports whether from -> to is legal.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ErrIllegalTransition is returned for a transition not in the table.
var ErrIllegalTransition = errors.New("illegal workflow transition")

// Transition is one timestamped state change.
type Transition struct {
	From State     `json:"from,omitempty"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
}

// Machine tracks the state of one run. It is not safe for concurrent use;
// each run owns its machine.
type Machine struct {
	state    State
	history  []Transition
	now      func() time.Time
	onChange func(Transition)
}

// NewMachine returns a machine in StateRequested. The initial state is the
// first entry of the history.
func NewMachine(now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	m := &Machine{state: StateRequested, now: now}
	m.history = []Transition{{To: StateRequested, At: now()}}
	return m
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// To moves the machine to next.
func (m *Machine) To(next State) error {
	if !CanTransition(m.state, next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, m.state, next)
	}
	t := Transition{From: m.state, To: next, At: m.now()}
	m.state = next
	m.history = append(m.history, t)
	if m.onChange != nil {
		m.onChange(t)
	}
	return nil
}

// History returns a copy of all transitions, oldest first.
func (m *Machine) History() []Transition {
	return append([]Transition(nil), m.history...)
}
