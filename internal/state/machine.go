// Package state implements the generation state machine each screen owns.
//
// A machine moves Idle -> Loading -> Success|Failure and back to Loading on
// regeneration. It never terminates. While Loading, new triggers are refused
// and resolutions from superseded cycles are dropped.
package state

import (
	"errors"
	"maps"
	"sync"
)

// Phase is the machine's current state.
type Phase int

const (
	Idle Phase = iota
	Loading
	Success
	Failure
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return "unknown"
	}
}

// View is the single view a phase selects.
type View int

const (
	CallToAction View = iota
	LoadingIndicator
	ErrorPanel
	Content
)

func (v View) String() string {
	switch v {
	case CallToAction:
		return "call_to_action"
	case LoadingIndicator:
		return "loading"
	case ErrorPanel:
		return "error"
	case Content:
		return "content"
	default:
		return "unknown"
	}
}

var (
	// ErrBusy is returned by Trigger while a generation is in flight.
	ErrBusy = errors.New("generation already in progress")
	// ErrNoContent is returned by content actions outside Success.
	ErrNoContent = errors.New("nothing generated yet")
)

// Ticket identifies one Loading cycle.
type Ticket uint64

// Snapshot is a consistent copy of a machine.
type Snapshot[T any] struct {
	Phase    Phase
	View     View
	Data     T
	Error    string
	Revealed map[int]bool
	Answer   string
	Version  uint64
}

// Machine is safe for concurrent use.
type Machine[T any] struct {
	mu       sync.Mutex
	phase    Phase
	data     T
	errMsg   string
	ticket   Ticket
	revealed map[int]bool
	answer   string
	version  uint64
	changed  chan struct{}
}

// New returns a machine in Idle.
func New[T any]() *Machine[T] {
	return &Machine[T]{
		revealed: make(map[int]bool),
		changed:  make(chan struct{}),
	}
}

// Trigger starts a new cycle. Previous data, reveal flags and answer are
// discarded immediately.
func (m *Machine[T]) Trigger() (Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase == Loading {
		return 0, ErrBusy
	}

	var zero T
	m.phase = Loading
	m.data = zero
	m.errMsg = ""
	m.revealed = make(map[int]bool)
	m.answer = ""
	m.ticket++
	m.notify()
	return m.ticket, nil
}

// Resolve ends the cycle identified by t with data or err. It reports false
// when t is not the current cycle, in which case nothing changes.
func (m *Machine[T]) Resolve(t Ticket, data T, err error) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != Loading || t != m.ticket {
		return false
	}

	if err != nil {
		m.phase = Failure
		m.errMsg = err.Error()
	} else {
		m.phase = Success
		m.data = data
	}
	m.notify()
	return true
}

// ToggleReveal flips the reveal flag for key and returns its new value.
func (m *Machine[T]) ToggleReveal(key int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != Success {
		return false, ErrNoContent
	}
	m.revealed[key] = !m.revealed[key]
	m.notify()
	return m.revealed[key], nil
}

// Choose records the learner's answer for the current content.
func (m *Machine[T]) Choose(answer string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != Success {
		return ErrNoContent
	}
	m.answer = answer
	m.notify()
	return nil
}

// Phase returns the current phase.
func (m *Machine[T]) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// View returns the view the current phase selects.
func (m *Machine[T]) View() View {
	return viewOf(m.Phase())
}

// Data returns the generated value and whether the machine is in Success.
func (m *Machine[T]) Data() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data, m.phase == Success
}

// Snapshot returns a copy of the full state.
func (m *Machine[T]) Snapshot() Snapshot[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot[T]{
		Phase:    m.phase,
		View:     viewOf(m.phase),
		Data:     m.data,
		Error:    m.errMsg,
		Revealed: maps.Clone(m.revealed),
		Answer:   m.answer,
		Version:  m.version,
	}
}

// Changed returns a channel closed on the next change.
func (m *Machine[T]) Changed() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.changed
}

// notify must be called with mu held.
func (m *Machine[T]) notify() {
	m.version++
	close(m.changed)
	m.changed = make(chan struct{})
}

func viewOf(p Phase) View {
	switch p {
	case Loading:
		return LoadingIndicator
	case Failure:
		return ErrorPanel
	case Success:
		return Content
	default:
		return CallToAction
	}
}
