package callback

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/born-ml/bornfit/internal/params"
)

// Entry is a registered callback and the name it is addressed by.
type Entry struct {
	Name     string // empty means "use the kind"
	Callback Callback
}

// Named returns an entry with an explicit name.
func Named(name string, cb Callback) Entry {
	return Entry{Name: name, Callback: cb}
}

type hook struct {
	name  string
	state func(Net, *State) error
	batch func(Net, *Batch) error
}

// Dispatcher owns the ordered callbacks of a trainer.
//
// Entries are addressed by name or by position through the params tree, so
// "callbacks__milestone__threshold" and "callbacks__5__threshold" reach the
// same field when the milestone callback is sixth in the list.
type Dispatcher struct {
	entries []Entry
	index   map[string]int
	table   [numEvents][]hook
}

// NewDispatcher resolves names for defaults followed by user and returns
// the dispatcher. It fails with ErrDuplicateName when two callbacks end up
// with the same name.
//
// Unnamed callbacks take their kind as name. When several unnamed
// callbacks share a kind, each of them gets a "_1", "_2", ... suffix.
func NewDispatcher(defaults, user []Entry) (*Dispatcher, error) {
	all := make([]Entry, 0, len(defaults)+len(user))
	all = append(all, defaults...)
	all = append(all, user...)

	counts := make(map[string]int)
	for _, e := range all {
		if e.Callback == nil {
			return nil, fmt.Errorf("callback: nil callback %q", e.Name)
		}
		if e.Name == "" {
			counts[e.Callback.Kind()]++
		}
	}

	d := &Dispatcher{
		entries: make([]Entry, 0, len(all)),
		index:   make(map[string]int, len(all)),
	}
	seen := make(map[string]int)
	for _, e := range all {
		name := e.Name
		if name == "" {
			kind := e.Callback.Kind()
			name = kind
			if counts[kind] > 1 {
				seen[kind]++
				name = kind + "_" + strconv.Itoa(seen[kind])
			}
		}
		if _, dup := d.index[name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
		if _, err := strconv.Atoi(name); err == nil {
			return nil, fmt.Errorf("callback: name %q is reserved for positional access", name)
		}
		d.index[name] = len(d.entries)
		d.entries = append(d.entries, Entry{Name: name, Callback: e.Callback})
	}
	d.build()
	return d, nil
}

// Initialize calls Initialize on every callback in order.
func (d *Dispatcher) Initialize() error {
	for _, e := range d.entries {
		if err := e.Callback.Initialize(); err != nil {
			return fmt.Errorf("callback %s: %s: %w", e.Name, EventInitialize, err)
		}
	}
	return nil
}

// build fills the per-event dispatch table.
func (d *Dispatcher) build() {
	var table [numEvents][]hook
	for _, e := range d.entries {
		cb := e.Callback
		if h, ok := cb.(TrainBeginner); ok {
			table[EventTrainBegin] = append(table[EventTrainBegin], hook{name: e.Name, state: h.OnTrainBegin})
		}
		if h, ok := cb.(EpochBeginner); ok {
			table[EventEpochBegin] = append(table[EventEpochBegin], hook{name: e.Name, state: h.OnEpochBegin})
		}
		if h, ok := cb.(BatchBeginner); ok {
			table[EventBatchBegin] = append(table[EventBatchBegin], hook{name: e.Name, batch: h.OnBatchBegin})
		}
		if h, ok := cb.(BatchEnder); ok {
			table[EventBatchEnd] = append(table[EventBatchEnd], hook{name: e.Name, batch: h.OnBatchEnd})
		}
		if h, ok := cb.(EpochEnder); ok {
			table[EventEpochEnd] = append(table[EventEpochEnd], hook{name: e.Name, state: h.OnEpochEnd})
		}
		if h, ok := cb.(TrainEnder); ok {
			table[EventTrainEnd] = append(table[EventTrainEnd], hook{name: e.Name, state: h.OnTrainEnd})
		}
	}
	d.table = table
}

// Handlers returns the names of the callbacks bound to ev, in call order.
func (d *Dispatcher) Handlers(ev Event) []string {
	if ev < 0 || ev >= numEvents {
		return nil
	}
	names := make([]string, len(d.table[ev]))
	for i, h := range d.table[ev] {
		names[i] = h.name
	}
	return names
}

// TrainBegin fires EventTrainBegin.
func (d *Dispatcher) TrainBegin(net Net, s *State) error {
	return d.fireState(EventTrainBegin, net, s)
}

// EpochBegin fires EventEpochBegin.
func (d *Dispatcher) EpochBegin(net Net, s *State) error {
	return d.fireState(EventEpochBegin, net, s)
}

// BatchBegin fires EventBatchBegin.
func (d *Dispatcher) BatchBegin(net Net, b *Batch) error {
	return d.fireBatch(EventBatchBegin, net, b)
}

// BatchEnd fires EventBatchEnd.
func (d *Dispatcher) BatchEnd(net Net, b *Batch) error {
	return d.fireBatch(EventBatchEnd, net, b)
}

// EpochEnd fires EventEpochEnd.
func (d *Dispatcher) EpochEnd(net Net, s *State) error {
	return d.fireState(EventEpochEnd, net, s)
}

// TrainEnd fires EventTrainEnd.
//
// Unlike the other events, every handler runs even if an earlier one
// fails. The errors are joined.
func (d *Dispatcher) TrainEnd(net Net, s *State) error {
	var errs []error
	for _, h := range d.table[EventTrainEnd] {
		if err := h.state(net, s); err != nil {
			errs = append(errs, fmt.Errorf("callback %s: %s: %w", h.name, EventTrainEnd, err))
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) fireState(ev Event, net Net, s *State) error {
	for _, h := range d.table[ev] {
		if err := h.state(net, s); err != nil {
			return fmt.Errorf("callback %s: %s: %w", h.name, ev, err)
		}
	}
	return nil
}

func (d *Dispatcher) fireBatch(ev Event, net Net, b *Batch) error {
	for _, h := range d.table[ev] {
		if err := h.batch(net, b); err != nil {
			return fmt.Errorf("callback %s: %s: %w", h.name, ev, err)
		}
	}
	return nil
}

// Len returns the number of callbacks.
func (d *Dispatcher) Len() int {
	return len(d.entries)
}

// Entries returns the callbacks with their resolved names.
func (d *Dispatcher) Entries() []Entry {
	out := make([]Entry, len(d.entries))
	copy(out, d.entries)
	return out
}

// Get returns the callback addressed by name or by decimal position.
func (d *Dispatcher) Get(name string) (Callback, bool) {
	if i, ok := d.index[name]; ok {
		return d.entries[i].Callback, true
	}
	if i, err := strconv.Atoi(name); err == nil && i >= 0 && i < len(d.entries) {
		return d.entries[i].Callback, true
	}
	return nil, false
}

// Fields implements params.Node. The collection itself has no fields.
func (d *Dispatcher) Fields() []params.Field {
	return nil
}

// Children implements params.Parent. Positions are accepted by Child but
// not listed, so every field is flattened once.
func (d *Dispatcher) Children() []string {
	names := make([]string, len(d.entries))
	for i, e := range d.entries {
		names[i] = e.Name
	}
	return names
}

// Child implements params.Parent.
func (d *Dispatcher) Child(name string) (params.Node, bool) {
	cb, ok := d.Get(name)
	if !ok {
		return nil, false
	}
	return cb, true
}

var _ params.Parent = (*Dispatcher)(nil)
