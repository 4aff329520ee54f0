// Package history implements the per-epoch metric log produced by a training run.
//
// A History is an append-only sequence of epoch records. Each record maps a
// metric name (train_loss, valid_acc, dur, ...) to a float64 and optionally
// carries boolean flags (valid_loss_best, event_cp, ...) plus an ordered list
// of batch records.
//
// Only the last record is writable. Reads accept negative indices, where -1
// is the most recent epoch.
package history

import (
	"errors"
	"fmt"
	"sort"
)

// Common errors.
var (
	ErrIndexOutOfRange = errors.New("history: index out of range")
	ErrKeyNotFound     = errors.New("history: key not found")
	ErrEmpty           = errors.New("history: no epochs recorded")
)

// EpochKey is the key holding the 1-based epoch number of a record.
const EpochKey = "epoch"

// Batch is a single batch record.
type Batch struct {
	values map[string]float64
}

// Epoch is a single epoch record.
type Epoch struct {
	values  map[string]float64
	flags   map[string]bool
	batches []*Batch
}

// History is the append-only per-epoch log.
//
// The zero value is an empty history ready to use.
type History struct {
	epochs []*Epoch
}

// New creates an empty history.
func New() *History {
	return &History{}
}

// Len returns the number of recorded epochs.
func (h *History) Len() int {
	return len(h.epochs)
}

// NewEpoch appends a new epoch record and returns its 1-based number.
//
// The record is created with the EpochKey already set.
func (h *History) NewEpoch() int {
	n := len(h.epochs) + 1
	h.epochs = append(h.epochs, &Epoch{
		values: map[string]float64{EpochKey: float64(n)},
		flags:  make(map[string]bool),
	})
	return n
}

// Record stores a metric value in the last epoch record.
func (h *History) Record(key string, value float64) error {
	last, err := h.last()
	if err != nil {
		return err
	}
	last.values[key] = value
	return nil
}

// Flag stores a boolean flag in the last epoch record.
func (h *History) Flag(key string, value bool) error {
	last, err := h.last()
	if err != nil {
		return err
	}
	last.flags[key] = value
	return nil
}

// NewBatch appends a batch record to the last epoch.
func (h *History) NewBatch() error {
	last, err := h.last()
	if err != nil {
		return err
	}
	last.batches = append(last.batches, &Batch{values: make(map[string]float64)})
	return nil
}

// RecordBatch stores a value in the last batch of the last epoch.
func (h *History) RecordBatch(key string, value float64) error {
	last, err := h.last()
	if err != nil {
		return err
	}
	if len(last.batches) == 0 {
		return fmt.Errorf("%w: epoch %d has no batches", ErrIndexOutOfRange, len(h.epochs))
	}
	last.batches[len(last.batches)-1].values[key] = value
	return nil
}

// Float returns the metric key of epoch i. Negative i counts from the end.
func (h *History) Float(i int, key string) (float64, error) {
	e, err := h.at(i)
	if err != nil {
		return 0, err
	}
	v, ok := e.values[key]
	if !ok {
		return 0, fmt.Errorf("%w: %q in epoch %d", ErrKeyNotFound, key, h.normalize(i)+1)
	}
	return v, nil
}

// Bool returns the flag key of epoch i. Negative i counts from the end.
//
// A flag that was never set reads as false without error.
func (h *History) Bool(i int, key string) (bool, error) {
	e, err := h.at(i)
	if err != nil {
		return false, err
	}
	return e.flags[key], nil
}

// Has reports whether epoch i holds the metric or flag key.
func (h *History) Has(i int, key string) bool {
	e, err := h.at(i)
	if err != nil {
		return false
	}
	if _, ok := e.values[key]; ok {
		return true
	}
	_, ok := e.flags[key]
	return ok
}

// Floats returns the metric key for every epoch, in epoch order.
//
// Fails with ErrKeyNotFound if any epoch lacks the key.
func (h *History) Floats(key string) ([]float64, error) {
	out := make([]float64, 0, len(h.epochs))
	for n, e := range h.epochs {
		v, ok := e.values[key]
		if !ok {
			return nil, fmt.Errorf("%w: %q in epoch %d", ErrKeyNotFound, key, n+1)
		}
		out = append(out, v)
	}
	return out, nil
}

// NumBatches returns the number of batch records of epoch i.
func (h *History) NumBatches(i int) (int, error) {
	e, err := h.at(i)
	if err != nil {
		return 0, err
	}
	return len(e.batches), nil
}

// BatchFloats returns key for each batch of epoch i that recorded it.
//
// Batches of the other phase (training vs validation) do not carry the same
// keys, so missing keys are skipped rather than reported.
func (h *History) BatchFloats(i int, key string) ([]float64, error) {
	e, err := h.at(i)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(e.batches))
	for _, b := range e.batches {
		if v, ok := b.values[key]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// Keys returns the sorted metric keys of epoch i.
func (h *History) Keys(i int) ([]string, error) {
	e, err := h.at(i)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(e.values))
	for k := range e.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// FlagKeys returns the sorted flag keys of epoch i.
func (h *History) FlagKeys(i int) ([]string, error) {
	e, err := h.at(i)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(e.flags))
	for k := range e.flags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Values returns a copy of the metrics of epoch i.
func (h *History) Values(i int) (map[string]float64, error) {
	e, err := h.at(i)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(e.values))
	for k, v := range e.values {
		out[k] = v
	}
	return out, nil
}

// Last returns a copy of the metrics of the most recent epoch.
func (h *History) Last() (map[string]float64, error) {
	return h.Values(-1)
}

// DiscardLast removes the most recent record. The trainer uses it for an
// epoch that was interrupted before it completed.
func (h *History) DiscardLast() error {
	if len(h.epochs) == 0 {
		return ErrEmpty
	}
	h.epochs = h.epochs[:len(h.epochs)-1]
	return nil
}

// Clear drops every record.
func (h *History) Clear() {
	h.epochs = nil
}

func (h *History) normalize(i int) int {
	if i < 0 {
		return len(h.epochs) + i
	}
	return i
}

func (h *History) at(i int) (*Epoch, error) {
	j := h.normalize(i)
	if j < 0 || j >= len(h.epochs) {
		return nil, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, i, len(h.epochs))
	}
	return h.epochs[j], nil
}

func (h *History) last() (*Epoch, error) {
	if len(h.epochs) == 0 {
		return nil, ErrEmpty
	}
	return h.epochs[len(h.epochs)-1], nil
}
