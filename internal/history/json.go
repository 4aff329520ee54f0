package history

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
)

const batchesKey = "batches"

// MarshalJSON encodes the history as a list of epoch objects.
//
// Metrics and flags share one object per epoch; batches are nested under
// the "batches" key:
//
//	[{"epoch": 1, "train_loss": 0.69, "train_loss_best": true, "batches": [{"train_loss": 0.7}]}]
//
// NaN and infinite values are written as null and read back as NaN.
func (h *History) MarshalJSON() ([]byte, error) {
	out := make([]map[string]any, len(h.epochs))
	for i, e := range h.epochs {
		obj := make(map[string]any, len(e.values)+len(e.flags)+1)
		for k, v := range e.values {
			obj[k] = finite(v)
		}
		for k, v := range e.flags {
			obj[k] = v
		}
		batches := make([]map[string]any, len(e.batches))
		for j, b := range e.batches {
			batch := make(map[string]any, len(b.values))
			for k, v := range b.values {
				batch[k] = finite(v)
			}
			batches[j] = batch
		}
		obj[batchesKey] = batches
		out[i] = obj
	}
	return json.Marshal(out)
}

// UnmarshalJSON replaces the history with the decoded records.
func (h *History) UnmarshalJSON(data []byte) error {
	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("history: decode: %w", err)
	}

	epochs := make([]*Epoch, 0, len(raw))
	for i, obj := range raw {
		e := &Epoch{
			values: make(map[string]float64),
			flags:  make(map[string]bool),
		}
		for k, msg := range obj {
			if k == batchesKey {
				var batches []map[string]*float64
				if err := json.Unmarshal(msg, &batches); err != nil {
					return fmt.Errorf("history: epoch %d batches: %w", i+1, err)
				}
				for _, b := range batches {
					values := make(map[string]float64, len(b))
					for bk, bv := range b {
						values[bk] = orNaN(bv)
					}
					e.batches = append(e.batches, &Batch{values: values})
				}
				continue
			}

			var f *float64
			if err := json.Unmarshal(msg, &f); err == nil {
				e.values[k] = orNaN(f)
				continue
			}
			var b bool
			if err := json.Unmarshal(msg, &b); err != nil {
				return fmt.Errorf("history: epoch %d key %q: not a number or bool", i+1, k)
			}
			e.flags[k] = b
		}
		epochs = append(epochs, e)
	}

	h.epochs = epochs
	return nil
}

// finite returns v, or nil when v cannot be represented in JSON.
func finite(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func orNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

// WriteTo writes the JSON encoding to w.
func (h *History) WriteTo(w io.Writer) (int64, error) {
	data, err := h.MarshalJSON()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// Save writes the history as JSON to path.
func (h *History) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("history: create %s: %w", path, err)
	}
	if _, err := h.WriteTo(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("history: write %s: %w", path, err)
	}
	return f.Close()
}

// Load reads a history previously written by Save.
func Load(path string) (*History, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("history: read %s: %w", path, err)
	}
	h := New()
	if err := h.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return h, nil
}
