package callback

import (
	"fmt"
	"sort"
)

var registry = map[string]func() Callback{
	"epoch_timer":    func() Callback { return NewEpochTimer() },
	"print_log":      func() Callback { return NewPrintLog() },
	"early_stopping": func() Callback { return NewEarlyStopping() },
	"lr_scheduler":   func() Callback { return NewLRScheduler(30, 0.1) },
	"checkpoint":     func() Callback { return NewCheckpoint("checkpoints") },
	"milestone":      func() Callback { return NewMilestone(0.7) },
	"epoch_scoring": func() Callback {
		return NewEpochScoring("valid_acc", ScoringAccuracy, false)
	},
	"passthrough_scoring": func() Callback {
		return NewPassthroughScoring("valid_loss", true)
	},
}

// Lookup returns a new callback of the given kind with default settings.
func Lookup(kind string) (Callback, error) {
	ctor, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownKind, kind, Kinds())
	}
	return ctor(), nil
}

// Kinds returns the registered kinds in sorted order.
func Kinds() []string {
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Defaults returns the callbacks every trainer starts with: the epoch
// timer, the loss and accuracy scorers and, when verbose, the progress
// table.
func Defaults(verbose bool) []Entry {
	entries := []Entry{
		Named("epoch_timer", NewEpochTimer()),
		Named("train_loss", NewPassthroughScoring("train_loss", true)),
		Named("valid_loss", NewPassthroughScoring("valid_loss", true)),
		Named("valid_acc", NewEpochScoring("valid_acc", ScoringAccuracy, false)),
	}
	if verbose {
		entries = append(entries, Named("print_log", NewPrintLog()))
	}
	return entries
}
