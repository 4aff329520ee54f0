package estimator

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/nn"
	"go.uber.org/zap"

	"github.com/born-ml/bornfit/internal/history"
)

// File names inside a parameter directory.
const (
	ParamsFile  = "params.born"
	HistoryFile = "history.json"
)

const modelType = "MLP"

// SaveParams writes the module weights in born format and the history as
// JSON to dir, creating dir if needed.
func (c *Classifier[B]) SaveParams(dir string) error {
	if !c.initialized {
		return ErrNotInitialized
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("estimator: failed to create %s: %w", dir, err)
	}

	metadata := map[string]string{
		"run":          c.runID,
		"epochs":       strconv.Itoa(c.hist.Len()),
		"input_units":  strconv.Itoa(c.mlp.InputUnits),
		"hidden_units": strconv.Itoa(c.mlp.HiddenUnits),
		"output_units": strconv.Itoa(c.mlp.OutputUnits),
		"num_hidden":   strconv.Itoa(c.mlp.NumHidden),
		"nonlin":       c.mlp.Nonlin,
	}
	path := filepath.Join(dir, ParamsFile)
	if err := nn.Save[*autodiff.Backend[B]](c.net, path, modelType, metadata); err != nil {
		return fmt.Errorf("estimator: failed to save module: %w", err)
	}
	if err := c.hist.Save(filepath.Join(dir, HistoryFile)); err != nil {
		return err
	}
	c.logger.Debug("params saved", zap.String("dir", dir), zap.Int("epochs", c.hist.Len()))
	return nil
}

// LoadParams restores the module weights and, when present, the history
// from a directory written by SaveParams. The classifier must be
// initialized with the same module configuration.
func (c *Classifier[B]) LoadParams(dir string) error {
	if !c.initialized {
		return ErrNotInitialized
	}
	if _, err := nn.Load[*autodiff.Backend[B]](filepath.Join(dir, ParamsFile), c.ad, c.net); err != nil {
		return fmt.Errorf("estimator: failed to load module: %w", err)
	}

	path := filepath.Join(dir, HistoryFile)
	if _, err := os.Stat(path); err == nil {
		h, err := history.Load(path)
		if err != nil {
			return err
		}
		c.hist = h
	}
	c.logger.Debug("params loaded", zap.String("dir", dir), zap.Int("epochs", c.hist.Len()))
	return nil
}
