package estimator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/tensor"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/born-ml/bornfit/internal/callback"
	"github.com/born-ml/bornfit/internal/dataset"
)

// StopCanceled is the stop reason of a run whose context was canceled.
const StopCanceled = "canceled"

// Fit trains the classifier on d for MaxEpochs epochs.
//
// Fit initializes the classifier first unless warm start is on and it is
// already initialized, in which case the module, optimizer and history
// carry over and the new epochs are appended.
func (c *Classifier[B]) Fit(ctx context.Context, d *dataset.Dataset) error {
	if !c.cfg.WarmStart || !c.initialized {
		if err := c.Initialize(); err != nil {
			return err
		}
	}
	return c.PartialFit(ctx, d)
}

// PartialFit trains MaxEpochs more epochs without re-initializing.
//
// OnTrainEnd fires exactly once, whether the epoch budget was used up, a
// callback requested a stop, a hook failed or ctx was canceled. A canceled
// run returns ctx.Err() and the interrupted epoch is dropped from the
// history.
func (c *Classifier[B]) PartialFit(ctx context.Context, d *dataset.Dataset) error {
	if !c.initialized {
		if err := c.Initialize(); err != nil {
			return err
		}
	}
	if err := c.checkData(d); err != nil {
		return err
	}
	train, valid, err := c.split(d)
	if err != nil {
		return err
	}

	c.runID = uuid.NewString()
	c.stopReason = ""
	log := c.logger.With(zap.String("run", c.runID))
	validLen := 0
	if valid != nil {
		validLen = valid.Len()
	}
	log.Info("fit started",
		zap.Int("max_epochs", c.cfg.MaxEpochs),
		zap.Int("train_samples", train.Len()),
		zap.Int("valid_samples", validLen),
		zap.Int("prior_epochs", c.hist.Len()),
	)
	start := time.Now()

	state := &callback.State{Train: train, Valid: valid}
	var loopErr error
	if err := c.callbacks.TrainBegin(c, state); err != nil {
		loopErr = err
	} else {
		loopErr = c.loop(ctx, state)
	}
	state.StopReason = c.stopReason
	endErr := c.callbacks.TrainEnd(c, state)

	err = errors.Join(loopErr, endErr)
	log.Info("fit finished",
		zap.Int("epochs", c.hist.Len()),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("stop_reason", state.StopReason),
		zap.Error(err),
	)
	return err
}

func (c *Classifier[B]) checkData(d *dataset.Dataset) error {
	if d == nil {
		return dataset.ErrEmptyDataset
	}
	if err := d.Validate(); err != nil {
		return err
	}
	if got, want := d.NumFeatures(), c.mlp.InputUnits; got != want {
		return fmt.Errorf("%w: data has %d features, module expects %d", ErrDimensionMismatch, got, want)
	}
	if got, want := d.NumClasses(), c.mlp.OutputUnits; got > want {
		return fmt.Errorf("%w: data has %d classes, module has %d outputs", ErrDimensionMismatch, got, want)
	}
	return nil
}

// split holds out the validation fraction. valid is nil when TrainSplit is
// zero. The split draws from its own source seeded with Seed, so every fit
// on the same data validates on the same rows.
func (c *Classifier[B]) split(d *dataset.Dataset) (train, valid *dataset.Dataset, err error) {
	if c.cfg.TrainSplit == 0 {
		return d, nil, nil
	}
	rng := rand.New(rand.NewSource(c.cfg.Seed)) //nolint:gosec // reproducible split, not crypto
	return d.Split(c.cfg.TrainSplit, c.cfg.Stratified, rng)
}

func (c *Classifier[B]) loop(ctx context.Context, state *callback.State) error {
	for i := 0; i < c.cfg.MaxEpochs; i++ {
		if err := ctx.Err(); err != nil {
			c.Stop(StopCanceled)
			return err
		}

		state.Epoch = c.hist.NewEpoch()
		if err := c.runEpoch(ctx, state); err != nil {
			if ctx.Err() != nil {
				c.Stop(StopCanceled)
			}
			if derr := c.hist.DiscardLast(); derr != nil {
				return errors.Join(err, derr)
			}
			return err
		}

		if err := c.callbacks.EpochEnd(c, state); err != nil {
			return err
		}
		if c.stopReason != "" {
			c.logger.Info("training stopped",
				zap.Int("epoch", state.Epoch),
				zap.String("reason", c.stopReason),
			)
			return nil
		}
	}
	return nil
}

// runEpoch runs the epoch-begin hooks and both phases of the epoch whose
// record was just appended. On error the record is incomplete.
func (c *Classifier[B]) runEpoch(ctx context.Context, state *callback.State) error {
	state.TrainPred, state.ValidPred = nil, nil
	if err := c.callbacks.EpochBegin(c, state); err != nil {
		return err
	}
	var err error
	if state.TrainPred, err = c.runPhase(ctx, state.Train, true); err != nil {
		return err
	}
	if state.Valid != nil {
		if state.ValidPred, err = c.runPhase(ctx, state.Valid, false); err != nil {
			return err
		}
	}
	return nil
}

// runPhase passes over d once, training when training is set. It returns
// the predicted class of every sample of d, in dataset order.
func (c *Classifier[B]) runPhase(ctx context.Context, d *dataset.Dataset, training bool) ([]int32, error) {
	batches, err := dataset.Batches(d, c.ad, c.cfg.BatchSize, training, c.rng)
	if err != nil {
		return nil, err
	}

	tape := c.ad.Tape()
	wasRecording := tape.IsRecording()
	if training {
		tape.StartRecording()
	} else {
		tape.StopRecording()
	}
	c.net.SetTraining(training)
	defer func() {
		c.net.SetTraining(false)
		if wasRecording {
			tape.StartRecording()
		} else {
			tape.StopRecording()
		}
	}()

	pred := make([]int32, d.Len())
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info := &callback.Batch{Training: training, Index: i, Size: batch.Size}
		if err := c.hist.NewBatch(); err != nil {
			return nil, err
		}
		if err := c.callbacks.BatchBegin(c, info); err != nil {
			return nil, err
		}

		loss, batchPred, err := c.step(batch, training)
		if err != nil {
			return nil, err
		}
		info.Loss = loss
		for j, row := range batch.Index {
			pred[row] = batchPred[j]
		}

		prefix := info.Prefix()
		if err := c.hist.RecordBatch(prefix+"_loss", loss); err != nil {
			return nil, err
		}
		if err := c.hist.RecordBatch(prefix+"_batch_size", float64(batch.Size)); err != nil {
			return nil, err
		}
		if err := c.callbacks.BatchEnd(c, info); err != nil {
			return nil, err
		}
	}
	return pred, nil
}

// step runs one batch: forward and loss, plus backward and an optimizer
// update when training.
func (c *Classifier[B]) step(batch *dataset.Batch[*autodiff.Backend[B]], training bool) (float64, []int32, error) {
	if training {
		c.optimizer.ZeroGrad()
	}

	logits := c.net.Forward(batch.X)
	loss := c.criterion.Forward(logits, batch.Y)
	lossValue := float64(loss.Raw().AsFloat32()[0])
	pred := append([]int32(nil), logits.Argmax(1).Data()...)

	if training {
		outputGrad, err := tensor.NewRaw(loss.Shape(), loss.DType(), c.ad.Device())
		if err != nil {
			return 0, nil, fmt.Errorf("estimator: failed to create output gradient: %w", err)
		}
		outputGrad.AsFloat32()[0] = 1.0

		grads := c.ad.Tape().Backward(outputGrad, c.ad)
		c.optimizer.Step(grads)
		c.ad.Tape().Clear()
	}
	return lossValue, pred, nil
}
