package estimator

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/born-ml/born/backend/cpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/bornfit/internal/callback"
	"github.com/born-ml/bornfit/internal/dataset"
	"github.com/born-ml/bornfit/internal/module"
	"github.com/born-ml/bornfit/internal/params"
)

// counter records how often each hook fired.
type counter struct {
	initialized int
	trainBegin  int
	epochBegin  int
	batches     int
	epochEnd    int
	trainEnd    int
	lastState   callback.State
	valid       []*dataset.Dataset // validation set of every fit

	stopAt      int // call Stop at the end of this epoch
	failAt      int // fail at the end of this epoch
	beginFailAt int // fail at the beginning of this epoch
	cancelAt int // cancel during the first batch of this epoch

	cancel func()
}

var errHook = errors.New("hook failed")

func (c *counter) Kind() string { return "counter" }

func (c *counter) Fields() []params.Field { return nil }

func (c *counter) Initialize() error {
	c.initialized++
	return nil
}

func (c *counter) OnTrainBegin(_ callback.Net, s *callback.State) error {
	c.trainBegin++
	c.valid = append(c.valid, s.Valid)
	return nil
}

func (c *counter) OnEpochBegin(_ callback.Net, s *callback.State) error {
	c.epochBegin++
	if s.Epoch == c.beginFailAt {
		return errHook
	}
	return nil
}

func (c *counter) OnBatchEnd(net callback.Net, b *callback.Batch) error {
	c.batches++
	if c.cancel != nil && b.Training && b.Index == 0 && net.History().Len() == c.cancelAt {
		c.cancel()
	}
	return nil
}

func (c *counter) OnEpochEnd(net callback.Net, s *callback.State) error {
	c.epochEnd++
	if s.Epoch == c.failAt {
		return errHook
	}
	if s.Epoch == c.stopAt {
		net.Stop("counter")
	}
	return nil
}

func (c *counter) OnTrainEnd(_ callback.Net, s *callback.State) error {
	c.trainEnd++
	c.lastState = *s
	return nil
}

func testData(t *testing.T, samples int) *dataset.Dataset {
	t.Helper()
	cfg := dataset.ClassificationConfig{
		Samples:          samples,
		Features:         4,
		Informative:      2,
		Classes:          2,
		ClustersPerClass: 1,
		ClassSep:         2,
	}
	d, err := dataset.MakeClassification(cfg, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	return d
}

func testModule() *module.MLP {
	return &module.MLP{
		InputUnits:  4,
		HiddenUnits: 8,
		OutputUnits: 2,
		NumHidden:   1,
		Nonlin:      module.ReLU,
	}
}

func newTestClassifier(t *testing.T, opts ...Option) *Classifier[*cpu.Backend] {
	t.Helper()
	base := []Option{
		WithModule(testModule()),
		WithMaxEpochs(3),
		WithBatchSize(32),
		WithLR(0.1),
		WithSeed(7),
		WithVerbose(false),
		WithOutput(io.Discard),
	}
	clf, err := New(cpu.New(), append(base, opts...)...)
	require.NoError(t, err)
	return clf
}

func TestFitRecordsHistory(t *testing.T) {
	clf := newTestClassifier(t)
	require.NoError(t, clf.Fit(context.Background(), testData(t, 200)))

	h := clf.History()
	require.Equal(t, 3, h.Len())
	for i := 0; i < h.Len(); i++ {
		epoch, err := h.Float(i, "epoch")
		require.NoError(t, err)
		assert.Equal(t, float64(i+1), epoch)
		for _, key := range []string{"train_loss", "valid_loss", "valid_acc", "dur"} {
			assert.True(t, h.Has(i, key), "epoch %d lacks %s", i+1, key)
		}
	}

	acc, err := h.Floats("valid_acc")
	require.NoError(t, err)
	for _, a := range acc {
		assert.GreaterOrEqual(t, a, 0.0)
		assert.LessOrEqual(t, a, 1.0)
	}

	// 160 training samples in batches of 32, 40 validation samples in 2.
	n, err := h.NumBatches(-1)
	require.NoError(t, err)
	assert.Equal(t, 5+2, n)
}

func TestFitReducesTrainingLoss(t *testing.T) {
	clf := newTestClassifier(t, WithMaxEpochs(20))
	require.NoError(t, clf.Fit(context.Background(), testData(t, 200)))

	loss, err := clf.History().Floats("train_loss")
	require.NoError(t, err)
	require.Len(t, loss, 20)
	assert.Less(t, loss[len(loss)-1], loss[0])
}

func TestFitIsDeterministic(t *testing.T) {
	d := testData(t, 200)
	run := func() []float64 {
		clf := newTestClassifier(t)
		require.NoError(t, clf.Fit(context.Background(), d))
		loss, err := clf.History().Floats("valid_loss")
		require.NoError(t, err)
		return loss
	}
	assert.InDeltaSlice(t, run(), run(), 1e-6)
}

func TestWarmStartAppendsHistory(t *testing.T) {
	d := testData(t, 200)
	clf := newTestClassifier(t, WithWarmStart(true))

	require.NoError(t, clf.Fit(context.Background(), d))
	require.Equal(t, 3, clf.History().Len())
	before := make([]map[string]float64, 3)
	for i := range before {
		v, err := clf.History().Values(i)
		require.NoError(t, err)
		before[i] = v
	}
	net := clf.Module()

	require.NoError(t, clf.SetParams(map[string]any{"max_epochs": 2}))
	require.NoError(t, clf.Fit(context.Background(), d))

	h := clf.History()
	require.Equal(t, 5, h.Len())
	assert.Same(t, net, clf.Module())
	for i := range before {
		v, err := h.Values(i)
		require.NoError(t, err)
		assert.Equal(t, before[i], v, "epoch %d changed", i+1)
	}
	epoch, err := h.Float(-1, "epoch")
	require.NoError(t, err)
	assert.Equal(t, 5.0, epoch)
}

func TestColdStartResets(t *testing.T) {
	d := testData(t, 100)
	clf := newTestClassifier(t, WithMaxEpochs(2))

	require.NoError(t, clf.Fit(context.Background(), d))
	net := clf.Module()
	require.NoError(t, clf.Fit(context.Background(), d))

	assert.Equal(t, 2, clf.History().Len())
	assert.NotSame(t, net, clf.Module())
}

func TestPartialFitKeepsModel(t *testing.T) {
	d := testData(t, 100)
	clf := newTestClassifier(t, WithMaxEpochs(2))

	require.NoError(t, clf.PartialFit(context.Background(), d))
	net := clf.Module()
	require.NoError(t, clf.PartialFit(context.Background(), d))

	assert.Equal(t, 4, clf.History().Len())
	assert.Same(t, net, clf.Module())
}

func TestTrainEndFiresOnce(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		want      string
		epoch     int
	}{
		{name: "reached", threshold: 0, want: "Accuracy reached 0 at epoch 1!!!", epoch: 1},
		{name: "never reached", threshold: 2, want: "Accuracy never reached 2 :(", epoch: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			cnt := &counter{}
			ms := callback.NewMilestone(tt.threshold)
			clf := newTestClassifier(t,
				WithOutput(&out),
				WithCallbacks(callback.Entry{Callback: cnt}, callback.Entry{Callback: ms}),
			)

			require.NoError(t, clf.Fit(context.Background(), testData(t, 100)))

			assert.Equal(t, 1, cnt.initialized)
			assert.Equal(t, 1, cnt.trainBegin)
			assert.Equal(t, 3, cnt.epochBegin)
			assert.Equal(t, 3, cnt.epochEnd)
			assert.Equal(t, 1, cnt.trainEnd)
			assert.Equal(t, tt.epoch, ms.Epoch())
			assert.Equal(t, 1, strings.Count(out.String(), tt.want))
			assert.Equal(t, 2, strings.Count(out.String(), strings.Repeat("~", 60)))
		})
	}
}

func TestStopRequestEndsLoop(t *testing.T) {
	cnt := &counter{stopAt: 2}
	clf := newTestClassifier(t, WithMaxEpochs(10), WithCallbacks(callback.Entry{Callback: cnt}))

	require.NoError(t, clf.Fit(context.Background(), testData(t, 100)))

	assert.Equal(t, 2, clf.History().Len())
	assert.Equal(t, 1, cnt.trainEnd)
	assert.Equal(t, "counter", cnt.lastState.StopReason)
}

func TestHookErrorStillEndsTraining(t *testing.T) {
	cnt := &counter{failAt: 1}
	clf := newTestClassifier(t, WithMaxEpochs(5), WithCallbacks(callback.Entry{Callback: cnt}))

	err := clf.Fit(context.Background(), testData(t, 100))
	require.ErrorIs(t, err, errHook)
	assert.Contains(t, err.Error(), "callback counter: on_epoch_end")
	assert.Equal(t, 1, clf.History().Len())
	assert.Equal(t, 1, cnt.trainEnd)
}

func TestFailedEpochIsDropped(t *testing.T) {
	cnt := &counter{beginFailAt: 2}
	clf := newTestClassifier(t, WithWarmStart(true), WithCallbacks(callback.Entry{Callback: cnt}))
	d := testData(t, 100)

	err := clf.Fit(context.Background(), d)
	require.ErrorIs(t, err, errHook)
	assert.Contains(t, err.Error(), "callback counter: on_epoch_begin")
	assert.Equal(t, 1, clf.History().Len())
	assert.Equal(t, 1, cnt.trainEnd)

	// The next warm-start fit continues from the completed epochs only.
	cnt.beginFailAt = 0
	require.NoError(t, clf.Fit(context.Background(), d))
	require.Equal(t, 4, clf.History().Len())
	losses, err := clf.History().Floats("train_loss")
	require.NoError(t, err)
	assert.Len(t, losses, 4)
	epoch, err := clf.History().Float(-1, "epoch")
	require.NoError(t, err)
	assert.Equal(t, 4.0, epoch)
}

func TestWarmStartKeepsValidationRows(t *testing.T) {
	cnt := &counter{}
	clf := newTestClassifier(t, WithWarmStart(true), WithCallbacks(callback.Entry{Callback: cnt}))
	d := testData(t, 200)

	require.NoError(t, clf.Fit(context.Background(), d))
	require.NoError(t, clf.Fit(context.Background(), d))

	require.Len(t, cnt.valid, 2)
	require.NotNil(t, cnt.valid[0])
	assert.Equal(t, 40, cnt.valid[0].Len())
	assert.Equal(t, cnt.valid[0].X, cnt.valid[1].X)
	assert.Equal(t, cnt.valid[0].Y, cnt.valid[1].Y)
}

func TestCanceledContext(t *testing.T) {
	t.Run("before fit", func(t *testing.T) {
		cnt := &counter{}
		clf := newTestClassifier(t, WithCallbacks(callback.Entry{Callback: cnt}))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := clf.Fit(ctx, testData(t, 100))
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, clf.History().Len())
		assert.Equal(t, 1, cnt.trainEnd)
		assert.Equal(t, StopCanceled, cnt.lastState.StopReason)
	})

	t.Run("during epoch", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		cnt := &counter{cancelAt: 2, cancel: cancel}
		clf := newTestClassifier(t, WithMaxEpochs(5), WithCallbacks(callback.Entry{Callback: cnt}))

		err := clf.Fit(ctx, testData(t, 100))
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, clf.History().Len(), "interrupted epoch is dropped")
		assert.Equal(t, 1, cnt.epochEnd)
		assert.Equal(t, 1, cnt.trainEnd)
	})
}

func TestFitRejectsMismatchedData(t *testing.T) {
	clf := newTestClassifier(t, WithModule(&module.MLP{
		InputUnits: 3, HiddenUnits: 4, OutputUnits: 2, NumHidden: 1, Nonlin: module.Tanh,
	}))
	err := clf.Fit(context.Background(), testData(t, 50))
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	err = clf.Fit(context.Background(), nil)
	assert.ErrorIs(t, err, dataset.ErrEmptyDataset)
}

func TestFitWithoutValidation(t *testing.T) {
	clf := newTestClassifier(t, WithTrainSplit(0))
	require.NoError(t, clf.Fit(context.Background(), testData(t, 64)))

	h := clf.History()
	assert.True(t, h.Has(-1, "train_loss"))
	assert.False(t, h.Has(-1, "valid_loss"))
	assert.False(t, h.Has(-1, "valid_acc"))
}

func TestPredict(t *testing.T) {
	d := testData(t, 100)
	clf := newTestClassifier(t)

	_, err := clf.Predict(d.X)
	require.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, clf.Fit(context.Background(), d))

	pred, err := clf.Predict(d.X)
	require.NoError(t, err)
	require.Len(t, pred, d.Len())
	for _, p := range pred {
		assert.Contains(t, []int32{0, 1}, p)
	}

	proba, err := clf.PredictProba(d.X)
	require.NoError(t, err)
	require.Len(t, proba, d.Len())
	for i, row := range proba {
		require.Len(t, row, 2)
		assert.InDelta(t, 1.0, float64(row[0]+row[1]), 1e-5)
		want := int32(0)
		if row[1] > row[0] {
			want = 1
		}
		assert.Equal(t, want, pred[i], "row %d", i)
	}

	score, err := clf.Score(d)
	require.NoError(t, err)
	assert.InDelta(t, callback.Accuracy(d.Y, pred), score, 1e-12)

	_, err = clf.Predict([][]float32{{1, 2}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestPredictIgnoresDropout(t *testing.T) {
	mlp := testModule()
	mlp.Dropout = 0.5
	clf := newTestClassifier(t, WithModule(mlp))
	require.NoError(t, clf.Initialize())

	x := testData(t, 20).X
	a, err := clf.PredictProba(x)
	require.NoError(t, err)
	b, err := clf.PredictProba(x)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSaveLoadParams(t *testing.T) {
	d := testData(t, 100)
	dir := filepath.Join(t.TempDir(), "cp")

	clf := newTestClassifier(t)
	require.ErrorIs(t, clf.SaveParams(dir), ErrNotInitialized)
	require.NoError(t, clf.Fit(context.Background(), d))
	require.NoError(t, clf.SaveParams(dir))

	for _, name := range []string{ParamsFile, HistoryFile} {
		_, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
	}

	want, err := clf.PredictProba(d.X)
	require.NoError(t, err)

	restored := newTestClassifier(t, WithSeed(99))
	require.NoError(t, restored.Initialize())
	require.NoError(t, restored.LoadParams(dir))

	got, err := restored.PredictProba(d.X)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, clf.History().Len(), restored.History().Len())
}

func TestLoadParamsRejectsOtherModule(t *testing.T) {
	d := testData(t, 50)
	dir := t.TempDir()

	clf := newTestClassifier(t, WithMaxEpochs(1))
	require.NoError(t, clf.Fit(context.Background(), d))
	require.NoError(t, clf.SaveParams(dir))

	other := newTestClassifier(t, WithParams(map[string]any{"module__hidden_units": 5}))
	require.NoError(t, other.Initialize())
	assert.Error(t, other.LoadParams(dir))
}

func TestNewRejectsDuplicateCallbackNames(t *testing.T) {
	_, err := New(cpu.New(),
		WithCallbacks(callback.Named("valid_acc", callback.NewMilestone(0.5))),
	)
	assert.ErrorIs(t, err, callback.ErrDuplicateName)
}

func TestNewRejectsUnknownParams(t *testing.T) {
	_, err := New(cpu.New(), WithParams(map[string]any{"module__bogus": 1}))
	var perr *params.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "bogus", perr.Segment)
}

func TestCallbackLookup(t *testing.T) {
	ms := callback.NewMilestone(0.7)
	clf := newTestClassifier(t, WithCallbacks(callback.Entry{Callback: ms}))

	got, err := clf.Callback("milestone")
	require.NoError(t, err)
	assert.Same(t, ms, got)

	got, err = clf.Callback("4")
	require.NoError(t, err)
	assert.Same(t, ms, got)

	_, err = clf.Callback("nope")
	assert.ErrorIs(t, err, callback.ErrNotFound)
}
