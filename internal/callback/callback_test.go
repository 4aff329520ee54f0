package callback

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/born-ml/bornfit/internal/history"
	"github.com/born-ml/bornfit/internal/params"
)

// fakeNet is a trainer stand-in that records the calls made by hooks.
type fakeNet struct {
	hist    *history.History
	out     bytes.Buffer
	lr      float64
	stopped string
	saved   []string
	saveErr error
}

func newFakeNet() *fakeNet {
	return &fakeNet{hist: history.New(), lr: 0.1}
}

func (n *fakeNet) History() *history.History { return n.hist }

func (n *fakeNet) Logger() *zap.Logger { return zap.NewNop() }

func (n *fakeNet) Output() io.Writer { return &n.out }

func (n *fakeNet) LR() float64 { return n.lr }

func (n *fakeNet) SetLR(lr float64) error {
	n.lr = lr
	return nil
}

func (n *fakeNet) Stop(reason string) {
	if n.stopped == "" {
		n.stopped = reason
	}
}

func (n *fakeNet) SaveParams(dir string) error {
	if n.saveErr != nil {
		return n.saveErr
	}
	n.saved = append(n.saved, dir)
	return nil
}

// epoch appends an epoch record holding values.
func (n *fakeNet) epoch(t *testing.T, values map[string]float64) {
	t.Helper()
	n.hist.NewEpoch()
	for k, v := range values {
		require.NoError(t, n.hist.Record(k, v))
	}
}

// recorder appends its name to a shared log on every hook.
type recorder struct {
	name string
	log  *[]string
	err  error
}

func (r *recorder) Kind() string { return "recorder" }

func (r *recorder) Fields() []params.Field {
	return []params.Field{params.Bind("name", &r.name)}
}

func (r *recorder) Initialize() error { return nil }

func (r *recorder) OnEpochEnd(_ Net, _ *State) error {
	*r.log = append(*r.log, "epoch_end:"+r.name)
	return r.err
}

func (r *recorder) OnTrainEnd(_ Net, _ *State) error {
	*r.log = append(*r.log, "train_end:"+r.name)
	return r.err
}

func TestEventString(t *testing.T) {
	assert.Equal(t, "on_epoch_end", EventEpochEnd.String())
	assert.Equal(t, "on_train_end", EventTrainEnd.String())
	assert.Equal(t, "Event(42)", Event(42).String())
}

func TestBatchPrefix(t *testing.T) {
	assert.Equal(t, "train", (&Batch{Training: true}).Prefix())
	assert.Equal(t, "valid", (&Batch{}).Prefix())
}

func TestAccuracy(t *testing.T) {
	y := []int32{0, 0, 0, 1}
	pred := []int32{0, 0, 0, 0}
	assert.InDelta(t, 0.75, Accuracy(y, pred), 1e-12)
	assert.InDelta(t, 0.5, BalancedAccuracy(y, pred), 1e-12)
	assert.Equal(t, 0.0, Accuracy(nil, nil))
	assert.Equal(t, 0.0, BalancedAccuracy(nil, nil))
}
