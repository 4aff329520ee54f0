package history

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fill(t *testing.T, h *History, losses ...float64) {
	t.Helper()
	for _, l := range losses {
		h.NewEpoch()
		require.NoError(t, h.Record("train_loss", l))
	}
}

func TestNewEpochNumbering(t *testing.T) {
	h := New()
	assert.Equal(t, 1, h.NewEpoch())
	assert.Equal(t, 2, h.NewEpoch())

	epoch, err := h.Float(-1, EpochKey)
	require.NoError(t, err)
	assert.Equal(t, 2.0, epoch)
	assert.Equal(t, 2, h.Len())
}

func TestWritesRequireEpoch(t *testing.T) {
	h := New()
	assert.ErrorIs(t, h.Record("train_loss", 1), ErrEmpty)
	assert.ErrorIs(t, h.Flag("train_loss_best", true), ErrEmpty)
	assert.ErrorIs(t, h.NewBatch(), ErrEmpty)

	h.NewEpoch()
	assert.ErrorIs(t, h.RecordBatch("train_loss", 1), ErrIndexOutOfRange)
}

func TestNegativeIndex(t *testing.T) {
	h := New()
	fill(t, h, 0.9, 0.8, 0.7)

	tests := []struct {
		index int
		want  float64
	}{
		{0, 0.9},
		{1, 0.8},
		{2, 0.7},
		{-1, 0.7},
		{-3, 0.9},
	}
	for _, tt := range tests {
		got, err := h.Float(tt.index, "train_loss")
		require.NoError(t, err, "index %d", tt.index)
		assert.Equal(t, tt.want, got, "index %d", tt.index)
	}

	_, err := h.Float(3, "train_loss")
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = h.Float(-4, "train_loss")
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestMissingKey(t *testing.T) {
	h := New()
	fill(t, h, 0.5)

	_, err := h.Float(-1, "valid_acc")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	h.NewEpoch()
	require.NoError(t, h.Record("valid_acc", 0.6))
	_, err = h.Floats("valid_acc")
	assert.ErrorIs(t, err, ErrKeyNotFound, "epoch 1 lacks valid_acc")
}

func TestOnlyLastEpochIsWritten(t *testing.T) {
	h := New()
	fill(t, h, 0.9)
	h.NewEpoch()
	require.NoError(t, h.Record("train_loss", 0.1))

	first, err := h.Float(0, "train_loss")
	require.NoError(t, err)
	assert.Equal(t, 0.9, first)

	col, err := h.Floats("train_loss")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.9, 0.1}, col)
}

func TestFlags(t *testing.T) {
	h := New()
	h.NewEpoch()
	require.NoError(t, h.Flag("valid_loss_best", true))

	best, err := h.Bool(-1, "valid_loss_best")
	require.NoError(t, err)
	assert.True(t, best)

	unset, err := h.Bool(-1, "train_loss_best")
	require.NoError(t, err)
	assert.False(t, unset)
	assert.True(t, h.Has(-1, "valid_loss_best"))
	assert.False(t, h.Has(-1, "train_loss_best"))
}

func TestBatches(t *testing.T) {
	h := New()
	h.NewEpoch()
	for _, l := range []float64{0.3, 0.2} {
		require.NoError(t, h.NewBatch())
		require.NoError(t, h.RecordBatch("train_loss", l))
	}
	require.NoError(t, h.NewBatch())
	require.NoError(t, h.RecordBatch("valid_loss", 0.25))

	n, err := h.NumBatches(-1)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	train, err := h.BatchFloats(-1, "train_loss")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.3, 0.2}, train)

	valid, err := h.BatchFloats(-1, "valid_loss")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25}, valid)
}

func TestKeysSorted(t *testing.T) {
	h := New()
	h.NewEpoch()
	require.NoError(t, h.Record("valid_acc", 0.5))
	require.NoError(t, h.Record("dur", 0.1))

	keys, err := h.Keys(-1)
	require.NoError(t, err)
	assert.Equal(t, []string{"dur", EpochKey, "valid_acc"}, keys)
}

func TestSaveLoad(t *testing.T) {
	h := New()
	fill(t, h, 0.7, 0.6)
	require.NoError(t, h.Flag("train_loss_best", true))
	require.NoError(t, h.NewBatch())
	require.NoError(t, h.RecordBatch("train_loss", 0.65))

	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, h.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, loaded.Len())

	col, err := loaded.Floats("train_loss")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.7, 0.6}, col)

	best, err := loaded.Bool(-1, "train_loss_best")
	require.NoError(t, err)
	assert.True(t, best)

	batches, err := loaded.BatchFloats(-1, "train_loss")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.65}, batches)
}

func TestUnmarshalRejectsStrings(t *testing.T) {
	h := New()
	err := h.UnmarshalJSON([]byte(`[{"epoch": 1, "note": "x"}]`))
	assert.Error(t, err)
}

func TestSaveLoadNonFinite(t *testing.T) {
	h := New()
	fill(t, h, 0.7, math.NaN())
	require.NoError(t, h.NewBatch())
	require.NoError(t, h.RecordBatch("train_loss", math.Inf(1)))

	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, h.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	col, err := loaded.Floats("train_loss")
	require.NoError(t, err)
	require.Len(t, col, 2)
	assert.Equal(t, 0.7, col[0])
	assert.True(t, math.IsNaN(col[1]))

	batches, err := loaded.BatchFloats(-1, "train_loss")
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.True(t, math.IsNaN(batches[0]))
}
