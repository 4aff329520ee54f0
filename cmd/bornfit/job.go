package main

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/born-ml/born/tensor"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"

	"github.com/born-ml/bornfit/internal/config"
	"github.com/born-ml/bornfit/internal/dataset"
	"github.com/born-ml/bornfit/internal/estimator"
)

type mode int

const (
	modeFit mode = iota
	modeParams
)

// job is a command body, run against the backend picked by runDevice.
type job struct {
	ctx  context.Context
	cfg  config.Config
	data *dataset.Dataset
	log  *zap.Logger
	out  io.Writer
	mode mode
}

func execute[B tensor.Backend](backend B, j *job) error {
	opts, err := j.cfg.Options(j.data)
	if err != nil {
		return err
	}
	opts = append(opts, estimator.WithLogger(j.log), estimator.WithOutput(j.out))
	clf, err := estimator.New(backend, opts...)
	if err != nil {
		return err
	}

	if j.mode == modeParams {
		return printParams(j.out, clf.Params())
	}

	fmt.Fprintf(j.out, "data: %s samples, %d features, %d classes\n",
		humanize.Comma(int64(j.data.Len())), j.data.NumFeatures(), j.data.NumClasses())
	for run := 1; run <= j.cfg.Runs; run++ {
		if j.cfg.Runs > 1 {
			fmt.Fprintf(j.out, "\n%s run\n", humanize.Ordinal(run))
		}
		if err := clf.Fit(j.ctx, j.data); err != nil {
			return fmt.Errorf("run %d: %w", run, err)
		}
		if run == 1 {
			fmt.Fprintf(j.out, "model: %s parameters\n", humanize.Comma(int64(clf.Module().NumParameters())))
		}
	}

	score, err := clf.Score(j.data)
	if err != nil {
		return err
	}
	fmt.Fprintf(j.out, "accuracy on all data: %.4f after %d epochs\n", score, clf.History().Len())

	if j.cfg.CheckpointDir != "" {
		if err := clf.SaveParams(j.cfg.CheckpointDir); err != nil {
			return err
		}
		j.log.Info("model saved", zap.String("dir", j.cfg.CheckpointDir))
	}
	return nil
}

func printParams(w io.Writer, flat map[string]any) error {
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"key", "value"})
	table.SetAutoFormatHeaders(false)
	table.SetBorder(false)
	for _, k := range keys {
		table.Append([]string{k, fmt.Sprint(flat[k])})
	}
	table.Render()
	return nil
}
