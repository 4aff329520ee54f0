package dataset

import (
	"fmt"
	"math/rand"
)

// ClassificationConfig configures MakeClassification.
type ClassificationConfig struct {
	Samples          int     // Number of samples (default: 1000)
	Features         int     // Total number of features (default: 20)
	Informative      int     // Features carrying the class signal (default: 2)
	Redundant        int     // Random linear combinations of the informative features (default: 2)
	Classes          int     // Number of classes (default: 2)
	ClustersPerClass int     // Gaussian clusters per class (default: 2)
	FlipY            float64 // Fraction of labels replaced at random (default: 0.01)
	ClassSep         float64 // Hypercube half-side (default: 1.0)
	NoShuffle        bool    // Keep samples grouped by cluster
}

// DefaultClassificationConfig returns the default generator settings.
func DefaultClassificationConfig() ClassificationConfig {
	return ClassificationConfig{
		Samples:          1000,
		Features:         20,
		Informative:      2,
		Redundant:        2,
		Classes:          2,
		ClustersPerClass: 2,
		FlipY:            0.01,
		ClassSep:         1.0,
	}
}

func (c ClassificationConfig) validate() error {
	switch {
	case c.Samples <= 0:
		return fmt.Errorf("dataset: samples must be > 0 (got %d)", c.Samples)
	case c.Classes < 2:
		return fmt.Errorf("dataset: classes must be >= 2 (got %d)", c.Classes)
	case c.Informative <= 0:
		return fmt.Errorf("dataset: informative must be > 0 (got %d)", c.Informative)
	case c.Redundant < 0:
		return fmt.Errorf("dataset: redundant must be >= 0 (got %d)", c.Redundant)
	case c.ClustersPerClass <= 0:
		return fmt.Errorf("dataset: clusters per class must be > 0 (got %d)", c.ClustersPerClass)
	case c.Informative+c.Redundant > c.Features:
		return fmt.Errorf("dataset: informative + redundant (%d) exceeds features (%d)", c.Informative+c.Redundant, c.Features)
	case c.FlipY < 0 || c.FlipY > 1:
		return fmt.Errorf("dataset: flip_y must be in [0, 1] (got %g)", c.FlipY)
	}
	if c.Informative < 31 && c.Classes*c.ClustersPerClass > 1<<c.Informative {
		return fmt.Errorf("dataset: classes * clusters per class (%d) exceeds 2^informative (%d)",
			c.Classes*c.ClustersPerClass, 1<<c.Informative)
	}
	return nil
}

// MakeClassification generates a random classification problem.
//
// Each class is made of ClustersPerClass Gaussian clusters centered on
// distinct vertices of a hypercube with side 2*ClassSep in the informative
// subspace. The clusters are linearly correlated by a random matrix.
// Redundant features are random linear combinations of the informative
// ones, and the remaining features are standard normal noise.
func MakeClassification(cfg ClassificationConfig, rng *rand.Rand) (*Dataset, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	inf := cfg.Informative
	clusters := cfg.Classes * cfg.ClustersPerClass
	centroids := hypercubeVertices(inf, clusters, cfg.ClassSep, rng)

	x := make([][]float32, cfg.Samples)
	y := make([]int32, cfg.Samples)

	// Samples are spread over the clusters as evenly as possible.
	perCluster := make([]int, clusters)
	for i := 0; i < cfg.Samples; i++ {
		perCluster[i%clusters]++
	}

	redundant := randomMatrix(inf, cfg.Redundant, rng)
	row := 0
	for k := 0; k < clusters; k++ {
		cov := randomMatrix(inf, inf, rng)
		for n := 0; n < perCluster[k]; n++ {
			sample := make([]float32, cfg.Features)

			g := make([]float64, inf)
			for i := range g {
				g[i] = rng.NormFloat64()
			}
			for j := 0; j < inf; j++ {
				v := centroids[k][j]
				for i := 0; i < inf; i++ {
					v += g[i] * cov[i][j]
				}
				sample[j] = float32(v)
			}
			for j := 0; j < cfg.Redundant; j++ {
				var v float64
				for i := 0; i < inf; i++ {
					v += float64(sample[i]) * redundant[i][j]
				}
				sample[inf+j] = float32(v)
			}
			for j := inf + cfg.Redundant; j < cfg.Features; j++ {
				sample[j] = float32(rng.NormFloat64())
			}

			x[row] = sample
			y[row] = int32(k % cfg.Classes)
			row++
		}
	}

	if cfg.FlipY > 0 {
		for i := range y {
			if rng.Float64() < cfg.FlipY {
				y[i] = int32(rng.Intn(cfg.Classes))
			}
		}
	}

	if !cfg.NoShuffle {
		rng.Shuffle(len(x), func(i, j int) {
			x[i], x[j] = x[j], x[i]
			y[i], y[j] = y[j], y[i]
		})
	}

	return New(x, y)
}

// hypercubeVertices picks n distinct vertices of the dim-dimensional
// hypercube with coordinates in {-sep, +sep}.
func hypercubeVertices(dim, n int, sep float64, rng *rand.Rand) [][]float64 {
	picked := make(map[string]bool, n)
	out := make([][]float64, 0, n)
	bits := make([]byte, dim)
	for len(out) < n {
		for i := range bits {
			bits[i] = byte('0' + rng.Intn(2))
		}
		if picked[string(bits)] {
			continue
		}
		picked[string(bits)] = true

		v := make([]float64, dim)
		for i, b := range bits {
			if b == '1' {
				v[i] = sep
			} else {
				v[i] = -sep
			}
		}
		out = append(out, v)
	}
	return out
}

// randomMatrix returns a rows x cols matrix uniform in [-1, 1).
func randomMatrix(rows, cols int, rng *rand.Rand) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
		for j := range m[i] {
			m[i][j] = 2*rng.Float64() - 1
		}
	}
	return m
}
