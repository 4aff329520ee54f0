// Package parallel splits index ranges across goroutines.
package parallel

import (
	"runtime"
	"sync"

	"github.com/klauspost/cpuid/v2"
)

// Config controls how a range is split.
type Config struct {
	Workers  int // Goroutines to use; 1 or less runs inline
	MinChunk int // Smallest range handed to one goroutine
}

// DefaultConfig uses one worker per physical core and chunks of at least
// 256 items.
func DefaultConfig() Config {
	workers := cpuid.CPU.PhysicalCores
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return Config{Workers: workers, MinChunk: 256}
}

// Chunks calls f on disjoint [start, end) ranges covering [0, n) and
// waits for all of them. Ranges are processed inline when n is below
// MinChunk or only one worker is configured. f must only write state
// owned by its range.
func Chunks(n int, cfg Config, f func(start, end int)) {
	if n <= 0 {
		return
	}
	if cfg.Workers <= 1 || n < cfg.MinChunk {
		f(0, n)
		return
	}

	size := max((n+cfg.Workers-1)/cfg.Workers, cfg.MinChunk, 1)
	var wg sync.WaitGroup
	for start := 0; start < n; start += size {
		end := min(start+size, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			f(s, e)
		}(start, end)
	}
	wg.Wait()
}

// For calls f(i) for every i in [0, n).
func For(n int, cfg Config, f func(i int)) {
	Chunks(n, cfg, func(start, end int) {
		for i := start; i < end; i++ {
			f(i)
		}
	})
}
