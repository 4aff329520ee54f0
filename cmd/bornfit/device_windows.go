//go:build windows

package main

import (
	"fmt"

	"github.com/born-ml/born/backend/cpu"
	"github.com/born-ml/born/backend/webgpu"
)

// runDevice runs j on the named device, falling back to the CPU when no
// WebGPU adapter is present.
func runDevice(name string, j *job) error {
	switch name {
	case "", "cpu":
		return execute(cpu.New(), j)
	case "webgpu":
		if !webgpu.IsAvailable() {
			j.log.Warn("webgpu not available, using cpu")
			return execute(cpu.New(), j)
		}
		gpu, err := webgpu.New()
		if err != nil {
			return fmt.Errorf("webgpu: %w", err)
		}
		defer gpu.Release()
		return execute(gpu, j)
	default:
		return fmt.Errorf("unknown device %q", name)
	}
}
