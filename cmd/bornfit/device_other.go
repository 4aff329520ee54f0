//go:build !windows

package main

import (
	"fmt"

	"github.com/born-ml/born/backend/cpu"
)

// runDevice runs j on the named device. WebGPU is only built on windows.
func runDevice(name string, j *job) error {
	switch name {
	case "", "cpu":
		return execute(cpu.New(), j)
	default:
		return fmt.Errorf("device %q is not available on this platform", name)
	}
}
