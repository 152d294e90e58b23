// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package driver defines the narrow set of interfaces through
// which the render graph talks to a GPU backend.
// Device/surface bootstrap, command buffer building and
// presentation are the backend's business; the render graph
// only creates pipelines, render passes, render targets,
// resources and locks, and records binds/draws/submits.
package driver

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
)

// Driver is the interface that provides methods for
// loading and unloading an underlying implementation.
type Driver interface {
	// Open initializes the driver.
	// If it succeeds, further calls with the same receiver
	// have no effect and must return the same GPU instance.
	// Callers should assume that Open is not safe for
	// parallel execution.
	Open() (GPU, error)

	// Name returns the name of the driver.
	// It must not cause the driver to be opened.
	Name() string

	// Close deinitializes the driver.
	// Closing a driver that is not open has no effect.
	Close()
}

// ErrNotInstalled means that a platform-specific library
// required for the driver to work is not present in the
// system.
var ErrNotInstalled = errors.New("driver: missing required library")

// ErrNoDevice means that no suitable device could be
// found.
var ErrNoDevice = errors.New("driver: no suitable device found")

// ErrNoDeviceMemory means that device memory could not
// be allocated.
var ErrNoDeviceMemory = errors.New("driver: out of device memory")

// ErrFatal means that the driver is in an unrecoverable
// state (e.g., device loss). Upon encountering such an
// error, the application must destroy everything that it
// created using the driver's GPU and then call Close.
var ErrFatal = errors.New("driver: fatal error")

// ErrSwapchain means that changes to the window or
// compositor made the swapchain unusable.
// RenderPass.Submit reports this condition by returning
// false rather than through this error; it is exposed
// for backends that need to wrap it.
var ErrSwapchain = errors.New("driver: swapchain-related error")

// ErrTimeout means that a Lock wait did not complete
// in time. Callers must treat it as fatal: the GPU is
// either hung or the work was never submitted.
var ErrTimeout = errors.New("driver: lock wait timed out")

// ErrNoParentPass means that a pipeline was requested
// without a parent render pass.
var ErrNoParentPass = errors.New("driver: pipeline requires a parent render pass")

// ErrNoDriver means that no registered driver matched
// the requested name.
var ErrNoDriver = errors.New("driver: driver not found")

// Drivers returns the registered Drivers.
// Client code imports specific driver packages, and then
// calls this function. Drivers that do not register
// themselves on init will not be considered for selection.
func Drivers() []Driver {
	mu.Lock()
	defer mu.Unlock()
	drv := make([]Driver, len(drivers))
	copy(drv, drivers)
	return drv
}

// Register registers a Driver.
// Driver implementations are expected to call Register
// exactly once, from an init function.
// If a driver with the same name has already been
// registered, it will be replaced by drv.
func Register(drv Driver) {
	mu.Lock()
	defer mu.Unlock()
	for i := range drivers {
		if drivers[i].Name() == drv.Name() {
			drivers[i] = drv
			slog.Warn("driver replaced", "driver", drv.Name())
			return
		}
	}
	drivers = append(drivers, drv)
	slog.Debug("driver registered", "driver", drv.Name())
}

// Open opens the first registered driver whose name
// contains name (case insensitive).
// If name is the empty string, then all registered
// drivers are considered.
func Open(name string) (Driver, GPU, error) {
	err := ErrNoDriver
	name = strings.ToLower(name)
	for _, drv := range Drivers() {
		if !strings.Contains(strings.ToLower(drv.Name()), name) {
			continue
		}
		var gpu GPU
		if gpu, err = drv.Open(); err != nil {
			slog.Warn("driver failed to open", "driver", drv.Name(), "err", err)
			continue
		}
		return drv, gpu, nil
	}
	return nil, nil, err
}

// Variables used for driver registration.
var (
	mu      sync.Mutex
	drivers = make([]Driver, 0, 1)
)
