// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package resource defines the GPU-resident materialization
// of logical shader inputs.
package resource

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gviegas/framegraph/driver"
)

const prefix = "resource: "

// NoDeviation is the Identifier.Deviation of inputs that
// are not array elements.
const NoDeviation = -1

// Identifier identifies a logical shader input.
// Deviation distinguishes array elements of the same
// logical input (e.g., Texture1, Texture12); it is
// NoDeviation otherwise.
type Identifier struct {
	Name      string
	Deviation int
}

// ID returns the Identifier of a non-array input.
func ID(name string) Identifier { return Identifier{name, NoDeviation} }

// Key returns the string that identifies id in maps.
func (id Identifier) Key() string {
	if id.Deviation == NoDeviation {
		return id.Name
	}
	return id.Name + strconv.Itoa(id.Deviation)
}

// String implements fmt.Stringer.
func (id Identifier) String() string { return id.Key() }

// Content is what a producer generates for a shader input.
type Content struct {
	Type   driver.ResourceType
	Stages driver.Stage
	Data   []byte
	// Image must be set for image types.
	Image *driver.ImageDesc
	// CacheKey, if not empty, allows image contents to be
	// shared by every resource created with the same key.
	CacheKey string
}

// ShaderResource is the GPU-resident materialization of a
// logical shader input.
// Push constants are never backed by GPU memory: their
// bytes are copied into the command stream when bound.
type ShaderResource struct {
	ID      Identifier
	Type    driver.ResourceType
	Load    driver.LoadStrategy
	Persist driver.PersistStrategy
	Stages  driver.Stage

	res       driver.Resource
	push      []byte
	allocated bool
}

// ErrAllocated means that Allocate was called on a resource
// that is already allocated.
var ErrAllocated = errors.New(prefix + "resource already allocated")

// ErrNotAllocated means that a resource was used before
// being allocated.
var ErrNotAllocated = errors.New(prefix + "resource not allocated")

// New creates a new ShaderResource for the given content.
// No GPU memory is committed until Allocate is called.
func New(gpu driver.GPU, id Identifier, c *Content, load driver.LoadStrategy, persist driver.PersistStrategy) (*ShaderResource, error) {
	r := &ShaderResource{
		ID:      id,
		Type:    c.Type,
		Load:    load,
		Persist: persist,
		Stages:  c.Stages,
	}
	if c.Type == driver.TPushConstant {
		return r, nil
	}
	res, err := gpu.NewResource(&driver.ResourceRequest{
		Name:    id.Key(),
		Type:    c.Type,
		Load:    load,
		Persist: persist,
		Stages:  c.Stages,
		Image:   c.Image,
	})
	if err != nil {
		return nil, fmt.Errorf(prefix+"create %s: %w", id, err)
	}
	r.res = res
	return r, nil
}

// Allocated returns whether r has been allocated.
func (r *ShaderResource) Allocated() bool { return r.allocated }

// Backend returns the driver.Resource backing r.
// It is nil for push constants.
func (r *ShaderResource) Backend() driver.Resource { return r.res }

// Allocate performs the first upload of data.
func (r *ShaderResource) Allocate(data []byte) error {
	if r.allocated {
		return fmt.Errorf("%w: %s", ErrAllocated, r.ID)
	}
	if r.res == nil {
		r.push = append(r.push[:0], data...)
	} else if err := r.res.Allocate(data); err != nil {
		return fmt.Errorf(prefix+"allocate %s: %w", r.ID, err)
	}
	r.allocated = true
	return nil
}

// Update re-uploads the contents of r without re-creating
// the underlying GPU object.
func (r *ShaderResource) Update(data []byte) error {
	if !r.allocated {
		return fmt.Errorf("%w: %s", ErrNotAllocated, r.ID)
	}
	if r.res == nil {
		r.push = append(r.push[:0], data...)
		return nil
	}
	if err := r.res.Update(data); err != nil {
		return fmt.Errorf(prefix+"update %s: %w", r.ID, err)
	}
	return nil
}

// Deallocate frees the GPU memory held by r.
// It has no effect if r is not allocated.
func (r *ShaderResource) Deallocate() {
	if !r.allocated {
		return
	}
	if r.res != nil {
		r.res.Deallocate()
	}
	r.push = nil
	r.allocated = false
}

// Destroy deallocates r and destroys the backend object.
func (r *ShaderResource) Destroy() {
	r.Deallocate()
	if r.res != nil {
		r.res.Destroy()
		r.res = nil
	}
}

// Transition prepares r for the given usage.
func (r *ShaderResource) Transition(u driver.Usage) {
	if r.res != nil {
		r.res.Transition(u)
	}
}

// Bind binds r to pass, either as a per-frame or as a
// per-object resource. Push constants are copied into the
// command stream regardless.
func (r *ShaderResource) Bind(pass driver.RenderPass, perFrame bool) error {
	if !r.allocated {
		return fmt.Errorf("%w: %s", ErrNotAllocated, r.ID)
	}
	switch {
	case r.res == nil:
		pass.PushConstant(r.Stages, r.push)
	case perFrame:
		pass.BindPerFrame(r.res)
	default:
		pass.BindPerObject(r.res)
	}
	return nil
}
