// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package nulldrv implements a driver that executes nothing.
// Work completes as soon as it is submitted and every call
// is recorded, so it can be used to observe what the render
// graph asks of a backend.
package nulldrv

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gviegas/framegraph/driver"
)

// Name is the name of the driver.
const Name = "null"

// DefaultImageCount is the swapchain image count of the
// GPU returned by Driver.Open.
const DefaultImageCount = 3

func init() {
	driver.Register(&Driver{})
}

// Driver implements driver.Driver.
type Driver struct {
	gpu *GPU
	mu  sync.Mutex
}

// Open implements driver.Driver.
func (d *Driver) Open() (driver.GPU, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gpu == nil {
		d.gpu = New(DefaultImageCount)
		d.gpu.drv = d
	}
	return d.gpu, nil
}

// Name implements driver.Driver.
func (*Driver) Name() string { return Name }

// Close implements driver.Driver.
func (d *Driver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gpu = nil
}

// Event is a recorded backend call.
type Event struct {
	Op    string
	Pass  string
	Frame int
	Arg   string
}

// String implements fmt.Stringer.
func (e Event) String() string {
	return fmt.Sprintf("%s[%d] %s %s", e.Pass, e.Frame, e.Op, e.Arg)
}

// GPU implements driver.GPU.
type GPU struct {
	drv    *Driver
	images int

	// SubmitFunc, if set, decides the result of every
	// RenderPass.Submit call. Returning false simulates
	// an out of date swapchain.
	SubmitFunc func(pass string, frame int) bool

	// AllocFunc, if set, is called by Resource.Allocate and
	// its error is returned.
	AllocFunc func(res *Resource) error

	mu        sync.Mutex
	events    []Event
	resources []*Resource
	pipelines []*Pipeline
	passes    []*RenderPass
	targets   []*RenderTarget
	locks     []*Lock
}

// New creates a GPU that is not owned by a registered
// Driver. It is meant to be used in tests.
func New(imageCount int) *GPU {
	if imageCount < 1 {
		panic("nulldrv: image count must be positive")
	}
	return &GPU{images: imageCount}
}

// Driver implements driver.GPU.
func (g *GPU) Driver() driver.Driver {
	if g.drv == nil {
		return &Driver{gpu: g}
	}
	return g.drv
}

// ImageCount implements driver.GPU.
func (g *GPU) ImageCount() int { return g.images }

func (g *GPU) record(e Event) {
	g.mu.Lock()
	g.events = append(g.events, e)
	g.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (g *GPU) Events() []Event {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Event(nil), g.events...)
}

// ClearEvents discards the recorded events.
func (g *GPU) ClearEvents() {
	g.mu.Lock()
	g.events = g.events[:0]
	g.mu.Unlock()
}

// Resources returns every resource created so far,
// including render target images.
func (g *GPU) Resources() []*Resource {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*Resource(nil), g.resources...)
}

// ResourcesNamed returns every resource created with the
// given name.
func (g *GPU) ResourcesNamed(name string) (rs []*Resource) {
	for _, r := range g.Resources() {
		if r.Name == name {
			rs = append(rs, r)
		}
	}
	return
}

// Pipelines returns every pipeline created so far.
func (g *GPU) Pipelines() []*Pipeline {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*Pipeline(nil), g.pipelines...)
}

// RenderPasses returns every render pass created so far.
func (g *GPU) RenderPasses() []*RenderPass {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*RenderPass(nil), g.passes...)
}

// RenderTargets returns every render target created so far.
func (g *GPU) RenderTargets() []*RenderTarget {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*RenderTarget(nil), g.targets...)
}

// NewPipeline implements driver.GPU.
func (g *GPU) NewPipeline(req *driver.PipelineRequest) (driver.Pipeline, error) {
	if req.Parent == nil {
		return nil, driver.ErrNoParentPass
	}
	pass, ok := req.Parent.(*RenderPass)
	if !ok {
		return nil, errors.New("nulldrv: foreign render pass")
	}
	pl := &Pipeline{
		Name:   req.Name,
		Stages: append([]string(nil), req.Stages...),
		Raster: req.Raster,
		Parent: pass,
	}
	g.mu.Lock()
	g.pipelines = append(g.pipelines, pl)
	g.mu.Unlock()
	return pl, nil
}

// NewRenderPass implements driver.GPU.
func (g *GPU) NewRenderPass(req *driver.RenderPassRequest) (driver.RenderPass, error) {
	rp := &RenderPass{
		gpu:     g,
		Name:    req.Name,
		Outputs: append([]driver.OutputImage(nil), req.Outputs...),
		Area:    req.Area,
		Final:   req.Final,
	}
	g.mu.Lock()
	g.passes = append(g.passes, rp)
	g.mu.Unlock()
	return rp, nil
}

// NewRenderTarget implements driver.GPU.
func (g *GPU) NewRenderTarget(req *driver.RenderTargetRequest) (driver.RenderTarget, error) {
	if req.Pass == nil {
		return nil, errors.New("nulldrv: render target requires a render pass")
	}
	if req.Frame < 0 || req.Frame >= g.images {
		return nil, fmt.Errorf("nulldrv: frame %d out of range", req.Frame)
	}
	rt := &RenderTarget{Frame: req.Frame}
	for _, out := range req.Outputs {
		if out.Presented {
			rt.presented = true
		}
		w, h := out.Width, out.Height
		if w == 0 || h == 0 {
			w, h = req.Area.Width, req.Area.Height
		}
		typ := driver.TSampler2D
		img := g.newResource(fmt.Sprintf("%s#%d", out.Name, req.Frame), typ)
		img.Image = &driver.ImageDesc{Width: w, Height: h, Format: out.Format, Layers: 1}
		img.allocated = true
		rt.images = append(rt.images, img)
	}
	g.mu.Lock()
	g.targets = append(g.targets, rt)
	g.mu.Unlock()
	return rt, nil
}

// NewResource implements driver.GPU.
func (g *GPU) NewResource(req *driver.ResourceRequest) (driver.Resource, error) {
	if req.Type.IsImage() && req.Image == nil {
		return nil, errors.New("nulldrv: image resource requires an image description")
	}
	r := g.newResource(req.Name, req.Type)
	r.Load = req.Load
	r.Persist = req.Persist
	r.Stages = req.Stages
	if req.Image != nil {
		desc := *req.Image
		r.Image = &desc
	}
	return r, nil
}

func (g *GPU) newResource(name string, typ driver.ResourceType) *Resource {
	r := &Resource{gpu: g, Name: name, typ: typ}
	g.mu.Lock()
	r.ID = len(g.resources)
	g.resources = append(g.resources, r)
	g.mu.Unlock()
	return r
}

// NewLock implements driver.GPU.
func (g *GPU) NewLock(typ driver.LockType, signaled bool) (driver.Lock, error) {
	lk := &Lock{gpu: g, Type: typ, ch: make(chan struct{})}
	if signaled {
		close(lk.ch)
	}
	g.mu.Lock()
	lk.ID = len(g.locks)
	g.locks = append(g.locks, lk)
	g.mu.Unlock()
	return lk, nil
}
