// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package nulldrv

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/gviegas/framegraph/driver"
)

// Pipeline implements driver.Pipeline.
type Pipeline struct {
	Name      string
	Stages    []string
	Raster    driver.RasterState
	Parent    *RenderPass
	Destroyed bool
}

// Destroy implements driver.Destroyer.
func (p *Pipeline) Destroy() { p.Destroyed = true }

// Draw is a recorded draw call.
type Draw struct {
	Frame     int
	Pipeline  string
	Objects   []string
	Push      int
	Instances int
}

// RenderPass implements driver.RenderPass.
type RenderPass struct {
	gpu     *GPU
	Name    string
	Outputs []driver.OutputImage
	Area    driver.RenderArea
	Final   bool

	frame   int
	pl      *Pipeline
	objects []string
	push    int
	began   bool

	Draws     []Draw
	Submits   int
	Destroyed bool
}

func (p *RenderPass) record(op, arg string) {
	p.gpu.record(Event{Op: op, Pass: p.Name, Frame: p.frame, Arg: arg})
}

// FrameStart implements driver.RenderPass.
func (p *RenderPass) FrameStart(frame int, pipelines []driver.Pipeline) {
	p.frame = frame
	p.pl = nil
	p.objects = p.objects[:0]
	p.push = 0
	p.began = false
	p.record("frameStart", strconv.Itoa(len(pipelines)))
}

// Begin implements driver.RenderPass.
func (p *RenderPass) Begin(rt driver.RenderTarget, clear [4]float32) {
	t := rt.(*RenderTarget)
	if t.Frame != p.frame {
		panic(fmt.Sprintf("nulldrv: render target of frame %d used in frame %d", t.Frame, p.frame))
	}
	p.began = true
	p.record("begin", strconv.FormatBool(t.presented))
}

// BindPipeline implements driver.RenderPass.
func (p *RenderPass) BindPipeline(pl driver.Pipeline) {
	p.pl = pl.(*Pipeline)
	p.record("bindPipeline", p.pl.Name)
}

// BindPerFrame implements driver.RenderPass.
func (p *RenderPass) BindPerFrame(res driver.Resource) {
	p.record("bindPerFrame", res.(*Resource).Name)
}

// BindPerObject implements driver.RenderPass.
func (p *RenderPass) BindPerObject(res driver.Resource) {
	name := res.(*Resource).Name
	p.objects = append(p.objects, name)
	p.record("bindPerObject", name)
}

// PushConstant implements driver.RenderPass.
func (p *RenderPass) PushConstant(stages driver.Stage, data []byte) {
	p.push += len(data)
	p.record("pushConstant", strconv.Itoa(len(data)))
}

// Draw implements driver.RenderPass.
func (p *RenderPass) Draw(instanceCount int) {
	if !p.began {
		panic("nulldrv: Draw outside of render pass")
	}
	if p.pl == nil {
		panic("nulldrv: Draw without pipeline")
	}
	p.Draws = append(p.Draws, Draw{
		Frame:     p.frame,
		Pipeline:  p.pl.Name,
		Objects:   append([]string(nil), p.objects...),
		Push:      p.push,
		Instances: instanceCount,
	})
	p.objects = p.objects[:0]
	p.push = 0
	p.record("draw", strconv.Itoa(instanceCount))
}

// Submit implements driver.RenderPass.
// Work completes immediately, so notify is signaled
// before Submit returns.
func (p *RenderPass) Submit(wait []driver.Lock, notify driver.Lock) (bool, error) {
	for _, lk := range wait {
		l := lk.(*Lock)
		if !l.signaled() {
			return false, fmt.Errorf("nulldrv: %s waits on unsignaled lock %d: %w", p.Name, l.ID, driver.ErrFatal)
		}
	}
	p.Submits++
	p.began = false
	ok := true
	if p.gpu.SubmitFunc != nil {
		ok = p.gpu.SubmitFunc(p.Name, p.frame)
	}
	if notify != nil {
		notify.Notify()
		p.record("submit", "lock"+strconv.Itoa(notify.(*Lock).ID)+" "+strconv.FormatBool(ok))
	} else {
		p.record("submit", strconv.FormatBool(ok))
	}
	return ok, nil
}

// Property implements driver.RenderPass.
func (p *RenderPass) Property(name string) string {
	switch name {
	case "msaa":
		return "false"
	case "driver":
		return Name
	}
	return ""
}

// Destroy implements driver.Destroyer.
func (p *RenderPass) Destroy() { p.Destroyed = true }

// RenderTarget implements driver.RenderTarget.
type RenderTarget struct {
	Frame     int
	images    []*Resource
	presented bool
	Destroyed bool
}

// Len implements driver.RenderTarget.
func (t *RenderTarget) Len() int { return len(t.images) }

// Image implements driver.RenderTarget.
func (t *RenderTarget) Image(i int) driver.Resource { return t.images[i] }

// Presented implements driver.RenderTarget.
func (t *RenderTarget) Presented() bool { return t.presented }

// Destroy implements driver.Destroyer.
func (t *RenderTarget) Destroy() {
	for _, img := range t.images {
		img.Destroy()
	}
	t.Destroyed = true
}

// Resource implements driver.Resource.
type Resource struct {
	gpu     *GPU
	ID      int
	Name    string
	typ     driver.ResourceType
	Load    driver.LoadStrategy
	Persist driver.PersistStrategy
	Stages  driver.Stage
	Image   *driver.ImageDesc

	allocated bool
	Data      []byte

	Allocs      int
	Updates     int
	Deallocs    int
	Transitions []driver.Usage
	Destroyed   bool
}

// Type implements driver.Resource.
func (r *Resource) Type() driver.ResourceType { return r.typ }

// Allocated returns whether r currently holds GPU memory.
func (r *Resource) Allocated() bool { return r.allocated }

// Allocate implements driver.Resource.
func (r *Resource) Allocate(data []byte) error {
	if r.allocated {
		return fmt.Errorf("nulldrv: resource %q already allocated", r.Name)
	}
	if r.gpu.AllocFunc != nil {
		if err := r.gpu.AllocFunc(r); err != nil {
			return err
		}
	}
	r.Allocs++
	r.allocated = true
	r.Data = append(r.Data[:0], data...)
	return nil
}

// Update implements driver.Resource.
func (r *Resource) Update(data []byte) error {
	if !r.allocated {
		return fmt.Errorf("nulldrv: resource %q not allocated", r.Name)
	}
	r.Updates++
	r.Data = append(r.Data[:0], data...)
	return nil
}

// Deallocate implements driver.Resource.
func (r *Resource) Deallocate() {
	r.Deallocs++
	r.allocated = false
	r.Data = nil
}

// Transition implements driver.Resource.
func (r *Resource) Transition(u driver.Usage) {
	r.Transitions = append(r.Transitions, u)
}

// Destroy implements driver.Destroyer.
func (r *Resource) Destroy() {
	r.allocated = false
	r.Destroyed = true
	r.gpu.record(Event{Op: "destroy", Frame: -1, Arg: r.Name})
}

// Lock implements driver.Lock.
type Lock struct {
	gpu  *GPU
	ID   int
	Type driver.LockType

	mu sync.Mutex
	ch chan struct{}

	Waits     int
	Destroyed bool
}

func (l *Lock) signaled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	select {
	case <-l.ch:
		return true
	default:
		return false
	}
}

// Signaled returns whether l is currently signaled.
func (l *Lock) Signaled() bool { return l.signaled() }

// Wait implements driver.Lock.
func (l *Lock) Wait(ctx context.Context) error {
	l.mu.Lock()
	ch := l.ch
	l.Waits++
	l.mu.Unlock()
	l.gpu.record(Event{Op: "wait", Frame: -1, Arg: "lock" + strconv.Itoa(l.ID)})
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return errors.Join(driver.ErrTimeout, ctx.Err())
	}
}

// Reset implements driver.Lock.
func (l *Lock) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	select {
	case <-l.ch:
		l.ch = make(chan struct{})
	default:
	}
}

// Notify implements driver.Lock.
func (l *Lock) Notify() {
	l.mu.Lock()
	defer l.mu.Unlock()
	select {
	case <-l.ch:
	default:
		close(l.ch)
	}
}

// Destroy implements driver.Destroyer.
func (l *Lock) Destroy() { l.Destroyed = true }
