// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package graph

import (
	"context"
	"fmt"

	"github.com/gviegas/framegraph/binder"
	"github.com/gviegas/framegraph/component"
	"github.com/gviegas/framegraph/driver"
	"github.com/gviegas/framegraph/ecs"
	"github.com/gviegas/framegraph/resource"
	"github.com/gviegas/framegraph/restable"
)

// Execute records and submits every pass for the current
// frame slot, in execution order.
// The frame index advances unless the submission of the
// last pass reported that the frame must be redrawn, in
// which case the next call renders into the same slot.
func (g *Graph) Execute(ctx context.Context) error {
	if !g.built {
		return ErrNotBuilt
	}
	frame := g.frameIndex
	g.tab.ResetFrame(frame)
	if err := g.tab.AllocateAllPerFrame(frame); err != nil {
		return err
	}

	if err := g.frameLock.Acquire(ctx, 1); err != nil {
		return err
	}
	var ok bool
	for _, pw := range g.order {
		var err error
		if ok, err = g.execute(ctx, pw, frame); err != nil {
			g.frameLock.Release(1)
			return fmt.Errorf(prefix+"%s: %w", pw.name(), err)
		}
	}
	g.frameLock.Release(1)

	g.stats.Frames++
	if !ok {
		g.redraw = true
		g.stats.Redraws++
		logger().Info("frame must be redrawn", "frame", frame)
		return nil
	}
	g.redraw = false
	g.frameIndex = (frame + 1) % g.cfg.FrameCount
	return nil
}

// execute records and submits pw.
// It returns the result of the submission.
func (g *Graph) execute(ctx context.Context, pw *passWrapper, frame int) (bool, error) {
	if !pw.prepared {
		return false, newErr("pass not prepared")
	}
	rp := pw.rp
	rt := pw.targets[frame]
	rp.FrameStart(frame, pw.pipelines)
	for i := range rt.Len() {
		rt.Image(i).Transition(driver.URenderTarget)
	}

	waits := make([]driver.Lock, 0, len(pw.deps))
	for _, d := range pw.deps {
		lk := g.passes.At(d).locks[frame]
		if err := g.wait(ctx, lk); err != nil {
			return false, err
		}
		waits = append(waits, lk)
	}

	for i, pl := range pw.pipelines {
		rp.BindPipeline(pl)
		in := &pw.inputs[i]
		for _, name := range in.passDep {
			x := g.producers[name]
			rp.BindPerFrame(g.passes.At(x.pass).targets[frame].Image(x.output))
		}
		for _, idx := range in.byFreq[binder.EachFrame] {
			res, err := g.tab.Resource(idx, frame)
			if err != nil {
				return false, err
			}
			if err := bind(rp, res, true); err != nil {
				return false, err
			}
		}
	}

	rp.Begin(rt, pw.pass.Clear)
	for _, d := range g.tab.GeometryList(pw.pass.Geometry) {
		if err := g.draw(rp, pw, d, frame); err != nil {
			return false, err
		}
	}

	lk := pw.locks[frame]
	lk.Reset()
	ok, err := rp.Submit(waits, lk)
	if err != nil {
		lk.Notify()
		return false, err
	}
	g.stats.Submits++
	if !ok {
		// Nothing was submitted, so nothing will signal lk.
		lk.Notify()
	}
	usage := driver.UShaderRead
	if rt.Presented() {
		usage = driver.UPresent
	}
	for i := range rt.Len() {
		rt.Image(i).Transition(usage)
	}
	return ok, nil
}

// draw draws every geometry of d with each pipeline that
// the pass selects for d.Entity, in selection order.
func (g *Graph) draw(rp driver.RenderPass, pw *passWrapper, d *restable.Drawable, frame int) error {
	e := d.Entity
	sel := pw.pass.selectPipelines(e)
	for _, pi := range sel {
		if pi < 0 || pi >= len(pw.pipelines) {
			return newErr(fmt.Sprintf("select returned invalid pipeline index %d for %v", pi, e))
		}
		if err := g.tab.AllocatePerEntity(frame, e, pw.inputs[pi].byFreq[binder.EachEntity]); err != nil {
			return err
		}
	}
	instances := 1
	if inst, ok := ecs.Get[*component.Instanced](e); ok {
		instances += len(inst.Transforms)
	}
	for _, pi := range sel {
		in := &pw.inputs[pi]
		rp.BindPipeline(pw.pipelines[pi])
		for geo := range d.Geometries() {
			for _, idx := range in.byFreq[binder.EachEntity] {
				res, err := g.tab.EntityResource(idx, frame, e)
				if err != nil {
					return err
				}
				if err := bind(rp, res, false); err != nil {
					return err
				}
			}
			if err := g.tab.AllocatePerGeometry(geo, pw.geoInput[pi]); err != nil {
				return err
			}
			vertex, index := g.tab.GeometryBuffers(geo)
			rp.BindPerObject(vertex.Backend())
			if index != nil {
				rp.BindPerObject(index.Backend())
			}
			for _, idx := range pw.geoInput[pi] {
				res, err := g.tab.GeometryResource(idx, geo)
				if err != nil {
					return err
				}
				if err := bind(rp, res, false); err != nil {
					return err
				}
			}
			rp.Draw(instances)
			g.stats.Draws++
		}
	}
	return nil
}

// bind binds res unless the producer generated no contents.
func bind(rp driver.RenderPass, res *resource.ShaderResource, perFrame bool) error {
	if res == nil {
		return nil
	}
	return res.Bind(rp, perFrame)
}
