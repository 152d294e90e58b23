// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package graph

import (
	"fmt"

	"github.com/gviegas/framegraph/binder"
	"github.com/gviegas/framegraph/driver"
	"github.com/gviegas/framegraph/ecs"
	"github.com/gviegas/framegraph/restable"
)

// Geometry selects the set of entities a pass iterates.
type Geometry = restable.GeometryKind

// Geometries.
const (
	Model             = restable.Model
	Quad              = restable.Quad
	Cube              = restable.Cube
	OverSizedTriangle = restable.OverSizedTriangle
)

// PipelineRequest describes one pipeline variant of a pass.
type PipelineRequest struct {
	Name string
	// Paths of the shader stages.
	Stages []string
	// Names of the shader inputs. Each one must name either
	// a binder or the output of another pass.
	Inputs []string
	Raster driver.RasterState
}

// Pass describes one rendering stage.
// A Pass must not be modified after being added to a Graph.
type Pass struct {
	Name      string
	Geometry  Geometry
	Pipelines []PipelineRequest
	Outputs   []driver.OutputImage
	// Select returns the indices of the pipelines used to
	// draw e, in draw order. An empty result skips e.
	// If Select is nil, every entity is drawn with the
	// first pipeline.
	Select func(e *ecs.Entity) []int
	Bias   driver.DepthBias
	Clear  [4]float32
}

func (p *Pass) validate() error {
	if p.Name == "" {
		return newErr("pass has no name")
	}
	if len(p.Pipelines) == 0 {
		return newErr(fmt.Sprintf("pass %q has no pipelines", p.Name))
	}
	if len(p.Outputs) == 0 {
		return newErr(fmt.Sprintf("pass %q has no outputs", p.Name))
	}
	return nil
}

func (p *Pass) selectPipelines(e *ecs.Entity) []int {
	if p.Select == nil {
		return firstPipeline
	}
	return p.Select(e)
}

var firstPipeline = []int{0}

// inputs holds the classified inputs of a pipeline.
type inputs struct {
	// Binder indices, by frequency.
	byFreq [binder.EachFrame + 1][]int
	// Names of inputs produced by other passes.
	passDep []string
	// Names that match nothing.
	unbound []string
}

func (in *inputs) perGeometry() []int {
	return append(append([]int(nil), in.byFreq[binder.Once]...), in.byFreq[binder.EachGeometry]...)
}

// passWrapper is the runtime state of a Pass.
type passWrapper struct {
	pass *Pass
	// Flattened inputs of every pipeline, without repeats.
	flat []string
	deps []string

	prepared bool
	inputs   []inputs
	geoInput [][]int
	rp       driver.RenderPass
	// Indexed by frame slot.
	targets []driver.RenderTarget
	// Indexed like pass.Pipelines.
	pipelines []driver.Pipeline
	// Indexed by frame slot.
	locks []driver.Lock
}

func newPassWrapper(p *Pass) *passWrapper {
	pw := &passWrapper{pass: p}
	seen := make(map[string]bool)
	for _, pl := range p.Pipelines {
		for _, in := range pl.Inputs {
			if !seen[in] {
				seen[in] = true
				pw.flat = append(pw.flat, in)
			}
		}
	}
	return pw
}

func (pw *passWrapper) name() string { return pw.pass.Name }

func (pw *passWrapper) isFinal() bool {
	for _, out := range pw.pass.Outputs {
		if out.Presented {
			return true
		}
	}
	return false
}

func (pw *passWrapper) destroyTargets() {
	for i, rt := range pw.targets {
		if rt != nil {
			rt.Destroy()
			pw.targets[i] = nil
		}
	}
}

func (pw *passWrapper) destroyPipelines() {
	for i, pl := range pw.pipelines {
		if pl != nil {
			pl.Destroy()
			pw.pipelines[i] = nil
		}
	}
}

// teardown destroys everything created by prepare.
func (pw *passWrapper) teardown() {
	pw.destroyTargets()
	pw.destroyPipelines()
	if pw.rp != nil {
		pw.rp.Destroy()
		pw.rp = nil
	}
	pw.inputs = nil
	pw.geoInput = nil
	pw.prepared = false
}
