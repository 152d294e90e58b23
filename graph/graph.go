// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package graph implements the render graph.
//
// A Graph is built from a list of passes. Dependencies
// between passes are inferred from their declared inputs
// and outputs: a pass that reads the output of another
// pass depends on it, and passes execute in dependency
// order. Each frame, Prepare must be called before Execute.
package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cogentcore.org/core/base/keylist"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/semaphore"

	"github.com/gviegas/framegraph/binder"
	"github.com/gviegas/framegraph/driver"
	"github.com/gviegas/framegraph/ecs"
	"github.com/gviegas/framegraph/restable"
)

const prefix = "graph: "

func newErr(reason string) error { return errors.New(prefix + reason) }

var (
	// ErrDuplicatePass means that a pass name was added
	// twice.
	ErrDuplicatePass = errors.New(prefix + "duplicate pass name")
	// ErrUnboundInput means that a pipeline input names
	// neither a binder nor the output of a pass.
	ErrUnboundInput = errors.New(prefix + "unbound pipeline input")
	// ErrCycle means that pass dependencies form a cycle.
	ErrCycle = errors.New(prefix + "dependency cycle")
	// ErrNotBuilt means that the graph was used before
	// Build succeeded.
	ErrNotBuilt = errors.New(prefix + "graph not built")
	// ErrBuilt means that a pass was added after Build.
	ErrBuilt = errors.New(prefix + "graph already built")
)

func logger() *slog.Logger { return slog.Default().With("pkg", "graph") }

// Config configures a Graph.
type Config struct {
	// Number of frame slots. If zero, the image count of
	// the GPU is used.
	FrameCount int
	// Size of the render area.
	Width, Height int
	// Maximum duration of a fence wait. Zero means that
	// waits are only bounded by the context.
	FenceTimeout time.Duration
	// Whether unbound inputs fail Build. If false, they are
	// logged and never bound.
	Strict bool
}

// Stats holds execution statistics.
type Stats struct {
	Frames  int
	Draws   int
	Submits int
	Redraws int
}

type producer struct {
	pass   string
	output int
}

// Graph is a render graph.
// It is not safe for concurrent use.
type Graph struct {
	gpu    driver.GPU
	tab    *restable.Table
	binder *binder.Binder
	cfg    Config

	passes    *keylist.List[string, *passWrapper]
	order     []*passWrapper
	producers map[string]producer
	built     bool

	frameLock  *semaphore.Weighted
	frameIndex int
	redraw     bool
	stats      Stats
}

// New creates an empty Graph.
// tab must have cfg.FrameCount frame slots.
func New(gpu driver.GPU, tab *restable.Table, b *binder.Binder, cfg Config) (*Graph, error) {
	if cfg.FrameCount == 0 {
		cfg.FrameCount = gpu.ImageCount()
	}
	if cfg.FrameCount != tab.FrameCount() {
		return nil, newErr(fmt.Sprintf("frame count mismatch (graph %d, resource table %d)", cfg.FrameCount, tab.FrameCount()))
	}
	if cfg.Width < 1 || cfg.Height < 1 {
		return nil, newErr(fmt.Sprintf("invalid render area %dx%d", cfg.Width, cfg.Height))
	}
	return &Graph{
		gpu:       gpu,
		tab:       tab,
		binder:    b,
		cfg:       cfg,
		passes:    keylist.New[string, *passWrapper](),
		producers: make(map[string]producer),
		frameLock: semaphore.NewWeighted(1),
	}, nil
}

// AddPass adds p to the graph.
func (g *Graph) AddPass(p *Pass) error {
	if g.built {
		return ErrBuilt
	}
	if err := p.validate(); err != nil {
		return err
	}
	if err := g.passes.Add(p.Name, newPassWrapper(p)); err != nil {
		return fmt.Errorf("%w: %q", ErrDuplicatePass, p.Name)
	}
	return nil
}

// Build resolves the dependencies between passes and
// computes the execution order. It must be called once,
// after every pass has been added.
func (g *Graph) Build() error {
	if g.built {
		return ErrBuilt
	}
	if g.passes.Len() == 0 {
		return newErr("no passes")
	}
	for _, pw := range g.passes.Values {
		for i, out := range pw.pass.Outputs {
			if x, ok := g.producers[out.Name]; ok {
				g.reset()
				return newErr(fmt.Sprintf("output %q declared by both %q and %q", out.Name, x.pass, pw.name()))
			}
			g.producers[out.Name] = producer{pw.name(), i}
		}
	}
	var unbound []string
	for _, pw := range g.passes.Values {
		pw.deps = pw.deps[:0]
		for _, in := range pw.flat {
			if x, ok := g.producers[in]; ok {
				if !slices.Contains(pw.deps, x.pass) {
					pw.deps = append(pw.deps, x.pass)
				}
				continue
			}
			if !g.binder.Exists(in) {
				unbound = append(unbound, pw.name()+"."+in)
			}
		}
	}
	if len(unbound) > 0 {
		if g.cfg.Strict {
			g.reset()
			return fmt.Errorf("%w: %s", ErrUnboundInput, strings.Join(unbound, ", "))
		}
		logger().Warn("unbound pipeline inputs", "inputs", unbound)
	}
	if err := g.sort(); err != nil {
		g.reset()
		return err
	}
	for _, pw := range g.order {
		pw.locks = make([]driver.Lock, g.cfg.FrameCount)
		for i := range pw.locks {
			lk, err := g.gpu.NewLock(driver.Fence, true)
			if err != nil {
				g.reset()
				return fmt.Errorf(prefix+"fence of %q: %w", pw.name(), err)
			}
			pw.locks[i] = lk
		}
		pw.targets = make([]driver.RenderTarget, g.cfg.FrameCount)
	}
	g.built = true
	logger().Debug("graph built", "order", g.Order())
	return nil
}

// sort orders the passes so that every pass comes after
// the passes it depends on. Ties are broken by the order
// in which passes were added.
func (g *Graph) sort() error {
	n := g.passes.Len()
	done := make(map[string]bool, n)
	g.order = g.order[:0]
	for len(g.order) < n {
		progress := false
		for _, pw := range g.passes.Values {
			if done[pw.name()] {
				continue
			}
			ready := true
			for _, d := range pw.deps {
				if !done[d] {
					ready = false
					break
				}
			}
			if ready {
				done[pw.name()] = true
				g.order = append(g.order, pw)
				progress = true
				break
			}
		}
		if !progress {
			var cycle []string
			for _, pw := range g.passes.Values {
				if !done[pw.name()] {
					cycle = append(cycle, pw.name())
				}
			}
			return fmt.Errorf("%w among %s", ErrCycle, strings.Join(cycle, ", "))
		}
	}
	return nil
}

func (g *Graph) reset() {
	for _, pw := range g.order {
		for _, lk := range pw.locks {
			if lk != nil {
				lk.Destroy()
			}
		}
		pw.locks = nil
	}
	g.order = nil
	clear(g.producers)
}

// Order returns the pass names in execution order.
func (g *Graph) Order() []string {
	s := make([]string, len(g.order))
	for i, pw := range g.order {
		s[i] = pw.name()
	}
	return s
}

// Dependencies returns the names of the passes whose
// outputs the named pass reads.
func (g *Graph) Dependencies(pass string) []string {
	pw, ok := g.passes.AtTry(pass)
	if !ok {
		return nil
	}
	return append([]string(nil), pw.deps...)
}

// Producer returns the name of the pass that declares the
// given output.
func (g *Graph) Producer(output string) (string, bool) {
	x, ok := g.producers[output]
	return x.pass, ok
}

// Fence returns the fence that the named pass signals in
// the given frame slot.
func (g *Graph) Fence(pass string, frame int) (driver.Lock, error) {
	if !g.built {
		return nil, ErrNotBuilt
	}
	pw, ok := g.passes.AtTry(pass)
	if !ok {
		return nil, newErr(fmt.Sprintf("no pass named %q", pass))
	}
	return pw.locks[frame], nil
}

// FrameIndex returns the frame slot that the next call to
// Execute will use.
func (g *Graph) FrameIndex() int { return g.frameIndex }

// FrameCount returns the number of frame slots.
func (g *Graph) FrameCount() int { return g.cfg.FrameCount }

// Redraw returns whether the last frame must be redrawn.
func (g *Graph) Redraw() bool { return g.redraw }

// Stats returns execution statistics.
func (g *Graph) Stats() Stats { return g.stats }

// Passes returns the names of the passes in the order
// they were added.
func (g *Graph) Passes() []string { return append([]string(nil), g.passes.Keys...) }

// PassesUsing returns the names of the passes that have
// a pipeline using the given shader stage path.
func (g *Graph) PassesUsing(stage string) []string {
	var names []string
	for _, pw := range g.passes.Values {
		for _, pl := range pw.pass.Pipelines {
			if slices.Contains(pl.Stages, stage) {
				names = append(names, pw.name())
				break
			}
		}
	}
	return names
}

// wait waits on lk, bounded by ctx and cfg.FenceTimeout.
func (g *Graph) wait(ctx context.Context, lk driver.Lock) error {
	if g.cfg.FenceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.FenceTimeout)
		defer cancel()
	}
	err := lk.Wait(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, driver.ErrTimeout) && ctx.Err() != nil {
		err = errors.Join(driver.ErrTimeout, err)
	}
	return fmt.Errorf(prefix+"fence wait: %w", err)
}

// idle waits on every fence of the named passes (or of
// every pass if names is empty).
func (g *Graph) idle(ctx context.Context, names ...string) error {
	for _, pw := range g.order {
		if len(names) > 0 && !slices.Contains(names, pw.name()) {
			continue
		}
		for _, lk := range pw.locks {
			if err := g.wait(ctx, lk); err != nil {
				return err
			}
		}
	}
	return nil
}

// Wait blocks until the GPU is done with every frame
// slot.
func (g *Graph) Wait(ctx context.Context) error {
	if !g.built {
		return ErrNotBuilt
	}
	return g.idle(ctx)
}

// Prepare prepares the graph for the next call to Execute.
// It blocks until the frame slot about to be reused is no
// longer in use, then replaces the component table that
// producers read from and creates any state that passes
// are missing.
func (g *Graph) Prepare(ctx context.Context, tab *ecs.Table) error {
	if !g.built {
		return ErrNotBuilt
	}
	last := g.order[len(g.order)-1]
	if err := g.wait(ctx, last.locks[g.frameIndex]); err != nil {
		return err
	}
	g.tab.SetView(tab)
	for _, pw := range g.order {
		if err := g.prepare(pw); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) prepare(pw *passWrapper) error {
	if !pw.prepared {
		g.classify(pw)
		rp, err := g.gpu.NewRenderPass(&driver.RenderPassRequest{
			Name:    pw.name(),
			Outputs: pw.pass.Outputs,
			Bias:    pw.pass.Bias,
			Area:    g.area(),
			Final:   pw.isFinal() || pw == g.order[len(g.order)-1],
		})
		if err != nil {
			return fmt.Errorf(prefix+"render pass of %q: %w", pw.name(), err)
		}
		pw.rp = rp
		pw.pipelines = make([]driver.Pipeline, len(pw.pass.Pipelines))
		pw.prepared = true
	}
	for i := range pw.targets {
		if pw.targets[i] != nil {
			continue
		}
		rt, err := g.gpu.NewRenderTarget(&driver.RenderTargetRequest{
			Pass:    pw.rp,
			Frame:   i,
			Outputs: pw.pass.Outputs,
			Area:    g.area(),
		})
		if err != nil {
			return fmt.Errorf(prefix+"render target %d of %q: %w", i, pw.name(), err)
		}
		pw.targets[i] = rt
	}
	for i := range pw.pipelines {
		if pw.pipelines[i] != nil {
			continue
		}
		req := &pw.pass.Pipelines[i]
		pl, err := g.gpu.NewPipeline(&driver.PipelineRequest{
			Name:   req.Name,
			Stages: req.Stages,
			Raster: req.Raster,
			Parent: pw.rp,
		})
		if err != nil {
			return fmt.Errorf(prefix+"pipeline %d of %q: %w", i, pw.name(), err)
		}
		pw.pipelines[i] = pl
	}
	return nil
}

func (g *Graph) area() driver.RenderArea {
	return driver.RenderArea{Width: g.cfg.Width, Height: g.cfg.Height}
}

// classify sorts the inputs of every pipeline of pw into
// pass-dependent and binder-backed inputs, and tracks the
// latter in the resource table.
func (g *Graph) classify(pw *passWrapper) {
	pw.inputs = make([]inputs, len(pw.pass.Pipelines))
	pw.geoInput = make([][]int, len(pw.pass.Pipelines))
	for i, pl := range pw.pass.Pipelines {
		in := &pw.inputs[i]
		for _, name := range pl.Inputs {
			if _, ok := g.producers[name]; ok {
				in.passDep = append(in.passDep, name)
				continue
			}
			idx, err := g.binder.Lookup(name)
			if err != nil {
				logger().Debug("input not bound", "pass", pw.name(), "pipeline", i, "input", name)
				in.unbound = append(in.unbound, name)
				continue
			}
			freq := g.binder.ByIndex(idx).Frequency
			in.byFreq[freq] = append(in.byFreq[freq], idx)
			g.tab.Track(idx, freq)
		}
		pw.geoInput[i] = in.perGeometry()
	}
}

// InvalidatePipelines destroys the pipelines of the named
// pass once the GPU is done with them. They are created
// again by the next call to Prepare.
func (g *Graph) InvalidatePipelines(ctx context.Context, pass string) error {
	pw, ok := g.passes.AtTry(pass)
	if !ok {
		return newErr(fmt.Sprintf("no pass named %q", pass))
	}
	if !g.built {
		return ErrNotBuilt
	}
	if err := g.idle(ctx, pass); err != nil {
		return err
	}
	pw.destroyPipelines()
	logger().Info("pipelines invalidated", "pass", pass)
	return nil
}

// Resize changes the render area. Every render pass,
// render target and pipeline is created again by the next
// call to Prepare.
func (g *Graph) Resize(ctx context.Context, width, height int) error {
	if width < 1 || height < 1 {
		return newErr(fmt.Sprintf("invalid render area %dx%d", width, height))
	}
	if err := g.idle(ctx); err != nil {
		return err
	}
	for _, pw := range g.order {
		pw.teardown()
	}
	g.cfg.Width, g.cfg.Height = width, height
	logger().Info("render area resized", "width", width, "height", height)
	return nil
}

// Destroy waits for the GPU to finish and destroys every
// object created by g. The resource table is not
// destroyed.
func (g *Graph) Destroy() {
	if err := g.idle(context.Background()); err != nil {
		logger().Error("destroying graph while GPU is busy", "err", err)
	}
	for _, pw := range g.order {
		pw.teardown()
	}
	g.reset()
	g.passes.Reset()
	g.built = false
}
