// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package system exposes the render graph as an ECS
// system.
package system

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gviegas/framegraph/binder"
	"github.com/gviegas/framegraph/config"
	"github.com/gviegas/framegraph/driver"
	"github.com/gviegas/framegraph/ecs"
	"github.com/gviegas/framegraph/graph"
	"github.com/gviegas/framegraph/internal/watch"
	"github.com/gviegas/framegraph/restable"
)

func logger() *slog.Logger { return slog.Default().With("pkg", "system") }

// GraphSystem renders the entities of a world through a
// render graph.
// It implements ecs.System.
type GraphSystem struct {
	cfg    config.Config
	binder *binder.Binder
	tab    *restable.Table
	graph  *graph.Graph
	watch  *watch.Watcher
}

var _ ecs.System = &GraphSystem{}

// New creates a GraphSystem that renders with gpu.
// If b is nil, binder.NewDefault is used.
// The passes are built from cfg (see BuildPasses).
// If cfg is nil, config.Current is used.
func New(gpu driver.GPU, b *binder.Binder, cfg *config.Config) (s *GraphSystem, err error) {
	if cfg == nil {
		c := config.Current()
		cfg = &c
	}
	if err = cfg.Validate(); err != nil {
		return
	}
	if b == nil {
		b = binder.NewDefault()
	}
	passes, err := BuildPasses(cfg)
	if err != nil {
		return
	}
	frames := cfg.Frames(gpu.ImageCount())
	tab, err := restable.New(gpu, b, frames)
	if err != nil {
		return
	}
	s = &GraphSystem{cfg: *cfg, binder: b, tab: tab}
	defer func() {
		if err != nil {
			s.Destroy()
			s = nil
		}
	}()
	if s.graph, err = graph.New(gpu, tab, b, graph.Config{
		FrameCount:   frames,
		Width:        cfg.Width,
		Height:       cfg.Height,
		FenceTimeout: cfg.FenceTimeout.Std(),
		Strict:       cfg.Strict,
	}); err != nil {
		return
	}
	for _, p := range passes {
		if err = s.graph.AddPass(p); err != nil {
			return
		}
	}
	if err = s.graph.Build(); err != nil {
		return
	}
	if cfg.Watch {
		if s.watch, err = watch.New(s.shaderFiles(passes)); err != nil {
			return
		}
	}
	logger().Info("graph system created", "passes", s.graph.Order(), "frames", frames, "watch", cfg.Watch)
	return
}

func (s *GraphSystem) shaderFiles(passes []*graph.Pass) []string {
	seen := make(map[string]bool)
	var files []string
	for _, p := range passes {
		for _, pl := range p.Pipelines {
			for _, st := range pl.Stages {
				if !seen[st] {
					seen[st] = true
					files = append(files, st)
				}
			}
		}
	}
	return files
}

// Graph returns the render graph of s.
func (s *GraphSystem) Graph() *graph.Graph { return s.graph }

// Table returns the resource table of s.
func (s *GraphSystem) Table() *restable.Table { return s.tab }

// Binder returns the resource binder of s.
func (s *GraphSystem) Binder() *binder.Binder { return s.binder }

// AddEntity implements ecs.System.
func (s *GraphSystem) AddEntity(e *ecs.Entity) error { return s.tab.AddEntity(e) }

// UpdateEntity implements ecs.System.
// Like RemoveEntity, it waits for frames in flight before
// the entity's resources are replaced.
func (s *GraphSystem) UpdateEntity(e *ecs.Entity) error {
	if err := s.graph.Wait(context.Background()); err != nil {
		return fmt.Errorf("system: updating %s: %w", e, err)
	}
	return s.tab.UpdateEntity(e)
}

// RemoveEntity implements ecs.System.
// It waits for the GPU to finish with the entity's
// resources before releasing them.
func (s *GraphSystem) RemoveEntity(e *ecs.Entity) {
	if err := s.graph.Wait(context.Background()); err != nil {
		logger().Error("removing entity while GPU is busy", "entity", e.String(), "err", err)
	}
	s.tab.RemoveEntity(e)
}

// FrameStart implements ecs.System.
// It prepares the graph and executes it.
func (s *GraphSystem) FrameStart(ctx context.Context, tab *ecs.Table) error {
	if err := s.graph.Prepare(ctx, tab); err != nil {
		return err
	}
	return s.graph.Execute(ctx)
}

// FrameEnd implements ecs.System.
// It invalidates the pipelines whose shaders changed.
func (s *GraphSystem) FrameEnd(ctx context.Context) error {
	if s.watch == nil {
		return nil
	}
	select {
	case <-s.watch.Notify():
	default:
		return nil
	}
	return s.Reload(ctx, s.watch.Changed()...)
}

// Reload invalidates the pipelines of every pass that
// uses any of the given shader files. They are created
// again by the next frame.
func (s *GraphSystem) Reload(ctx context.Context, files ...string) error {
	var errs []error
	done := make(map[string]bool)
	for _, f := range files {
		for _, p := range s.graph.PassesUsing(f) {
			if done[p] {
				continue
			}
			done[p] = true
			if err := s.graph.InvalidatePipelines(ctx, p); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Resize changes the size of the render area.
func (s *GraphSystem) Resize(ctx context.Context, width, height int) error {
	if err := s.graph.Resize(ctx, width, height); err != nil {
		return fmt.Errorf("system: %w", err)
	}
	s.cfg.Width, s.cfg.Height = width, height
	return nil
}

// Destroy destroys s.
func (s *GraphSystem) Destroy() {
	if s.watch != nil {
		if err := s.watch.Close(); err != nil {
			logger().Warn("closing watcher", "err", err)
		}
		s.watch = nil
	}
	if s.graph != nil {
		s.graph.Destroy()
		s.graph = nil
	}
	if s.tab != nil {
		s.tab.Destroy()
		s.tab = nil
	}
}
