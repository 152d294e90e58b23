// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package system

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gviegas/framegraph/asset"
	"github.com/gviegas/framegraph/binder"
	"github.com/gviegas/framegraph/component"
	"github.com/gviegas/framegraph/config"
	"github.com/gviegas/framegraph/driver/nulldrv"
	"github.com/gviegas/framegraph/ecs"
	"github.com/gviegas/framegraph/graph"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Width, cfg.Height = 320, 240
	cfg.Strict = true
	cfg.FenceTimeout = config.Duration(time.Second)
	cfg.ShaderDir = t.TempDir()
	return &cfg
}

func newSystem(t *testing.T, cfg *config.Config) (*GraphSystem, *nulldrv.GPU) {
	t.Helper()
	gpu := nulldrv.New(3)
	s, err := New(gpu, nil, cfg)
	require.NoError(t, err)
	t.Cleanup(s.Destroy)
	return s, gpu
}

func renderPass(t *testing.T, gpu *nulldrv.GPU, name string) *nulldrv.RenderPass {
	t.Helper()
	var rp *nulldrv.RenderPass
	for _, x := range gpu.RenderPasses() {
		if x.Name == name && !x.Destroyed {
			rp = x
		}
	}
	require.NotNil(t, rp, name)
	return rp
}

func camera() *ecs.Entity {
	e := ecs.NewEntity("camera")
	ecs.Add(e, &component.Camera{
		Active:   true,
		Position: mgl32.Vec3{0, 2, 5},
		FovY:     mgl32.DegToRad(60),
		Aspect:   4.0 / 3.0,
		Near:     0.1,
		Far:      100,
	})
	return e
}

func sun() *ecs.Entity {
	e := ecs.NewEntity("sun")
	ecs.Add(e, &component.DirectionalLight{Direction: mgl32.Vec3{0, -1, 0}, Color: mgl32.Vec3{1, 1, 1}, Intensity: 3, Shadow: true})
	return e
}

func model(name string, mesh *asset.MeshGeometry) *ecs.Entity {
	e := ecs.NewEntity(name)
	ecs.Add(e, &component.Mesh{Geometry: mesh})
	ecs.Add(e, &component.Transform{World: mgl32.Ident4()})
	return e
}

func lightingPipelines(t *testing.T) []graph.PipelineRequest {
	t.Helper()
	passes, err := BuildPasses(testConfig(t))
	require.NoError(t, err)
	for _, p := range passes {
		if p.Name == LightingPass {
			return p.Pipelines
		}
	}
	t.Fatal("BuildPasses: no lighting pass")
	return nil
}

func TestMaterialSelect(t *testing.T) {
	pls := lightingPipelines(t)
	require.Len(t, pls, 3)
	sel := MaterialSelect(pls)

	both := ecs.NewEntity("both")
	ecs.Add(both, &component.AnimState{Bones: []mgl32.Mat4{mgl32.Ident4()}})
	ecs.Add(both, &component.Outlined{Color: mgl32.Vec4{1, 0, 0, 1}, Width: 0.05})
	outlined := ecs.NewEntity("outlined")
	ecs.Add(outlined, &component.Outlined{Width: 0.05})
	plain := ecs.NewEntity("plain")

	// Animation takes precedence over outline.
	assert.Equal(t, []int{2}, sel(both))
	assert.Equal(t, []int{0, 1}, sel(outlined))
	assert.Equal(t, []int{0}, sel(plain))

	// Without an animated variant.
	sel = MaterialSelect(pls[:2])
	assert.Equal(t, []int{0, 1}, sel(both))
	sel = MaterialSelect(pls[:1])
	assert.Equal(t, []int{0}, sel(both))
}

func TestBuildPasses(t *testing.T) {
	cfg := testConfig(t)
	passes, err := BuildPasses(cfg)
	require.NoError(t, err)
	require.Len(t, passes, 4)
	sm := passes[0]
	assert.Equal(t, ShadowMap, sm.Name)
	assert.Nil(t, sm.Select)
	assert.Equal(t, float32(1.25), sm.Bias.Constant)
	assert.Equal(t, []string{filepath.Join(cfg.ShaderDir, "shadow.vert")}, sm.Pipelines[0].Stages)
	assert.Equal(t, graph.Cube, passes[1].Geometry)
	assert.True(t, passes[3].Outputs[0].Presented)

	cfg.Passes = DefaultPasses()[:1]
	cfg.Passes[0].Select = "all"
	passes, err = BuildPasses(cfg)
	require.NoError(t, err)
	require.Len(t, passes, 1)
	assert.Equal(t, []int{0}, passes[0].Select(ecs.NewEntity("e")))

	cfg.Passes[0].Select = "random"
	_, err = BuildPasses(cfg)
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	s, _ := newSystem(t, testConfig(t))
	g := s.Graph()
	assert.Equal(t, []string{ShadowMap, SkyboxPass, LightingPass, PresentPass}, g.Order())
	assert.Equal(t, []string{SkyboxPass, ShadowMap}, g.Dependencies(LightingPass))
	assert.Equal(t, []string{LightingPass}, g.Dependencies(PresentPass))
	assert.Equal(t, 3, g.FrameCount())

	cfg := testConfig(t)
	cfg.DoubleBuffered = true
	s, _ = newSystem(t, cfg)
	assert.Equal(t, 2, s.Graph().FrameCount())
	assert.Equal(t, 2, s.Table().FrameCount())

	cfg = testConfig(t)
	cfg.Passes = DefaultPasses()[2:]
	_, err := New(nulldrv.New(3), nil, cfg)
	assert.ErrorIs(t, err, graph.ErrUnboundInput)
}

func TestNewCurrent(t *testing.T) {
	prev := config.Current()
	t.Cleanup(func() { config.Configure(&prev) })
	cfg := testConfig(t)
	cfg.DoubleBuffered = true
	config.Configure(cfg)

	s, _ := newSystem(t, nil)
	assert.Equal(t, 2, s.Graph().FrameCount())
	assert.Equal(t, []string{ShadowMap, SkyboxPass, LightingPass, PresentPass}, s.Graph().Order())
}

func TestWorld(t *testing.T) {
	s, gpu := newSystem(t, testConfig(t))
	w := ecs.NewWorld(s)
	ctx := context.Background()

	outlined := model("outlined", asset.Quad())
	ecs.Add(outlined, &component.Outlined{Color: mgl32.Vec4{1, 1, 0, 1}, Width: 0.02})
	skinned := model("skinned", asset.Cube())
	ecs.Add(skinned, &component.AnimState{Bones: make([]mgl32.Mat4, 4)})
	ecs.Add(skinned, &component.Outlined{Width: 0.02})
	for _, e := range []*ecs.Entity{camera(), sun(), outlined, skinned} {
		require.NoError(t, w.Spawn(e))
	}
	assert.Len(t, s.Table().GeometryList(graph.Model), 2)

	for range 4 {
		require.NoError(t, w.Frame(ctx))
	}
	assert.Equal(t, 1, s.Graph().FrameIndex())
	assert.Equal(t, graph.Stats{Frames: 4, Draws: 4 * (2 + 1 + 3 + 1), Submits: 16}, s.Graph().Stats())

	var pls []string
	for _, d := range renderPass(t, gpu, LightingPass).Draws {
		if d.Frame == 0 {
			pls = append(pls, d.Pipeline)
		}
	}
	// Frames 0 and 3 used slot 0.
	assert.Equal(t, []string{"base", OutlinePipeline, AnimatedPipeline, "base", OutlinePipeline, AnimatedPipeline}, pls)

	// Bones are bound for the skinned entity only.
	assert.Len(t, gpu.ResourcesNamed("skinned."+binder.BoneTransforms), 3)
	assert.Empty(t, gpu.ResourcesNamed("outlined."+binder.BoneTransforms))

	w.Despawn(skinned)
	assert.Len(t, s.Table().GeometryList(graph.Model), 1)
	require.NoError(t, w.Frame(ctx))
}

func TestUpdateEntity(t *testing.T) {
	s, gpu := newSystem(t, testConfig(t))
	w := ecs.NewWorld(s)
	ctx := context.Background()
	mesh := asset.Quad()
	mesh.Name = "plane"
	m := model("m", mesh)
	for _, e := range []*ecs.Entity{camera(), sun(), m} {
		require.NoError(t, w.Spawn(e))
	}
	require.NoError(t, w.Frame(ctx))

	old := gpu.ResourcesNamed("plane.vertex0")
	require.Len(t, old, 1)
	gpu.ClearEvents()
	require.NoError(t, w.Update(m))

	wait, destroy := -1, -1
	for i, e := range gpu.Events() {
		switch {
		case e.Op == "wait" && wait < 0:
			wait = i
		case e.Op == "destroy" && e.Arg == "plane.vertex0" && destroy < 0:
			destroy = i
		}
	}
	if wait < 0 || destroy < 0 || wait > destroy {
		t.Fatalf("GraphSystem.UpdateEntity: event order\nhave wait %d, destroy %d\nwant wait before destroy", wait, destroy)
	}
	assert.True(t, old[0].Destroyed)
	now := gpu.ResourcesNamed("plane.vertex0")
	require.Len(t, now, 2)
	assert.False(t, now[1].Destroyed)
	require.NoError(t, w.Frame(ctx))
}

func TestNoCamera(t *testing.T) {
	s, _ := newSystem(t, testConfig(t))
	w := ecs.NewWorld(s)
	require.NoError(t, w.Spawn(model("m", asset.Quad())))
	err := w.Frame(context.Background())
	assert.ErrorIs(t, err, binder.ErrNoCamera)
}

func TestReload(t *testing.T) {
	cfg := testConfig(t)
	s, gpu := newSystem(t, cfg)
	w := ecs.NewWorld(s)
	require.NoError(t, w.Spawn(camera()))
	ctx := context.Background()
	require.NoError(t, w.Frame(ctx))

	countBase := func() (live, dead int) {
		for _, pl := range gpu.Pipelines() {
			if pl.Name != "base" {
				continue
			}
			if pl.Destroyed {
				dead++
			} else {
				live++
			}
		}
		return
	}
	require.NoError(t, s.Reload(ctx, cfg.ShaderPath("forward.frag"), cfg.ShaderPath("unused.frag")))
	live, dead := countBase()
	assert.Equal(t, 0, live)
	assert.Equal(t, 1, dead)
	for _, pl := range gpu.Pipelines() {
		if pl.Name == "shadow" {
			assert.False(t, pl.Destroyed)
		}
	}
	require.NoError(t, w.Frame(ctx))
	live, dead = countBase()
	assert.Equal(t, 1, live)
	assert.Equal(t, 1, dead)
}

func TestWatch(t *testing.T) {
	cfg := testConfig(t)
	cfg.Watch = true
	frag := cfg.ShaderPath("tonemap.frag")
	require.NoError(t, os.WriteFile(frag, []byte("v0"), 0o644))
	s, gpu := newSystem(t, cfg)
	w := ecs.NewWorld(s)
	require.NoError(t, w.Spawn(camera()))
	ctx := context.Background()
	require.NoError(t, w.Frame(ctx))
	require.NoError(t, s.FrameEnd(ctx))
	for _, pl := range gpu.Pipelines() {
		assert.False(t, pl.Destroyed, pl.Name)
	}

	require.NoError(t, os.WriteFile(frag, []byte("v1"), 0o644))
	deadline := time.Now().Add(5 * time.Second)
	for {
		require.NoError(t, s.FrameEnd(ctx))
		var destroyed bool
		for _, pl := range gpu.Pipelines() {
			if pl.Name == "tonemap" && pl.Destroyed {
				destroyed = true
			}
		}
		if destroyed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("GraphSystem.FrameEnd: tonemap pipeline not invalidated")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestResize(t *testing.T) {
	s, gpu := newSystem(t, testConfig(t))
	w := ecs.NewWorld(s)
	require.NoError(t, w.Spawn(camera()))
	ctx := context.Background()
	require.NoError(t, w.Frame(ctx))
	require.NoError(t, s.Resize(ctx, 800, 600))
	require.NoError(t, w.Frame(ctx))
	rp := renderPass(t, gpu, PresentPass)
	assert.Equal(t, 800, rp.Area.Width)
	assert.Equal(t, 600, rp.Area.Height)
	assert.Error(t, s.Resize(ctx, 0, 600))
}
