// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package system

import (
	"errors"
	"fmt"

	"github.com/gviegas/framegraph/binder"
	"github.com/gviegas/framegraph/component"
	"github.com/gviegas/framegraph/config"
	"github.com/gviegas/framegraph/driver"
	"github.com/gviegas/framegraph/ecs"
	"github.com/gviegas/framegraph/graph"
)

// Names of the default passes and of the images they
// output.
const (
	ShadowMap    = "shadowMap"
	SkyboxPass   = "skybox"
	LightingPass = "lightingPass"
	PresentPass  = "present"

	SkyColor  = "skyColor"
	HDRColor  = "hdrColor"
	Depth     = "depth"
	Swapchain = "swapchain"
)

// Names of the pipelines that the "material" select mode
// looks for.
const (
	OutlinePipeline  = "outline"
	AnimatedPipeline = "animated"
)

const shadowMapSize = 2048

// DefaultPasses returns the description of the default
// pass set: a shadow map, a sky box, a forward lighting
// pass (base, outline and skinned variants) and a pass
// that presents the result.
func DefaultPasses() []config.PassConfig {
	return []config.PassConfig{
		{
			Name:      ShadowMap,
			Geometry:  "model",
			Select:    "first",
			DepthBias: config.DepthBiasConfig{Constant: 1.25, Slope: 1.75},
			Outputs: []config.OutputConfig{
				{Name: ShadowMap, Format: "d32f", Width: shadowMapSize, Height: shadowMapSize},
			},
			Pipelines: []config.PipelineConfig{{
				Name:         "shadow",
				Stages:       []string{"shadow.vert"},
				Inputs:       []string{binder.LightingEnvironment, binder.Model, binder.InstanceTransforms},
				Cull:         "front",
				DepthTest:    true,
				DepthWrite:   true,
				DepthCompare: "less",
			}},
		},
		{
			Name:     SkyboxPass,
			Geometry: "cube",
			Select:   "first",
			Outputs:  []config.OutputConfig{{Name: SkyColor, Format: "rgba16f"}},
			Pipelines: []config.PipelineConfig{{
				Name:   "sky",
				Stages: []string{"sky.vert", "sky.frag"},
				Inputs: []string{binder.Camera, binder.Skybox},
				Cull:   "front",
			}},
		},
		{
			Name:     LightingPass,
			Geometry: "model",
			Select:   "material",
			Outputs: []config.OutputConfig{
				{Name: HDRColor, Format: "rgba16f"},
				{Name: Depth, Format: "d24uns8ui", Type: "depth-stencil"},
			},
			Pipelines: []config.PipelineConfig{
				{
					Name:   "base",
					Stages: []string{"forward.vert", "forward.frag"},
					Inputs: []string{
						binder.Camera, binder.LightingEnvironment, SkyColor, ShadowMap,
						binder.Model, binder.InstanceTransforms,
						binder.Material, binder.AlbedoTexture, binder.HeightMap,
					},
					DepthTest:    true,
					DepthWrite:   true,
					DepthCompare: "less",
					Stencil: config.StencilConfig{
						Enable: true, Compare: "always", Pass: "replace", Fail: "keep", Ref: 1, WriteMask: 0xff,
					},
				},
				{
					Name:   OutlinePipeline,
					Stages: []string{"outline.vert", "outline.frag"},
					Inputs: []string{binder.Camera, binder.Model, binder.Outline},
					Cull:   "none",
					Stencil: config.StencilConfig{
						Enable: true, Compare: "not-equal", Pass: "keep", Fail: "keep", Ref: 1,
					},
				},
				{
					Name:   AnimatedPipeline,
					Stages: []string{"skinned.vert", "forward.frag"},
					Inputs: []string{
						binder.Camera, binder.LightingEnvironment, SkyColor, ShadowMap,
						binder.Model, binder.BoneTransforms,
						binder.Material, binder.AlbedoTexture,
					},
					DepthTest:    true,
					DepthWrite:   true,
					DepthCompare: "less",
				},
			},
		},
		{
			Name:     PresentPass,
			Geometry: "oversized-triangle",
			Select:   "first",
			Clear:    [4]float32{0, 0, 0, 1},
			Outputs:  []config.OutputConfig{{Name: Swapchain, Format: "bgra8srgb", Presented: true}},
			Pipelines: []config.PipelineConfig{{
				Name:   "tonemap",
				Stages: []string{"fullscreen.vert", "tonemap.frag"},
				Inputs: []string{HDRColor},
				Cull:   "none",
			}},
		},
	}
}

// BuildPasses creates the passes that cfg describes,
// or the default passes if cfg describes none.
// Shader stage paths are resolved against cfg.ShaderDir.
func BuildPasses(cfg *config.Config) ([]*graph.Pass, error) {
	descs := cfg.Passes
	if len(descs) == 0 {
		descs = DefaultPasses()
	}
	passes := make([]*graph.Pass, 0, len(descs))
	var errs []error
	for i := range descs {
		p, err := buildPass(cfg, &descs[i])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		passes = append(passes, p)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return passes, nil
}

func buildPass(cfg *config.Config, desc *config.PassConfig) (*graph.Pass, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	geom, _ := config.ParseGeometry(desc.Geometry)
	p := &graph.Pass{
		Name:     desc.Name,
		Geometry: geom,
		Outputs:  make([]driver.OutputImage, len(desc.Outputs)),
		Bias:     driver.DepthBias{Constant: desc.DepthBias.Constant, Slope: desc.DepthBias.Slope},
		Clear:    desc.Clear,
	}
	for i := range desc.Outputs {
		p.Outputs[i], _ = desc.Outputs[i].Image()
	}
	for _, pl := range desc.Pipelines {
		stages := make([]string, len(pl.Stages))
		for i, s := range pl.Stages {
			stages[i] = cfg.ShaderPath(s)
		}
		rs, _ := pl.Raster()
		p.Pipelines = append(p.Pipelines, graph.PipelineRequest{
			Name:   pl.Name,
			Stages: stages,
			Inputs: append([]string(nil), pl.Inputs...),
			Raster: rs,
		})
	}
	sel, err := selector(desc.Select, p.Pipelines)
	if err != nil {
		return nil, fmt.Errorf("system: pass %q: %w", desc.Name, err)
	}
	p.Select = sel
	return p, nil
}

// selector returns the pipeline selection function of
// the given mode.
func selector(mode string, pipelines []graph.PipelineRequest) (func(*ecs.Entity) []int, error) {
	switch mode {
	case "", "first":
		return nil, nil
	case "all":
		all := make([]int, len(pipelines))
		for i := range all {
			all[i] = i
		}
		return func(*ecs.Entity) []int { return all }, nil
	case "material":
		return MaterialSelect(pipelines), nil
	}
	return nil, fmt.Errorf("unknown select mode %q", mode)
}

// MaterialSelect returns a selection function that draws
// skinned entities with the pipeline named
// AnimatedPipeline only, outlined entities with the first
// pipeline followed by the one named OutlinePipeline,
// and every other entity with the first pipeline.
// A skinned entity that is also outlined is not outlined.
// Variants that pipelines lack are never selected.
func MaterialSelect(pipelines []graph.PipelineRequest) func(*ecs.Entity) []int {
	base := []int{0}
	var animated, outlined []int
	for i, pl := range pipelines {
		switch pl.Name {
		case AnimatedPipeline:
			animated = []int{i}
		case OutlinePipeline:
			outlined = []int{0, i}
		}
	}
	return func(e *ecs.Entity) []int {
		if animated != nil && ecs.Has[*component.AnimState](e) {
			return animated
		}
		if outlined != nil && ecs.Has[*component.Outlined](e) {
			return outlined
		}
		return base
	}
}
