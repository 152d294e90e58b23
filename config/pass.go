// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package config

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/gviegas/framegraph/driver"
	"github.com/gviegas/framegraph/restable"
)

// PassConfig describes one pass of the graph.
type PassConfig struct {
	Name string `toml:"name" yaml:"name"`

	// One of "model", "quad", "cube" or
	// "oversized-triangle".
	// Default is "model".
	Geometry string `toml:"geometry" yaml:"geometry"`

	// How pipelines are selected for each entity.
	// See SelectModes.
	// Default is "first".
	Select string `toml:"select" yaml:"select"`

	Clear     [4]float32       `toml:"clear" yaml:"clear"`
	DepthBias DepthBiasConfig  `toml:"depth_bias" yaml:"depth_bias"`
	Outputs   []OutputConfig   `toml:"outputs" yaml:"outputs"`
	Pipelines []PipelineConfig `toml:"pipelines" yaml:"pipelines"`
}

// DepthBiasConfig describes driver.DepthBias.
type DepthBiasConfig struct {
	Constant float32 `toml:"constant" yaml:"constant"`
	Slope    float32 `toml:"slope" yaml:"slope"`
}

// OutputConfig describes driver.OutputImage.
type OutputConfig struct {
	Name string `toml:"name" yaml:"name"`
	// A driver.PixelFmt name, such as "rgba8un" or "d32f".
	Format string `toml:"format" yaml:"format"`
	// One of "color", "depth", "depth-stencil" or
	// "resolve". Default is "color", or "depth" for depth
	// formats.
	Type      string `toml:"type" yaml:"type"`
	Width     int    `toml:"width" yaml:"width"`
	Height    int    `toml:"height" yaml:"height"`
	Presented bool   `toml:"presented" yaml:"presented"`
}

// PipelineConfig describes one pipeline of a pass.
type PipelineConfig struct {
	Name string `toml:"name" yaml:"name"`
	// Shader stage paths, relative to Config.ShaderDir
	// unless absolute.
	Stages []string `toml:"stages" yaml:"stages"`
	Inputs []string `toml:"inputs" yaml:"inputs"`

	Cull         string        `toml:"cull" yaml:"cull"`
	DepthTest    bool          `toml:"depth_test" yaml:"depth_test"`
	DepthWrite   bool          `toml:"depth_write" yaml:"depth_write"`
	DepthCompare string        `toml:"depth_compare" yaml:"depth_compare"`
	Blend        string        `toml:"blend" yaml:"blend"`
	Stencil      StencilConfig `toml:"stencil" yaml:"stencil"`
}

// StencilConfig describes driver.StencilState.
type StencilConfig struct {
	Enable    bool   `toml:"enable" yaml:"enable"`
	Compare   string `toml:"compare" yaml:"compare"`
	Pass      string `toml:"pass" yaml:"pass"`
	Fail      string `toml:"fail" yaml:"fail"`
	Ref       uint32 `toml:"ref" yaml:"ref"`
	WriteMask uint32 `toml:"write_mask" yaml:"write_mask"`
}

// SelectModes lists the valid values of
// PassConfig.Select.
//
//   - "first": every entity is drawn with the first
//     pipeline
//   - "all": every entity is drawn with every pipeline,
//     in declaration order
//   - "material": skinned entities use the pipeline named
//     "animated"; outlined entities use the first pipeline
//     followed by the one named "outline"; others use the
//     first pipeline
var SelectModes = []string{"first", "all", "material"}

// Validate checks p.
func (p *PassConfig) Validate() error {
	var errs []error
	add := func(format string, a ...any) {
		errs = append(errs, newErr(fmt.Sprintf("pass %q: ", p.Name)+fmt.Sprintf(format, a...)))
	}
	if p.Name == "" {
		add("missing name")
	}
	if _, err := ParseGeometry(p.Geometry); err != nil {
		add("%v", err)
	}
	if p.Select != "" && !slices.Contains(SelectModes, p.Select) {
		add("invalid select mode %q", p.Select)
	}
	if len(p.Outputs) == 0 {
		add("no outputs")
	}
	for _, o := range p.Outputs {
		if _, err := o.Image(); err != nil {
			add("%v", err)
		}
	}
	if len(p.Pipelines) == 0 {
		add("no pipelines")
	}
	for _, pl := range p.Pipelines {
		if len(pl.Stages) == 0 {
			add("pipeline %q has no stages", pl.Name)
		}
		if _, err := pl.Raster(); err != nil {
			add("%v", err)
		}
	}
	return errors.Join(errs...)
}

// Image converts o to a driver.OutputImage.
func (o *OutputConfig) Image() (driver.OutputImage, error) {
	if o.Name == "" {
		return driver.OutputImage{}, newErr("output has no name")
	}
	f, err := ParseFormat(o.Format)
	if err != nil {
		return driver.OutputImage{}, err
	}
	typ := driver.ColorAttachment
	switch {
	case o.Type != "":
		if typ, err = lookup(attachmentTypes, "attachment type", o.Type); err != nil {
			return driver.OutputImage{}, err
		}
	case f.IsDepth():
		typ = driver.DepthAttachment
	}
	return driver.OutputImage{
		Name:      o.Name,
		Format:    f,
		Type:      typ,
		Width:     o.Width,
		Height:    o.Height,
		Presented: o.Presented,
	}, nil
}

// Raster converts the fixed-function state of pl to a
// driver.RasterState.
func (pl *PipelineConfig) Raster() (driver.RasterState, error) {
	var (
		rs   driver.RasterState
		err  error
		errs []error
	)
	set := func(dst *int, m map[string]int, what, s string) {
		if s == "" {
			return
		}
		if *dst, err = lookup(m, what, s); err != nil {
			errs = append(errs, err)
		}
	}
	var cull, cmp, blend, scmp, spass, sfail int
	set(&cull, cullModes, "cull mode", pl.Cull)
	set(&cmp, compareOps, "compare op", pl.DepthCompare)
	set(&blend, blendModes, "blend mode", pl.Blend)
	set(&scmp, compareOps, "compare op", pl.Stencil.Compare)
	set(&spass, stencilOps, "stencil op", pl.Stencil.Pass)
	set(&sfail, stencilOps, "stencil op", pl.Stencil.Fail)
	if len(errs) > 0 {
		return rs, errors.Join(errs...)
	}
	rs = driver.RasterState{
		Cull:         driver.CullMode(cull),
		DepthTest:    pl.DepthTest,
		DepthWrite:   pl.DepthWrite,
		DepthCompare: driver.CompareOp(cmp),
		Stencil: driver.StencilState{
			Enable:    pl.Stencil.Enable,
			Compare:   driver.CompareOp(scmp),
			Pass:      driver.StencilOp(spass),
			Fail:      driver.StencilOp(sfail),
			Ref:       pl.Stencil.Ref,
			WriteMask: pl.Stencil.WriteMask,
		},
		Blend: driver.BlendMode(blend),
	}
	return rs, nil
}

// ParseGeometry parses the name of a geometry kind.
// The empty string yields restable.Model.
func ParseGeometry(s string) (restable.GeometryKind, error) {
	if s == "" {
		return restable.Model, nil
	}
	k, err := lookup(geometries, "geometry", s)
	return restable.GeometryKind(k), err
}

// ParseFormat parses the name of a pixel format.
func ParseFormat(s string) (driver.PixelFmt, error) {
	f, err := lookup(formats, "pixel format", s)
	return driver.PixelFmt(f), err
}

func lookup[T ~int](m map[string]T, what, s string) (T, error) {
	x, ok := m[strings.ToLower(s)]
	if !ok {
		return 0, newErr(fmt.Sprintf("invalid %s %q", what, s))
	}
	return x, nil
}

var geometries = map[string]int{
	"model":              int(restable.Model),
	"quad":               int(restable.Quad),
	"cube":               int(restable.Cube),
	"oversized-triangle": int(restable.OverSizedTriangle),
}

var formats = map[string]int{
	"rgba8un":   int(driver.RGBA8un),
	"rgba8srgb": int(driver.RGBA8sRGB),
	"bgra8srgb": int(driver.BGRA8sRGB),
	"rgba16f":   int(driver.RGBA16f),
	"rg16f":     int(driver.RG16f),
	"r32f":      int(driver.R32f),
	"d32f":      int(driver.D32f),
	"d24uns8ui": int(driver.D24unS8ui),
}

var attachmentTypes = map[string]driver.AttachmentType{
	"color":         driver.ColorAttachment,
	"depth":         driver.DepthAttachment,
	"depth-stencil": driver.DepthStencilAttachment,
	"resolve":       driver.ResolveAttachment,
}

var cullModes = map[string]int{
	"back":  int(driver.CullBack),
	"front": int(driver.CullFront),
	"none":  int(driver.CullNone),
}

var compareOps = map[string]int{
	"less":          int(driver.CmpLess),
	"less-equal":    int(driver.CmpLessEqual),
	"equal":         int(driver.CmpEqual),
	"not-equal":     int(driver.CmpNotEqual),
	"greater":       int(driver.CmpGreater),
	"greater-equal": int(driver.CmpGreaterEqual),
	"always":        int(driver.CmpAlways),
	"never":         int(driver.CmpNever),
}

var stencilOps = map[string]int{
	"keep":    int(driver.StencilKeep),
	"zero":    int(driver.StencilZero),
	"replace": int(driver.StencilReplace),
	"incr":    int(driver.StencilIncr),
	"decr":    int(driver.StencilDecr),
	"invert":  int(driver.StencilInvert),
}

var blendModes = map[string]int{
	"none":     int(driver.BlendNone),
	"alpha":    int(driver.BlendAlpha),
	"additive": int(driver.BlendAdditive),
}
