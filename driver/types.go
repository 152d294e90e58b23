// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package driver

// PixelFmt describes the format of a pixel.
type PixelFmt int

// Pixel formats.
const (
	FInvalid PixelFmt = iota
	RGBA8un
	RGBA8sRGB
	BGRA8sRGB
	RGBA16f
	RG16f
	R32f
	D32f
	D24unS8ui
)

// IsDepth returns whether f is a depth/stencil format.
func (f PixelFmt) IsDepth() bool { return f == D32f || f == D24unS8ui }

// Size returns the size in bytes of a pixel of format f.
func (f PixelFmt) Size() int {
	switch f {
	case RGBA8un, RGBA8sRGB, BGRA8sRGB, RG16f, R32f, D32f, D24unS8ui:
		return 4
	case RGBA16f:
		return 8
	}
	return 0
}

// AttachmentType is the type of a render pass output.
type AttachmentType int

// Attachment types.
const (
	ColorAttachment AttachmentType = iota
	DepthAttachment
	DepthStencilAttachment
	ResolveAttachment
)

// OutputImage describes an image that a render pass
// writes to. A Width or Height of zero means that the
// image follows the render area.
type OutputImage struct {
	Name      string
	Format    PixelFmt
	Type      AttachmentType
	Width     int
	Height    int
	Presented bool
}

// RenderArea is a rectangle in framebuffer coordinates.
type RenderArea struct {
	X, Y          int
	Width, Height int
}

// Stage is a mask of shader stages.
type Stage int

// Shader stages.
const (
	SVertex Stage = 1 << iota
	SFragment
	SCompute
	SNone Stage = 0
)

// Usage is the intended usage of a resource.
type Usage int

// Resource usages.
const (
	UShaderRead Usage = iota
	URenderTarget
	UCopyDst
	UPresent
)

// CullMode is the face culling mode.
type CullMode int

// Cull modes.
const (
	CullBack CullMode = iota
	CullFront
	CullNone
)

// CompareOp is a comparison function.
type CompareOp int

// Comparison functions.
const (
	CmpLess CompareOp = iota
	CmpLessEqual
	CmpEqual
	CmpNotEqual
	CmpGreater
	CmpGreaterEqual
	CmpAlways
	CmpNever
)

// StencilOp is a stencil operation.
type StencilOp int

// Stencil operations.
const (
	StencilKeep StencilOp = iota
	StencilZero
	StencilReplace
	StencilIncr
	StencilDecr
	StencilInvert
)

// StencilState describes the stencil test.
type StencilState struct {
	Enable    bool
	Compare   CompareOp
	Pass      StencilOp
	Fail      StencilOp
	Ref       uint32
	WriteMask uint32
}

// BlendMode is the color blending mode.
type BlendMode int

// Blend modes.
const (
	BlendNone BlendMode = iota
	BlendAlpha
	BlendAdditive
)

// RasterState is the fixed-function state of a pipeline.
type RasterState struct {
	Cull         CullMode
	DepthTest    bool
	DepthWrite   bool
	DepthCompare CompareOp
	Stencil      StencilState
	Blend        BlendMode
}

// DepthBias is the depth bias applied to rasterized
// fragments (e.g., to avoid shadow acne).
type DepthBias struct {
	Constant float32
	Slope    float32
}

// PipelineRequest describes a pipeline to be created.
type PipelineRequest struct {
	Name   string
	Stages []string
	Raster RasterState
	Parent RenderPass
}

// RenderPassRequest describes a render pass to be created.
type RenderPassRequest struct {
	Name    string
	Outputs []OutputImage
	Bias    DepthBias
	Area    RenderArea
	Final   bool
}

// RenderTargetRequest describes a render target to be
// created for a given frame slot.
type RenderTargetRequest struct {
	Pass    RenderPass
	Frame   int
	Outputs []OutputImage
	Area    RenderArea
}

// ResourceType is the type of a shader resource.
type ResourceType int

// Resource types.
const (
	TUniform ResourceType = iota
	TSampler2D
	TCubeMap
	TVertexData
	TIndexData
	TPushConstant
)

// String implements fmt.Stringer.
func (t ResourceType) String() string {
	switch t {
	case TUniform:
		return "Uniform"
	case TSampler2D:
		return "Sampler2D"
	case TCubeMap:
		return "CubeMap"
	case TVertexData:
		return "VertexData"
	case TIndexData:
		return "IndexData"
	case TPushConstant:
		return "PushConstant"
	default:
		return "[!] invalid ResourceType value"
	}
}

// IsImage returns whether t is backed by an image.
func (t ResourceType) IsImage() bool { return t == TSampler2D || t == TCubeMap }

// LoadStrategy determines when a resource is uploaded.
type LoadStrategy int

// Load strategies.
const (
	// Uploaded once; never refreshed.
	LoadOnce LoadStrategy = iota
	// Refreshed every frame.
	LoadPerFrame
	// Refreshed when its source changes.
	LoadOnUpdate
)

// PersistStrategy is a mask describing where a resource
// lives and for how long.
type PersistStrategy int

// Persist strategies.
const (
	HostMemory PersistStrategy = 1 << iota
	DeviceMemory
	Transient
	Stored
)

// ImageDesc describes the image behind a TSampler2D or
// TCubeMap resource.
type ImageDesc struct {
	Width  int
	Height int
	Format PixelFmt
	// Layers is 6 for cube maps.
	Layers int
}

// ResourceRequest describes a resource to be created.
type ResourceRequest struct {
	Name    string
	Type    ResourceType
	Load    LoadStrategy
	Persist PersistStrategy
	Stages  Stage
	// Image is required for image types and ignored
	// otherwise.
	Image *ImageDesc
}

// LockType is the type of a Lock.
type LockType int

// Lock types.
const (
	Fence LockType = iota
	Semaphore
)
