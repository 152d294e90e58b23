// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package driver

import (
	"context"
)

// GPU is the main interface to an underlying driver
// implementation.
// It is used to create the objects that the render graph
// needs. A GPU is obtained from a call to Driver.Open.
type GPU interface {
	// Driver returns the Driver that owns the GPU.
	Driver() Driver

	// NewPipeline creates a new pipeline.
	// It fails with ErrNoParentPass if req.Parent is nil.
	NewPipeline(req *PipelineRequest) (Pipeline, error)

	// NewRenderPass creates a new render pass.
	NewRenderPass(req *RenderPassRequest) (RenderPass, error)

	// NewRenderTarget creates the set of images that a
	// render pass draws into for one frame slot.
	// The target is backed by the swapchain if any of
	// req.Outputs is Presented, otherwise new offscreen
	// color/depth images are created.
	NewRenderTarget(req *RenderTargetRequest) (RenderTarget, error)

	// NewResource creates a new shader resource.
	// No GPU memory is committed until Allocate is called
	// on the returned Resource.
	NewResource(req *ResourceRequest) (Resource, error)

	// NewLock creates a new synchronization primitive.
	// Fences may be created in the signaled state so that
	// the first wait on them does not block.
	NewLock(typ LockType, signaled bool) (Lock, error)

	// ImageCount returns the number of swapchain images.
	// It determines the number of frame slots.
	ImageCount() int
}

// Destroyer is the interface that wraps the Destroy method.
// Types that implement this interface may allocate external
// memory that is not managed by GC, so Destroy must be
// called explicitly to ensure such memory is deallocated.
type Destroyer interface {
	Destroy()
}

// Pipeline is the interface that defines a compiled
// graphics pipeline.
type Pipeline interface {
	Destroyer
}

// RenderPass is the interface that defines a render pass
// together with the command recording that targets it.
// The usage per frame is as follows:
//
//  1. call FrameStart
//  2. for each pipeline, call BindPipeline followed by
//     BindPerFrame for every per-frame resource
//  3. call Begin
//  4. for each object, call BindPipeline, BindPerObject
//     and PushConstant as needed, then Draw
//  5. call Submit
type RenderPass interface {
	Destroyer

	// FrameStart resets per-frame recording state such as
	// per-pipeline object counters.
	FrameStart(frame int, pipelines []Pipeline)

	// Begin begins the render pass against rt, clearing
	// color attachments to clear.
	Begin(rt RenderTarget, clear [4]float32)

	// BindPipeline sets the current pipeline.
	BindPipeline(pl Pipeline)

	// BindPerFrame binds a resource that is shared by
	// every object drawn with the current pipeline.
	BindPerFrame(res Resource)

	// BindPerObject binds a resource that only applies
	// to the next draw.
	BindPerObject(res Resource)

	// PushConstant copies data directly into the command
	// stream for the next draw.
	PushConstant(stages Stage, data []byte)

	// Draw draws the bound object instanceCount times.
	Draw(instanceCount int)

	// Submit ends recording and submits the commands.
	// Execution waits on every lock in wait and signals
	// notify on completion.
	// It returns false if the work must be submitted
	// again (e.g., the swapchain is out of date).
	Submit(wait []Lock, notify Lock) (bool, error)

	// Property queries a backend-specific property,
	// such as "msaa". It returns the empty string for
	// unknown properties.
	Property(name string) string
}

// RenderTarget is the interface that defines the images
// a render pass draws into for one frame slot.
type RenderTarget interface {
	Destroyer

	// Len returns the number of output images.
	Len() int

	// Image returns the i-th output image. It can be bound
	// as a shader input of another pass.
	Image(i int) Resource

	// Presented returns whether the target is backed by
	// the swapchain.
	Presented() bool
}

// Resource is the capability interface of a GPU-resident
// shader resource: buffers, 2D images and cube images.
type Resource interface {
	Destroyer

	// Type returns the resource type.
	Type() ResourceType

	// Allocate commits GPU memory and performs the first
	// upload of data.
	Allocate(data []byte) error

	// Update uploads new contents without re-creating the
	// underlying GPU object.
	Update(data []byte) error

	// Deallocate frees the GPU memory. The resource may be
	// allocated again afterwards.
	Deallocate()

	// Transition prepares the resource for the given usage.
	Transition(u Usage)
}

// Lock is the interface that defines a synchronization
// primitive (a fence or a semaphore).
type Lock interface {
	Destroyer

	// Wait blocks until the lock is signaled or ctx is
	// done. If ctx expires first, it returns an error that
	// wraps ErrTimeout.
	Wait(ctx context.Context) error

	// Reset unsignals the lock.
	Reset()

	// Notify signals the lock from the host.
	Notify()
}
