// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gviegas/framegraph/driver"
	"github.com/gviegas/framegraph/driver/nulldrv"
)

func TestIdentifier(t *testing.T) {
	for _, x := range [...]struct {
		id   Identifier
		want string
	}{
		{ID("Camera"), "Camera"},
		{Identifier{"Texture", 1}, "Texture1"},
		{Identifier{"Texture", 12}, "Texture12"},
		{Identifier{"Texture1", 2}, "Texture12"},
	} {
		assert.Equal(t, x.want, x.id.Key())
	}
}

func TestShaderResource(t *testing.T) {
	gpu := nulldrv.New(2)
	r, err := New(gpu, ID("Camera"), &Content{Type: driver.TUniform, Data: []byte{1}}, driver.LoadPerFrame, driver.HostMemory)
	require.NoError(t, err)
	back := r.Backend().(*nulldrv.Resource)

	assert.ErrorIs(t, r.Update([]byte{2}), ErrNotAllocated)
	require.NoError(t, r.Allocate([]byte{1}))
	assert.ErrorIs(t, r.Allocate([]byte{1}), ErrAllocated)
	require.NoError(t, r.Update([]byte{3}))
	assert.Equal(t, []byte{3}, back.Data)
	assert.Equal(t, 1, back.Allocs)
	assert.Equal(t, 1, back.Updates)

	r.Deallocate()
	r.Deallocate()
	assert.Equal(t, 1, back.Deallocs)
	assert.False(t, r.Allocated())

	r.Destroy()
	assert.True(t, back.Destroyed)
}

func TestPushConstant(t *testing.T) {
	gpu := nulldrv.New(1)
	r, err := New(gpu, ID("Model"), &Content{Type: driver.TPushConstant, Stages: driver.SVertex}, driver.LoadPerFrame, driver.HostMemory)
	require.NoError(t, err)
	assert.Nil(t, r.Backend())
	assert.Empty(t, gpu.Resources())

	rp, err := gpu.NewRenderPass(&driver.RenderPassRequest{Name: "p"})
	require.NoError(t, err)
	assert.ErrorIs(t, r.Bind(rp, false), ErrNotAllocated)
	require.NoError(t, r.Allocate(make([]byte, 64)))
	require.NoError(t, r.Bind(rp, false))
	evs := gpu.Events()
	require.NotEmpty(t, evs)
	assert.Equal(t, "pushConstant", evs[len(evs)-1].Op)
	assert.Equal(t, "64", evs[len(evs)-1].Arg)
}
