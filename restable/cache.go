// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package restable

import (
	"fmt"

	"github.com/gviegas/framegraph/driver"
	"github.com/gviegas/framegraph/resource"
)

// texCache shares image resources between every binding
// created from contents with the same cache key.
// Entries are destroyed when their last reference is
// released.
type texCache struct {
	gpu     driver.GPU
	entries map[string]*texEntry
}

type texEntry struct {
	res  *resource.ShaderResource
	refs int
}

func (c *texCache) acquire(c0 *resource.Content) (*resource.ShaderResource, bool, error) {
	if e, ok := c.entries[c0.CacheKey]; ok {
		e.refs++
		return e.res, false, nil
	}
	if c0.Image == nil {
		return nil, false, newErr(fmt.Sprintf("image content %q has no image description", c0.CacheKey))
	}
	res, err := resource.New(c.gpu, resource.ID(c0.CacheKey), c0, driver.LoadOnce, driver.DeviceMemory|driver.Stored)
	if err != nil {
		return nil, false, err
	}
	if err := res.Allocate(c0.Data); err != nil {
		res.Destroy()
		return nil, false, err
	}
	res.Transition(driver.UShaderRead)
	c.entries[c0.CacheKey] = &texEntry{res: res, refs: 1}
	return res, true, nil
}

func (c *texCache) release(key string) {
	e, ok := c.entries[key]
	if !ok {
		panic(prefix + "release of unknown texture " + key)
	}
	if e.refs--; e.refs == 0 {
		e.res.Destroy()
		delete(c.entries, key)
	}
}

func (c *texCache) destroy() {
	for k, e := range c.entries {
		e.res.Destroy()
		delete(c.entries, k)
	}
}
