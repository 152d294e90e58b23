// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package restable implements the global resource table
// used by the render graph.
//
// The table owns the GPU buffers of every geometry in the
// scene and the resources produced by the binder registry.
// Per-frame and per-entity resources live in frame slot
// arenas, one per frame in flight, so frames that overlap
// in time never alias the same GPU object.
package restable

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/gviegas/framegraph/binder"
	"github.com/gviegas/framegraph/driver"
	"github.com/gviegas/framegraph/ecs"
	"github.com/gviegas/framegraph/internal/slot"
	"github.com/gviegas/framegraph/resource"
)

const prefix = "restable: "

func newErr(reason string) error { return errors.New(prefix + reason) }

// ErrNotAllocated means that a resource was read before
// being allocated.
var ErrNotAllocated = errors.New(prefix + "resource not allocated for this frame slot")

func logger() *slog.Logger { return slog.Default().With("pkg", "restable") }

type binding struct {
	// nil if the producer did not generate contents.
	res *resource.ShaderResource
	// Set if res is owned by the texture cache.
	key string
}

// FrameSlot is the arena of resources owned by one frame
// in flight.
type FrameSlot struct {
	Index     int
	perFrame  map[int]*binding
	perEntity map[uuid.UUID]map[int]*binding
	refreshed map[entityInput]struct{}
}

type entityInput struct {
	uid uuid.UUID
	idx int
}

func newFrameSlot(index int) FrameSlot {
	return FrameSlot{
		Index:     index,
		perFrame:  make(map[int]*binding),
		perEntity: make(map[uuid.UUID]map[int]*binding),
		refreshed: make(map[entityInput]struct{}),
	}
}

// Stats holds resource table statistics.
type Stats struct {
	Geometries  int
	Textures    int
	PerFrame    int
	PerEntity   int
	PerGeometry int
	Allocs      int
	Updates     int
	Deallocs    int
}

// Table is the global resource table.
// It is not safe for concurrent use.
type Table struct {
	gpu      driver.GPU
	binder   *binder.Binder
	view     *ecs.Table
	slots    []FrameSlot
	textures texCache

	geomMap  slot.Map[uint32]
	geoms    []*geometry
	entities map[uuid.UUID]*Drawable
	models   []*Drawable
	builtins [OverSizedTriangle + 1]*Drawable

	tracked [binder.EachFrame + 1][]int
	stats   Stats
}

// New creates a resource table with frameCount frame slots.
func New(gpu driver.GPU, b *binder.Binder, frameCount int) (*Table, error) {
	if frameCount < 1 {
		return nil, newErr(fmt.Sprintf("invalid frame count %d", frameCount))
	}
	t := &Table{
		gpu:      gpu,
		binder:   b,
		view:     ecs.NewTable(),
		slots:    make([]FrameSlot, frameCount),
		textures: texCache{gpu: gpu, entries: make(map[string]*texEntry)},
		entities: make(map[uuid.UUID]*Drawable),
	}
	for i := range t.slots {
		t.slots[i] = newFrameSlot(i)
	}
	if err := t.initBuiltins(); err != nil {
		t.Destroy()
		return nil, err
	}
	return t, nil
}

// FrameCount returns the number of frame slots.
func (t *Table) FrameCount() int { return len(t.slots) }

// SetView replaces the component table that producers
// read from.
func (t *Table) SetView(tab *ecs.Table) {
	if tab == nil {
		tab = ecs.NewTable()
	}
	t.view = tab
}

// View returns the current component table.
func (t *Table) View() *ecs.Table { return t.view }

// Track registers a binder index to be refreshed by the
// AllocateAll* methods that correspond to freq.
// Tracking an index twice has no effect.
func (t *Table) Track(idx int, freq binder.Frequency) {
	if !slices.Contains(t.tracked[freq], idx) {
		t.tracked[freq] = append(t.tracked[freq], idx)
	}
}

// Tracked returns the binder indices tracked for freq.
// The slice must not be modified.
func (t *Table) Tracked(freq binder.Frequency) []int { return t.tracked[freq] }

func loadFor(freq binder.Frequency) driver.LoadStrategy {
	switch freq {
	case binder.Once:
		return driver.LoadOnce
	case binder.EachGeometry:
		return driver.LoadOnUpdate
	}
	return driver.LoadPerFrame
}

func persistFor(freq binder.Frequency) driver.PersistStrategy {
	switch freq {
	case binder.EachFrame, binder.EachEntity:
		return driver.HostMemory | driver.Transient
	}
	return driver.DeviceMemory | driver.Stored
}

// bind materializes c into b, allocating on first use and
// updating afterwards unless the resource is LoadOnce.
func (t *Table) bind(b *binding, id resource.Identifier, freq binder.Frequency, c *resource.Content) (*binding, error) {
	if c == nil {
		t.release(b)
		return &binding{}, nil
	}
	if c.CacheKey != "" && c.Type.IsImage() {
		if b != nil && b.key == c.CacheKey {
			return b, nil
		}
		res, created, err := t.textures.acquire(c)
		if err != nil {
			return nil, err
		}
		if created {
			t.stats.Allocs++
		}
		t.release(b)
		return &binding{res: res, key: c.CacheKey}, nil
	}
	if b != nil && b.res != nil && b.key == "" {
		if b.res.Load != driver.LoadOnce {
			if err := b.res.Update(c.Data); err != nil {
				return nil, err
			}
			t.stats.Updates++
		}
		return b, nil
	}
	res, err := resource.New(t.gpu, id, c, loadFor(freq), persistFor(freq))
	if err != nil {
		return nil, err
	}
	if err := res.Allocate(c.Data); err != nil {
		res.Destroy()
		return nil, err
	}
	t.stats.Allocs++
	t.release(b)
	return &binding{res: res}, nil
}

func (t *Table) release(b *binding) {
	switch {
	case b == nil || b.res == nil:
	case b.key != "":
		t.textures.release(b.key)
	default:
		b.res.Destroy()
		t.stats.Deallocs++
	}
}

// AllocateResource materializes the contents of a per-frame
// resource in the given frame slot.
// The resource is allocated the first time, and updated in
// subsequent calls unless its load strategy is LoadOnce.
// Push constants never reach the driver.
func (t *Table) AllocateResource(idx int, id resource.Identifier, frame int, c *resource.Content) error {
	s := &t.slots[frame]
	b, err := t.bind(s.perFrame[idx], id, binder.EachFrame, c)
	if err != nil {
		return fmt.Errorf(prefix+"frame %d: %w", frame, err)
	}
	s.perFrame[idx] = b
	return nil
}

// AllocateAllPerFrame produces every tracked EachFrame
// resource for the given frame slot.
func (t *Table) AllocateAllPerFrame(frame int) error {
	in := &binder.Input{Table: t.view, Frame: frame}
	for _, idx := range t.tracked[binder.EachFrame] {
		e := t.binder.ByIndex(idx)
		c, err := e.Producer(in)
		if err != nil {
			return fmt.Errorf(prefix+"%s: %w", e.Name, err)
		}
		if err := t.AllocateResource(idx, resource.ID(e.Name), frame, c); err != nil {
			return err
		}
	}
	return nil
}

// AllocateAllPerEntity produces every tracked EachEntity
// resource of e for the given frame slot.
func (t *Table) AllocateAllPerEntity(frame int, e *ecs.Entity) error {
	return t.AllocatePerEntity(frame, e, t.tracked[binder.EachEntity])
}

// AllocatePerEntity produces the given subset of EachEntity
// resources of e for the given frame slot.
// Each resource is refreshed at most once per entity until
// ResetFrame is called for the slot.
func (t *Table) AllocatePerEntity(frame int, e *ecs.Entity, subset []int) error {
	s := &t.slots[frame]
	uid := e.UID()
	m := s.perEntity[uid]
	if m == nil {
		m = make(map[int]*binding)
		s.perEntity[uid] = m
	}
	in := &binder.Input{Table: t.view, Entity: e, Frame: frame}
	for _, idx := range subset {
		key := entityInput{uid, idx}
		if _, ok := s.refreshed[key]; ok {
			continue
		}
		ent := t.binder.ByIndex(idx)
		c, err := ent.Producer(in)
		if err != nil {
			return fmt.Errorf(prefix+"%s of %v: %w", ent.Name, e, err)
		}
		b, err := t.bind(m[idx], resource.ID(e.Name()+"."+ent.Name), binder.EachEntity, c)
		if err != nil {
			return fmt.Errorf(prefix+"%s of %v: %w", ent.Name, e, err)
		}
		m[idx] = b
		s.refreshed[key] = struct{}{}
	}
	return nil
}

// AllocateAllPerGeometry produces every tracked EachGeometry
// and Once resource of the given geometry that has not been
// produced yet.
func (t *Table) AllocateAllPerGeometry(g int) error {
	if err := t.AllocatePerGeometry(g, t.tracked[binder.Once]); err != nil {
		return err
	}
	return t.AllocatePerGeometry(g, t.tracked[binder.EachGeometry])
}

// AllocatePerGeometry produces the given subset of
// EachGeometry and Once resources of the given geometry.
// A resource is produced once for the lifetime of the
// geometry.
func (t *Table) AllocatePerGeometry(g int, subset []int) error {
	geo := t.geometry(g)
	for _, idx := range subset {
		if _, ok := geo.res[idx]; ok {
			continue
		}
		if err := t.produceGeometry(geo, idx); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) produceGeometry(geo *geometry, idx int) error {
	ent := t.binder.ByIndex(idx)
	c, err := ent.Producer(&binder.Input{Table: t.view, Entity: geo.bin.Entity, Geometry: &geo.bin})
	if err != nil {
		return fmt.Errorf(prefix+"%s of %s[%d]: %w", ent.Name, geo.bin.Mesh.Name, geo.bin.Index, err)
	}
	id := resource.Identifier{Name: geo.bin.Mesh.Name + "." + ent.Name, Deviation: geo.bin.Index}
	b, err := t.bind(nil, id, ent.Frequency, c)
	if err != nil {
		return fmt.Errorf(prefix+"%s of %s[%d]: %w", ent.Name, geo.bin.Mesh.Name, geo.bin.Index, err)
	}
	geo.res[idx] = b
	return nil
}

// ResetFrame clears the per-entity refresh tracking of the
// given frame slot.
func (t *Table) ResetFrame(frame int) { clear(t.slots[frame].refreshed) }

// Resource returns the per-frame resource idx of the given
// frame slot. It returns a nil resource with a nil error if
// the producer generated no contents, and an error wrapping
// ErrNotAllocated if the resource was never allocated in
// the slot.
func (t *Table) Resource(idx, frame int) (*resource.ShaderResource, error) {
	b, ok := t.slots[frame].perFrame[idx]
	if !ok {
		return nil, fmt.Errorf("%w: %s (frame %d)", ErrNotAllocated, t.binder.ByIndex(idx).Name, frame)
	}
	return b.res, nil
}

// EntityResource is like Resource but for per-entity
// resources.
func (t *Table) EntityResource(idx, frame int, e *ecs.Entity) (*resource.ShaderResource, error) {
	b, ok := t.slots[frame].perEntity[e.UID()][idx]
	if !ok {
		return nil, fmt.Errorf("%w: %s of %v (frame %d)", ErrNotAllocated, t.binder.ByIndex(idx).Name, e, frame)
	}
	return b.res, nil
}

// GeometryResource is like Resource but for per-geometry
// and load-once resources.
func (t *Table) GeometryResource(idx, g int) (*resource.ShaderResource, error) {
	b, ok := t.geometry(g).res[idx]
	if !ok {
		return nil, fmt.Errorf("%w: %s of geometry %d", ErrNotAllocated, t.binder.ByIndex(idx).Name, g)
	}
	return b.res, nil
}

// Stats returns statistics about t.
func (t *Table) Stats() Stats {
	s := t.stats
	s.Geometries = t.geomMap.Used()
	s.Textures = len(t.textures.entries)
	for i := range t.slots {
		s.PerFrame += len(t.slots[i].perFrame)
		for _, m := range t.slots[i].perEntity {
			s.PerEntity += len(m)
		}
	}
	for _, geo := range t.geoms {
		if geo != nil {
			s.PerGeometry += len(geo.res)
		}
	}
	return s
}

func (t *Table) releaseEntity(uid uuid.UUID) {
	for i := range t.slots {
		s := &t.slots[i]
		m, ok := s.perEntity[uid]
		if !ok {
			continue
		}
		for idx, b := range m {
			t.release(b)
			delete(s.refreshed, entityInput{uid, idx})
		}
		delete(s.perEntity, uid)
	}
}

// Destroy releases every resource owned by t.
// t must not be used afterwards.
func (t *Table) Destroy() {
	uids := maps.Keys(t.entities)
	slices.SortFunc(uids, func(a, b uuid.UUID) int { return t.entities[a].First - t.entities[b].First })
	for _, uid := range uids {
		t.removeDrawable(t.entities[uid])
	}
	for i := range t.slots {
		s := &t.slots[i]
		for _, b := range s.perFrame {
			t.release(b)
		}
		for uid := range s.perEntity {
			t.releaseEntity(uid)
		}
		*s = newFrameSlot(i)
	}
	t.textures.destroy()
	t.models = nil
	clear(t.builtins[:])
	logger().Debug("resource table destroyed")
}
