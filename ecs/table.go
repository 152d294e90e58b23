// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package ecs

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ID identifies an entity within a Table.
type ID int

// Table is the queryable collection of the entities alive
// in a frame. Iteration order is insertion order until the
// first removal, which moves the last entity into the
// vacated position.
type Table struct {
	ents store[ID, *Entity]
	uids map[uuid.UUID]ID
}

// NewTable creates an empty table.
func NewTable() *Table { return &Table{uids: make(map[uuid.UUID]ID)} }

// Insert inserts e (but not its descendants) into t.
// Inserting an entity twice has no effect.
func (t *Table) Insert(e *Entity) ID {
	if id, ok := t.uids[e.uid]; ok {
		return id
	}
	id := t.ents.insert(e)
	t.uids[e.uid] = id
	return id
}

// InsertTree inserts e and all of its descendants into t.
func (t *Table) InsertTree(e *Entity) {
	e.Walk(func(x *Entity) bool {
		t.Insert(x)
		return true
	})
}

// Remove removes e (but not its descendants) from t.
// It returns false if e is not in t.
func (t *Table) Remove(e *Entity) bool {
	id, ok := t.uids[e.uid]
	if !ok {
		return false
	}
	t.ents.remove(id)
	delete(t.uids, e.uid)
	return true
}

// RemoveTree removes e and all of its descendants from t.
func (t *Table) RemoveTree(e *Entity) {
	e.Walk(func(x *Entity) bool {
		t.Remove(x)
		return true
	})
}

// Lookup returns the entity with the given UID.
func (t *Table) Lookup(uid uuid.UUID) (*Entity, bool) {
	id, ok := t.uids[uid]
	if !ok || !t.ents.valid(id) {
		return nil, false
	}
	return *t.ents.get(id), true
}

// Len returns the number of entities in t.
func (t *Table) Len() int { return t.ents.len() }

// Entities returns the entities of t in iteration order.
func (t *Table) Entities() []*Entity {
	es := make([]*Entity, 0, t.ents.len())
	for _, x := range t.ents.data {
		es = append(es, x.data)
	}
	return es
}

// Query returns every component of type T in t, in
// iteration order.
func Query[T any](t *Table) []T {
	var cs []T
	for _, x := range t.ents.data {
		if c, ok := Get[T](x.data); ok {
			cs = append(cs, c)
		}
	}
	return cs
}

// QueryEntities returns every entity of t that has a
// component of type T, in iteration order.
func QueryEntities[T any](t *Table) []*Entity {
	var es []*Entity
	for _, x := range t.ents.data {
		if Has[T](x.data) {
			es = append(es, x.data)
		}
	}
	return es
}

// World owns a Table and forwards entity lifecycle events
// and frames to a list of Systems.
type World struct {
	tab     *Table
	systems []System
}

// NewWorld creates a world driving the given systems.
func NewWorld(systems ...System) *World {
	return &World{tab: NewTable(), systems: systems}
}

// Table returns the table of w.
func (w *World) Table() *Table { return w.tab }

// Spawn inserts e and its descendants and notifies every
// system.
func (w *World) Spawn(e *Entity) error {
	w.tab.InsertTree(e)
	var errs []error
	for _, s := range w.systems {
		if err := s.AddEntity(e); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("ecs: spawn %v: %w", e, err)
	}
	return nil
}

// Update notifies every system that e changed.
func (w *World) Update(e *Entity) error {
	w.tab.InsertTree(e)
	for _, s := range w.systems {
		if err := s.UpdateEntity(e); err != nil {
			return fmt.Errorf("ecs: update %v: %w", e, err)
		}
	}
	return nil
}

// Despawn removes e and its descendants and notifies
// every system.
func (w *World) Despawn(e *Entity) {
	for _, s := range w.systems {
		s.RemoveEntity(e)
	}
	w.tab.RemoveTree(e)
}

// Frame runs one frame: FrameStart on every system, then
// FrameEnd on every system.
func (w *World) Frame(ctx context.Context) error {
	for _, s := range w.systems {
		if err := s.FrameStart(ctx, w.tab); err != nil {
			return err
		}
	}
	for _, s := range w.systems {
		if err := s.FrameEnd(ctx); err != nil {
			return err
		}
	}
	return nil
}
