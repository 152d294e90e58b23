// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package ecs implements the entity/component collaborator
// consumed by the render graph: entities are component
// containers, and a Table is the set of entities (and thus
// components) alive in a given frame.
package ecs

import (
	"context"
	"reflect"

	"github.com/google/uuid"
)

// Entity is a container of components.
// An entity holds at most one component of each type.
// Entities form a hierarchy through AddChild.
type Entity struct {
	uid      uuid.UUID
	name     string
	comps    map[reflect.Type]any
	parent   *Entity
	children []*Entity
}

// NewEntity creates a new entity with a random UID.
func NewEntity(name string) *Entity {
	return &Entity{
		uid:   uuid.New(),
		name:  name,
		comps: make(map[reflect.Type]any),
	}
}

// UID returns the unique identifier of e.
func (e *Entity) UID() uuid.UUID { return e.uid }

// Name returns the name of e.
func (e *Entity) Name() string { return e.name }

// String implements fmt.Stringer.
func (e *Entity) String() string { return e.name + "(" + e.uid.String()[:8] + ")" }

// Parent returns the parent of e, if any.
func (e *Entity) Parent() *Entity { return e.parent }

// Children returns the immediate descendants of e.
// The slice must not be modified.
func (e *Entity) Children() []*Entity { return e.children }

// AddChild makes c an immediate descendant of e.
// c is detached from its current parent first.
func (e *Entity) AddChild(c *Entity) {
	if c.parent != nil {
		c.parent.removeChild(c)
	}
	c.parent = e
	e.children = append(e.children, c)
}

func (e *Entity) removeChild(c *Entity) {
	for i, x := range e.children {
		if x == c {
			e.children = append(e.children[:i], e.children[i+1:]...)
			c.parent = nil
			return
		}
	}
}

// Walk calls fn for e and each of its descendants, in
// depth-first pre-order. It stops if fn returns false.
func (e *Entity) Walk(fn func(*Entity) bool) bool {
	if !fn(e) {
		return false
	}
	for _, c := range e.children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// Add sets the component of type T of e, replacing any
// existing one.
func Add[T any](e *Entity, c T) {
	e.comps[reflect.TypeFor[T]()] = c
}

// Get returns the component of type T of e.
func Get[T any](e *Entity) (c T, ok bool) {
	x, ok := e.comps[reflect.TypeFor[T]()]
	if ok {
		c = x.(T)
	}
	return
}

// Has returns whether e has a component of type T.
func Has[T any](e *Entity) bool {
	_, ok := e.comps[reflect.TypeFor[T]()]
	return ok
}

// Remove removes the component of type T from e.
func Remove[T any](e *Entity) {
	delete(e.comps, reflect.TypeFor[T]())
}

// System is the interface that an entity/component system
// implements to be driven by a World.
type System interface {
	// AddEntity is called when an entity (with all its
	// descendants) enters the world.
	AddEntity(e *Entity) error

	// UpdateEntity is called when the components of an
	// entity changed.
	UpdateEntity(e *Entity) error

	// RemoveEntity is called when an entity leaves the
	// world.
	RemoveEntity(e *Entity)

	// FrameStart is called once per frame, before
	// FrameEnd, with the components alive this frame.
	FrameStart(ctx context.Context, tab *Table) error

	// FrameEnd is called once per frame.
	FrameEnd(ctx context.Context) error
}
