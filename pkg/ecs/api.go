// Package ecs is a small entity component system. Entities are numbered
// from 1 and freed numbers are reused, so an entity fits an id slot where
// zero means "none".
package ecs

import (
	"errors"
	"time"
)

var ErrUnregistered = errors.New("ecs: component not registered")

type (
	Entity uint32

	ComponentID int

	System interface {
		Init(SystemAPI) error
		Update(SystemAPI, time.Duration)
	}

	// View selects the entities holding every component it was built from.
	View struct {
		mask Bitmask
	}

	SystemAPI interface {
		NewView(components ...any) (View, error)
		// Each visits matching entities in ascending order.
		Each(v View, fn func(e Entity))
		registry() *registry
	}

	Engine struct {
		reg       *registry
		scheduler *scheduler
	}
)

var _ SystemAPI = (*Engine)(nil)

// Map returns the live storage of component T. Pointers stay valid until
// the component is unassigned.
func Map[T any](api SystemAPI) map[Entity]*T {
	return mapTypeToComponent[T](api.registry())
}

// Get returns the T component of entity.
func Get[T any](api SystemAPI, entity Entity) (*T, bool) {
	c, ok := Map[T](api)[entity]
	return c, ok
}

func NewEngine() *Engine {
	reg := newRegistry()
	return &Engine{
		reg:       reg,
		scheduler: newScheduler(reg),
	}
}

func (e *Engine) CreateEntity() Entity {
	return e.reg.createEntity()
}

func (e *Engine) RemoveEntity(entity Entity) {
	e.reg.removeEntity(entity)
}

func (e *Engine) Alive(entity Entity) bool {
	_, ok := e.reg.masks[entity]
	return ok
}

// Entities returns the live entities in ascending order.
func (e *Engine) Entities() []Entity {
	return append([]Entity(nil), e.reg.order...)
}

func (e *Engine) Len() int { return len(e.reg.order) }

// RegisterSystems initializes the systems in order and appends them to the
// update list. It stops at the first failing Init; systems before it stay
// registered.
func (e *Engine) RegisterSystems(systems ...System) error {
	return e.scheduler.registerSystems(systems)
}

func (e *Engine) UpdateSystems(duration time.Duration) {
	e.scheduler.updateSystems(duration)
}

func (e *Engine) NewView(components ...any) (View, error) {
	return newView(e.reg, components...)
}

func (e *Engine) Each(v View, fn func(e Entity)) {
	e.reg.each(v, fn)
}

func (e *Engine) registry() *registry { return e.reg }

func RegisterComponent[T any](e *Engine) ComponentID {
	return registerComponent[T](e.reg)
}

func Assign[T any](e *Engine, entity Entity, component T) {
	assign(e.reg, entity, component)
}

func AssignByID[T any](e *Engine, entity Entity, id ComponentID, component T) {
	assignByID(e.reg, entity, id, component)
}

func Unassign[T any](e *Engine, entity Entity) {
	unassign[T](e.reg, entity)
}

func UnassignByID[T any](e *Engine, entity Entity, id ComponentID) {
	unassignByID[T](e.reg, entity, id)
}
