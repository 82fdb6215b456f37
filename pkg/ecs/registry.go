package ecs

import (
	"reflect"
	"slices"
)

type registry struct {
	lastEntity Entity
	freeList   []Entity
	// order holds the live entities sorted ascending.
	order    []Entity
	masks    map[Entity]Bitmask
	storages map[ComponentID]any
	typeIDs  map[reflect.Type]ComponentID
	deleters map[ComponentID]func(Entity)
}

func newRegistry() *registry {
	return &registry{
		masks:    make(map[Entity]Bitmask),
		storages: make(map[ComponentID]any),
		typeIDs:  make(map[reflect.Type]ComponentID),
		deleters: make(map[ComponentID]func(Entity)),
	}
}

func (r *registry) createEntity() Entity {
	var e Entity
	if len(r.freeList) > 0 {
		e = r.freeList[len(r.freeList)-1]
		r.freeList = r.freeList[:len(r.freeList)-1]
	} else {
		r.lastEntity++
		e = r.lastEntity
	}
	r.masks[e] = Bitmask{}
	i, _ := slices.BinarySearch(r.order, e)
	r.order = slices.Insert(r.order, i, e)
	return e
}

func (r *registry) removeEntity(e Entity) {
	mask, ok := r.masks[e]
	if !ok {
		return
	}

	mask.ForEachSet(func(id ComponentID) {
		if deleteFn, exists := r.deleters[id]; exists {
			deleteFn(e)
		}
	})

	delete(r.masks, e)
	if i, found := slices.BinarySearch(r.order, e); found {
		r.order = slices.Delete(r.order, i, i+1)
	}
	r.freeList = append(r.freeList, e)
}

func assign[T any](r *registry, e Entity, component T) {
	id := registerComponent[T](r)
	assignByID(r, e, id, component)
}

// assignByID ignores entities that are not alive.
func assignByID[T any](r *registry, e Entity, id ComponentID, component T) {
	mask, ok := r.masks[e]
	if !ok {
		return
	}
	storage, ok := r.storages[id].(map[Entity]*T)
	if !ok {
		return
	}
	r.masks[e] = mask.Set(id)
	c := component
	storage[e] = &c
}

func unassign[T any](r *registry, e Entity) {
	id, ok := r.typeIDs[reflect.TypeFor[T]()]
	if !ok {
		return
	}
	unassignByID[T](r, e, id)
}

func unassignByID[T any](r *registry, e Entity, id ComponentID) {
	if storage, ok := r.storages[id].(map[Entity]*T); ok {
		delete(storage, e)
	}

	if mask, ok := r.masks[e]; ok {
		r.masks[e] = mask.Clear(id)
	}
}

func (r *registry) each(v View, fn func(e Entity)) {
	// fn may remove entities, so walk a snapshot.
	for _, e := range slices.Clone(r.order) {
		if m, ok := r.masks[e]; ok && m.Matches(v.mask) {
			fn(e)
		}
	}
}

func mapTypeToComponent[T any](r *registry) map[Entity]*T {
	id := registerComponent[T](r)
	return r.storages[id].(map[Entity]*T)
}

func registerComponent[T any](r *registry) ComponentID {
	t := reflect.TypeFor[T]()
	if id, ok := r.typeIDs[t]; ok {
		return id
	}

	id := ComponentID(len(r.typeIDs))
	r.typeIDs[t] = id

	storage := make(map[Entity]*T)
	r.storages[id] = storage

	r.deleters[id] = func(e Entity) {
		delete(storage, e)
	}

	return id
}
