package ecs

import (
	"fmt"
	"reflect"
)

// newView takes component values, e.g. newView(r, Position{}, Velocity{}).
func newView(r *registry, components ...any) (View, error) {
	var v View
	for _, c := range components {
		t := reflect.TypeOf(c)
		id, ok := r.typeIDs[t]
		if !ok {
			return View{}, fmt.Errorf("%w: %v", ErrUnregistered, t)
		}
		v.mask = v.mask.Set(id)
	}
	return v, nil
}
