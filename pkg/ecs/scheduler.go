package ecs

import (
	"fmt"
	"time"
)

var _ SystemAPI = (*scheduler)(nil)

type scheduler struct {
	register *registry
	systems  []System
}

func newScheduler(register *registry) *scheduler {
	return &scheduler{register: register}
}

func (s *scheduler) NewView(components ...any) (View, error) {
	return newView(s.register, components...)
}

func (s *scheduler) Each(v View, fn func(e Entity)) {
	s.register.each(v, fn)
}

func (s *scheduler) registerSystems(systems []System) error {
	for i, system := range systems {
		if err := system.Init(s); err != nil {
			return fmt.Errorf("init system %d (%T): %w", i, system, err)
		}
		s.systems = append(s.systems, system)
	}
	return nil
}

func (s *scheduler) updateSystems(duration time.Duration) {
	for _, system := range s.systems {
		system.Update(s, duration)
	}
}

func (s *scheduler) registry() *registry { return s.register }
