package demo

import "time"

// maxFrameTime bounds how much time one Advance may simulate, so a stall
// (a breakpoint, a suspended laptop) does not replay thousands of steps.
const maxFrameTime = 250 * time.Millisecond

// Stepper runs a fixed-step update from variable frame deltas.
type Stepper struct {
	step        time.Duration
	accumulator time.Duration
	update      func(step time.Duration)
}

func NewStepper(step time.Duration, update func(time.Duration)) *Stepper {
	if step <= 0 {
		step = time.Second / 120
	}
	return &Stepper{step: step, update: update}
}

// Advance adds delta to the accumulator and runs every whole step it
// covers. It returns the number of steps run.
func (s *Stepper) Advance(delta time.Duration) int {
	if delta > maxFrameTime {
		delta = maxFrameTime
	}
	if delta > 0 {
		s.accumulator += delta
	}
	steps := 0
	for s.accumulator >= s.step {
		s.update(s.step)
		s.accumulator -= s.step
		steps++
	}
	return steps
}

// Alpha is the fraction of a step left in the accumulator.
func (s *Stepper) Alpha() float64 {
	return float64(s.accumulator) / float64(s.step)
}
