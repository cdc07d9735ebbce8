// Package ema updates a target network as an exponential moving average of an
// online network and schedules the decay rate tau.
package ema

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/blas/blas32"
)

var (
	// ErrMismatch is returned when target and online parameters do not
	// correspond one to one.
	ErrMismatch = errors.New("ema: parameter mismatch")

	// ErrInvalidTau is returned for tau outside [0, 1].
	ErrInvalidTau = errors.New("ema: tau must be in [0, 1]")
)

// Params exposes the trainable parameter tensors of a network as flat slices.
// The slices must alias the network's storage so that updates are visible to
// the network.
type Params interface {
	Parameters() [][]float32
}

// Blend updates target in place:
//
//	target = tau*target + (1-tau)*online
//
// target and online must have the same number of tensors and matching
// lengths; otherwise nothing is modified.
func Blend(target, online [][]float32, tau float64) error {
	if math.IsNaN(tau) || tau < 0 || tau > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidTau, tau)
	}
	if len(target) != len(online) {
		return fmt.Errorf("%w: %d target tensors, %d online tensors", ErrMismatch, len(target), len(online))
	}
	for i := range target {
		if len(target[i]) != len(online[i]) {
			return fmt.Errorf("%w: tensor %d has length %d, online has %d", ErrMismatch, i, len(target[i]), len(online[i]))
		}
	}

	for i, t := range target {
		n := len(t)
		if n == 0 {
			continue
		}
		y := blas32.Vector{N: n, Inc: 1, Data: t}
		x := blas32.Vector{N: n, Inc: 1, Data: online[i]}
		blas32.Scal(float32(tau), y)
		blas32.Axpy(float32(1-tau), x, y)
	}
	return nil
}

// Update blends target towards online with decay tau.
func Update(target, online Params, tau float64) error {
	return Blend(target.Parameters(), online.Parameters(), tau)
}

// Copy overwrites target with online.
func Copy(target, online Params) error {
	t, o := target.Parameters(), online.Parameters()
	if err := Blend(t, o, 1); err != nil { // validates shapes only
		return err
	}
	for i := range t {
		copy(t[i], o[i])
	}
	return nil
}

// Schedule is the cosine tau schedule
//
//	tau(k) = 1 - (1 - Base) * (cos(pi*k/K) + 1) / 2
//
// which starts at Base and reaches 1 after TotalSteps.
type Schedule struct {
	Base       float64
	TotalSteps int
}

// DefaultSchedule returns a schedule with base 0.996.
func DefaultSchedule(totalSteps int) Schedule {
	return Schedule{Base: 0.996, TotalSteps: totalSteps}
}

// Validate checks the schedule.
func (s Schedule) Validate() error {
	if math.IsNaN(s.Base) || s.Base < 0 || s.Base > 1 {
		return fmt.Errorf("%w: base %v", ErrInvalidTau, s.Base)
	}
	if s.TotalSteps < 0 {
		return fmt.Errorf("ema: negative total steps %d", s.TotalSteps)
	}
	return nil
}

// At returns tau at step k. Steps past TotalSteps are clamped.
func (s Schedule) At(k int) float64 {
	if s.TotalSteps <= 0 {
		return s.Base
	}
	k = min(max(k, 0), s.TotalSteps)
	progress := float64(k) / float64(s.TotalSteps)
	return 1 - (1-s.Base)*(math.Cos(math.Pi*progress)+1)/2
}

// Scheduler walks a Schedule. It is safe for concurrent use.
type Scheduler struct {
	mu       sync.Mutex
	schedule Schedule
	step     int
}

// NewScheduler creates a Scheduler at step 0.
func NewScheduler(s Schedule) (*Scheduler, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &Scheduler{schedule: s}, nil
}

// Tau returns tau for the current step.
func (s *Scheduler) Tau() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedule.At(s.step)
}

// Step returns the current step.
func (s *Scheduler) Step() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// Advance moves to the next step and returns the new tau.
func (s *Scheduler) Advance() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.step++
	return s.schedule.At(s.step)
}
