package audit

import (
	"math/rand"
	"sync"
)

// Sampler decides which events to keep. High-volume actions (profile views)
// can be sampled down while writes stay at full rate.
type Sampler struct {
	mu           sync.RWMutex
	defaultRate  float64
	rateByAction map[Action]float64
}

// NewSampler creates a sampler keeping the given fraction of events by
// default. Rates are clamped to [0, 1].
func NewSampler(defaultRate float64) *Sampler {
	return &Sampler{
		defaultRate:  clampRate(defaultRate),
		rateByAction: make(map[Action]float64),
	}
}

// ShouldSample reports whether an event for this action should be kept.
func (s *Sampler) ShouldSample(action Action) bool {
	return rand.Float64() < s.rateFor(action) //nolint:gosec // sampling doesn't need crypto rand
}

// SetRate overrides the rate for one action.
func (s *Sampler) SetRate(action Action, rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateByAction[action] = clampRate(rate)
}

func (s *Sampler) rateFor(action Action) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rate, ok := s.rateByAction[action]; ok {
		return rate
	}
	return s.defaultRate
}

func clampRate(rate float64) float64 {
	if rate < 0 {
		return 0
	}
	if rate > 1 {
		return 1
	}
	return rate
}
