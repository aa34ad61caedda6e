package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSampler(t *testing.T) {
	t.Run("rate 1 keeps everything", func(t *testing.T) {
		s := NewSampler(1.0)
		for i := 0; i < 100; i++ {
			assert.True(t, s.ShouldSample(ActionProfileViewed))
		}
	})

	t.Run("rate 0 drops everything", func(t *testing.T) {
		s := NewSampler(0)
		for i := 0; i < 100; i++ {
			assert.False(t, s.ShouldSample(ActionProfileViewed))
		}
	})

	t.Run("per-action override wins over default", func(t *testing.T) {
		s := NewSampler(0)
		s.SetRate(ActionProfileUpdated, 1.0)
		assert.True(t, s.ShouldSample(ActionProfileUpdated))
		assert.False(t, s.ShouldSample(ActionProfileViewed))
	})

	t.Run("rates are clamped", func(t *testing.T) {
		s := NewSampler(7)
		assert.True(t, s.ShouldSample(ActionProfileViewed))
		s.SetRate(ActionProfileViewed, -3)
		assert.False(t, s.ShouldSample(ActionProfileViewed))
	})
}
