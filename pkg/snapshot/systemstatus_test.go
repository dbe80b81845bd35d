package snapshot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOverloadedFractionEmptyIsNotOverloaded(t *testing.T) {
	t.Parallel()
	frac := overloadedFraction([]MemorySnapshot{}, func(m MemorySnapshot) bool { return m.IsOverloaded })
	assert.Equal(t, 0.0, frac)
}

func TestSystemStatusOverloadedWhenAnyDimensionOver(t *testing.T) {
	t.Parallel()
	s := New(DefaultConfig(), nil)
	now := time.Now()
	s.memory = []MemorySnapshot{
		{CreatedAt: now, IsOverloaded: true},
		{CreatedAt: now, IsOverloaded: true},
		{CreatedAt: now, IsOverloaded: false},
	}

	status := NewSystemStatus(s, StatusConfig{MaxMemoryOverloadedRatio: 0.1, MaxEventLoopOverloadedRatio: 0.1, MaxCPUOverloadedRatio: 0.1, MaxClientOverloadedRatio: 0.1})
	got := status.GetHistoricalStatus()
	assert.True(t, got.Memory)
	assert.True(t, got.IsOverloaded)
}

func TestSystemStatusNotOverloadedBelowThreshold(t *testing.T) {
	t.Parallel()
	s := New(DefaultConfig(), nil)
	now := time.Now()
	s.memory = []MemorySnapshot{
		{CreatedAt: now, IsOverloaded: false},
		{CreatedAt: now, IsOverloaded: false},
		{CreatedAt: now, IsOverloaded: true},
	}

	status := NewSystemStatus(s, StatusConfig{MaxMemoryOverloadedRatio: 0.5, MaxEventLoopOverloadedRatio: 0.5, MaxCPUOverloadedRatio: 0.5, MaxClientOverloadedRatio: 0.5})
	got := status.GetHistoricalStatus()
	assert.False(t, got.Memory)
	assert.False(t, got.IsOverloaded)
}
