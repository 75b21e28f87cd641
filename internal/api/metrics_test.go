package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "42с", formatUptime(42*time.Second))
	assert.Equal(t, "3м 5с", formatUptime(3*time.Minute+5*time.Second))
	assert.Equal(t, "2ч 0м 1с", formatUptime(2*time.Hour+time.Second))
	assert.Equal(t, "1д 1ч 0м 0с", formatUptime(25*time.Hour))
}

func TestServerMetrics_Snapshot(t *testing.T) {
	s := NewServerMetrics().Snapshot()
	assert.Positive(t, s.Goroutines)
	assert.Positive(t, s.ServerTime)
	assert.NotEmpty(t, s.Uptime)
}
