package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDurationHours_RoundsHalfUp(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want float64
	}{
		{0, 0},
		{time.Hour, 1.00},
		{time.Hour + 18*time.Second, 1.01},
		{522 * time.Second, 0.15},
		{17 * time.Second, 0},
		{18 * time.Second, 0.01},
		{65 * time.Minute, 1.08},
		{time.Hour + 17*time.Second + 999*time.Millisecond, 1.00},
		{-time.Minute, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DurationHours(tt.in), "DurationHours(%s)", tt.in)
	}
}

func TestDurationHours_EveryTieRoundsUp(t *testing.T) {
	// 36s is one hundredth of an hour; an 18s remainder is an exact half.
	for secs := int64(18); secs < 24*3600; secs += 36 {
		want := float64(secs/36+1) / 100
		got := DurationHours(time.Duration(secs) * time.Second)
		if !assert.Equal(t, want, got, "%ds", secs) {
			return
		}
	}
}
