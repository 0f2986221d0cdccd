package progress

import (
	"testing"
	"time"
)

func TestMeter_SnapshotCountsBytes(t *testing.T) {
	current := time.Unix(1000, 0)
	m := NewMeterWithNow(func() time.Time { return current })

	m.AddTotal(1000)
	current = current.Add(time.Second)
	m.Add(250)

	stats := m.Snapshot()
	if stats.BytesDone != 250 {
		t.Errorf("expected BytesDone 250, got %d", stats.BytesDone)
	}
	if stats.Total != 1000 {
		t.Errorf("expected Total 1000, got %d", stats.Total)
	}
	if stats.Percent != 25 {
		t.Errorf("expected Percent 25, got %f", stats.Percent)
	}
}

func TestMeter_RateSmoothing(t *testing.T) {
	current := time.Unix(2000, 0)
	m := NewMeterWithNow(func() time.Time { return current })
	m.AddTotal(4096)

	// 1024 bytes per second, twice: the smoothed rate should stay at 1024.
	current = current.Add(time.Second)
	m.Add(1024)
	current = current.Add(time.Second)
	m.Add(1024)

	stats := m.Snapshot()
	if stats.RateBps < 1023 || stats.RateBps > 1025 {
		t.Errorf("expected rate near 1024 B/s, got %f", stats.RateBps)
	}
}

func TestMeter_IgnoresNonPositive(t *testing.T) {
	m := NewMeter()
	m.Add(0)
	m.Add(-5)
	m.AddTotal(-1)

	stats := m.Snapshot()
	if stats.BytesDone != 0 || stats.Total != 0 {
		t.Errorf("expected zero counters, got done=%d total=%d", stats.BytesDone, stats.Total)
	}
}
