package progress

import (
	"sync"
	"time"
)

// Stats is a point-in-time snapshot of harvest progress.
type Stats struct {
	BytesDone int64
	Total     int64
	RateBps   float64
	Percent   float64
	StartedAt time.Time
}

// Meter tracks byte progress across a fleet harvest and computes a smoothed
// transfer rate. Safe for concurrent use; chunk goroutines from several
// machines feed the same meter.
type Meter struct {
	mu        sync.Mutex
	total     int64
	done      int64
	startedAt time.Time
	lastAt    time.Time
	lastDone  int64
	rateBps   float64
	alpha     float64
	now       func() time.Time
}

// NewMeter returns a meter with a default smoothing factor.
func NewMeter() *Meter {
	return NewMeterWithNow(time.Now)
}

// NewMeterWithNow returns a meter with a custom time source (for tests).
func NewMeterWithNow(now func() time.Time) *Meter {
	if now == nil {
		now = time.Now
	}
	return &Meter{alpha: 0.2, now: now, startedAt: now(), lastAt: now()}
}

// AddTotal grows the expected byte total. Totals accrue as machines resolve
// their newest file, so the total is not known up front.
func (m *Meter) AddTotal(n int64) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total += n
}

// Add increments the completed byte count and updates the smoothed rate.
func (m *Meter) Add(n int) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.done += int64(n)
	deltaBytes := m.done - m.lastDone
	deltaTime := now.Sub(m.lastAt).Seconds()
	if deltaTime > 0 {
		inst := float64(deltaBytes) / deltaTime
		if m.rateBps == 0 {
			m.rateBps = inst
		} else {
			m.rateBps = m.alpha*inst + (1-m.alpha)*m.rateBps
		}
		m.lastAt = now
		m.lastDone = m.done
	}
}

// Snapshot returns current progress stats.
func (m *Meter) Snapshot() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := Stats{
		BytesDone: m.done,
		Total:     m.total,
		RateBps:   m.rateBps,
		StartedAt: m.startedAt,
	}
	if m.total > 0 {
		stats.Percent = float64(m.done) / float64(m.total) * 100
	}
	return stats
}
