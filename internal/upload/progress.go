package upload

import (
	"context"
	"time"
)

// Timings controls the synthetic progress and the delays of the machine.
// Zero fields take the defaults.
type Timings struct {
	EstimatorInterval time.Duration
	EstimatorStep     int
	EstimatorCap      int
	SettleDelay       time.Duration
	FallbackDelay     time.Duration
	DemoInterval      time.Duration
	DemoStep          int
}

// DefaultTimings returns the production timings.
func DefaultTimings() Timings {
	return Timings{
		EstimatorInterval: 300 * time.Millisecond,
		EstimatorStep:     5,
		EstimatorCap:      90,
		SettleDelay:       2 * time.Second,
		FallbackDelay:     3 * time.Second,
		DemoInterval:      150 * time.Millisecond,
		DemoStep:          10,
	}
}

func (t Timings) withDefaults() Timings {
	d := DefaultTimings()
	if t.EstimatorInterval > 0 {
		d.EstimatorInterval = t.EstimatorInterval
	}
	if t.EstimatorStep > 0 {
		d.EstimatorStep = t.EstimatorStep
	}
	if t.EstimatorCap > 0 && t.EstimatorCap < 100 {
		d.EstimatorCap = t.EstimatorCap
	}
	if t.SettleDelay > 0 {
		d.SettleDelay = t.SettleDelay
	}
	if t.FallbackDelay > 0 {
		d.FallbackDelay = t.FallbackDelay
	}
	if t.DemoInterval > 0 {
		d.DemoInterval = t.DemoInterval
	}
	if t.DemoStep > 0 {
		d.DemoStep = t.DemoStep
	}
	return d
}

// estimate nudges progress while the payload is in flight. The PUT gives
// no byte-level feedback, so progress creeps toward the cap and jumps to
// 100 when the store answers. It exits when ctx is cancelled, which the
// payload step does before any transition out of the phase.
func (m *Machine) estimate(ctx context.Context, id string) {
	ticker := time.NewTicker(m.timings.EstimatorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		m.mu.Lock()
		if !m.currentLocked(id) || m.phase != PhaseTransferring {
			m.mu.Unlock()
			return
		}
		if m.progress < m.timings.EstimatorCap {
			m.progress = min(m.progress+m.timings.EstimatorStep, m.timings.EstimatorCap)
			m.publishLocked()
		}
		m.mu.Unlock()
	}
}
