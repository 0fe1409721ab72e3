package server

import (
	"sort"
	"sync"
	"time"
)

// Defaults/tuning for realtime KPIs. No
// analog in planung.py beyond what dispatchers read off the timetable by
// eye; this module's own choice of windows.
const (
	onTimeThresholdMin = 5
	snapshotInterval   = 60 * time.Second
	maxSnapshots       = 1440
)

type kpiSnapshot struct {
	ts               time.Time
	punctuality      float64 // % of departed rows within onTimeThresholdMin
	averageDelay     float64 // minutes, over departed rows
	p90Delay         float64 // minutes
	activeTrains     int
	overrideCount    int // rows currently carrying a manual correction
}

type metricsState struct {
	mu        sync.RWMutex
	snapshots []kpiSnapshot
}

var metrics = &metricsState{}

func takeSnapshot() {
	if engine == nil {
		return
	}
	published := engine.PublishAll()

	var delays []float64
	onTime := 0
	total := 0
	overrideCount := 0
	activeTrains := 0
	for _, t := range published {
		if t.Visible && !t.DepartedSystem {
			activeTrains++
		}
		for _, row := range t.Rows {
			if row.Overridden {
				overrideCount++
			}
			if !row.Departed {
				continue
			}
			total++
			d := float64(row.DepartureDelayMin)
			if d < 0 {
				d = -d
			}
			if d <= onTimeThresholdMin {
				onTime++
			}
			delays = append(delays, d)
		}
	}

	punctuality := 0.0
	avgDelay := 0.0
	p90 := 0.0
	if total > 0 {
		punctuality = float64(onTime) * 100.0 / float64(total)
		sum := 0.0
		for _, d := range delays {
			sum += d
		}
		avgDelay = sum / float64(len(delays))
		sorted := append([]float64{}, delays...)
		sort.Float64s(sorted)
		idx := int(0.9*float64(len(sorted)-1) + 0.5)
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sorted) {
			idx = len(sorted) - 1
		}
		p90 = sorted[idx]
	}

	snap := kpiSnapshot{
		ts:            time.Now().UTC(),
		punctuality:   punctuality,
		averageDelay:  avgDelay,
		p90Delay:      p90,
		activeTrains:  activeTrains,
		overrideCount: overrideCount,
	}

	metrics.mu.Lock()
	metrics.snapshots = append(metrics.snapshots, snap)
	if len(metrics.snapshots) > maxSnapshots {
		metrics.snapshots = metrics.snapshots[len(metrics.snapshots)-maxSnapshots:]
	}
	metrics.mu.Unlock()
}

func startMetricsTicker() {
	go func() {
		ticker := time.NewTicker(snapshotInterval)
		for range ticker.C {
			takeSnapshot()
		}
	}()
}

// aggregateKPIs averages every snapshot within rangeDur and, where at
// least 10 snapshots exist, returns a trend comparing the most recent 10%
// of snapshots against the 10% before that.
func aggregateKPIs(rangeDur time.Duration) (kpiSnapshot, kpiSnapshot) {
	metrics.mu.RLock()
	defer metrics.mu.RUnlock()
	if len(metrics.snapshots) == 0 {
		return kpiSnapshot{ts: time.Now().UTC()}, kpiSnapshot{}
	}
	cutoff := time.Now().UTC().Add(-rangeDur)
	var agg kpiSnapshot
	count := 0
	for _, s := range metrics.snapshots {
		if s.ts.Before(cutoff) {
			continue
		}
		agg.punctuality += s.punctuality
		agg.averageDelay += s.averageDelay
		agg.p90Delay += s.p90Delay
		agg.activeTrains += s.activeTrains
		agg.overrideCount += s.overrideCount
		count++
	}
	if count > 0 {
		agg.punctuality /= float64(count)
		agg.averageDelay /= float64(count)
		agg.p90Delay /= float64(count)
		agg.activeTrains /= count
		agg.overrideCount /= count
	}
	if len(metrics.snapshots) < 10 {
		return agg, kpiSnapshot{}
	}
	n := len(metrics.snapshots)
	w := n / 10
	if w < 1 {
		w = 1
	}
	cur := averageSlice(metrics.snapshots[n-w:])
	prev := averageSlice(metrics.snapshots[maxInt(0, n-2*w):n-w])
	trend := kpiSnapshot{
		punctuality:   cur.punctuality - prev.punctuality,
		averageDelay:  cur.averageDelay - prev.averageDelay,
		p90Delay:      cur.p90Delay - prev.p90Delay,
		activeTrains:  cur.activeTrains - prev.activeTrains,
		overrideCount: cur.overrideCount - prev.overrideCount,
	}
	return agg, trend
}

func averageSlice(ss []kpiSnapshot) kpiSnapshot {
	var a kpiSnapshot
	if len(ss) == 0 {
		return a
	}
	for _, s := range ss {
		a.punctuality += s.punctuality
		a.averageDelay += s.averageDelay
		a.p90Delay += s.p90Delay
		a.activeTrains += s.activeTrains
		a.overrideCount += s.overrideCount
	}
	a.punctuality /= float64(len(ss))
	a.averageDelay /= float64(len(ss))
	a.p90Delay /= float64(len(ss))
	a.activeTrains /= len(ss)
	a.overrideCount /= len(ss)
	return a
}

func trendDirection(v float64) string {
	if v >= 0 {
		return "UP"
	}
	return "DOWN"
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
