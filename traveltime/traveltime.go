// Package traveltime is a rolling-average running-time oracle for the
// dispatch engine's entry/exit time estimation.
//
// Grounded on planung.py's auswertung.fahrzeit_schaetzen, which keeps a
// per-(train kind, from, to) moving average of observed segment travel
// times and falls back to "unknown" (here, math.NaN()) for a segment it
// has never seen.
package traveltime

import (
	"math"
	"sync"
)

// key identifies one directed track segment for one train kind.
type key struct {
	trainKind string
	from      string
	to        string
}

// Estimator keeps a rolling average of observed segment durations.
// Safe for concurrent use: a snapshot-ingestion goroutine records
// observations while request handlers read estimates.
type Estimator struct {
	mu      sync.RWMutex
	window  int
	samples map[key][]float64
}

// New returns an estimator that averages over the last window
// observations per segment (window <= 0 defaults to 20).
func New(window int) *Estimator {
	if window <= 0 {
		window = 20
	}
	return &Estimator{
		window:  window,
		samples: make(map[key][]float64),
	}
}

// Observe records one realized crossing of fromTrack->toTrack by a train
// of the given kind, taking durationSeconds seconds.
func (e *Estimator) Observe(trainKind, fromTrack, toTrack string, durationSeconds float64) {
	if durationSeconds < 0 {
		return
	}
	k := key{trainKind: trainKind, from: fromTrack, to: toTrack}
	e.mu.Lock()
	defer e.mu.Unlock()
	hist := append(e.samples[k], durationSeconds)
	if len(hist) > e.window {
		hist = hist[len(hist)-e.window:]
	}
	e.samples[k] = hist
}

// EstimateSeconds implements dispatch.TravelTimeEstimator: it returns the
// rolling average duration in seconds for trainName/fromTrack/toTrack, or
// math.NaN() if the segment has never been observed for that train's
// kind. The dispatch engine only ever needs the train's display name as
// the "kind" key; callers wanting finer-grained kinds (e.g. by rolling
// stock class) can key Observe calls accordingly.
func (e *Estimator) EstimateSeconds(trainName, fromTrack, toTrack string) float64 {
	k := key{trainKind: trainName, from: fromTrack, to: toTrack}
	e.mu.RLock()
	defer e.mu.RUnlock()
	hist, ok := e.samples[k]
	if !ok || len(hist) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range hist {
		sum += v
	}
	return sum / float64(len(hist))
}
