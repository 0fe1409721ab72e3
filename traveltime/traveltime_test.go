package traveltime

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnseenSegmentReturnsNaN(t *testing.T) {
	e := New(0)
	got := e.EstimateSeconds("RE1", "A", "B")
	assert.True(t, math.IsNaN(got))
}

func TestObserveThenEstimateAverages(t *testing.T) {
	e := New(0)
	e.Observe("RE1", "A", "B", 100)
	e.Observe("RE1", "A", "B", 200)
	assert.Equal(t, 150.0, e.EstimateSeconds("RE1", "A", "B"))
}

func TestWindowDropsOldestSample(t *testing.T) {
	e := New(2)
	e.Observe("RE1", "A", "B", 100)
	e.Observe("RE1", "A", "B", 200)
	e.Observe("RE1", "A", "B", 300)
	assert.Equal(t, 250.0, e.EstimateSeconds("RE1", "A", "B"))
}

func TestNegativeObservationIgnored(t *testing.T) {
	e := New(0)
	e.Observe("RE1", "A", "B", -5)
	got := e.EstimateSeconds("RE1", "A", "B")
	assert.True(t, math.IsNaN(got))
}

func TestSegmentsAreKeyedByTrainAndDirection(t *testing.T) {
	e := New(0)
	e.Observe("RE1", "A", "B", 100)
	assert.True(t, math.IsNaN(e.EstimateSeconds("RE1", "B", "A")))
	assert.True(t, math.IsNaN(e.EstimateSeconds("RE2", "A", "B")))
}
