package gtfsrt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stskit/dispatch/dispatch"
	"github.com/stskit/dispatch/timeutil"
)

func TestDepartedTrainsAreOmitted(t *testing.T) {
	p := New()
	trains := map[int]dispatch.PublishedTrain{
		1: {Zid: 1, DepartedSystem: true},
		2: {Zid: 2, DepartedSystem: false, Rows: []dispatch.PublishedRow{{PlanTrack: "A"}}},
	}
	feed := p.AsGTFS(trains)
	require.Len(t, feed.Entity, 1)
	assert.Equal(t, "2", feed.Entity[0].GetId())
}

func TestStopTimeUpdateCarriesDelayAndUncertainty(t *testing.T) {
	p := New()
	row := dispatch.PublishedRow{
		PlanTrack:          "A",
		EstimatedArrival:   timeutil.SomeMinutes(605),
		ArrivalDelayMin:    5,
		Arrived:            false,
		EstimatedDeparture: timeutil.NoMinutes(),
	}
	trains := map[int]dispatch.PublishedTrain{
		10: {Zid: 10, Rows: []dispatch.PublishedRow{row}},
	}
	feed := p.AsGTFS(trains)
	require.Len(t, feed.Entity, 1)
	stu := feed.Entity[0].TripUpdate.StopTimeUpdate
	require.Len(t, stu, 1)
	require.NotNil(t, stu[0].Arrival)
	assert.EqualValues(t, 300, stu[0].Arrival.GetDelay())
	assert.EqualValues(t, 1, stu[0].Arrival.GetUncertainty())
	assert.Nil(t, stu[0].Departure)
}

func TestConfirmedArrivalHasZeroUncertainty(t *testing.T) {
	p := New()
	row := dispatch.PublishedRow{
		PlanTrack:        "A",
		EstimatedArrival: timeutil.SomeMinutes(605),
		Arrived:          true,
	}
	trains := map[int]dispatch.PublishedTrain{
		10: {Zid: 10, Rows: []dispatch.PublishedRow{row}},
	}
	feed := p.AsGTFS(trains)
	assert.EqualValues(t, 0, feed.Entity[0].TripUpdate.StopTimeUpdate[0].Arrival.GetUncertainty())
}
