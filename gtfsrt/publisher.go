// Package gtfsrt renders the dispatch engine's published state as a
// GTFS-Realtime TripUpdate feed.
//
// Grounded on kasmar00-gtfs-polish-trains's realtime/fact package: a
// Container of typed facts with an AsGTFS() method producing
// *gtfs.FeedMessage, marshaled via protobuf. This package plays the same
// role, built directly off dispatch.PublishedTrain/PublishedRow instead of
// that teacher's own fact types.
package gtfsrt

import (
	"strconv"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/stskit/dispatch/dispatch"
	"github.com/stskit/dispatch/timeutil"
)

// Publisher renders engine snapshots into GTFS-Realtime feed messages.
type Publisher struct {
	// FeedVersion is reported in every FeedHeader.
	FeedVersion string
}

// New returns a Publisher for GTFS-Realtime version 2.0.
func New() *Publisher {
	return &Publisher{FeedVersion: "2.0"}
}

// Marshal renders trains as a protobuf-encoded GTFS-Realtime FeedMessage.
func (p *Publisher) Marshal(trains map[int]dispatch.PublishedTrain) ([]byte, error) {
	return proto.Marshal(p.AsGTFS(trains))
}

// AsGTFS renders trains as a GTFS-Realtime FeedMessage, one TripUpdate
// entity per train with dispatch corrections still pending (already
// departed-from-system trains are omitted, mirroring a real feed dropping
// trips once they've completed).
func (p *Publisher) AsGTFS(trains map[int]dispatch.PublishedTrain) *gtfs.FeedMessage {
	now := time.Now().UTC()
	g := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: ptr(p.FeedVersion),
			Timestamp:           ptr(uint64(now.Unix())),
		},
	}
	g.Entity = make([]*gtfs.FeedEntity, 0, len(trains))
	for _, t := range trains {
		if t.DepartedSystem {
			continue
		}
		g.Entity = append(g.Entity, tripUpdateFor(t, now))
	}
	return g
}

func tripUpdateFor(t dispatch.PublishedTrain, now time.Time) *gtfs.FeedEntity {
	e := new(gtfs.FeedEntity)
	e.Id = ptr(strconv.Itoa(t.Zid))
	e.TripUpdate = new(gtfs.TripUpdate)
	e.TripUpdate.Trip = &gtfs.TripDescriptor{
		TripId:               ptr(strconv.Itoa(t.Zid)),
		ScheduleRelationship: ptr(gtfs.TripDescriptor_SCHEDULED),
	}
	e.TripUpdate.StopTimeUpdate = make([]*gtfs.TripUpdate_StopTimeUpdate, 0, len(t.Rows))
	for _, row := range t.Rows {
		e.TripUpdate.StopTimeUpdate = append(e.TripUpdate.StopTimeUpdate, stopTimeUpdateFor(row, now))
	}
	return e
}

func stopTimeUpdateFor(row dispatch.PublishedRow, now time.Time) *gtfs.TripUpdate_StopTimeUpdate {
	g := new(gtfs.TripUpdate_StopTimeUpdate)
	g.StopId = ptr(row.PlanTrack)
	if ts := minutesToUnix(row.EstimatedArrival, now); ts != nil {
		g.Arrival = &gtfs.TripUpdate_StopTimeEvent{
			Time:        ts,
			Delay:       ptr(int32(row.ArrivalDelayMin * 60)),
			Uncertainty: ptr(arrivalUncertainty(row)),
		}
	}
	if ts := minutesToUnix(row.EstimatedDeparture, now); ts != nil {
		g.Departure = &gtfs.TripUpdate_StopTimeEvent{
			Time:        ts,
			Delay:       ptr(int32(row.DepartureDelayMin * 60)),
			Uncertainty: ptr(departureUncertainty(row)),
		}
	}
	return g
}

// arrivalUncertainty and departureUncertainty report 0 (confirmed) once a
// row has actually arrived/departed, else 1 (a propagated estimate).
func arrivalUncertainty(row dispatch.PublishedRow) int32 {
	if row.Arrived {
		return 0
	}
	return 1
}

func departureUncertainty(row dispatch.PublishedRow) int32 {
	if row.Departed {
		return 0
	}
	return 1
}

// minutesToUnix anchors an absent-or-present minutes-since-midnight value
// to today's date in UTC, returning nil for absence.
func minutesToUnix(m timeutil.Minutes, now time.Time) *int64 {
	if !m.Ok {
		return nil
	}
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	ts := midnight.Add(time.Duration(m.Value) * time.Minute).Unix()
	return &ts
}

func ptr[T any](v T) *T { return &v }
