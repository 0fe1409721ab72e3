package main

import (
	"os"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/stskit/dispatch/dispatch"
	"github.com/stskit/dispatch/timeutil"
)

// replayRow is one line of a CSV timetable fixture, one row per train per
// planned track, flattening the engine's wire vocabulary into a CSV file.
type replayRow struct {
	Zid         int    `csv:"zid"`
	Name        string `csv:"name"`
	Von         string `csv:"von"`
	Nach        string `csv:"nach"`
	Plan        string `csv:"plan"`
	An          string `csv:"an"`
	Ab          string `csv:"ab"`
	Flags       string `csv:"flags"`
	Sichtbar    bool   `csv:"sichtbar"`
	Amgleis     bool   `csv:"amgleis"`
	Verspaetung int    `csv:"verspaetung"`
	Gleis       string `csv:"gleis"`
	Plangleis   string `csv:"plangleis"`
}

func replayCmd() *cobra.Command {
	var path string
	var simClockMin int

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Ingest a CSV timetable fixture and print the resulting corrections",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(path)
			if err != nil {
				return errors.Wrap(err, "opening fixture")
			}
			defer f.Close()

			var rows []*replayRow
			if err := gocsv.Unmarshal(f, &rows); err != nil {
				return errors.Wrap(err, "parsing fixture csv")
			}

			snapshot := rowsToSnapshot(rows)

			logger := newLogger()
			engine, _ := buildEngine(logger)
			if err := engine.Ingest(snapshot, timeutil.SomeMinutes(simClockMin)); err != nil {
				return errors.Wrap(err, "ingesting fixture")
			}

			printCorrectionsTable(engine)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "fixture", "", "path to a CSV timetable fixture")
	cmd.Flags().IntVar(&simClockMin, "clock", 0, "simulation clock, in minutes since midnight")
	_ = cmd.MarkFlagRequired("fixture")
	return cmd
}

// rowsToSnapshot groups CSV rows by zid into dispatch.SnapshotTrain values,
// preserving row order within each train.
func rowsToSnapshot(rows []*replayRow) []dispatch.SnapshotTrain {
	order := []int{}
	byZid := map[int]*dispatch.SnapshotTrain{}
	for _, r := range rows {
		t, ok := byZid[r.Zid]
		if !ok {
			t = &dispatch.SnapshotTrain{
				Zid: r.Zid, Name: r.Name, Von: r.Von, Nach: r.Nach,
				Sichtbar: r.Sichtbar, Amgleis: r.Amgleis,
				Verspaetung: r.Verspaetung, Gleis: r.Gleis, Plangleis: r.Plangleis,
			}
			byZid[r.Zid] = t
			order = append(order, r.Zid)
		}
		t.Fahrplan = append(t.Fahrplan, dispatch.SnapshotRow{
			Plan: r.Plan, Gleis: r.Gleis, An: parseWireTime(r.An), Ab: parseWireTime(r.Ab), Flags: r.Flags,
		})
	}
	out := make([]dispatch.SnapshotTrain, 0, len(order))
	for _, zid := range order {
		out = append(out, *byZid[zid])
	}
	return out
}

func parseWireTime(s string) *dispatch.WireTime {
	if s == "" {
		return nil
	}
	var w dispatch.WireTime
	if err := w.UnmarshalJSON([]byte(`"` + s + `"`)); err != nil {
		return nil
	}
	return &w
}
