package main

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/stskit/dispatch/dispatch"
	"github.com/stskit/dispatch/timeutil"
)

// ingestAndRun loads a JSON snapshot fixture from path, ingests it into a
// fresh engine at the given simulation clock, and hands the engine to fn.
func ingestAndRun(path string, simClockMin int, fn func(*dispatch.Engine)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening fixture")
	}
	defer f.Close()

	var snapshot []dispatch.SnapshotTrain
	if err := json.NewDecoder(f).Decode(&snapshot); err != nil {
		return errors.Wrap(err, "parsing fixture json")
	}

	logger := newLogger()
	engine, _ := buildEngine(logger)
	if err := engine.Ingest(snapshot, timeutil.SomeMinutes(simClockMin)); err != nil {
		return errors.Wrap(err, "ingesting fixture")
	}

	fn(engine)
	return nil
}

func trainsCmd() *cobra.Command {
	var path string
	var simClockMin int

	cmd := &cobra.Command{
		Use:   "trains",
		Short: "Ingest a snapshot fixture and print the resulting train roster",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ingestAndRun(path, simClockMin, printTrainsTable)
		},
	}
	cmd.Flags().StringVar(&path, "fixture", "", "path to a JSON snapshot fixture")
	cmd.Flags().IntVar(&simClockMin, "clock", 0, "simulation clock, in minutes since midnight")
	_ = cmd.MarkFlagRequired("fixture")
	return cmd
}

func correctionsCmd() *cobra.Command {
	var path string
	var simClockMin int

	cmd := &cobra.Command{
		Use:   "corrections",
		Short: "Ingest a snapshot fixture and print every row's active correction",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ingestAndRun(path, simClockMin, printCorrectionsTable)
		},
	}
	cmd.Flags().StringVar(&path, "fixture", "", "path to a JSON snapshot fixture")
	cmd.Flags().IntVar(&simClockMin, "clock", 0, "simulation clock, in minutes since midnight")
	_ = cmd.MarkFlagRequired("fixture")
	return cmd
}

func printTrainsTable(e *dispatch.Engine) {
	published := e.PublishAll()
	zids := make([]int, 0, len(published))
	for zid := range published {
		zids = append(zids, zid)
	}
	sort.Ints(zids)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Zid", "Name", "Origin", "Destination", "Current", "Visible", "Delay"})
	for _, zid := range zids {
		p := published[zid]
		t.AppendRow(table.Row{p.Zid, p.Name, p.Origin, p.Destination, p.CurrentTrack, p.Visible, p.DelayMin})
	}
	t.Render()
}

func printCorrectionsTable(e *dispatch.Engine) {
	published := e.PublishAll()
	zids := make([]int, 0, len(published))
	for zid := range published {
		zids = append(zids, zid)
	}
	sort.Ints(zids)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Zid", "Track", "Kind", "ArrDelay", "DepDelay", "Correction"})
	for _, zid := range zids {
		p := published[zid]
		for _, row := range p.Rows {
			t.AppendRow(table.Row{row.Key.Zid, row.PlanTrack, row.Kind, row.ArrivalDelayMin, row.DepartureDelayMin, row.Correction})
		}
	}
	t.Render()
}
