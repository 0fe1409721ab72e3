package dispatch

import (
	"strconv"
	"strings"
	"time"
)

// SnapshotTrain is the simulator roster entry for one train.
// Field names mirror the simulator's own wire vocabulary, the way the
// teacher's simulation package keeps simulator-facing names on its wire
// structs.
type SnapshotTrain struct {
	Zid         int           `json:"zid"`
	Name        string        `json:"name"`
	Von         string        `json:"von"`
	Nach        string        `json:"nach"`
	Hinweistext string        `json:"hinweistext"`
	Sichtbar    bool          `json:"sichtbar"`
	Amgleis     bool          `json:"amgleis"`
	Verspaetung int           `json:"verspaetung"`
	Gleis       string        `json:"gleis"`
	Plangleis   string        `json:"plangleis"`
	Fahrplan    []SnapshotRow `json:"fahrplan"`
}

// SnapshotRow is one timetable line as delivered by the simulator.
type SnapshotRow struct {
	Plan        string    `json:"plan"`
	Gleis       string    `json:"gleis"`
	An          *WireTime `json:"an,omitempty"`
	Ab          *WireTime `json:"ab,omitempty"`
	Flags       string    `json:"flags"`
	Hinweistext string    `json:"hinweistext"`
}

// WireTime is a time-of-day as sent by the simulator ("HH:MM:SS"), which
// may legitimately be absent (entry/exit rows before the oracle has filled
// them in).
type WireTime struct {
	time.Time
}

func (w WireTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + w.Format("15:04:05") + `"`), nil
}

func (w *WireTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		return err
	}
	w.Time = t
	return nil
}

// Event is a realized simulator event.
type Event struct {
	Art         EventKind `json:"art"`
	Zid         int       `json:"zid"`
	Plangleis   string    `json:"plangleis"`
	Zeit        time.Time `json:"zeit"`
	Verspaetung int       `json:"verspaetung"`
	Amgleis     bool      `json:"amgleis"`
}

// EventKind enumerates the realized simulator event types.
type EventKind string

const (
	EventEntry       EventKind = "einfahrt"
	EventArrival     EventKind = "ankunft"
	EventDeparture   EventKind = "abfahrt"
	EventExit        EventKind = "ausfahrt"
	EventRedSignal   EventKind = "rothalt"
	EventGreenSignal EventKind = "wurdegruen"
)

// flagSet is the parsed form of a row's raw flags string. Tokens are
// comma-separated; "E:<zid>", "K:<zid>" and "S:<zid>" name a
// replacement/coupling/split peer train, and the bare tokens R, LU, LW, D
// mark direction-reversal, loco-move, loco-change and pass-through
// respectively. This tokenization is this module's own concrete choice
// for the otherwise-unspecified wire sub-language (the stskit original's
// flag grammar was not part of the retrieved source).
type flagSet struct {
	ReplacementZid    *int
	CouplingZid       *int
	SplitZid          *int
	DirectionReversal bool
	LocoMove          bool
	LocoChange        bool
	PassThrough       bool
}

func parseFlags(raw string) flagSet {
	var fs flagSet
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		switch {
		case strings.HasPrefix(tok, "E:"):
			if zid, err := strconv.Atoi(tok[2:]); err == nil {
				fs.ReplacementZid = &zid
			}
		case strings.HasPrefix(tok, "K:"):
			if zid, err := strconv.Atoi(tok[2:]); err == nil {
				fs.CouplingZid = &zid
			}
		case strings.HasPrefix(tok, "S:"):
			if zid, err := strconv.Atoi(tok[2:]); err == nil {
				fs.SplitZid = &zid
			}
		case tok == "R":
			fs.DirectionReversal = true
		case tok == "LU":
			fs.LocoMove = true
		case tok == "LW":
			fs.LocoChange = true
		case tok == "D":
			fs.PassThrough = true
		}
	}
	return fs
}
