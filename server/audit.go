package server

import (
	"strconv"
	"sync"
	"time"

	"github.com/stskit/dispatch/dispatch"
)

// AuditEntry represents a single audit log item sent to FE
type AuditEntry struct {
	ID        string                 `json:"id"`
	Timestamp string                 `json:"timestamp"`
	Event     string                 `json:"event"`
	Category  string                 `json:"category"`
	Severity  string                 `json:"severity"`
	Object    map[string]interface{} `json:"object"`
	Details   map[string]interface{} `json:"details"`
}

type auditState struct {
	mu          sync.RWMutex
	entries     []AuditEntry
	capacity    int
	nextID      int64
	subscribers map[chan AuditEntry]bool
}

var audits = &auditState{}

func init() {
	// default capacity for audit ring buffer
	audits.capacity = 1000
	audits.entries = make([]AuditEntry, 0, audits.capacity)
	audits.subscribers = make(map[chan AuditEntry]bool)
}

func (a *auditState) append(entry AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	// assign ID and timestamp if missing
	a.nextID++
	entry.ID = strconv.FormatInt(a.nextID, 10)
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	if len(a.entries) == a.capacity {
		// drop the oldest (ring buffer behavior)
		copy(a.entries[0:], a.entries[1:])
		a.entries[len(a.entries)-1] = entry
	} else {
		a.entries = append(a.entries, entry)
	}
	// broadcast non-blocking to subscribers
	for ch := range a.subscribers {
		select {
		case ch <- entry:
		default:
			// drop if subscriber is slow
		}
	}
}

func (a *auditState) subscribe() chan AuditEntry {
	ch := make(chan AuditEntry, 256)
	a.mu.Lock()
	a.subscribers[ch] = true
	a.mu.Unlock()
	return ch
}

func (a *auditState) unsubscribe(ch chan AuditEntry) {
	a.mu.Lock()
	delete(a.subscribers, ch)
	a.mu.Unlock()
	close(ch)
}

// getSince returns up to limit entries with ID strictly greater than sinceID
func (a *auditState) getSince(sinceID int64, limit int) []AuditEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]AuditEntry, 0, limit)
	for i := 0; i < len(a.entries); i++ {
		id, _ := strconv.ParseInt(a.entries[i].ID, 10, 64)
		if id > sinceID {
			out = append(out, a.entries[i])
			if len(out) >= limit {
				break
			}
		}
	}
	return out
}

// recordOverrideAudit logs a dispatcher-applied manual correction, tagged
// with the correlation ID returned to the client that set it.
func recordOverrideAudit(correlationID string, row dispatch.RowKey, corr dispatch.Correction) {
	audits.append(AuditEntry{
		Event:    "OVERRIDE_SET",
		Category: "override",
		Severity: "INFO",
		Object: map[string]interface{}{
			"zid":       row.Zid,
			"seqNo":     row.SeqNo,
			"planTrack": row.PlanTrack,
		},
		Details: map[string]interface{}{
			"correlationId": correlationID,
			"correction":    corr.String(),
		},
	})
}

// recordIngestAudit logs a completed snapshot ingestion.
func recordIngestAudit(simClockMin int, trainCount int) {
	audits.append(AuditEntry{
		Event:    "SNAPSHOT_INGESTED",
		Category: "engine",
		Severity: "INFO",
		Object:   map[string]interface{}{},
		Details: map[string]interface{}{
			"simClockMin": simClockMin,
			"trainCount":  trainCount,
		},
	})
}

// recordEventAudit logs a realized simulator event folded into the engine.
func recordEventAudit(ev dispatch.Event) {
	audits.append(AuditEntry{
		Event:    "EVENT_APPLIED",
		Category: "engine",
		Severity: "INFO",
		Object: map[string]interface{}{
			"zid":       ev.Zid,
			"planTrack": ev.Plangleis,
		},
		Details: map[string]interface{}{
			"art":         string(ev.Art),
			"verspaetung": ev.Verspaetung,
		},
	})
}


