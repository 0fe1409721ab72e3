package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// GET /api/trains - every currently-published train
func serveTrains(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if engine == nil {
		http.Error(w, "Engine not initialized", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(engine.PublishAll())
}

// GET /api/trains/{zid} - one published train
func serveTrainByZid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	zidStr := strings.TrimPrefix(r.URL.Path, "/api/trains/")
	zid, err := strconv.Atoi(zidStr)
	if err != nil {
		http.Error(w, "Bad zid", http.StatusBadRequest)
		return
	}
	t, ok := engine.PublishTrain(zid)
	if !ok {
		http.Error(w, "TRAIN_NOT_FOUND", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(t)
}

// GET /api/systems/overview - coarse engine status for a dashboard
func serveSystemOverview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if engine == nil {
		http.Error(w, "Engine not initialized", http.StatusServiceUnavailable)
		return
	}
	published := engine.PublishAll()
	visible, departed := 0, 0
	for _, t := range published {
		if t.Visible {
			visible++
		}
		if t.DepartedSystem {
			departed++
		}
	}
	resp := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"trains": map[string]int{
			"total":    len(published),
			"visible":  visible,
			"departed": departed,
		},
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(resp)
}

// GET /api/gtfs-rt - current GTFS-Realtime TripUpdate feed, protobuf-encoded
func serveGTFSRealtime(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if publisher == nil {
		http.Error(w, "GTFS-Realtime publishing disabled", http.StatusServiceUnavailable)
		return
	}
	data, err := publisher.Marshal(engine.PublishAll())
	if err != nil {
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/x-protobuf")
	_, _ = w.Write(data)
}

func installHTTPAPI() {
	http.HandleFunc("/api/trains", serveTrains)
	http.HandleFunc("/api/trains/", serveTrainByZid)
	http.HandleFunc("/api/systems/overview", serveSystemOverview)
	http.HandleFunc("/api/gtfs-rt", serveGTFSRealtime)
	http.HandleFunc("/api/analytics/kpis", serveKPI)
	http.HandleFunc("/api/analytics/historical", serveKPIHistorical)
	http.HandleFunc("/api/audit/logs", serveAuditLogs)
	http.HandleFunc("/api/audit/stream", serveAuditStream)
}
