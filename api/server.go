// Package api exposes the pose deck's observability surface over HTTP: the
// last-known snapshot, recorded fixes and session statistics, a live SSE
// tail, and a debug trace chart.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/pose.report/internal/frame"
	"github.com/banshee-data/pose.report/internal/pose"
	"github.com/banshee-data/pose.report/internal/posedb"
)

// FixStore is the subset of posedb.DB the server reads from. Nil-able: the
// daemon can run without persistence.
type FixStore interface {
	RecentFixes(limit int) ([]pose.Fix, error)
	Stats() (posedb.SessionStats, error)
}

type Server struct {
	snapshot    *pose.Snapshot
	store       FixStore
	framerStats func() frame.Stats
	tail        *FixStream
}

// NewServer builds the HTTP surface over the snapshot, optional fix store and
// the worker's framer counters.
func NewServer(snapshot *pose.Snapshot, store FixStore, framerStats func() frame.Stats) *Server {
	return &Server{
		snapshot:    snapshot,
		store:       store,
		framerStats: framerStats,
		tail:        NewFixStream(),
	}
}

// Tail returns the fix broadcast stream; register it as a publisher recorder
// to make /api/tail live.
func (s *Server) Tail() *FixStream { return s.tail }

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/pose", s.handlePose)
	mux.HandleFunc("/api/fixes", s.handleFixes)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/chart", s.handleChart)
	mux.HandleFunc("/api/tail", s.handleTail)
	mux.HandleFunc("/", s.homeHandler)
	return mux
}

func (s *Server) homeHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("Welcome to the Pose Deck Server!"))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// handlePose returns the last-known snapshot. The snapshot is best-effort
// diagnostic state: it reflects the most recently validated frame, which is
// not necessarily the most recently received one.
func (s *Server) handlePose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.snapshot.Get())
}

func (s *Server) handleFixes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		http.Error(w, "Fix recording is disabled", http.StatusNotFound)
		return
	}

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil || v < 1 || v > 10000 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = v
	}

	fixes, err := s.store.RecentFixes(limit)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to retrieve fixes: %v", err), http.StatusInternalServerError)
		return
	}
	if fixes == nil {
		fixes = []pose.Fix{}
	}
	writeJSON(w, fixes)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := struct {
		Framer  frame.Stats          `json:"framer"`
		Session *posedb.SessionStats `json:"session,omitempty"`
	}{
		Framer: s.framerStats(),
	}

	if s.store != nil {
		session, err := s.store.Stats()
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to compute stats: %v", err), http.StatusInternalServerError)
			return
		}
		resp.Session = &session
	}
	writeJSON(w, resp)
}

// handleChart renders an HTML line chart of the recent position trace. This
// is a debugging-only endpoint for eyeballing fix quality without a UI.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		http.Error(w, "Fix recording is disabled", http.StatusNotFound)
		return
	}

	fixes, err := s.store.RecentFixes(500)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to retrieve fixes: %v", err), http.StatusInternalServerError)
		return
	}

	// RecentFixes is newest-first; plot oldest-first.
	labels := make([]string, 0, len(fixes))
	xs := make([]opts.LineData, 0, len(fixes))
	ys := make([]opts.LineData, 0, len(fixes))
	zs := make([]opts.LineData, 0, len(fixes))
	for i := len(fixes) - 1; i >= 0; i-- {
		f := fixes[i]
		labels = append(labels, f.Time.Format("15:04:05.000"))
		xs = append(xs, opts.LineData{Value: f.X})
		ys = append(ys, opts.LineData{Value: f.Y})
		zs = append(zs, opts.LineData{Value: f.Z})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "720px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Pose Trace",
			Subtitle: fmt.Sprintf("last %d fixes, rendered %s", len(fixes), time.Now().Format(time.RFC3339)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "position (m)"}),
	)
	line.SetXAxis(labels).
		AddSeries("x", xs).
		AddSeries("y", ys).
		AddSeries("z", zs)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		http.Error(w, fmt.Sprintf("Failed to render chart: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// handleTail streams fixes as Server-Sent Events as they validate.
func (s *Server) handleTail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

	id, c := s.tail.Subscribe()
	defer s.tail.Unsubscribe(id)

	// Send initial ping to establish connection
	w.Write([]byte(": ping\n\n"))
	flusher.Flush()

	for {
		select {
		case fix, ok := <-c:
			if !ok {
				return
			}
			payload, err := json.Marshal(fix)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
