// Package api serves the current result set of a discovery session over HTTP
// for a polling presentation layer.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/bugmaschine/vidsniff/internal/discovery"
	"github.com/bugmaschine/vidsniff/pkg/download"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
)

// Detector is the part of a discovery session the API drives.
type Detector interface {
	ID() string
	State() discovery.State
	Videos() []discovery.Record
	LastReport() (discovery.Report, bool)
	StartDetection(ctx context.Context) discovery.Report
	Refresh(ctx context.Context) discovery.Report
}

// Downloads accepts download requests and reports on them.
type Downloads interface {
	Submit(t discovery.Transfer) (download.Status, error)
	Tracker() *download.Tracker
}

type Server struct {
	detector  Detector
	downloads Downloads
	router    *mux.Router
}

// New builds the router. downloads may be nil, the download routes are left
// out then.
func New(detector Detector, downloads Downloads) *Server {
	s := &Server{detector: detector, downloads: downloads}
	s.router = s.setupRouter()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter() *mux.Router {
	r := mux.NewRouter()
	r.Use(metricsMiddleware)

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.getStatus).Methods("GET")
	api.HandleFunc("/videos", s.listVideos).Methods("GET")
	api.HandleFunc("/videos/{id:[0-9]+}", s.getVideo).Methods("GET")
	api.HandleFunc("/detect", s.detect).Methods("POST")
	api.HandleFunc("/refresh", s.refresh).Methods("POST")

	if s.downloads != nil {
		api.HandleFunc("/downloads", s.listDownloads).Methods("GET")
		api.HandleFunc("/downloads", s.startDownloads).Methods("POST")
		api.HandleFunc("/downloads/{id:[0-9]+}", s.getDownload).Methods("GET")
	}

	return r
}

type statusResponse struct {
	SessionID string          `json:"sessionId"`
	State     string          `json:"state"`
	Videos    int             `json:"videos"`
	LastScan  *reportResponse `json:"lastScan,omitempty"`
}

type reportResponse struct {
	Reason     discovery.Reason `json:"reason"`
	Videos     int              `json:"videos"`
	Candidates int              `json:"candidates"`
	PerScanner map[string]int   `json:"perScanner,omitempty"`
	Failed     []string         `json:"failed,omitempty"`
	Error      string           `json:"error,omitempty"`
	ElapsedMs  int64            `json:"elapsedMs"`
}

func newReportResponse(r discovery.Report) reportResponse {
	resp := reportResponse{
		Reason:     r.Reason,
		Videos:     r.Videos,
		Candidates: r.Candidates,
		PerScanner: r.PerScanner,
		Failed:     r.Failed,
		ElapsedMs:  r.Elapsed.Milliseconds(),
	}
	if r.Err != nil {
		resp.Error = r.Err.Error()
	}
	return resp
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		SessionID: s.detector.ID(),
		State:     s.detector.State().String(),
		Videos:    len(s.detector.Videos()),
	}
	if report, ok := s.detector.LastReport(); ok {
		rr := newReportResponse(report)
		resp.LastScan = &rr
	}
	writeJSON(w, resp)
}

func (s *Server) listVideos(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, discovery.Transfers(s.detector.Videos()))
}

func (s *Server) getVideo(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, found := s.findVideo(id)
	if !found {
		writeJSONError(w, "video not found", http.StatusNotFound)
		return
	}
	writeJSON(w, rec.Transfer())
}

func (s *Server) detect(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, newReportResponse(s.detector.StartDetection(r.Context())))
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, newReportResponse(s.detector.Refresh(r.Context())))
}

type downloadRequest struct {
	IDs []int64 `json:"ids"`
}

// downloadResult answers one requested video id. Status carries the download
// id that GET /api/downloads/{id} takes.
type downloadResult struct {
	ID     int64            `json:"id"`
	Status *download.Status `json:"status,omitempty"`
	Error  string           `json:"error,omitempty"`
}

func (s *Server) startDownloads(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.IDs) == 0 {
		writeJSONError(w, "no video ids given", http.StatusBadRequest)
		return
	}

	results := make([]downloadResult, 0, len(req.IDs))
	accepted := 0
	for _, id := range lo.Uniq(req.IDs) {
		res := downloadResult{ID: id}
		rec, found := s.findVideo(id)
		if !found {
			res.Error = "video not found"
			results = append(results, res)
			continue
		}

		status, err := s.downloads.Submit(rec.Transfer())
		if err != nil {
			res.Error = err.Error()
		} else {
			res.Status = &status
			accepted++
		}
		results = append(results, res)
	}

	code := http.StatusAccepted
	if accepted == 0 {
		code = http.StatusUnprocessableEntity
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, results)
}

func (s *Server) listDownloads(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.downloads.Tracker().All())
}

func (s *Server) getDownload(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	status, found := s.downloads.Tracker().Get(id)
	if !found {
		writeJSONError(w, "download not found", http.StatusNotFound)
		return
	}
	writeJSON(w, status)
}

func (s *Server) findVideo(id int64) (discovery.Record, bool) {
	return lo.Find(s.detector.Videos(), func(rec discovery.Record) bool { return rec.ID == id })
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSONError(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// writeJSON encodes v as JSON. Encoding errors are only logged, the status
// line is already out by then.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, map[string]string{"error": message})
}
