package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/bryanchriswhite/drawfilter/internal/config"
	"github.com/bryanchriswhite/drawfilter/internal/detection"
	"github.com/bryanchriswhite/drawfilter/internal/filter"
	"github.com/bryanchriswhite/drawfilter/internal/logger"
	"github.com/bryanchriswhite/drawfilter/internal/media"
	"github.com/bryanchriswhite/drawfilter/internal/osd"
	"github.com/bryanchriswhite/drawfilter/internal/output"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Stage is the part of the draw filter the API drives
type Stage interface {
	Control(cmd filter.Command) (filter.Reply, error)
	Stats() filter.Stats
	Config() config.FilterConfig
}

// BatchRequest is the wire form of a detection batch
type BatchRequest struct {
	// Timestamp stamps an empty batch and results without a timestamp;
	// absent means now
	Timestamp *int64             `json:"timestamp,omitempty"`
	Results   []detection.Result `json:"results"`
}

// Server represents the HTTP API server
type Server struct {
	router   *mux.Router
	stage    Stage
	sink     osd.Sink
	hub      *OSDHub
	mjpeg    *output.MJPEGOutput
	upgrader websocket.Upgrader
}

// NewServer creates a new API server. sink is what PUT /api/sink attaches
// to the stage; mjpeg may be nil when the preview is disabled.
func NewServer(stage Stage, sink osd.Sink, hub *OSDHub, mjpeg *output.MJPEGOutput) *Server {
	s := &Server{
		router: mux.NewRouter(),
		stage:  stage,
		sink:   sink,
		hub:    hub,
		mjpeg:  mjpeg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Detector ingest
	api.HandleFunc("/results", s.handlePushResults).Methods("POST")
	api.HandleFunc("/results/ws", s.handleResultsSocket)
	api.HandleFunc("/clock", s.handleClock).Methods("GET")

	// Stage state
	api.HandleFunc("/stats", s.handleStats).Methods("GET")
	api.HandleFunc("/filter", s.handleFilterConfig).Methods("GET")

	// OSD sink control
	api.HandleFunc("/sink", s.handleGetSink).Methods("GET")
	api.HandleFunc("/sink", s.handleSetSink).Methods("PUT")
	api.HandleFunc("/osd/clear", s.handleClearRegion).Methods("POST")
	if s.hub != nil {
		api.Handle("/osd/ws", s.hub)
	}

	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	if s.mjpeg != nil {
		s.router.HandleFunc("/stream", s.mjpeg.GetHTTPHandler())
		api.HandleFunc("/output", s.mjpeg.GetStatsHandler()).Methods("GET")
	}
}

// Handler returns the router wrapped in middleware
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// Start starts the HTTP server
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	logger.WithComponent("api").Info().Str("addr", addr).Msg("Starting HTTP server")
	return http.ListenAndServe(addr, s.Handler())
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// HTTP Handlers

func (s *Server) push(req BatchRequest) (string, error) {
	cmd := filter.PushResultBatch{Results: req.Results}
	if req.Timestamp != nil {
		cmd.Timestamp = *req.Timestamp
		cmd.HasTimestamp = true
	}
	reply, err := s.stage.Control(cmd)
	if err != nil {
		return "", err
	}
	return reply.BatchID, nil
}

func (s *Server) handlePushResults(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	id, err := s.push(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

// handleResultsSocket accepts a stream of BatchRequest JSON messages and
// acknowledges each with the assigned batch id
func (s *Server) handleResultsSocket(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("api")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Results websocket upgrade failed")
		return
	}
	defer conn.Close()

	for {
		var req BatchRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Msg("Results websocket closed")
			}
			return
		}
		id, err := s.push(req)
		if err != nil {
			conn.WriteJSON(map[string]string{"error": err.Error()})
			continue
		}
		if err := conn.WriteJSON(map[string]string{"id": id}); err != nil {
			return
		}
	}
}

func (s *Server) handleClock(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int64{"clock": media.NowMicros()})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"filter": s.stage.Stats(),
	}
	if s.mjpeg != nil {
		resp["output"] = s.mjpeg.Stats()
	}
	if s.hub != nil {
		resp["osd_clients"] = s.hub.Clients()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFilterConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stage.Config())
}

func (s *Server) handleGetSink(w http.ResponseWriter, r *http.Request) {
	reply, err := s.stage.Control(filter.GetSinkHandle{})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"attached": reply.Sink != nil})
}

func (s *Server) handleSetSink(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Attached bool `json:"attached"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var sink osd.Sink
	if req.Attached {
		if s.sink == nil {
			http.Error(w, "No OSD sink configured", http.StatusConflict)
			return
		}
		sink = s.sink
	}
	if _, err := s.stage.Control(filter.SetSinkHandle{Sink: sink}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"attached": req.Attached})
}

func (s *Server) handleClearRegion(w http.ResponseWriter, r *http.Request) {
	_, err := s.stage.Control(filter.ClearRegion{RegionID: s.stage.Config().RegionID})
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, filter.ErrConfig):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusConflict)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"stage":  filter.Name,
	})
}
