// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/siemens/netprobe/manager"
	"github.com/siemens/netprobe/scan"
	"github.com/siemens/netprobe/store"
	"github.com/siemens/netprobe/types"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/thediveo/lxkns/log"
)

// maxRequestBody limits the size of scan requests.
const maxRequestBody = 1 << 20

// writeWait limits the time for writing a single WebSocket message.
const writeWait = 10 * time.Second

// Server is the HTTP and WebSocket API of netprobe.
type Server struct {
	manager  *manager.Manager
	defaults func(scan.Request) scan.Request
	router   chi.Router
	upgrader websocket.Upgrader
	done     chan struct{}
	close    sync.Once
}

// Option can be passed to New when creating new Server objects.
type Option func(*Server)

// WithRequestDefaults sets a function filling in the unset fields of
// submitted scan requests.
func WithRequestDefaults(fn func(scan.Request) scan.Request) Option {
	return func(s *Server) {
		s.defaults = fn
	}
}

// New returns a new server for the scans of the specified manager.
func New(m *manager.Manager, opts ...Option) *Server {
	s := &Server{
		manager: m,
		router:  chi.NewRouter(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(corsMiddleware)

	r.Options("/api/scan", optionsHandler("POST"))
	r.Options("/api/scan/{id}", optionsHandler("GET, DELETE"))
	r.Options("/api/scans", optionsHandler("GET"))

	r.Get("/health", s.handleHealth)
	r.Post("/api/scan", s.handleSubmit)
	r.Get("/api/scan/{id}", s.handleGet)
	r.Delete("/api/scan/{id}", s.handleCancel)
	r.Get("/api/scans", s.handleList)
	r.Get("/ws", s.handleWS)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "86400")
		next.ServeHTTP(w, r)
	})
}

func optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log.Debugf("%s %s", r.Method, r.URL.Path)
	s.router.ServeHTTP(w, r)
}

// HTTPServer returns an *http.Server for this server, ready to
// ListenAndServe on the specified address.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 15 * time.Second,
	}
}

// Close ends all WebSocket event streams.
func (s *Server) Close() {
	s.close.Do(func() { close(s.done) })
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req scan.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if s.defaults != nil {
		req = s.defaults(req)
	}
	id, err := s.manager.Submit(r.Context(), req)
	if err != nil {
		if errors.Is(err, scan.ErrNoTargets) {
			writeError(w, http.StatusBadRequest, "at least one valid target must be specified in \"targets\"")
			return
		}
		log.Errorf("cannot submit scan: %s", err.Error())
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"scan_id": id})
}

// scanState is the live state of a scan that has not finished successfully.
type scanState struct {
	ScanID    string             `json:"scan_id"`
	Status    types.Status       `json:"status"`
	Targets   string             `json:"targets"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
	Options   *types.Options     `json:"options,omitempty"`
	Hosts     []types.HostResult `json:"hosts"`
	Error     string             `json:"error,omitempty"`
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.manager.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "scan not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rec.Status == types.StatusDone && rec.Result != nil {
		writeJSON(w, http.StatusOK, rec.Result)
		return
	}
	hosts := make([]types.HostResult, 0, len(rec.Hosts))
	for _, host := range rec.Hosts {
		hosts = append(hosts, host)
	}
	sort.SliceStable(hosts, func(i, j int) bool {
		return hosts[i].Timestamp.Before(hosts[j].Timestamp)
	})
	writeJSON(w, http.StatusOK, scanState{
		ScanID:    rec.ID,
		Status:    rec.Status,
		Targets:   rec.Targets,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
		Options:   rec.Options,
		Hosts:     hosts,
		Error:     rec.Error,
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.manager.Cancel(id) {
		writeError(w, http.StatusNotFound, "scan not found or already finished")
		return
	}
	log.Infof("cancelled scan %s on request", id)
	w.WriteHeader(http.StatusNoContent)
}

// scanItem is a scan list entry.
type scanItem struct {
	ID        string        `json:"id"`
	Status    types.Status  `json:"status"`
	Targets   string        `json:"targets"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
	Summary   *store.Totals `json:"summary"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if ls := r.URL.Query().Get("limit"); ls != "" {
		if v, err := strconv.Atoi(ls); err == nil && v > 0 {
			limit = v
		}
	}
	recs, err := s.manager.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	items := make([]scanItem, 0, len(recs))
	for _, rec := range recs {
		item := scanItem{
			ID:        rec.ID,
			Status:    rec.Status,
			Targets:   rec.Targets,
			CreatedAt: rec.CreatedAt,
			UpdatedAt: rec.UpdatedAt,
		}
		if rec.Status.IsTerminal() {
			totals := rec.Summary
			item.Summary = &totals
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, items)
}
