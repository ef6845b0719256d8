// Package web serves the mirrored page and the small API browsers use to keep
// their view of it current.
package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/gmllt/boardmirror/internal/mirror"
)

// Refresher triggers an out-of-band pass; it reports false when one is
// already running.
type Refresher interface {
	Tick(ctx context.Context) bool
}

type Server struct {
	mirror    *mirror.Synchronizer
	refresher Refresher
	hub       *Hub
	selector  string
	staticDir string
	logger    *slog.Logger
}

func NewServer(m *mirror.Synchronizer, refresher Refresher, hub *Hub, selector, staticDir string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		mirror:    m,
		refresher: refresher,
		hub:       hub,
		selector:  selector,
		staticDir: staticDir,
		logger:    logger,
	}
}

type scrollRequest struct {
	ScrollTop int `json:"scrollTop"`
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/", s.handlePage).Methods("GET")
	r.HandleFunc("/board", s.handleBoardFragment).Methods("GET")
	r.HandleFunc("/api/board", s.handleSnapshot).Methods("GET")
	r.HandleFunc("/api/board/refresh", s.handleRefresh).Methods("POST")
	r.HandleFunc("/api/lists/{id}/scroll", s.handleScroll).Methods("PUT")
	r.HandleFunc("/api/events", s.handleEvents).Methods("GET")

	if s.staticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.staticDir)))
	}
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.mirror.Render(&buf); err != nil {
		s.logger.Error("error rendering page", "error", err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleBoardFragment(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.mirror.RenderContainer(&buf, s.selector); err != nil {
		if errors.Is(err, mirror.ErrContainerMissing) {
			http.Error(w, "Board container not found", http.StatusNotFound)
			return
		}
		s.logger.Error("error rendering board", "error", err)
		http.Error(w, "Failed to render board", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	board := s.mirror.Snapshot()
	if board == nil {
		http.Error(w, "Board not loaded yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(board); err != nil {
		s.logger.Error("error encoding board", "error", err)
	}
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		http.Error(w, "Refresh not available", http.StatusNotImplemented)
		return
	}
	if !s.refresher.Tick(r.Context()) {
		http.Error(w, "Refresh already in progress", http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleScroll(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req scrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Debug("error decoding scroll update", "list", id, "error", err)
		http.Error(w, "Invalid scroll payload", http.StatusBadRequest)
		return
	}
	if req.ScrollTop < 0 {
		http.Error(w, "scrollTop must not be negative", http.StatusBadRequest)
		return
	}
	if err := s.mirror.SetScroll(id, req.ScrollTop); err != nil {
		if errors.Is(err, mirror.ErrListNotFound) {
			http.Error(w, "List not found", http.StatusNotFound)
			return
		}
		s.logger.Error("error recording scroll", "list", id, "error", err)
		http.Error(w, "Failed to record scroll", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprint(w, "event: refresh\ndata: {}\n\n")
			flusher.Flush()
		}
	}
}
