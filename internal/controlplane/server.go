package controlplane

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/fentz26/prodtrack/internal/events"
	"github.com/fentz26/prodtrack/internal/models"
)

const (
	maxBodyBytes      = 1 << 20
	streamBuffer      = 64
	heartbeatInterval = 15 * time.Second
)

// ServerOptions configures a Server.
type ServerOptions struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// Bus feeds /events/stream. The endpoint answers 503 without it.
	Bus     *events.Bus
	Logger  *slog.Logger
	Version string
}

// Server provides the HTTP API for prodtrack.
type Server struct {
	service *Service
	opts    ServerOptions
	logger  *slog.Logger
	server  *http.Server

	// closing ends open event streams so Shutdown does not wait on them.
	closing   chan struct{}
	closeOnce sync.Once
}

// NewServer creates a new HTTP server.
func NewServer(service *Service, opts ServerOptions) *Server {
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 10 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{service: service, opts: opts, logger: logger, closing: make(chan struct{})}
	s.server = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}
	return s
}

// Handler returns the routed API with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	// Projects and entities
	mux.HandleFunc("POST /projects", s.createProject)
	mux.HandleFunc("GET /projects", s.listProjects)
	mux.HandleFunc("GET /projects/{id}", s.getProject)
	mux.HandleFunc("PATCH /projects/{id}", s.updateProject)
	mux.HandleFunc("POST /projects/{id}/entities", s.createEntity)
	mux.HandleFunc("GET /projects/{id}/entities", s.listEntities)
	mux.HandleFunc("POST /projects/{id}/guess-task", s.guessTask)
	mux.HandleFunc("GET /entities/{id}", s.getEntity)

	// Catalog
	mux.HandleFunc("POST /asset-types", s.createAssetType)
	mux.HandleFunc("GET /asset-types", s.listAssetTypes)
	mux.HandleFunc("POST /departments", s.createDepartment)
	mux.HandleFunc("GET /departments", s.listDepartments)
	mux.HandleFunc("POST /task-types", s.createTaskType)
	mux.HandleFunc("GET /task-types", s.listTaskTypes)
	mux.HandleFunc("POST /persons", s.createPerson)
	mux.HandleFunc("GET /persons", s.listPersons)

	// Tasks
	mux.HandleFunc("POST /tasks", s.createTask)
	mux.HandleFunc("GET /tasks", s.listTasks)
	mux.HandleFunc("GET /tasks/{id}", s.getTask)
	mux.HandleFunc("GET /tasks/{id}/path", s.taskPath)
	mux.HandleFunc("POST /tasks/{id}/{op}", s.transitionTask)

	// File trees
	mux.HandleFunc("GET /file-trees", s.listFileTrees)
	mux.HandleFunc("GET /file-trees/{name}", s.getFileTree)

	// Events
	mux.HandleFunc("GET /events", s.listEvents)
	mux.HandleFunc("GET /events/stream", s.streamEvents)

	return s.logRequests(mux)
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info("starting prodtrack daemon", "addr", s.opts.Addr)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.closing) })
	return s.server.Shutdown(ctx)
}

// --- Health ---

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	OK      bool      `json:"ok"`
	DB      string    `json:"db"`
	Version string    `json:"version,omitempty"`
	Time    time.Time `json:"time"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{OK: true, DB: "ok", Version: s.opts.Version, Time: time.Now().UTC()}
	status := http.StatusOK
	if err := s.service.Ping(r.Context()); err != nil {
		s.logger.Error("health check failed", "error", err)
		resp.OK = false
		resp.DB = err.Error()
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// --- Event stream ---

// streamEvents sends committed events as server-sent events.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	if s.opts.Bus == nil {
		http.Error(w, "event stream disabled", http.StatusServiceUnavailable)
		return
	}
	rc := http.NewResponseController(w)
	// The stream outlives the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	ch, cancel := s.opts.Bus.Subscribe(streamBuffer)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return
	}

	project := r.URL.Query().Get("project_id")
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.closing:
			return
		case <-heartbeat.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if project != "" && ev.ProjectID != project {
				continue
			}
			if err := writeSSE(w, ev); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeSSE(w io.Writer, ev models.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID, ev.Name, data)
	return err
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: ErrorKind(err)})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, r, invalid("body", "invalid json: %v", err))
		return false
	}
	return true
}

// nonNil keeps empty lists encoded as [] instead of null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
