// Package api exposes plan generation, the schedule store and KPIs as JSON over HTTP.
package api

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/p-n-ai/pai-study/internal/adherence"
	"github.com/p-n-ai/pai-study/internal/catalog"
	"github.com/p-n-ai/pai-study/internal/chat"
	"github.com/p-n-ai/pai-study/internal/planner"
	"github.com/p-n-ai/pai-study/internal/schedule"
)

const (
	maxBodyBytes       = 1 << 20
	defaultHorizonDays = 28
)

//go:embed plan_request.schema.json
var planRequestSchema string

// Config holds the collaborators the HTTP handlers use.
type Config struct {
	Sessions    *schedule.Sessions
	Generator   *planner.Generator
	Catalog     *catalog.Loader
	Reports     *adherence.Engine
	WebSocket   *chat.WebSocketChannel // nil disables /ws
	HorizonDays int
	Location    *time.Location
	Now         func() time.Time
	// OnChange is called after a request changed a user's blocks.
	OnChange func(userID string, blocks []planner.StudyBlock)
}

// Server serves the JSON API.
type Server struct {
	cfg        Config
	planSchema *gojsonschema.Schema
}

// New creates the API server.
func New(cfg Config) (*Server, error) {
	if cfg.Sessions == nil || cfg.Generator == nil || cfg.Catalog == nil {
		return nil, fmt.Errorf("api: sessions, generator and catalog are required")
	}
	if cfg.Reports == nil {
		cfg.Reports = adherence.NewEngine()
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = defaultHorizonDays
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(planRequestSchema))
	if err != nil {
		return nil, fmt.Errorf("compiling plan request schema: %w", err)
	}
	return &Server{cfg: cfg, planSchema: schema}, nil
}

// Register mounts the API routes on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/templates", s.handleTemplates)
	mux.HandleFunc("GET /api/disciplines", s.handleDisciplines)
	mux.HandleFunc("POST /api/plan", s.handlePlan)

	mux.HandleFunc("GET /api/users/{userID}/blocks", s.handleListBlocks)
	mux.HandleFunc("POST /api/users/{userID}/blocks", s.handleAddBlock)
	mux.HandleFunc("PUT /api/users/{userID}/blocks/{id}", s.handleUpdateBlock)
	mux.HandleFunc("DELETE /api/users/{userID}/blocks/{id}", s.handleRemoveBlock)
	mux.HandleFunc("POST /api/users/{userID}/blocks/{id}/toggle", s.handleToggle)

	mux.HandleFunc("GET /api/users/{userID}/view", s.handleGetView)
	mux.HandleFunc("PUT /api/users/{userID}/view", s.handleSetView)
	mux.HandleFunc("GET /api/users/{userID}/kpis", s.handleKPIs)
	mux.HandleFunc("GET /api/users/{userID}/progress", s.handleProgress)
	mux.HandleFunc("POST /api/users/{userID}/reset", s.handleReset)
	mux.HandleFunc("GET /api/users/{userID}/ws", s.handleWebSocket)
}

func (s *Server) now() time.Time {
	return s.cfg.Now().In(s.cfg.Location)
}

func (s *Server) changed(st *schedule.Store) {
	if s.cfg.OnChange != nil {
		s.cfg.OnChange(st.UserID(), st.Blocks())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

// writeStoreError maps domain errors to HTTP statuses.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, planner.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, schedule.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, schedule.ErrUserMismatch), errors.Is(err, schedule.ErrStaleData):
		writeError(w, http.StatusConflict, err.Error())
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func readBody(r *http.Request) ([]byte, error) {
	defer func() { _ = r.Body.Close() }()
	return io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
}

func readJSON(r *http.Request, out any) error {
	defer func() { _ = r.Body.Close() }()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

// validatePlanRequest checks body against the plan request schema and returns one
// human-readable line per violation.
func (s *Server) validatePlanRequest(body []byte) ([]string, error) {
	res, err := s.planSchema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, err
	}
	if res.Valid() {
		return nil, nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return msgs, nil
}

func joinProblems(msgs []string) string {
	return "invalid request: " + strings.Join(msgs, "; ")
}
