// Package server exposes the validator registry over HTTP: publishing rule
// documents, inspecting validators and evaluating records against them.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/rulegate/rulegate/engine/validator"
	"github.com/rulegate/rulegate/internal/store"
	"github.com/rulegate/rulegate/pkg/ruledef"
)

// Server holds the registry of live validators and, optionally, the
// publication store. With a nil store the server runs in-memory only.
type Server struct {
	log      *zap.Logger
	registry *validator.Registry
	store    *store.Store

	parallel  bool
	prefilter bool

	evaluations atomic.Int64
	matches     atomic.Int64
	rejections  atomic.Int64
}

func New(log *zap.Logger, reg *validator.Registry, st *store.Store, parallel, prefilter bool) *Server {
	return &Server{
		log:       log,
		registry:  reg,
		store:     st,
		parallel:  parallel,
		prefilter: prefilter,
	}
}

// RegisterRoutes wires HTTP handlers.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/v1/stats", s.handleStats)
	mux.HandleFunc("/api/v1/publications", s.handlePublications)
	mux.HandleFunc("/api/v1/validators", s.handleValidators)
	mux.HandleFunc("/api/v1/validators/", s.handleValidator)
}

// Router returns a mux with all routes registered.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

func (s *Server) buildOptions(name string) validator.Options {
	opts := validator.NewOptions(name)
	opts.Parallel = s.parallel
	opts.Prefilter = s.prefilter
	return opts
}

// ---- Handlers ----

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	type statsResp struct {
		Validators  int   `json:"validators"`
		Rules       int   `json:"rules"`
		Evaluations int64 `json:"evaluations"`
		Matches     int64 `json:"matches"`
		Rejections  int64 `json:"rejections"`
	}
	resp := statsResp{
		Evaluations: s.evaluations.Load(),
		Matches:     s.matches.Load(),
		Rejections:  s.rejections.Load(),
	}
	for _, name := range s.registry.Names() {
		if v, ok := s.registry.Lookup(name); ok {
			resp.Validators++
			resp.Rules += len(v.Rules())
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePublications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		writeErr(w, http.StatusNotImplemented, errors.New("persistence is disabled"))
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	pubs, err := s.store.ListPublications(r.Context(), limit)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, pubs)
}

// handleValidators supports GET (list) and POST (publish a YAML stream of
// rule documents).
func (s *Server) handleValidators(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		type entry struct {
			Name  string `json:"name"`
			Rules int    `json:"rules"`
		}
		out := []entry{}
		for _, name := range s.registry.Names() {
			if v, ok := s.registry.Lookup(name); ok {
				out = append(out, entry{Name: name, Rules: len(v.Rules())})
			}
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		s.handlePublish(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 4<<20))
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	docs, err := ruledef.Load(body)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}

	type published struct {
		Name  string `json:"name"`
		Rules int    `json:"rules"`
	}
	out := make([]published, 0, len(docs))
	for _, doc := range docs {
		if _, err := s.registry.Build(doc.Rules, s.buildOptions(doc.Name)); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("document %s: %w", doc.Name, err))
			return
		}
		if s.store != nil {
			// The full stream is stored under each document name; replay
			// filters by name.
			if _, err := s.store.SavePublication(r.Context(), doc.Name, body, len(doc.Rules)); err != nil {
				s.log.Error("save publication", zap.String("name", doc.Name), zap.Error(err))
			}
		}
		v, _ := s.registry.Lookup(doc.Name)
		out = append(out, published{Name: doc.Name, Rules: len(v.Rules())})
		s.log.Info("validator published",
			zap.String("name", doc.Name),
			zap.Int("rules", len(v.Rules())))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleValidator dispatches /api/v1/validators/{name}[/op].
func (s *Server) handleValidator(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/validators/")
	name, op, _ := strings.Cut(rest, "/")
	if name == "" {
		http.NotFound(w, r)
		return
	}

	switch {
	case op == "" && r.Method == http.MethodDelete:
		s.registry.Drop(name)
		writeJSON(w, http.StatusOK, map[string]any{"dropped": name})
	case op == "rules" && r.Method == http.MethodGet:
		s.handleRules(w, r, name)
	case op == "evaluate" && r.Method == http.MethodPost:
		s.handleEvaluate(w, r, name)
	case op == "evaluate-batch" && r.Method == http.MethodPost:
		s.handleEvaluateBatch(w, r, name)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request, name string) {
	v, ok := s.registry.Lookup(name)
	if !ok {
		writeErr(w, http.StatusNotFound, fmt.Errorf("no validator named %q", name))
		return
	}
	writeJSON(w, http.StatusOK, v.Rules())
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request, name string) {
	v, ok := s.registry.Lookup(name)
	if !ok {
		writeErr(w, http.StatusNotFound, fmt.Errorf("no validator named %q", name))
		return
	}
	var record map[string]any
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, s.evaluateOne(v, record))
}

// handleEvaluateBatch accepts a JSON array of records and evaluates each in
// order.
func (s *Server) handleEvaluateBatch(w http.ResponseWriter, r *http.Request, name string) {
	v, ok := s.registry.Lookup(name)
	if !ok {
		writeErr(w, http.StatusNotFound, fmt.Errorf("no validator named %q", name))
		return
	}
	var records []map[string]any
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}
	out := make([]evalResult, 0, len(records))
	for _, rec := range records {
		out = append(out, s.evaluateOne(v, rec))
	}
	writeJSON(w, http.StatusOK, out)
}

type evalResult struct {
	Valid      bool           `json:"valid"`
	Projection map[string]any `json:"projection,omitempty"`
}

func (s *Server) evaluateOne(v *validator.Validator, record map[string]any) evalResult {
	s.evaluations.Add(1)
	projection, ok := v.Evaluate(record)
	if !ok {
		s.rejections.Add(1)
		return evalResult{Valid: false}
	}
	s.matches.Add(1)
	return evalResult{Valid: true, Projection: projection}
}

// ---- Helpers ----

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	// an encode failure here means a half-written response; nothing to do
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]any{"error": err.Error()})
}
