// Package server exposes the clustering pipeline over HTTP. One POST runs
// the engine on an uploaded adjacency file; finished results are cached by
// content hash and, when a store is configured, persisted by run id for
// later retrieval.
package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/hirecs/hirecs/pkg/cache"
	apperrors "github.com/hirecs/hirecs/pkg/errors"
	"github.com/hirecs/hirecs/pkg/export"
	"github.com/hirecs/hirecs/pkg/hirecs"
	"github.com/hirecs/hirecs/pkg/pipeline"
	"github.com/hirecs/hirecs/pkg/store"
)

// maxBodySize bounds uploaded adjacency files (64 MiB).
const maxBodySize = 64 << 20

// Server handles the HTTP API.
type Server struct {
	logger *log.Logger
	cache  cache.Cache
	store  store.Store
	router chi.Router
}

// New assembles a server. cache and st may be nil, disabling the respective
// capability.
func New(logger *log.Logger, c cache.Cache, st store.Store) *Server {
	if c == nil {
		c = cache.NewNullCache()
	}
	if st == nil {
		st = store.NewNullStore()
	}
	s := &Server{logger: logger, cache: c, store: st}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Get("/healthz", s.handleHealth)
	r.Post("/cluster", s.handleCluster)
	r.Get("/results/{id}", s.handleResult)
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe runs the server on addr until the listener fails.
func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("listening", "addr", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

// logRequests logs each request with its duration.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			"method", r.Method, "path", r.URL.Path, "took", time.Since(start).Round(time.Millisecond))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// clusterResponse is the POST /cluster reply envelope.
type clusterResponse struct {
	ID         string          `json:"id"`
	InputHash  string          `json:"input_hash"`
	CacheHit   bool            `json:"cache_hit"`
	Nodes      int             `json:"nodes,omitempty"`
	Clusters   int             `json:"clusters,omitempty"`
	Roots      int             `json:"roots,omitempty"`
	Modularity float64         `json:"modularity,omitempty"`
	Result     json.RawMessage `json:"result"`
}

// handleCluster runs the pipeline over the request body. Query parameters:
// format (j, je, jd; default je), fast, validate (default 1) and margin.
func (s *Server) handleCluster(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, s.logger, apperrors.Wrap(apperrors.ErrCodeIO, err, "read request body"))
		return
	}
	opts, err := optionsFromQuery(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	opts.Logger = s.logger
	opts.Cache = s.cache

	res, err := pipeline.Execute(r.Context(), body, opts)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	resp := clusterResponse{
		ID:        uuid.NewString(),
		InputHash: res.InputHash,
		CacheHit:  res.CacheHit,
		Result:    json.RawMessage(res.Output),
	}
	if res.Hierarchy != nil {
		resp.Nodes = res.Stats.NodeCount
		resp.Clusters = res.Stats.ClusterCount
		resp.Roots = res.Stats.RootCount
		resp.Modularity = res.Stats.Modularity
		if err := s.store.Put(r.Context(), &store.Result{
			ID:         resp.ID,
			InputHash:  res.InputHash,
			Nodes:      resp.Nodes,
			Clusters:   resp.Clusters,
			Roots:      resp.Roots,
			Modularity: resp.Modularity,
			Payload:    res.Output,
			CreatedAt:  time.Now().UTC(),
		}); err != nil {
			s.logger.Warn("result store write failed", "id", resp.ID, "err", err)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleResult fetches a stored result by run id.
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, ok, err := s.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, s.logger, apperrors.Wrap(apperrors.ErrCodeInternal, err, "result lookup"))
		return
	}
	if !ok {
		writeError(w, s.logger, apperrors.New(apperrors.ErrCodeNotFound, "result %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// optionsFromQuery maps query parameters onto pipeline options. Only the
// JSON formats make sense over the API.
func optionsFromQuery(r *http.Request) (pipeline.Options, error) {
	opts := pipeline.Options{
		Format:   export.FormatJSONExt,
		Validate: true,
		Margin:   hirecs.DefaultModProfitMargin,
	}
	q := r.URL.Query()
	if f := q.Get("format"); f != "" {
		format, err := export.ParseFormat(f)
		if err != nil {
			return opts, err
		}
		switch format {
		case export.FormatJSON, export.FormatJSONExt, export.FormatJSONDetailed:
			opts.Format = format
		default:
			return opts, apperrors.New(apperrors.ErrCodeInvalidFormat,
				"format %q not available over the API (use j, je or jd)", f)
		}
	}
	if v := q.Get("fast"); v != "" {
		opts.Fast = v == "1" || v == "true"
	}
	if v := q.Get("validate"); v != "" {
		opts.Validate = v == "1" || v == "true"
	}
	if v := q.Get("margin"); v != "" {
		m, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return opts, apperrors.Wrap(apperrors.ErrCodeInvalidOption, err, "margin")
		}
		opts.Margin = m
	}
	return opts, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps error codes onto HTTP statuses.
func writeError(w http.ResponseWriter, logger *log.Logger, err error) {
	status := http.StatusInternalServerError
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeNotFound:
		status = http.StatusNotFound
	case apperrors.ErrCodeParse, apperrors.ErrCodeUnknownSection, apperrors.ErrCodeEmptySection,
		apperrors.ErrCodeInvalidInput, apperrors.ErrCodeInvalidOption, apperrors.ErrCodeInvalidFormat,
		apperrors.ErrCodeDuplicateNode, apperrors.ErrCodeUnknownNode, apperrors.ErrCodeAsymmetric,
		apperrors.ErrCodeSelfLink:
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "err", err)
	}
	writeJSON(w, status, map[string]string{
		"error": apperrors.UserMessage(err),
		"code":  string(apperrors.GetCode(err)),
	})
}
