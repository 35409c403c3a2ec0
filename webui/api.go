package webui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"rawdevelop/db"
	"rawdevelop/logging"
	"rawdevelop/metrics"
	"rawdevelop/orchestrator"
	"rawdevelop/params"
	"rawdevelop/pipeline"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// Controller is the orchestrator surface the API drives.
// *orchestrator.Orchestrator implements it.
type Controller interface {
	StateSource
	OpenFile(path string) (uint64, error)
	UpdateParams(ps params.ParameterSet) (uint64, error)
	UpdateParamsWith(fn func(params.ParameterSet) (params.ParameterSet, error)) (uint64, error)
	ResetToDefaults() (uint64, error)
	CurrentState() orchestrator.State
	History(n int) []orchestrator.Record
	ExportCurrentAsEncoded(path string, quality float64) error
}

// RunStore answers queries over persisted render runs. *db.Store
// implements it.
type RunStore interface {
	Runs(ctx context.Context, f db.RunFilter) ([]db.RunRecord, error)
	Summary(ctx context.Context) ([]db.OutcomeSummary, error)
}

// APIConfig configures the API handlers.
type APIConfig struct {
	// PreviewMaxEdge bounds the longer edge of /api/preview.jpg.
	PreviewMaxEdge int

	// ExportDir is where relative export paths are resolved.
	ExportDir string

	// Quality is used for image endpoints and exports that name none.
	Quality float64

	// DefaultLimit and MaxLimit bound /api/history.
	DefaultLimit int
	MaxLimit     int

	// Runs backs /api/runs. Nil disables the endpoint.
	Runs RunStore

	// Metrics backs /api/metrics. Nil disables the endpoint.
	Metrics metrics.Collector
}

// API serves the JSON and image endpoints.
//
// Endpoints:
// - POST /api/open         - open a file and render it with defaults
// - PUT  /api/params       - merge parameters into the current set and re-render
// - POST /api/reset        - re-render with the default parameters
// - GET  /api/state        - current state snapshot
// - GET  /api/image.jpg    - last rendered image, full size
// - GET  /api/preview.jpg  - last rendered image, scaled down
// - POST /api/export       - write the last rendered image to disk
// - GET  /api/history      - recent runs (limit param)
// - GET  /api/runs         - persisted runs (limit, path, outcome, source, since)
// - GET  /api/metrics      - render statistics since the server started
type API struct {
	ctrl   Controller
	config APIConfig
	logger *logging.Logger
}

// NewAPI returns an API over ctrl.
func NewAPI(ctrl Controller, config APIConfig, logger *logging.Logger) *API {
	if logger == nil {
		logger = logging.NewNop()
	}
	if config.DefaultLimit < 1 {
		config.DefaultLimit = 20
	}
	if config.MaxLimit < 1 {
		config.MaxLimit = 100
	}
	if config.Quality <= 0 || config.Quality > 1 {
		config.Quality = pipeline.DefaultQuality
	}
	if config.ExportDir == "" {
		config.ExportDir = "."
	}
	return &API{ctrl: ctrl, config: config, logger: logger.Named("api")}
}

// RegisterRoutes registers all API routes on mux.
func (api *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/open", api.HandleOpen)
	mux.HandleFunc("/api/params", api.HandleParams)
	mux.HandleFunc("/api/reset", api.HandleReset)
	mux.HandleFunc("/api/state", api.HandleState)
	mux.HandleFunc("/api/image.jpg", api.HandleImage)
	mux.HandleFunc("/api/preview.jpg", api.HandlePreview)
	mux.HandleFunc("/api/export", api.HandleExport)
	mux.HandleFunc("/api/history", api.HandleHistory)
	mux.HandleFunc("/api/runs", api.HandleRuns)
	mux.HandleFunc("/api/metrics", api.HandleMetrics)
}

// OpenRequest is the body of POST /api/open.
type OpenRequest struct {
	Path string `json:"path"`
}

// GenerationResponse acknowledges an accepted render request.
type GenerationResponse struct {
	Generation uint64 `json:"generation"`
}

// HandleOpen handles POST /api/open.
func (api *API) HandleOpen(w http.ResponseWriter, r *http.Request) {
	if !api.allowMutation(w, r, http.MethodPost) {
		return
	}
	var req OpenRequest
	if err := decodeBody(r, &req); err != nil {
		api.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	gen, err := api.ctrl.OpenFile(req.Path)
	if err != nil {
		api.writeFailure(w, err)
		return
	}
	api.logger.Info("file opened", zap.String("path", req.Path), zap.Uint64("generation", gen))
	api.writeJSON(w, http.StatusAccepted, GenerationResponse{Generation: gen})
}

// HandleParams handles PUT /api/params. Fields absent from the body keep
// their current values; the merge happens under the orchestrator lock.
func (api *API) HandleParams(w http.ResponseWriter, r *http.Request) {
	if !api.allowMutation(w, r, http.MethodPut) {
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		api.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	var bodyErr error
	gen, err := api.ctrl.UpdateParamsWith(func(ps params.ParameterSet) (params.ParameterSet, error) {
		bodyErr = decodeStrict(bytes.NewReader(body), &ps)
		return ps, bodyErr
	})
	if bodyErr != nil {
		api.writeError(w, http.StatusBadRequest, bodyErr.Error())
		return
	}
	if err != nil {
		api.writeFailure(w, err)
		return
	}
	api.writeJSON(w, http.StatusAccepted, GenerationResponse{Generation: gen})
}

// HandleReset handles POST /api/reset.
func (api *API) HandleReset(w http.ResponseWriter, r *http.Request) {
	if !api.allowMutation(w, r, http.MethodPost) {
		return
	}
	gen, err := api.ctrl.ResetToDefaults()
	if err != nil {
		api.writeFailure(w, err)
		return
	}
	api.writeJSON(w, http.StatusAccepted, GenerationResponse{Generation: gen})
}

// HandleState handles GET /api/state.
func (api *API) HandleState(w http.ResponseWriter, r *http.Request) {
	if !api.allow(w, r, http.MethodGet) {
		return
	}
	api.writeJSON(w, http.StatusOK, NewStateData(api.ctrl.CurrentState()))
}

// HandleImage handles GET /api/image.jpg.
func (api *API) HandleImage(w http.ResponseWriter, r *http.Request) {
	if !api.allow(w, r, http.MethodGet) {
		return
	}
	s := api.ctrl.CurrentState()
	if s.Bitmap == nil {
		api.writeFailure(w, orchestrator.ErrNoImage)
		return
	}
	api.writeImage(w, s.BitmapGeneration, func(out io.Writer) error {
		return pipeline.Encode(out, s.Bitmap, pipeline.FormatJPEG, api.config.Quality)
	})
}

// HandlePreview handles GET /api/preview.jpg. The optional max query
// parameter overrides the configured edge bound.
func (api *API) HandlePreview(w http.ResponseWriter, r *http.Request) {
	if !api.allow(w, r, http.MethodGet) {
		return
	}
	maxEdge := api.config.PreviewMaxEdge
	if v := r.URL.Query().Get("max"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			api.writeError(w, http.StatusBadRequest, "max must be a positive integer")
			return
		}
		maxEdge = n
	}
	s := api.ctrl.CurrentState()
	if s.Bitmap == nil {
		api.writeFailure(w, orchestrator.ErrNoImage)
		return
	}
	img, err := pipeline.Preview(s.Bitmap, maxEdge)
	if err != nil {
		api.writeFailure(w, err)
		return
	}
	api.writeImage(w, s.BitmapGeneration, func(out io.Writer) error {
		return pipeline.EncodeImage(out, img, pipeline.FormatJPEG, api.config.Quality)
	})
}

// ExportRequest is the body of POST /api/export. Quality defaults to the
// configured export quality when omitted.
type ExportRequest struct {
	Path    string   `json:"path"`
	Quality *float64 `json:"quality,omitempty"`
}

// ExportResponse reports where an export was written.
type ExportResponse struct {
	Path   string `json:"path"`
	Format string `json:"format"`
}

// HandleExport handles POST /api/export. Relative paths resolve under the
// export directory and may not climb out of it; absolute paths must lie
// inside it.
func (api *API) HandleExport(w http.ResponseWriter, r *http.Request) {
	if !api.allowMutation(w, r, http.MethodPost) {
		return
	}
	var req ExportRequest
	if err := decodeBody(r, &req); err != nil {
		api.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	path, err := api.resolveExportPath(req.Path)
	if err != nil {
		api.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	quality := api.config.Quality
	if req.Quality != nil {
		quality = *req.Quality
	}
	if err := api.ctrl.ExportCurrentAsEncoded(path, quality); err != nil {
		api.writeFailure(w, err)
		return
	}
	api.writeJSON(w, http.StatusOK, ExportResponse{
		Path:   path,
		Format: pipeline.FormatForPath(path).String(),
	})
}

// HistoryResponse is the body of GET /api/history.
type HistoryResponse struct {
	Runs  []orchestrator.Record `json:"runs"`
	Count int                   `json:"count"`
}

// HandleHistory handles GET /api/history.
func (api *API) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if !api.allow(w, r, http.MethodGet) {
		return
	}
	limit := api.config.DefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			api.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, api.config.MaxLimit)
	}
	runs := api.ctrl.History(limit)
	if runs == nil {
		runs = []orchestrator.Record{}
	}
	api.writeJSON(w, http.StatusOK, HistoryResponse{Runs: runs, Count: len(runs)})
}

func (api *API) resolveExportPath(p string) (string, error) {
	if p == "" {
		return "", errors.New("path is required")
	}
	if !filepath.IsAbs(p) {
		if !filepath.IsLocal(p) {
			return "", fmt.Errorf("path %q escapes the export directory", p)
		}
		return filepath.Join(api.config.ExportDir, p), nil
	}
	base, err := filepath.Abs(api.config.ExportDir)
	if err != nil {
		return "", fmt.Errorf("resolve export directory: %w", err)
	}
	p = filepath.Clean(p)
	if rel, err := filepath.Rel(base, p); err != nil || rel == "." || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("path %q is outside the export directory", p)
	}
	return p, nil
}

func (api *API) allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	api.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}

// allowMutation is allow for endpoints that change state or write files.
// They take only JSON bodies, and a browser Origin must name this server,
// which rules out cross-site form posts and simple fetches.
func (api *API) allowMutation(w http.ResponseWriter, r *http.Request, method string) bool {
	if !api.allow(w, r, method) {
		return false
	}
	if origin := r.Header.Get("Origin"); origin != "" {
		u, err := url.Parse(origin)
		if err != nil || u.Host != r.Host {
			api.logger.Warn("rejected cross-origin request",
				zap.String("origin", origin), zap.String("path", r.URL.Path))
			api.writeError(w, http.StatusForbidden, "cross-origin requests are not allowed")
			return false
		}
	}
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mt != "application/json" {
		api.writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	return true
}

func decodeBody(r *http.Request, v any) error {
	return decodeStrict(io.LimitReader(r.Body, maxBodyBytes), v)
}

func decodeStrict(body io.Reader, v any) error {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// writeImage encodes into memory first so an encode failure can still be
// reported with a proper status.
func (api *API) writeImage(w http.ResponseWriter, generation uint64, encode func(io.Writer) error) {
	var buf bytes.Buffer
	if err := encode(&buf); err != nil {
		api.writeFailure(w, err)
		return
	}
	w.Header().Set("Content-Type", pipeline.FormatJPEG.ContentType())
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Render-Generation", strconv.FormatUint(generation, 10))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, params.ErrInvalidParams),
		errors.Is(err, orchestrator.ErrNoFile),
		errors.Is(err, pipeline.ErrInvalidQuality):
		return http.StatusBadRequest
	case errors.Is(err, orchestrator.ErrNoImage):
		return http.StatusConflict
	case errors.Is(err, orchestrator.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (api *API) writeFailure(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		api.logger.Error("request failed", zap.Error(err))
	}
	api.writeError(w, status, err.Error())
}

func (api *API) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		api.logger.Debug("response write failed", zap.Error(err))
	}
}

func (api *API) writeError(w http.ResponseWriter, status int, message string) {
	api.writeJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}

// RunsResponse is the body of GET /api/runs.
type RunsResponse struct {
	Runs    []db.RunRecord      `json:"runs"`
	Count   int                 `json:"count"`
	Summary []db.OutcomeSummary `json:"summary"`
}

// HandleRuns handles GET /api/runs.
func (api *API) HandleRuns(w http.ResponseWriter, r *http.Request) {
	if !api.allow(w, r, http.MethodGet) {
		return
	}
	if api.config.Runs == nil {
		api.writeError(w, http.StatusNotFound, "persistent render history is disabled")
		return
	}

	q := r.URL.Query()
	f := db.RunFilter{
		Path:    q.Get("path"),
		Outcome: q.Get("outcome"),
		Source:  q.Get("source"),
		Limit:   api.config.DefaultLimit,
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			api.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		f.Limit = min(n, db.MaxListLimit)
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			api.writeError(w, http.StatusBadRequest, "since must be an RFC 3339 timestamp")
			return
		}
		f.Since = t
	}

	runs, err := api.config.Runs.Runs(r.Context(), f)
	if err != nil {
		api.logger.Error("render run query failed", zap.Error(err))
		api.writeError(w, http.StatusInternalServerError, "render run query failed")
		return
	}
	summary, err := api.config.Runs.Summary(r.Context())
	if err != nil {
		api.logger.Error("render run summary failed", zap.Error(err))
		api.writeError(w, http.StatusInternalServerError, "render run query failed")
		return
	}
	if runs == nil {
		runs = []db.RunRecord{}
	}
	if summary == nil {
		summary = []db.OutcomeSummary{}
	}
	api.writeJSON(w, http.StatusOK, RunsResponse{Runs: runs, Count: len(runs), Summary: summary})
}

// MetricsResponse is the body of GET /api/metrics.
type MetricsResponse struct {
	System  metrics.SystemStatus `json:"system"`
	Renders metrics.RenderStats  `json:"renders"`
}

// HandleMetrics handles GET /api/metrics.
func (api *API) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	if !api.allow(w, r, http.MethodGet) {
		return
	}
	if api.config.Metrics == nil {
		api.writeError(w, http.StatusNotFound, "render metrics are disabled")
		return
	}
	api.writeJSON(w, http.StatusOK, MetricsResponse{
		System:  api.config.Metrics.SystemStatus(),
		Renders: api.config.Metrics.RenderStats(),
	})
}
