package webapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/callaudit/callaudit/internal/models"
	"github.com/callaudit/callaudit/internal/orchestration"
	"github.com/callaudit/callaudit/internal/report"
	"github.com/google/uuid"
)

// Version is set at build time or defaults to dev.
var Version = "0.1.0"

// MaxUploadBytes bounds a transcript upload.
const MaxUploadBytes = 32 << 20

// AuditService is what the handlers need from the coordinator.
// [*orchestration.Coordinator] implements it.
type AuditService interface {
	Submit(ctx context.Context, sub orchestration.Submission) (*models.TranscriptAuditRecord, error)
	Get(ctx context.Context, id string) (*models.TranscriptAuditRecord, error)
	List(ctx context.Context) ([]*models.TranscriptAuditRecord, error)
	Delete(ctx context.Context, id string) error
	Rerun(ctx context.Context, id string, types []models.AuditType) (*models.TranscriptAuditRecord, error)
	Count(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

// Handlers holds the HTTP handler methods for the web API.
type Handlers struct {
	svc AuditService
}

// NewHandlers creates a new Handlers with the given service.
func NewHandlers(svc AuditService) *Handlers {
	return &Handlers{svc: svc}
}

// HandleHealth reports whether the store is reachable.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ping(r.Context()); err != nil {
		slog.ErrorContext(r.Context(), "Health check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}

	n, err := h.svc.Count(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: Version,
		Records: n,
	})
}

// HandleSubmit accepts a multipart upload with a transcript_file part and
// one or more audit_types values.
func (h *Handlers) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart form: %v", err))
		return
	}

	file, header, err := r.FormFile("transcript_file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "transcript_file is required")
		return
	}
	defer file.Close() //nolint:errcheck

	types, err := models.ParseAuditTypes(r.MultipartForm.Value["audit_types"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("reading transcript_file: %v", err))
		return
	}

	rec, err := h.svc.Submit(r.Context(), orchestration.Submission{
		FileName:   header.Filename,
		Data:       data,
		AuditTypes: types,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// HandleList returns every record. There is no pagination.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	recs, err := h.svc.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// HandleGet returns one record.
func (h *Handlers) HandleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleReport renders a record as HTML, or as Markdown with ?format=md.
func (h *Handlers) HandleReport(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	switch r.URL.Query().Get("format") {
	case "md", "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		io.WriteString(w, report.Markdown(rec)) //nolint:errcheck
	case "", "html":
		html, err := report.HTML(rec)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(html) //nolint:errcheck
	default:
		writeError(w, http.StatusBadRequest, "format must be html or md")
	}
}

// HandleRerun resets the requested (default: FAILED) types and runs them again.
func (h *Handlers) HandleRerun(w http.ResponseWriter, r *http.Request) {
	var req RerunRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err))
			return
		}
	}

	var types []models.AuditType
	if len(req.AuditTypes) > 0 {
		var err error
		if types, err = models.ParseAuditTypes(req.AuditTypes); err != nil {
			writeServiceError(w, r, err)
			return
		}
	}

	rec, err := h.svc.Rerun(r.Context(), r.PathValue("id"), types)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, rec)
}

// HandleDelete removes a record.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSummary returns per audit type status counts across all records.
func (h *Handlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	recs, err := h.svc.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Summarize(recs))
}

// Summarize aggregates records into a SummaryResponse.
func Summarize(recs []*models.TranscriptAuditRecord) *SummaryResponse {
	resp := &SummaryResponse{
		TotalRecords: len(recs),
		ByType:       map[models.AuditType]*TypeSummary{},
	}
	for _, t := range models.AllAuditTypes() {
		resp.ByType[t] = &TypeSummary{}
	}

	for _, rec := range recs {
		for _, t := range rec.RequestedAuditTypes {
			ts, ok := resp.ByType[t]
			if !ok {
				continue
			}
			ts.Requested++
			switch rec.StatusByType[t] {
			case models.StatusPending:
				ts.Pending++
			case models.StatusProcessing:
				ts.Processing++
			case models.StatusCompleted:
				ts.Completed++
			case models.StatusFailed:
				ts.Failed++
			}
		}
		if rl := rec.ResultsByType.RecordedLinePhrases; rl != nil {
			resp.TotalHumanTransfers += rl.TotalHumanTransfers
			resp.TotalCompliant += rl.TotalCompliant
		}
	}

	if resp.TotalHumanTransfers > 0 {
		resp.ComplianceRate = float64(resp.TotalCompliant) / float64(resp.TotalHumanTransfers) * 100.0
	}
	return resp
}

// RegisterRoutes registers all web API routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, svc AuditService) {
	h := NewHandlers(svc)
	mux.HandleFunc("GET /api/health", h.HandleHealth)
	mux.HandleFunc("GET /api/summary", h.HandleSummary)
	mux.HandleFunc("POST /api/audits", h.HandleSubmit)
	mux.HandleFunc("GET /api/audits", h.HandleList)
	mux.HandleFunc("GET /api/audits/{id}", h.HandleGet)
	mux.HandleFunc("DELETE /api/audits/{id}", h.HandleDelete)
	mux.HandleFunc("GET /api/audits/{id}/report", h.HandleReport)
	mux.HandleFunc("POST /api/audits/{id}/rerun", h.HandleRerun)
}

// CORSMiddleware wraps a handler with CORS headers.
// If allowedOrigins is empty, no CORS header is set (same-origin only).
// Otherwise, the request Origin is checked against the allowed list.
func CORSMiddleware(next http.Handler, allowedOrigins ...string) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if len(allowedOrigins) > 0 && origin != "" && allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// RequestLogMiddleware assigns a request id (keeping a caller supplied one),
// echoes it in the response and logs each request with it.
func RequestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		slog.InfoContext(r.Context(), "HTTP request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status)
	})
}

// StatusFor maps the error taxonomy onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrMalformedInput),
		errors.Is(err, models.ErrSchemaViolation),
		errors.Is(err, models.ErrInvalidID),
		errors.Is(err, models.ErrInvalidAuditType):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, orchestration.ErrShuttingDown):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusFor(err)
	if code >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "error", err)
	}
	writeError(w, code, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorResponse{Error: msg, Code: code})
}
