package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/abalcerek/docuscan/internal/core/domain"
	"github.com/abalcerek/docuscan/internal/core/ports"
)

// Options tunes the traffic-control middlewares in front of the API.
type Options struct {
	RateLimitRPS       float64
	RateLimitBurst     int
	MaxConcurrent      int
	BackpressureWait   time.Duration
	MaxUploadSizeBytes int64

	// Metrics receives routing observations from the analyze endpoints.
	// Nil disables recording.
	Metrics RoutingMetrics
}

// RoutingMetrics is the slice of the metrics surface the analyze endpoints
// feed. *metrics.HTTPServerMetrics satisfies it.
type RoutingMetrics interface {
	RecordRouting(service, mode, reason string)
	ObserveFallbackConfidence(service string, confidence float64)
	SetBackendHealth(service, current string, all []string)
}

const metricsService = "api"

var backendHealthStates = []string{
	string(domain.BackendUnknown),
	string(domain.BackendHealthy),
	string(domain.BackendDegraded),
	string(domain.BackendDown),
}

type Router struct {
	ingestor ports.DocumentIngestor
	reader   ports.DocumentReader
	analyzer ports.DocumentRouter
	metrics  RoutingMetrics
	opts     Options
}

func NewRouter(
	ingestor ports.DocumentIngestor,
	reader ports.DocumentReader,
	analyzer ports.DocumentRouter,
	opts Options,
) *Router {
	if opts.MaxUploadSizeBytes <= 0 {
		opts.MaxUploadSizeBytes = 32 << 20
	}
	return &Router{
		ingestor: ingestor,
		reader:   reader,
		analyzer: analyzer,
		metrics:  opts.Metrics,
		opts:     opts,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents", rt.submitDocument)
	mux.HandleFunc("/v1/documents/", rt.getDocumentByID)
	mux.HandleFunc("/v1/analyze", rt.analyzeSync)
	mux.HandleFunc("/v1/routing/stats", rt.routingStats)

	var handler http.Handler = mux
	if rt.opts.MaxConcurrent > 0 {
		handler = backpressureMiddleware(handler, rt.opts.MaxConcurrent, rt.opts.BackpressureWait)
	}
	if rt.opts.RateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// submitDocument accepts a multipart scan upload with optional metadata
// fields, or a pure JSON submission carrying pre-extracted OCR lines.
func (rt *Router) submitDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		rt.submitJSON(w, r)
		return
	}
	rt.submitMultipart(w, r)
}

type submitRequest struct {
	Filename     string            `json:"filename"`
	MimeType     string            `json:"mime_type"`
	DocumentType string            `json:"document_type"`
	LanguageHint string            `json:"language_hint"`
	CurrencyHint string            `json:"currency_hint"`
	Lines        []domain.TextLine `json:"lines"`
}

func (req *submitRequest) toSubmission() domain.Submission {
	return domain.Submission{
		Filename:     req.Filename,
		MimeType:     req.MimeType,
		DocumentType: domain.DocumentType(req.DocumentType),
		LanguageHint: req.LanguageHint,
		CurrencyHint: req.CurrencyHint,
		Lines:        req.Lines,
	}
}

func (rt *Router) submitJSON(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if len(req.Lines) == 0 {
		writeError(w, http.StatusBadRequest, "ocr lines are required without a payload")
		return
	}

	doc, err := rt.ingestor.Submit(r.Context(), req.toSubmission(), nil)
	if err != nil {
		rt.writeFailure(w, r, "submit document", err)
		return
	}
	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) submitMultipart(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.opts.MaxUploadSizeBytes)

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	req := submitRequest{
		Filename:     fileHeader.Filename,
		MimeType:     fileHeader.Header.Get("Content-Type"),
		DocumentType: r.FormValue("document_type"),
		LanguageHint: r.FormValue("language_hint"),
		CurrencyHint: r.FormValue("currency_hint"),
	}

	doc, err := rt.ingestor.Submit(r.Context(), req.toSubmission(), file)
	if err != nil {
		rt.writeFailure(w, r, "submit document", err)
		return
	}
	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "document id is required")
		return
	}

	doc, err := rt.reader.GetByID(r.Context(), id)
	if err != nil {
		rt.writeFailure(w, r, "get document", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type analyzeSyncRequest struct {
	Lines        []domain.TextLine `json:"lines"`
	DocumentType string            `json:"document_type"`
	LanguageHint string            `json:"language_hint"`
	CurrencyHint string            `json:"currency_hint"`

	// Decision lets an orchestrating caller pin the routing verdict. Absent,
	// the router derives one itself.
	Decision *decisionPayload `json:"decision,omitempty"`
}

type decisionPayload struct {
	CloudAllowed    bool   `json:"cloud_allowed"`
	LocalOnlyReason string `json:"local_only_reason,omitempty"`
	Remaining       int    `json:"remaining,omitempty"`
}

func (p *decisionPayload) toDomain() *domain.RoutingDecision {
	if p == nil {
		return nil
	}
	var decision domain.RoutingDecision
	if p.CloudAllowed {
		decision = domain.CloudAllowedDecision(p.Remaining)
	} else {
		decision = domain.LocalOnlyDecision(domain.LocalOnlyReason(p.LocalOnlyReason))
	}
	return &decision
}

// analyzeSync runs the hybrid router inline and returns the extraction
// result, bypassing the persistence pipeline.
func (rt *Router) analyzeSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req analyzeSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if len(req.Lines) == 0 {
		writeError(w, http.StatusBadRequest, "ocr lines are required")
		return
	}

	analysisReq := &domain.AnalysisRequest{
		Lines:        req.Lines,
		DocumentType: domain.DocumentType(req.DocumentType),
		LanguageHint: req.LanguageHint,
		CurrencyHint: req.CurrencyHint,
	}
	if analysisReq.DocumentType == "" {
		analysisReq.DocumentType = domain.DocumentTypeUnknown
	}

	result, err := rt.analyzer.Route(r.Context(), analysisReq, req.Decision.toDomain())
	if err != nil {
		rt.writeFailure(w, r, "analyze document", err)
		return
	}
	rt.recordRouting(result)
	writeJSON(w, http.StatusOK, result)
}

// recordRouting exports the finished analysis: the extraction mode counter,
// the local confidence histogram when the cloud was bypassed, and the
// backend health gauge.
func (rt *Router) recordRouting(result *domain.AnalysisResult) {
	if rt.metrics == nil {
		return
	}

	reason := ""
	switch result.Mode {
	case domain.ModeLocalFallback, domain.ModeOfflineFallback, domain.ModeRateLimitFallback:
		reason = string(result.Mode)
		rt.metrics.ObserveFallbackConfidence(metricsService, result.OverallConfidence)
	}
	rt.metrics.RecordRouting(metricsService, string(result.Mode), reason)
	rt.metrics.SetBackendHealth(metricsService, string(rt.analyzer.BackendHealth()), backendHealthStates)
}

func (rt *Router) routingStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	health := rt.analyzer.BackendHealth()
	if rt.metrics != nil {
		rt.metrics.SetBackendHealth(metricsService, string(health), backendHealthStates)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"analysis_mode":  rt.analyzer.AnalysisMode(),
		"backend_health": health,
		"stats":          rt.analyzer.Stats(),
	})
}

func (rt *Router) writeFailure(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= 500 {
		slog.Error(operation, "request_id", requestIDFromContext(r.Context()), "error", err)
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
