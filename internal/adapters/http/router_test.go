package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/abalcerek/docuscan/internal/core/domain"
)

type ingestorFake struct {
	doc     *domain.Document
	err     error
	lastSub domain.Submission
	payload []byte
}

func (f *ingestorFake) Submit(_ context.Context, sub domain.Submission, payload io.Reader) (*domain.Document, error) {
	f.lastSub = sub
	if payload != nil {
		f.payload, _ = io.ReadAll(payload)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.doc, nil
}

type readerFake struct {
	doc *domain.Document
	err error
}

func (f *readerFake) GetByID(context.Context, string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.doc, nil
}

type analyzerFake struct {
	result       *domain.AnalysisResult
	err          error
	lastDecision *domain.RoutingDecision
	stats        domain.RoutingStatsSnapshot
	health       domain.BackendHealthStatus
}

func (f *analyzerFake) Route(_ context.Context, _ *domain.AnalysisRequest, decision *domain.RoutingDecision) (*domain.AnalysisResult, error) {
	f.lastDecision = decision
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *analyzerFake) Stats() domain.RoutingStatsSnapshot {
	return f.stats
}

func (f *analyzerFake) AnalysisMode() domain.AnalysisMode {
	return domain.AnalysisCloudLocalFallback
}

func (f *analyzerFake) BackendHealth() domain.BackendHealthStatus {
	if f.health == "" {
		return domain.BackendUnknown
	}
	return f.health
}

func newTestRouter(ingestor *ingestorFake, reader *readerFake, analyzer *analyzerFake) http.Handler {
	if ingestor == nil {
		ingestor = &ingestorFake{doc: &domain.Document{ID: "doc-1"}}
	}
	if reader == nil {
		reader = &readerFake{doc: &domain.Document{ID: "doc-1"}}
	}
	if analyzer == nil {
		analyzer = &analyzerFake{result: &domain.AnalysisResult{Mode: domain.ModeLocalOnly}}
	}
	return NewRouter(ingestor, reader, analyzer, Options{}).Handler()
}

func TestSubmitJSONRequiresLines(t *testing.T) {
	handler := newTestRouter(nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", strings.NewReader(`{"filename":"a.pdf"}`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestSubmitJSONAcceptsOCRLines(t *testing.T) {
	ingestor := &ingestorFake{doc: &domain.Document{ID: "doc-1", Status: domain.StatusReceived}}
	handler := newTestRouter(ingestor, nil, nil)

	body := `{"filename":"scan.pdf","document_type":"invoice","lines":[{"text":"ACME","box":{"x":1,"y":2,"width":3,"height":4}}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if ingestor.lastSub.DocumentType != domain.DocumentTypeInvoice || len(ingestor.lastSub.Lines) != 1 {
		t.Fatalf("unexpected submission: %+v", ingestor.lastSub)
	}
	if res.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestSubmitMultipartForwardsPayload(t *testing.T) {
	ingestor := &ingestorFake{doc: &domain.Document{ID: "doc-1"}}
	handler := newTestRouter(ingestor, nil, nil)

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", "scan.pdf")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("%PDF-payload")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := form.WriteField("document_type", "receipt"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	form.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if string(ingestor.payload) != "%PDF-payload" {
		t.Fatalf("payload not forwarded: %q", ingestor.payload)
	}
	if ingestor.lastSub.DocumentType != domain.DocumentTypeReceipt || ingestor.lastSub.Filename != "scan.pdf" {
		t.Fatalf("unexpected submission: %+v", ingestor.lastSub)
	}
}

func TestGetDocumentMapsNotFound(t *testing.T) {
	reader := &readerFake{err: domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New("no row"))}
	handler := newTestRouter(nil, reader, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/missing", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestAnalyzeSyncForwardsPinnedDecision(t *testing.T) {
	analyzer := &analyzerFake{result: &domain.AnalysisResult{Mode: domain.ModeLocalOnly}}
	handler := newTestRouter(nil, nil, analyzer)

	body := `{
		"lines": [{"text": "ACME"}],
		"decision": {"cloud_allowed": false, "local_only_reason": "quota_exhausted"}
	}`
	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", strings.NewReader(body))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if analyzer.lastDecision == nil {
		t.Fatalf("decision not forwarded")
	}
	if analyzer.lastDecision.CloudAllowed() || analyzer.lastDecision.Reason() != domain.ReasonQuotaExhausted {
		t.Fatalf("unexpected decision: %s", analyzer.lastDecision)
	}
}

func TestAnalyzeSyncDerivesDecisionWhenAbsent(t *testing.T) {
	analyzer := &analyzerFake{result: &domain.AnalysisResult{Mode: domain.ModeCloud}}
	handler := newTestRouter(nil, nil, analyzer)

	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", strings.NewReader(`{"lines":[{"text":"ACME"}]}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if analyzer.lastDecision != nil {
		t.Fatalf("expected nil decision, got %s", analyzer.lastDecision)
	}

	var result domain.AnalysisResult
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Mode != domain.ModeCloud {
		t.Fatalf("mode = %s", result.Mode)
	}
}

func TestAnalyzeSyncMapsAuthFailureTo401(t *testing.T) {
	analyzer := &analyzerFake{err: domain.WrapError(domain.ErrUnauthorized, "cloud analysis", errors.New("token expired"))}
	handler := newTestRouter(nil, nil, analyzer)

	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", strings.NewReader(`{"lines":[{"text":"ACME"}]}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
}

type metricsFake struct {
	modes       []string
	reasons     []string
	confidences []float64
	health      []string
}

func (f *metricsFake) RecordRouting(_, mode, reason string) {
	f.modes = append(f.modes, mode)
	f.reasons = append(f.reasons, reason)
}

func (f *metricsFake) ObserveFallbackConfidence(_ string, confidence float64) {
	f.confidences = append(f.confidences, confidence)
}

func (f *metricsFake) SetBackendHealth(_, current string, _ []string) {
	f.health = append(f.health, current)
}

func TestAnalyzeSyncRecordsRoutingMetrics(t *testing.T) {
	analyzer := &analyzerFake{
		result: &domain.AnalysisResult{Mode: domain.ModeRateLimitFallback, OverallConfidence: 0.55},
		health: domain.BackendHealthy,
	}
	recorder := &metricsFake{}
	handler := NewRouter(
		&ingestorFake{doc: &domain.Document{ID: "doc-1"}},
		&readerFake{doc: &domain.Document{ID: "doc-1"}},
		analyzer,
		Options{Metrics: recorder},
	).Handler()

	body := `{"lines":[{"text":"Do zaplaty: 100,00 PLN"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if len(recorder.modes) != 1 || recorder.modes[0] != string(domain.ModeRateLimitFallback) {
		t.Fatalf("recorded modes = %v", recorder.modes)
	}
	if recorder.reasons[0] != string(domain.ModeRateLimitFallback) {
		t.Fatalf("recorded reasons = %v", recorder.reasons)
	}
	if len(recorder.confidences) != 1 || recorder.confidences[0] != 0.55 {
		t.Fatalf("recorded fallback confidences = %v", recorder.confidences)
	}
	if len(recorder.health) != 1 || recorder.health[0] != string(domain.BackendHealthy) {
		t.Fatalf("recorded backend health = %v", recorder.health)
	}

	// The stats endpoint refreshes the gauge as well.
	statsReq := httptest.NewRequest(http.MethodGet, "/v1/routing/stats", nil)
	statsRes := httptest.NewRecorder()
	handler.ServeHTTP(statsRes, statsReq)
	if statsRes.Code != http.StatusOK {
		t.Fatalf("stats: expected 200, got %d", statsRes.Code)
	}
	if len(recorder.health) != 2 {
		t.Fatalf("expected gauge refresh from stats endpoint, health = %v", recorder.health)
	}
}

func TestAnalyzeSyncCloudModeSkipsFallbackObservation(t *testing.T) {
	analyzer := &analyzerFake{result: &domain.AnalysisResult{Mode: domain.ModeCloud, OverallConfidence: 0.9}}
	recorder := &metricsFake{}
	handler := NewRouter(
		&ingestorFake{doc: &domain.Document{ID: "doc-1"}},
		&readerFake{doc: &domain.Document{ID: "doc-1"}},
		analyzer,
		Options{Metrics: recorder},
	).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", strings.NewReader(`{"lines":[{"text":"ACME"}]}`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if len(recorder.modes) != 1 || recorder.modes[0] != string(domain.ModeCloud) {
		t.Fatalf("recorded modes = %v", recorder.modes)
	}
	if recorder.reasons[0] != "" {
		t.Fatalf("cloud mode must not count as a fallback, reasons = %v", recorder.reasons)
	}
	if len(recorder.confidences) != 0 {
		t.Fatalf("cloud mode must not feed the fallback histogram, got %v", recorder.confidences)
	}
}

func TestRoutingStatsEndpoint(t *testing.T) {
	analyzer := &analyzerFake{stats: domain.RoutingStatsSnapshot{TotalRouted: 7, LocalFallbacks: 2}}
	handler := newTestRouter(nil, nil, analyzer)

	req := httptest.NewRequest(http.MethodGet, "/v1/routing/stats", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	var payload struct {
		AnalysisMode string                      `json:"analysis_mode"`
		Stats        domain.RoutingStatsSnapshot `json:"stats"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if payload.AnalysisMode != string(domain.AnalysisCloudLocalFallback) {
		t.Fatalf("analysis mode = %s", payload.AnalysisMode)
	}
	if payload.Stats.TotalRouted != 7 || payload.Stats.LocalFallbacks != 2 {
		t.Fatalf("stats = %+v", payload.Stats)
	}
}
