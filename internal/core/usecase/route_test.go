package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/abalcerek/docuscan/internal/core/domain"
)

type localFake struct {
	result *domain.AnalysisResult
	err    error
	calls  int
	onCall func()
}

func (f *localFake) Analyze(context.Context, *domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	f.calls++
	if f.onCall != nil {
		f.onCall()
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.result == nil {
		return &domain.AnalysisResult{Method: domain.MethodLocalOCR, Provider: "local"}, nil
	}
	copied := *f.result
	return &copied, nil
}

type cloudFake struct {
	available bool
	result    *domain.AnalysisResult
	err       error
	calls     int
	onCall    func()
}

func (f *cloudFake) IsAvailable(context.Context) bool { return f.available }

func (f *cloudFake) AnalyzeDocument(context.Context, *domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	f.calls++
	if f.onCall != nil {
		f.onCall()
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.result == nil {
		return &domain.AnalysisResult{Method: domain.MethodCloudAI, Provider: "cloud"}, nil
	}
	copied := *f.result
	return &copied, nil
}

type probeFake struct{ online bool }

func (f *probeFake) IsOnline(context.Context) bool { return f.online }

type settingsFake struct {
	cloudEnabled    bool
	highAccuracy    bool
	assistThreshold float64
	minAcceptable   float64
}

func (f *settingsFake) CloudAnalysisEnabled() bool { return f.cloudEnabled }

func (f *settingsFake) HighAccuracyMode() bool { return f.highAccuracy }

func (f *settingsFake) CloudAssistThreshold() float64 { return f.assistThreshold }

func (f *settingsFake) MinimumAcceptableConfidence() float64 { return f.minAcceptable }

type policyFake struct {
	decision domain.RoutingDecision
	err      error
}

func (f *policyFake) Decide(context.Context, *domain.AnalysisRequest) (domain.RoutingDecision, error) {
	if f.err != nil {
		return domain.RoutingDecision{}, f.err
	}
	return f.decision, nil
}

func testRequest() *domain.AnalysisRequest {
	return &domain.AnalysisRequest{
		Lines:        []domain.TextLine{{Text: "Faktura VAT 12/2026"}, {Text: "Do zaplaty: 100,00 PLN"}},
		DocumentType: domain.DocumentTypeInvoice,
	}
}

func newRouter(local *localFake, cloud *cloudFake, settings *settingsFake) *HybridRouteUseCase {
	return NewHybridRouteUseCase(
		local,
		cloud,
		&probeFake{online: true},
		nil,
		settings,
		NewBackendHealthTracker(time.Minute),
		domain.AnalysisCloudLocalFallback,
	)
}

func TestRouteLocalOnlyReasonMapsToExtractionMode(t *testing.T) {
	cases := []struct {
		reason domain.LocalOnlyReason
		want   domain.ExtractionMode
	}{
		{domain.ReasonOffline, domain.ModeOfflineFallback},
		{domain.ReasonDisabledInSettings, domain.ModeLocalOnly},
		{domain.ReasonQuotaExhausted, domain.ModeRateLimitFallback},
		{domain.ReasonNotSignedIn, domain.ModeLocalFallback},
		{domain.ReasonCloudUnavailable, domain.ModeLocalFallback},
	}

	for _, tc := range cases {
		local := &localFake{}
		cloud := &cloudFake{available: true}
		uc := newRouter(local, cloud, &settingsFake{cloudEnabled: true})

		decision := domain.LocalOnlyDecision(tc.reason)
		result, err := uc.Route(context.Background(), testRequest(), &decision)
		if err != nil {
			t.Fatalf("reason %s: Route() error = %v", tc.reason, err)
		}
		if result.Mode != tc.want {
			t.Fatalf("reason %s: expected mode %s, got %s", tc.reason, tc.want, result.Mode)
		}
		if cloud.calls != 0 {
			t.Fatalf("reason %s: expected no cloud call, got %d", tc.reason, cloud.calls)
		}
	}
}

func TestRouteOfflineDecisionIncrementsLocalFallbacks(t *testing.T) {
	local := &localFake{result: &domain.AnalysisResult{
		Amount: &domain.AmountField{Amount: 100, Currency: "PLN", Confidence: 0.8, Method: domain.MethodLocalOCR},
	}}
	cloud := &cloudFake{available: true}
	uc := newRouter(local, cloud, &settingsFake{cloudEnabled: true})

	decision := domain.LocalOnlyDecision(domain.ReasonOffline)
	result, err := uc.Route(context.Background(), testRequest(), &decision)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if result.Mode != domain.ModeOfflineFallback {
		t.Fatalf("expected offline fallback mode, got %s", result.Mode)
	}
	if result.Amount == nil || result.Amount.Amount != 100 || result.Amount.Currency != "PLN" {
		t.Fatalf("expected local amount to survive routing, got %+v", result.Amount)
	}
	stats := uc.Stats()
	if stats.LocalFallbacks != 1 {
		t.Fatalf("expected localFallbacks=1, got %d", stats.LocalFallbacks)
	}
	if stats.TotalRouted != 1 {
		t.Fatalf("expected totalRouted=1, got %d", stats.TotalRouted)
	}
}

func TestRouteCloudGatewayUnavailableFallsBackWithoutCall(t *testing.T) {
	local := &localFake{}
	cloud := &cloudFake{available: false}
	uc := newRouter(local, cloud, &settingsFake{cloudEnabled: true})

	decision := domain.CloudAllowedDecision(5)
	result, err := uc.Route(context.Background(), testRequest(), &decision)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if result.Mode != domain.ModeLocalFallback {
		t.Fatalf("expected local fallback, got %s", result.Mode)
	}
	if cloud.calls != 0 {
		t.Fatalf("expected no cloud attempt, got %d", cloud.calls)
	}
}

func TestRouteRateLimitFallbackCarriesMetadata(t *testing.T) {
	reset := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	rateErr := domain.NewExtractionError(domain.ErrKindRateLimitExceeded, "quota exhausted", nil)
	rateErr.RateLimit = &domain.RateLimitInfo{Used: 3, Limit: 3, ResetAt: reset}

	local := &localFake{}
	cloud := &cloudFake{available: true, err: rateErr}
	uc := newRouter(local, cloud, &settingsFake{cloudEnabled: true})

	decision := domain.CloudAllowedDecision(2)
	result, err := uc.Route(context.Background(), testRequest(), &decision)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if result.Mode != domain.ModeRateLimitFallback {
		t.Fatalf("expected rate limit fallback, got %s", result.Mode)
	}
	if result.RateLimit == nil || result.RateLimit.Used != 3 || result.RateLimit.Limit != 3 || !result.RateLimit.ResetAt.Equal(reset) {
		t.Fatalf("expected rate limit metadata on result, got %+v", result.RateLimit)
	}
	if got := uc.BackendHealth(); got != domain.BackendHealthy {
		t.Fatalf("rate limiting must not degrade backend health, got %s", got)
	}
	if uc.Stats().CloudFallbacks != 1 {
		t.Fatalf("expected cloudFallbacks=1, got %d", uc.Stats().CloudFallbacks)
	}
}

func TestRouteAuthenticationErrorPropagates(t *testing.T) {
	authErr := domain.NewExtractionError(domain.ErrKindAuthenticationRequired, "session expired", nil)
	local := &localFake{}
	cloud := &cloudFake{available: true, err: authErr}
	uc := newRouter(local, cloud, &settingsFake{cloudEnabled: true})

	decision := domain.CloudAllowedDecision(5)
	_, err := uc.Route(context.Background(), testRequest(), &decision)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized kind, got %v", err)
	}
}

func TestRouteTimeoutMarksBackendDownAndFallsBack(t *testing.T) {
	timeoutErr := domain.NewExtractionError(domain.ErrKindTimeout, "deadline exceeded", nil)
	local := &localFake{}
	cloud := &cloudFake{available: true, err: timeoutErr}
	uc := newRouter(local, cloud, &settingsFake{cloudEnabled: true})

	decision := domain.CloudAllowedDecision(5)
	result, err := uc.Route(context.Background(), testRequest(), &decision)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if result.Mode != domain.ModeLocalFallback {
		t.Fatalf("expected local fallback, got %s", result.Mode)
	}
	if got := uc.BackendHealth(); got != domain.BackendDown {
		t.Fatalf("expected backend down, got %s", got)
	}

	// The next derived decision short-circuits to local within the cooldown.
	result2, err := uc.Route(context.Background(), testRequest(), nil)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if result2.Mode != domain.ModeLocalFallback {
		t.Fatalf("expected cooldown local fallback, got %s", result2.Mode)
	}
	if cloud.calls != 1 {
		t.Fatalf("expected no second cloud attempt during cooldown, got %d", cloud.calls)
	}
}

func TestRouteCloudSuccessMergesLocalCandidates(t *testing.T) {
	local := &localFake{result: &domain.AnalysisResult{
		Method: domain.MethodLocalOCR,
		AmountCandidates: []domain.AmountCandidate{
			{Amount: 100, Currency: "PLN", Confidence: 0.7, Method: domain.MethodLocalOCR},
			{Amount: 123, Currency: "PLN", Confidence: 0.4, Method: domain.MethodLocalOCR},
		},
	}}
	cloud := &cloudFake{available: true, result: &domain.AnalysisResult{
		Method: domain.MethodCloudAI,
		Amount: &domain.AmountField{Amount: 100, Currency: "PLN", Confidence: 0.95, Method: domain.MethodCloudAI},
	}}
	uc := newRouter(local, cloud, &settingsFake{cloudEnabled: true, highAccuracy: true})

	decision := domain.CloudAllowedDecision(5)
	result, err := uc.Route(context.Background(), testRequest(), &decision)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if result.Mode != domain.ModeCloud {
		t.Fatalf("expected cloud mode, got %s", result.Mode)
	}
	if result.Amount == nil || result.Amount.Method != domain.MethodCloudAI {
		t.Fatalf("expected cloud amount to win, got %+v", result.Amount)
	}
	if len(result.AmountCandidates) != 2 {
		t.Fatalf("expected local candidates merged in, got %d", len(result.AmountCandidates))
	}
	if local.calls != 1 {
		t.Fatalf("expected one local candidates pass, got %d", local.calls)
	}
	if uc.Stats().CloudAssisted != 1 {
		t.Fatalf("expected cloudAssisted=1, got %d", uc.Stats().CloudAssisted)
	}
}

func TestRouteLocalCandidatesPassFailureDoesNotAbortCloud(t *testing.T) {
	local := &localFake{err: errors.New("ocr layout crash")}
	cloud := &cloudFake{available: true}
	uc := newRouter(local, cloud, &settingsFake{cloudEnabled: true, highAccuracy: true})

	decision := domain.CloudAllowedDecision(5)
	result, err := uc.Route(context.Background(), testRequest(), &decision)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if result.Mode != domain.ModeCloud {
		t.Fatalf("expected cloud mode despite local pass failure, got %s", result.Mode)
	}
}

func TestRouteExtractionModeIsIdempotent(t *testing.T) {
	local := &localFake{}
	cloud := &cloudFake{available: true}
	uc := newRouter(local, cloud, &settingsFake{cloudEnabled: true})

	decision := domain.CloudAllowedDecision(5)
	first, err := uc.Route(context.Background(), testRequest(), &decision)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	second, err := uc.Route(context.Background(), testRequest(), &decision)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if first.Mode != second.Mode {
		t.Fatalf("expected identical routing outcome, got %s then %s", first.Mode, second.Mode)
	}
}

func TestRouteDerivedDecisionDefaultsToLocalWithoutPolicy(t *testing.T) {
	local := &localFake{}
	cloud := &cloudFake{available: true}
	// Cloud enabled, device online, backend health fine, but no access
	// policy: auth state is unknown, so cloud must stay unreachable.
	uc := newRouter(local, cloud, &settingsFake{cloudEnabled: true})

	result, err := uc.Route(context.Background(), testRequest(), nil)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if result.Mode != domain.ModeLocalFallback {
		t.Fatalf("expected local fallback, got %s", result.Mode)
	}
	if cloud.calls != 0 {
		t.Fatalf("unauthenticated request must not reach cloud, got %d calls", cloud.calls)
	}
}

func TestRouteDerivedDecisionUsesAccessPolicy(t *testing.T) {
	local := &localFake{}
	cloud := &cloudFake{available: true}
	uc := NewHybridRouteUseCase(
		local,
		cloud,
		&probeFake{online: true},
		&policyFake{decision: domain.CloudAllowedDecision(3)},
		&settingsFake{cloudEnabled: true},
		NewBackendHealthTracker(time.Minute),
		domain.AnalysisCloudLocalFallback,
	)

	result, err := uc.Route(context.Background(), testRequest(), nil)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if result.Mode != domain.ModeCloud {
		t.Fatalf("expected cloud mode, got %s", result.Mode)
	}
	if cloud.calls != 1 {
		t.Fatalf("expected one cloud call, got %d", cloud.calls)
	}
}

func TestRouteDerivedDecisionDisabledSettings(t *testing.T) {
	local := &localFake{}
	cloud := &cloudFake{available: true}
	uc := newRouter(local, cloud, &settingsFake{cloudEnabled: false})

	result, err := uc.Route(context.Background(), testRequest(), nil)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if result.Mode != domain.ModeLocalOnly {
		t.Fatalf("expected local only, got %s", result.Mode)
	}
	if uc.Stats().LocalOnly != 1 {
		t.Fatalf("expected localOnly=1, got %d", uc.Stats().LocalOnly)
	}
}

func TestRouteDerivedDecisionOffline(t *testing.T) {
	local := &localFake{}
	cloud := &cloudFake{available: true}
	uc := NewHybridRouteUseCase(
		local,
		cloud,
		&probeFake{online: false},
		&policyFake{decision: domain.CloudAllowedDecision(3)},
		&settingsFake{cloudEnabled: true},
		NewBackendHealthTracker(time.Minute),
		domain.AnalysisCloudLocalFallback,
	)

	result, err := uc.Route(context.Background(), testRequest(), nil)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if result.Mode != domain.ModeOfflineFallback {
		t.Fatalf("expected offline fallback, got %s", result.Mode)
	}
	if cloud.calls != 0 {
		t.Fatalf("expected no cloud call while offline, got %d", cloud.calls)
	}
}

func TestRouteCancelledRequestDoesNotUpdateStats(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	local := &localFake{onCall: cancel}
	cloud := &cloudFake{available: true}
	uc := newRouter(local, cloud, &settingsFake{cloudEnabled: true})

	decision := domain.LocalOnlyDecision(domain.ReasonOffline)
	_, err := uc.Route(ctx, testRequest(), &decision)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := uc.Stats().TotalRouted; got != 0 {
		t.Fatalf("cancelled request must not count as routed, got %d", got)
	}
}

func TestRouteAbandonedCloudCallLeavesBackendHealthUntouched(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	local := &localFake{}
	cloud := &cloudFake{available: true, onCall: cancel, err: context.Canceled}
	uc := NewHybridRouteUseCase(
		local,
		cloud,
		&probeFake{online: true},
		&policyFake{decision: domain.CloudAllowedDecision(3)},
		&settingsFake{cloudEnabled: true},
		NewBackendHealthTracker(time.Minute),
		domain.AnalysisCloudLocalFallback,
	)

	decision := domain.CloudAllowedDecision(5)
	_, err := uc.Route(ctx, testRequest(), &decision)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := uc.BackendHealth(); got != domain.BackendUnknown {
		t.Fatalf("abandoned request must not touch backend health, got %s", got)
	}
	if got := uc.Stats().TotalRouted; got != 0 {
		t.Fatalf("abandoned request must not count as routed, got %d", got)
	}

	// The next derived decision is not pinned local by a phantom cooldown.
	cloud.err = nil
	cloud.onCall = nil
	result, err := uc.Route(context.Background(), testRequest(), nil)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if result.Mode != domain.ModeCloud {
		t.Fatalf("expected cloud mode after abandoned request, got %s", result.Mode)
	}
	if cloud.calls != 2 {
		t.Fatalf("expected a second cloud attempt, got %d calls", cloud.calls)
	}
}

func TestRouteCloudAssistAcceptsConfidentLocalResult(t *testing.T) {
	local := &localFake{result: &domain.AnalysisResult{
		Method:           domain.MethodLocalOCR,
		VendorCandidates: []domain.Candidate{{Value: "ACME Sp. z o.o.", Confidence: 0.9, Method: domain.MethodLocalOCR}},
	}}
	cloud := &cloudFake{available: true}
	uc := NewHybridRouteUseCase(
		local,
		cloud,
		&probeFake{online: true},
		nil,
		&settingsFake{cloudEnabled: true, assistThreshold: 0.8, minAcceptable: 0.55},
		NewBackendHealthTracker(time.Minute),
		domain.AnalysisLocalWithCloudAssist,
	)

	decision := domain.CloudAllowedDecision(5)
	result, err := uc.Route(context.Background(), testRequest(), &decision)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if result.Mode != domain.ModeLocalOnly {
		t.Fatalf("expected confident local result accepted, got %s", result.Mode)
	}
	if cloud.calls != 0 {
		t.Fatalf("expected no cloud spend, got %d calls", cloud.calls)
	}
}

func TestRouteCloudAssistInvokesCloudOnLowConfidence(t *testing.T) {
	local := &localFake{result: &domain.AnalysisResult{
		Method:           domain.MethodLocalOCR,
		VendorCandidates: []domain.Candidate{{Value: "AC?E", Confidence: 0.3, Method: domain.MethodLocalOCR}},
	}}
	cloud := &cloudFake{available: true, result: &domain.AnalysisResult{
		Method: domain.MethodCloudAI,
		Vendor: &domain.StringField{Value: "ACME Sp. z o.o.", Confidence: 0.97, Method: domain.MethodCloudAI},
	}}
	uc := NewHybridRouteUseCase(
		local,
		cloud,
		&probeFake{online: true},
		nil,
		&settingsFake{cloudEnabled: true, assistThreshold: 0.8, minAcceptable: 0.55},
		NewBackendHealthTracker(time.Minute),
		domain.AnalysisLocalWithCloudAssist,
	)

	decision := domain.CloudAllowedDecision(5)
	result, err := uc.Route(context.Background(), testRequest(), &decision)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if result.Mode != domain.ModeCloud {
		t.Fatalf("expected cloud assist result, got %s", result.Mode)
	}
	if result.Vendor == nil || result.Vendor.Value != "ACME Sp. z o.o." {
		t.Fatalf("expected cloud vendor, got %+v", result.Vendor)
	}
	if len(result.VendorCandidates) != 1 {
		t.Fatalf("expected local vendor candidates merged, got %d", len(result.VendorCandidates))
	}
}

func TestRouteCloudAssistFallsBackToLocalOnCloudFailure(t *testing.T) {
	local := &localFake{result: &domain.AnalysisResult{
		Method:           domain.MethodLocalOCR,
		VendorCandidates: []domain.Candidate{{Value: "AC?E", Confidence: 0.3, Method: domain.MethodLocalOCR}},
	}}
	cloud := &cloudFake{available: true, err: domain.NewExtractionError(domain.ErrKindServer, "boom", nil)}
	uc := NewHybridRouteUseCase(
		local,
		cloud,
		&probeFake{online: true},
		nil,
		&settingsFake{cloudEnabled: true, assistThreshold: 0.8, minAcceptable: 0.55},
		NewBackendHealthTracker(time.Minute),
		domain.AnalysisLocalWithCloudAssist,
	)

	decision := domain.CloudAllowedDecision(5)
	result, err := uc.Route(context.Background(), testRequest(), &decision)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if result.Mode != domain.ModeLocalFallback {
		t.Fatalf("expected local fallback, got %s", result.Mode)
	}
	stats := uc.Stats()
	if stats.CloudFallbacks != 1 {
		t.Fatalf("expected cloudFallbacks=1, got %d", stats.CloudFallbacks)
	}
	if stats.AverageFallbackConfidence != 0.3 {
		t.Fatalf("expected fallback confidence 0.3, got %f", stats.AverageFallbackConfidence)
	}
}

func TestRouteRejectsEmptyRequest(t *testing.T) {
	uc := newRouter(&localFake{}, &cloudFake{}, &settingsFake{cloudEnabled: true})
	_, err := uc.Route(context.Background(), &domain.AnalysisRequest{}, nil)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
