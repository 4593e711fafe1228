package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/abalcerek/docuscan/internal/core/domain"
	"github.com/abalcerek/docuscan/internal/core/ports"
)

// HybridRouteUseCase routes one analysis request between the local analyzer
// and the cloud gateway. The use case instance owns the cross-request shared
// state (backend health, routing stats); everything else is per-request.
type HybridRouteUseCase struct {
	local    ports.LocalAnalyzer
	cloud    ports.CloudGateway
	probe    ports.ConnectivityProbe
	policy   ports.AccessPolicy
	settings ports.SettingsStore

	health *BackendHealthTracker
	stats  *RoutingStats
	mode   domain.AnalysisMode
}

func NewHybridRouteUseCase(
	local ports.LocalAnalyzer,
	cloud ports.CloudGateway,
	probe ports.ConnectivityProbe,
	policy ports.AccessPolicy,
	settings ports.SettingsStore,
	health *BackendHealthTracker,
	mode domain.AnalysisMode,
) *HybridRouteUseCase {
	if health == nil {
		health = NewBackendHealthTracker(DefaultBackendCooldown)
	}
	return &HybridRouteUseCase{
		local:    local,
		cloud:    cloud,
		probe:    probe,
		policy:   policy,
		settings: settings,
		health:   health,
		stats:    NewRoutingStats(),
		mode:     mode,
	}
}

// Stats returns a read-only snapshot of the routing counters.
func (uc *HybridRouteUseCase) Stats() domain.RoutingStatsSnapshot {
	return uc.stats.Snapshot()
}

// BackendHealth returns the current backend health status.
func (uc *HybridRouteUseCase) BackendHealth() domain.BackendHealthStatus {
	return uc.health.Status()
}

// AnalysisMode describes the effective routing strategy under the current
// settings.
func (uc *HybridRouteUseCase) AnalysisMode() domain.AnalysisMode {
	if !uc.settings.CloudAnalysisEnabled() {
		return domain.AnalysisLocalOnly
	}
	return uc.mode
}

// routed is one terminal routing outcome, carried back to Route so stats are
// recorded only for requests that actually completed.
type routed struct {
	result          domain.AnalysisResult
	localOnly       bool
	cloudAssisted   bool
	localFallback   bool
	cloudFallback   bool
	localConfidence float64
}

// Route executes the per-request control flow. A nil decision puts the
// router in legacy/standalone mode, deriving one from settings, connectivity
// and backend health. The returned result is always annotated with an
// extraction mode; the only error surfaced for a failing cloud path is the
// authentication case, which requires a user-visible sign-in action.
func (uc *HybridRouteUseCase) Route(
	ctx context.Context,
	req *domain.AnalysisRequest,
	decision *domain.RoutingDecision,
) (*domain.AnalysisResult, error) {
	if req == nil || len(req.Lines) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "route analysis", errors.New("empty analysis request"))
	}

	resolved := uc.resolveDecision(ctx, req, decision)

	var outcome routed
	var err error
	switch {
	case !resolved.CloudAllowed():
		outcome, err = uc.routeLocalOnly(ctx, req, resolved.Reason())
	case uc.AnalysisMode() == domain.AnalysisLocalWithCloudAssist:
		outcome, err = uc.routeCloudAssist(ctx, req)
	default:
		outcome, err = uc.routeCloudFirst(ctx, req)
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		// Abandoned requests never touch the stats.
		return nil, ctxErr
	}
	if err != nil {
		return nil, err
	}

	uc.stats.recordRouted()
	switch {
	case outcome.localOnly:
		uc.stats.recordLocalOnly()
	case outcome.cloudAssisted:
		uc.stats.recordCloudAssisted()
	case outcome.cloudFallback:
		uc.stats.recordCloudFallback(outcome.localConfidence)
	case outcome.localFallback:
		uc.stats.recordLocalFallback()
	}

	return &outcome.result, nil
}

// resolveDecision trusts a supplied decision verbatim and otherwise derives
// one locally. Standalone derivation has no visibility into auth or tier
// state, so it resolves to local unless an access policy confirms cloud
// access: defaulting unauthenticated callers onto metered cloud
// infrastructure is the one mistake this layer must never make.
func (uc *HybridRouteUseCase) resolveDecision(
	ctx context.Context,
	req *domain.AnalysisRequest,
	decision *domain.RoutingDecision,
) domain.RoutingDecision {
	if decision != nil {
		return *decision
	}

	if !uc.settings.CloudAnalysisEnabled() {
		return domain.LocalOnlyDecision(domain.ReasonDisabledInSettings)
	}
	if uc.probe != nil && !uc.probe.IsOnline(ctx) {
		return domain.LocalOnlyDecision(domain.ReasonOffline)
	}
	if uc.health.InCooldown() {
		return domain.LocalOnlyDecision(domain.ReasonCloudUnavailable)
	}
	if uc.policy == nil {
		return domain.LocalOnlyDecision(domain.ReasonNotSignedIn)
	}

	policyDecision, err := uc.policy.Decide(ctx, req)
	if err != nil {
		slog.Warn("access_policy_unreachable", "error", err)
		return domain.LocalOnlyDecision(domain.ReasonNotSignedIn)
	}
	return policyDecision
}

func (uc *HybridRouteUseCase) routeLocalOnly(
	ctx context.Context,
	req *domain.AnalysisRequest,
	reason domain.LocalOnlyReason,
) (routed, error) {
	result, err := uc.local.Analyze(ctx, req)
	if err != nil {
		return routed{}, fmt.Errorf("local analysis: %w", err)
	}

	annotated := result.WithMode(modeForLocalOnlyReason(reason))
	return routed{
		result:        annotated,
		localOnly:     reason == domain.ReasonDisabledInSettings,
		localFallback: reason != domain.ReasonDisabledInSettings,
	}, nil
}

func modeForLocalOnlyReason(reason domain.LocalOnlyReason) domain.ExtractionMode {
	switch reason {
	case domain.ReasonOffline:
		return domain.ModeOfflineFallback
	case domain.ReasonDisabledInSettings:
		return domain.ModeLocalOnly
	case domain.ReasonQuotaExhausted:
		return domain.ModeRateLimitFallback
	default:
		return domain.ModeLocalFallback
	}
}

// routeCloudFirst attempts cloud analysis, optionally with a concurrent
// local candidates pass, and degrades to local on everything except an
// authentication failure.
func (uc *HybridRouteUseCase) routeCloudFirst(ctx context.Context, req *domain.AnalysisRequest) (routed, error) {
	if !uc.cloud.IsAvailable(ctx) {
		return uc.fallbackToLocal(ctx, req, nil, nil)
	}

	localCh := uc.spawnCandidatesPass(ctx, req)

	cloudResult, cloudErr := uc.cloud.AnalyzeDocument(ctx, req)
	localResult := <-localCh

	if cloudErr == nil {
		uc.health.RecordSuccess()
		merged := MergeResults(cloudResult, localResult)
		annotated := merged.WithMode(domain.ModeCloud)
		return routed{result: annotated, cloudAssisted: true}, nil
	}

	if abandonedErr := abandonment(ctx, cloudErr); abandonedErr != nil {
		return routed{}, abandonedErr
	}

	extractionErr := classifyRouted(cloudErr)
	uc.health.RecordFailure(extractionErr)

	if extractionErr.Kind == domain.ErrKindAuthenticationRequired {
		return routed{}, domain.WrapError(domain.ErrUnauthorized, "cloud analysis", extractionErr)
	}

	return uc.fallbackToLocal(ctx, req, localResult, extractionErr)
}

// routeCloudAssist runs local analysis first and spends cloud quota only
// when the local confidence clears neither configured threshold.
func (uc *HybridRouteUseCase) routeCloudAssist(ctx context.Context, req *domain.AnalysisRequest) (routed, error) {
	localResult, err := uc.local.Analyze(ctx, req)
	if err != nil {
		return routed{}, fmt.Errorf("local analysis: %w", err)
	}

	confidence := EvaluateLocalConfidence(localResult)
	if confidence >= uc.settings.CloudAssistThreshold() || confidence >= uc.settings.MinimumAcceptableConfidence() {
		annotated := localResult.WithMode(domain.ModeLocalOnly)
		return routed{result: annotated, localOnly: true}, nil
	}

	if !uc.cloud.IsAvailable(ctx) {
		annotated := localResult.WithMode(domain.ModeLocalFallback)
		return routed{result: annotated, localFallback: true}, nil
	}

	cloudResult, cloudErr := uc.cloud.AnalyzeDocument(ctx, req)
	if cloudErr == nil {
		uc.health.RecordSuccess()
		merged := MergeResults(cloudResult, localResult)
		annotated := merged.WithMode(domain.ModeCloud)
		return routed{result: annotated, cloudAssisted: true}, nil
	}

	if abandonedErr := abandonment(ctx, cloudErr); abandonedErr != nil {
		return routed{}, abandonedErr
	}

	extractionErr := classifyRouted(cloudErr)
	uc.health.RecordFailure(extractionErr)

	if extractionErr.Kind == domain.ErrKindAuthenticationRequired {
		return routed{}, domain.WrapError(domain.ErrUnauthorized, "cloud analysis", extractionErr)
	}

	return uc.annotateFallback(localResult, extractionErr), nil
}

// spawnCandidatesPass runs local analysis alongside the cloud call in
// high-accuracy mode, feeding the merger on cloud success. The pass is an
// optional enhancement: its failure is logged and swallowed so it can never
// abort a successful cloud result. The returned channel always yields
// exactly one value.
func (uc *HybridRouteUseCase) spawnCandidatesPass(ctx context.Context, req *domain.AnalysisRequest) <-chan *domain.AnalysisResult {
	resultCh := make(chan *domain.AnalysisResult, 1)
	if !uc.settings.HighAccuracyMode() {
		resultCh <- nil
		return resultCh
	}

	go func() {
		result, err := uc.local.Analyze(ctx, req)
		if err != nil {
			slog.Warn("local_candidates_pass_failed", "error", err)
			resultCh <- nil
			return
		}
		resultCh <- result
	}()
	return resultCh
}

// fallbackToLocal serves the degraded-but-complete local result after a
// cloud path could not. A rate-limited cloud call keeps its quota metadata
// on the result for the upgrade-prompt UI.
func (uc *HybridRouteUseCase) fallbackToLocal(
	ctx context.Context,
	req *domain.AnalysisRequest,
	precomputed *domain.AnalysisResult,
	cloudErr *domain.ExtractionError,
) (routed, error) {
	localResult := precomputed
	if localResult == nil {
		var err error
		localResult, err = uc.local.Analyze(ctx, req)
		if err != nil {
			return routed{}, fmt.Errorf("local fallback analysis: %w", err)
		}
	}

	if cloudErr == nil {
		// Gateway unavailable; no cloud attempt was made.
		annotated := localResult.WithMode(domain.ModeLocalFallback)
		return routed{result: annotated, localFallback: true}, nil
	}
	return uc.annotateFallback(localResult, cloudErr), nil
}

func (uc *HybridRouteUseCase) annotateFallback(localResult *domain.AnalysisResult, cloudErr *domain.ExtractionError) routed {
	confidence := EvaluateLocalConfidence(localResult)

	annotated := localResult.WithMode(domain.ModeLocalFallback)
	if cloudErr.IsRateLimit() {
		annotated = annotated.WithMode(domain.ModeRateLimitFallback).WithRateLimit(cloudErr.RateLimit)
	}

	slog.Info("cloud_fallback",
		"error_kind", string(cloudErr.Kind),
		"mode", string(annotated.Mode),
		"local_confidence", confidence,
	)

	return routed{result: annotated, cloudFallback: true, localConfidence: confidence}
}

// abandonment reports the context error of a caller-cancelled cloud call.
// An abandoned request never feeds the health tracker: its failure says
// nothing about the backend. Taxonomy errors are exempt even when their
// cause chain reaches a context error, since the gateway already judged
// them a backend outcome.
func abandonment(ctx context.Context, cloudErr error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if _, ok := domain.AsExtractionError(cloudErr); ok {
		return nil
	}
	if errors.Is(cloudErr, context.Canceled) || errors.Is(cloudErr, context.DeadlineExceeded) {
		return cloudErr
	}
	return nil
}

// classifyRouted normalizes a cloud gateway failure into the taxonomy. The
// gateway classifies its own errors; anything that still escapes is treated
// as a transient network failure.
func classifyRouted(err error) *domain.ExtractionError {
	if extractionErr, ok := domain.AsExtractionError(err); ok {
		return extractionErr
	}
	return domain.NewExtractionError(domain.ErrKindNetwork, err.Error(), err)
}
