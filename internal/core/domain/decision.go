package domain

// LocalOnlyReason explains why a request was restricted to local analysis.
type LocalOnlyReason string

const (
	ReasonOffline            LocalOnlyReason = "offline"
	ReasonNotSignedIn        LocalOnlyReason = "not_signed_in"
	ReasonQuotaExhausted     LocalOnlyReason = "quota_exhausted"
	ReasonCloudUnavailable   LocalOnlyReason = "cloud_unavailable"
	ReasonDisabledInSettings LocalOnlyReason = "disabled_in_settings"
)

type decisionKind int

const (
	decisionLocalOnly decisionKind = iota
	decisionCloudAllowed
)

// RoutingDecision is the local-only-vs-cloud-allowed verdict for one request.
// It is a tagged union: either localOnly with a reason, or cloudAllowed with
// the remaining quota. The zero value is localOnly without a reason, so a
// forgotten decision can never grant cloud access.
type RoutingDecision struct {
	kind      decisionKind
	reason    LocalOnlyReason
	remaining int
}

// LocalOnlyDecision restricts the request to the local analyzer.
func LocalOnlyDecision(reason LocalOnlyReason) RoutingDecision {
	return RoutingDecision{kind: decisionLocalOnly, reason: reason}
}

// CloudAllowedDecision permits a cloud attempt with the given remaining quota.
func CloudAllowedDecision(remaining int) RoutingDecision {
	return RoutingDecision{kind: decisionCloudAllowed, remaining: remaining}
}

// CloudAllowed reports whether the decision permits a cloud attempt.
func (d RoutingDecision) CloudAllowed() bool {
	return d.kind == decisionCloudAllowed
}

// Reason returns the local-only reason. Meaningful only when CloudAllowed is
// false.
func (d RoutingDecision) Reason() LocalOnlyReason {
	return d.reason
}

// Remaining returns the remaining cloud quota. Meaningful only when
// CloudAllowed is true.
func (d RoutingDecision) Remaining() int {
	return d.remaining
}

func (d RoutingDecision) String() string {
	if d.kind == decisionCloudAllowed {
		return "cloud_allowed"
	}
	if d.reason == "" {
		return "local_only"
	}
	return "local_only(" + string(d.reason) + ")"
}

// AnalysisMode is the configured routing strategy of the service.
type AnalysisMode string

const (
	AnalysisLocalOnly            AnalysisMode = "local_only"
	AnalysisAlwaysCloud          AnalysisMode = "always_cloud"
	AnalysisCloudLocalFallback   AnalysisMode = "cloud_with_local_fallback"
	AnalysisLocalWithCloudAssist AnalysisMode = "local_with_cloud_assist"
)

// ParseAnalysisMode maps a config string to an AnalysisMode, defaulting to
// cloud-with-local-fallback.
func ParseAnalysisMode(s string) AnalysisMode {
	switch AnalysisMode(s) {
	case AnalysisLocalOnly, AnalysisAlwaysCloud, AnalysisCloudLocalFallback, AnalysisLocalWithCloudAssist:
		return AnalysisMode(s)
	default:
		return AnalysisCloudLocalFallback
	}
}
