package domain

// RoutingStatsSnapshot is a point-in-time read of the router's counters.
// Counters only ever increase; the snapshot itself is a plain value.
type RoutingStatsSnapshot struct {
	TotalRouted    int64 `json:"total_routed"`
	LocalOnly      int64 `json:"local_only"`
	CloudAssisted  int64 `json:"cloud_assisted"`
	LocalFallbacks int64 `json:"local_fallbacks"`
	CloudFallbacks int64 `json:"cloud_fallbacks"`

	// AverageFallbackConfidence is the running mean of the local confidence
	// observed just before a cloud fallback was taken.
	AverageFallbackConfidence float64 `json:"average_fallback_confidence"`
}
