package domain

// BackendHealthStatus is the process-wide view of the cloud analysis backend.
type BackendHealthStatus string

const (
	BackendUnknown  BackendHealthStatus = "unknown"
	BackendHealthy  BackendHealthStatus = "healthy"
	BackendDegraded BackendHealthStatus = "degraded"
	BackendDown     BackendHealthStatus = "down"
)
