package domain

import "time"

// CircuitState is one of the three breaker states (spec.md §3/§4.5).
type CircuitState string

const (
	StateClosed   CircuitState = "CLOSED"
	StateOpen     CircuitState = "OPEN"
	StateHalfOpen CircuitState = "HALF_OPEN"
)

// CircuitBreakerStatus is the breaker's persisted, cache-resident record for
// one (tenantId, routeId, upstreamUrl) triple.
type CircuitBreakerStatus struct {
	State           CircuitState `json:"state"`
	Failures        int          `json:"failures"`
	Successes       int          `json:"successes"`
	LastFailureTime *time.Time   `json:"lastFailureTime"`
	LastStateChange time.Time    `json:"lastStateChange"`
}

// DefaultCircuitBreakerStatus is the CLOSED status new/corrupt records fall
// back to (spec.md §8: "invalid JSON maps to the default CLOSED status").
func DefaultCircuitBreakerStatus(now time.Time) CircuitBreakerStatus {
	return CircuitBreakerStatus{
		State:           StateClosed,
		LastStateChange: now,
	}
}

// HealthStatus is the health checker's persisted, cache-resident record for
// one (tenantId, routeId, upstreamUrl) triple.
type HealthStatus struct {
	Healthy              bool       `json:"healthy"`
	ConsecutiveSuccesses int        `json:"consecutiveSuccesses"`
	ConsecutiveFailures  int        `json:"consecutiveFailures"`
	LastCheckTime        *time.Time `json:"lastCheckTime"`
	LastSuccessTime      *time.Time `json:"lastSuccessTime"`
	LastFailureTime      *time.Time `json:"lastFailureTime"`
}

// DefaultHealthStatus is optimistic: healthy starts true until a threshold
// is crossed (spec.md §4.7).
func DefaultHealthStatus() HealthStatus {
	return HealthStatus{Healthy: true}
}
