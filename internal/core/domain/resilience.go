package domain

// ResilienceConfig groups five independent, opt-in sub-configs (spec.md §3).
type ResilienceConfig struct {
	CircuitBreaker *CircuitBreakerConfig `json:"circuitBreaker,omitempty"`
	Retry          *RetryConfig          `json:"retry,omitempty"`
	Timeout        *TimeoutConfig        `json:"timeout,omitempty"`
	HealthCheck    *HealthCheckConfig    `json:"healthCheck,omitempty"`
	Fallback       *FallbackConfig       `json:"fallback,omitempty"`
}

// CircuitBreakerConfig configures the per-(tenant,route,upstream) breaker.
type CircuitBreakerConfig struct {
	Enabled          bool `json:"enabled"`
	FailureThreshold int  `json:"failureThreshold"`
	SuccessThreshold int  `json:"successThreshold"`
	TimeoutMS        int  `json:"timeout"`
}

// WithDefaults returns a copy with spec.md §3 defaults applied to zero fields.
func (c CircuitBreakerConfig) WithDefaults() CircuitBreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 2
	}
	if c.TimeoutMS <= 0 {
		c.TimeoutMS = 30000
	}
	return c
}

// RetryConfig configures the retry-with-backoff wrapper.
type RetryConfig struct {
	Enabled              bool  `json:"enabled"`
	MaxRetries           int   `json:"maxRetries"`
	BaseDelayMS          int   `json:"baseDelayMs"`
	MaxDelayMS           int   `json:"maxDelayMs"`
	RetryableStatusCodes []int `json:"retryableStatusCodes,omitempty"`
}

// WithDefaults returns a copy with spec.md §3 defaults applied.
func (c RetryConfig) WithDefaults() RetryConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BaseDelayMS <= 0 {
		c.BaseDelayMS = 1000
	}
	if c.MaxDelayMS <= 0 {
		c.MaxDelayMS = 30000
	}
	if len(c.RetryableStatusCodes) == 0 {
		c.RetryableStatusCodes = []int{500, 502, 503, 504}
	}
	return c
}

// TimeoutConfig resolves a per-request timeout, optionally by HTTP method.
type TimeoutConfig struct {
	Default  int            `json:"default,omitempty"` // milliseconds
	ByMethod map[string]int `json:"byMethod,omitempty"`
}

// HealthCheckConfig configures the background active health prober.
type HealthCheckConfig struct {
	Enabled            bool   `json:"enabled"`
	Endpoint           string `json:"endpoint"`
	IntervalMS         int    `json:"intervalMs"`
	TimeoutMS          int    `json:"timeoutMs"`
	HealthyThreshold   int    `json:"healthyThreshold"`
	UnhealthyThreshold int    `json:"unhealthyThreshold"`
}

// WithDefaults returns a copy with spec.md §3/§4.7 defaults applied, clamping
// IntervalMS to the 5000ms floor spec.md §4.7 requires.
func (c HealthCheckConfig) WithDefaults() HealthCheckConfig {
	if c.IntervalMS < 5000 {
		c.IntervalMS = 5000
	}
	if c.HealthyThreshold <= 0 {
		c.HealthyThreshold = 2
	}
	if c.UnhealthyThreshold <= 0 {
		c.UnhealthyThreshold = 3
	}
	return c
}

// FallbackContentType is a closed enumeration of fallback body content types.
type FallbackContentType string

const (
	FallbackJSON FallbackContentType = "application/json"
	FallbackText FallbackContentType = "text/plain"
	FallbackHTML FallbackContentType = "text/html"
)

// FallbackConfig configures the static fallback response.
type FallbackConfig struct {
	Enabled     bool                 `json:"enabled"`
	StatusCode  int                  `json:"statusCode"`
	ContentType FallbackContentType  `json:"contentType"`
	Body        string               `json:"body"`
}
