package metrics

import "testing"

func TestNormalizeUpstreamLabel(t *testing.T) {
	tests := map[string]string{
		"http://example.com/":   "example.com",
		"https://example.com":   "example.com",
		"https://example.com/":  "example.com",
		"example.com":           "example.com",
	}
	for in, want := range tests {
		if got := NormalizeUpstreamLabel(in); got != want {
			t.Errorf("NormalizeUpstreamLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCircuitStateValue(t *testing.T) {
	tests := map[string]float64{
		"CLOSED":    0,
		"OPEN":      1,
		"HALF_OPEN": 2,
		"unknown":   0,
	}
	for state, want := range tests {
		if got := CircuitStateValue(state); got != want {
			t.Errorf("CircuitStateValue(%q) = %v, want %v", state, got, want)
		}
	}
}
