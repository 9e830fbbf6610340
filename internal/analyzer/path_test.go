package analyzer

import (
	"testing"
)

func TestCleanPath(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"/users/{id}", "/users"},
		{"/Users/{userId}/Orders/{orderId}/", "/users//orders"},
		{"/health", "/health"},
		{"/", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := CleanPath(tt.path); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestPathSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		expected float64
	}{
		{"both empty", "/", "", 1.0},
		{"one empty", "/", "/users", 0.0},
		{"identical", "/users/orders", "/users/orders", 1.0},
		{"placeholders match", "/users/{id}", "/users/{userId}", 1.0},
		{"substring long segments", "/user/profile", "/users/profiles", 1.0},
		{"short substring does not match", "/api/v1", "/api/v12", 0.5},
		{"different length", "/users", "/users/{id}/orders", 1.0 / 3.0},
		{"no match", "/users", "/orders", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PathSimilarity(tt.a, tt.b)
			if diff := got - tt.expected; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("expected %f, got %f", tt.expected, got)
			}
			if back := PathSimilarity(tt.b, tt.a); back != got {
				t.Errorf("not symmetric: %f vs %f", got, back)
			}
		})
	}
}
