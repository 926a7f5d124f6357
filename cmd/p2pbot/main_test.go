package main

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestGracefulShutdown(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"bare cancellation", context.Canceled, true},
		{"wrapped cancellation", fmt.Errorf("ingest loop: %w", context.Canceled), true},
		{"deadline exceeded", context.DeadlineExceeded, false},
		{"real failure", errors.New("dial tcp: connection refused"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		if got := gracefulShutdown(tt.err); got != tt.want {
			t.Errorf("%s: gracefulShutdown = %v, want %v", tt.name, got, tt.want)
		}
	}
}
