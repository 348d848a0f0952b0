package api

import (
	"context"
	"time"
)

const (
	// QueryTimeout is the default timeout for store lookups
	QueryTimeout = 10 * time.Second
	// RunTimeout bounds requests that call the reasoning backend: scenario runs and predictions
	RunTimeout = 15 * time.Minute
)

// WithQueryTimeout creates a context with query timeout
func WithQueryTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, QueryTimeout)
}
