// Package agent defines the unit-of-work contract the scheduler invokes
// and the domain agents that implement it. New agent kinds are added by
// implementing Agent, never by embedding a base type.
package agent

import "context"

// Agent is a single analytical unit of work. Run performs one analysis
// pass and returns a structured payload. The context carries the
// invocation deadline; implementations doing external calls (model
// inference, network I/O) must respect it.
//
// Errors are classified with Transient and Fatal from this package.
// A plain error is treated as transient.
type Agent interface {
	ID() string
	Topic() string
	Run(ctx context.Context) (map[string]any, error)
}
