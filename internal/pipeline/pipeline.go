// Package pipeline defines the gateway's ordered filter chain.
//
// Stages are named and applied in declaration order: the first stage sees the
// request first and the response last. The ordering is an explicit list
// rather than numeric priorities so the contract is self-documenting and each
// stage remains unit-testable in isolation.
//
// The canonical order is:
//
//	recover -> request-id -> logging -> timeout -> rate-limit ->
//	tenant-slug -> auth -> canonicalize -> include -> (upstream proxy)
//
// Rate limiting runs before authentication (it guards unauthenticated
// endpoints), slug extraction runs before authentication (the resolved
// tenant is input to credential verification) and before canonicalization,
// and the include stage decorates the response on the way back out.
package pipeline

import (
	"fmt"
	"net/http"
)

// Middleware is a standard net/http middleware.
type Middleware func(http.Handler) http.Handler

// Stage is one named step of the chain.
type Stage struct {
	Name       string
	Middleware Middleware
}

// Chain is an ordered, immutable list of stages.
type Chain struct {
	stages []Stage
}

// NewChain builds a chain from the given stages. Stage names must be
// non-empty and unique; a violation is a programming error.
func NewChain(stages ...Stage) (*Chain, error) {
	seen := make(map[string]bool, len(stages))
	for _, s := range stages {
		if s.Name == "" {
			return nil, fmt.Errorf("pipeline stage with empty name")
		}
		if s.Middleware == nil {
			return nil, fmt.Errorf("pipeline stage %s has no middleware", s.Name)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("duplicate pipeline stage %s", s.Name)
		}
		seen[s.Name] = true
	}
	return &Chain{stages: append([]Stage(nil), stages...)}, nil
}

// Then wraps the terminal handler with every stage, first stage outermost.
func (c *Chain) Then(final http.Handler) http.Handler {
	h := final
	for i := len(c.stages) - 1; i >= 0; i-- {
		h = c.stages[i].Middleware(h)
	}
	return h
}

// Names returns the stage names in execution order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.stages))
	for i, s := range c.stages {
		names[i] = s.Name
	}
	return names
}
