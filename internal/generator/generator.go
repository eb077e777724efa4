// Package generator wraps the hosted generative-AI collaborator. The
// upstream call is treated as a single opaque, possibly slow, possibly
// failing operation; retries belong to the caller's own policy, not here.
package generator

import (
	"context"
	"errors"

	"github.com/promptforge-ai/promptforge/internal/scoring"
)

// ErrGeneration tags any upstream generation failure. Callers respond with
// the deterministic fallback template instead of an error page.
var ErrGeneration = errors.New("generator: upstream generation failed")

// Complexity is the requested depth of the enhanced prompt.
type Complexity string

const (
	ComplexitySimple        Complexity = "simple"
	ComplexityDetailed      Complexity = "detailed"
	ComplexityComprehensive Complexity = "comprehensive"
)

// ComplexityLevels lists the supported levels, in display order.
var ComplexityLevels = []Complexity{ComplexitySimple, ComplexityDetailed, ComplexityComprehensive}

// ParseComplexity normalizes a raw complexity string, defaulting to detailed.
func ParseComplexity(s string) Complexity {
	switch Complexity(s) {
	case ComplexitySimple, ComplexityDetailed, ComplexityComprehensive:
		return Complexity(s)
	default:
		return ComplexityDetailed
	}
}

// EnhanceRequest describes one enhancement call.
type EnhanceRequest struct {
	Input      string
	Type       scoring.Type
	Complexity Complexity
}

// Service is the generation collaborator interface consumed by the request
// pipeline. WithAPIKey returns a Service bound to a caller-supplied key
// (bring-your-own-key accounts); the receiver is unchanged.
type Service interface {
	Enhance(ctx context.Context, req EnhanceRequest) (string, error)
	Analyze(ctx context.Context, prompt string) (string, error)
	Embed(ctx context.Context, text string) ([]float32, error)
	WithAPIKey(key string) Service
}
