// Package identity generates prefixed sequential case ids.
package identity

import (
	"context"
	"fmt"
	"strings"
)

// sequenceWidth is the zero-pad width of the numeric part. Sequences past
// the width widen the id rather than wrap.
const sequenceWidth = 10

// SequenceSource hands out the next sequence number for a prefix. Calls must
// be atomic: concurrent callers never observe the same value for one prefix.
type SequenceSource interface {
	NextSequence(ctx context.Context, prefix string) (int64, error)
}

// Generator issues case ids of the form PREFIX-0000000123. It holds no state
// of its own; uniqueness comes from the sequence source.
type Generator struct {
	source SequenceSource
}

// NewGenerator creates a case id generator over the given sequence source.
func NewGenerator(source SequenceSource) *Generator {
	return &Generator{source: source}
}

// Generate returns the next case id for the prefix.
func (g *Generator) Generate(ctx context.Context, prefix string) (string, error) {
	if g == nil || g.source == nil {
		return "", fmt.Errorf("sequence source is not configured")
	}
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		return "", fmt.Errorf("prefix is required")
	}
	sequence, err := g.source.NextSequence(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("next sequence for %s: %w", prefix, err)
	}
	return fmt.Sprintf("%s-%0*d", prefix, sequenceWidth, sequence), nil
}
