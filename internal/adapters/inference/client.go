// Package inference adapts external text-generation providers to the
// analysis pipeline.
package inference

import "context"

// Client is an external inference collaborator.
type Client interface {
	// Generate returns free-form text for prompt.
	Generate(ctx context.Context, prompt string) (string, error)
	// Ping is a read-only reachability check.
	Ping(ctx context.Context) error
	// Name identifies the provider in logs.
	Name() string
}

// None is the offline provider. Every call reports ErrUnavailable so the
// analyzer always uses the fallback evaluator.
type None struct{}

func (None) Generate(context.Context, string) (string, error) { return "", ErrUnavailable }
func (None) Ping(context.Context) error                       { return ErrUnavailable }
func (None) Name() string                                     { return "none" }
