// Package llm wraps the inference backends behind one structured-generation
// contract: instructions and input go in, schema-conformant JSON comes out.
package llm

import (
	"context"
	"fmt"

	"github.com/callaudit/callaudit/internal/models"
)

//go:generate go tool mockgen -destination mocks/provider.go -package mocks . Provider

// Provider is a single inference backend.
type Provider interface {
	// Name identifies the backend in logs and errors.
	Name() string

	// Generate runs one completion. When req.Schema is set the returned text
	// must be a JSON document conforming to it, otherwise it is free-form.
	Generate(ctx context.Context, req *Request) (string, error)
}

// Request is one structured-generation call.
type Request struct {
	Instructions string
	Input        string
	Temperature  float64

	// Schema is optional. Providers that support native structured output
	// pass it through; the Client validates the result either way.
	Schema *ResponseSchema
}

// ProviderError is returned for any failed or non-conformant inference call.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", models.ErrProvider, e.Provider, e.Op, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause to errors.Is/As.
func (e *ProviderError) Unwrap() []error {
	return []error{models.ErrProvider, e.Err}
}

func providerError(provider, op string, err error) error {
	return &ProviderError{Provider: provider, Op: op, Err: err}
}
