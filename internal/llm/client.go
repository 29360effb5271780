package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// DefaultTemperature keeps audits deterministic.
const DefaultTemperature = 0

// Client is the structured-generation contract used by the auditors. It does
// not retry; a failed call surfaces as a *ProviderError.
type Client struct {
	provider    Provider
	temperature float64
	timeout     time.Duration
}

// ClientOptions tune a Client. The zero value is valid.
type ClientOptions struct {
	Temperature float64

	// Timeout bounds each call. Zero means no bound beyond ctx.
	Timeout time.Duration
}

// NewClient creates a Client on top of provider.
func NewClient(provider Provider, opts *ClientOptions) *Client {
	c := &Client{provider: provider, temperature: DefaultTemperature}
	if opts != nil {
		c.temperature = opts.Temperature
		c.timeout = opts.Timeout
	}
	return c
}

// Provider returns the backend the client calls.
func (c *Client) Provider() Provider {
	return c.provider
}

// Generate calls the provider with instructions and input, validates the
// response against schema and decodes it into out.
func (c *Client) Generate(ctx context.Context, instructions, input string, schema *ResponseSchema, out any) error {
	if schema == nil {
		return errors.New("Generate requires a response schema")
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	name := c.provider.Name()
	start := time.Now()

	text, err := c.provider.Generate(ctx, &Request{
		Instructions: instructions,
		Input:        input,
		Temperature:  c.temperature,
		Schema:       schema,
	})

	slog.Debug("Structured generation finished",
		"provider", name,
		"schema", schema.Name,
		"duration", time.Since(start),
		"error", err)

	if err != nil {
		var pe *ProviderError
		if errors.As(err, &pe) {
			return err
		}
		return providerError(name, "generate", err)
	}

	inst, err := schema.Validate(strings.TrimSpace(text))
	if err != nil {
		return providerError(name, "validate", err)
	}

	if err := decode(inst, out); err != nil {
		return providerError(name, "decode", err)
	}

	return nil
}

func decode(inst any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		ErrorUnused: true,
		DecodeHook:  mapstructure.DecodeHookFuncType(integralNumberHook),
		Result:      out,
	})
	if err != nil {
		return fmt.Errorf("creating decoder: %w", err)
	}
	return dec.Decode(inst)
}

// integralNumberHook converts a json.Number such as "3.0" or "3e0", which the
// schema accepts as an integer, into an int64 for integer targets.
func integralNumberHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	n, ok := data.(json.Number)
	if !ok {
		return data, nil
	}

	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
	default:
		return data, nil
	}

	if _, err := n.Int64(); err == nil {
		return data, nil
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt64 {
		return data, nil
	}
	return int64(f), nil
}
