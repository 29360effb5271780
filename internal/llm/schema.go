package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	invopop "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// defaultPrinter is used to format schema validation error messages.
var defaultPrinter = message.NewPrinter(language.English)

// ResponseSchema is a strict JSON schema describing a model response. Every
// object forbids additional properties and requires all of its properties.
type ResponseSchema struct {
	Name        string
	Description string
	Document    map[string]any

	compiled *jsonschema.Schema
}

// SchemaFor reflects T into a strict ResponseSchema.
func SchemaFor[T any](name, description string) (*ResponseSchema, error) {
	r := &invopop.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: false,
		ExpandedStruct:            true,
	}

	var zero T
	raw, err := json.Marshal(r.Reflect(&zero))
	if err != nil {
		return nil, fmt.Errorf("reflecting schema %s: %w", name, err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("reflecting schema %s: %w", name, err)
	}

	delete(doc, "$schema")
	delete(doc, "$id")

	return NewResponseSchema(name, description, doc)
}

// MustSchemaFor is SchemaFor for package-level schemas.
func MustSchemaFor[T any](name, description string) *ResponseSchema {
	s, err := SchemaFor[T](name, description)
	if err != nil {
		panic(err)
	}
	return s
}

// NewResponseSchema makes doc strict and compiles it.
func NewResponseSchema(name, description string, doc map[string]any) (*ResponseSchema, error) {
	if name == "" {
		return nil, errors.New("response schema requires a name")
	}

	strictify(doc)

	compiler := jsonschema.NewCompiler()
	resource := name + ".schema.json"
	if err := compiler.AddResource(resource, doc); err != nil {
		return nil, fmt.Errorf("failed to add %s resource: %w", resource, err)
	}

	sch, err := compiler.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", resource, err)
	}

	return &ResponseSchema{
		Name:        name,
		Description: description,
		Document:    doc,
		compiled:    sch,
	}, nil
}

// JSON renders the schema document.
func (s *ResponseSchema) JSON() ([]byte, error) {
	return json.Marshal(s.Document)
}

// Validate parses text as JSON and checks it against the schema, returning
// the decoded instance.
func (s *ResponseSchema) Validate(text string) (any, error) {
	inst, err := jsonschema.UnmarshalJSON(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w", err)
	}

	if err := s.compiled.Validate(inst); err != nil {
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			return nil, fmt.Errorf("schema: %w", err)
		}

		var errs []string
		collectSchemaErrors(ve, &errs)
		return nil, fmt.Errorf("response does not match %s: %s", s.Name, strings.Join(errs, "; "))
	}

	return inst, nil
}

func collectSchemaErrors(ve *jsonschema.ValidationError, errs *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/"
		if len(ve.InstanceLocation) > 0 {
			loc = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		*errs = append(*errs, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(defaultPrinter)))
		return
	}
	for _, c := range ve.Causes {
		collectSchemaErrors(c, errs)
	}
}

// strictify walks a schema document, closing every object and marking all of
// its properties required.
func strictify(node any) {
	switch v := node.(type) {
	case map[string]any:
		if props, ok := v["properties"].(map[string]any); ok {
			v["type"] = "object"
			v["additionalProperties"] = false

			required := make([]any, 0, len(props))
			for _, k := range sortedKeys(props) {
				required = append(required, k)
				strictify(props[k])
			}
			v["required"] = required
		}
		if items, ok := v["items"]; ok {
			strictify(items)
		}
	case []any:
		for _, item := range v {
			strictify(item)
		}
	}
}

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}

// compact renders a schema document without whitespace for provider payloads.
func compact(doc map[string]any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return "{}"
	}
	return strings.TrimSpace(buf.String())
}
