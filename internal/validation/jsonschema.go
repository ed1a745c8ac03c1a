package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hassviz/hassviz/pkg/schema"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// automationSchemaJSON is the JSON Schema for automation configurations.
// Typing is deliberately loose: the host platform accepts shorthand forms
// (a bare mapping where a list is expected, a template string where a
// condition mapping is expected), so the schema constrains shape without
// rejecting valid shorthand. Unknown keys are permitted.
const automationSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://hassviz.dev/schemas/automation.json",
  "type": "object",
  "properties": {
    "id": { "type": ["string", "number"] },
    "alias": { "type": "string" },
    "description": { "type": "string" },
    "mode": {
      "type": "string",
      "enum": ["single", "restart", "queued", "parallel"]
    },
    "max": { "type": "integer", "minimum": 1 },
    "max_exceeded": { "type": "string" },
    "initial_state": { "type": ["boolean", "string"] },
    "variables": { "type": "object" },
    "trace": { "type": "object" },
    "trigger": { "$ref": "#/$defs/section" },
    "triggers": { "$ref": "#/$defs/section" },
    "condition": { "$ref": "#/$defs/section" },
    "conditions": { "$ref": "#/$defs/section" },
    "action": { "$ref": "#/$defs/section" },
    "actions": { "$ref": "#/$defs/section" }
  },
  "additionalProperties": true,
  "$defs": {
    "section": { "type": ["array", "object", "string"] }
  }
}`

// JSONSchemaValidator validates automation configurations against the
// embedded JSON Schema (Draft 2020-12). It is safe for concurrent use:
// the compiled schema is immutable after construction.
type JSONSchemaValidator struct {
	automationSchema *jsonschema.Schema
}

// NewJSONSchemaValidator compiles the automation schema.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(automationSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal automation schema: %w", err)
	}
	if err := c.AddResource("https://hassviz.dev/schemas/automation.json", doc); err != nil {
		return nil, fmt.Errorf("add automation schema resource: %w", err)
	}

	compiled, err := c.Compile("https://hassviz.dev/schemas/automation.json")
	if err != nil {
		return nil, fmt.Errorf("compile automation schema: %w", err)
	}

	return &JSONSchemaValidator{automationSchema: compiled}, nil
}

// ValidateConfig validates a raw automation configuration. A non-mapping
// top level is rejected before schema evaluation.
func (v *JSONSchemaValidator) ValidateConfig(config any) error {
	if config == nil {
		return schema.NewError(schema.ErrCodeMalformed, "automation configuration is nil")
	}
	if _, ok := config.(map[string]any); !ok {
		return schema.NewErrorf(schema.ErrCodeMalformed,
			"automation configuration must be a mapping, got %T", config)
	}

	doc, err := toJSONValue(config)
	if err != nil {
		return schema.NewError(schema.ErrCodeMalformed, "failed to serialize automation configuration").WithCause(err)
	}

	if err := v.automationSchema.Validate(doc); err != nil {
		return toVizError(err)
	}
	return nil
}

// toJSONValue round-trips a Go value through JSON encoding so that numeric
// values become json.Number, as the jsonschema library requires.
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

// toVizError converts a jsonschema.ValidationError into a VizError carrying
// every leaf violation with its instance location.
func toVizError(err error) *schema.VizError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	}

	if len(violations) == 1 {
		return schema.NewError(schema.ErrCodeValidation, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}

	msg := fmt.Sprintf("validation failed with %d errors", len(violations))
	return schema.NewError(schema.ErrCodeValidation, msg).
		WithDetails(map[string]any{"violations": violations})
}

// collectViolations walks a ValidationError tree and collects leaf messages
// with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
