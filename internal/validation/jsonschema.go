package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rendis/flowlens/pkg/schema"
)

// settingsSchemaJSON is the JSON Schema for analyzer settings validation.
// Embedded as a constant to avoid filesystem dependencies.
const settingsSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://flowlens.dev/schemas/settings.json",
  "type": "object",
  "properties": {
    "workflow_marker": { "type": "string", "minLength": 1 },
    "run_marker": { "type": "string", "minLength": 1 },
    "activity_marker": { "type": "string", "minLength": 1 },
    "activity_calls": {
      "type": "array",
      "items": { "type": "string", "minLength": 1 }
    },
    "child_calls": {
      "type": "array",
      "items": { "type": "string", "minLength": 1 }
    },
    "decision_func": { "type": "string", "minLength": 1 },
    "loop_unroll": { "type": "integer", "minimum": -1, "maximum": 8 }
  },
  "additionalProperties": false
}`

// SettingsValidator validates analyzer options against the settings JSON
// Schema. It is safe for concurrent use.
type SettingsValidator struct {
	settingsSchema *jsonschema.Schema
}

// NewSettingsValidator compiles the settings schema once up front.
func NewSettingsValidator() (*SettingsValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(settingsSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal settings schema: %w", err)
	}
	if err := c.AddResource("https://flowlens.dev/schemas/settings.json", doc); err != nil {
		return nil, fmt.Errorf("add settings schema resource: %w", err)
	}
	compiled, err := c.Compile("https://flowlens.dev/schemas/settings.json")
	if err != nil {
		return nil, fmt.Errorf("compile settings schema: %w", err)
	}
	return &SettingsValidator{settingsSchema: compiled}, nil
}

// ValidateOptions validates an Options value against the settings schema.
func (v *SettingsValidator) ValidateOptions(opts schema.Options) error {
	doc, err := toJSONValue(opts)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize options").WithCause(err)
	}
	if err := v.settingsSchema.Validate(doc); err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "invalid analyzer options: %v", err).WithCause(err)
	}
	return nil
}

// ValidateRaw validates raw settings JSON (e.g. a settings file) before it
// is unmarshalled into Options.
func (v *SettingsValidator) ValidateRaw(raw []byte) error {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "settings are not valid JSON: %v", err).WithCause(err)
	}
	if err := v.settingsSchema.Validate(doc); err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "invalid settings: %v", err).WithCause(err)
	}
	return nil
}

// toJSONValue round-trips a Go value through JSON so the validator sees
// the same shape a settings file would produce.
func toJSONValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(data)))
}
