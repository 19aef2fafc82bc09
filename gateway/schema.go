package gateway

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/c360/plotstream/errors"
)

// controlSchema constrains the client control protocol before any field is
// interpreted. Shape errors are rejected here; parameter domain errors are
// reported by the parameter set afterwards.
const controlSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["type"],
  "properties": {
    "type": {
      "type": "string",
      "enum": ["set", "reset", "viewport", "clear_viewport", "specs"]
    },
    "name": {"type": "string", "minLength": 1},
    "value": {},
    "extent": {
      "type": "object",
      "required": ["min_x", "max_x", "min_y", "max_y"],
      "properties": {
        "min_x": {"type": "number"},
        "max_x": {"type": "number"},
        "min_y": {"type": "number"},
        "max_y": {"type": "number"}
      },
      "additionalProperties": false
    }
  },
  "allOf": [
    {
      "if": {"properties": {"type": {"const": "set"}}},
      "then": {"required": ["type", "name", "value"]}
    },
    {
      "if": {"properties": {"type": {"const": "reset"}}},
      "then": {"required": ["type", "name"]}
    },
    {
      "if": {"properties": {"type": {"const": "viewport"}}},
      "then": {"required": ["type", "extent"]}
    }
  ],
  "additionalProperties": false
}`

// validator wraps the compiled control message schema
type validator struct {
	schema *gojsonschema.Schema
}

func newValidator() (*validator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(controlSchema))
	if err != nil {
		return nil, errors.WrapFatal(err, "gateway", "newValidator", "compile control schema")
	}
	return &validator{schema: schema}, nil
}

// validate checks a raw control message against the protocol schema
func (v *validator) validate(raw []byte) error {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return errors.WrapInvalid(err, "gateway", "validate", "parse control message")
	}
	if result.Valid() {
		return nil
	}
	// report the first violation; one is enough to fix the message
	desc := result.Errors()[0].String()
	return errors.WrapInvalid(
		fmt.Errorf("control message rejected: %s", desc),
		"gateway", "validate", "schema check")
}
