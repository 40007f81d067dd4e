// Package validate is the schema validation collaborator for journey
// input. It checks leg shape (field presence, time/date formats) and
// the requested tier against embedded JSON Schemas and returns
// human-readable messages. Callers aggregate the messages and map any
// failure to a generic error status; field detail is logged, never
// returned to the caller.
package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/parametric-rail/railpledge/internal/domain"
)

const legSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["train", "start_stop", "start_time", "start_date",
	             "arrival_stop", "arrival_time", "arrival_date"],
	"properties": {
		"train":        {"type": "string", "minLength": 1},
		"start_stop":   {"type": "string", "minLength": 1},
		"start_time":   {"type": "string", "pattern": "^([01][0-9]|2[0-3]):[0-5][0-9]$"},
		"start_date":   {"type": "string", "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$"},
		"arrival_stop": {"type": "string", "minLength": 1},
		"arrival_time": {"type": "string", "pattern": "^([01][0-9]|2[0-3]):[0-5][0-9]$"},
		"arrival_date": {"type": "string", "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$"}
	}
}`

const tierSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["type"],
	"properties": {
		"type": {"enum": ["small", "medium", "large", "all"]}
	}
}`

// Validator validates legs and tier requests against compiled schemas.
type Validator struct {
	leg  *jsonschema.Schema
	tier *jsonschema.Schema
}

// New compiles the embedded schemas.
func New() (*Validator, error) {
	leg, err := compileSchema("leg.schema.json", legSchema)
	if err != nil {
		return nil, err
	}
	tier, err := compileSchema("tier.schema.json", tierSchema)
	if err != nil {
		return nil, err
	}
	return &Validator{leg: leg, tier: tier}, nil
}

func compileSchema(name, raw string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource %s: %w", name, err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return schema, nil
}

// ValidateLeg returns the validation messages for a single leg,
// or nil when the leg is well-formed.
func (v *Validator) ValidateLeg(leg domain.Leg) []string {
	return validateAgainst(v.leg, leg)
}

// ValidateJourney validates every leg, prefixing messages with the
// 1-based leg position. A journey without legs yields no messages;
// emptiness is a separate pipeline check.
func (v *Validator) ValidateJourney(j *domain.Journey) []string {
	var msgs []string
	for i, leg := range j.Legs {
		for _, m := range v.ValidateLeg(leg) {
			msgs = append(msgs, fmt.Sprintf("leg_%d: %s", i+1, m))
		}
	}
	return msgs
}

// ValidateTier validates the requested policy tier field.
func (v *Validator) ValidateTier(tier string) []string {
	return validateAgainst(v.tier, map[string]string{"type": tier})
}

func validateAgainst(schema *jsonschema.Schema, value any) []string {
	payload, err := toJSONValue(value)
	if err != nil {
		return []string{err.Error()}
	}
	if err := schema.Validate(payload); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return flatten(ve)
		}
		return []string{err.Error()}
	}
	return nil
}

// toJSONValue round-trips a typed value through JSON so the schema
// sees the wire shape, not Go structs.
func toJSONValue(value any) (any, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal for validation: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode for validation: %w", err)
	}
	return out, nil
}

// flatten extracts leaf causes so messages point at concrete fields.
func flatten(ve *jsonschema.ValidationError) []string {
	if len(ve.Causes) == 0 {
		loc := ve.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		return []string{fmt.Sprintf("%s: %s", loc, ve.Message)}
	}
	var msgs []string
	for _, cause := range ve.Causes {
		msgs = append(msgs, flatten(cause)...)
	}
	return msgs
}
