package metadata

import (
	"encoding/json"
	"fmt"
	"strings"

	_ "embed"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/ardupilot-pdef-v1.json
var ardupilotSchemaJSON string

//go:embed schema/px4-parameters-v1.json
var px4SchemaJSON string

const (
	ardupilotSchemaID = "ardupilot-pdef-v1.json"
	px4SchemaID       = "px4-parameters-v1.json"
)

// Validator checks metadata documents against their JSON schemas before
// they are decoded.
type Validator struct {
	ardupilot *jsonschema.Schema
	px4       *jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()

	resources := map[string]string{
		ardupilotSchemaID: ardupilotSchemaJSON,
		px4SchemaID:       px4SchemaJSON,
	}
	for id, doc := range resources {
		if err := compiler.AddResource(id, strings.NewReader(doc)); err != nil {
			return nil, fmt.Errorf("failed to add schema resource %s: %w", id, err)
		}
	}

	ardupilot, err := compiler.Compile(ardupilotSchemaID)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema %s: %w", ardupilotSchemaID, err)
	}
	px4, err := compiler.Compile(px4SchemaID)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema %s: %w", px4SchemaID, err)
	}

	return &Validator{ardupilot: ardupilot, px4: px4}, nil
}

// ValidateArduPilot validates a source-A (nested categories) document.
func (v *Validator) ValidateArduPilot(data []byte) error {
	return validate(v.ardupilot, data)
}

// ValidatePX4 validates a source-B (flat list) document.
func (v *Validator) ValidatePX4(data []byte) error {
	return validate(v.px4, data)
}

func validate(schema *jsonschema.Schema, data []byte) error {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	return nil
}
