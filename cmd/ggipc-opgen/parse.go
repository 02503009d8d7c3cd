package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/ggerr"
)

// RawOperations is the top level of operations.yaml.
type RawOperations struct {
	Operations []RawOperation `yaml:"operations"`
}

// RawOperation is one operation definition.
type RawOperation struct {
	Name    string    `yaml:"name"`
	Service string    `yaml:"service"`
	Event   string    `yaml:"event"`  // stream event shape, empty for unary operations
	Export  string    `yaml:"export"` // Go name suffix, defaults to Name
	Errors  yaml.Node `yaml:"errors"` // mapping of remote code to kind, order preserved
}

// ErrorMapping pairs a remote error code with a local error kind.
type ErrorMapping struct {
	Code string
	Kind ggerr.Kind
}

// GoName returns the identifier suffix used for the generated variable.
func (op RawOperation) GoName() string {
	if op.Export != "" {
		return op.Export
	}
	return op.Name
}

// ErrorMappings returns the error table in definition order.
func (op RawOperation) ErrorMappings() ([]ErrorMapping, error) {
	if op.Errors.Kind == 0 {
		return nil, nil
	}
	if op.Errors.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s: errors must be a mapping (line %d)", op.Name, op.Errors.Line)
	}

	var out []ErrorMapping
	seen := make(map[string]bool)
	for i := 0; i+1 < len(op.Errors.Content); i += 2 {
		code, kindName := op.Errors.Content[i].Value, op.Errors.Content[i+1].Value
		if seen[code] {
			return nil, fmt.Errorf("%s: duplicate error code %s", op.Name, code)
		}
		seen[code] = true

		kind, ok := ggerr.ParseKind(kindName)
		if !ok {
			return nil, fmt.Errorf("%s: unknown error kind %q for %s", op.Name, kindName, code)
		}
		out = append(out, ErrorMapping{Code: code, Kind: kind})
	}
	return out, nil
}

// LoadOperations reads and validates an operations file.
func LoadOperations(path string) (*RawOperations, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseOperations(data)
}

// ParseOperations decodes and validates operation definitions.
func ParseOperations(data []byte) (*RawOperations, error) {
	var defs RawOperations
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	if len(defs.Operations) == 0 {
		return nil, fmt.Errorf("no operations defined")
	}

	names := make(map[string]bool)
	for i, op := range defs.Operations {
		if op.Name == "" || op.Service == "" {
			return nil, fmt.Errorf("operation %d: name and service are required", i)
		}
		if names[op.GoName()] {
			return nil, fmt.Errorf("duplicate operation %s", op.GoName())
		}
		names[op.GoName()] = true
	}
	return &defs, nil
}
