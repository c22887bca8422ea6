// Package schemas holds the JSON Schemas for every JSON input the registry
// reads, and validates raw documents against them before decoding.
package schemas

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Kind identifies a JSON input family.
type Kind string

const (
	KindRegistry     Kind = "registry"
	KindObligations  Kind = "obligations"
	KindUniverse     Kind = "universe"
	KindRequirements Kind = "requirements"
	KindControls     Kind = "controls"
)

// Kinds lists every known input kind in a stable order.
var Kinds = []Kind{KindRegistry, KindObligations, KindUniverse, KindRequirements, KindControls}

//go:embed *.schema.json
var files embed.FS

var (
	compileOnce sync.Once
	compiled    map[Kind]*jsonschema.Schema
	compileErr  error
)

func compileAll() {
	compiled = make(map[Kind]*jsonschema.Schema, len(Kinds))
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	for _, k := range Kinds {
		raw, err := files.ReadFile(string(k) + ".schema.json")
		if err != nil {
			compileErr = fmt.Errorf("schema %s: %w", k, err)
			return
		}
		url := fmt.Sprintf("https://docreg.schemas.local/%s.schema.json", k)
		if err := c.AddResource(url, bytes.NewReader(raw)); err != nil {
			compileErr = fmt.Errorf("schema %s load failed: %w", k, err)
			return
		}
		s, err := c.Compile(url)
		if err != nil {
			compileErr = fmt.Errorf("schema %s compile failed: %w", k, err)
			return
		}
		compiled[k] = s
	}
}

// Validate checks raw JSON against the schema for kind.
func Validate(kind Kind, data []byte) error {
	compileOnce.Do(compileAll)
	if compileErr != nil {
		return compileErr
	}
	s, ok := compiled[kind]
	if !ok {
		return fmt.Errorf("unknown schema kind %q", kind)
	}

	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("%s: invalid JSON: %w", kind, err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("%s: schema validation failed: %w", kind, err)
	}
	return nil
}
