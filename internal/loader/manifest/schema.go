// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package manifest

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// SchemaID is the $id of the manifest schema.
const SchemaID = "https://holomush.dev/schemas/pluginmgr/plugin.schema.json"

var compiled = sync.OnceValues(compileSchema)

// GenerateSchema returns the JSON Schema of plugin.yaml.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{DoNotReference: true}
	schema := r.Reflect(&Manifest{})
	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "Plugin Manifest"
	schema.Description = "Schema for plugin.yaml manifest files"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.In("manifest").Wrapf(err, "marshal schema")
	}
	return data, nil
}

// ValidateSchema validates a YAML document against the manifest schema. It
// reports structural problems Parse would silently accept, such as unknown
// keys with the wrong type.
func ValidateSchema(data []byte) error {
	if len(data) == 0 {
		return invalid("document", "manifest data is empty")
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return oops.Code("INVALID_MANIFEST").In("manifest").Wrap(errors.Join(ErrInvalidManifest, err))
	}

	sch, err := compiled()
	if err != nil {
		return err
	}
	if err := sch.Validate(toJSONTypes(doc)); err != nil {
		return oops.Code("INVALID_MANIFEST").In("manifest").
			Hint("plugin.yaml does not match " + SchemaID).
			Wrap(errors.Join(ErrInvalidManifest, err))
	}
	return nil
}

func compileSchema() (*jschema.Schema, error) {
	raw, err := GenerateSchema()
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, oops.In("manifest").Wrapf(err, "parse generated schema")
	}

	c := jschema.NewCompiler()
	if err := c.AddResource("plugin.schema.json", doc); err != nil {
		return nil, oops.In("manifest").Wrapf(err, "add schema resource")
	}
	sch, err := c.Compile("plugin.schema.json")
	if err != nil {
		return nil, oops.In("manifest").Wrapf(err, "compile schema")
	}
	return sch, nil
}

// toJSONTypes normalizes YAML-decoded values to the types the validator
// understands.
func toJSONTypes(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = toJSONTypes(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = toJSONTypes(item)
		}
		return out
	case nil, string, bool, int, int64, float64:
		return val
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return val
		}
		var out any
		if err := json.Unmarshal(b, &out); err != nil {
			return val
		}
		return out
	}
}
