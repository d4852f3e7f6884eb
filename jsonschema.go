package intake

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// ExportJSONSchema renders a form schema as a JSON Schema document so
// external consumers can validate submission payloads without speaking the
// field-definition format. File fields appear as the stored-object reference
// shape, since that is what persisted submission data contains.
func ExportJSONSchema(schema *FormSchema) (*jsonschema.Schema, error) {
	properties := make(map[string]any, len(schema.Fields))
	required := make([]string, 0)

	for _, field := range schema.Fields {
		properties[field.ID] = propertyFor(field)
		if field.Required {
			required = append(required, field.ID)
		}
	}

	doc := map[string]any{
		"type":        "object",
		"title":       schema.Name,
		"description": schema.Description,
		"properties":  properties,
	}
	if len(required) > 0 {
		doc["required"] = required
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal schema document: %w", err)
	}

	var out jsonschema.Schema
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal into jsonschema.Schema: %w", err)
	}

	// Self-check: an exported schema must resolve cleanly.
	if _, err := out.Resolve(&jsonschema.ResolveOptions{}); err != nil {
		return nil, fmt.Errorf("resolve exported schema: %w", err)
	}

	return &out, nil
}

// ValidateAgainstJSONSchema validates decoded submission data against the
// exported JSON Schema rendering of a form schema.
func ValidateAgainstJSONSchema(schema *FormSchema, data map[string]any) error {
	exported, err := ExportJSONSchema(schema)
	if err != nil {
		return err
	}

	resolved, err := exported.Resolve(&jsonschema.ResolveOptions{})
	if err != nil {
		return fmt.Errorf("resolve JSON schema: %w", err)
	}

	if err := resolved.Validate(data); err != nil {
		return fmt.Errorf("JSON validation failed: %w", err)
	}
	return nil
}

func propertyFor(field FieldDefinition) map[string]any {
	switch field.Type {
	case FieldTypeFile:
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"key":      map[string]any{"type": "string"},
				"fileName": map[string]any{"type": "string"},
				"size":     map[string]any{"type": "integer"},
			},
			"required": []string{"key"},
		}
	case FieldTypeDropdown:
		options := make([]any, len(field.Options))
		for i, opt := range field.Options {
			options[i] = opt
		}
		return map[string]any{"type": "string", "enum": options}
	}

	prop := map[string]any{"type": "string", "title": field.Label}
	if field.Type == FieldTypeEmail {
		prop["format"] = "email"
	}
	if field.Validation != nil {
		if field.Validation.Min != nil {
			prop["minLength"] = *field.Validation.Min
		}
		if field.Validation.Max != nil {
			prop["maxLength"] = *field.Validation.Max
		}
	}
	return prop
}
