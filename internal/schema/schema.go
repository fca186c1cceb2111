// Package schema describes structured-output contracts as data rather than
// compile-time types, so the same descriptor can be handed to any of the
// model gateway's provider arms.
package schema

import "encoding/json"

// Descriptor is a JSON-schema-shaped contract for a structured model
// response. Name and Description steer providers that route structured
// output through a tool/function call; Schema is the raw JSON schema object.
type Descriptor struct {
	Name        string
	Description string
	Schema      json.RawMessage
}

// Object builds a Descriptor from a Go map describing a JSON schema object.
// Keeping schemas as maps (rather than generated structs) lets every
// component own its contract inline, next to the prompt it pairs with.
func Object(name, description string, properties map[string]any, required []string) Descriptor {
	raw, err := json.Marshal(map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	})
	if err != nil {
		// Schemas are built from static literals at call sites; a marshal
		// failure here means a caller embedded something unmarshalable.
		panic("schema: object: " + err.Error())
	}
	return Descriptor{Name: name, Description: description, Schema: raw}
}

// String is a convenience leaf builder for a string-typed property.
func String(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

// Number is a convenience leaf builder for a numeric property.
func Number(description string) map[string]any {
	return map[string]any{"type": "number", "description": description}
}

// Integer is a convenience leaf builder for an integer property.
func Integer(description string) map[string]any {
	return map[string]any{"type": "integer", "description": description}
}

// Boolean is a convenience leaf builder for a boolean property.
func Boolean(description string) map[string]any {
	return map[string]any{"type": "boolean", "description": description}
}

// ArrayOf wraps an item schema as a JSON-schema array property.
func ArrayOf(description string, items map[string]any) map[string]any {
	return map[string]any{"type": "array", "description": description, "items": items}
}

// Decode unmarshals a raw structured-output payload into dst, which should
// be a pointer to the Go shape matching the Descriptor's schema.
func Decode(raw []byte, dst any) error {
	return json.Unmarshal(raw, dst)
}
