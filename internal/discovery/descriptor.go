// Package discovery builds JSON Schema tool descriptors. Per the explicit
// design preference for descriptor-based registration over deep runtime
// reflection, the primary API is Schema over an explicit Property list
// (hand-built schemas); FromStruct
// is optional sugar that inspects a Go struct's exported fields via
// reflect to save writing the schema by hand for simple argument shapes —
// Go's nearest equivalent to reflecting over annotated members.
package discovery

import (
	"encoding/json"
	"reflect"
	"strings"
)

// Property describes one input parameter for Schema. Building a tool's
// inputSchema from an explicit property list is the preferred
// registration path: explicit, readable, and not dependent on struct
// field ordering or tag parsing.
type Property struct {
	Name        string
	Type        string // "string", "integer", "number", "boolean", "array", "object"
	Description string
	Enum        []string
	Required    bool
	Items       *Property // element schema when Type == "array"
}

// Schema renders properties into a JSON Schema object, listing every
// property marked Required under "required". Property carries no default
// value, so Schema does not itself drop defaulted properties from
// "required": a caller leaves Required false for a property that has a
// default (FromStruct does this for `default=` tags).
func Schema(properties []Property) json.RawMessage {
	props := make(map[string]any, len(properties))
	var required []string
	for _, p := range properties {
		props[p.Name] = propertySchema(p)
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	b, _ := json.Marshal(schema)
	return b
}

// propertySchema renders one Property, including the "items" schema a
// "array"-typed property carries per spec.md §4.6's type-inference rule.
func propertySchema(p Property) map[string]any {
	prop := map[string]any{"type": p.Type}
	if p.Description != "" {
		prop["description"] = p.Description
	}
	if len(p.Enum) > 0 {
		prop["enum"] = p.Enum
	}
	if p.Type == "array" {
		item := Property{Type: "string"}
		if p.Items != nil {
			item = *p.Items
		}
		prop["items"] = propertySchema(item)
	}
	return prop
}

// FromStruct builds a JSON Schema by reflecting over v's exported fields.
// Each field's wire name and requiredness come from an `mcp:"name,required"`
// tag (falling back to the JSON tag, then the field name); a field tagged
// with a default value (`mcp:"name,default=..."`) is never marked
// required, even when also tagged required. v must be a struct or
// a pointer to one.
func FromStruct(v any) json.RawMessage {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	var props []Property
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue // unexported
		}
		name, required, hasDefault := parseMCPTag(f)
		if name == "" {
			name = jsonTagName(f)
		}
		if name == "" {
			name = f.Name
		}
		prop := Property{
			Name:     name,
			Type:     schemaType(f.Type),
			Required: required && !hasDefault,
		}
		if prop.Type == "array" {
			item := schemaType(f.Type.Elem())
			prop.Items = &Property{Type: item}
		}
		props = append(props, prop)
	}
	return Schema(props)
}

func parseMCPTag(f reflect.StructField) (name string, required bool, hasDefault bool) {
	tag, ok := f.Tag.Lookup("mcp")
	if !ok {
		return "", false, false
	}
	parts := strings.Split(tag, ",")
	if len(parts) > 0 {
		name = parts[0]
	}
	for _, opt := range parts[1:] {
		if opt == "required" {
			required = true
		}
		if strings.HasPrefix(opt, "default=") {
			hasDefault = true
		}
	}
	return name, required, hasDefault
}

func jsonTagName(f reflect.StructField) string {
	tag, ok := f.Tag.Lookup("json")
	if !ok {
		return ""
	}
	name := strings.Split(tag, ",")[0]
	if name == "-" {
		return ""
	}
	return name
}

// Annotations builds a tool's class-level annotations map (spec.md
// §4.6): a single category becomes "category", more than one becomes
// "categories", each value keeping its original primitive type
// (string, number, or bool) rather than being flattened to strings.
func Annotations(categories ...any) map[string]any {
	switch len(categories) {
	case 0:
		return nil
	case 1:
		return map[string]any{"category": categories[0]}
	default:
		return map[string]any{"categories": categories}
	}
}

// schemaType infers a JSON Schema primitive name from a Go type, per
// spec.md §4.6: integral kinds map to "integer", floating-point kinds to
// "number" (they are not interchangeable — an "integer"-typed argument
// rejects "1.5" where a "number"-typed one would not).
func schemaType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	default:
		return "string"
	}
}
