package schema

import (
	jsonschema "github.com/swaggest/jsonschema-go"
)

// CreateStringSchema creates a JSON schema for a string field
func CreateStringSchema(description string) *jsonschema.Schema {
	strType := jsonschema.SimpleType("string")
	return &jsonschema.Schema{
		Type:        &jsonschema.Type{SimpleTypes: &strType},
		Description: &description,
	}
}

// CreateBoolSchema creates a JSON schema for a boolean field with default value
func CreateBoolSchema(description string, defaultValue bool) *jsonschema.Schema {
	boolType := jsonschema.SimpleType("boolean")
	defVal := interface{}(defaultValue)
	return &jsonschema.Schema{
		Type:        &jsonschema.Type{SimpleTypes: &boolType},
		Description: &description,
		Default:     &defVal,
	}
}

// CreateBoundedIntSchema creates a JSON schema for an integer in [min, max].
func CreateBoundedIntSchema(description string, min, max int) *jsonschema.Schema {
	intType := jsonschema.SimpleType("integer")
	s := &jsonschema.Schema{
		Type:        &jsonschema.Type{SimpleTypes: &intType},
		Description: &description,
	}
	return s.WithMinimum(float64(min)).WithMaximum(float64(max))
}

// CreateArraySchema creates a JSON schema for an array of items. A
// maxItems of zero leaves the length unbounded.
func CreateArraySchema(description string, items *jsonschema.Schema, maxItems int) *jsonschema.Schema {
	arrType := jsonschema.SimpleType("array")
	s := &jsonschema.Schema{
		Type:        &jsonschema.Type{SimpleTypes: &arrType},
		Description: &description,
		Items: &jsonschema.Items{
			SchemaOrBool: &jsonschema.SchemaOrBool{TypeObject: items},
		},
	}
	if maxItems > 0 {
		s.WithMaxItems(int64(maxItems))
	}
	return s
}

// CreateObjectSchema creates a JSON schema for a closed object with
// properties and required fields.
func CreateObjectSchema(properties map[string]*jsonschema.Schema, required []string) *jsonschema.Schema {
	schemaProps := make(map[string]jsonschema.SchemaOrBool)
	for name, prop := range properties {
		schemaProps[name] = jsonschema.SchemaOrBool{TypeObject: prop}
	}

	closed := false
	objType := jsonschema.SimpleType("object")
	return &jsonschema.Schema{
		Type:                 &jsonschema.Type{SimpleTypes: &objType},
		Properties:           schemaProps,
		Required:             required,
		AdditionalProperties: &jsonschema.SchemaOrBool{TypeBoolean: &closed},
	}
}

// CreateStringSchemaEnum creates a JSON schema for a string field with enum values
func CreateStringSchemaEnum(description string, enumValues []string) *jsonschema.Schema {
	strType := jsonschema.SimpleType("string")
	enum := make([]interface{}, len(enumValues))
	for i, v := range enumValues {
		enum[i] = v
	}
	return &jsonschema.Schema{
		Type:        &jsonschema.Type{SimpleTypes: &strType},
		Description: &description,
		Enum:        enum,
	}
}

// CreateStringArraySchema creates a JSON schema for an array of strings,
// optionally restricted to enum values.
func CreateStringArraySchema(description string, enumValues []string) *jsonschema.Schema {
	item := CreateStringSchema(description)
	if len(enumValues) > 0 {
		item = CreateStringSchemaEnum(description, enumValues)
	}
	return CreateArraySchema(description, item, 0)
}
