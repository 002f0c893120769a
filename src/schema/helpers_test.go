package schema

import (
	"encoding/json"
	"testing"

	jsonschema "github.com/swaggest/jsonschema-go"
)

func TestCreateStringSchema(t *testing.T) {
	schema := CreateStringSchema("test description")

	if schema == nil {
		t.Fatal("Expected schema to be non-nil")
	}

	if schema.Description == nil || *schema.Description != "test description" {
		t.Errorf("Expected description 'test description', got %v", schema.Description)
	}

	if schema.Type == nil || schema.Type.SimpleTypes == nil {
		t.Fatal("Expected type to be set")
	}

	expectedType := jsonschema.SimpleType("string")
	if *schema.Type.SimpleTypes != expectedType {
		t.Errorf("Expected type 'string', got %v", *schema.Type.SimpleTypes)
	}
}

func TestCreateBoolSchema(t *testing.T) {
	schema := CreateBoolSchema("test bool", true)

	if schema.Type == nil || schema.Type.SimpleTypes == nil {
		t.Fatal("Expected type to be set")
	}

	expectedType := jsonschema.SimpleType("boolean")
	if *schema.Type.SimpleTypes != expectedType {
		t.Errorf("Expected type 'boolean', got %v", *schema.Type.SimpleTypes)
	}

	if schema.Default == nil || *schema.Default != true {
		t.Errorf("Expected default true, got %v", schema.Default)
	}
}

func TestCreateBoundedIntSchema(t *testing.T) {
	schema := CreateBoundedIntSchema("limit", 1, 10)

	if schema.Minimum == nil || *schema.Minimum != 1 {
		t.Errorf("Expected minimum 1, got %v", schema.Minimum)
	}
	if schema.Maximum == nil || *schema.Maximum != 10 {
		t.Errorf("Expected maximum 10, got %v", schema.Maximum)
	}
}

func TestCreateObjectSchemaMarshal(t *testing.T) {
	schema := CreateObjectSchema(map[string]*jsonschema.Schema{
		"searches": CreateArraySchema("searches", CreateObjectSchema(map[string]*jsonschema.Schema{
			"query": CreateStringSchema("query"),
		}, []string{"query"}), 2),
	}, []string{"searches"})

	raw, err := json.Marshal(schema)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if decoded["type"] != "object" {
		t.Errorf("Expected type object, got %v", decoded["type"])
	}
	if decoded["additionalProperties"] != false {
		t.Errorf("Expected closed object, got %v", decoded["additionalProperties"])
	}

	props := decoded["properties"].(map[string]any)
	searches := props["searches"].(map[string]any)
	if searches["maxItems"] != float64(2) {
		t.Errorf("Expected maxItems 2, got %v", searches["maxItems"])
	}
	items := searches["items"].(map[string]any)
	if items["type"] != "object" {
		t.Errorf("Expected item type object, got %v", items["type"])
	}
}

func TestCreateStringArraySchema(t *testing.T) {
	schema := CreateStringArraySchema("sources", []string{"web", "news"})
	if schema.Items == nil || schema.Items.SchemaOrBool == nil || schema.Items.SchemaOrBool.TypeObject == nil {
		t.Fatal("Expected items to be set")
	}
	if got := len(schema.Items.SchemaOrBool.TypeObject.Enum); got != 2 {
		t.Errorf("Expected 2 enum values, got %d", got)
	}
}
