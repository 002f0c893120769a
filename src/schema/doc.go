// Package schema provides helper functions for creating JSON Schema definitions.
//
// The helpers build the structured-output schemas sent with completion
// requests that ask the model for JSON.
//
// Example usage:
//
//	import "github.com/elee1766/orbital/src/schema"
//
//	querySchema := schema.CreateObjectSchema(map[string]*jsonschema.Schema{
//		"query": schema.CreateStringSchema("The search query"),
//		"limit": schema.CreateBoundedIntSchema("Results to fetch", 1, 10),
//	}, []string{"query"})
package schema
