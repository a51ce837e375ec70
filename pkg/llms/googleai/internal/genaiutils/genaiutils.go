package genaiutils

import (
	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpllm/pkg/llms"
	"google.golang.org/genai"
)

// ConvertTools converts the tool catalog to genai tools,
// one function declaration per tool.
func ConvertTools(tools []llms.Tool) ([]*genai.Tool, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for i, tool := range tools {
		if tool.Name == "" {
			return nil, errors.Errorf("tool [%d]: missing name", i)
		}
		decl := &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
		}
		if len(tool.InputSchema) > 0 {
			schema, err := ConvertJSONSchemaDefinition(tool.InputSchema)
			if err != nil {
				return nil, errors.Wrapf(err, "tool [%d]", i)
			}
			decl.Parameters = schema
		}
		decls = append(decls, decl)
	}

	return []*genai.Tool{{FunctionDeclarations: decls}}, nil
}

// ConvertJSONSchemaDefinition converts a JSON schema object to a genai.Schema.
// Keywords genai does not model are dropped.
func ConvertJSONSchemaDefinition(jschema map[string]any) (*genai.Schema, error) {
	if jschema == nil {
		return nil, nil
	}

	schemaType, _ := jschema["type"].(string)
	schema := &genai.Schema{
		Type:        ConvertJSONSchemaType(schemaType),
		Description: stringValue(jschema["description"]),
		Required:    stringList(jschema["required"]),
		Enum:        stringList(jschema["enum"]),
		Format:      stringValue(jschema["format"]),
	}

	if props, ok := jschema["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for key, val := range props {
			prop, ok := val.(map[string]any)
			if !ok {
				return nil, errors.Errorf("property [%s]: expected object, got %T", key, val)
			}
			propSchema, err := ConvertJSONSchemaDefinition(prop)
			if err != nil {
				return nil, errors.Wrapf(err, "property [%s]", key)
			}
			schema.Properties[key] = propSchema
		}
	}

	if items, ok := jschema["items"].(map[string]any); ok {
		itemsSchema, err := ConvertJSONSchemaDefinition(items)
		if err != nil {
			return nil, errors.Wrap(err, "items")
		}
		schema.Items = itemsSchema
	}

	return schema, nil
}

// ConvertJSONSchemaType converts a JSON schema type name to a genai.Type.
func ConvertJSONSchemaType(dt string) genai.Type {
	switch dt {
	case "object":
		return genai.TypeObject
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	default:
		return genai.TypeUnspecified
	}
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func stringList(v any) []string {
	switch l := v.(type) {
	case []string:
		return l
	case []any:
		var res []string
		for _, r := range l {
			if s, ok := r.(string); ok {
				res = append(res, s)
			}
		}
		return res
	}
	return nil
}

func Float32Ptr(f float32) *float32 {
	if f == 0 {
		return nil
	}
	return &f
}

func Int32Ptr(i int32) *int32 {
	if i == 0 {
		return nil
	}
	return &i
}
