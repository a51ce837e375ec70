package genaiutils

import (
	"testing"

	"github.com/effective-security/mcpllm/pkg/llms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestConvertJSONSchemaDefinition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		definition  map[string]any
		expectError bool
		validate    func(t *testing.T, result *genai.Schema)
	}{
		{
			name: "simple object with properties",
			definition: map[string]any{
				"type":        "object",
				"description": "Test schema",
				"properties": map[string]any{
					"name": map[string]any{"type": "string", "description": "Name field"},
					"age":  map[string]any{"type": "integer"},
				},
				"required": []any{"name"},
			},
			validate: func(t *testing.T, result *genai.Schema) {
				assert.Equal(t, genai.TypeObject, result.Type)
				assert.Equal(t, "Test schema", result.Description)
				assert.Equal(t, []string{"name"}, result.Required)

				require.Len(t, result.Properties, 2)
				assert.Equal(t, genai.TypeString, result.Properties["name"].Type)
				assert.Equal(t, "Name field", result.Properties["name"].Description)
				assert.Equal(t, genai.TypeInteger, result.Properties["age"].Type)
			},
		},
		{
			name: "array with enum items",
			definition: map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "string",
					"enum": []string{"a", "b"},
				},
			},
			validate: func(t *testing.T, result *genai.Schema) {
				assert.Equal(t, genai.TypeArray, result.Type)
				require.NotNil(t, result.Items)
				assert.Equal(t, genai.TypeString, result.Items.Type)
				assert.Equal(t, []string{"a", "b"}, result.Items.Enum)
			},
		},
		{
			name: "unknown type",
			definition: map[string]any{
				"type":   "null",
				"format": "date",
			},
			validate: func(t *testing.T, result *genai.Schema) {
				assert.Equal(t, genai.TypeUnspecified, result.Type)
				assert.Equal(t, "date", result.Format)
			},
		},
		{
			name: "invalid property",
			definition: map[string]any{
				"type":       "object",
				"properties": map[string]any{"bad": "string"},
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result, err := ConvertJSONSchemaDefinition(tt.definition)
			if tt.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validate(t, result)
		})
	}

	res, err := ConvertJSONSchemaDefinition(nil)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestConvertTools(t *testing.T) {
	t.Parallel()

	res, err := ConvertTools(nil)
	require.NoError(t, err)
	assert.Nil(t, res)

	res, err = ConvertTools([]llms.Tool{
		{Name: "fs__search", Description: "Search", InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"q": map[string]any{"type": "string"}},
		}},
		{Name: "clock__now"},
	})
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Len(t, res[0].FunctionDeclarations, 2)
	assert.Equal(t, "fs__search", res[0].FunctionDeclarations[0].Name)
	assert.Equal(t, genai.TypeObject, res[0].FunctionDeclarations[0].Parameters.Type)
	assert.Nil(t, res[0].FunctionDeclarations[1].Parameters)

	_, err = ConvertTools([]llms.Tool{{Description: "nameless"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing name")
}

func TestConvertJSONSchemaType(t *testing.T) {
	t.Parallel()

	for in, exp := range map[string]genai.Type{
		"object":  genai.TypeObject,
		"string":  genai.TypeString,
		"number":  genai.TypeNumber,
		"integer": genai.TypeInteger,
		"boolean": genai.TypeBoolean,
		"array":   genai.TypeArray,
		"":        genai.TypeUnspecified,
	} {
		assert.Equal(t, exp, ConvertJSONSchemaType(in), in)
	}
}

func TestPtrHelpers(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Float32Ptr(0))
	assert.Equal(t, float32(0.5), *Float32Ptr(0.5))
	assert.Nil(t, Int32Ptr(0))
	assert.Equal(t, int32(3), *Int32Ptr(3))
}
