package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptTemplate(t *testing.T) {
	t.Parallel()

	p, err := NewPromptTemplate(
		"You can use {{ len .tools }} tools from {{ .servers | join \", \" }}.\n{{ .extra | default \"Be brief.\" }}\n",
		[]string{"tools", "servers"},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"tools", "servers"}, p.GetInputVariables())

	value, err := p.FormatPrompt(map[string]any{
		"tools":   []string{"fs__search", "web__fetch"},
		"servers": []string{"fs", "web"},
		"extra":   "",
	})
	require.NoError(t, err)
	assert.Equal(t, "You can use 2 tools from fs, web.\nBe brief.", value)

	_, err = p.FormatPrompt(map[string]any{"tools": []string{}})
	assert.EqualError(t, err, "missing prompt inputs: servers")
}

func TestPromptTemplate_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewPromptTemplate("{{ .x ", nil)
	assert.Error(t, err)

	assert.Panics(t, func() {
		MustPromptTemplate("{{ end }}", nil)
	})

	p := MustPromptTemplate("hello {{ .name }}", nil)
	_, err = p.FormatPrompt(nil)
	assert.Error(t, err)

	value, err := MustPromptTemplate(DefaultSystemPrompt, nil).FormatPrompt(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultSystemPrompt, value)
}

func TestMergeInputs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, map[string]any{}, MergeInputs())
	assert.Equal(t,
		map[string]any{"a": 1, "b": 3, "c": 4},
		MergeInputs(map[string]any{"a": 1, "b": 2}, nil, map[string]any{"b": 3, "c": 4}),
	)
}
