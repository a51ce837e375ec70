// Package prompts renders system prompts from Go templates with sprig functions.
package prompts

import (
	"sort"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/cockroachdb/errors"
)

// DefaultSystemPrompt is used when no system prompt is configured.
const DefaultSystemPrompt = "You are a helpful assistant."

// FormatPrompter renders a prompt from input values.
type FormatPrompter interface {
	// FormatPrompt renders the prompt.
	FormatPrompt(values map[string]any) (string, error)
	// GetInputVariables returns the names of the required inputs.
	GetInputVariables() []string
}

// PromptTemplate is a text/template prompt.
type PromptTemplate struct {
	// Template is the template text.
	Template string
	// InputVariables are required to be present in the values.
	InputVariables []string

	tmpl *template.Template
}

var _ FormatPrompter = (*PromptTemplate)(nil)

// NewPromptTemplate parses the template.
func NewPromptTemplate(text string, inputVariables []string) (*PromptTemplate, error) {
	tmpl, err := template.New("prompt").
		Funcs(sprig.TxtFuncMap()).
		Option("missingkey=error").
		Parse(text)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to parse prompt template")
	}
	return &PromptTemplate{
		Template:       text,
		InputVariables: inputVariables,
		tmpl:           tmpl,
	}, nil
}

// MustPromptTemplate is like NewPromptTemplate and panics on error.
func MustPromptTemplate(text string, inputVariables []string) *PromptTemplate {
	p, err := NewPromptTemplate(text, inputVariables)
	if err != nil {
		panic(err)
	}
	return p
}

// GetInputVariables implements FormatPrompter.
func (p *PromptTemplate) GetInputVariables() []string {
	return p.InputVariables
}

// FormatPrompt implements FormatPrompter.
func (p *PromptTemplate) FormatPrompt(values map[string]any) (string, error) {
	var missing []string
	for _, v := range p.InputVariables {
		if _, ok := values[v]; !ok {
			missing = append(missing, v)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", errors.Newf("missing prompt inputs: %s", strings.Join(missing, ", "))
	}

	if values == nil {
		values = map[string]any{}
	}
	var buf strings.Builder
	if err := p.tmpl.Execute(&buf, values); err != nil {
		return "", errors.WithMessage(err, "failed to format prompt")
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// MergeInputs returns a new map with the values of all maps,
// later maps override earlier ones.
func MergeInputs(maps ...map[string]any) map[string]any {
	res := map[string]any{}
	for _, m := range maps {
		for k, v := range m {
			res[k] = v
		}
	}
	return res
}
