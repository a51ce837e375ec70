package llms

// CallOption is a function that configures a CallOptions.
type CallOption func(*CallOptions)

// CallOptions is a set of options for calling models. Not all models support
// all options.
type CallOptions struct {
	// Model is the model to use.
	Model string
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int
	// Temperature is the temperature for sampling, between 0 and 1.
	Temperature float64
	// SystemPrompt is sent outside of the message history.
	SystemPrompt string
	// Tools is the tool catalog advertised to the model.
	Tools []Tool
}

// Tool is a tool definition advertised to the model.
type Tool struct {
	// Name is the namespaced tool id.
	Name string `json:"name"`
	// Description is a human description of the tool.
	Description string `json:"description"`
	// InputSchema is the JSON schema of the argument object, as the provider supplied it.
	InputSchema map[string]any `json:"input_schema"`
}

// WithModel specifies which model name to use.
func WithModel(model string) CallOption {
	return func(o *CallOptions) {
		o.Model = model
	}
}

// WithMaxTokens specifies the max number of tokens to generate.
func WithMaxTokens(maxTokens int) CallOption {
	return func(o *CallOptions) {
		o.MaxTokens = maxTokens
	}
}

// WithTemperature specifies the model temperature, a hyperparameter that
// regulates the randomness, or creativity, of the AI's responses.
func WithTemperature(temperature float64) CallOption {
	return func(o *CallOptions) {
		o.Temperature = temperature
	}
}

// WithSystemPrompt specifies the system prompt.
func WithSystemPrompt(prompt string) CallOption {
	return func(o *CallOptions) {
		o.SystemPrompt = prompt
	}
}

// WithTools specifies the tool catalog.
func WithTools(tools []Tool) CallOption {
	return func(o *CallOptions) {
		o.Tools = tools
	}
}

// Properties returns the "properties" object of the schema.
func (t Tool) Properties() map[string]any {
	if p, ok := t.InputSchema["properties"].(map[string]any); ok {
		return p
	}
	return nil
}

// Required returns the "required" list of the schema.
func (t Tool) Required() []string {
	switch v := t.InputSchema["required"].(type) {
	case []string:
		return v
	case []any:
		var res []string
		for _, r := range v {
			if s, ok := r.(string); ok {
				res = append(res, s)
			}
		}
		return res
	}
	return nil
}
