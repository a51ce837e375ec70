package llmfactory_test

import (
	"context"
	"sync"
	"testing"

	"github.com/effective-security/mcpllm/pkg/llmfactory"
	"github.com/effective-security/mcpllm/pkg/llms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	provider string
	model    string
}

func (f *fakeLLM) GetName() string {
	return f.model
}

func (f *fakeLLM) GetProviderType() llms.ProviderType {
	return llms.ProviderType(f.provider)
}

func (f *fakeLLM) StreamCompletion(_ context.Context, _ []llms.Message, _ ...llms.CallOption) (llms.EventStream, error) {
	return llms.NewSliceStream(nil), nil
}

// useFakeLLM replaces the model constructor,
// tests using it must not run in parallel.
func useFakeLLM(t *testing.T) *int {
	created := new(int)
	var lock sync.Mutex
	llmfactory.NewLLM = func(cfg *llmfactory.ProviderConfig, preferredModels ...string) (llms.Model, error) {
		lock.Lock()
		*created++
		lock.Unlock()
		return &fakeLLM{provider: cfg.Type, model: cfg.FindModel(preferredModels...)}, nil
	}
	t.Cleanup(func() {
		llmfactory.NewLLM = llmfactory.CreateLLM
	})
	return created
}

func loadTestConfig(t *testing.T) *llmfactory.Config {
	t.Setenv("ANTHROPIC_API_KEY", "fakekey")
	t.Setenv("GOOGLEAI_TOKEN", "fakekey")
	t.Setenv("AWS_TEST_SECRET", "fakesecret")

	cfg, err := llmfactory.LoadConfig("testdata/llm.yaml")
	require.NoError(t, err)
	require.Len(t, cfg.Providers, 3)
	return cfg
}

func Test_Factory(t *testing.T) {
	cfg := loadTestConfig(t)
	assert.Equal(t, "fakekey", cfg.Providers[0].Token)
	assert.Equal(t, "fakesecret", cfg.Providers[2].Bedrock.SecretAccessKey)
	useFakeLLM(t)

	f := llmfactory.New(cfg)
	model, err := f.DefaultModel()
	require.NoError(t, err)
	fm := model.(*fakeLLM)
	assert.Equal(t, "claude-3-7-sonnet-latest", fm.model)
	assert.Equal(t, "ANTHROPIC", fm.provider)

	model, err = f.ModelByName("gemini-unknown", "gemini-2.5-flash")
	require.NoError(t, err)
	fm = model.(*fakeLLM)
	assert.Equal(t, "gemini-2.5-flash", fm.model)
	assert.Equal(t, "GOOGLEAI", fm.provider)

	// unknown models fall back to the default
	model, err = f.ModelByName("non-existent-model")
	require.NoError(t, err)
	assert.Equal(t, "claude-3-7-sonnet-latest", model.GetName())

	model, err = f.ModelByType("BEDROCK")
	require.NoError(t, err)
	assert.Equal(t, "us.anthropic.claude-3-7-sonnet-20250219-v1:0", model.GetName())

	_, err = f.ModelByType("OPEN_AI")
	require.Error(t, err)
	assert.Equal(t, "provider not found for type: OPEN_AI", err.Error())
}

func Test_AssistantModel(t *testing.T) {
	cfg := loadTestConfig(t)
	useFakeLLM(t)

	f := llmfactory.New(cfg)
	model, err := f.AssistantModel("summarizer")
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash", model.GetName())

	model, err = f.AssistantModel("MCP Assistant", "gemini-2.5-pro")
	require.NoError(t, err)
	assert.Equal(t, "claude-3-7-sonnet-latest", model.GetName(), "default mapping wins over preferred models")

	cfg.AssistantModels = nil
	f = llmfactory.New(cfg)
	model, err = f.AssistantModel("MCP Assistant", "gemini-2.5-pro")
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-pro", model.GetName())
}

func Test_ModelCaching(t *testing.T) {
	cfg := loadTestConfig(t)
	created := useFakeLLM(t)

	f := llmfactory.New(cfg)
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m1, err := f.ModelByName("claude-3-5-haiku-latest")
			assert.NoError(t, err)
			m2, err := f.ModelByType("GOOGLEAI")
			assert.NoError(t, err)
			assert.Equal(t, "claude-3-5-haiku-latest", m1.GetName())
			assert.Equal(t, "gemini-2.5-pro", m2.GetName())
		}()
	}
	wg.Wait()
	assert.Equal(t, 2, *created)
}

func Test_EmptyConfig(t *testing.T) {
	t.Parallel()

	cfg, err := llmfactory.LoadConfig("")
	require.NoError(t, err)

	f := llmfactory.New(cfg)
	_, err = f.DefaultModel()
	require.Error(t, err)
	assert.Equal(t, "no providers configured", err.Error())

	_, err = f.ModelByName("claude-3-7-sonnet-latest")
	require.Error(t, err)
}

func Test_Load(t *testing.T) {
	t.Parallel()

	f, err := llmfactory.Load("testdata/llm.yaml")
	require.NoError(t, err)
	require.NotNil(t, f)

	_, err = llmfactory.Load("testdata/non-existent.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load LLM config")

	_, err = llmfactory.LoadConfig("testdata/invalid.yaml")
	require.Error(t, err)
}

func Test_CreateLLM(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENAI_MODEL", "")

	tests := []struct {
		name        string
		cfg         *llmfactory.ProviderConfig
		expType     llms.ProviderType
		expModel    string
		errContains string
	}{
		{
			name:     "anthropic",
			cfg:      &llmfactory.ProviderConfig{Type: "anthropic", Token: "fake", DefaultModel: "claude-3-7-sonnet-latest", BaseURL: "http://localhost:1"},
			expType:  llms.ProviderAnthropic,
			expModel: "claude-3-7-sonnet-latest",
		},
		{
			name:        "anthropic without token",
			cfg:         &llmfactory.ProviderConfig{Type: "ANTHROPIC", DefaultModel: "claude-3-7-sonnet-latest"},
			errContains: "missing API key",
		},
		{
			name:     "googleai",
			cfg:      &llmfactory.ProviderConfig{Type: "GOOGLEAI", Token: "fake"},
			expType:  llms.ProviderGoogleAI,
			expModel: "gemini-2.5-pro",
		},
		{
			name: "bedrock",
			cfg: &llmfactory.ProviderConfig{
				Type:         "BEDROCK",
				DefaultModel: "anthropic.claude-3-haiku-20240307-v1:0",
				Bedrock:      llmfactory.BedrockConfig{Region: "us-east-1", AccessKeyID: "AKID", SecretAccessKey: "secret"},
			},
			expType:  llms.ProviderBedrock,
			expModel: "anthropic.claude-3-haiku-20240307-v1:0",
		},
		{
			name:     "openai",
			cfg:      &llmfactory.ProviderConfig{Type: "openai", Token: "fake", DefaultModel: "gpt-4.1", BaseURL: "http://localhost:1/v1"},
			expType:  llms.ProviderOpenAI,
			expModel: "gpt-4.1",
		},
		{
			name:        "openai without model",
			cfg:         &llmfactory.ProviderConfig{Type: "OPENAI", Token: "fake"},
			errContains: "openai: model is required",
		},
		{
			name:        "unsupported",
			cfg:         &llmfactory.ProviderConfig{Type: "PERPLEXITY"},
			errContains: "unsupported provider type: PERPLEXITY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, err := llmfactory.CreateLLM(tt.cfg)
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expType, model.GetProviderType())
			assert.Equal(t, tt.expModel, model.GetName())
		})
	}
}

func Test_ProviderConfigFindModel(t *testing.T) {
	t.Parallel()

	cfg := &llmfactory.ProviderConfig{
		DefaultModel:    "a",
		AvailableModels: []string{"a", "b"},
	}
	assert.Equal(t, "b", cfg.FindModel("x", "b", "a"))
	assert.Equal(t, "a", cfg.FindModel("x"))
	assert.Equal(t, "a", cfg.FindModel())
}
