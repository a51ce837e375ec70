package googleai

import (
	"net/http"
	"os"

	"cloud.google.com/go/auth"
	"google.golang.org/genai"
)

// TokenEnvVarName is the environment variable of the API key.
const TokenEnvVarName = "GOOGLE_API_KEY" //nolint:gosec

// Options configure the Gemini client and the defaults of a turn.
type Options struct {
	APIKey      string
	Credentials *auth.Credentials
	HTTPClient  *http.Client
	BaseURL     string

	Model       string
	MaxTokens   int
	Temperature float64
	TopK        int
	TopP        float64
	// HarmThreshold applies to every harm category of a turn.
	HarmThreshold genai.HarmBlockThreshold
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		Model:         "gemini-2.5-pro",
		MaxTokens:     8192,
		Temperature:   0.5,
		TopK:          3,
		TopP:          0.95,
		HarmThreshold: genai.HarmBlockThresholdBlockOnlyHigh,
	}
}

// ensureAuth falls back to GOOGLE_API_KEY when neither a key nor credentials are set.
func (o *Options) ensureAuth() {
	if o.Credentials == nil && o.APIKey == "" {
		o.APIKey = os.Getenv(TokenEnvVarName)
	}
}

type Option func(*Options)

// WithAPIKey sets the Gemini API key.
func WithAPIKey(apiKey string) Option {
	return func(opts *Options) {
		opts.APIKey = apiKey
	}
}

// WithCredentials authenticates with service account or refresh token credentials
// instead of an API key. Nil is ignored.
func WithCredentials(credentials *auth.Credentials) Option {
	return func(opts *Options) {
		if credentials != nil {
			opts.Credentials = credentials
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(opts *Options) {
		opts.HTTPClient = httpClient
	}
}

// WithBaseURL overrides the Gemini API endpoint.
func WithBaseURL(baseURL string) Option {
	return func(opts *Options) {
		opts.BaseURL = baseURL
	}
}

// WithModel sets the model used when a call does not name one.
func WithModel(model string) Option {
	return func(opts *Options) {
		opts.Model = model
	}
}

// WithMaxTokens sets the output token limit used when a call does not set one.
func WithMaxTokens(maxTokens int) Option {
	return func(opts *Options) {
		opts.MaxTokens = maxTokens
	}
}

// WithTemperature sets the temperature used when a call does not set one.
func WithTemperature(temperature float64) Option {
	return func(opts *Options) {
		opts.Temperature = temperature
	}
}

func WithTopK(topK int) Option {
	return func(opts *Options) {
		opts.TopK = topK
	}
}

func WithTopP(topP float64) Option {
	return func(opts *Options) {
		opts.TopP = topP
	}
}

// WithHarmThreshold sets the blocking threshold of the safety settings.
func WithHarmThreshold(ht genai.HarmBlockThreshold) Option {
	return func(opts *Options) {
		opts.HarmThreshold = ht
	}
}
