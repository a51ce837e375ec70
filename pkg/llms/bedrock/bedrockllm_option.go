package bedrock

import "github.com/effective-security/mcpllm/pkg/llms/bedrock/internal/bedrockclient"

// Option is an option for the Bedrock LLM.
type Option func(*options)

type options struct {
	modelID string
	client  bedrockclient.API

	region          string
	baseURL         string
	accessKeyID     string
	secretAccessKey string
	sessionToken    string
}

// WithModel sets the model ID or inference profile to use.
func WithModel(modelID string) Option {
	return func(o *options) {
		o.modelID = modelID
	}
}

// WithClient sets the Bedrock runtime client to use, usually *bedrockruntime.Client.
func WithClient(client bedrockclient.API) Option {
	return func(o *options) {
		o.client = client
	}
}

// WithRegion sets the AWS region.
func WithRegion(region string) Option {
	return func(o *options) {
		o.region = region
	}
}

// WithBaseURL overrides the Bedrock runtime endpoint.
func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		o.baseURL = baseURL
	}
}

// WithCredentials sets static AWS credentials.
func WithCredentials(accessKeyID, secretAccessKey, sessionToken string) Option {
	return func(o *options) {
		o.accessKeyID = accessKeyID
		o.secretAccessKey = secretAccessKey
		o.sessionToken = sessionToken
	}
}
