// Package llmfactory builds the model-provider collaborator from a provider configuration file or from command line settings.
package llmfactory
