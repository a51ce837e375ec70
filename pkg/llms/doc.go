// Package llms defines the provider-neutral model used to talk to language models:
// conversation messages, the streamed event variants a provider emits during one turn,
// and the Model interface every provider adapter implements.
//
// Provider adapters live in subpackages (anthropic, bedrock, googleai).
// Each one translates the message history into its own wire format and
// translates its stream back into the closed set of events declared in events.go.
package llms
