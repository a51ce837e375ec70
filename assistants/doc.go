// Package assistants provides the conversation loop: it streams a model turn,
// routes the requested tool to its provider, feeds the result back,
// and repeats until the model answers without a tool request.
//
// The loop exposes two entry operations to front ends: connecting providers
// (Assistant.Connect, Assistant.ConnectAll) and answering a query
// (Assistant.Query, Assistant.Chunks). Text chunks are pushed to a
// consumer-owned sink as soon as they arrive; an error returned by the sink
// aborts the response.
package assistants
