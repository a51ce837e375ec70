// Package streaming reduces the event stream of one model turn into
// text chunks, pushed to the caller as they arrive, and at most one
// tool-use request, available only after the stream is drained.
package streaming
