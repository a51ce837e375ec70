// Package mcp connects to tool providers over the Model Context Protocol
// and loads the provider launch configuration.
//
// A Session lists the tools a provider exposes and calls them; the
// Connector launches the provider process and performs the handshake.
package mcp
