// Package providers tracks connected tool providers and the tools each one exposes.
package providers
