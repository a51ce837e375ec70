// Package tools maps provider tools into one namespace advertised to the model,
// and routes the model's tool requests back to the provider that owns the tool.
//
// A namespaced id is the normalized provider id, the "__" separator, and the native tool name:
//
//	fs__search
//	web_search__fetch
//
// Ids are never parsed back: Catalog.Resolve serves them from the table built
// together with the catalog and fails closed with ErrUnknownTool.
package tools
