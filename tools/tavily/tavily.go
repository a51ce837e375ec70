// Package tavily serves web search over the Tavily API as an in-process MCP provider.
package tavily

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/cockroachdb/errors"
	tavilygo "github.com/diverged/tavily-go"
	tavilyModels "github.com/diverged/tavily-go/models"
	"github.com/effective-security/xlog"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpllm", "tavily")

const (
	// ServerName is the builtin name of the provider, configured as "builtin:websearch".
	ServerName = "websearch"
	// ToolName is the native name of the search tool.
	ToolName = "web_search"

	APIKeyEnvVarName = "TAVILY_API_KEY" //nolint:gosec
)

// SearchRequest represents the tool input.
type SearchRequest struct {
	Query string `json:"query" jsonschema:"the query to search the web for"`
	Depth string `json:"depth,omitempty" jsonschema:"search depth, basic or advanced"`
}

// SearchResult represents the structure for a search response
type SearchResult struct {
	Results []tavilyModels.SearchResult `json:"results" yaml:"Results"`
	Answer  string                      `json:"answer,omitempty" yaml:"Answer"`
}

// Searcher runs web searches.
type Searcher struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Option configures the Searcher.
type Option func(*Searcher)

// WithAPIKey sets the API key, read from TAVILY_API_KEY by default.
func WithAPIKey(key string) Option {
	return func(s *Searcher) {
		s.apiKey = key
	}
}

// WithBaseURL overrides the API URL.
func WithBaseURL(baseURL string) Option {
	return func(s *Searcher) {
		s.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Searcher) {
		s.httpClient = client
	}
}

// New returns the Searcher.
func New(opts ...Option) (*Searcher, error) {
	s := &Searcher{
		apiKey:     os.Getenv(APIKeyEnvVarName),
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.apiKey == "" {
		return nil, errors.Errorf("%s is not set", APIKeyEnvVarName)
	}
	return s, nil
}

// NewServer returns the provider with the default Searcher,
// it can be registered with mcp.WithBuiltin.
func NewServer() (*mcpsdk.Server, error) {
	s, err := New()
	if err != nil {
		return nil, err
	}
	return s.NewServer(), nil
}

// NewServer returns the provider exposing the search tool.
func (s *Searcher) NewServer() *mcpsdk.Server {
	server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: ServerName, Version: "1.0.0"}, nil)
	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        ToolName,
		Description: "Search the web. Returns an aggregated answer and the matching pages.",
	}, s.handle)
	return server
}

func (s *Searcher) handle(ctx context.Context, _ *mcpsdk.CallToolRequest, req SearchRequest) (*mcpsdk.CallToolResult, any, error) {
	res, err := s.Search(ctx, &req)
	if err != nil {
		// reported to the model as an error result
		return nil, nil, err
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: res.String()}},
	}, nil, nil
}

// Search runs the query.
func (s *Searcher) Search(ctx context.Context, req *SearchRequest) (*SearchResult, error) {
	if req.Query == "" {
		return nil, errors.New("invalid request: empty query")
	}
	depth := req.Depth
	switch depth {
	case "":
		depth = "basic"
	case "basic", "advanced":
	default:
		return nil, errors.Errorf("invalid request: unsupported depth %q", depth)
	}

	client := tavilygo.NewClient(s.apiKey)
	if s.baseURL != "" {
		client.BaseURL = s.baseURL
	}
	if s.httpClient != nil {
		client.HTTPClient = s.httpClient
	}

	searchResp, err := tavilygo.Search(client, tavilyModels.SearchRequest{
		Query:         req.Query,
		SearchDepth:   depth,
		IncludeAnswer: true,
	})
	if err != nil {
		logger.ContextKV(ctx, xlog.DEBUG,
			"status", "search_failed",
			"err", err.Error(),
		)
		return nil, errors.Wrap(err, "failed to perform search")
	}

	return &SearchResult{
		Results: searchResp.Results,
		Answer:  searchResp.Answer,
	}, nil
}

func (r *SearchResult) String() string {
	var buf bytes.Buffer
	if r.Answer != "" {
		fmt.Fprintf(&buf, "ANSWER: %s\n", r.Answer)
	}

	for _, result := range r.Results {
		fmt.Fprintf(&buf, "- URL: %s\n", result.URL)
		fmt.Fprintf(&buf, "  TITLE: %s\n", result.Title)
		fmt.Fprintf(&buf, "  SCORE: %f\n", result.Score)
		fmt.Fprintf(&buf, "  CONTENT: %s\n", result.Content)
	}

	return buf.String()
}
