package bedrockclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpllm/pkg/llms"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpllm", "bedrockclient")

// ErrUnsupportedProvider is returned for model families other than Anthropic.
var ErrUnsupportedProvider = errors.New("bedrock: unsupported provider")

// API is the part of the Bedrock runtime client used for streaming.
type API interface {
	InvokeModelWithResponseStream(ctx context.Context, params *bedrockruntime.InvokeModelWithResponseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelWithResponseStreamOutput, error)
}

// ResponseStreamReader is the event stream of an InvokeModelWithResponseStream call.
type ResponseStreamReader interface {
	Events() <-chan types.ResponseStream
	Err() error
	Close() error
}

type openFunc func(ctx context.Context, input *bedrockruntime.InvokeModelWithResponseStreamInput) (ResponseStreamReader, error)

// Client is a Bedrock client.
type Client struct {
	open openFunc
}

func getProvider(modelID string) string {
	// Handle Inference Profiles (e.g., "us.anthropic.claude-3-5-sonnet-20241022-v2:0")
	// and direct model IDs (e.g., "anthropic.claude-3-sonnet-20240229-v1:0")
	parts := strings.Split(modelID, ".")
	if len(parts) >= 2 {
		// Check if first part is a region (like "us", "eu", etc.)
		if len(parts[0]) == 2 && strings.ToLower(parts[0]) == parts[0] {
			return parts[1]
		}
		return parts[0]
	}
	return parts[0]
}

// NewClient creates a new Bedrock client.
func NewClient(api API) *Client {
	return &Client{
		open: func(ctx context.Context, input *bedrockruntime.InvokeModelWithResponseStreamInput) (ResponseStreamReader, error) {
			output, err := api.InvokeModelWithResponseStream(ctx, input)
			if err != nil {
				return nil, err
			}
			stream := output.GetStream()
			if stream == nil {
				return nil, errors.New("bedrock: no stream")
			}
			return stream, nil
		},
	}
}

// CreateStream sends the history to the model and returns the events of the turn.
func (c *Client) CreateStream(ctx context.Context,
	modelID string,
	messages []llms.Message,
	options llms.CallOptions,
) (llms.EventStream, error) {
	provider := getProvider(modelID)
	if provider != "anthropic" {
		return nil, errors.WithMessagef(ErrUnsupportedProvider, "bedrock: model %s", modelID)
	}

	input, err := newAnthropicStreamInput(modelID, messages, options)
	if err != nil {
		return nil, err
	}

	reader, err := c.open(ctx, input)
	if err != nil {
		return nil, errors.Wrap(err, "bedrock: failed to invoke model")
	}
	return NewEventStream(reader), nil
}

// EventStream decodes the payload chunks of a Bedrock response stream.
// Each chunk carries one Anthropic Messages stream event.
type EventStream struct {
	reader ResponseStreamReader
	cur    llms.Event
	err    error
}

// NewEventStream returns the llms.EventStream over the reader.
func NewEventStream(reader ResponseStreamReader) *EventStream {
	return &EventStream{reader: reader}
}

// Next implements llms.EventStream.
func (s *EventStream) Next() bool {
	if s.err != nil {
		return false
	}
	for e := range s.reader.Events() {
		chunk, ok := e.(*types.ResponseStreamMemberChunk)
		if !ok {
			logger.KV(xlog.DEBUG, "status", "unknown_event", "type", fmt.Sprintf("%T", e))
			continue
		}
		ev, err := llms.DecodeWireEvent(chunk.Value.Bytes)
		if err != nil {
			s.err = err
			return false
		}
		s.cur = ev
		return true
	}
	return false
}

// Current implements llms.EventStream.
func (s *EventStream) Current() llms.Event {
	return s.cur
}

// Err implements llms.EventStream.
func (s *EventStream) Err() error {
	if s.err != nil {
		return s.err
	}
	if err := s.reader.Err(); err != nil {
		return errors.Wrap(err, "bedrock: streaming error")
	}
	return nil
}

// Close implements llms.EventStream.
func (s *EventStream) Close() error {
	return s.reader.Close()
}
