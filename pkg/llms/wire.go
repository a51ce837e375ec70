package llms

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// wireEvent is the JSON shape of an Anthropic Messages stream event,
// shared by the Anthropic API and Bedrock response chunks.
type wireEvent struct {
	Type    string `json:"type"`
	Index   int64  `json:"index"`
	Message struct {
		ID    string `json:"id"`
		Model string `json:"model"`
		Usage struct {
			InputTokens int64 `json:"input_tokens"`
		} `json:"usage"`
	} `json:"message"`
	ContentBlock struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content_block"`
	Delta struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
		StopReason  string `json:"stop_reason"`
	} `json:"delta"`
	Usage struct {
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
}

// DecodeWireEvent decodes one Anthropic stream event payload.
// Event types and block kinds it does not model decode to Unknown.
func DecodeWireEvent(data []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, errors.Wrap(err, "failed to decode stream event")
	}

	switch w.Type {
	case "message_start":
		return MessageStart{
			ID:          w.Message.ID,
			Model:       w.Message.Model,
			InputTokens: w.Message.Usage.InputTokens,
		}, nil
	case "content_block_start":
		switch BlockKind(w.ContentBlock.Type) {
		case BlockText:
			return BlockStart{Index: w.Index, Kind: BlockText}, nil
		case BlockToolUse:
			return BlockStart{
				Index:     w.Index,
				Kind:      BlockToolUse,
				ToolName:  w.ContentBlock.Name,
				ToolUseID: w.ContentBlock.ID,
			}, nil
		}
		return BlockStart{Index: w.Index, Kind: BlockKind(w.ContentBlock.Type)}, nil
	case "content_block_delta":
		switch DeltaKind(w.Delta.Type) {
		case DeltaText:
			return BlockDelta{Index: w.Index, Kind: DeltaText, Text: w.Delta.Text}, nil
		case DeltaJSON:
			return BlockDelta{Index: w.Index, Kind: DeltaJSON, PartialJSON: w.Delta.PartialJSON}, nil
		}
		return Unknown{Type: w.Type + "/" + w.Delta.Type}, nil
	case "content_block_stop":
		return BlockStop{Index: w.Index}, nil
	case "message_delta":
		return MessageDelta{StopReason: w.Delta.StopReason, OutputTokens: w.Usage.OutputTokens}, nil
	case "message_stop":
		return MessageStop{}, nil
	}
	return Unknown{Type: w.Type}, nil
}
