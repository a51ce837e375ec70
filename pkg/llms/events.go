package llms

// Event is one item of the ordered event sequence a model provider emits
// during a single turn. The set of variants is closed: adapters translate
// anything they do not recognize into Unknown, which consumers ignore.
type Event interface {
	isEvent()
}

// BlockKind is the kind of a content block.
type BlockKind string

const (
	// BlockText is a plain text block.
	BlockText BlockKind = "text"
	// BlockToolUse is a tool-use block.
	BlockToolUse BlockKind = "tool_use"
)

// DeltaKind is the kind of a block delta.
type DeltaKind string

const (
	// DeltaText carries a text fragment.
	DeltaText DeltaKind = "text_delta"
	// DeltaJSON carries a raw JSON fragment of tool arguments.
	DeltaJSON DeltaKind = "input_json_delta"
)

// Stop reasons reported in MessageDelta.
const (
	StopReasonEndTurn   = "end_turn"
	StopReasonMaxTokens = "max_tokens"
	StopReasonToolUse   = "tool_use"
)

// MessageStart opens a turn.
type MessageStart struct {
	ID          string
	Model       string
	InputTokens int64
}

// BlockStart opens a content block.
type BlockStart struct {
	Index int64
	Kind  BlockKind
	// ToolName and ToolUseID are set for BlockToolUse.
	ToolName  string
	ToolUseID string
}

// BlockDelta carries a fragment of the current block.
type BlockDelta struct {
	Index       int64
	Kind        DeltaKind
	Text        string
	PartialJSON string
}

// BlockStop closes the current block.
type BlockStop struct {
	Index int64
}

// MessageDelta carries the turn-level stop reason and usage.
type MessageDelta struct {
	StopReason   string
	OutputTokens int64
	// InputTokens is set by providers that report the prompt usage
	// at the end of the turn, it replaces the count of MessageStart.
	InputTokens int64
}

// MessageStop ends the turn.
type MessageStop struct{}

// Unknown is any event the adapter does not model.
type Unknown struct {
	Type string
}

func (MessageStart) isEvent() {}
func (BlockStart) isEvent()   {}
func (BlockDelta) isEvent()   {}
func (BlockStop) isEvent()    {}
func (MessageDelta) isEvent() {}
func (MessageStop) isEvent()  {}
func (Unknown) isEvent()      {}
