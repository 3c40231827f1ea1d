package actor

import (
	"github.com/lijiaxing1997/agentbridge/internal/agentsdk"
	"github.com/lijiaxing1997/agentbridge/internal/streamevent"
)

// Query is one unit of work submitted to an Actor.
type Query struct {
	Text        string
	Attachments []agentsdk.ContentBlock
}

// ToContentBlocks renders the query's text (if any) followed by each
// attachment's block, in order — the SDK message content order spec
// §3/§9 fixes for every query shape, text-only or multimodal alike.
func (q Query) ToContentBlocks() []agentsdk.ContentBlock {
	blocks := make([]agentsdk.ContentBlock, 0, len(q.Attachments)+1)
	if q.Text != "" {
		blocks = append(blocks, agentsdk.TextBlock(q.Text))
	}
	blocks = append(blocks, q.Attachments...)
	return blocks
}

// QueryResult is one completed query's outcome.
type QueryResult struct {
	ResponseText string
	SessionID    string
	Cost         *float64
	NumTurns     int
	DurationMS   int64
}

// StreamCallback receives every classified stream event as it arrives,
// invoked only from the Actor's worker goroutine.
type StreamCallback func(ev streamevent.StreamEvent)
