package talkie

import "context"

// ChannelEventKind enum
type ChannelEventKind int

const (
	ChannelConnected ChannelEventKind = iota
	ChannelMessage
	ChannelError
)

func (k ChannelEventKind) String() string {
	switch k {
	case ChannelConnected:
		return "connected"
	case ChannelMessage:
		return "message"
	case ChannelError:
		return "error"
	default:
		return "unknown"
	}
}

// ChannelEvent is delivered on Channel.Events in transport order.
type ChannelEvent struct {
	Kind    ChannelEventKind
	Topic   string
	Payload []byte
	Err     error
}

// Channel is the publish/subscribe transport a Session talks through.
//
// Connect only starts the attempt; the outcome arrives as a ChannelConnected
// or ChannelError event. ChannelConnected is delivered again after every
// transport-level reconnect. Events is closed once Close returns.
type Channel interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, topics ...string) error
	Publish(ctx context.Context, topic string, payload []byte) error
	Events() <-chan ChannelEvent
	Close() error
}

// ChannelFactory builds a fresh Channel for each connect attempt.
type ChannelFactory func(config *TalkieConfig, localID string, logger *TalkieLogger) (Channel, error)
