package bus

import (
	"github.com/tuanzicui/openmeteo-agent/internal/metrics"
)

type Message struct {
	Type    string
	Payload map[string]any
}

// Bus is a minimal named-channel registry. Each subscriber owns its channel;
// several workers may drain the same channel to form a pool.
type Bus struct {
	subs map[string]chan Message
}

func New() *Bus {
	return &Bus{
		subs: make(map[string]chan Message),
	}
}

func (b *Bus) Subscribe(name string, ch chan Message) {
	b.subs[name] = ch
}

// Send delivers to the named subscriber. Unknown targets are counted as
// dropped and otherwise ignored.
func (b *Bus) Send(target string, msg Message) {
	ch, ok := b.subs[target]
	if !ok {
		metrics.QueueMessages.Inc(map[string]string{"target": target, "result": "dropped"})
		return
	}
	ch <- msg
	metrics.QueueMessages.Inc(map[string]string{"target": target, "result": "sent"})
}
