package worker

import (
	"context"

	"github.com/tuanzicui/openmeteo-agent/internal/bus"
)

// Agent is anything that drains an inbox until its context ends.
type Agent interface {
	Start(ctx context.Context) error
	Inbox() chan bus.Message
}
