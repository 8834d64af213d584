package ports

import (
	"context"

	"github.com/mikey-austin/loop_utopia/pkg/lu"
)

// Broker publishes commands and reads retained state/presence.
type Broker interface {
	ReplyTopic() string
	PublishCommand(ctx context.Context, nodeID string, cmd lu.CommandEnvelope) (lu.ReplyEnvelope, error)
	ListPresence(ctx context.Context) ([]lu.Presence, error)
	GetPlayerState(ctx context.Context, nodeID string) (lu.PlayerState, error)
	WatchPlayer(ctx context.Context, nodeID string) (<-chan lu.PlayerState, <-chan lu.Event, <-chan error)
}

// Clock returns the current unix time in seconds.
type Clock interface {
	NowUnix() int64
}

// IDGen returns unique correlation IDs.
type IDGen interface {
	NewID() string
}
