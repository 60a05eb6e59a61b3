package wavechan

import (
	"context"
)

type (
	// Client is the surface the rest of an application depends on. *Channel
	// implements it.
	Client interface {
		// Open starts connecting with the given credential.
		Open(ctx context.Context, token string, handler MessageHandler)
		// Send writes a frame if the channel is authenticated, and drops it otherwise.
		Send(msg any)
		// Close shuts the channel down and stops reconnecting.
		Close()
		// Connected reports whether the channel is authenticated.
		Connected() bool
	}

	// MessageHandler receives every inbound application event.
	MessageHandler func(Event)

	// ConnectedHandler observes the connected signal.
	ConnectedHandler func(bool)

	// StateHandler observes every state transition.
	StateHandler func(StateChange)
)

var _ Client = (*Channel)(nil)
