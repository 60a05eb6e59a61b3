package wavechan

import (
	"context"
)

type (
	CloseChan chan struct{}

	// Connection is a single transport session. Inbound frames are pushed to the
	// recv channel handed to its ConnectionFactory; CloseChan is closed after the
	// last frame has been pushed.
	Connection interface {
		Write(m Message) error
		Open(ctx context.Context) error
		Close()
		CloseErr() error
		CloseChan() CloseChan
	}

	ConnectionFactory func(ctx context.Context, recvChan chan<- Message) Connection
)
