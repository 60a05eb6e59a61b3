package wavechan

import (
	"context"
	"sync"
	"time"
)

type topic string

const (
	topicMessage   topic = "message"
	topicConnected topic = "connected"
	topicState     topic = "state"
)

// Channel keeps one logical, authenticated connection to a push endpoint.
//
// It dials, sends the authentication frame, waits for the acknowledgement, then
// heartbeats for as long as the transport stays up. Whenever the connection is
// lost without Close having been called it waits for the retry policy and dials
// again, forever. Inbound frames are decoded and handed to subscribers, except
// the handshake and heartbeat replies which are consumed here.
//
// All state is guarded by mu. Subscribers and observers run on a separate
// dispatch goroutine, one at a time and in event order, so they may call back
// into the Channel.
type Channel struct {
	opts   Options
	logger Logger

	factory ConnectionFactory

	mu         sync.Mutex
	open       bool
	session    uint64
	ctx        context.Context
	cancel     context.CancelFunc
	token      string
	handler    *handlerSlot

	state    ConnectionState
	gen      uint64
	conn     Connection
	connID   string
	attempt  int
	lastSeen time.Time

	retryTimer     Timer
	heartbeatTimer Timer

	messages  *EventEmitterCallback[topic, Event]
	connected *EventEmitterCallback[topic, bool]
	states    *EventEmitterCallback[topic, StateChange]
	dispatch  dispatcher
}

// New creates a Channel for endpoint. Nothing happens until Open.
func New(endpoint string, opts ...Option) *Channel {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return NewWithOptions(endpoint, options)
}

// NewWithOptions creates a Channel with explicit options. Nil fields and a
// zero Protocol fall back to their defaults; zero heartbeat settings disable
// heartbeats.
func NewWithOptions(endpoint string, options Options) *Channel {
	defaults := DefaultOptions()
	if options.Logger == nil {
		options.Logger = defaults.Logger
	}
	if options.Clock == nil {
		options.Clock = defaults.Clock
	}
	if options.RetryPolicy == nil {
		options.RetryPolicy = defaults.RetryPolicy
	}
	if options.Protocol == (Protocol{}) {
		options.Protocol = defaults.Protocol
	}
	if options.Dialer == nil {
		options.Dialer = defaults.Dialer
	}
	if options.ParamsGetter == nil {
		options.ParamsGetter = StaticURL(endpoint, options.Header)
	}

	logger := options.Logger.WithField("component", "wavechan")

	factory := options.ConnectionFactory
	if factory == nil {
		factory = NewWebsocketFactory(
			logger,
			options.Dialer,
			NewOpenConnectionParamsRepo(logger, options.ParamsGetter),
			ErrorAdapters{},
		)
	}

	return &Channel{
		opts:      options,
		logger:    logger,
		factory:   factory,
		messages:  NewEventEmitter[topic, Event](),
		connected: NewEventEmitter[topic, bool](),
		states:    NewEventEmitter[topic, StateChange](),
	}
}

// Open starts connecting with token and registers handler, which may be nil,
// as a subscriber.
//
// Calling Open while already open with the same token does nothing. With a
// different token, the new token and handler replace the old ones and the
// connection is re-established right away. Open never fails: connection
// problems are logged and retried, and the only visible signal is Connected.
// Cancelling ctx has the same effect as Close.
func (c *Channel) Open(ctx context.Context, token string, handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.open {
		if token == c.token {
			c.logger.Debugln("open ignored: already open with the same credential")
			return
		}
		c.logger.Infoln("credential changed, reconnecting")
		c.token = token
		c.replaceHandlerLocked(handler)
		c.stopRetryLocked()
		c.dropConnLocked(nil)
		c.attempt = 0
		c.connectLocked()
		return
	}

	c.open = true
	c.session++
	c.token = token
	c.replaceHandlerLocked(handler)
	c.attempt = 0
	c.ctx, c.cancel = context.WithCancel(ctx)

	go c.watch(c.ctx, c.session)

	c.connectLocked()
}

// Close shuts the channel down. Pending retry and heartbeat timers are
// cancelled and the connection is closed without triggering a reconnect. Once
// Close returns nothing is written, dialled or transitioned until the next
// Open. Calling Close more than once is harmless.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closeLocked()
}

func (c *Channel) closeLocked() {
	if !c.open {
		return
	}

	c.logger.Infoln("closing channel")

	c.open = false
	c.cancel()
	c.stopRetryLocked()
	c.dropConnLocked(nil)
	c.replaceHandlerLocked(nil)
}

// watch closes the channel when the context given to Open is cancelled.
func (c *Channel) watch(ctx context.Context, session uint64) {
	<-ctx.Done()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.open && c.session == session {
		c.logger.Infof("context done: %s", ctx.Err())
		c.closeLocked()
	}
}

// Send encodes msg as JSON and writes it if the channel is authenticated.
// Otherwise the frame is dropped and logged: there is no outbound queue.
// msg must encode as an object with a non-empty "type" field.
func (c *Channel) Send(msg any) {
	bts, typ, err := EncodeFrame(msg)
	if err != nil {
		c.logger.Warnf("dropping outbound frame: %s", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateAuthenticated || c.conn == nil {
		c.logger.Warnf("dropping outbound %q frame: channel is %s", typ, c.state)
		return
	}

	if err := c.conn.Write(NewDataMessage(bts)); err != nil {
		c.logger.Warnf("dropping outbound %q frame: %s", typ, err)
	}
}

// SetToken replaces the credential used by the next connection attempt
// without touching the current connection.
func (c *Channel) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// State returns the current connection state.
func (c *Channel) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether the handshake completed and the connection has
// not been lost since.
func (c *Channel) Connected() bool {
	return c.State() == StateAuthenticated
}

// Subscribe registers an additional message handler. Every handler sees every
// application event once, in arrival order. The returned func unsubscribes.
func (c *Channel) Subscribe(handler MessageHandler) func() {
	if handler == nil {
		return func() {}
	}
	return c.messages.On(topicMessage, callback[Event](handler))
}

// OnConnected registers an observer of the connected signal. It fires each
// time the channel becomes authenticated and each time it stops being so.
func (c *Channel) OnConnected(handler ConnectedHandler) func() {
	if handler == nil {
		return func() {}
	}
	return c.connected.On(topicConnected, callback[bool](handler))
}

// OnStateChange registers an observer of every state transition.
func (c *Channel) OnStateChange(handler StateHandler) func() {
	if handler == nil {
		return func() {}
	}
	return c.states.On(topicState, callback[StateChange](handler))
}

// handlerSlot holds the subscription of the handler given to Open. It is only
// touched from the dispatch goroutine.
type handlerSlot struct {
	off func()
}

// replaceHandlerLocked swaps the Open handler in dispatch order: frames
// accepted before the swap still reach the old handler and only later ones
// reach the new handler.
func (c *Channel) replaceHandlerLocked(handler MessageHandler) {
	prev := c.handler
	c.handler = nil

	var next *handlerSlot
	if handler != nil {
		next = &handlerSlot{}
		c.handler = next
	}

	if prev == nil && next == nil {
		return
	}

	c.dispatch.push(func() {
		if prev != nil && prev.off != nil {
			prev.off()
		}
		if next != nil {
			next.off = c.messages.On(topicMessage, callback[Event](handler))
		}
	})
}
