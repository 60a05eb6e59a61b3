package wavechan

import (
	"net/http"
	"time"

	"github.com/fasthttp/websocket"
)

const (
	// DefaultHeartbeatInterval is how often a keep-alive frame is sent once
	// authenticated.
	DefaultHeartbeatInterval = 30 * time.Second

	// DefaultHeartbeatTimeoutFactor multiplies the heartbeat interval to get the
	// default silence after which a connection is considered dead.
	DefaultHeartbeatTimeoutFactor = 3

	// DefaultHandshakeTimeout bounds the WebSocket opening handshake.
	DefaultHandshakeTimeout = 10 * time.Second
)

// Options configures a Channel.
type Options struct {
	// Header is sent with every WebSocket handshake.
	Header http.Header

	// Logger receives every diagnostic the channel produces.
	Logger Logger

	// Clock schedules the retry and heartbeat timers.
	Clock Clock

	// RetryPolicy picks the delay before each reconnect attempt.
	RetryPolicy RetryPolicy

	// HeartbeatInterval is the keep-alive period. Zero disables heartbeats.
	HeartbeatInterval time.Duration

	// HeartbeatTimeout drops the connection when nothing was received for this
	// long. Zero disables the check; negative selects the default of
	// DefaultHeartbeatTimeoutFactor heartbeat intervals.
	HeartbeatTimeout time.Duration

	// Protocol names the reserved frame types.
	Protocol Protocol

	// TokenProvider, when set, is asked for the credential before every dial
	// instead of using the token given to Open.
	TokenProvider TokenProvider

	// ParamsGetter overrides the dial parameters derived from the endpoint.
	ParamsGetter OpenConnectionParamsGetter

	// Dialer is used by the default WebSocket transport.
	Dialer *websocket.Dialer

	// ConnectionFactory replaces the WebSocket transport entirely.
	ConnectionFactory ConnectionFactory
}

// DefaultOptions returns Options with default values.
func DefaultOptions() Options {
	return Options{
		Logger:            NopLogger(),
		Clock:             SystemClock,
		RetryPolicy:       FixedDelay(DefaultRetryDelay),
		HeartbeatInterval: DefaultHeartbeatInterval,
		HeartbeatTimeout:  -1,
		Protocol:          DefaultProtocol(),
		Dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: DefaultHandshakeTimeout,
		},
	}
}

func (o Options) heartbeatTimeout() time.Duration {
	if o.HeartbeatTimeout < 0 {
		return o.HeartbeatInterval * DefaultHeartbeatTimeoutFactor
	}
	return o.HeartbeatTimeout
}

// Option is a functional option for configuring the channel.
type Option func(*Options)

func WithLogger(l Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

func WithClock(c Clock) Option {
	return func(o *Options) {
		o.Clock = c
	}
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *Options) {
		o.RetryPolicy = p
	}
}

// WithRetryDelay keeps the fixed-delay policy with a different delay.
func WithRetryDelay(d time.Duration) Option {
	return WithRetryPolicy(FixedDelay(d))
}

// WithHeartbeat sets the keep-alive interval and the silence timeout.
func WithHeartbeat(interval, timeout time.Duration) Option {
	return func(o *Options) {
		o.HeartbeatInterval = interval
		o.HeartbeatTimeout = timeout
	}
}

func WithProtocol(p Protocol) Option {
	return func(o *Options) {
		o.Protocol = p
	}
}

func WithTokenProvider(p TokenProvider) Option {
	return func(o *Options) {
		o.TokenProvider = p
	}
}

func WithHeader(h http.Header) Option {
	return func(o *Options) {
		o.Header = h
	}
}

func WithParamsGetter(g OpenConnectionParamsGetter) Option {
	return func(o *Options) {
		o.ParamsGetter = g
	}
}

func WithDialer(d *websocket.Dialer) Option {
	return func(o *Options) {
		o.Dialer = d
	}
}

func WithConnectionFactory(f ConnectionFactory) Option {
	return func(o *Options) {
		o.ConnectionFactory = f
	}
}
