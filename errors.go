package wavechan

import (
	"fmt"
	"net/url"

	"github.com/pkg/errors"
)

var (
	ErrConnectionClosed = errors.New("connection has been closed")
	ErrCannotConnect    = errors.New("connection cannot be established")
	ErrTerminated       = errors.New("program exit")
	ErrRateLimit        = errors.New("rate limit exceeded")
	ErrUnauthorized     = errors.New("handshake rejected by server")
	ErrAuthFailed       = errors.New("authentication failed")
	ErrHeartbeatTimeout = errors.New("no frame received within heartbeat timeout")
	ErrNoCredential     = errors.New("no credential available")
	ErrMalformedFrame   = errors.New("malformed frame")
)

// ErrDial carries the endpoint a dial failure refers to.
type ErrDial struct {
	err error
	url url.URL
}

func (e ErrDial) Error() string {
	return fmt.Sprintf("dial error: %s to %s", e.err, e.url.Redacted())
}

func (e ErrDial) Unwrap() error { return e.err }

func WrapErrorDial(err error, u url.URL) error {
	if err == nil {
		return nil
	}
	return &ErrDial{
		err: err,
		url: u,
	}
}
