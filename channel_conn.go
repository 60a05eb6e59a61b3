package wavechan

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const recvBufferSize = 64

// connectLocked starts a new connection attempt. The dial runs on its own
// goroutine; its result is discarded if the channel moved on meanwhile.
func (c *Channel) connectLocked() {
	c.gen++
	c.connID = uuid.NewString()
	c.setStateLocked(StateConnecting, nil)

	logger := c.logger.WithField("conn_id", c.connID)
	logger.Infof("connecting, attempt #%d", c.attempt+1)

	go c.dial(c.ctx, c.gen, logger)
}

func (c *Channel) dial(ctx context.Context, gen uint64, logger Logger) {
	token, err := c.credential(ctx)
	if err != nil {
		c.connectFailed(gen, logger, err)
		return
	}

	recv := make(chan Message, recvBufferSize)
	conn := c.factory(ctx, recv)

	if err := conn.Open(ctx); err != nil {
		conn.Close()
		c.connectFailed(gen, logger, err)
		return
	}

	c.connectSucceeded(gen, logger, conn, recv, token)
}

// credential returns the token for the next handshake: the provider's answer
// when one is configured, the latest token given to Open or SetToken otherwise.
func (c *Channel) credential(ctx context.Context) (string, error) {
	var token string

	if c.opts.TokenProvider != nil {
		t, err := c.opts.TokenProvider(ctx)
		if err != nil {
			return "", errors.Wrap(ErrNoCredential, err.Error())
		}
		token = t
	} else {
		c.mu.Lock()
		token = c.token
		c.mu.Unlock()
	}

	if token == "" {
		return "", ErrNoCredential
	}
	return token, nil
}

func (c *Channel) connectFailed(gen uint64, logger Logger, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open || gen != c.gen {
		return
	}

	logger.Warnf("connection attempt failed: %s", err)
	c.setStateLocked(StateDisconnected, err)
	c.scheduleRetryLocked()
}

func (c *Channel) connectSucceeded(
	gen uint64,
	logger Logger,
	conn Connection,
	recv chan Message,
	token string,
) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open || gen != c.gen {
		logger.Debugln("discarding connection opened after the channel moved on")
		conn.Close()
		return
	}

	c.conn = conn
	c.lastSeen = c.opts.Clock.Now()

	go c.forward(gen, logger, conn, recv)

	logger.Debugln("transport open, authenticating")
	if err := conn.Write(c.opts.Protocol.authFrame(token)); err != nil {
		logger.Warnf("cannot send authentication frame: %s", err)
		c.dropConnLocked(err)
		c.scheduleRetryLocked()
	}
}

// forward feeds inbound frames of one connection into the channel, in order,
// until the connection closes.
func (c *Channel) forward(gen uint64, logger Logger, conn Connection, recv chan Message) {
	closed := conn.CloseChan()

	for {
		select {
		case m := <-recv:
			c.handleFrame(gen, logger, m)
		case <-closed:
			for {
				select {
				case m := <-recv:
					c.handleFrame(gen, logger, m)
				default:
					c.handleClosed(gen, logger, conn.CloseErr())
					return
				}
			}
		}
	}
}

func (c *Channel) handleFrame(gen uint64, logger Logger, m Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.conn == nil {
		return
	}

	c.lastSeen = c.opts.Clock.Now()

	switch t := m.Type(); {
	case t.IsData():
	case t.IsPing(), t.IsPong():
		// Transport control frames only prove liveness.
		return
	case t.IsClose():
		logger.Debugf("close frame received: %s", m)
		return
	default:
		logger.Debugf("discarding non-text frame: %s", m)
		return
	}

	ev, err := ParseEvent(m.Data())
	if err != nil {
		logger.Warnf("discarding inbound frame: %s", err)
		return
	}

	p := c.opts.Protocol

	switch ev.Type {
	case p.AuthOK:
		if c.state != StateConnecting {
			logger.Debugf("ignoring %q while %s", ev.Type, c.state)
			return
		}
		logger.Infoln("authenticated")
		c.attempt = 0
		c.setStateLocked(StateAuthenticated, nil)
		c.startHeartbeatLocked()
	case p.AuthFailed:
		logger.Warnf("authentication rejected: %s", ev.Raw)
		if c.state == StateConnecting {
			c.dropConnLocked(ErrAuthFailed)
			c.scheduleRetryLocked()
		}
	case p.HeartbeatReply:
		logger.Debugln("heartbeat reply")
	default:
		c.dispatch.push(func() {
			c.messages.Emit(topicMessage, ev)
		})
	}
}

func (c *Channel) handleClosed(gen uint64, logger Logger, reason error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open || gen != c.gen || c.conn == nil {
		return
	}

	if reason == nil {
		reason = ErrConnectionClosed
	}

	logger.Warnf("connection lost: %s", reason)
	c.dropConnLocked(reason)
	c.scheduleRetryLocked()
}

// dropConnLocked invalidates the current attempt, closes its connection if
// any and moves to Disconnected. It does not schedule a retry.
func (c *Channel) dropConnLocked(reason error) {
	c.gen++
	c.stopHeartbeatLocked()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	c.setStateLocked(StateDisconnected, reason)
}

func (c *Channel) scheduleRetryLocked() {
	if !c.open {
		return
	}

	c.stopRetryLocked()
	c.attempt++

	delay := c.opts.RetryPolicy(c.attempt)
	gen := c.gen

	c.logger.Infof("reconnecting in %s (attempt #%d)", delay, c.attempt)

	c.retryTimer = c.opts.Clock.AfterFunc(delay, func() {
		c.retry(gen)
	})
}

func (c *Channel) retry(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open || gen != c.gen || c.state != StateDisconnected {
		return
	}

	c.retryTimer = nil
	c.connectLocked()
}

func (c *Channel) stopRetryLocked() {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}

func (c *Channel) setStateLocked(to ConnectionState, reason error) {
	from := c.state
	if from == to {
		return
	}

	c.state = to
	c.logger.Debugf("state %s -> %s", from, to)

	change := StateChange{From: from, To: to, Err: reason}
	c.dispatch.push(func() {
		c.states.Emit(topicState, change)
	})

	if was, is := from == StateAuthenticated, to == StateAuthenticated; was != is {
		c.dispatch.push(func() {
			c.connected.Emit(topicConnected, is)
		})
	}
}
