package wavechan

// startHeartbeatLocked schedules the keep-alive loop for the current
// connection. Each tick either sends a heartbeat frame and reschedules itself
// or, when the connection has been silent for longer than the heartbeat
// timeout, drops it so the retry path takes over.
func (c *Channel) startHeartbeatLocked() {
	c.stopHeartbeatLocked()

	if c.opts.HeartbeatInterval <= 0 {
		return
	}

	gen := c.gen
	c.heartbeatTimer = c.opts.Clock.AfterFunc(c.opts.HeartbeatInterval, func() {
		c.heartbeat(gen)
	})
}

func (c *Channel) stopHeartbeatLocked() {
	if c.heartbeatTimer != nil {
		c.heartbeatTimer.Stop()
		c.heartbeatTimer = nil
	}
}

func (c *Channel) heartbeat(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open || gen != c.gen || c.state != StateAuthenticated || c.conn == nil {
		return
	}

	logger := c.logger.WithField("conn_id", c.connID)

	if timeout := c.opts.heartbeatTimeout(); timeout > 0 {
		if silence := c.opts.Clock.Now().Sub(c.lastSeen); silence > timeout {
			logger.Warnf("nothing received for %s, dropping connection", silence)
			c.dropConnLocked(ErrHeartbeatTimeout)
			c.scheduleRetryLocked()
			return
		}
	}

	if err := c.conn.Write(c.opts.Protocol.heartbeatFrame()); err != nil {
		logger.Warnf("cannot send heartbeat: %s", err)
	}

	c.startHeartbeatLocked()
}
