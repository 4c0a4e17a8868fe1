package signal

import (
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// writePump drains the send queue and keeps the peer alive with pings.
// Any write failure closes the connection, which also ends its read side.
func (c *WsSignalConn) writePump() {
	var tick <-chan time.Time
	if c.opts.PingPeriod > 0 {
		ticker := time.NewTicker(c.opts.PingPeriod)
		defer ticker.Stop()
		tick = ticker.C
	}
	defer c.Close()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("sid", string(c.id)).Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				if !isBenignWriteErr(err) {
					log.Warn().Err(err).Str("module", "signal").Str("sid", string(c.id)).Msg("writePump write error")
				}
				return
			}
		case <-tick:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(c.id)).Msg("writePump ping error")
				return
			}
		}
	}
}

func isBenignWriteErr(err error) bool {
	return errors.Is(err, websocket.ErrCloseSent)
}
