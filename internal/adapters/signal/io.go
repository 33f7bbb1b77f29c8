package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dkeye/talkroom/internal/core"
	"github.com/dkeye/talkroom/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *wsSignalConn) {
	ping := time.NewTicker(ctl.cfg.PingPeriod)
	defer func() {
		ping.Stop()
		c.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			closer(c.conn, ctl.cfg.WriteWait)
			return
		case <-ping.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.cfg.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.cfg.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump processes the events of one connection strictly in arrival order.
// On exit it runs the disconnect cleanup whatever the cause.
func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, sid core.SessionID, c *wsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		cancel()
		dctx, dcancel := context.WithTimeout(context.Background(), disconnectTimeout)
		ctl.Orch.Disconnect(dctx, sid)
		dcancel()
		c.Close()
	}()

	c.conn.SetReadLimit(ctl.cfg.ReadLimit)
	extend := func() error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.cfg.PongWait))
	}
	c.conn.SetPongHandler(func(string) error { return extend() })
	if err := extend(); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("readPump set deadline")
		return
	}

	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || ctx.Err() != nil {
				log.Info().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("connection closed")
			} else {
				log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
			}
			return
		}
		if mt != websocket.TextMessage {
			ctl.sendAck(c, nil, core.Fail(domain.ErrBadPayload))
			continue
		}
		ctl.handleSignal(ctx, sid, c, data)
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, sid core.SessionID, c *wsSignalConn, data []byte) {
	var env core.RawEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendAck(c, nil, core.Fail(domain.ErrBadPayload))
		return
	}
	msg, err := core.DecodeInbound(env.Event, env.Data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("event", string(env.Event)).Msg("bad event")
		ctl.sendAck(c, env.ID, core.Fail(err))
		return
	}
	ctl.sendAck(c, env.ID, ctl.Orch.Dispatch(ctx, sid, msg))
}
