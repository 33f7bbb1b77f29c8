package signal

import (
	"time"

	"github.com/dkeye/talkroom/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) sendAck(c *wsSignalConn, id *uint64, ack core.Ack) {
	b, err := core.EncodeAck(id, ack)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendAck marshal")
		return
	}
	if err := c.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("ack dropped")
	}
}

// closer performs the close handshake and releases the socket.
func closer(conn *websocket.Conn, wait time.Duration) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wait)); err != nil {
		log.Debug().Err(err).Str("module", "signal").Msg("close handshake")
	}
	_ = conn.Close()
}
