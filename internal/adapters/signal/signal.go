package signal

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/talkroom/internal/adapters/auth"
	"github.com/dkeye/talkroom/internal/app/orch"
	"github.com/dkeye/talkroom/internal/core"
	"github.com/dkeye/talkroom/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

const (
	defaultReadLimit  = 1 << 20
	defaultPingPeriod = 54 * time.Second
	defaultPongWait   = 60 * time.Second
	defaultWriteWait  = 5 * time.Second
	defaultSendBuffer = 64

	disconnectTimeout = 5 * time.Second
)

type Config struct {
	ReadLimit      int64
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	SendBuffer     int
	AllowedOrigins []string
}

func (c *Config) withDefaults() {
	if c.ReadLimit <= 0 {
		c.ReadLimit = defaultReadLimit
	}
	if c.PingPeriod <= 0 {
		c.PingPeriod = defaultPingPeriod
	}
	if c.PongWait <= c.PingPeriod {
		c.PongWait = c.PingPeriod + c.PingPeriod/9
	}
	if c.WriteWait <= 0 {
		c.WriteWait = defaultWriteWait
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = defaultSendBuffer
	}
}

type SignalWSController struct {
	Orch     *orch.Orchestrator
	Verifier core.IdentityVerifier

	cfg      Config
	upgrader websocket.Upgrader
}

func NewSignalWSController(o *orch.Orchestrator, v core.IdentityVerifier, cfg Config) *SignalWSController {
	cfg.withDefaults()
	ctl := &SignalWSController{Orch: o, Verifier: v, cfg: cfg}
	ctl.upgrader = websocket.Upgrader{CheckOrigin: ctl.checkOrigin}
	return ctl
}

func (ctl *SignalWSController) checkOrigin(r *http.Request) bool {
	if len(ctl.cfg.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(ctl.cfg.AllowedOrigins, r.Header.Get("Origin"))
}

type wsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// HandleSignal authenticates the handshake, upgrades the connection and
// starts its pumps. A missing or invalid credential is answered with 401
// before any upgrade.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	token := auth.ExtractToken(c.Query("token"), c.GetHeader("Authorization"))
	id, err := ctl.Verifier.Verify(c.Request.Context(), token)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("remote", c.ClientIP()).Msg("handshake rejected")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": domain.ErrUnauthorized.Error()})
		return
	}

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	sid := core.SessionID(uuid.NewString())
	conn := &wsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.cfg.SendBuffer),
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("user", string(id.ID)).Msg("new WS connection")

	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Connect(core.NewMemberSession(sid, conn), cancel)
	if err := ctl.Orch.Attach(ctx, sid, id); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("attach identity")
		cancel()
		ctl.Orch.Disconnect(context.Background(), sid)
		conn.Close()
		return
	}

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, sid, conn)
}
