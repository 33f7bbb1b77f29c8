package http

import (
	"context"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dkeye/talkroom/internal/adapters/auth"
	"github.com/dkeye/talkroom/internal/adapters/signal"
	"github.com/dkeye/talkroom/internal/app/orch"
	"github.com/dkeye/talkroom/internal/config"
	"github.com/dkeye/talkroom/internal/core"
	"github.com/dkeye/talkroom/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const identityKey = "identity"

// BearerMiddleware verifies the Authorization header (or ?token=) and stores
// the identity in the gin context.
func BearerMiddleware(v core.IdentityVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.ExtractToken(c.Query("token"), c.GetHeader("Authorization"))
		id, err := v.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": domain.ErrUnauthorized.Error()})
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, v core.IdentityVerifier) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	if st, err := os.Stat(cfg.StaticPath); err == nil && st.IsDir() {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(filepath.Join(cfg.StaticPath, "index.html"))
		})
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	ctl := signal.NewSignalWSController(o, v, signal.Config{
		ReadLimit:      cfg.ReadLimit,
		PingPeriod:     cfg.PingPeriod,
		PongWait:       cfg.PongWait,
		WriteWait:      cfg.WriteWait,
		SendBuffer:     cfg.SendBuffer,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")
	api.GET("/ws", func(c *gin.Context) {
		ctl.HandleSignal(ctx, c)
	})

	rooms := api.Group("/rooms", BearerMiddleware(v))
	rooms.GET("", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": o.ActiveRooms()})
	})
	rooms.GET("/:roomId/presence", func(c *gin.Context) {
		c.JSON(http.StatusOK, o.RoomPresence(domain.RoomID(c.Param("roomId"))))
	})

	return r
}
