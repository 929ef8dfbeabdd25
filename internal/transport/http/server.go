package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/lobby-server/internal/config"
	"github.com/vovakirdan/lobby-server/internal/core"
)

// NewServer builds the HTTP server: websocket endpoint, session lookups, health and metrics.
// gatherer may be nil to leave /metrics unregistered.
func NewServer(coord *core.Coordinator, cfg *config.Config, logger *zerolog.Logger, gatherer prometheus.Gatherer) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	sessions := NewSessionHandlers(coord, cfg.PublicURL, logger)
	api := router.Group("/api")
	{
		api.GET("/sessions/:code", sessions.GetSession)
		api.GET("/sessions/:code/exists", sessions.CheckExists)
		api.GET("/sessions/:code/qr", sessions.QRCode)
	}

	// The websocket upgrade hijacks the connection, which gin's writer refuses
	// once the 101 is written, so /ws stays on the plain mux.
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(coord, cfg, logger))
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
