package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/mailfeed/internal/notify"
)

// Server carries the dependencies of the HTTP read surface.
type Server struct {
	store     MessageReader
	registry  ConsumerRegistry
	hub       *notify.Hub
	token     string
	heartbeat time.Duration
	dnsAddr   string
	logger    *slog.Logger
}

// Options tunes the server; zero values fall back to 30s heartbeats and
// a public resolver for webhook-host checks.
type Options struct {
	Heartbeat time.Duration
	DNSAddr   string
}

func NewServer(store MessageReader, reg ConsumerRegistry, hub *notify.Hub, token string, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 30 * time.Second
	}
	if opts.DNSAddr == "" {
		opts.DNSAddr = "8.8.8.8:53"
	}
	return &Server{
		store:     store,
		registry:  reg,
		hub:       hub,
		token:     token,
		heartbeat: opts.Heartbeat,
		dnsAddr:   opts.DNSAddr,
		logger:    logger,
	}
}

// Router wires every HTTP endpoint behind the bearer-token middleware.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(bearerAuth(s.token))

	r.GET("/messages/:id", s.handleGetMessage)
	r.GET("/messages", s.handleListMessages)
	r.GET("/messages/:id/attachments/:attachmentId", s.handleGetAttachment)
	r.GET("/notify", s.handleNotify)
	r.POST("/consumers/register", s.handleRegisterConsumer)

	return r
}
