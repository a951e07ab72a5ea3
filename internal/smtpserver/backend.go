package smtpserver

import (
	"log/slog"

	"github.com/emersion/go-smtp"

	"github.com/yourusername/mailfeed/internal/ingest"
)

// Backend hands each SMTP connection a fresh Session bound to the
// ingestion pipeline.
type Backend struct {
	pipeline *ingest.Pipeline
	domain   string
	logger   *slog.Logger
}

func NewBackend(pipeline *ingest.Pipeline, domain string, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{pipeline: pipeline, domain: domain, logger: logger}
}

func (b *Backend) NewSession(conn *smtp.Conn) (smtp.Session, error) {
	return NewSession(b, conn), nil
}
