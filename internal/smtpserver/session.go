package smtpserver

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/emersion/go-smtp"

	"github.com/yourusername/mailfeed/internal/ingest"
	"github.com/yourusername/mailfeed/internal/storage"
	"github.com/yourusername/mailfeed/internal/utils"
)

// Session accumulates one SMTP transaction and feeds it to the pipeline
// at DATA time.
type Session struct {
	backend *Backend
	conn    *smtp.Conn

	from string
	to   []string
}

func NewSession(b *Backend, conn *smtp.Conn) *Session {
	return &Session{backend: b, conn: conn}
}

func (s *Session) Mail(from string, _ *smtp.MailOptions) error {
	s.from = from
	return nil
}

// Rcpt pre-rejects recipients outside the served domain so the sender
// hears about it at RCPT time; the pipeline re-checks at DATA time.
func (s *Session) Rcpt(to string, _ *smtp.RcptOptions) error {
	if utils.DomainOf(to) != s.backend.domain {
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 1, 1},
			Message:      "recipient domain not served by this server",
		}
	}
	s.to = append(s.to, to)
	return nil
}

// Data runs the pipeline. A pipeline run either completes or fails on
// its own; there is no caller-driven cancellation, so the context only
// carries the per-attempt timeouts set further down.
func (s *Session) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	env := ingest.Envelope{
		From:       s.from,
		Recipients: s.to,
	}
	if s.conn != nil {
		env.HELO = s.conn.Hostname()
		if c := s.conn.Conn(); c != nil {
			env.RemoteAddr = remoteIP(c.RemoteAddr().String())
		}
	}

	id, err := s.backend.pipeline.Process(context.Background(), raw, env)
	if err != nil {
		s.backend.logger.Warn("message rejected", "from", s.from, "error", err)
		return toSMTPError(err)
	}

	s.backend.logger.Info("message accepted", "from", s.from, "id", id)
	return nil
}

func (s *Session) Reset() {
	s.from, s.to = "", nil
}

func (s *Session) Logout() error { return nil }

// toSMTPError maps a pipeline rejection onto an SMTP reply the remote
// sender can act on. Storage trouble reads as transient; everything else
// is a permanent refusal.
func toSMTPError(err error) error {
	var rej *ingest.RejectError
	if !errors.As(err, &rej) {
		return err
	}

	switch rej.Stage {
	case ingest.StageStorage:
		// Duplicate redelivery is a permanent condition, not a glitch.
		if errors.Is(rej.Err, storage.ErrDuplicateMessage) {
			return &smtp.SMTPError{
				Code:         550,
				EnhancedCode: smtp.EnhancedCode{5, 7, 0},
				Message:      "message already delivered",
			}
		}
		return &smtp.SMTPError{
			Code:         451,
			EnhancedCode: smtp.EnhancedCode{4, 3, 0},
			Message:      "temporary storage failure",
		}
	default:
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 7, 0},
			Message:      rej.Error(),
		}
	}
}

// remoteIP strips the port from a host:port remote address.
func remoteIP(addr string) string {
	if i := strings.LastIndex(addr, ":"); i != -1 {
		return addr[:i]
	}
	return addr
}
