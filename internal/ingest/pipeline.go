// Package ingest runs the per-message pipeline: recipient-domain check,
// authentication gate, MIME decode, transactional persistence, and
// notification fan-out. Each inbound message runs the sequence
// independently, short-circuiting on the first failing gate.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yourusername/mailfeed/internal/mailauth"
	"github.com/yourusername/mailfeed/internal/models"
	"github.com/yourusername/mailfeed/internal/utils"
)

// Store is the persistence surface the pipeline needs.
type Store interface {
	SaveMessage(ctx context.Context, msg *models.Message) (int64, error)
}

// Decoder turns raw bytes into the structured message.
type Decoder func(raw []byte) (*models.Message, error)

// Dispatcher announces a persisted message downstream.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg *models.Message)
}

// Envelope is the transport-session metadata for one inbound message.
type Envelope struct {
	From       string
	Recipients []string
	RemoteAddr string
	HELO       string
}

// Pipeline wires the collaborators together. Side effects are strictly
// ordered: no decode before the auth gate passes, no persist before a
// successful decode, no notification before persistence.
type Pipeline struct {
	Domain     string
	Store      Store
	Decode     Decoder
	Verifier   mailauth.Verifier
	Policy     mailauth.Policy
	Dispatcher Dispatcher
	AuthBypass bool
	Logger     *slog.Logger
}

// Process runs one message through the pipeline and returns the
// store-assigned id. Any gate failure returns a *RejectError; the
// transport layer decides how to signal it to the remote sender.
// Notification failures are logged and never fail acceptance.
func (p *Pipeline) Process(ctx context.Context, raw []byte, env Envelope) (int64, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// 1. Domain check: every recipient must belong to the served domain.
	if len(env.Recipients) == 0 {
		return 0, reject(StageDomain, errors.New("no recipients specified"))
	}
	for _, rcpt := range env.Recipients {
		if utils.DomainOf(rcpt) != p.Domain {
			return 0, reject(StageDomain,
				fmt.Errorf("recipient domain not served by this server: %q", rcpt))
		}
	}

	// 2. Authentication gate.
	if !p.AuthBypass {
		res, err := p.Verifier.Verify(ctx, raw, mailauth.Session{
			RemoteAddr: env.RemoteAddr,
			HELO:       env.HELO,
			Sender:     env.From,
		})
		if err != nil {
			return 0, reject(StageAuth, fmt.Errorf("verify message: %w", err))
		}
		if err := p.Policy.Evaluate(res, logger); err != nil {
			return 0, reject(StageAuth, err)
		}
	}

	// 3. Decode.
	msg, err := p.Decode(raw)
	if err != nil {
		return 0, reject(StageDecode, err)
	}
	if msg.FromAddress == "" {
		msg.FromAddress = env.From
	}

	// 4. Persist, atomically with all attachments.
	id, err := p.Store.SaveMessage(ctx, msg)
	if err != nil {
		return 0, reject(StageStorage, err)
	}

	logger.Info("message stored",
		"id", id, "message_id", msg.MessageID,
		"from", msg.FromAddress, "attachments", len(msg.Attachments))

	// 5. Notify. Fire-and-forget from the accept path's point of view.
	if p.Dispatcher != nil {
		p.Dispatcher.Dispatch(context.WithoutCancel(ctx), msg)
	}

	return id, nil
}
