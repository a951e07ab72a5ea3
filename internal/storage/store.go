package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/yourusername/mailfeed/internal/config"
	"github.com/yourusername/mailfeed/internal/db"
	"github.com/yourusername/mailfeed/internal/models"
)

// Sentinel errors callers branch on. Anything else coming out of the
// store is an infrastructure failure.
var (
	ErrNotFound         = errors.New("storage: not found")
	ErrMissingMessageID = errors.New("storage: message has no external message id")
	ErrDuplicateMessage = errors.New("storage: duplicate external message id")
)

const uniqueViolation = "23505"

// Store provides durable, transactional persistence of messages and
// their attachments.
type Store struct {
	db *sqlx.DB
}

// NewStore connects to Postgres and ensures the schema exists.
func NewStore(cfg config.DBConfig) (*Store, error) {
	conn, err := db.Connect(db.DSN(cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{db: conn}
	if err := s.EnsureSchema(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// NewStoreWithDB wraps an existing connection. Used by tests.
func NewStoreWithDB(conn *sqlx.DB) *Store {
	return &Store{db: conn}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the messages and attachments tables if missing.
// Deleting a message cascades to its attachment rows.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS messages (
			id           BIGSERIAL PRIMARY KEY,
			message_id   TEXT NOT NULL UNIQUE,
			subject      TEXT NOT NULL DEFAULT '',
			from_address TEXT NOT NULL DEFAULT '',
			to_address   TEXT NOT NULL DEFAULT '',
			date         TIMESTAMPTZ,
			html_content TEXT NOT NULL DEFAULT '',
			text_content TEXT NOT NULL DEFAULT '',
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS attachments (
			id       BIGSERIAL PRIMARY KEY,
			email_id BIGINT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
			filename TEXT NOT NULL DEFAULT '',
			mimetype TEXT NOT NULL DEFAULT '',
			content  BYTEA
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages (created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_attachments_email_id ON attachments (email_id)`,
	} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// SaveMessage inserts the message row and every attachment row inside a
// single transaction: either all of them land or none do. Returns the
// store-assigned id. A missing external id fails with ErrMissingMessageID;
// a second write with the same external id fails with ErrDuplicateMessage.
func (s *Store) SaveMessage(ctx context.Context, msg *models.Message) (int64, error) {
	if msg.MessageID == "" {
		return 0, ErrMissingMessageID
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO messages (message_id, subject, from_address, to_address, date, html_content, text_content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		msg.MessageID, msg.Subject, msg.FromAddress, msg.ToAddress,
		msg.Date, msg.HTMLContent, msg.TextContent, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return 0, fmt.Errorf("%w: %q", ErrDuplicateMessage, msg.MessageID)
		}
		return 0, fmt.Errorf("insert message: %w", err)
	}

	for i := range msg.Attachments {
		att := &msg.Attachments[i]
		if err := tx.QueryRowxContext(ctx, `
			INSERT INTO attachments (email_id, filename, mimetype, content)
			VALUES ($1, $2, $3, $4)
			RETURNING id`,
			id, att.Filename, att.MimeType, att.Content,
		).Scan(&att.ID); err != nil {
			return 0, fmt.Errorf("insert attachment %q: %w", att.Filename, err)
		}
		att.EmailID = id
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit save: %w", err)
	}
	msg.ID = id
	return id, nil
}

// GetMessageByID returns one message with attachment metadata only;
// attachment content stays in the database until asked for explicitly.
func (s *Store) GetMessageByID(ctx context.Context, id int64) (models.Message, error) {
	var msg models.Message
	err := s.db.GetContext(ctx, &msg, `
		SELECT id, message_id, subject, from_address, to_address, date, html_content, text_content, created_at
		FROM messages WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrNotFound
	}
	if err != nil {
		return models.Message{}, fmt.Errorf("get message %d: %w", id, err)
	}

	if err := s.db.SelectContext(ctx, &msg.Attachments, `
		SELECT id, email_id, filename, mimetype
		FROM attachments WHERE email_id = $1 ORDER BY id`, id); err != nil {
		return models.Message{}, fmt.Errorf("get attachments for %d: %w", id, err)
	}
	return msg, nil
}

// GetAttachmentContent fetches one attachment's bytes by the
// (message, attachment) pair. ErrNotFound when the pair does not resolve
// to a row owned by that message.
func (s *Store) GetAttachmentContent(ctx context.Context, messageID, attachmentID int64) (models.Attachment, error) {
	var att models.Attachment
	err := s.db.GetContext(ctx, &att, `
		SELECT id, email_id, filename, mimetype, content
		FROM attachments WHERE id = $1 AND email_id = $2`, attachmentID, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Attachment{}, ErrNotFound
	}
	if err != nil {
		return models.Attachment{}, fmt.Errorf("get attachment %d/%d: %w", messageID, attachmentID, err)
	}
	return att, nil
}

// ListMessagesSince returns every message with a store-assigned arrival
// time strictly greater than since, oldest first, metadata only.
func (s *Store) ListMessagesSince(ctx context.Context, since time.Time) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.SelectContext(ctx, &msgs, `
		SELECT id, message_id, subject, from_address, to_address, date, html_content, text_content, created_at
		FROM messages WHERE created_at > $1 ORDER BY created_at ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("list messages since %s: %w", since, err)
	}
	return msgs, nil
}
