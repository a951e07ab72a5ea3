package models

import (
	"time"
)

// Message is a stored inbound email. ID and CreatedAt are assigned by the
// store; MessageID is the external identifier from the originating system
// and is unique across the table. Attachment content is never loaded on
// metadata reads.
type Message struct {
	ID          int64      `db:"id" json:"id"`
	MessageID   string     `db:"message_id" json:"messageId"`
	Subject     string     `db:"subject" json:"subject"`
	FromAddress string     `db:"from_address" json:"from"`
	ToAddress   string     `db:"to_address" json:"to"`
	Date        *time.Time `db:"date" json:"date,omitempty"`
	HTMLContent string     `db:"html_content" json:"htmlContent"`
	TextContent string     `db:"text_content" json:"textContent"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`

	Attachments []Attachment `db:"-" json:"attachments,omitempty"`
}

// Attachment belongs to exactly one Message. Content is only populated by
// the dedicated content read.
type Attachment struct {
	ID       int64  `db:"id" json:"id"`
	EmailID  int64  `db:"email_id" json:"email_id"`
	Filename string `db:"filename" json:"filename"`
	MimeType string `db:"mimetype" json:"mime_type"`
	Content  []byte `db:"content" json:"-"`
}

// FilterRules holds the optional per-consumer match rules. An absent or
// empty category is no constraint; a non-empty one requires at least one
// of its terms to match.
type FilterRules struct {
	FromEmail       []string `json:"fromEmail,omitempty"`
	SubjectContains []string `json:"subjectContains,omitempty"`
	BodyContains    []string `json:"bodyContains,omitempty"`
}

// Consumer is a registered downstream plugin: a webhook callback plus the
// rules deciding which messages it is told about.
type Consumer struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	WebhookURL  string      `json:"webhookUrl"`
	FilterRules FilterRules `json:"filterRules"`
}

// Event announces a newly persisted message. Ephemeral; Seq only orders
// events on a single push stream.
type Event struct {
	MessageID int64 `json:"messageId"`
	Seq       int64 `json:"-"`
}

// Body returns the text the matcher and webhook payload work with: the
// plain rendering, falling back to HTML when no plain part was decoded.
func (m *Message) Body() string {
	if m.TextContent != "" {
		return m.TextContent
	}
	return m.HTMLContent
}
