// Package mailparse turns a raw inbound mail byte stream into the stored
// message shape: headers, body alternatives and attachment parts.
package mailparse

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message/mail"

	"github.com/yourusername/mailfeed/internal/models"

	_ "github.com/emersion/go-message/charset"
)

// Parse decodes one raw message. The external Message-ID header is kept
// as-is (angle brackets stripped); the store decides what to do when it
// is missing.
func Parse(raw []byte) (*models.Message, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse incoming mail: %w", err)
	}

	msg := &models.Message{}

	if subject, err := mr.Header.Subject(); err == nil {
		msg.Subject = subject
	}
	if id, err := mr.Header.MessageID(); err == nil {
		msg.MessageID = id
	}
	msg.FromAddress = addressText(mr.Header, "From")
	msg.ToAddress = addressText(mr.Header, "To")
	if date, err := mr.Header.Date(); err == nil && !date.IsZero() {
		msg.Date = &date
	}

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse email part: %w", err)
		}

		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			// Inline = one variation of message content/body
			content, err := io.ReadAll(p.Body)
			if err != nil {
				return nil, fmt.Errorf("failed to read message content: %w", err)
			}
			text := strings.TrimRight(string(content), "\r\n")

			partType, _, err := h.ContentType()
			if err != nil {
				return nil, fmt.Errorf("failed to parse content type: %w", err)
			}
			switch partType {
			case "text/html":
				msg.HTMLContent = text
			default:
				// text/plain and anything else textual
				if msg.TextContent == "" {
					msg.TextContent = text
				}
			}
		case *mail.AttachmentHeader:
			filename, err := h.Filename()
			if err != nil {
				return nil, fmt.Errorf("failed to parse attachment filename: %w", err)
			}
			partType, _, _ := h.ContentType()
			content, err := io.ReadAll(p.Body)
			if err != nil {
				return nil, fmt.Errorf("failed to read attachment %q: %w", filename, err)
			}
			msg.Attachments = append(msg.Attachments, models.Attachment{
				Filename: filename,
				MimeType: partType,
				Content:  content,
			})
		}
	}

	return msg, nil
}

// addressText renders an address header the way it appeared, joining
// multiple recipients with ", ".
func addressText(h mail.Header, key string) string {
	addrs, err := h.AddressList(key)
	if err != nil || len(addrs) == 0 {
		return h.Get(key)
	}
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, ", ")
}
