package mailparse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func crlf(lines ...string) []byte {
	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}

func TestParse_MultipartWithAttachment(t *testing.T) {
	raw := crlf(
		"From: Alice <alice@example.org>",
		"To: Bob <bob@feed.example.com>",
		"Subject: Quarterly report",
		"Message-Id: <m1@example.org>",
		"Date: Mon, 02 Jan 2006 15:04:05 +0000",
		"MIME-Version: 1.0",
		"Content-Type: multipart/mixed; boundary=mixed-b",
		"",
		"--mixed-b",
		"Content-Type: multipart/alternative; boundary=alt-b",
		"",
		"--alt-b",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"plain body here",
		"--alt-b",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<p>html body here</p>",
		"--alt-b--",
		"--mixed-b",
		"Content-Type: application/pdf",
		"Content-Disposition: attachment; filename=report.pdf",
		"Content-Transfer-Encoding: base64",
		"",
		"JVBERi0=",
		"--mixed-b--",
	)

	msg, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "m1@example.org", msg.MessageID)
	assert.Equal(t, "Quarterly report", msg.Subject)
	assert.Contains(t, msg.FromAddress, "alice@example.org")
	assert.Contains(t, msg.ToAddress, "bob@feed.example.com")
	require.NotNil(t, msg.Date)
	assert.Equal(t, 2006, msg.Date.Year())

	assert.Equal(t, "plain body here", msg.TextContent)
	assert.Equal(t, "<p>html body here</p>", msg.HTMLContent)

	require.Len(t, msg.Attachments, 1)
	att := msg.Attachments[0]
	assert.Equal(t, "report.pdf", att.Filename)
	assert.Equal(t, "application/pdf", att.MimeType)
	assert.Equal(t, []byte("%PDF-"), att.Content)
}

func TestParse_PlainMessageWithoutAttachments(t *testing.T) {
	raw := crlf(
		"From: alice@example.org",
		"To: bob@feed.example.com",
		"Subject: Hello",
		"Message-Id: <m2@example.org>",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"just a plain body",
	)

	msg, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "Hello", msg.Subject)
	assert.Equal(t, "just a plain body", msg.TextContent)
	assert.Empty(t, msg.HTMLContent)
	assert.Empty(t, msg.Attachments)
}

func TestParse_MissingMessageIDLeftEmpty(t *testing.T) {
	raw := crlf(
		"From: alice@example.org",
		"Subject: No id",
		"Content-Type: text/plain",
		"",
		"body",
	)

	msg, err := Parse(raw)
	require.NoError(t, err)
	assert.Empty(t, msg.MessageID)
}

func TestParse_MalformedMultipartFails(t *testing.T) {
	raw := crlf(
		"From: alice@example.org",
		"Subject: broken",
		"Content-Type: multipart/mixed",
		"",
		"no boundary declared",
	)

	_, err := Parse(raw)
	assert.Error(t, err)
}
