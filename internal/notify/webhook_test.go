package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/mailfeed/internal/models"
)

func TestWebhookClient_StatusMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantErr   bool
		permanent bool
	}{
		{name: "200 ok", status: http.StatusOK},
		{name: "204 ok", status: http.StatusNoContent},
		{name: "404 permanent", status: http.StatusNotFound, wantErr: true, permanent: true},
		{name: "500 retryable", status: http.StatusInternalServerError, wantErr: true},
		{name: "503 retryable", status: http.StatusServiceUnavailable, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			client := NewWebhookClient(0)
			err := client.Send(context.Background(), srv.URL, WebhookPayload{EmailID: 1})
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.permanent, IsPermanent(err))
		})
	}
}

func TestWebhookClient_SendsJSONPayload(t *testing.T) {
	var gotBody string
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		gotBody = string(buf)
		gotContentType = r.Header.Get("Content-Type")
	}))
	defer srv.Close()

	client := NewWebhookClient(0)
	err := client.Send(context.Background(), srv.URL, WebhookPayload{
		EmailID:  9,
		PluginID: "p1",
		EmailData: WebhookEmail{
			ID: 9, From: "a@x.com", Subject: "Hi", Body: "hello",
			Attachments: []WebhookAttachment{{Filename: "f.pdf", ContentType: "application/pdf"}},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "application/json", gotContentType)
	assert.Contains(t, gotBody, `"emailId":9`)
	assert.Contains(t, gotBody, `"pluginId":"p1"`)
	assert.Contains(t, gotBody, `"filename":"f.pdf"`)
	assert.NotContains(t, gotBody, "content\":") // never binary content
}

func TestSanitize(t *testing.T) {
	msg := &models.Message{
		ID:          5,
		FromAddress: "a@x.com",
		Subject:     "Hello",
		TextContent: strings.Repeat("x", 150),
		Attachments: []models.Attachment{
			{Filename: "doc.pdf", MimeType: "application/pdf", Content: []byte{1, 2, 3}},
		},
	}

	email := Sanitize(msg, 100)
	assert.Equal(t, int64(5), email.ID)
	assert.Equal(t, strings.Repeat("x", 100)+"...", email.Body)
	require.Len(t, email.Attachments, 1)
	assert.Equal(t, "doc.pdf", email.Attachments[0].Filename)
	assert.Equal(t, "application/pdf", email.Attachments[0].ContentType)
}

func TestSanitize_ShortBodyUntouched(t *testing.T) {
	msg := &models.Message{TextContent: "short"}
	assert.Equal(t, "short", Sanitize(msg, 100).Body)
}

func TestSanitize_FallsBackToHTML(t *testing.T) {
	msg := &models.Message{HTMLContent: "<p>hi</p>"}
	assert.Equal(t, "<p>hi</p>", Sanitize(msg, 100).Body)
}
