package api

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/mailfeed/internal/notify"
)

// sseClient reads event frames from a live stream one at a time.
type sseClient struct {
	resp    *http.Response
	scanner *bufio.Scanner
}

func dialNotify(t *testing.T, baseURL string) *sseClient {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, baseURL+"/notify", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testToken)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	return &sseClient{resp: resp, scanner: bufio.NewScanner(resp.Body)}
}

func (c *sseClient) close() {
	c.resp.Body.Close()
}

// next returns the event name and data line of the next frame.
func (c *sseClient) next(t *testing.T) (event, data string) {
	t.Helper()
	for c.scanner.Scan() {
		line := c.scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		case line == "" && event != "":
			return event, data
		}
	}
	t.Fatal("stream closed before a complete event frame")
	return "", ""
}

func TestNotifyStream(t *testing.T) {
	hub := notify.NewHub(nil)
	srv := NewServer(&stubReader{}, &recordingRegistry{}, hub, testToken, Options{
		Heartbeat: time.Hour,
	}, nil)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	first := dialNotify(t, ts.URL)
	defer first.close()
	second := dialNotify(t, ts.URL)
	defer second.close()

	for _, c := range []*sseClient{first, second} {
		event, data := c.next(t)
		assert.Equal(t, "connected", event)
		assert.Contains(t, data, `"connected":true`)
	}

	// Wait for both subscriptions to land before broadcasting.
	require.Eventually(t, func() bool { return hub.Len() == 2 }, time.Second, 5*time.Millisecond)

	hub.Broadcast(42)

	for _, c := range []*sseClient{first, second} {
		event, data := c.next(t)
		assert.Equal(t, "new-email", event)
		assert.Contains(t, data, `"messageId":42`)
	}
}

func TestNotifyStream_DisconnectLeavesOthersRunning(t *testing.T) {
	hub := notify.NewHub(nil)
	srv := NewServer(&stubReader{}, &recordingRegistry{}, hub, testToken, Options{
		Heartbeat: time.Hour,
	}, nil)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	first := dialNotify(t, ts.URL)
	second := dialNotify(t, ts.URL)
	defer second.close()

	first.next(t)
	second.next(t)
	require.Eventually(t, func() bool { return hub.Len() == 2 }, time.Second, 5*time.Millisecond)

	first.close()
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 5*time.Millisecond)

	hub.Broadcast(7)
	event, data := second.next(t)
	assert.Equal(t, "new-email", event)
	assert.Contains(t, data, `"messageId":7`)
}

func TestNotifyStream_Heartbeat(t *testing.T) {
	hub := notify.NewHub(nil)
	srv := NewServer(&stubReader{}, &recordingRegistry{}, hub, testToken, Options{
		Heartbeat: 20 * time.Millisecond,
	}, nil)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	client := dialNotify(t, ts.URL)
	defer client.close()

	event, _ := client.next(t)
	require.Equal(t, "connected", event)

	event, data := client.next(t)
	assert.Equal(t, "heartbeat", event)
	assert.Contains(t, data, `"heartbeat":true`)
}

func TestNotifyStream_RequiresToken(t *testing.T) {
	srv := newTestServer(&stubReader{}, &recordingRegistry{})
	w := doRequest(srv, http.MethodGet, "/notify", "", "")
	assert.Equal(t, 401, w.Code)
}
