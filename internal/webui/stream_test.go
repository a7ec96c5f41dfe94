// ABOUTME: Tests for the SSE and WebSocket live push endpoints
// ABOUTME: Runs a real HTTP server and reads the streams as a browser would

package webui

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/appland/internal/dashboard"
)

// streamLines reads body line by line onto a channel until it ends.
func streamLines(body *bufio.Reader) <-chan string {
	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		for {
			line, err := body.ReadString('\n')
			if err != nil {
				return
			}
			lines <- strings.TrimRight(line, "\n")
		}
	}()
	return lines
}

// waitForLine returns once a line containing substr arrives.
func waitForLine(t *testing.T, lines <-chan string, substr string) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			require.True(t, ok, "stream ended before %q", substr)
			if strings.Contains(line, substr) {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %q", substr)
		}
	}
}

func TestEvents_StreamsGridAndClock(t *testing.T) {
	tu := newTestUI(t, sampleApps...)
	srv := httptest.NewServer(tu.mux)
	defer srv.Close()
	token := tu.openView(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events?view="+token, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := streamLines(bufio.NewReader(resp.Body))
	waitForLine(t, lines, "event: apps")
	waitForLine(t, lines, "NHK for School")
	waitForLine(t, lines, "event: clock")
	waitForLine(t, lines, `"greeting"`)

	setApps(tu.binding, append(sampleApps, dashboard.AppEntry{ID: "typing", Name: "タイピング"})...)
	waitForLine(t, lines, "event: apps")
	waitForLine(t, lines, "タイピング")

	// Closing the stream closes the view
	cancel()
	require.Eventually(t, func() bool { return tu.ui.Views() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestEvents_GridFollowsAdminMode(t *testing.T) {
	tu := newTestUI(t, sampleApps...)
	srv := httptest.NewServer(tu.mux)
	defer srv.Close()
	token := tu.openView(t)
	tu.unlock(t, token)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events?view="+token, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	lines := streamLines(bufio.NewReader(resp.Body))
	waitForLine(t, lines, "/view/edit/new")
}

func TestEvents_RejectsBadView(t *testing.T) {
	tu := newTestUI(t)

	rec := tu.get(t, "/events", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := tu.ui.tokens.Issue("closed-view", time.Hour)
	require.NoError(t, err)
	rec = tu.get(t, "/events?view="+token, "")
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestWebSocket_SendsFrames(t *testing.T) {
	tu := newTestUI(t, sampleApps...)
	srv := httptest.NewServer(tu.mux)
	defer srv.Close()
	token := tu.openView(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?view=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var frame wsFrame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "apps", frame.Type)
	require.Len(t, frame.Apps, 2)
	assert.Equal(t, "nhk", frame.Apps[0].ID)

	frame = wsFrame{}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "clock", frame.Type)
	require.NotNil(t, frame.Clock)
	assert.NotEmpty(t, frame.Clock.Time)

	setApps(tu.binding, sampleApps[1])
	frame = wsFrame{}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "apps", frame.Type)
	require.Len(t, frame.Apps, 1)
	assert.Equal(t, "draw", frame.Apps[0].ID)

	conn.Close()
	require.Eventually(t, func() bool { return tu.ui.Views() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWriteEvent_SplitsLines(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, writeEvent(rec, "apps", "<a>\n<b>"))
	assert.Equal(t, "event: apps\ndata: <a>\ndata: <b>\n\n", rec.Body.String())
}

func TestWriteEvent_FoldsCarriageReturns(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, writeEvent(rec, "apps", "<a>\r\n<b>\r<c>"))
	assert.Equal(t, "event: apps\ndata: <a>\ndata: <b>\ndata: <c>\n\n", rec.Body.String())
}

func TestSendGrid_CarriageReturnInNameKeepsFraming(t *testing.T) {
	tu := newTestUI(t)
	id, session := tu.ui.views.Create()
	v := &view{id: id, session: session}

	rec := httptest.NewRecorder()
	apps := []dashboard.AppEntry{{ID: "x", Name: "a\rb", URL: "https://example.com\r", Icon: "book", Color: "bg-red-400"}}
	require.NoError(t, tu.ui.sendGrid(rec, v, apps))

	// A browser ends a line at CR, LF, or CRLF
	lines := strings.FieldsFunc(rec.Body.String(), func(r rune) bool { return r == '\r' || r == '\n' })
	require.NotEmpty(t, lines)
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, "event: ") || strings.HasPrefix(line, "data: "),
			"line outside an SSE field: %q", line)
	}
}
