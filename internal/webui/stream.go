// ABOUTME: Live push to open views over Server-Sent Events and WebSocket
// ABOUTME: Each stream follows the app list and the clock until the client goes away

package webui

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/2389/appland/internal/dashboard"
)

const (
	// sseHeartbeat keeps idle proxies from closing the event stream
	sseHeartbeat = 30 * time.Second

	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// wsFrame is one WebSocket message. Exactly one of Apps or Clock is set.
type wsFrame struct {
	Type  string               `json:"type"`
	Apps  []dashboard.AppEntry `json:"apps,omitempty"`
	Clock *dashboard.ClockFace `json:"clock,omitempty"`
}

// handleEvents streams grid and clock updates to one view as SSE.
// The view is removed when the stream ends.
func (u *UI) handleEvents(w http.ResponseWriter, r *http.Request) {
	v, status := u.resolveView(r, true)
	if v == nil {
		u.refuseView(w, status)
		return
	}
	defer u.views.Detach(v.id)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	apps := u.binding.Watch(ctx)
	faces := u.ticker.Watch(ctx)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	if err := u.sendGrid(w, v, u.binding.Apps()); err != nil {
		return
	}
	if err := writeClock(w, u.ticker.Current()); err != nil {
		return
	}
	flusher.Flush()

	u.logger.Debug("event stream opened", "view_id", v.id)
	defer u.logger.Debug("event stream closed", "view_id", v.id)

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case list, ok := <-apps:
			if !ok {
				return
			}
			if err := u.sendGrid(w, v, list); err != nil {
				return
			}
			flusher.Flush()
		case face, ok := <-faces:
			if !ok {
				return
			}
			if err := writeClock(w, face); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// sendGrid renders the grid as this view sees it and writes an "apps" event
func (u *UI) sendGrid(w http.ResponseWriter, v *view, apps []dashboard.AppEntry) error {
	html, err := u.renderString("grid", gridData{Admin: v.session.Admin(), Apps: apps})
	if err != nil {
		u.logger.Error("failed to render grid", "view_id", v.id, "error", err)
		return err
	}
	return writeEvent(w, "apps", html)
}

func writeClock(w http.ResponseWriter, face dashboard.ClockFace) error {
	data, err := json.Marshal(face)
	if err != nil {
		return err
	}
	return writeEvent(w, "clock", string(data))
}

// lineEnds folds every SSE line terminator into \n.
var lineEnds = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// writeEvent writes one SSE event. Multi-line payloads become one data
// line per line.
func writeEvent(w http.ResponseWriter, event, data string) error {
	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(event)
	b.WriteByte('\n')
	for _, line := range strings.Split(lineEnds.Replace(data), "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	_, err := fmt.Fprint(w, b.String())
	return err
}

// handleWebSocket streams the app list and clock as JSON frames. The client
// never sends anything but control frames.
func (u *UI) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	v, status := u.resolveView(r, true)
	if v == nil {
		u.refuseView(w, status)
		return
	}
	defer u.views.Detach(v.id)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		u.logger.Debug("websocket upgrade failed", "view_id", v.id, "error", err)
		return
	}
	defer conn.Close()

	// The read pump only notices the peer going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ctx := r.Context()
	apps := u.binding.Watch(ctx)
	faces := u.ticker.Watch(ctx)

	send := func(frame wsFrame) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(frame)
	}

	face := u.ticker.Current()
	if err := send(wsFrame{Type: "apps", Apps: u.binding.Apps()}); err != nil {
		return
	}
	if err := send(wsFrame{Type: "clock", Clock: &face}); err != nil {
		return
	}

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-gone:
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case list, ok := <-apps:
			if !ok {
				return
			}
			if err := send(wsFrame{Type: "apps", Apps: list}); err != nil {
				return
			}
		case face, ok := <-faces:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			if err := send(wsFrame{Type: "clock", Clock: &face}); err != nil {
				return
			}
		}
	}
}
