package restapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"mouzamap.org/internal/logging"
	"mouzamap.org/internal/selection"
)

const (
	streamBuffer       = 32
	streamKeepAlive    = 15 * time.Second
	streamWriteTimeout = 10 * time.Second
)

// eventFeed bridges the synchronous bus to one connection goroutine. The bus
// never blocks on a slow client: when the buffer is full the feed is marked
// overrun and the connection is closed, so the client reconnects and reads a
// fresh snapshot instead of missing events silently.
type eventFeed struct {
	events  chan selection.Event
	overrun chan struct{}
	once    sync.Once
	cancel  func()
}

func (api *RestAPI) subscribeFeed() *eventFeed {
	f := &eventFeed{
		events:  make(chan selection.Event, streamBuffer),
		overrun: make(chan struct{}),
	}
	f.cancel = api.Selection.Subscribe(func(ev selection.Event) {
		select {
		case f.events <- ev:
		default:
			f.once.Do(func() { close(f.overrun) })
		}
	})
	api.Metrics.SelectionStreams.Inc()
	return f
}

func (api *RestAPI) closeFeed(f *eventFeed) {
	f.cancel()
	api.Metrics.SelectionStreams.Dec()
}

// selectionEventsHandler streams selection events as Server-Sent Events. The
// first event is a snapshot of the current state.
func (api *RestAPI) selectionEventsHandler(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	logger := logging.FromContext(r.Context())

	feed := api.subscribeFeed()
	defer api.closeFeed(feed)

	// The server write timeout would otherwise cut long-lived streams.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	entry := api.selectionEntry()
	// Events at or below last are already reflected in what was sent. A
	// nested update reaches observers before the update that caused it, so
	// the older one is dropped rather than sent after the newer state.
	last := entry.Seq
	if err := writeSSE(w, "snapshot", entry.Seq, entry); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		logging.LogError(logger, "event stream cannot be flushed", err)
		return
	}

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case ev := <-feed.events:
			if ev.Seq <= last {
				continue
			}
			last = ev.Seq
			if err := writeSSE(w, "selection", ev.Seq, ev); err != nil {
				return
			}
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		case <-feed.overrun:
			logger.Warn("selection stream fell behind, closing", slog.String("request_id", GetRequestID(r.Context())))
			return
		case <-api.closing:
			return
		case <-r.Context().Done():
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeSSE(w http.ResponseWriter, event string, id uint64, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", id, event, data)
	return err
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are already policed by the CORS middleware and the API key.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsMessage is the frame format in both directions. Outbound frames carry
// Type "snapshot" or "selection"; inbound frames carry Type "set" with the
// same partial update accepted by PUT /api/selection.
type wsMessage struct {
	Type  string                     `json:"type"`
	Seq   uint64                     `json:"seq,omitempty"`
	Event *selection.Event           `json:"event,omitempty"`
	State *selection.State           `json:"state,omitempty"`
	Set   map[string]json.RawMessage `json:"set,omitempty"`
	Error string                     `json:"error,omitempty"`
}

// selectionSocketHandler mirrors the event stream over a WebSocket and also
// accepts selection updates from the client.
func (api *RestAPI) selectionSocketHandler(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an error response.
		logger.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer logging.SafeCloseWithLogging(conn, logger, "selection_websocket")

	feed := api.subscribeFeed()
	defer api.closeFeed(feed)

	// This goroutine is the only writer; the reader hands replies over.
	outbound := make(chan wsMessage, 4)
	readDone := make(chan struct{})
	stop := make(chan struct{})
	defer close(stop)

	reply := func(msg wsMessage) bool {
		select {
		case outbound <- msg:
			return true
		case <-stop:
			return false
		}
	}

	go func() {
		defer close(readDone)
		for {
			var in wsMessage
			if err := conn.ReadJSON(&in); err != nil {
				return
			}
			if in.Type != "set" {
				if !reply(wsMessage{Type: "error", Error: "unsupported message type"}) {
					return
				}
				continue
			}
			_, problems, err := api.applySelection(r.Context(), in.Set)
			switch {
			case len(problems) > 0:
				if !reply(wsMessage{Type: "error", Error: joinProblems(problems)}) {
					return
				}
			case err != nil:
				logging.LogError(logger, "selection update failed", err)
				if !reply(wsMessage{Type: "error", Error: "selection update failed"}) {
					return
				}
			}
		}
	}()

	entry := api.selectionEntry()
	last := entry.Seq
	if err := writeWS(conn, wsMessage{Type: "snapshot", Seq: entry.Seq, State: &entry.State}); err != nil {
		return
	}

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	for {
		var err error
		select {
		case ev := <-feed.events:
			if ev.Seq <= last {
				continue
			}
			last = ev.Seq
			err = writeWS(conn, wsMessage{Type: "selection", Seq: ev.Seq, Event: &ev})
		case msg := <-outbound:
			err = writeWS(conn, msg)
		case <-keepAlive.C:
			err = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteTimeout))
		case <-feed.overrun:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "fell behind"),
				time.Now().Add(streamWriteTimeout))
			return
		case <-readDone:
			return
		case <-api.closing:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(streamWriteTimeout))
			return
		}
		if err != nil {
			return
		}
	}
}

func writeWS(conn *websocket.Conn, msg wsMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return conn.WriteJSON(msg)
}
