package rpc

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"sentechain/core/events"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsBuffer       = 256
)

// Hub fans committed event records out to websocket subscribers. A
// subscriber whose buffer fills up is disconnected rather than stalling the
// sequencer.
type Hub struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	logger *slog.Logger
}

type subscriber struct {
	ch       chan events.Record
	prefixes []string
	once     sync.Once
}

func (s *subscriber) close() { s.once.Do(func() { close(s.ch) }) }

func (s *subscriber) wants(eventType string) bool {
	if len(s.prefixes) == 0 {
		return true
	}
	for _, p := range s.prefixes {
		if strings.HasPrefix(eventType, p) {
			return true
		}
	}
	return false
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{subs: make(map[*subscriber]struct{}), logger: logger.With("component", "ws")}
}

// Emit implements events.Emitter.
func (h *Hub) Emit(evt events.Event) {
	rec, ok := evt.(events.Record)
	if !ok {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		if !sub.wants(rec.EventType()) {
			continue
		}
		select {
		case sub.ch <- rec:
		default:
			delete(h.subs, sub)
			sub.close()
			h.logger.Warn("dropping slow websocket subscriber")
		}
	}
}

// Subscribe registers a subscriber that receives records whose type starts
// with one of prefixes (all records when none are given).
func (h *Hub) Subscribe(prefixes ...string) (<-chan events.Record, func()) {
	sub := &subscriber{ch: make(chan events.Record, wsBuffer), prefixes: prefixes}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub.ch, func() {
		h.mu.Lock()
		delete(h.subs, sub)
		h.mu.Unlock()
		sub.close()
	}
}

// Len returns the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// ServeWS streams records as JSON text frames. The optional types query
// parameter is a comma separated list of event type prefixes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	var prefixes []string
	for _, p := range strings.Split(r.URL.Query().Get("types"), ",") {
		if p = strings.TrimSpace(p); p != "" {
			prefixes = append(prefixes, p)
		}
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	ctx := conn.CloseRead(r.Context())
	updates, cancel := h.Subscribe(prefixes...)
	defer cancel()
	if err := stream(ctx, conn, updates); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func stream(ctx context.Context, conn *websocket.Conn, updates <-chan events.Record) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec, ok := <-updates:
			if !ok {
				return conn.Close(websocket.StatusPolicyViolation, "subscriber too slow")
			}
			if err := writeRecord(ctx, conn, rec); err != nil {
				return err
			}
		}
	}
}

func writeRecord(ctx context.Context, conn *websocket.Conn, rec events.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
