// Package eventmux fans one stream of events out to any number of
// subscribers, so the replay driver, the dashboard shell and the admin tail
// can all follow a single scene.
package eventmux

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"sync"

	"tailscale.com/tsweb"

	"github.com/banshee-data/slamview/internal/monitoring"
)

var logf = monitoring.Tagged("eventmux")

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 256

// Mux delivers every event read by Monitor to each subscriber. A subscriber
// that falls behind loses events rather than stalling the others.
type Mux[T any] struct {
	buffer       int
	subscribers  map[string]chan T
	subscriberMu sync.Mutex
	closing      bool
}

// New returns a Mux whose subscriber channels hold buffer events.
func New[T any](buffer int) *Mux[T] {
	if buffer < 0 {
		buffer = 0
	}
	return &Mux[T]{
		buffer:      buffer,
		subscribers: make(map[string]chan T),
	}
}

// randomID generates a random subscriber ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe registers a new subscriber. The channel is closed by
// Unsubscribe, by Close, or when the monitored stream ends. Subscribing
// after that returns an already closed channel.
func (m *Mux[T]) Subscribe() (string, <-chan T) {
	id := randomID()
	ch := make(chan T, m.buffer)
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	if m.closing {
		close(ch)
		return id, ch
	}
	m.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes and closes a subscriber. Unknown ids are ignored.
func (m *Mux[T]) Unsubscribe(id string) {
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	if ch, ok := m.subscribers[id]; ok {
		close(ch)
		delete(m.subscribers, id)
	}
}

// Subscribers is the number of live subscribers.
func (m *Mux[T]) Subscribers() int {
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	return len(m.subscribers)
}

// Monitor forwards events from src until src is closed or ctx is done. When
// src closes, every subscriber is closed too and Monitor returns nil.
func (m *Mux[T]) Monitor(ctx context.Context, src <-chan T) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-src:
			if !ok {
				m.Close()
				return nil
			}
			m.publish(ev)
		}
	}
}

func (m *Mux[T]) publish(ev T) {
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	if m.closing {
		return
	}
	for id, ch := range m.subscribers {
		select {
		case ch <- ev:
		default:
			// skip a full subscriber so as not to block the others
			logf("subscriber %s full, event dropped", id)
		}
	}
}

// Close closes every subscriber. Later events are discarded.
func (m *Mux[T]) Close() error {
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	m.closing = true
	for id, ch := range m.subscribers {
		close(ch)
		delete(m.subscribers, id)
	}
	return nil
}

var tailPage = template.Must(template.New("events").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.}}</title></head>
<body>
<h1>{{.}}</h1>
<pre id="log"></pre>
<script>
const log = document.getElementById("log");
const es = new EventSource("events-tail");
es.onmessage = (e) => { log.textContent = e.data + "\n" + log.textContent; };
es.onerror = () => { log.textContent = "disconnected\n" + log.textContent; };
</script>
</body>
</html>
`))

// AttachAdminRoutes adds a live tail of the event stream to the debug index
// at /debug/events. Each event is sent as one JSON server-sent event.
func (m *Mux[T]) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("events", "live tail of scene events", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tailPage.Execute(w, "Scene events"); err != nil {
			http.Error(w, "Failed to render template", http.StatusInternalServerError)
		}
	})

	debug.HandleSilentFunc("events-tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

		id, c := m.Subscribe()
		defer m.Unsubscribe(id)

		w.Write([]byte(": ping\n\n"))
		flusher.Flush()

		for {
			select {
			case ev, ok := <-c:
				if !ok {
					return
				}
				payload, err := json.Marshal(ev)
				if err != nil {
					logf("encode event: %v", err)
					continue
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})
}
