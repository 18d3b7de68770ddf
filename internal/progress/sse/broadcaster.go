// Package sse streams pipeline progress events to HTTP clients as Server-Sent Events.
package sse

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/ideaforge/internal/progress"
)

// WriteTimeout bounds a single write to one client so a stale connection cannot stall a run.
const WriteTimeout = 2 * time.Second

// Client is one connected SSE subscriber.
type Client struct {
	Writer  http.ResponseWriter
	Flusher http.Flusher
	Done    chan struct{}
	ID      string
}

// Broadcaster fans progress events out to connected clients. It implements progress.Reporter.
type Broadcaster struct {
	clients map[string]*Client
	mu      sync.RWMutex
	nextID  int
}

var _ progress.Reporter = (*Broadcaster)(nil)

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[string]*Client),
	}
}

// AddClient registers w as a subscriber.
func (b *Broadcaster) AddClient(w http.ResponseWriter) (*Client, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	b.mu.Lock()
	b.nextID++
	client := &Client{
		ID:      fmt.Sprintf("client-%d", b.nextID),
		Writer:  w,
		Flusher: flusher,
		Done:    make(chan struct{}),
	}
	b.clients[client.ID] = client
	count := len(b.clients)
	b.mu.Unlock()

	log.Debug().
		Str("client_id", client.ID).
		Int("clients", count).
		Msg("SSE client connected")

	return client, nil
}

// RemoveClient unregisters client and closes its Done channel. It is safe to call
// more than once and for clients that were never added.
func (b *Broadcaster) RemoveClient(client *Client) {
	b.mu.Lock()
	delete(b.clients, client.ID)
	count := len(b.clients)
	b.mu.Unlock()

	closeDone(client)

	log.Debug().
		Str("client_id", client.ID).
		Int("clients", count).
		Msg("SSE client disconnected")
}

func closeDone(client *Client) {
	if client.Done == nil {
		return
	}
	select {
	case <-client.Done:
	default:
		close(client.Done)
	}
}

// Report broadcasts a progress event under its kind as the SSE event name.
func (b *Broadcaster) Report(e progress.Event) {
	b.Send(string(e.Kind), e)
}

// Send broadcasts data as JSON under the given event name. An empty name sends an
// unnamed message.
func (b *Broadcaster) Send(event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("Failed to marshal SSE payload")
		return
	}

	message := fmt.Sprintf("data: %s\n\n", payload)
	if event != "" {
		message = fmt.Sprintf("event: %s\n%s", event, message)
	}

	b.mu.RLock()
	clients := make([]*Client, 0, len(b.clients))
	for _, client := range b.clients {
		clients = append(clients, client)
	}
	b.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	dead := make(chan string, len(clients))
	var wg sync.WaitGroup
	for _, client := range clients {
		select {
		case <-client.Done:
			continue
		default:
		}
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			b.write(c, message, dead)
		}(client)
	}
	wg.Wait()
	close(dead)

	for id := range dead {
		b.removeByID(id)
	}
}

func (b *Broadcaster) write(client *Client, message string, dead chan<- string) {
	result := make(chan error, 1)
	go func() {
		_, err := client.Writer.Write([]byte(message))
		if err == nil {
			client.Flusher.Flush()
		}
		result <- err
	}()

	select {
	case err := <-result:
		if err != nil {
			log.Debug().Err(err).Str("client_id", client.ID).Msg("SSE write failed")
			dead <- client.ID
		}
	case <-time.After(WriteTimeout):
		log.Warn().
			Str("client_id", client.ID).
			Dur("timeout", WriteTimeout).
			Msg("SSE write timed out, dropping client")
		dead <- client.ID
	case <-client.Done:
	}
}

func (b *Broadcaster) removeByID(id string) {
	b.mu.Lock()
	client, ok := b.clients[id]
	delete(b.clients, id)
	b.mu.Unlock()

	if ok {
		closeDone(client)
	}
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// ServeHTTP streams events to the requesting client until it disconnects.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	client, err := b.AddClient(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer b.RemoveClient(client)

	fmt.Fprintf(w, "event: connected\ndata: {\"client_id\":%q}\n\n", client.ID)
	client.Flusher.Flush()

	select {
	case <-r.Context().Done():
	case <-client.Done:
	}
}
