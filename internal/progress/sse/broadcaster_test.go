package sse

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/thebtf/ideaforge/internal/progress"
)

type BroadcasterSuite struct {
	suite.Suite
	broadcaster *Broadcaster
}

func (s *BroadcasterSuite) SetupTest() {
	s.broadcaster = NewBroadcaster()
}

func TestBroadcasterSuite(t *testing.T) {
	suite.Run(t, new(BroadcasterSuite))
}

// recordingWriter implements http.ResponseWriter and http.Flusher.
type recordingWriter struct {
	header http.Header
	err    error
	body   []byte
	mu     sync.Mutex
}

func newRecordingWriter() *recordingWriter {
	return &recordingWriter{header: make(http.Header)}
}

func (w *recordingWriter) Header() http.Header { return w.header }

func (w *recordingWriter) Write(data []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return 0, w.err
	}
	w.body = append(w.body, data...)
	return len(data), nil
}

func (w *recordingWriter) WriteHeader(int) {}

func (w *recordingWriter) Flush() {}

func (w *recordingWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return string(w.body)
}

func (s *BroadcasterSuite) TestAddRemoveClient() {
	client, err := s.broadcaster.AddClient(newRecordingWriter())
	s.Require().NoError(err)
	s.NotEmpty(client.ID)
	s.Equal(1, s.broadcaster.ClientCount())

	s.broadcaster.RemoveClient(client)
	s.Equal(0, s.broadcaster.ClientCount())

	select {
	case <-client.Done:
	default:
		s.Fail("Done channel should be closed")
	}

	// A second removal is harmless.
	s.NotPanics(func() { s.broadcaster.RemoveClient(client) })
}

func (s *BroadcasterSuite) TestReportWritesNamedEvent() {
	w := newRecordingWriter()
	_, err := s.broadcaster.AddClient(w)
	s.Require().NoError(err)

	s.broadcaster.Report(progress.Event{Stage: "summarize", Kind: progress.ItemDone, Item: "issue-7", Index: 1, Total: 3})

	body := w.String()
	s.True(strings.HasPrefix(body, "event: item_done\ndata: {"))
	s.Contains(body, `"item":"issue-7"`)
	s.True(strings.HasSuffix(body, "\n\n"))
}

func (s *BroadcasterSuite) TestSendToAllClients() {
	writers := make([]*recordingWriter, 3)
	for i := range writers {
		writers[i] = newRecordingWriter()
		_, err := s.broadcaster.AddClient(writers[i])
		s.Require().NoError(err)
	}

	s.broadcaster.Send("", map[string]string{"type": "ping"})

	for i, w := range writers {
		s.Equal("data: {\"type\":\"ping\"}\n\n", w.String(), "client %d", i)
	}
}

func (s *BroadcasterSuite) TestNoClients() {
	s.NotPanics(func() { s.broadcaster.Send("noop", map[string]int{"n": 1}) })
}

func (s *BroadcasterSuite) TestFailedWriteDropsClient() {
	w := newRecordingWriter()
	w.err = errors.New("broken pipe")
	client, err := s.broadcaster.AddClient(w)
	s.Require().NoError(err)

	s.broadcaster.Send("x", 1)

	s.Equal(0, s.broadcaster.ClientCount())
	select {
	case <-client.Done:
	default:
		s.Fail("Done channel should be closed")
	}
}

func TestServeHTTPStreamsUntilDisconnect(t *testing.T) {
	b := NewBroadcaster()
	srv := httptest.NewServer(b)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	require.Eventually(t, func() bool { return b.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	buf := make([]byte, 256)
	n, err := resp.Body.Read(buf)
	require.NoError(t, err)
	assert.Contains(t, string(buf[:n]), "event: connected")

	cancel()
	assert.Eventually(t, func() bool { return b.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestConcurrentReports(t *testing.T) {
	b := NewBroadcaster()
	for i := 0; i < 10; i++ {
		_, err := b.AddClient(newRecordingWriter())
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b.Report(progress.Event{Stage: "group", Kind: progress.BatchDone, Index: i})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, b.ClientCount())
}
