package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// streamingServer serves an OpenAI-compatible chat completion stream that
// keeps emitting chunks until the request is cancelled.
func streamingServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		chunk := `{"id":"c1","object":"chat.completion.chunk","created":1,"model":"m",` +
			`"choices":[{"index":0,"delta":{"content":"word "}}]}`
		for {
			select {
			case <-r.Context().Done():
				return
			default:
			}
			fmt.Fprintf(w, "data: %s\n\n", chunk)
			flusher.Flush()
		}
	}))
}

func TestStreamCompleteNoAPIKey(t *testing.T) {
	client := NewClient(Options{Model: "m"})
	_, err := client.StreamComplete(context.Background(), "", []Message{{Role: RoleUser, Content: "hi"}})
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestStreamCompleteDelivers(t *testing.T) {
	srv := streamingServer(t)
	defer srv.Close()

	client := NewClient(Options{Model: "m", BaseURL: srv.URL, APIKey: "test"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := client.StreamComplete(ctx, "", []Message{{Role: RoleUser, Content: "hi"}})
	require.NoError(t, err)

	frag := <-ch
	require.NoError(t, frag.Err)
	assert.Equal(t, "word ", frag.Text)
}

func TestStreamCompleteCancelWhileAbandoned(t *testing.T) {
	srv := streamingServer(t)
	defer srv.Close()

	client := NewClient(Options{Model: "m", BaseURL: srv.URL, APIKey: "test"})

	before := runtime.NumGoroutine()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := client.StreamComplete(ctx, "", []Message{{Role: RoleUser, Content: "hi"}})
	require.NoError(t, err)

	// Read one fragment, then drop the connection and never touch the
	// channel again — the forwarding goroutine must still wind down.
	frag := <-ch
	require.NoError(t, frag.Err)
	cancel()

	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before+1
	}, 5*time.Second, 50*time.Millisecond,
		"forwarding goroutine still alive after cancel: %s", goroutineDump())
}

func goroutineDump() string {
	buf := make([]byte, 1<<16)
	n := runtime.Stack(buf, true)
	dump := string(buf[:n])
	if len(dump) > 4000 {
		dump = dump[:4000]
	}
	return dump
}
