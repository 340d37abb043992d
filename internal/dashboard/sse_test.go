package dashboard

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleSSEStreamsPublishedEvent(t *testing.T) {
	s, _ := testServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(srv.URL + "/sse/output")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	go func() {
		time.Sleep(50 * time.Millisecond)
		s.Bus.Publish(Event{Type: "story_status", RunID: "r1"})
	}()

	reader := bufio.NewReader(resp.Body)
	var lines []string
	for i := 0; i < 3; i++ {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		lines = append(lines, line)
	}
	joined := strings.Join(lines, "")
	assert.Contains(t, joined, "event: story_status")
	assert.Contains(t, joined, `"run_id":"r1"`)
}
