package e2e

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/dbaas/internal/guestlog"
)

// memStore is an in-process stand-in for the object store holding published
// log segments.
type memStore struct {
	segments []guestlog.Segment
	bodies   map[string]string
	lines    map[string]int
}

func (m *memStore) ListSegments(ctx context.Context, container, prefix string) ([]guestlog.Segment, error) {
	return m.segments, nil
}

func (m *memStore) LineCount(ctx context.Context, container, key string) (int, error) {
	return m.lines[key], nil
}

func (m *memStore) Fetch(ctx context.Context, container, key string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(m.bodies[key])), nil
}

func numberedLines(prefix string, n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "%s line %d\n", prefix, i)
	}
	return b.String()
}

func TestLogTailAcrossSegments(t *testing.T) {
	srv := startServer(t)
	srv.AddInstance(map[string]any{"id": "i-1", "name": "db1", "status": "ACTIVE"})
	srv.AddLog("i-1", map[string]any{
		"name": "err", "type": "SYS", "status": "Partial",
		"container": "c", "prefix": "i-1/err/", "published": 3, "pending": 0,
	})
	client := newClient(t, srv)

	now := time.Now()
	store := &memStore{
		// Newest first, the order the object store reports.
		segments: []guestlog.Segment{
			{Key: "i-1/err/003", LastModified: now},
			{Key: "i-1/err/002", LastModified: now.Add(-time.Minute)},
			{Key: "i-1/err/001", LastModified: now.Add(-2 * time.Minute)},
		},
		lines: map[string]int{"i-1/err/003": 40, "i-1/err/002": 35, "i-1/err/001": 25},
		bodies: map[string]string{
			"i-1/err/001": numberedLines("old", 25),
			"i-1/err/002": numberedLines("mid", 35),
			"i-1/err/003": numberedLines("new", 40),
		},
	}

	streamer := guestlog.NewStreamer(client.Logs, store, zerolog.Nop())
	rc, err := streamer.Tail(context.Background(), "i-1", "err", 50, true)
	require.NoError(t, err)
	defer rc.Close()

	out, err := io.ReadAll(rc)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")

	// 40 + 35 covers 50, so only the newest two segments are read; the
	// result is the last 50 lines of their concatenation.
	require.Len(t, lines, 50)
	assert.Equal(t, "mid line 26", lines[0])
	assert.Equal(t, "new line 40", lines[49])
	assert.NotContains(t, string(out), "old line")
}

func TestLogTailZeroMeansEverything(t *testing.T) {
	srv := startServer(t)
	srv.AddInstance(map[string]any{"id": "i-1", "name": "db1", "status": "ACTIVE"})
	srv.AddLog("i-1", map[string]any{
		"name": "slow", "type": "USER", "status": "Published",
		"container": "c", "prefix": "i-1/slow/", "published": 2, "pending": 0,
	})
	client := newClient(t, srv)

	now := time.Now()
	store := &memStore{
		segments: []guestlog.Segment{
			{Key: "i-1/slow/002", LastModified: now},
			{Key: "i-1/slow/001", LastModified: now.Add(-time.Minute)},
		},
		lines: map[string]int{"i-1/slow/002": 3, "i-1/slow/001": 2},
		bodies: map[string]string{
			"i-1/slow/001": "a\nb\n",
			"i-1/slow/002": "c\nd\ne\n",
		},
	}

	streamer := guestlog.NewStreamer(client.Logs, store, zerolog.Nop())
	rc, err := streamer.Tail(context.Background(), "i-1", "slow", 0, false)
	require.NoError(t, err)
	defer rc.Close()

	out, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nc\nd\ne\n", string(out))
}
