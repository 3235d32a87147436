package guestlog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/dbaas/internal/transport"
)

// stubStore serves segments from memory; keys map to newline-terminated
// contents and the segment list is returned newest first.
type stubStore struct {
	segments []Segment
	objects  map[string]string
	fetched  []string
}

func (s *stubStore) ListSegments(ctx context.Context, container, prefix string) ([]Segment, error) {
	return s.segments, nil
}

func (s *stubStore) LineCount(ctx context.Context, container, key string) (int, error) {
	return strings.Count(s.objects[key], "\n"), nil
}

func (s *stubStore) Fetch(ctx context.Context, container, key string) (io.ReadCloser, error) {
	s.fetched = append(s.fetched, key)
	return io.NopCloser(strings.NewReader(s.objects[key])), nil
}

func segmentLines(key string, n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "%s line %d\n", key, i)
	}
	return b.String()
}

func newStubStore() *stubStore {
	return &stubStore{
		segments: []Segment{
			{Key: "seg-3", LastModified: time.Unix(300, 0)},
			{Key: "seg-2", LastModified: time.Unix(200, 0)},
			{Key: "seg-1", LastModified: time.Unix(100, 0)},
		},
		objects: map[string]string{
			"seg-1": segmentLines("seg-1", 4),
			"seg-2": segmentLines("seg-2", 3),
			"seg-3": segmentLines("seg-3", 2),
		},
	}
}

func TestSelectSegmentsStopsOnceCovered(t *testing.T) {
	store := newStubStore()
	s := &Streamer{store: store, logger: zerolog.Nop()}

	keys, skip, err := s.selectSegments(context.Background(), "logs", store.segments, 4)
	require.NoError(t, err)
	// Two newest segments hold 5 lines; one leading line falls outside the
	// requested tail.
	assert.Equal(t, []string{"seg-2", "seg-3"}, keys)
	assert.Equal(t, 1, skip)
}

func TestSelectSegmentsZeroTakesEverything(t *testing.T) {
	store := newStubStore()
	s := &Streamer{store: store, logger: zerolog.Nop()}

	keys, skip, err := s.selectSegments(context.Background(), "logs", store.segments, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"seg-1", "seg-2", "seg-3"}, keys)
	assert.Zero(t, skip)
}

func TestSegmentReaderSkipsAcrossSegmentBoundary(t *testing.T) {
	store := newStubStore()
	r := &segmentReader{
		ctx:       context.Background(),
		store:     store,
		container: "logs",
		keys:      []string{"seg-2", "seg-3"},
		skipLines: 4,
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	// The skip spans all of seg-2 plus seg-3's first line.
	assert.Equal(t, "seg-3 line 2\n", string(out))
	assert.Equal(t, []string{"seg-2", "seg-3"}, store.fetched)
}

func TestSegmentReaderFetchesLazily(t *testing.T) {
	store := newStubStore()
	r := &segmentReader{
		ctx:       context.Background(),
		store:     store,
		container: "logs",
		keys:      []string{"seg-1", "seg-2", "seg-3"},
	}
	defer r.Close()

	buf := make([]byte, 8)
	_, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"seg-1"}, store.fetched)
}

func TestStoreErrorMapsMissingObjects(t *testing.T) {
	err := storeError("head segment x", errors.New("operation error S3: HeadObject, NoSuchKey"))
	assert.True(t, transport.IsKind(err, transport.KindGuestLogNotFound))

	err = storeError("list segments", errors.New("dial tcp: connection refused"))
	assert.True(t, transport.IsKind(err, transport.KindConnectionError))
}
