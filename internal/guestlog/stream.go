package guestlog

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/edvin/dbaas/internal/dbaas"
)

// Streamer reassembles published guest-log segments. The service reports
// the container and key prefix; the object store holds the bytes.
type Streamer struct {
	logs   *dbaas.LogManager
	store  Store
	logger zerolog.Logger
}

func NewStreamer(logs *dbaas.LogManager, store Store, logger zerolog.Logger) *Streamer {
	return &Streamer{
		logs:   logs,
		store:  store,
		logger: logger.With().Str("component", "guestlog").Logger(),
	}
}

// selectSegments walks the newest-first segment list, accumulating line
// counts until the sum covers lines (or everything, for lines <= 0). It
// returns the selected keys in oldest-to-newest order plus how many leading
// lines of their concatenation fall outside the requested tail.
func (s *Streamer) selectSegments(ctx context.Context, container string, segments []Segment, lines int) (keys []string, skip int, err error) {
	total := 0
	var newestFirst []string
	for _, seg := range segments {
		n, err := s.store.LineCount(ctx, container, seg.Key)
		if err != nil {
			return nil, 0, err
		}
		newestFirst = append(newestFirst, seg.Key)
		total += n
		if lines > 0 && total >= lines {
			break
		}
	}

	// Reverse into chronological order.
	keys = make([]string, len(newestFirst))
	for i, k := range newestFirst {
		keys[len(newestFirst)-1-i] = k
	}

	if lines > 0 && total > lines {
		skip = total - lines
	}
	return keys, skip, nil
}

// Tail returns a reader over the last N newline-delimited records of the
// published log, optionally requesting a publish cycle first. N = 0 means
// all lines. Segments are fetched lazily as the reader advances.
func (s *Streamer) Tail(ctx context.Context, instanceID, logName string, lines int, publish bool) (io.ReadCloser, error) {
	if publish {
		if _, err := s.logs.Set(ctx, instanceID, logName, dbaas.LogAction{Publish: true}); err != nil {
			return nil, err
		}
	}

	meta, err := s.logs.Show(ctx, instanceID, logName)
	if err != nil {
		return nil, err
	}

	segments, err := s.store.ListSegments(ctx, meta.Container, meta.Prefix)
	if err != nil {
		return nil, err
	}

	keys, skip, err := s.selectSegments(ctx, meta.Container, segments, lines)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Str("log", logName).Int("segments", len(keys)).Int("skip_lines", skip).
		Msg("tailing published log")

	return &segmentReader{
		ctx:       ctx,
		store:     s.store,
		container: meta.Container,
		keys:      keys,
		skipLines: skip,
	}, nil
}

// Save writes every published segment of the log to path in chronological
// order and returns the written path.
func (s *Streamer) Save(ctx context.Context, instanceID, logName, path string) (string, error) {
	r, err := s.Tail(ctx, instanceID, logName, 0, true)
	if err != nil {
		return "", err
	}
	defer r.Close()

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// segmentReader concatenates segments lazily, dropping the first skipLines
// lines of the stream.
type segmentReader struct {
	ctx       context.Context
	store     Store
	container string
	keys      []string
	skipLines int

	cur io.ReadCloser
	buf *bufio.Reader
}

func (r *segmentReader) Read(p []byte) (int, error) {
	for {
		if r.buf == nil {
			if len(r.keys) == 0 {
				return 0, io.EOF
			}
			body, err := r.store.Fetch(r.ctx, r.container, r.keys[0])
			if err != nil {
				return 0, err
			}
			r.keys = r.keys[1:]
			r.cur = body
			r.buf = bufio.NewReader(body)
		}

		for r.skipLines > 0 {
			if _, err := r.buf.ReadBytes('\n'); err != nil {
				if err == io.EOF {
					r.closeCurrent()
					break
				}
				return 0, err
			}
			r.skipLines--
		}
		if r.buf == nil {
			continue
		}

		n, err := r.buf.Read(p)
		if err == io.EOF {
			r.closeCurrent()
			if n == 0 {
				continue
			}
			return n, nil
		}
		return n, err
	}
}

func (r *segmentReader) closeCurrent() {
	if r.cur != nil {
		r.cur.Close()
	}
	r.cur = nil
	r.buf = nil
}

func (r *segmentReader) Close() error {
	r.closeCurrent()
	r.keys = nil
	return nil
}
