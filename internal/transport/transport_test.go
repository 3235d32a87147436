package transport

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, endpoint string, opts Options) *Client {
	t.Helper()
	opts.Session = Session{Token: "tok-1", Endpoint: endpoint}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	c, err := New(opts)
	require.NoError(t, err)
	return c
}

func TestRequestSignsWithToken(t *testing.T) {
	var gotToken, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Auth-Token")
		gotAccept = r.Header.Get("Accept")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, Options{})
	resp, err := c.Get(context.Background(), "/instances", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "tok-1", gotToken)
	assert.Equal(t, "application/json", gotAccept)
}

func TestIdempotentRequestsRetryConnectionFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			// Drop the connection without an HTTP status.
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, Options{Retries: 3})
	resp, err := c.Get(context.Background(), "/instances", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPostIsNeverRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		hj, ok := w.(http.Hijacker)
		require.True(t, ok)
		conn, _, err := hj.Hijack()
		require.NoError(t, err)
		conn.Close()
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, Options{Retries: 3})
	_, err := c.Post(context.Background(), "/instances", map[string]any{"instance": map[string]any{}})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindConnectionError))
	assert.Equal(t, int32(1), calls.Load())
}

func TestUnauthorizedTriggersSingleReauth(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("X-Auth-Token") != "tok-2" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"token expired","code":401}`))
			return
		}
		w.Write([]byte(`{"instances":[]}`))
	}))
	defer srv.Close()

	var reauths atomic.Int32
	c := newTestClient(t, srv.URL, Options{
		Reauth: func(ctx context.Context) (Session, error) {
			reauths.Add(1)
			return Session{Token: "tok-2", Endpoint: srv.URL}, nil
		},
	})

	resp, err := c.Get(context.Background(), "/instances", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, int32(1), reauths.Load())
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "tok-2", c.Session().Token)
}

func TestSecondUnauthorizedSurfacesAuthorizationFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"still not welcome","code":401}`))
	}))
	defer srv.Close()

	var reauths atomic.Int32
	c := newTestClient(t, srv.URL, Options{
		Reauth: func(ctx context.Context) (Session, error) {
			reauths.Add(1)
			return Session{Token: "tok-fresh", Endpoint: srv.URL}, nil
		},
	})

	_, err := c.Get(context.Background(), "/instances", nil)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindAuthorizationFailure))
	// No re-auth loop.
	assert.Equal(t, int32(1), reauths.Load())
}

func TestReauthFailureSurfacesAuthorizationFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"expired","code":401}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, Options{
		Reauth: func(ctx context.Context) (Session, error) {
			return Session{}, NewError(KindAuthorizationFailure, "bad credentials")
		},
	})

	_, err := c.Get(context.Background(), "/instances", nil)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindAuthorizationFailure))
}

func TestDebugLogRedactsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	c := newTestClient(t, srv.URL, Options{Logger: logger})
	_, err := c.Get(context.Background(), "/instances", nil)
	require.NoError(t, err)

	out := buf.String()
	assert.NotContains(t, out, "tok-1")
	assert.Contains(t, out, redactedPlaceholder)
}

func TestTimeoutMapsToTaxonomy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, Options{Timeout: 20 * time.Millisecond, Retries: 1})
	_, err := c.Get(context.Background(), "/instances", nil)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindTimeout))
}

func TestErrorResponseCarriesRequestID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", "req-77")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"volume too small","code":422}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, Options{})
	_, err := c.Post(context.Background(), "/instances", map[string]any{})
	require.Error(t, err)

	te := AsError(err)
	require.NotNil(t, te)
	assert.Equal(t, KindUnprocessableEntity, te.Kind)
	assert.Equal(t, "req-77", te.RequestID)
	assert.Contains(t, te.Message, "volume too small")
}
