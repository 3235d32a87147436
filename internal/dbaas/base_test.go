package dbaas

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/dbaas/internal/transport"
)

func testClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	tc, err := transport.New(transport.Options{
		Session: transport.Session{Token: "tok-test", Endpoint: srv.URL},
		Retries: 1,
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)
	return New(tc)
}

func jsonHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}
}

func TestFindFallsBackToNameScan(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /instances/primary", jsonHandler(http.StatusNotFound,
		`{"message":"no such instance","code":404}`))
	mux.HandleFunc("GET /instances", jsonHandler(http.StatusOK,
		`{"instances":[{"id":"i-1","name":"primary"},{"id":"i-2","name":"replica"}]}`))
	c := testClient(t, mux)

	rec, err := c.Instances.Find(context.Background(), "primary")
	require.NoError(t, err)
	assert.Equal(t, "i-1", rec.ID())
}

func TestFindRejectsDuplicateNames(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /instances/primary", jsonHandler(http.StatusNotFound,
		`{"message":"no such instance","code":404}`))
	mux.HandleFunc("GET /instances", jsonHandler(http.StatusOK,
		`{"instances":[{"id":"i-1","name":"primary"},{"id":"i-2","name":"primary"}]}`))
	c := testClient(t, mux)

	_, err := c.Instances.Find(context.Background(), "primary")
	assert.True(t, transport.IsKind(err, transport.KindNoUniqueMatch))
}

func TestFindMatchesHumanID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /instances/prod-master", jsonHandler(http.StatusNotFound,
		`{"message":"no such instance","code":404}`))
	mux.HandleFunc("GET /instances", jsonHandler(http.StatusOK,
		`{"instances":[{"id":"i-1","name":"Prod / Master"}]}`))
	c := testClient(t, mux)

	rec, err := c.Instances.Find(context.Background(), "prod-master")
	require.NoError(t, err)
	assert.Equal(t, "i-1", rec.ID())
}

func TestDecodeOneRejectsMissingEnvelopeKey(t *testing.T) {
	c := testClient(t, jsonHandler(http.StatusOK, `{"server":{"id":"i-1"}}`))

	_, err := c.Instances.Get(context.Background(), "i-1")
	assert.True(t, transport.IsKind(err, transport.KindResponseFormatError))
}
