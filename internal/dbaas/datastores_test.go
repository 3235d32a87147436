package dbaas

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionFlavors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /datastores/mysql/versions/5.7.31/flavors", jsonHandler(http.StatusOK,
		`{"flavors":[{"id":"2","name":"m1.small"},{"id":"3","name":"m1.medium"}]}`))
	c := testClient(t, mux)

	page, err := c.Datastores.VersionFlavors(context.Background(), "mysql", "5.7.31")
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "m1.small", page.Items[0].Name())
}

func TestVersionFlavorsEscapesPathSegments(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/datastores/my%20sql/versions/5.7%2F31/flavors", r.URL.RequestURI())
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"flavors":[]}`))
	})
	c := testClient(t, mux)

	_, err := c.Datastores.VersionFlavors(context.Background(), "my sql", "5.7/31")
	require.NoError(t, err)
}

func TestGetParameterDecodesBareBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /datastores/mysql/versions/5.7.31/parameters/max_connections",
		jsonHandler(http.StatusOK, `{"name":"max_connections","type":"integer","min":1,"max":100000,"restart_required":false}`))
	c := testClient(t, mux)

	p, err := c.Datastores.GetParameter(context.Background(), "mysql", "5.7.31", "max_connections")
	require.NoError(t, err)
	assert.Equal(t, "max_connections", p.Name)
	require.NotNil(t, p.Max)
	assert.Equal(t, float64(100000), *p.Max)
}
