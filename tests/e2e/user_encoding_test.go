package e2e

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/dbaas/internal/dbaas"
)

func TestUserRefEncodingOnTheWire(t *testing.T) {
	srv := startServer(t)
	srv.AddInstance(map[string]any{"id": "i-1", "name": "db1", "status": "ACTIVE"})
	client := newClient(t, srv)
	ctx := context.Background()

	err := client.Users.Create(ctx, "i-1", []dbaas.UserSpec{
		{Name: "ad.min", Password: "s3cret", Host: "10.0.0.1"},
	})
	require.NoError(t, err)

	require.NoError(t, client.Users.Delete(ctx, "i-1", "ad.min", "10.0.0.1"))

	// Dots in the name travel as %2e and the separator as %40; the host
	// stays verbatim.
	req := srv.LastRequest("DELETE", "/instances/i-1/users/")
	require.NotNil(t, req)
	assert.Contains(t, req.URI, "/instances/i-1/users/ad%2emin%4010.0.0.1")
}

func TestUserDefaultHost(t *testing.T) {
	srv := startServer(t)
	srv.AddInstance(map[string]any{"id": "i-1", "name": "db1", "status": "ACTIVE"})
	client := newClient(t, srv)
	ctx := context.Background()

	require.NoError(t, client.Users.Create(ctx, "i-1", []dbaas.UserSpec{{Name: "app", Password: "pw"}}))

	// A user created without a host is addressable at the default `%`.
	rec, err := client.Users.Get(ctx, "i-1", "app", "")
	require.NoError(t, err)
	assert.Equal(t, "app", rec.String("name"))
	assert.Equal(t, "%", rec.String("host"))

	req := srv.LastRequest("GET", "/instances/i-1/users/")
	require.NotNil(t, req)
	assert.Contains(t, req.URI, "app%40%25")
}
