package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/edvin/dbaas/internal/config"
	"github.com/edvin/dbaas/internal/dbaas"
	"github.com/edvin/dbaas/internal/dbaastest"
	"github.com/edvin/dbaas/internal/transport"
)

// newClient authenticates against the fake control plane and returns a
// ready client.
func newClient(t *testing.T, srv *dbaastest.Server) *dbaas.Client {
	t.Helper()

	cfg := &config.Config{
		AuthURL:      srv.AuthURL(),
		Username:     "e2e",
		Password:     "secret",
		ProjectID:    srv.TenantID,
		Region:       "RegionOne",
		ServiceType:  "database",
		EndpointType: "public",
		Retries:      1,
		Timeout:      5 * time.Second,
	}
	client, err := dbaas.Connect(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	return client
}

func dbaasNotFound(err error) bool {
	return transport.IsKind(err, transport.KindNotFound)
}

func startServer(t *testing.T) *dbaastest.Server {
	t.Helper()
	srv := dbaastest.NewServer()
	t.Cleanup(srv.Close)
	return srv
}
