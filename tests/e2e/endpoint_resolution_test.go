package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/dbaas/internal/config"
	"github.com/edvin/dbaas/internal/dbaas"
	"github.com/edvin/dbaas/internal/transport"
)

func TestAmbiguousCatalogFailsResolution(t *testing.T) {
	srv := startServer(t)
	srv.AmbiguousCatalog = true

	cfg := &config.Config{
		AuthURL:     srv.AuthURL(),
		Username:    "e2e",
		Password:    "secret",
		ProjectID:   srv.TenantID,
		Region:      "RegionOne",
		ServiceType: "database",
		Timeout:     5 * time.Second,
	}
	_, err := dbaas.Connect(context.Background(), cfg, zerolog.Nop())
	require.Error(t, err)
	assert.True(t, transport.IsKind(err, transport.KindAmbiguousEndpoints))
	// Both candidate URLs are named so the caller can pick a service name.
	assert.Contains(t, err.Error(), srv.ServiceURL())
	assert.Contains(t, err.Error(), srv.ServiceURL()+"-legacy")
}

func TestServiceNameDisambiguates(t *testing.T) {
	srv := startServer(t)
	srv.AmbiguousCatalog = true

	cfg := &config.Config{
		AuthURL:     srv.AuthURL(),
		Username:    "e2e",
		Password:    "secret",
		ProjectID:   srv.TenantID,
		Region:      "RegionOne",
		ServiceType: "database",
		ServiceName: "cloudDatabases",
		Timeout:     5 * time.Second,
	}
	client, err := dbaas.Connect(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, client)
}
