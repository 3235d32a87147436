package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/dbaas/internal/dbaas"
)

func TestInstanceCreateAndWait(t *testing.T) {
	srv := startServer(t)
	client := newClient(t, srv)
	ctx := context.Background()

	rec, err := client.Instances.Create(ctx, dbaas.InstanceCreate{
		Name:      "db1",
		FlavorRef: "2",
		Volume:    &dbaas.VolumeSpec{Size: 5},
	})
	require.NoError(t, err)
	assert.Equal(t, "i-1", rec.ID())
	assert.Equal(t, "BUILD", rec.String("status"))

	flavor := rec.Map("flavor")
	require.NotNil(t, flavor)
	assert.Equal(t, "2", flavor["id"])

	// The server answers BUILD twice, then flips to ACTIVE on the third get.
	var polled []string
	active, err := client.Instances.WaitFor(ctx, "i-1", []string{dbaas.StatusActive},
		time.Millisecond, func(status string) { polled = append(polled, status) })
	require.NoError(t, err)
	assert.Equal(t, "ACTIVE", active.String("status"))
	assert.Equal(t, []string{"BUILD", "BUILD", "ACTIVE"}, polled)
}

func TestInstanceDeleteAndNotFound(t *testing.T) {
	srv := startServer(t)
	client := newClient(t, srv)
	ctx := context.Background()

	rec, err := client.Instances.Create(ctx, dbaas.InstanceCreate{
		Name: "ephemeral", FlavorRef: "1", Volume: &dbaas.VolumeSpec{Size: 1},
	})
	require.NoError(t, err)

	require.NoError(t, client.Instances.Delete(ctx, rec.ID()))

	err = client.Instances.Delete(ctx, rec.ID())
	require.Error(t, err)
	assert.True(t, dbaasNotFound(err))
}

func TestInstanceActionsAccepted(t *testing.T) {
	srv := startServer(t)
	client := newClient(t, srv)
	ctx := context.Background()

	rec, err := client.Instances.Create(ctx, dbaas.InstanceCreate{
		Name: "db-actions", FlavorRef: "1", Volume: &dbaas.VolumeSpec{Size: 2},
	})
	require.NoError(t, err)
	id := rec.ID()

	require.NoError(t, client.Instances.Restart(ctx, id))
	require.NoError(t, client.Instances.ResizeVolume(ctx, id, 10))
	require.NoError(t, client.Instances.ResizeFlavor(ctx, id, "2"))

	req := srv.LastRequest("POST", "/instances/"+id+"/action")
	require.NotNil(t, req)
	assert.Contains(t, string(req.Body), "resize")
}
