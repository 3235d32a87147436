package e2e

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncrementalBackupWithoutParent(t *testing.T) {
	srv := startServer(t)
	srv.AddInstance(map[string]any{"id": "i-1", "name": "db1", "status": "ACTIVE"})
	client := newClient(t, srv)
	ctx := context.Background()

	first, err := client.Backups.Create(ctx, "bk1", "i-1", "", "", false)
	require.NoError(t, err)
	assert.Empty(t, first.String("parent_id"))

	second, err := client.Backups.Create(ctx, "bk2", "i-1", "", "", true)
	require.NoError(t, err)
	// The server picked the newest prior backup as parent.
	assert.Equal(t, first.ID(), second.String("parent_id"))

	// The wire form of the incremental flag is the integer 1, with no
	// parent_id field present.
	req := srv.LastRequest("POST", "/backups")
	require.NotNil(t, req)
	var posted struct {
		Backup map[string]any `json:"backup"`
	}
	require.NoError(t, json.Unmarshal(req.Body, &posted))
	assert.Equal(t, float64(1), posted.Backup["incremental"])
	assert.NotContains(t, posted.Backup, "parent_id")
}

func TestBackupFindByName(t *testing.T) {
	srv := startServer(t)
	srv.AddInstance(map[string]any{"id": "i-1", "name": "db1", "status": "ACTIVE"})
	client := newClient(t, srv)
	ctx := context.Background()

	created, err := client.Backups.Create(ctx, "nightly", "i-1", "keep", "", false)
	require.NoError(t, err)

	found, err := client.Backups.Find(ctx, "nightly")
	require.NoError(t, err)
	assert.Equal(t, created.ID(), found.ID())

	require.NoError(t, client.Backups.Delete(ctx, created.ID()))

	_, err = client.Backups.Find(ctx, "nightly")
	require.Error(t, err)
	assert.True(t, dbaasNotFound(err))
}
