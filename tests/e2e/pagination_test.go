package e2e

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaginatedListYieldsEachRecordOnce(t *testing.T) {
	srv := startServer(t)
	for i := 1; i <= 3; i++ {
		srv.AddInstance(map[string]any{
			"id":     fmt.Sprintf("i-%d", i),
			"name":   fmt.Sprintf("db%d", i),
			"status": "ACTIVE",
		})
	}
	client := newClient(t, srv)
	ctx := context.Background()

	page1, err := client.Instances.List(ctx, 2, "", false)
	require.NoError(t, err)
	require.Len(t, page1.Items, 2)
	assert.Equal(t, "i-1", page1.Items[0].ID())
	assert.Equal(t, "i-2", page1.Items[1].ID())
	require.Equal(t, "i-2", page1.Next)

	page2, err := client.Instances.List(ctx, 2, page1.Next, false)
	require.NoError(t, err)
	require.Len(t, page2.Items, 1)
	assert.Equal(t, "i-3", page2.Items[0].ID())
	assert.Empty(t, page2.Next)

	// A fetched page is a snapshot: re-reading it sees the same two items
	// even after the server gains records.
	srv.AddInstance(map[string]any{"id": "i-9", "name": "late", "status": "ACTIVE"})
	assert.Len(t, page1.Items, 2)
	assert.Equal(t, "i-1", page1.Items[0].ID())
}

func TestListWithoutLimitReturnsEverything(t *testing.T) {
	srv := startServer(t)
	for i := 1; i <= 5; i++ {
		srv.AddInstance(map[string]any{
			"id":     fmt.Sprintf("i-%d", i),
			"name":   fmt.Sprintf("db%d", i),
			"status": "ACTIVE",
		})
	}
	client := newClient(t, srv)

	page, err := client.Instances.List(context.Background(), 0, "", false)
	require.NoError(t, err)
	assert.Len(t, page.Items, 5)
	assert.Empty(t, page.Next)
}
