package dbaas

import (
	"context"
	"fmt"
	"net/url"

	"github.com/edvin/dbaas/internal/resource"
)

// DatabaseManager administers databases within a single instance.
type DatabaseManager struct {
	manager
}

func databasesPath(instanceID string) string {
	return fmt.Sprintf("/instances/%s/databases", url.PathEscape(instanceID))
}

// Create adds one or more databases to the instance.
func (m *DatabaseManager) Create(ctx context.Context, instanceID string, databases []DatabaseSpec) error {
	if err := requireID(instanceID, "instance id"); err != nil {
		return err
	}
	for _, db := range databases {
		if err := preflight(db); err != nil {
			return err
		}
	}
	_, err := m.t.Post(ctx, databasesPath(instanceID), map[string]any{"databases": databases})
	return err
}

func (m *DatabaseManager) List(ctx context.Context, instanceID string, limit int, marker string) (*resource.Paginated, error) {
	return m.list(ctx, databasesPath(instanceID), listQuery(limit, marker, nil))
}

func (m *DatabaseManager) Delete(ctx context.Context, instanceID, name string) error {
	if err := requireID(name, "database name"); err != nil {
		return err
	}
	_, err := m.t.Delete(ctx, databasesPath(instanceID)+"/"+url.PathEscape(name))
	return err
}
