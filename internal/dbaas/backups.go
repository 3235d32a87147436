package dbaas

import (
	"context"
	"net/url"

	"github.com/edvin/dbaas/internal/resource"
)

type BackupManager struct {
	manager
}

// BackupListFilter narrows a backup listing. AllProjects is admin only.
type BackupListFilter struct {
	Datastore   string
	InstanceID  string
	AllProjects bool
}

func (m *BackupManager) List(ctx context.Context, limit int, marker string, filter BackupListFilter) (*resource.Paginated, error) {
	filters := url.Values{}
	if filter.Datastore != "" {
		filters.Set("datastore", filter.Datastore)
	}
	if filter.InstanceID != "" {
		filters.Set("instance_id", filter.InstanceID)
	}
	if filter.AllProjects {
		filters.Set("all_projects", "true")
	}
	return m.list(ctx, "/backups", listQuery(limit, marker, filters))
}

func (m *BackupManager) Get(ctx context.Context, id string) (resource.Record, error) {
	return m.get(ctx, id)
}

func (m *BackupManager) Find(ctx context.Context, idOrName string) (resource.Record, error) {
	return m.find(ctx, idOrName)
}

// BackupCreate is the input of backup creation. With Incremental set and no
// ParentID, the server selects the most recent completed backup of the
// instance as the parent.
type BackupCreate struct {
	Name        string `json:"name" validate:"required"`
	Instance    string `json:"instance" validate:"required"`
	Description string `json:"description,omitempty"`
	ParentID    string `json:"parent_id,omitempty"`
	Incremental int    `json:"incremental,omitempty"`
}

func (m *BackupManager) Create(ctx context.Context, name, instanceID, description, parentID string, incremental bool) (resource.Record, error) {
	req := BackupCreate{
		Name:        name,
		Instance:    instanceID,
		Description: description,
		ParentID:    parentID,
	}
	if incremental {
		req.Incremental = 1
	}
	if err := preflight(req); err != nil {
		return nil, err
	}
	return m.create(ctx, map[string]any{"backup": req})
}

func (m *BackupManager) Delete(ctx context.Context, id string) error {
	return m.delete(ctx, id)
}
