package dbaas

import (
	"context"
	"net/url"

	"github.com/edvin/dbaas/internal/resource"
)

// MgmtManager is the operator surface: instances across all projects and
// the actions only admins may take on them.
type MgmtManager struct {
	manager
}

// List returns instances across projects. With deleted set, soft-deleted
// instances are included.
func (m *MgmtManager) List(ctx context.Context, limit int, marker string, deleted bool) (*resource.Paginated, error) {
	filters := url.Values{}
	if deleted {
		filters.Set("deleted", "true")
	}
	return m.list(ctx, "/mgmt/instances", listQuery(limit, marker, filters))
}

func (m *MgmtManager) Get(ctx context.Context, id string) (resource.Record, error) {
	return m.get(ctx, id)
}

// Stop stops the database service on the instance.
func (m *MgmtManager) Stop(ctx context.Context, id string) error {
	_, err := m.action(ctx, id, map[string]any{"stop": map[string]any{}})
	return err
}

// Reboot hard-reboots the instance server.
func (m *MgmtManager) Reboot(ctx context.Context, id string) error {
	_, err := m.action(ctx, id, map[string]any{"reboot": map[string]any{}})
	return err
}

// Migrate moves the instance to another host.
func (m *MgmtManager) Migrate(ctx context.Context, id, host string) error {
	body := map[string]any{}
	if host != "" {
		body["host"] = host
	}
	_, err := m.action(ctx, id, map[string]any{"migrate": body})
	return err
}

// ResetTaskStatus clears a wedged task status. The instance itself is left
// untouched.
func (m *MgmtManager) ResetTaskStatus(ctx context.Context, id string) error {
	_, err := m.action(ctx, id, map[string]any{"reset-task-status": map[string]any{}})
	return err
}

// ForceDelete clears a wedged task status and then deletes the instance.
// The delete still goes through the regular path, so a fresh task can veto it.
func (m *MgmtManager) ForceDelete(ctx context.Context, id string) error {
	if err := m.ResetTaskStatus(ctx, id); err != nil {
		return err
	}
	_, err := m.t.Delete(ctx, "/instances/"+url.PathEscape(id))
	return err
}

// Update triggers a guest agent update on the instance.
func (m *MgmtManager) Update(ctx context.Context, id string) error {
	_, err := m.action(ctx, id, map[string]any{"update": map[string]any{}})
	return err
}

// Diagnostics reports guest-side diagnostics for the instance.
func (m *MgmtManager) Diagnostics(ctx context.Context, id string) (resource.Record, error) {
	resp, err := m.t.Get(ctx, m.itemPath(id)+"/diagnostics", nil)
	if err != nil {
		return nil, err
	}
	return decodeOne(resp, "diagnostics")
}

// RootHistory reports when and by whom root was enabled on the instance.
func (m *MgmtManager) RootHistory(ctx context.Context, id string) (resource.Record, error) {
	resp, err := m.t.Get(ctx, m.itemPath(id)+"/root", nil)
	if err != nil {
		return nil, err
	}
	return decodeOne(resp, "root_history")
}

// Configs lists the server's stored mgmt configuration entries.
func (m *MgmtManager) Configs(ctx context.Context) ([]resource.Record, error) {
	resp, err := m.t.Get(ctx, "/mgmt/configs", nil)
	if err != nil {
		return nil, err
	}
	page, err := decodeList(resp, "configs")
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}
