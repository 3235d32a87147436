package dbaas

import (
	"context"
	"fmt"
	"net/url"

	"github.com/edvin/dbaas/internal/resource"
)

// QuotaManager shows and updates per-tenant quotas. Admin only.
type QuotaManager struct {
	manager
}

func quotaPath(tenantID string) string {
	return fmt.Sprintf("/mgmt/quotas/%s", url.PathEscape(tenantID))
}

func (m *QuotaManager) Show(ctx context.Context, tenantID string) ([]resource.Record, error) {
	if err := requireID(tenantID, "tenant id"); err != nil {
		return nil, err
	}
	resp, err := m.t.Get(ctx, quotaPath(tenantID), nil)
	if err != nil {
		return nil, err
	}
	page, err := decodeList(resp, "quotas")
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// Update sets new limits for the named resources, e.g. {"instances": 10}.
func (m *QuotaManager) Update(ctx context.Context, tenantID string, limits map[string]int) (resource.Record, error) {
	if err := requireID(tenantID, "tenant id"); err != nil {
		return nil, err
	}
	resp, err := m.t.Put(ctx, quotaPath(tenantID), map[string]any{"quotas": limits})
	if err != nil {
		return nil, err
	}
	return decodeOne(resp, "quotas")
}
