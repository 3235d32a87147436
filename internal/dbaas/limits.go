package dbaas

import (
	"context"

	"github.com/edvin/dbaas/internal/resource"
)

// LimitManager reports the account's absolute limits and rate limits.
type LimitManager struct {
	manager
}

func (m *LimitManager) List(ctx context.Context) ([]resource.Record, error) {
	resp, err := m.t.Get(ctx, "/limits", nil)
	if err != nil {
		return nil, err
	}
	page, err := decodeList(resp, "limits")
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}
