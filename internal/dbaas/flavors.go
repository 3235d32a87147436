package dbaas

import (
	"context"

	"github.com/edvin/dbaas/internal/resource"
)

// FlavorManager inspects the named compute sizes. Flavor ids may be
// integer-like or opaque strings; both address the same records.
type FlavorManager struct {
	manager
}

func (m *FlavorManager) List(ctx context.Context, limit int, marker string) (*resource.Paginated, error) {
	return m.list(ctx, "/flavors", listQuery(limit, marker, nil))
}

func (m *FlavorManager) Get(ctx context.Context, id string) (resource.Record, error) {
	return m.get(ctx, id)
}

func (m *FlavorManager) Find(ctx context.Context, idOrName string) (resource.Record, error) {
	return m.find(ctx, idOrName)
}
