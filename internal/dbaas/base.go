// Package dbaas exposes the per-resource operation sets of the database
// service: thin managers over the signed HTTP transport, all speaking the
// single-key envelope convention.
package dbaas

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/edvin/dbaas/internal/resource"
	"github.com/edvin/dbaas/internal/transport"
)

// manager is the shared shell under every resource manager: one collection,
// its envelope keys, and the generic get/list/create/delete/action verbs.
type manager struct {
	t          *transport.Client
	collection string // URL path segment
	singular   string // single-resource envelope key
	plural     string // list envelope key; defaults to the collection segment
	humanID    bool   // collection is addressable by slugified name
}

func (m *manager) listKey() string {
	if m.plural != "" {
		return m.plural
	}
	return m.collection
}

func (m *manager) itemPath(id string) string {
	return fmt.Sprintf("/%s/%s", m.collection, url.PathEscape(id))
}

// decodeOne unwraps a single-resource envelope ({"<singular>": {...}}).
func decodeOne(resp *transport.Response, key string) (resource.Record, error) {
	var envelope map[string]json.RawMessage
	if err := resp.Decode(&envelope); err != nil {
		return nil, err
	}
	raw, ok := envelope[key]
	if !ok {
		return nil, &transport.Error{Kind: transport.KindResponseFormatError, Status: resp.Status,
			Message: fmt.Sprintf("response envelope missing %q key", key)}
	}
	var rec resource.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, &transport.Error{Kind: transport.KindResponseFormatError, Status: resp.Status,
			Message: fmt.Sprintf("undecodable %q envelope: %v", key, err)}
	}
	return rec, nil
}

// decodeList unwraps a list envelope ({"<plural>": [...], "links": [...]})
// and extracts the next marker from any rel=next link.
func decodeList(resp *transport.Response, key string) (*resource.Paginated, error) {
	var envelope struct {
		Links []resource.Link `json:"links"`
	}
	if err := resp.Decode(&envelope); err != nil {
		return nil, err
	}
	var keyed map[string]json.RawMessage
	if err := resp.Decode(&keyed); err != nil {
		return nil, err
	}
	raw, ok := keyed[key]
	if !ok {
		return nil, &transport.Error{Kind: transport.KindResponseFormatError, Status: resp.Status,
			Message: fmt.Sprintf("list envelope missing %q key", key)}
	}
	var items []resource.Record
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &transport.Error{Kind: transport.KindResponseFormatError, Status: resp.Status,
			Message: fmt.Sprintf("undecodable %q list: %v", key, err)}
	}
	return &resource.Paginated{
		Items: items,
		Next:  resource.NextMarker(envelope.Links),
		Links: envelope.Links,
	}, nil
}

func (m *manager) get(ctx context.Context, id string) (resource.Record, error) {
	resp, err := m.t.Get(ctx, m.itemPath(id), nil)
	if err != nil {
		return nil, err
	}
	return decodeOne(resp, m.singular)
}

// listQuery merges limit, marker, and filter keys into one query mapping.
func listQuery(limit int, marker string, filters url.Values) url.Values {
	q := url.Values{}
	for k, vs := range filters {
		q[k] = vs
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if marker != "" {
		q.Set("marker", marker)
	}
	return q
}

func (m *manager) list(ctx context.Context, path string, q url.Values) (*resource.Paginated, error) {
	resp, err := m.t.Get(ctx, path, q)
	if err != nil {
		return nil, err
	}
	return decodeList(resp, m.listKey())
}

func (m *manager) create(ctx context.Context, body any) (resource.Record, error) {
	resp, err := m.t.Post(ctx, "/"+m.collection, body)
	if err != nil {
		return nil, err
	}
	return decodeOne(resp, m.singular)
}

func (m *manager) delete(ctx context.Context, id string) error {
	_, err := m.t.Delete(ctx, m.itemPath(id))
	return err
}

// action posts an imperative verb body to /{collection}/{id}/action.
func (m *manager) action(ctx context.Context, id string, body any) (*transport.Response, error) {
	return m.t.Post(ctx, m.itemPath(id)+"/action", body)
}

// find resolves an id-or-name reference: try the id lookup first, then fall
// back to a name (and human id) scan over the collection. The scan requires
// a unique match.
func (m *manager) find(ctx context.Context, idOrName string) (resource.Record, error) {
	rec, err := m.get(ctx, idOrName)
	if err == nil {
		return rec, nil
	}
	if !transport.IsKind(err, transport.KindNotFound) {
		return nil, err
	}

	var matches []resource.Record
	marker := ""
	for {
		page, listErr := m.list(ctx, "/"+m.collection, listQuery(0, marker, nil))
		if listErr != nil {
			return nil, listErr
		}
		for _, item := range page.Items {
			if item.Name() == idOrName || (m.humanID && item.HumanID() == idOrName) {
				matches = append(matches, item)
			}
		}
		if page.Next == "" {
			break
		}
		marker = page.Next
	}

	switch len(matches) {
	case 0:
		return nil, &transport.Error{Kind: transport.KindNotFound, Status: http.StatusNotFound,
			Message: fmt.Sprintf("no %s with id or name %q", m.singular, idOrName)}
	case 1:
		return matches[0], nil
	default:
		return nil, transport.NewError(transport.KindNoUniqueMatch,
			"%d %s match name %q", len(matches), m.collection, idOrName)
	}
}

// lazy attaches the single re-fetch hook to a record from this collection.
func (m *manager) lazy(rec resource.Record) *resource.Lazy {
	id := rec.ID()
	return resource.NewLazy(rec, func(ctx context.Context) (resource.Record, error) {
		return m.get(ctx, id)
	})
}
