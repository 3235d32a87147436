package dbaas

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/edvin/dbaas/internal/resource"
	"github.com/edvin/dbaas/internal/transport"
)

// DatastoreManager inspects engine families, their versions, tunables, and
// the flavors each version supports.
type DatastoreManager struct {
	manager
}

func (m *DatastoreManager) List(ctx context.Context, limit int, marker string) (*resource.Paginated, error) {
	return m.list(ctx, "/datastores", listQuery(limit, marker, nil))
}

func (m *DatastoreManager) Get(ctx context.Context, datastore string) (resource.Record, error) {
	return m.get(ctx, datastore)
}

func (m *DatastoreManager) Find(ctx context.Context, idOrName string) (resource.Record, error) {
	return m.find(ctx, idOrName)
}

func versionsPath(datastore string) string {
	return fmt.Sprintf("/datastores/%s/versions", url.PathEscape(datastore))
}

func (m *DatastoreManager) ListVersions(ctx context.Context, datastore string, limit int, marker string) (*resource.Paginated, error) {
	resp, err := m.t.Get(ctx, versionsPath(datastore), listQuery(limit, marker, nil))
	if err != nil {
		return nil, err
	}
	return decodeList(resp, "versions")
}

func (m *DatastoreManager) GetVersion(ctx context.Context, datastore, version string) (resource.Record, error) {
	resp, err := m.t.Get(ctx, versionsPath(datastore)+"/"+url.PathEscape(version), nil)
	if err != nil {
		return nil, err
	}
	return decodeOne(resp, "version")
}

// Parameters discovers the tunables of a datastore version.
func (m *DatastoreManager) Parameters(ctx context.Context, datastore, version string) ([]Parameter, error) {
	resp, err := m.t.Get(ctx, versionsPath(datastore)+"/"+url.PathEscape(version)+"/parameters", nil)
	if err != nil {
		return nil, err
	}
	var envelope struct {
		Parameters []Parameter `json:"configuration-parameters"`
	}
	if err := resp.Decode(&envelope); err != nil {
		return nil, err
	}
	return envelope.Parameters, nil
}

// GetParameter returns one tunable by name.
func (m *DatastoreManager) GetParameter(ctx context.Context, datastore, version, name string) (*Parameter, error) {
	resp, err := m.t.Get(ctx,
		versionsPath(datastore)+"/"+url.PathEscape(version)+"/parameters/"+url.PathEscape(name), nil)
	if err != nil {
		return nil, err
	}
	var p Parameter
	if err := json.Unmarshal(resp.Body, &p); err != nil {
		return nil, &transport.Error{Kind: transport.KindResponseFormatError, Status: resp.Status,
			Message: fmt.Sprintf("undecodable parameter body: %v", err)}
	}
	return &p, nil
}

// VersionFlavors lists the flavors a datastore version can run on.
func (m *DatastoreManager) VersionFlavors(ctx context.Context, datastore, version string) (*resource.Paginated, error) {
	resp, err := m.t.Get(ctx, versionsPath(datastore)+"/"+url.PathEscape(version)+"/flavors", nil)
	if err != nil {
		return nil, err
	}
	return decodeList(resp, "flavors")
}
