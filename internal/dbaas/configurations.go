package dbaas

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/edvin/dbaas/internal/resource"
	"github.com/edvin/dbaas/internal/transport"
)

// ConfigurationManager administers configuration groups: named parameter
// sets bound to a datastore version.
type ConfigurationManager struct {
	manager
}

// ConfigurationCreate is the input of group creation.
type ConfigurationCreate struct {
	Name        string         `json:"name" validate:"required"`
	Values      map[string]any `json:"values" validate:"required"`
	Description string         `json:"description,omitempty"`
	Datastore   *DatastoreSpec `json:"datastore,omitempty"`
}

func (m *ConfigurationManager) Create(ctx context.Context, req ConfigurationCreate) (resource.Record, error) {
	if err := preflight(req); err != nil {
		return nil, err
	}
	return m.create(ctx, map[string]any{"configuration": req})
}

func (m *ConfigurationManager) List(ctx context.Context, limit int, marker string) (*resource.Paginated, error) {
	return m.list(ctx, "/configurations", listQuery(limit, marker, nil))
}

func (m *ConfigurationManager) Get(ctx context.Context, id string) (resource.Record, error) {
	return m.get(ctx, id)
}

func (m *ConfigurationManager) Find(ctx context.Context, idOrName string) (resource.Record, error) {
	return m.find(ctx, idOrName)
}

// Update replaces the group's values wholesale.
func (m *ConfigurationManager) Update(ctx context.Context, id, name, description string, values map[string]any) error {
	body := map[string]any{"values": values}
	if name != "" {
		body["name"] = name
	}
	if description != "" {
		body["description"] = description
	}
	_, err := m.t.Put(ctx, m.itemPath(id), map[string]any{"configuration": body})
	return err
}

// Patch merges the given values into the group, leaving others untouched.
func (m *ConfigurationManager) Patch(ctx context.Context, id string, values map[string]any) error {
	_, err := m.t.Patch(ctx, m.itemPath(id), map[string]any{"configuration": map[string]any{"values": values}})
	return err
}

func (m *ConfigurationManager) Delete(ctx context.Context, id string) error {
	return m.delete(ctx, id)
}

// Instances lists the instances the group is attached to.
func (m *ConfigurationManager) Instances(ctx context.Context, id string, limit int, marker string) (*resource.Paginated, error) {
	resp, err := m.t.Get(ctx, m.itemPath(id)+"/instances", listQuery(limit, marker, nil))
	if err != nil {
		return nil, err
	}
	return decodeList(resp, "instances")
}

// Attach binds the group to an instance.
func (m *ConfigurationManager) Attach(ctx context.Context, instanceID, groupID string) error {
	if err := requireID(groupID, "configuration group id"); err != nil {
		return err
	}
	_, err := m.t.Patch(ctx, fmt.Sprintf("/instances/%s", url.PathEscape(instanceID)),
		map[string]any{"instance": map[string]any{"configuration": groupID}})
	return err
}

// Detach removes any group from the instance.
func (m *ConfigurationManager) Detach(ctx context.Context, instanceID string) error {
	_, err := m.t.Patch(ctx, fmt.Sprintf("/instances/%s", url.PathEscape(instanceID)),
		map[string]any{"instance": map[string]any{"configuration": nil}})
	return err
}

// Parameter describes one tunable of a datastore version.
type Parameter struct {
	Name            string   `json:"name"`
	Type            string   `json:"type"`
	Min             *float64 `json:"min,omitempty"`
	Max             *float64 `json:"max,omitempty"`
	RestartRequired bool     `json:"restart_required"`
}

// ValidateValues checks proposed values against the discovered parameters.
// The server stays authoritative; this only rejects what is certainly wrong.
func ValidateValues(params []Parameter, values map[string]any) error {
	byName := make(map[string]Parameter, len(params))
	for _, p := range params {
		byName[p.Name] = p
	}

	for name, value := range values {
		p, ok := byName[name]
		if !ok {
			return transport.NewError(transport.KindValidationError,
				"unknown configuration parameter %q", name)
		}
		if p.Type != "integer" && p.Type != "float" {
			continue
		}
		n, err := numericValue(value)
		if err != nil {
			return transport.NewError(transport.KindValidationError,
				"parameter %q expects a %s value, got %v", name, p.Type, value)
		}
		if p.Min != nil && n < *p.Min {
			return transport.NewError(transport.KindValidationError,
				"parameter %q value %v is below the minimum %v", name, value, *p.Min)
		}
		if p.Max != nil && n > *p.Max {
			return transport.NewError(transport.KindValidationError,
				"parameter %q value %v is above the maximum %v", name, value, *p.Max)
		}
	}
	return nil
}

func numericValue(v any) (float64, error) {
	switch t := v.(type) {
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case float64:
		return t, nil
	case string:
		return strconv.ParseFloat(t, 64)
	}
	return 0, fmt.Errorf("not numeric: %T", v)
}
