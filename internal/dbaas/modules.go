package dbaas

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"

	"github.com/edvin/dbaas/internal/resource"
	"github.com/edvin/dbaas/internal/transport"
)

// ModuleManager administers modules: opaque payloads the server applies to
// instances. Payloads travel base64-framed regardless of whether the
// original contents were text or binary.
type ModuleManager struct {
	manager
}

// AllDatastores is the update sentinel that unbinds a module from any
// specific datastore (wire form: an explicit null). Leaving the field unset
// keeps the current binding; the two must stay distinguishable.
const AllDatastores = "\x00all-datastores"

// EncodePayload frames module contents for transport.
func EncodePayload(contents []byte) string {
	return base64.StdEncoding.EncodeToString(contents)
}

// DecodePayload recovers module contents from their wire framing.
func DecodePayload(encoded string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, transport.NewError(transport.KindResponseFormatError,
			"undecodable module payload: %v", err)
	}
	return b, nil
}

// ModuleCreate is the input of module creation.
type ModuleCreate struct {
	Name             string `json:"name" validate:"required"`
	Type             string `json:"module_type" validate:"required"`
	Contents         []byte `json:"-" validate:"required"`
	Description      string `json:"description,omitempty"`
	Datastore        string `json:"datastore,omitempty"`
	DatastoreVersion string `json:"datastore_version,omitempty"`
	AutoApply        bool   `json:"auto_apply,omitempty"`
	AllTenants       bool   `json:"all_tenants,omitempty"`
	Visible          *bool  `json:"visible,omitempty"`
	LiveUpdate       bool   `json:"live_update,omitempty"`
	Priority         bool   `json:"priority_apply,omitempty"`
}

func (m *ModuleManager) Create(ctx context.Context, req ModuleCreate) (resource.Record, error) {
	if err := preflight(req); err != nil {
		return nil, err
	}
	body := map[string]any{
		"name":        req.Name,
		"module_type": req.Type,
		"contents":    EncodePayload(req.Contents),
	}
	if req.Description != "" {
		body["description"] = req.Description
	}
	if req.Datastore != "" {
		body["datastore"] = req.Datastore
	}
	if req.DatastoreVersion != "" {
		body["datastore_version"] = req.DatastoreVersion
	}
	if req.AutoApply {
		body["auto_apply"] = true
	}
	if req.AllTenants {
		body["all_tenants"] = true
	}
	if req.Visible != nil {
		body["visible"] = *req.Visible
	}
	if req.LiveUpdate {
		body["live_update"] = true
	}
	if req.Priority {
		body["priority_apply"] = true
	}
	return m.create(ctx, map[string]any{"module": body})
}

// ModuleUpdate carries the changed fields of a module. Zero values mean
// "leave unchanged"; the AllDatastores sentinel on Datastore or
// DatastoreVersion serializes an explicit null, unbinding the module.
type ModuleUpdate struct {
	Name             string
	Contents         []byte
	Description      string
	Datastore        string
	DatastoreVersion string
}

func (m *ModuleManager) Update(ctx context.Context, id string, update ModuleUpdate) (resource.Record, error) {
	body := map[string]any{}
	if update.Name != "" {
		body["name"] = update.Name
	}
	if update.Contents != nil {
		body["contents"] = EncodePayload(update.Contents)
	}
	if update.Description != "" {
		body["description"] = update.Description
	}
	switch update.Datastore {
	case "":
	case AllDatastores:
		body["datastore"] = nil
	default:
		body["datastore"] = update.Datastore
	}
	switch update.DatastoreVersion {
	case "":
	case AllDatastores:
		body["datastore_version"] = nil
	default:
		body["datastore_version"] = update.DatastoreVersion
	}
	if len(body) == 0 {
		return nil, transport.NewError(transport.KindValidationError, "nothing to update")
	}

	resp, err := m.t.Put(ctx, m.itemPath(id), map[string]any{"module": body})
	if err != nil {
		return nil, err
	}
	return decodeOne(resp, "module")
}

func (m *ModuleManager) List(ctx context.Context, limit int, marker string) (*resource.Paginated, error) {
	return m.list(ctx, "/modules", listQuery(limit, marker, nil))
}

func (m *ModuleManager) Get(ctx context.Context, id string) (resource.Record, error) {
	return m.get(ctx, id)
}

func (m *ModuleManager) Find(ctx context.Context, idOrName string) (resource.Record, error) {
	return m.find(ctx, idOrName)
}

func (m *ModuleManager) Delete(ctx context.Context, id string) error {
	return m.delete(ctx, id)
}

// Instances lists the instances a module is applied to.
func (m *ModuleManager) Instances(ctx context.Context, id string, limit int, marker string) (*resource.Paginated, error) {
	resp, err := m.t.Get(ctx, m.itemPath(id)+"/instances", listQuery(limit, marker, nil))
	if err != nil {
		return nil, err
	}
	return decodeList(resp, "instances")
}

func instanceModulesPath(instanceID string) string {
	return fmt.Sprintf("/instances/%s/modules", url.PathEscape(instanceID))
}

// Apply applies modules to an instance.
func (m *ModuleManager) Apply(ctx context.Context, instanceID string, moduleIDs []string) ([]resource.Record, error) {
	if len(moduleIDs) == 0 {
		return nil, transport.NewError(transport.KindValidationError, "no modules to apply")
	}
	refs := make([]ModuleRef, 0, len(moduleIDs))
	for _, id := range moduleIDs {
		refs = append(refs, ModuleRef{ID: id})
	}
	resp, err := m.t.Post(ctx, instanceModulesPath(instanceID), map[string]any{"modules": refs})
	if err != nil {
		return nil, err
	}
	page, err := decodeList(resp, "modules")
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// Remove removes one module from an instance.
func (m *ModuleManager) Remove(ctx context.Context, instanceID, moduleID string) error {
	if err := requireID(moduleID, "module id"); err != nil {
		return err
	}
	_, err := m.t.Delete(ctx, instanceModulesPath(instanceID)+"/"+url.PathEscape(moduleID))
	return err
}

// Retrieve fetches the modules applied to an instance together with their
// payloads, for saving guest-side contents locally.
func (m *ModuleManager) Retrieve(ctx context.Context, instanceID string) ([]resource.Record, error) {
	q := url.Values{}
	q.Set("from_guest", "true")
	q.Set("include_contents", "true")
	resp, err := m.t.Get(ctx, instanceModulesPath(instanceID), q)
	if err != nil {
		return nil, err
	}
	page, err := decodeList(resp, "modules")
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// Query reports the module state on an instance.
func (m *ModuleManager) Query(ctx context.Context, instanceID string) ([]resource.Record, error) {
	q := url.Values{}
	q.Set("from_guest", "true")
	resp, err := m.t.Get(ctx, instanceModulesPath(instanceID), q)
	if err != nil {
		return nil, err
	}
	page, err := decodeList(resp, "modules")
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}
