package dbaas

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/edvin/dbaas/internal/resource"
	"github.com/edvin/dbaas/internal/transport"
)

// Instance status values as the server reports them. The status machine is
// server-owned; the client only observes.
const (
	StatusBuild           = "BUILD"
	StatusActive          = "ACTIVE"
	StatusReboot          = "REBOOT"
	StatusResize          = "RESIZE"
	StatusPromoting       = "PROMOTING"
	StatusEjecting        = "EJECTING"
	StatusLogging         = "LOGGING"
	StatusRestartRequired = "RESTART_REQUIRED"
	StatusBlocked         = "BLOCKED"
	StatusShutdown        = "SHUTDOWN"
	StatusFailed          = "FAILED"
	StatusError           = "ERROR"
)

const (
	LocalityAffinity     = "affinity"
	LocalityAntiAffinity = "anti-affinity"
)

type InstanceManager struct {
	manager
}

// VolumeSpec is the block storage request attached to an instance.
type VolumeSpec struct {
	Size int    `json:"size" validate:"required,gt=0"`
	Type string `json:"type,omitempty"`
}

// DatastoreSpec names the engine family and release an instance runs.
type DatastoreSpec struct {
	Type    string `json:"type" validate:"required"`
	Version string `json:"version,omitempty"`
}

// NICSpec attaches the instance to a network. The net id is mandatory.
type NICSpec struct {
	NetID   string `json:"net-id" validate:"required"`
	FixedIP string `json:"v4-fixed-ip,omitempty"`
}

// DatabaseSpec seeds a database at instance creation.
type DatabaseSpec struct {
	Name         string `json:"name" validate:"required"`
	CharacterSet string `json:"character_set,omitempty"`
	Collate      string `json:"collate,omitempty"`
}

// UserSpec seeds a user at instance creation.
type UserSpec struct {
	Name      string         `json:"name" validate:"required"`
	Password  string         `json:"password,omitempty"`
	Host      string         `json:"host,omitempty"`
	Databases []DatabaseSpec `json:"databases,omitempty"`
}

// RestorePoint restores the new instance from a backup.
type RestorePoint struct {
	BackupRef string `json:"backupRef" validate:"required"`
}

// ModuleRef applies a module at instance creation.
type ModuleRef struct {
	ID string `json:"id" validate:"required"`
}

// AccessSpec controls instance reachability.
type AccessSpec struct {
	IsPublic     bool     `json:"is_public"`
	AllowedCIDRs []string `json:"allowed_cidrs,omitempty"`
}

// InstanceCreate is the validated input of the create operation.
type InstanceCreate struct {
	Name             string         `json:"name" validate:"required"`
	FlavorRef        string         `json:"flavorRef" validate:"required"`
	Volume           *VolumeSpec    `json:"volume,omitempty"`
	Databases        []DatabaseSpec `json:"databases,omitempty" validate:"dive"`
	Users            []UserSpec     `json:"users,omitempty" validate:"dive"`
	RestorePoint     *RestorePoint  `json:"restorePoint,omitempty"`
	AvailabilityZone string         `json:"availability_zone,omitempty"`
	Datastore        *DatastoreSpec `json:"datastore,omitempty"`
	NICs             []NICSpec      `json:"nics,omitempty" validate:"dive"`
	Configuration    string         `json:"configuration,omitempty"`
	ReplicaOf        string         `json:"replica_of,omitempty"`
	ReplicaCount     int            `json:"replica_count,omitempty" validate:"omitempty,gt=0"`
	Modules          []ModuleRef    `json:"modules,omitempty" validate:"dive"`
	Locality         string         `json:"locality,omitempty" validate:"omitempty,oneof=affinity anti-affinity"`
	Access           *AccessSpec    `json:"access,omitempty"`
}

// Create provisions a new instance. Inputs are validated locally before any
// HTTP call; the created instance usually comes back in BUILD.
func (m *InstanceManager) Create(ctx context.Context, req InstanceCreate) (resource.Record, error) {
	if err := preflight(req); err != nil {
		return nil, err
	}
	if req.Volume != nil {
		if err := preflight(*req.Volume); err != nil {
			return nil, err
		}
	}
	// Replicas inherit placement from their source; the two are exclusive.
	if req.Locality != "" && req.ReplicaOf != "" {
		return nil, transport.NewError(transport.KindValidationError,
			"locality and replica_of are mutually exclusive")
	}
	return m.create(ctx, map[string]any{"instance": req})
}

// List returns one page of instances. Clustered members are excluded unless
// includeClustered is set.
func (m *InstanceManager) List(ctx context.Context, limit int, marker string, includeClustered bool) (*resource.Paginated, error) {
	filters := url.Values{}
	filters.Set("include_clustered", fmt.Sprintf("%t", includeClustered))
	return m.list(ctx, "/instances", listQuery(limit, marker, filters))
}

func (m *InstanceManager) Get(ctx context.Context, id string) (resource.Record, error) {
	return m.get(ctx, id)
}

// Find resolves an instance by id, name, or human id.
func (m *InstanceManager) Find(ctx context.Context, idOrName string) (resource.Record, error) {
	return m.find(ctx, idOrName)
}

func (m *InstanceManager) Delete(ctx context.Context, id string) error {
	return m.delete(ctx, id)
}

// ResizeVolume grows the instance volume to size GB. Non-positive sizes are
// rejected locally and never issue an HTTP call.
func (m *InstanceManager) ResizeVolume(ctx context.Context, id string, size int) error {
	if size <= 0 {
		return transport.NewError(transport.KindValidationError,
			"volume size must be a positive integer, got %d", size)
	}
	_, err := m.action(ctx, id, map[string]any{"resize": map[string]any{"volume": map[string]any{"size": size}}})
	return err
}

func (m *InstanceManager) ResizeFlavor(ctx context.Context, id, flavorRef string) error {
	if err := requireID(flavorRef, "flavor reference"); err != nil {
		return err
	}
	_, err := m.action(ctx, id, map[string]any{"resize": map[string]any{"flavorRef": flavorRef}})
	return err
}

func (m *InstanceManager) Restart(ctx context.Context, id string) error {
	_, err := m.action(ctx, id, map[string]any{"restart": map[string]any{}})
	return err
}

func (m *InstanceManager) Reboot(ctx context.Context, id string) error {
	_, err := m.action(ctx, id, map[string]any{"reboot": map[string]any{}})
	return err
}

func (m *InstanceManager) PromoteToReplicaSource(ctx context.Context, id string) error {
	_, err := m.action(ctx, id, map[string]any{"promote_to_replica_source": map[string]any{}})
	return err
}

func (m *InstanceManager) EjectReplicaSource(ctx context.Context, id string) error {
	_, err := m.action(ctx, id, map[string]any{"eject_replica_source": map[string]any{}})
	return err
}

// ResetStatus forces the task status back to NONE. Admin only.
func (m *InstanceManager) ResetStatus(ctx context.Context, id string) error {
	_, err := m.action(ctx, id, map[string]any{"reset_status": map[string]any{}})
	return err
}

// Upgrade moves the instance to another datastore version.
func (m *InstanceManager) Upgrade(ctx context.Context, id, datastoreVersion string) error {
	if err := requireID(datastoreVersion, "datastore version"); err != nil {
		return err
	}
	_, err := m.t.Patch(ctx, m.itemPath(id), map[string]any{
		"instance": map[string]any{"datastore_version": datastoreVersion},
	})
	return err
}

// InstanceEdit is the PATCH surface of an instance. Configuration attach and
// detach are mutually exclusive; detaching the replica source nulls out
// replica_of on the server.
type InstanceEdit struct {
	Name                string
	Configuration       string
	RemoveConfiguration bool
	DetachReplicaSource bool
}

func (m *InstanceManager) Edit(ctx context.Context, id string, edit InstanceEdit) error {
	if edit.Configuration != "" && edit.RemoveConfiguration {
		return transport.NewError(transport.KindValidationError,
			"configuration and remove_configuration are mutually exclusive")
	}

	body := map[string]any{}
	if edit.Name != "" {
		body["name"] = edit.Name
	}
	if edit.Configuration != "" {
		body["configuration"] = edit.Configuration
	}
	if edit.RemoveConfiguration {
		body["configuration"] = nil
	}
	if edit.DetachReplicaSource {
		body["replica_of"] = nil
	}
	if len(body) == 0 {
		return transport.NewError(transport.KindValidationError, "nothing to edit")
	}

	_, err := m.t.Patch(ctx, m.itemPath(id), map[string]any{"instance": body})
	return err
}

// Update replaces the mutable attributes in one PUT.
func (m *InstanceManager) Update(ctx context.Context, id string, body map[string]any) error {
	_, err := m.t.Put(ctx, m.itemPath(id), map[string]any{"instance": body})
	return err
}

// Backups lists the backups taken of one instance.
func (m *InstanceManager) Backups(ctx context.Context, id string, limit int, marker string) (*resource.Paginated, error) {
	resp, err := m.t.Get(ctx, m.itemPath(id)+"/backups", listQuery(limit, marker, nil))
	if err != nil {
		return nil, err
	}
	return decodeList(resp, "backups")
}

// Configuration returns the effective configuration of the instance.
func (m *InstanceManager) Configuration(ctx context.Context, id string) (resource.Record, error) {
	resp, err := m.t.Get(ctx, m.itemPath(id)+"/configuration", nil)
	if err != nil {
		return nil, err
	}
	return decodeOne(resp, "instance")
}

// ProgressFunc observes each poll of WaitFor.
type ProgressFunc func(status string)

// WaitFor polls the instance until its status reaches one of the desired
// states. FAILED and ERROR abort the wait unless explicitly desired.
func (m *InstanceManager) WaitFor(ctx context.Context, id string, desired []string, interval time.Duration, progress ProgressFunc) (resource.Record, error) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	want := map[string]bool{}
	for _, s := range desired {
		want[s] = true
	}

	for {
		rec, err := m.get(ctx, id)
		if err != nil {
			return nil, err
		}
		status := rec.String("status")
		if progress != nil {
			progress(status)
		}
		if want[status] {
			return rec, nil
		}
		if status == StatusFailed || status == StatusError {
			return rec, transport.NewError(transport.KindConflict,
				"instance %s reached terminal status %s while waiting for %v", id, status, desired)
		}

		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return nil, &transport.Error{Kind: transport.KindTimeout,
				Message: fmt.Sprintf("gave up waiting for instance %s to reach %v", id, desired)}
		}
	}
}
