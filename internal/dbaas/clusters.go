package dbaas

import (
	"context"

	"github.com/edvin/dbaas/internal/resource"
)

type ClusterManager struct {
	manager
}

// ClusterInstance describes one member of a cluster for create, grow, and
// shrink requests.
type ClusterInstance struct {
	FlavorRef        string         `json:"flavorRef" validate:"required"`
	Volume           *VolumeSpec    `json:"volume,omitempty"`
	NICs             []NICSpec      `json:"nics,omitempty" validate:"dive"`
	AvailabilityZone string         `json:"availability_zone,omitempty"`
	Type             string         `json:"type,omitempty"`
	RelatedTo        string         `json:"related_to,omitempty"`
	// ID is only meaningful for shrink, which removes existing members.
	ID string `json:"id,omitempty"`
}

// ClusterCreate is the validated input of cluster creation.
type ClusterCreate struct {
	Name          string            `json:"name" validate:"required"`
	Datastore     DatastoreSpec     `json:"datastore" validate:"required"`
	Instances     []ClusterInstance `json:"instances" validate:"required,min=1,dive"`
	Locality      string            `json:"locality,omitempty" validate:"omitempty,oneof=affinity anti-affinity"`
	Configuration string            `json:"configuration,omitempty"`
}

func (m *ClusterManager) Create(ctx context.Context, req ClusterCreate) (resource.Record, error) {
	if err := preflight(req); err != nil {
		return nil, err
	}
	return m.create(ctx, map[string]any{"cluster": req})
}

func (m *ClusterManager) List(ctx context.Context, limit int, marker string) (*resource.Paginated, error) {
	return m.list(ctx, "/clusters", listQuery(limit, marker, nil))
}

func (m *ClusterManager) Get(ctx context.Context, id string) (resource.Record, error) {
	return m.get(ctx, id)
}

func (m *ClusterManager) Find(ctx context.Context, idOrName string) (resource.Record, error) {
	return m.find(ctx, idOrName)
}

func (m *ClusterManager) Delete(ctx context.Context, id string) error {
	return m.delete(ctx, id)
}

// ForceDelete resets the cluster task and then deletes it, for clusters
// wedged mid-operation.
func (m *ClusterManager) ForceDelete(ctx context.Context, id string) error {
	if err := m.ResetStatus(ctx, id); err != nil {
		return err
	}
	return m.delete(ctx, id)
}

// Grow adds members to the cluster.
func (m *ClusterManager) Grow(ctx context.Context, id string, instances []ClusterInstance) error {
	for _, inst := range instances {
		if err := preflight(inst); err != nil {
			return err
		}
	}
	_, err := m.action(ctx, id, map[string]any{"grow": instances})
	return err
}

// Shrink removes the named members from the cluster.
func (m *ClusterManager) Shrink(ctx context.Context, id string, instanceIDs []string) error {
	members := make([]map[string]string, 0, len(instanceIDs))
	for _, mid := range instanceIDs {
		if err := requireID(mid, "instance id"); err != nil {
			return err
		}
		members = append(members, map[string]string{"id": mid})
	}
	_, err := m.action(ctx, id, map[string]any{"shrink": members})
	return err
}

// Upgrade moves every member to another datastore version.
func (m *ClusterManager) Upgrade(ctx context.Context, id, datastoreVersion string) error {
	if err := requireID(datastoreVersion, "datastore version"); err != nil {
		return err
	}
	_, err := m.action(ctx, id, map[string]any{"upgrade": map[string]any{"cluster_version": datastoreVersion}})
	return err
}

// ResetStatus forces the cluster task back to NONE. Admin only.
func (m *ClusterManager) ResetStatus(ctx context.Context, id string) error {
	_, err := m.action(ctx, id, map[string]any{"reset-status": map[string]any{}})
	return err
}

// Instances returns the cluster's member records from its own envelope.
func (m *ClusterManager) Instances(ctx context.Context, id string) ([]resource.Record, error) {
	rec, err := m.get(ctx, id)
	if err != nil {
		return nil, err
	}
	raw, ok := rec["instances"].([]any)
	if !ok {
		return nil, nil
	}
	members := make([]resource.Record, 0, len(raw))
	for _, item := range raw {
		if rm, ok := item.(map[string]any); ok {
			members = append(members, resource.Record(rm))
		}
	}
	return members, nil
}
