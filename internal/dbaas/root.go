package dbaas

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/edvin/dbaas/internal/resource"
	"github.com/edvin/dbaas/internal/transport"
)

// SubjectKind tags what a root operation acts on.
type SubjectKind string

const (
	SubjectInstance SubjectKind = "instance"
	SubjectCluster  SubjectKind = "cluster"
)

// Subject is the resolved target of a root operation: an instance or a
// cluster plus its id.
type Subject struct {
	Kind SubjectKind
	ID   string
}

func (s Subject) rootPath() string {
	return fmt.Sprintf("/%ss/%s/root", s.Kind, url.PathEscape(s.ID))
}

// RootManager enables, shows, and disables root access on instances and
// clusters.
type RootManager struct {
	t         *transport.Client
	instances *InstanceManager
	clusters  *ClusterManager
}

// ResolveSubject resolves an id-or-name first against instances, then
// against clusters. When neither matches, the error notes both attempts.
func (m *RootManager) ResolveSubject(ctx context.Context, idOrName string) (Subject, error) {
	inst, instErr := m.instances.Find(ctx, idOrName)
	if instErr == nil {
		return Subject{Kind: SubjectInstance, ID: inst.ID()}, nil
	}
	if !transport.IsKind(instErr, transport.KindNotFound) {
		return Subject{}, instErr
	}

	cluster, clusterErr := m.clusters.Find(ctx, idOrName)
	if clusterErr == nil {
		return Subject{Kind: SubjectCluster, ID: cluster.ID()}, nil
	}
	if !transport.IsKind(clusterErr, transport.KindNotFound) {
		return Subject{}, clusterErr
	}

	return Subject{}, &transport.Error{Kind: transport.KindNotFound, Status: http.StatusNotFound,
		Message: fmt.Sprintf("%q matches no instance (%v) and no cluster (%v)", idOrName, instErr, clusterErr)}
}

// Enable turns on root access. With an empty password the server generates
// one and returns it exactly once in the response.
func (m *RootManager) Enable(ctx context.Context, subject Subject, password string) (resource.Record, error) {
	var body any
	if password != "" {
		body = map[string]any{"password": password}
	}
	resp, err := m.t.Post(ctx, subject.rootPath(), body)
	if err != nil {
		return nil, err
	}
	return decodeOne(resp, "user")
}

// Show reports whether root has ever been enabled on the subject.
func (m *RootManager) Show(ctx context.Context, subject Subject) (bool, error) {
	resp, err := m.t.Get(ctx, subject.rootPath(), nil)
	if err != nil {
		return false, err
	}
	var envelope struct {
		RootEnabled bool `json:"rootEnabled"`
	}
	if err := resp.Decode(&envelope); err != nil {
		return false, err
	}
	return envelope.RootEnabled, nil
}

// Disable removes root access. Instances only.
func (m *RootManager) Disable(ctx context.Context, subject Subject) error {
	if subject.Kind != SubjectInstance {
		return transport.NewError(transport.KindValidationError,
			"root can only be disabled on instances, not %ss", subject.Kind)
	}
	_, err := m.t.Delete(ctx, subject.rootPath())
	return err
}
