package dbaas

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/edvin/dbaas/internal/resource"
	"github.com/edvin/dbaas/internal/transport"
)

// DefaultUserHost is assumed when a user is addressed without a host.
const DefaultUserHost = "%"

// UserManager administers users and their database grants within a single
// instance. Users are identified by (name, host).
type UserManager struct {
	manager
}

func usersPath(instanceID string) string {
	return fmt.Sprintf("/instances/%s/users", url.PathEscape(instanceID))
}

// EncodeUserRef builds the `name@host` path segment. Dots in the name are
// encoded as %2e and the separator as %40, so servers that do not normalize
// path segments still round-trip the identity. Ordinary hosts travel
// verbatim; the wildcard default needs its percent escaped.
func EncodeUserRef(name, host string) string {
	if host == "" {
		host = DefaultUserHost
	}
	encoded := strings.ReplaceAll(url.PathEscape(name), ".", "%2e")
	return encoded + "%40" + url.PathEscape(host)
}

// DecodeUserRef is the inverse of EncodeUserRef.
func DecodeUserRef(segment string) (name, host string, err error) {
	i := strings.LastIndex(segment, "%40")
	if i < 0 {
		return "", "", transport.NewError(transport.KindValidationError,
			"user reference %q carries no host separator", segment)
	}
	name, err = url.PathUnescape(segment[:i])
	if err != nil {
		return "", "", transport.NewError(transport.KindValidationError,
			"undecodable user reference %q: %v", segment, err)
	}
	host, err = url.PathUnescape(segment[i+len("%40"):])
	if err != nil {
		return "", "", transport.NewError(transport.KindValidationError,
			"undecodable user reference %q: %v", segment, err)
	}
	return name, host, nil
}

func (m *UserManager) userPath(instanceID, name, host string) string {
	return usersPath(instanceID) + "/" + EncodeUserRef(name, host)
}

// Create adds one or more users to the instance.
func (m *UserManager) Create(ctx context.Context, instanceID string, users []UserSpec) error {
	if err := requireID(instanceID, "instance id"); err != nil {
		return err
	}
	for _, u := range users {
		if err := preflight(u); err != nil {
			return err
		}
	}
	_, err := m.t.Post(ctx, usersPath(instanceID), map[string]any{"users": users})
	return err
}

func (m *UserManager) List(ctx context.Context, instanceID string, limit int, marker string) (*resource.Paginated, error) {
	return m.list(ctx, usersPath(instanceID), listQuery(limit, marker, nil))
}

func (m *UserManager) Get(ctx context.Context, instanceID, name, host string) (resource.Record, error) {
	if err := requireID(name, "user name"); err != nil {
		return nil, err
	}
	resp, err := m.t.Get(ctx, m.userPath(instanceID, name, host), nil)
	if err != nil {
		return nil, err
	}
	return decodeOne(resp, "user")
}

func (m *UserManager) Delete(ctx context.Context, instanceID, name, host string) error {
	if err := requireID(name, "user name"); err != nil {
		return err
	}
	_, err := m.t.Delete(ctx, m.userPath(instanceID, name, host))
	return err
}

// UserUpdate changes a user's name, host, or password in place.
type UserUpdate struct {
	Name     string `json:"name,omitempty"`
	Host     string `json:"host,omitempty"`
	Password string `json:"password,omitempty"`
}

func (m *UserManager) UpdateAttributes(ctx context.Context, instanceID, name, host string, update UserUpdate) error {
	if err := requireID(name, "user name"); err != nil {
		return err
	}
	_, err := m.t.Put(ctx, m.userPath(instanceID, name, host), map[string]any{"user": update})
	return err
}

// ListAccess returns the databases the user is granted on.
func (m *UserManager) ListAccess(ctx context.Context, instanceID, name, host string) ([]resource.Record, error) {
	if err := requireID(name, "user name"); err != nil {
		return nil, err
	}
	resp, err := m.t.Get(ctx, m.userPath(instanceID, name, host)+"/databases", nil)
	if err != nil {
		return nil, err
	}
	page, err := decodeList(resp, "databases")
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// Grant gives the user access to the named databases.
func (m *UserManager) Grant(ctx context.Context, instanceID, name, host string, databases []string) error {
	if err := requireID(name, "user name"); err != nil {
		return err
	}
	if len(databases) == 0 {
		return transport.NewError(transport.KindValidationError, "no databases to grant")
	}
	body := make([]map[string]string, 0, len(databases))
	for _, db := range databases {
		body = append(body, map[string]string{"name": db})
	}
	_, err := m.t.Put(ctx, m.userPath(instanceID, name, host)+"/databases", map[string]any{"databases": body})
	return err
}

// Revoke removes the user's access to one database.
func (m *UserManager) Revoke(ctx context.Context, instanceID, name, host, database string) error {
	if err := requireID(name, "user name"); err != nil {
		return err
	}
	if err := requireID(database, "database name"); err != nil {
		return err
	}
	_, err := m.t.Delete(ctx, m.userPath(instanceID, name, host)+"/databases/"+url.PathEscape(database))
	return err
}
