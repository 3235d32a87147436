package dbaas

import (
	"github.com/edvin/dbaas/internal/transport"
)

// Client bundles every resource manager over one shared transport. The
// transport owns the session; one Client means one request in flight at a
// time, so callers wanting parallelism construct independent Clients.
type Client struct {
	Transport *transport.Client

	Instances      *InstanceManager
	Clusters       *ClusterManager
	Databases      *DatabaseManager
	Users          *UserManager
	Backups        *BackupManager
	Configurations *ConfigurationManager
	Datastores     *DatastoreManager
	Flavors        *FlavorManager
	Limits         *LimitManager
	Quotas         *QuotaManager
	Modules        *ModuleManager
	Root           *RootManager
	Logs           *LogManager
	Mgmt           *MgmtManager
}

func New(t *transport.Client) *Client {
	c := &Client{Transport: t}
	c.Instances = &InstanceManager{manager{t: t, collection: "instances", singular: "instance", humanID: true}}
	c.Clusters = &ClusterManager{manager{t: t, collection: "clusters", singular: "cluster", humanID: true}}
	c.Databases = &DatabaseManager{manager{t: t, collection: "databases", singular: "database"}}
	c.Users = &UserManager{manager{t: t, collection: "users", singular: "user"}}
	c.Backups = &BackupManager{manager{t: t, collection: "backups", singular: "backup", humanID: true}}
	c.Configurations = &ConfigurationManager{manager{t: t, collection: "configurations", singular: "configuration", humanID: true}}
	c.Datastores = &DatastoreManager{manager{t: t, collection: "datastores", singular: "datastore"}}
	c.Flavors = &FlavorManager{manager{t: t, collection: "flavors", singular: "flavor"}}
	c.Limits = &LimitManager{manager{t: t, collection: "limits", singular: "limit"}}
	c.Quotas = &QuotaManager{manager{t: t, collection: "quotas", singular: "quota"}}
	c.Modules = &ModuleManager{manager{t: t, collection: "modules", singular: "module"}}
	c.Root = &RootManager{instances: c.Instances, clusters: c.Clusters, t: t}
	c.Logs = &LogManager{manager{t: t, collection: "logs", singular: "log"}}
	c.Mgmt = &MgmtManager{manager{t: t, collection: "mgmt/instances", singular: "instance", plural: "instances"}}
	return c
}
