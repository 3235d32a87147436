package cli

import (
	"context"
	"flag"

	"github.com/edvin/dbaas/internal/dbaas"
)

var clusterColumns = []string{"id", "name", "task", "datastore"}

func init() {
	var (
		file      string
		datastore string
		dsVersion string
		flavor    string
		size      int
		members   int
	)
	register(&Command{
		Name:    "cluster-create",
		Usage:   "<name> [flags]",
		Summary: "Create a database cluster",
		Flags: func(fs *flag.FlagSet) {
			fs.StringVar(&file, "f", "", "YAML descriptor file, flags optional")
			fs.StringVar(&datastore, "datastore", "", "datastore type")
			fs.StringVar(&dsVersion, "datastore-version", "", "datastore version")
			fs.StringVar(&flavor, "flavor", "", "flavor of each member")
			fs.IntVar(&size, "size", 0, "volume size in GB for each member")
			fs.IntVar(&members, "members", 3, "number of members when built from flags")
		},
		Run: func(ctx context.Context, env *Env, args []string) error {
			var req dbaas.ClusterCreate
			if file != "" {
				if err := decodeDescriptor(file, &req); err != nil {
					return err
				}
			}
			if len(args) > 0 {
				req.Name = args[0]
			}
			if datastore != "" {
				req.Datastore = dbaas.DatastoreSpec{Type: datastore, Version: dsVersion}
			}
			if flavor != "" && len(req.Instances) == 0 {
				for i := 0; i < members; i++ {
					member := dbaas.ClusterInstance{FlavorRef: flavor}
					if size > 0 {
						member.Volume = &dbaas.VolumeSpec{Size: size}
					}
					req.Instances = append(req.Instances, member)
				}
			}

			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			rec, err := client.Clusters.Create(ctx, req)
			if err != nil {
				return err
			}
			return env.Printer.Record(rec)
		},
	})

	var (
		listLimit  int
		listMarker string
	)
	register(&Command{
		Name:    "cluster-list",
		Usage:   "[flags]",
		Summary: "List database clusters",
		Flags: func(fs *flag.FlagSet) {
			pageFlags(fs, &listLimit, &listMarker)
		},
		Run: func(ctx context.Context, env *Env, args []string) error {
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			page, err := client.Clusters.List(ctx, listLimit, listMarker)
			if err != nil {
				return err
			}
			return env.Printer.List(clusterColumns, page.Items)
		},
	})

	register(&Command{
		Name:    "cluster-show",
		Usage:   "<cluster>",
		Summary: "Show one cluster by id or name",
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 1 {
				return usagef("cluster-show needs exactly one cluster id or name")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			rec, err := client.Clusters.Find(ctx, args[0])
			if err != nil {
				return err
			}
			return env.Printer.Record(rec)
		},
	})

	register(&Command{
		Name:    "cluster-delete",
		Usage:   "<cluster>",
		Summary: "Delete a cluster",
		Run: singleIDAction("cluster-delete", func(ctx context.Context, c *dbaas.Client, id string) error {
			return c.Clusters.Delete(ctx, id)
		}, "Request to delete cluster %s accepted."),
	})

	register(&Command{
		Name:    "cluster-force-delete",
		Usage:   "<cluster>",
		Summary: "Reset the cluster task status and delete it",
		Run: singleIDAction("cluster-force-delete", func(ctx context.Context, c *dbaas.Client, id string) error {
			return c.Clusters.ForceDelete(ctx, id)
		}, "Request to force-delete cluster %s accepted."),
	})

	var (
		growFlavor string
		growSize   int
		growCount  int
		growType   string
	)
	register(&Command{
		Name:    "cluster-grow",
		Usage:   "<cluster> [flags]",
		Summary: "Add members to a cluster",
		Flags: func(fs *flag.FlagSet) {
			fs.StringVar(&growFlavor, "flavor", "", "flavor of the new members")
			fs.IntVar(&growSize, "size", 0, "volume size in GB")
			fs.IntVar(&growCount, "count", 1, "how many members to add")
			fs.StringVar(&growType, "type", "", "member type")
		},
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 1 {
				return usagef("cluster-grow needs exactly one cluster")
			}
			if growFlavor == "" {
				return usagef("cluster-grow needs -flavor")
			}
			var members []dbaas.ClusterInstance
			for i := 0; i < growCount; i++ {
				member := dbaas.ClusterInstance{FlavorRef: growFlavor, Type: growType}
				if growSize > 0 {
					member.Volume = &dbaas.VolumeSpec{Size: growSize}
				}
				members = append(members, member)
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			if err := client.Clusters.Grow(ctx, args[0], members); err != nil {
				return err
			}
			env.Printer.Confirm("Request to grow cluster %s accepted.", args[0])
			return nil
		},
	})

	register(&Command{
		Name:    "cluster-shrink",
		Usage:   "<cluster> <member-id> [member-id...]",
		Summary: "Remove members from a cluster",
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) < 2 {
				return usagef("cluster-shrink needs a cluster and at least one member id")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			if err := client.Clusters.Shrink(ctx, args[0], args[1:]); err != nil {
				return err
			}
			env.Printer.Confirm("Request to shrink cluster %s accepted.", args[0])
			return nil
		},
	})

	register(&Command{
		Name:    "cluster-upgrade",
		Usage:   "<cluster> <datastore-version>",
		Summary: "Upgrade all cluster members to a newer datastore version",
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 2 {
				return usagef("cluster-upgrade needs a cluster and a datastore version")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			if err := client.Clusters.Upgrade(ctx, args[0], args[1]); err != nil {
				return err
			}
			env.Printer.Confirm("Request to upgrade cluster %s accepted.", args[0])
			return nil
		},
	})

	register(&Command{
		Name:    "cluster-reset-status",
		Usage:   "<cluster>",
		Summary: "Force the cluster task out of a stuck state",
		Run: singleIDAction("cluster-reset-status", func(ctx context.Context, c *dbaas.Client, id string) error {
			return c.Clusters.ResetStatus(ctx, id)
		}, "Request to reset status of cluster %s accepted."),
	})

	register(&Command{
		Name:    "cluster-instances",
		Usage:   "<cluster>",
		Summary: "List the members of a cluster",
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 1 {
				return usagef("cluster-instances needs exactly one cluster")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			members, err := client.Clusters.Instances(ctx, args[0])
			if err != nil {
				return err
			}
			return env.Printer.List(instanceColumns, members)
		},
	})
}
