package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/edvin/dbaas/internal/dbaas"
)

var instanceColumns = []string{"id", "name", "status", "flavor", "volume"}

// decodeDescriptor loads a YAML descriptor file into a create request. The
// request structs carry json tags only, so the document goes through a JSON
// round trip.
func decodeDescriptor(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read descriptor: %w", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse descriptor %s: %w", path, err)
	}
	buf, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("convert descriptor: %w", err)
	}
	if err := json.Unmarshal(buf, v); err != nil {
		return fmt.Errorf("map descriptor %s: %w", path, err)
	}
	return nil
}

// pageFlags binds the shared pagination flags of list commands.
func pageFlags(fs *flag.FlagSet, limit *int, marker *string) {
	fs.IntVar(limit, "limit", 0, "page size")
	fs.StringVar(marker, "marker", "", "resume after this id")
}

func init() {
	var (
		file         string
		size         int
		volumeType   string
		datastore    string
		dsVersion    string
		az           string
		nicNet       string
		nicIP        string
		configGroup  string
		replicaOf    string
		replicaCount int
		locality     string
		restoreFrom  string
		modules      string
		isPublic     bool
		allowedCIDRs string
	)
	register(&Command{
		Name:    "instance-create",
		Usage:   "<name> <flavor> [flags]",
		Summary: "Create a database instance",
		Flags: func(fs *flag.FlagSet) {
			fs.StringVar(&file, "f", "", "YAML descriptor file, positional args optional")
			fs.IntVar(&size, "size", 0, "volume size in GB")
			fs.StringVar(&volumeType, "volume-type", "", "volume type")
			fs.StringVar(&datastore, "datastore", "", "datastore type")
			fs.StringVar(&dsVersion, "datastore-version", "", "datastore version")
			fs.StringVar(&az, "availability-zone", "", "availability zone")
			fs.StringVar(&nicNet, "nic-net-id", "", "network id to attach")
			fs.StringVar(&nicIP, "nic-fixed-ip", "", "fixed v4 address on the nic")
			fs.StringVar(&configGroup, "configuration", "", "configuration group id")
			fs.StringVar(&replicaOf, "replica-of", "", "source instance id to replicate")
			fs.IntVar(&replicaCount, "replica-count", 0, "number of replicas to create")
			fs.StringVar(&locality, "locality", "", "affinity or anti-affinity")
			fs.StringVar(&restoreFrom, "backup", "", "backup id to restore from")
			fs.StringVar(&modules, "modules", "", "comma-separated module ids to apply")
			fs.BoolVar(&isPublic, "is-public", false, "expose the instance publicly")
			fs.StringVar(&allowedCIDRs, "allowed-cidrs", "", "comma-separated CIDRs allowed to connect")
		},
		Run: func(ctx context.Context, env *Env, args []string) error {
			var req dbaas.InstanceCreate
			if file != "" {
				if err := decodeDescriptor(file, &req); err != nil {
					return err
				}
			}
			if len(args) > 0 {
				req.Name = args[0]
			}
			if len(args) > 1 {
				req.FlavorRef = args[1]
			}
			if size > 0 {
				req.Volume = &dbaas.VolumeSpec{Size: size, Type: volumeType}
			}
			if datastore != "" {
				req.Datastore = &dbaas.DatastoreSpec{Type: datastore, Version: dsVersion}
			}
			if az != "" {
				req.AvailabilityZone = az
			}
			if nicNet != "" {
				req.NICs = append(req.NICs, dbaas.NICSpec{NetID: nicNet, FixedIP: nicIP})
			}
			if configGroup != "" {
				req.Configuration = configGroup
			}
			if replicaOf != "" {
				req.ReplicaOf = replicaOf
			}
			if replicaCount > 0 {
				req.ReplicaCount = replicaCount
			}
			if locality != "" {
				req.Locality = locality
			}
			if restoreFrom != "" {
				req.RestorePoint = &dbaas.RestorePoint{BackupRef: restoreFrom}
			}
			for _, id := range splitCSV(modules) {
				req.Modules = append(req.Modules, dbaas.ModuleRef{ID: id})
			}
			if isPublic || allowedCIDRs != "" {
				req.Access = &dbaas.AccessSpec{IsPublic: isPublic, AllowedCIDRs: splitCSV(allowedCIDRs)}
			}

			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			rec, err := client.Instances.Create(ctx, req)
			if err != nil {
				return err
			}
			return env.Printer.Record(rec)
		},
	})

	var (
		includeClustered bool
		listLimit        int
		listMarker       string
	)
	register(&Command{
		Name:    "instance-list",
		Usage:   "[flags]",
		Summary: "List database instances",
		Flags: func(fs *flag.FlagSet) {
			pageFlags(fs, &listLimit, &listMarker)
			fs.BoolVar(&includeClustered, "include-clustered", false, "include cluster members")
		},
		Run: func(ctx context.Context, env *Env, args []string) error {
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			page, err := client.Instances.List(ctx, listLimit, listMarker, includeClustered)
			if err != nil {
				return err
			}
			return env.Printer.List(instanceColumns, page.Items)
		},
	})

	register(&Command{
		Name:    "instance-show",
		Usage:   "<instance>",
		Summary: "Show one instance by id or name",
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 1 {
				return usagef("instance-show needs exactly one instance id or name")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			rec, err := client.Instances.Find(ctx, args[0])
			if err != nil {
				return err
			}
			return env.Printer.Record(rec)
		},
	})

	register(&Command{
		Name:    "instance-delete",
		Usage:   "<instance>",
		Summary: "Delete an instance",
		Run: singleIDAction("instance-delete", func(ctx context.Context, c *dbaas.Client, id string) error {
			return c.Instances.Delete(ctx, id)
		}, "Request to delete instance %s accepted."),
	})

	register(&Command{
		Name:    "instance-force-delete",
		Usage:   "<instance>",
		Summary: "Reset the instance task status and delete it",
		Run: singleIDAction("instance-force-delete", func(ctx context.Context, c *dbaas.Client, id string) error {
			return c.Mgmt.ForceDelete(ctx, id)
		}, "Request to force-delete instance %s accepted."),
	})

	register(&Command{
		Name:    "instance-restart",
		Usage:   "<instance>",
		Summary: "Restart the database service on an instance",
		Run: singleIDAction("instance-restart", func(ctx context.Context, c *dbaas.Client, id string) error {
			return c.Instances.Restart(ctx, id)
		}, "Request to restart instance %s accepted."),
	})

	register(&Command{
		Name:    "instance-reboot",
		Usage:   "<instance>",
		Summary: "Reboot the instance server",
		Run: singleIDAction("instance-reboot", func(ctx context.Context, c *dbaas.Client, id string) error {
			return c.Instances.Reboot(ctx, id)
		}, "Request to reboot instance %s accepted."),
	})

	register(&Command{
		Name:    "instance-resize-volume",
		Usage:   "<instance> <size>",
		Summary: "Grow the instance volume to the given size in GB",
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 2 {
				return usagef("instance-resize-volume needs an instance and a size")
			}
			var newSize int
			if _, err := fmt.Sscanf(args[1], "%d", &newSize); err != nil {
				return usagef("invalid size %q", args[1])
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			if err := client.Instances.ResizeVolume(ctx, args[0], newSize); err != nil {
				return err
			}
			env.Printer.Confirm("Request to resize volume of instance %s accepted.", args[0])
			return nil
		},
	})

	register(&Command{
		Name:    "instance-resize-flavor",
		Usage:   "<instance> <flavor>",
		Summary: "Move the instance to a different flavor",
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 2 {
				return usagef("instance-resize-flavor needs an instance and a flavor")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			if err := client.Instances.ResizeFlavor(ctx, args[0], args[1]); err != nil {
				return err
			}
			env.Printer.Confirm("Request to resize instance %s accepted.", args[0])
			return nil
		},
	})

	register(&Command{
		Name:    "instance-promote",
		Usage:   "<instance>",
		Summary: "Promote a replica to replica source",
		Run: singleIDAction("instance-promote", func(ctx context.Context, c *dbaas.Client, id string) error {
			return c.Instances.PromoteToReplicaSource(ctx, id)
		}, "Request to promote instance %s accepted."),
	})

	register(&Command{
		Name:    "instance-eject",
		Usage:   "<instance>",
		Summary: "Eject a failed replica source from its set",
		Run: singleIDAction("instance-eject", func(ctx context.Context, c *dbaas.Client, id string) error {
			return c.Instances.EjectReplicaSource(ctx, id)
		}, "Request to eject replica source %s accepted."),
	})

	register(&Command{
		Name:    "instance-reset-status",
		Usage:   "<instance>",
		Summary: "Force the instance status out of a stuck state",
		Run: singleIDAction("instance-reset-status", func(ctx context.Context, c *dbaas.Client, id string) error {
			return c.Instances.ResetStatus(ctx, id)
		}, "Request to reset status of instance %s accepted."),
	})

	register(&Command{
		Name:    "instance-upgrade",
		Usage:   "<instance> <datastore-version>",
		Summary: "Upgrade the instance to a newer datastore version",
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 2 {
				return usagef("instance-upgrade needs an instance and a datastore version")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			if err := client.Instances.Upgrade(ctx, args[0], args[1]); err != nil {
				return err
			}
			env.Printer.Confirm("Request to upgrade instance %s accepted.", args[0])
			return nil
		},
	})

	var (
		newName      string
		detachSource bool
	)
	register(&Command{
		Name:    "instance-update",
		Usage:   "<instance> [flags]",
		Summary: "Rename an instance or detach it from its replica source",
		Flags: func(fs *flag.FlagSet) {
			fs.StringVar(&newName, "name", "", "new instance name")
			fs.BoolVar(&detachSource, "detach-replica-source", false, "detach from the replica source")
		},
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 1 {
				return usagef("instance-update needs exactly one instance")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			edit := dbaas.InstanceEdit{Name: newName, DetachReplicaSource: detachSource}
			if err := client.Instances.Edit(ctx, args[0], edit); err != nil {
				return err
			}
			env.Printer.Confirm("Instance %s updated.", args[0])
			return nil
		},
	})

	var (
		waitInterval string
		waitStates   string
	)
	register(&Command{
		Name:    "instance-wait",
		Usage:   "<instance> [flags]",
		Summary: "Block until the instance reaches a desired status",
		Flags: func(fs *flag.FlagSet) {
			fs.StringVar(&waitStates, "status", dbaas.StatusActive, "comma-separated statuses to wait for")
			fs.StringVar(&waitInterval, "interval", "5s", "poll interval")
		},
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 1 {
				return usagef("instance-wait needs exactly one instance")
			}
			interval, err := parseDuration(waitInterval)
			if err != nil {
				return usagef("%s", err)
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			rec, err := client.Instances.WaitFor(ctx, args[0], splitCSV(waitStates), interval,
				func(status string) {
					env.Printer.Confirm("instance %s is %s", args[0], status)
				})
			if err != nil {
				return err
			}
			return env.Printer.Record(rec)
		},
	})

	var (
		backupLimit  int
		backupMarker string
	)
	register(&Command{
		Name:    "instance-backup-list",
		Usage:   "<instance> [flags]",
		Summary: "List backups taken from an instance",
		Flags: func(fs *flag.FlagSet) {
			pageFlags(fs, &backupLimit, &backupMarker)
		},
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 1 {
				return usagef("instance-backup-list needs exactly one instance")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			page, err := client.Instances.Backups(ctx, args[0], backupLimit, backupMarker)
			if err != nil {
				return err
			}
			return env.Printer.List(backupColumns, page.Items)
		},
	})

	register(&Command{
		Name:    "instance-configuration",
		Usage:   "<instance>",
		Summary: "Show the effective configuration of an instance",
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 1 {
				return usagef("instance-configuration needs exactly one instance")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			rec, err := client.Instances.Configuration(ctx, args[0])
			if err != nil {
				return err
			}
			return env.Printer.Record(rec)
		},
	})
}

// singleIDAction builds the Run of a command that takes exactly one id and
// fires one imperative call.
func singleIDAction(name string, call func(ctx context.Context, c *dbaas.Client, id string) error, confirm string) func(context.Context, *Env, []string) error {
	return func(ctx context.Context, env *Env, args []string) error {
		if len(args) != 1 {
			return usagef("%s needs exactly one argument", name)
		}
		client, err := env.Client(ctx)
		if err != nil {
			return err
		}
		if err := call(ctx, client, args[0]); err != nil {
			return err
		}
		env.Printer.Confirm(confirm, args[0])
		return nil
	}
}
