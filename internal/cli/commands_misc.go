package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/edvin/dbaas/internal/dbaas"
)

var (
	flavorColumns    = []string{"id", "name", "ram", "vcpus", "disk"}
	datastoreColumns = []string{"id", "name"}
	versionColumns   = []string{"id", "name", "datastore"}
	moduleColumns    = []string{"id", "name", "type", "datastore", "datastore_version", "auto_apply"}
	limitColumns     = []string{"verb", "value", "remaining", "unit"}
	quotaColumns     = []string{"resource", "in_use", "limit", "reserved"}
	logColumns       = []string{"name", "type", "status", "published", "pending"}
)

func init() {
	var (
		flavorLimit  int
		flavorMarker string
	)
	register(&Command{
		Name:    "flavor-list",
		Usage:   "[flags]",
		Summary: "List available flavors",
		Flags: func(fs *flag.FlagSet) {
			pageFlags(fs, &flavorLimit, &flavorMarker)
		},
		Run: func(ctx context.Context, env *Env, args []string) error {
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			page, err := client.Flavors.List(ctx, flavorLimit, flavorMarker)
			if err != nil {
				return err
			}
			return env.Printer.List(flavorColumns, page.Items)
		},
	})

	register(&Command{
		Name:    "flavor-show",
		Usage:   "<flavor>",
		Summary: "Show one flavor by id or name",
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 1 {
				return usagef("flavor-show needs exactly one flavor id or name")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			rec, err := client.Flavors.Find(ctx, args[0])
			if err != nil {
				return err
			}
			return env.Printer.Record(rec)
		},
	})

	var (
		dsLimit  int
		dsMarker string
	)
	register(&Command{
		Name:    "datastore-list",
		Usage:   "[flags]",
		Summary: "List datastores",
		Flags: func(fs *flag.FlagSet) {
			pageFlags(fs, &dsLimit, &dsMarker)
		},
		Run: func(ctx context.Context, env *Env, args []string) error {
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			page, err := client.Datastores.List(ctx, dsLimit, dsMarker)
			if err != nil {
				return err
			}
			return env.Printer.List(datastoreColumns, page.Items)
		},
	})

	register(&Command{
		Name:    "datastore-show",
		Usage:   "<datastore>",
		Summary: "Show one datastore by id or name",
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 1 {
				return usagef("datastore-show needs exactly one datastore")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			rec, err := client.Datastores.Find(ctx, args[0])
			if err != nil {
				return err
			}
			return env.Printer.Record(rec)
		},
	})

	var (
		verLimit  int
		verMarker string
	)
	register(&Command{
		Name:    "datastore-version-list",
		Usage:   "<datastore> [flags]",
		Summary: "List the versions of a datastore",
		Flags: func(fs *flag.FlagSet) {
			pageFlags(fs, &verLimit, &verMarker)
		},
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 1 {
				return usagef("datastore-version-list needs exactly one datastore")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			page, err := client.Datastores.ListVersions(ctx, args[0], verLimit, verMarker)
			if err != nil {
				return err
			}
			return env.Printer.List(versionColumns, page.Items)
		},
	})

	register(&Command{
		Name:    "datastore-version-show",
		Usage:   "<datastore> <version>",
		Summary: "Show one datastore version",
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 2 {
				return usagef("datastore-version-show needs a datastore and a version")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			rec, err := client.Datastores.GetVersion(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return env.Printer.Record(rec)
		},
	})

	register(&Command{
		Name:    "datastore-version-flavor-list",
		Usage:   "<datastore> <version>",
		Summary: "List the flavors a datastore version can run on",
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 2 {
				return usagef("datastore-version-flavor-list needs a datastore and a version")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			page, err := client.Datastores.VersionFlavors(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return env.Printer.List(flavorColumns, page.Items)
		},
	})

	register(&Command{
		Name:    "limit-list",
		Usage:   "",
		Summary: "Show account limits and rate limits",
		Run: func(ctx context.Context, env *Env, args []string) error {
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			limits, err := client.Limits.List(ctx)
			if err != nil {
				return err
			}
			return env.Printer.List(limitColumns, limits)
		},
	})

	register(&Command{
		Name:    "quota-show",
		Usage:   "<tenant-id>",
		Summary: "Show resource quotas of a tenant",
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 1 {
				return usagef("quota-show needs exactly one tenant id")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			quotas, err := client.Quotas.Show(ctx, args[0])
			if err != nil {
				return err
			}
			return env.Printer.List(quotaColumns, quotas)
		},
	})

	register(&Command{
		Name:    "quota-update",
		Usage:   "<tenant-id> <resource=limit...>",
		Summary: "Change resource quotas of a tenant",
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) < 2 {
				return usagef("quota-update needs a tenant id and at least one resource=limit")
			}
			limits := map[string]int{}
			for _, arg := range args[1:] {
				key, raw, ok := strings.Cut(arg, "=")
				if !ok {
					return usagef("expected resource=limit, got %q", arg)
				}
				n, err := strconv.Atoi(raw)
				if err != nil {
					return usagef("invalid limit %q for %s", raw, key)
				}
				limits[key] = n
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			rec, err := client.Quotas.Update(ctx, args[0], limits)
			if err != nil {
				return err
			}
			return env.Printer.Record(rec)
		},
	})

	var (
		modDescription string
		modDatastore   string
		modDSVersion   string
		modAutoApply   bool
		modAllTenants  bool
		modLiveUpdate  bool
		modPriority    bool
	)
	register(&Command{
		Name:    "module-create",
		Usage:   "<name> <type> <file> [flags]",
		Summary: "Create a module from a local file",
		Flags: func(fs *flag.FlagSet) {
			fs.StringVar(&modDescription, "description", "", "module description")
			fs.StringVar(&modDatastore, "datastore", "", "restrict to a datastore")
			fs.StringVar(&modDSVersion, "datastore-version", "", "restrict to a datastore version")
			fs.BoolVar(&modAutoApply, "auto-apply", false, "apply to every new instance")
			fs.BoolVar(&modAllTenants, "all-tenants", false, "admin: visible across tenants")
			fs.BoolVar(&modLiveUpdate, "live-update", false, "reapply on module update")
			fs.BoolVar(&modPriority, "priority", false, "apply before other modules")
		},
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 3 {
				return usagef("module-create needs a name, a type and a file")
			}
			contents, err := os.ReadFile(args[2])
			if err != nil {
				return fmt.Errorf("read module contents: %w", err)
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			rec, err := client.Modules.Create(ctx, dbaas.ModuleCreate{
				Name:             args[0],
				Type:             args[1],
				Contents:         contents,
				Description:      modDescription,
				Datastore:        modDatastore,
				DatastoreVersion: modDSVersion,
				AutoApply:        modAutoApply,
				AllTenants:       modAllTenants,
				LiveUpdate:       modLiveUpdate,
				Priority:         modPriority,
			})
			if err != nil {
				return err
			}
			return env.Printer.Record(rec)
		},
	})

	var (
		modListLimit  int
		modListMarker string
	)
	register(&Command{
		Name:    "module-list",
		Usage:   "[flags]",
		Summary: "List modules",
		Flags: func(fs *flag.FlagSet) {
			pageFlags(fs, &modListLimit, &modListMarker)
		},
		Run: func(ctx context.Context, env *Env, args []string) error {
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			page, err := client.Modules.List(ctx, modListLimit, modListMarker)
			if err != nil {
				return err
			}
			return env.Printer.List(moduleColumns, page.Items)
		},
	})

	register(&Command{
		Name:    "module-show",
		Usage:   "<module>",
		Summary: "Show one module by id or name",
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 1 {
				return usagef("module-show needs exactly one module id or name")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			rec, err := client.Modules.Find(ctx, args[0])
			if err != nil {
				return err
			}
			return env.Printer.Record(rec)
		},
	})

	var (
		updName      string
		updFile      string
		updDesc      string
		updDatastore string
		updDSVersion string
		updAllDS     bool
	)
	register(&Command{
		Name:    "module-update",
		Usage:   "<module> [flags]",
		Summary: "Update a module's contents or binding",
		Flags: func(fs *flag.FlagSet) {
			fs.StringVar(&updName, "name", "", "new module name")
			fs.StringVar(&updFile, "file", "", "new contents file")
			fs.StringVar(&updDesc, "description", "", "new description")
			fs.StringVar(&updDatastore, "datastore", "", "bind to a datastore")
			fs.StringVar(&updDSVersion, "datastore-version", "", "bind to a datastore version")
			fs.BoolVar(&updAllDS, "all-datastores", false, "unbind from any datastore")
		},
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 1 {
				return usagef("module-update needs exactly one module")
			}
			if updAllDS && (updDatastore != "" || updDSVersion != "") {
				return usagef("-all-datastores conflicts with -datastore and -datastore-version")
			}
			update := dbaas.ModuleUpdate{
				Name:             updName,
				Description:      updDesc,
				Datastore:        updDatastore,
				DatastoreVersion: updDSVersion,
			}
			if updAllDS {
				update.Datastore = dbaas.AllDatastores
				update.DatastoreVersion = dbaas.AllDatastores
			}
			if updFile != "" {
				contents, err := os.ReadFile(updFile)
				if err != nil {
					return fmt.Errorf("read module contents: %w", err)
				}
				update.Contents = contents
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			rec, err := client.Modules.Update(ctx, args[0], update)
			if err != nil {
				return err
			}
			return env.Printer.Record(rec)
		},
	})

	register(&Command{
		Name:    "module-delete",
		Usage:   "<module>",
		Summary: "Delete a module",
		Run: singleIDAction("module-delete", func(ctx context.Context, c *dbaas.Client, id string) error {
			return c.Modules.Delete(ctx, id)
		}, "Module %s deleted."),
	})

	var (
		modInstLimit  int
		modInstMarker string
	)
	register(&Command{
		Name:    "module-instances",
		Usage:   "<module> [flags]",
		Summary: "List instances a module is applied to",
		Flags: func(fs *flag.FlagSet) {
			pageFlags(fs, &modInstLimit, &modInstMarker)
		},
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 1 {
				return usagef("module-instances needs exactly one module")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			page, err := client.Modules.Instances(ctx, args[0], modInstLimit, modInstMarker)
			if err != nil {
				return err
			}
			return env.Printer.List([]string{"id", "name"}, page.Items)
		},
	})

	register(&Command{
		Name:    "module-apply",
		Usage:   "<instance> <module> [module...]",
		Summary: "Apply modules to an instance",
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) < 2 {
				return usagef("module-apply needs an instance and at least one module")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			applied, err := client.Modules.Apply(ctx, args[0], args[1:])
			if err != nil {
				return err
			}
			return env.Printer.List([]string{"name", "type", "status", "message"}, applied)
		},
	})

	register(&Command{
		Name:    "module-remove",
		Usage:   "<instance> <module>",
		Summary: "Remove a module from an instance",
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 2 {
				return usagef("module-remove needs an instance and a module")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			if err := client.Modules.Remove(ctx, args[0], args[1]); err != nil {
				return err
			}
			env.Printer.Confirm("Module %s removed from instance %s.", args[1], args[0])
			return nil
		},
	})

	register(&Command{
		Name:    "module-query",
		Usage:   "<instance>",
		Summary: "Show the module state of an instance",
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 1 {
				return usagef("module-query needs exactly one instance")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			state, err := client.Modules.Query(ctx, args[0])
			if err != nil {
				return err
			}
			return env.Printer.List([]string{"name", "type", "status", "message", "updated"}, state)
		},
	})

	var retrieveDir string
	register(&Command{
		Name:    "module-retrieve",
		Usage:   "<instance> [flags]",
		Summary: "Save the contents of an instance's applied modules to files",
		Flags: func(fs *flag.FlagSet) {
			fs.StringVar(&retrieveDir, "directory", ".", "directory to write module contents into")
		},
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 1 {
				return usagef("module-retrieve needs exactly one instance")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			applied, err := client.Modules.Retrieve(ctx, args[0])
			if err != nil {
				return err
			}
			for _, mod := range applied {
				contents, err := dbaas.DecodePayload(mod.String("contents"))
				if err != nil {
					return err
				}
				path := filepath.Join(retrieveDir, fmt.Sprintf("module_%s_contents.dat", mod.Name()))
				if err := os.WriteFile(path, contents, 0o600); err != nil {
					return fmt.Errorf("write %s: %w", path, err)
				}
				env.Printer.Confirm("Saved module %s to %s", mod.Name(), path)
			}
			return nil
		},
	})

	var rootPassword string
	register(&Command{
		Name:    "root-enable",
		Usage:   "<instance-or-cluster> [flags]",
		Summary: "Enable the root user, printing its credentials",
		Flags: func(fs *flag.FlagSet) {
			fs.StringVar(&rootPassword, "password", "", "use this password instead of a generated one")
		},
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 1 {
				return usagef("root-enable needs exactly one instance or cluster")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			subject, err := client.Root.ResolveSubject(ctx, args[0])
			if err != nil {
				return err
			}
			rec, err := client.Root.Enable(ctx, subject, rootPassword)
			if err != nil {
				return err
			}
			return env.Printer.Record(rec)
		},
	})

	register(&Command{
		Name:    "root-show",
		Usage:   "<instance-or-cluster>",
		Summary: "Show whether root has ever been enabled",
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 1 {
				return usagef("root-show needs exactly one instance or cluster")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			subject, err := client.Root.ResolveSubject(ctx, args[0])
			if err != nil {
				return err
			}
			enabled, err := client.Root.Show(ctx, subject)
			if err != nil {
				return err
			}
			return env.Printer.Rows([]string{"is_root_enabled"}, [][]string{{fmt.Sprintf("%t", enabled)}})
		},
	})

	register(&Command{
		Name:    "root-disable",
		Usage:   "<instance>",
		Summary: "Disable the root user on an instance",
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 1 {
				return usagef("root-disable needs exactly one instance")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			subject, err := client.Root.ResolveSubject(ctx, args[0])
			if err != nil {
				return err
			}
			if err := client.Root.Disable(ctx, subject); err != nil {
				return err
			}
			env.Printer.Confirm("Root disabled on %s %s.", subject.Kind, subject.ID)
			return nil
		},
	})

	register(&Command{
		Name:    "log-list",
		Usage:   "<instance>",
		Summary: "List guest logs of an instance",
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 1 {
				return usagef("log-list needs exactly one instance")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			logs, err := client.Logs.List(ctx, args[0])
			if err != nil {
				return err
			}
			return env.Printer.List(logColumns, logs)
		},
	})

	for _, lc := range []struct {
		verb    string
		summary string
		action  dbaas.LogAction
	}{
		{"enable", "Start collecting a guest log", dbaas.LogAction{Enable: true}},
		{"disable", "Stop collecting a guest log", dbaas.LogAction{Disable: true}},
		{"publish", "Flush a guest log to the object store", dbaas.LogAction{Publish: true}},
		{"discard", "Discard the published segments of a guest log", dbaas.LogAction{Discard: true}},
	} {
		action := lc.action
		register(&Command{
			Name:    "log-" + lc.verb,
			Usage:   "<instance> <log>",
			Summary: lc.summary,
			Run: func(ctx context.Context, env *Env, args []string) error {
				if len(args) != 2 {
					return usagef("needs an instance and a log name")
				}
				client, err := env.Client(ctx)
				if err != nil {
					return err
				}
				gl, err := client.Logs.Set(ctx, args[0], args[1], action)
				if err != nil {
					return err
				}
				return env.Printer.Rows(logColumns, [][]string{guestLogRow(gl)})
			},
		})
	}

	register(&Command{
		Name:    "log-show",
		Usage:   "<instance> <log>",
		Summary: "Show the state of one guest log",
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 2 {
				return usagef("log-show needs an instance and a log name")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			gl, err := client.Logs.Show(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return env.Printer.Rows(logColumns, [][]string{guestLogRow(gl)})
		},
	})

	var (
		tailLines   int
		tailPublish bool
	)
	register(&Command{
		Name:    "log-tail",
		Usage:   "<instance> <log> [flags]",
		Summary: "Print the last lines of a published guest log",
		Flags: func(fs *flag.FlagSet) {
			fs.IntVar(&tailLines, "lines", 50, "number of trailing lines, 0 for everything")
			fs.BoolVar(&tailPublish, "publish", false, "publish pending bytes first")
		},
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 2 {
				return usagef("log-tail needs an instance and a log name")
			}
			streamer, err := env.Streamer(ctx)
			if err != nil {
				return err
			}
			rc, err := streamer.Tail(ctx, args[0], args[1], tailLines, tailPublish)
			if err != nil {
				return err
			}
			defer rc.Close()
			_, err = io.Copy(env.Out, rc)
			return err
		},
	})

	var saveFile string
	register(&Command{
		Name:    "log-save",
		Usage:   "<instance> <log> [flags]",
		Summary: "Download a published guest log to a file",
		Flags: func(fs *flag.FlagSet) {
			fs.StringVar(&saveFile, "file", "", "target path, default <instance>-<log>.log")
		},
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 2 {
				return usagef("log-save needs an instance and a log name")
			}
			streamer, err := env.Streamer(ctx)
			if err != nil {
				return err
			}
			path := saveFile
			if path == "" {
				path = args[0] + "-" + args[1] + ".log"
			}
			written, err := streamer.Save(ctx, args[0], args[1], path)
			if err != nil {
				return err
			}
			env.Printer.Confirm("Log written to %s.", written)
			return nil
		},
	})
}

func guestLogRow(gl *dbaas.GuestLog) []string {
	return []string{
		gl.Name, gl.Type, gl.Status,
		strconv.FormatInt(gl.Published, 10),
		strconv.FormatInt(gl.Pending, 10),
	}
}
