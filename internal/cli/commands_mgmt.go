package cli

import (
	"context"
	"flag"

	"github.com/edvin/dbaas/internal/dbaas"
)

func init() {
	var (
		listLimit   int
		listMarker  string
		listDeleted bool
	)
	register(&Command{
		Name:    "mgmt-instance-list",
		Usage:   "[flags]",
		Summary: "Admin: list instances across the deployment",
		Flags: func(fs *flag.FlagSet) {
			pageFlags(fs, &listLimit, &listMarker)
			fs.BoolVar(&listDeleted, "deleted", false, "include deleted instances")
		},
		Run: func(ctx context.Context, env *Env, args []string) error {
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			page, err := client.Mgmt.List(ctx, listLimit, listMarker, listDeleted)
			if err != nil {
				return err
			}
			return env.Printer.List([]string{"id", "name", "tenant_id", "status", "deleted"}, page.Items)
		},
	})

	register(&Command{
		Name:    "mgmt-instance-show",
		Usage:   "<instance>",
		Summary: "Admin: show one instance with server details",
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 1 {
				return usagef("mgmt-instance-show needs exactly one instance")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			rec, err := client.Mgmt.Get(ctx, args[0])
			if err != nil {
				return err
			}
			return env.Printer.Record(rec)
		},
	})

	register(&Command{
		Name:    "mgmt-instance-stop",
		Usage:   "<instance>",
		Summary: "Admin: stop the database service on an instance",
		Run: singleIDAction("mgmt-instance-stop", func(ctx context.Context, c *dbaas.Client, id string) error {
			return c.Mgmt.Stop(ctx, id)
		}, "Request to stop instance %s accepted."),
	})

	register(&Command{
		Name:    "mgmt-instance-reboot",
		Usage:   "<instance>",
		Summary: "Admin: hard-reboot the instance server",
		Run: singleIDAction("mgmt-instance-reboot", func(ctx context.Context, c *dbaas.Client, id string) error {
			return c.Mgmt.Reboot(ctx, id)
		}, "Request to reboot instance %s accepted."),
	})

	var migrateHost string
	register(&Command{
		Name:    "mgmt-instance-migrate",
		Usage:   "<instance> [flags]",
		Summary: "Admin: migrate the instance server to another host",
		Flags: func(fs *flag.FlagSet) {
			fs.StringVar(&migrateHost, "host", "", "target hypervisor, scheduler picks one when empty")
		},
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 1 {
				return usagef("mgmt-instance-migrate needs exactly one instance")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			if err := client.Mgmt.Migrate(ctx, args[0], migrateHost); err != nil {
				return err
			}
			env.Printer.Confirm("Request to migrate instance %s accepted.", args[0])
			return nil
		},
	})

	register(&Command{
		Name:    "mgmt-instance-reset-task-status",
		Usage:   "<instance>",
		Summary: "Admin: clear a stuck task status",
		Run: singleIDAction("mgmt-instance-reset-task-status", func(ctx context.Context, c *dbaas.Client, id string) error {
			return c.Mgmt.ResetTaskStatus(ctx, id)
		}, "Task status of instance %s reset."),
	})

	register(&Command{
		Name:    "mgmt-instance-update",
		Usage:   "<instance>",
		Summary: "Admin: push the latest guest agent to an instance",
		Run: singleIDAction("mgmt-instance-update", func(ctx context.Context, c *dbaas.Client, id string) error {
			return c.Mgmt.Update(ctx, id)
		}, "Request to update guest of instance %s accepted."),
	})

	register(&Command{
		Name:    "mgmt-instance-diagnostics",
		Usage:   "<instance>",
		Summary: "Admin: show guest agent diagnostics",
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 1 {
				return usagef("mgmt-instance-diagnostics needs exactly one instance")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			rec, err := client.Mgmt.Diagnostics(ctx, args[0])
			if err != nil {
				return err
			}
			return env.Printer.Record(rec)
		},
	})

	register(&Command{
		Name:    "mgmt-root-history",
		Usage:   "<instance>",
		Summary: "Admin: show when root was last enabled and by whom",
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 1 {
				return usagef("mgmt-root-history needs exactly one instance")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			rec, err := client.Mgmt.RootHistory(ctx, args[0])
			if err != nil {
				return err
			}
			return env.Printer.Record(rec)
		},
	})

	register(&Command{
		Name:    "mgmt-config-list",
		Usage:   "",
		Summary: "Admin: list deployment-level configuration defaults",
		Run: func(ctx context.Context, env *Env, args []string) error {
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			configs, err := client.Mgmt.Configs(ctx)
			if err != nil {
				return err
			}
			return env.Printer.List([]string{"name", "description"}, configs)
		},
	})
}
