package cli

import (
	"context"
	"flag"
	"time"

	"github.com/edvin/dbaas/internal/dbaas"
	"github.com/edvin/dbaas/internal/schedule"
)

var backupColumns = []string{"id", "name", "instance_id", "status", "parent_id", "size"}

func init() {
	var (
		description string
		parentID    string
		incremental bool
	)
	register(&Command{
		Name:    "backup-create",
		Usage:   "<name> <instance> [flags]",
		Summary: "Take a backup of an instance",
		Flags: func(fs *flag.FlagSet) {
			fs.StringVar(&description, "description", "", "backup description")
			fs.StringVar(&parentID, "parent", "", "parent backup id for an incremental backup")
			fs.BoolVar(&incremental, "incremental", false, "let the server pick the parent")
		},
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 2 {
				return usagef("backup-create needs a name and an instance")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			rec, err := client.Backups.Create(ctx, args[0], args[1], description, parentID, incremental)
			if err != nil {
				return err
			}
			return env.Printer.Record(rec)
		},
	})

	var (
		listLimit     int
		listMarker    string
		listDatastore string
		listInstance  string
		allProjects   bool
	)
	register(&Command{
		Name:    "backup-list",
		Usage:   "[flags]",
		Summary: "List backups",
		Flags: func(fs *flag.FlagSet) {
			pageFlags(fs, &listLimit, &listMarker)
			fs.StringVar(&listDatastore, "datastore", "", "filter by datastore")
			fs.StringVar(&listInstance, "instance", "", "filter by instance id")
			fs.BoolVar(&allProjects, "all-projects", false, "admin: list across projects")
		},
		Run: func(ctx context.Context, env *Env, args []string) error {
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			filter := dbaas.BackupListFilter{
				Datastore:   listDatastore,
				InstanceID:  listInstance,
				AllProjects: allProjects,
			}
			page, err := client.Backups.List(ctx, listLimit, listMarker, filter)
			if err != nil {
				return err
			}
			return env.Printer.List(backupColumns, page.Items)
		},
	})

	register(&Command{
		Name:    "backup-show",
		Usage:   "<backup>",
		Summary: "Show one backup by id or name",
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 1 {
				return usagef("backup-show needs exactly one backup id or name")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			rec, err := client.Backups.Find(ctx, args[0])
			if err != nil {
				return err
			}
			return env.Printer.Record(rec)
		},
	})

	register(&Command{
		Name:    "backup-delete",
		Usage:   "<backup>",
		Summary: "Delete a backup",
		Run: singleIDAction("backup-delete", func(ctx context.Context, c *dbaas.Client, id string) error {
			return c.Backups.Delete(ctx, id)
		}, "Request to delete backup %s accepted."),
	})

	var (
		schedParent      string
		schedIncremental bool
		schedDescription string
	)
	register(&Command{
		Name:    "schedule-create",
		Usage:   "<instance> <cron-pattern> <backup-name> [flags]",
		Summary: "Create a recurring backup schedule for an instance",
		Flags: func(fs *flag.FlagSet) {
			fs.StringVar(&schedParent, "parent", "", "parent backup id for incrementals")
			fs.BoolVar(&schedIncremental, "incremental", false, "take incremental backups")
			fs.StringVar(&schedDescription, "description", "", "backup description")
		},
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 3 {
				return usagef("schedule-create needs an instance, a cron pattern and a backup name")
			}
			sched, err := env.Scheduler(ctx)
			if err != nil {
				return err
			}
			input := schedule.BackupInput{
				Instance:    args[0],
				Name:        args[2],
				ParentID:    schedParent,
				Description: schedDescription,
			}
			if schedIncremental {
				input.Incremental = 1
			}
			trigger, err := sched.Create(ctx, args[0], args[1], args[2], input)
			if err != nil {
				return err
			}
			return env.Printer.Rows(scheduleColumns, [][]string{scheduleRow(trigger)})
		},
	})

	register(&Command{
		Name:    "schedule-list",
		Usage:   "<instance>",
		Summary: "List backup schedules of an instance",
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 1 {
				return usagef("schedule-list needs exactly one instance")
			}
			sched, err := env.Scheduler(ctx)
			if err != nil {
				return err
			}
			triggers, err := sched.List(ctx, args[0])
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(triggers))
			for _, t := range triggers {
				rows = append(rows, scheduleRow(t))
			}
			return env.Printer.Rows(scheduleColumns, rows)
		},
	})

	register(&Command{
		Name:    "schedule-show",
		Usage:   "<schedule-id>",
		Summary: "Show one backup schedule",
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 1 {
				return usagef("schedule-show needs exactly one schedule id")
			}
			sched, err := env.Scheduler(ctx)
			if err != nil {
				return err
			}
			trigger, err := sched.Show(ctx, args[0])
			if err != nil {
				return err
			}
			return env.Printer.Rows(scheduleColumns, [][]string{scheduleRow(trigger)})
		},
	})

	register(&Command{
		Name:    "schedule-delete",
		Usage:   "<schedule-id>",
		Summary: "Delete a backup schedule",
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 1 {
				return usagef("schedule-delete needs exactly one schedule id")
			}
			sched, err := env.Scheduler(ctx)
			if err != nil {
				return err
			}
			if err := sched.Delete(ctx, args[0]); err != nil {
				return err
			}
			env.Printer.Confirm("Schedule %s deleted.", args[0])
			return nil
		},
	})

	var (
		execLimit  int
		execMarker string
	)
	register(&Command{
		Name:    "execution-list",
		Usage:   "<schedule-id> [flags]",
		Summary: "List runs of a backup schedule",
		Flags: func(fs *flag.FlagSet) {
			pageFlags(fs, &execLimit, &execMarker)
		},
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 1 {
				return usagef("execution-list needs exactly one schedule id")
			}
			sched, err := env.Scheduler(ctx)
			if err != nil {
				return err
			}
			trigger, err := sched.Show(ctx, args[0])
			if err != nil {
				return err
			}
			execs, err := sched.Executions(ctx, trigger, execLimit, execMarker)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(execs))
			for _, e := range execs {
				rows = append(rows, []string{e.ID, e.WorkflowName, e.State, e.StartTime.Format(time.RFC3339)})
			}
			return env.Printer.Rows(executionColumns, rows)
		},
	})

	register(&Command{
		Name:    "execution-delete",
		Usage:   "<execution-id>",
		Summary: "Delete one run record of a backup schedule",
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 1 {
				return usagef("execution-delete needs exactly one execution id")
			}
			sched, err := env.Scheduler(ctx)
			if err != nil {
				return err
			}
			if err := sched.DeleteExecution(ctx, args[0]); err != nil {
				return err
			}
			env.Printer.Confirm("Execution %s deleted.", args[0])
			return nil
		},
	})
}

var (
	scheduleColumns  = []string{"id", "instance", "pattern", "backup_name", "next_fire_time"}
	executionColumns = []string{"id", "workflow", "state", "started"}
)

func scheduleRow(t schedule.CronTrigger) []string {
	next := ""
	if !t.NextFireTime.IsZero() {
		next = t.NextFireTime.Format(time.RFC3339)
	}
	return []string{t.ID, t.Input.Instance, t.Pattern, t.Input.Name, next}
}
