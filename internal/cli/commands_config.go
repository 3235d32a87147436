package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"strings"

	"github.com/edvin/dbaas/internal/dbaas"
)

var configurationColumns = []string{"id", "name", "description", "datastore_name", "datastore_version_name"}

// parseValues turns key=value pairs into a value map. A bare JSON object is
// accepted too, for values with types the pair form cannot express.
func parseValues(args []string) (map[string]any, error) {
	if len(args) == 1 && strings.HasPrefix(args[0], "{") {
		var m map[string]any
		if err := json.Unmarshal([]byte(args[0]), &m); err != nil {
			return nil, usagef("invalid JSON values: %s", err)
		}
		return m, nil
	}
	values := map[string]any{}
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, usagef("expected key=value, got %q", arg)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		values[key] = v
	}
	return values, nil
}

func init() {
	var (
		datastore   string
		dsVersion   string
		description string
	)
	register(&Command{
		Name:    "configuration-create",
		Usage:   "<name> <key=value...> [flags]",
		Summary: "Create a configuration group",
		Flags: func(fs *flag.FlagSet) {
			fs.StringVar(&datastore, "datastore", "", "datastore type")
			fs.StringVar(&dsVersion, "datastore-version", "", "datastore version")
			fs.StringVar(&description, "description", "", "group description")
		},
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) < 2 {
				return usagef("configuration-create needs a name and at least one key=value")
			}
			values, err := parseValues(args[1:])
			if err != nil {
				return err
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			req := dbaas.ConfigurationCreate{
				Name:        args[0],
				Description: description,
				Values:      values,
			}
			if datastore != "" {
				req.Datastore = &dbaas.DatastoreSpec{Type: datastore, Version: dsVersion}
			}
			rec, err := client.Configurations.Create(ctx, req)
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
		Name:    "configuration-list",
		Usage:   "[flags]",
		Summary: "List configuration groups",
		Flags: func(fs *flag.FlagSet) {
			pageFlags(fs, &listLimit, &listMarker)
		},
		Run: func(ctx context.Context, env *Env, args []string) error {
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			page, err := client.Configurations.List(ctx, listLimit, listMarker)
			if err != nil {
				return err
			}
			return env.Printer.List(configurationColumns, page.Items)
		},
	})

	register(&Command{
		Name:    "configuration-show",
		Usage:   "<group>",
		Summary: "Show one configuration group by id or name",
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 1 {
				return usagef("configuration-show needs exactly one group id or name")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			rec, err := client.Configurations.Find(ctx, args[0])
			if err != nil {
				return err
			}
			return env.Printer.Record(rec)
		},
	})

	var (
		updName        string
		updDescription string
	)
	register(&Command{
		Name:    "configuration-update",
		Usage:   "<group> <key=value...> [flags]",
		Summary: "Replace the values of a configuration group",
		Flags: func(fs *flag.FlagSet) {
			fs.StringVar(&updName, "name", "", "new group name")
			fs.StringVar(&updDescription, "description", "", "new description")
		},
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) < 2 {
				return usagef("configuration-update needs a group and at least one key=value")
			}
			values, err := parseValues(args[1:])
			if err != nil {
				return err
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			if err := client.Configurations.Update(ctx, args[0], updName, updDescription, values); err != nil {
				return err
			}
			env.Printer.Confirm("Configuration group %s updated.", args[0])
			return nil
		},
	})

	register(&Command{
		Name:    "configuration-patch",
		Usage:   "<group> <key=value...>",
		Summary: "Merge values into a configuration group",
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) < 2 {
				return usagef("configuration-patch needs a group and at least one key=value")
			}
			values, err := parseValues(args[1:])
			if err != nil {
				return err
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			if err := client.Configurations.Patch(ctx, args[0], values); err != nil {
				return err
			}
			env.Printer.Confirm("Configuration group %s patched.", args[0])
			return nil
		},
	})

	register(&Command{
		Name:    "configuration-delete",
		Usage:   "<group>",
		Summary: "Delete a configuration group",
		Run: singleIDAction("configuration-delete", func(ctx context.Context, c *dbaas.Client, id string) error {
			return c.Configurations.Delete(ctx, id)
		}, "Configuration group %s deleted."),
	})

	register(&Command{
		Name:    "configuration-attach",
		Usage:   "<instance> <group>",
		Summary: "Attach a configuration group to an instance",
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 2 {
				return usagef("configuration-attach needs an instance and a group")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			if err := client.Configurations.Attach(ctx, args[0], args[1]); err != nil {
				return err
			}
			env.Printer.Confirm("Configuration group %s attached to instance %s.", args[1], args[0])
			return nil
		},
	})

	register(&Command{
		Name:    "configuration-detach",
		Usage:   "<instance>",
		Summary: "Detach the configuration group from an instance",
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 1 {
				return usagef("configuration-detach needs exactly one instance")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			if err := client.Configurations.Detach(ctx, args[0]); err != nil {
				return err
			}
			env.Printer.Confirm("Configuration group detached from instance %s.", args[0])
			return nil
		},
	})

	var (
		instLimit  int
		instMarker string
	)
	register(&Command{
		Name:    "configuration-instances",
		Usage:   "<group> [flags]",
		Summary: "List instances using a configuration group",
		Flags: func(fs *flag.FlagSet) {
			pageFlags(fs, &instLimit, &instMarker)
		},
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 1 {
				return usagef("configuration-instances needs exactly one group")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			page, err := client.Configurations.Instances(ctx, args[0], instLimit, instMarker)
			if err != nil {
				return err
			}
			return env.Printer.List([]string{"id", "name"}, page.Items)
		},
	})

	register(&Command{
		Name:    "configuration-parameter-list",
		Usage:   "<datastore> <version>",
		Summary: "List the tunable parameters of a datastore version",
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 2 {
				return usagef("configuration-parameter-list needs a datastore and a version")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			params, err := client.Datastores.Parameters(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(params))
			for _, p := range params {
				rows = append(rows, parameterRow(p))
			}
			return env.Printer.Rows(parameterColumns, rows)
		},
	})

	register(&Command{
		Name:    "configuration-parameter-show",
		Usage:   "<datastore> <version> <parameter>",
		Summary: "Show one tunable parameter of a datastore version",
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 3 {
				return usagef("configuration-parameter-show needs a datastore, a version and a parameter")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			param, err := client.Datastores.GetParameter(ctx, args[0], args[1], args[2])
			if err != nil {
				return err
			}
			return env.Printer.Rows(parameterColumns, [][]string{parameterRow(*param)})
		},
	})
}

var parameterColumns = []string{"name", "type", "min", "max", "restart_required"}

func parameterRow(p dbaas.Parameter) []string {
	bound := func(v *float64) string {
		if v == nil {
			return ""
		}
		if *v == float64(int64(*v)) {
			return fmt.Sprintf("%d", int64(*v))
		}
		return fmt.Sprintf("%g", *v)
	}
	return []string{p.Name, p.Type, bound(p.Min), bound(p.Max), fmt.Sprintf("%t", p.RestartRequired)}
}
