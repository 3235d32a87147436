package cli

import (
	"context"
	"flag"

	"github.com/edvin/dbaas/internal/dbaas"
)

var (
	databaseColumns = []string{"name"}
	userColumns     = []string{"name", "host", "databases"}
)

func init() {
	var (
		charset string
		collate string
	)
	register(&Command{
		Name:    "database-create",
		Usage:   "<instance> <name> [flags]",
		Summary: "Create a database on an instance",
		Flags: func(fs *flag.FlagSet) {
			fs.StringVar(&charset, "character-set", "", "character set")
			fs.StringVar(&collate, "collate", "", "collation")
		},
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 2 {
				return usagef("database-create needs an instance and a database name")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			db := dbaas.DatabaseSpec{Name: args[1], CharacterSet: charset, Collate: collate}
			if err := client.Databases.Create(ctx, args[0], []dbaas.DatabaseSpec{db}); err != nil {
				return err
			}
			env.Printer.Confirm("Database %s created on instance %s.", args[1], args[0])
			return nil
		},
	})

	var (
		dbListLimit  int
		dbListMarker string
	)
	register(&Command{
		Name:    "database-list",
		Usage:   "<instance> [flags]",
		Summary: "List databases on an instance",
		Flags: func(fs *flag.FlagSet) {
			pageFlags(fs, &dbListLimit, &dbListMarker)
		},
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 1 {
				return usagef("database-list needs exactly one instance")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			page, err := client.Databases.List(ctx, args[0], dbListLimit, dbListMarker)
			if err != nil {
				return err
			}
			return env.Printer.List(databaseColumns, page.Items)
		},
	})

	register(&Command{
		Name:    "database-delete",
		Usage:   "<instance> <name>",
		Summary: "Drop a database from an instance",
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 2 {
				return usagef("database-delete needs an instance and a database name")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			if err := client.Databases.Delete(ctx, args[0], args[1]); err != nil {
				return err
			}
			env.Printer.Confirm("Database %s deleted from instance %s.", args[1], args[0])
			return nil
		},
	})

	var (
		userPassword  string
		userHost      string
		userDatabases string
	)
	register(&Command{
		Name:    "user-create",
		Usage:   "<instance> <name> [flags]",
		Summary: "Create a database user on an instance",
		Flags: func(fs *flag.FlagSet) {
			fs.StringVar(&userPassword, "password", "", "user password")
			fs.StringVar(&userHost, "host", "", "host the user may connect from, default %")
			fs.StringVar(&userDatabases, "databases", "", "comma-separated databases to grant")
		},
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 2 {
				return usagef("user-create needs an instance and a user name")
			}
			user := dbaas.UserSpec{Name: args[1], Password: userPassword, Host: userHost}
			for _, db := range splitCSV(userDatabases) {
				user.Databases = append(user.Databases, dbaas.DatabaseSpec{Name: db})
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			if err := client.Users.Create(ctx, args[0], []dbaas.UserSpec{user}); err != nil {
				return err
			}
			env.Printer.Confirm("User %s created on instance %s.", args[1], args[0])
			return nil
		},
	})

	var (
		userListLimit  int
		userListMarker string
	)
	register(&Command{
		Name:    "user-list",
		Usage:   "<instance> [flags]",
		Summary: "List users on an instance",
		Flags: func(fs *flag.FlagSet) {
			pageFlags(fs, &userListLimit, &userListMarker)
		},
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 1 {
				return usagef("user-list needs exactly one instance")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			page, err := client.Users.List(ctx, args[0], userListLimit, userListMarker)
			if err != nil {
				return err
			}
			return env.Printer.List(userColumns, page.Items)
		},
	})

	var showHost string
	register(&Command{
		Name:    "user-show",
		Usage:   "<instance> <name> [flags]",
		Summary: "Show one user on an instance",
		Flags: func(fs *flag.FlagSet) {
			fs.StringVar(&showHost, "host", "", "host part of the user reference")
		},
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 2 {
				return usagef("user-show needs an instance and a user name")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			rec, err := client.Users.Get(ctx, args[0], args[1], showHost)
			if err != nil {
				return err
			}
			return env.Printer.Record(rec)
		},
	})

	var deleteHost string
	register(&Command{
		Name:    "user-delete",
		Usage:   "<instance> <name> [flags]",
		Summary: "Delete a user from an instance",
		Flags: func(fs *flag.FlagSet) {
			fs.StringVar(&deleteHost, "host", "", "host part of the user reference")
		},
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 2 {
				return usagef("user-delete needs an instance and a user name")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			if err := client.Users.Delete(ctx, args[0], args[1], deleteHost); err != nil {
				return err
			}
			env.Printer.Confirm("User %s deleted from instance %s.", args[1], args[0])
			return nil
		},
	})

	var (
		updHost     string
		updName     string
		updNewHost  string
		updPassword string
	)
	register(&Command{
		Name:    "user-update",
		Usage:   "<instance> <name> [flags]",
		Summary: "Change a user's name, host or password",
		Flags: func(fs *flag.FlagSet) {
			fs.StringVar(&updHost, "host", "", "host part of the current user reference")
			fs.StringVar(&updName, "new-name", "", "new user name")
			fs.StringVar(&updNewHost, "new-host", "", "new host")
			fs.StringVar(&updPassword, "new-password", "", "new password")
		},
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 2 {
				return usagef("user-update needs an instance and a user name")
			}
			update := dbaas.UserUpdate{Name: updName, Host: updNewHost, Password: updPassword}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			if err := client.Users.UpdateAttributes(ctx, args[0], args[1], updHost, update); err != nil {
				return err
			}
			env.Printer.Confirm("User %s updated on instance %s.", args[1], args[0])
			return nil
		},
	})

	var accessHost string
	register(&Command{
		Name:    "user-show-access",
		Usage:   "<instance> <name> [flags]",
		Summary: "List the databases a user can access",
		Flags: func(fs *flag.FlagSet) {
			fs.StringVar(&accessHost, "host", "", "host part of the user reference")
		},
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 2 {
				return usagef("user-show-access needs an instance and a user name")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			dbs, err := client.Users.ListAccess(ctx, args[0], args[1], accessHost)
			if err != nil {
				return err
			}
			return env.Printer.List(databaseColumns, dbs)
		},
	})

	var grantHost string
	register(&Command{
		Name:    "user-grant-access",
		Usage:   "<instance> <name> <database> [database...]",
		Summary: "Grant a user access to databases",
		Flags: func(fs *flag.FlagSet) {
			fs.StringVar(&grantHost, "host", "", "host part of the user reference")
		},
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) < 3 {
				return usagef("user-grant-access needs an instance, a user and at least one database")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			if err := client.Users.Grant(ctx, args[0], args[1], grantHost, args[2:]); err != nil {
				return err
			}
			env.Printer.Confirm("Access granted to user %s on instance %s.", args[1], args[0])
			return nil
		},
	})

	var revokeHost string
	register(&Command{
		Name:    "user-revoke-access",
		Usage:   "<instance> <name> <database>",
		Summary: "Revoke a user's access to one database",
		Flags: func(fs *flag.FlagSet) {
			fs.StringVar(&revokeHost, "host", "", "host part of the user reference")
		},
		Run: func(ctx context.Context, env *Env, args []string) error {
			if len(args) != 3 {
				return usagef("user-revoke-access needs an instance, a user and a database")
			}
			client, err := env.Client(ctx)
			if err != nil {
				return err
			}
			if err := client.Users.Revoke(ctx, args[0], args[1], revokeHost, args[2]); err != nil {
				return err
			}
			env.Printer.Confirm("Access to %s revoked from user %s.", args[2], args[1])
			return nil
		},
	})
}
