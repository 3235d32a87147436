package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/dbaas/internal/config"
	"github.com/edvin/dbaas/internal/dbaas"
	"github.com/edvin/dbaas/internal/guestlog"
	"github.com/edvin/dbaas/internal/logging"
	"github.com/edvin/dbaas/internal/schedule"
	"github.com/edvin/dbaas/internal/transport"
)

// Exit codes. Usage errors and validation failures exit 2, API and
// connectivity errors exit 1, interrupts exit 130.
const (
	ExitOK        = 0
	ExitError     = 1
	ExitUsage     = 2
	ExitInterrupt = 130
)

// Command is one <noun>-<verb> subcommand.
type Command struct {
	Name    string
	Usage   string
	Summary string
	Flags   func(fs *flag.FlagSet)
	Run     func(ctx context.Context, env *Env, args []string) error
}

// Env carries everything a command needs. The API client is built lazily so
// commands that only print usage never authenticate.
type Env struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Printer *Printer
	Out     io.Writer
	Err     io.Writer

	client    *dbaas.Client
	scheduler *schedule.Adapter
}

// Client authenticates on first use and caches the result.
func (e *Env) Client(ctx context.Context) (*dbaas.Client, error) {
	if e.client != nil {
		return e.client, nil
	}
	c, err := dbaas.Connect(ctx, e.Config, e.Logger)
	if err != nil {
		return nil, err
	}
	e.client = c
	return c, nil
}

// Scheduler connects to the workflow engine on first use.
func (e *Env) Scheduler(ctx context.Context) (*schedule.Adapter, error) {
	if e.scheduler != nil {
		return e.scheduler, nil
	}
	if e.Config.TemporalAddress == "" {
		return nil, usagef("schedule commands need DBAAS_TEMPORAL_ADDRESS")
	}
	engine, err := schedule.NewTemporalEngine(e.Config.TemporalAddress, e.Config.TemporalNamespace, e.Logger)
	if err != nil {
		return nil, err
	}
	e.scheduler = schedule.NewAdapter(engine, e.Logger)
	return e.scheduler, nil
}

// Streamer builds a guest-log streamer over a fresh object-store client.
func (e *Env) Streamer(ctx context.Context) (*guestlog.Streamer, error) {
	if e.Config.LogS3Endpoint == "" {
		return nil, usagef("log tailing needs DBAAS_LOG_S3_ENDPOINT")
	}
	client, err := e.Client(ctx)
	if err != nil {
		return nil, err
	}
	store := guestlog.NewS3Store(guestlog.S3Options{
		Endpoint:  e.Config.LogS3Endpoint,
		Region:    e.Config.LogS3Region,
		AccessKey: e.Config.LogS3AccessKey,
		SecretKey: e.Config.LogS3SecretKey,
	})
	return guestlog.NewStreamer(client.Logs, store, e.Logger), nil
}

var commands = map[string]*Command{}

func register(cmd *Command) {
	if _, ok := commands[cmd.Name]; ok {
		panic("duplicate command " + cmd.Name)
	}
	commands[cmd.Name] = cmd
}

// usageError marks failures that should exit 2 instead of 1.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// Main parses global flags, dispatches the subcommand and maps errors to
// exit codes.
func Main(ctx context.Context, args []string, out, errOut io.Writer) int {
	global := flag.NewFlagSet("dbaasctl", flag.ContinueOnError)
	global.SetOutput(errOut)

	var (
		authURL      = global.String("auth-url", "", "identity service URL (DBAAS_AUTH_URL)")
		username     = global.String("username", "", "user name (DBAAS_USERNAME)")
		password     = global.String("password", "", "password (DBAAS_PASSWORD)")
		apiKey       = global.String("api-key", "", "API key (DBAAS_APIKEY)")
		projectID    = global.String("project-id", "", "project ID (DBAAS_PROJECT_ID)")
		region       = global.String("region", "", "region name (DBAAS_REGION)")
		serviceType  = global.String("service-type", "", "catalog service type (DBAAS_SERVICE_TYPE)")
		serviceName  = global.String("service-name", "", "catalog service name (DBAAS_SERVICE_NAME)")
		endpointType = global.String("endpoint-type", "", "public, admin or internal (DBAAS_ENDPOINT_TYPE)")
		bypassURL    = global.String("bypass-url", "", "skip the catalog and use this endpoint (DBAAS_BYPASS_URL)")
		token        = global.String("token", "", "pre-issued token, requires -bypass-url (DBAAS_TOKEN)")
		insecure     = global.Bool("insecure", false, "skip TLS certificate verification")
		caBundle     = global.String("ca-bundle", "", "path to a CA bundle file (DBAAS_CA_BUNDLE)")
		retries      = global.Int("retries", -1, "transport retry count (DBAAS_RETRIES)")
		timeout      = global.Duration("timeout", 0, "per-request timeout (DBAAS_TIMEOUT)")
		jsonOut      = global.Bool("json", false, "print results as JSON")
		debug        = global.Bool("debug", false, "log requests and responses")
	)
	global.Usage = func() {
		fmt.Fprintf(errOut, "Usage: dbaasctl [global flags] <command> [flags] [args]\n\nGlobal flags:\n")
		global.PrintDefaults()
		fmt.Fprintf(errOut, "\nCommands:\n")
		printCommands(errOut)
	}

	if err := global.Parse(args); err != nil {
		return ExitUsage
	}
	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return ExitUsage
	}
	if rest[0] == "help" {
		if len(rest) > 1 {
			if cmd, ok := commands[rest[1]]; ok {
				printCommandHelp(errOut, cmd)
				return ExitOK
			}
			fmt.Fprintf(errOut, "ERROR: unknown command %q\n", rest[1])
			return ExitUsage
		}
		global.Usage()
		return ExitOK
	}

	cmd, ok := commands[rest[0]]
	if !ok {
		fmt.Fprintf(errOut, "ERROR: unknown command %q\n\nCommands:\n", rest[0])
		printCommands(errOut)
		return ExitUsage
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(errOut, "ERROR: %s\n", err)
		return ExitUsage
	}
	applyString(&cfg.AuthURL, *authURL)
	applyString(&cfg.Username, *username)
	applyString(&cfg.Password, *password)
	applyString(&cfg.APIKey, *apiKey)
	applyString(&cfg.ProjectID, *projectID)
	applyString(&cfg.Region, *region)
	applyString(&cfg.ServiceType, *serviceType)
	applyString(&cfg.ServiceName, *serviceName)
	applyString(&cfg.EndpointType, *endpointType)
	applyString(&cfg.BypassURL, *bypassURL)
	applyString(&cfg.Token, *token)
	applyString(&cfg.CABundle, *caBundle)
	if *insecure {
		cfg.Insecure = true
	}
	if *retries >= 0 {
		cfg.Retries = *retries
	}
	if *timeout > 0 {
		cfg.Timeout = *timeout
	}
	if *debug {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}
	if *jsonOut {
		cfg.JSONOutput = true
	}

	level := cfg.LogLevel
	if level == "" {
		level = "warn"
	}
	logger := logging.NewLoggerTo(errOut, level)

	env := &Env{
		Config:  cfg,
		Logger:  logger,
		Printer: NewPrinter(out, cfg.JSONOutput),
		Out:     out,
		Err:     errOut,
	}

	fs := flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.Usage = func() { printCommandHelp(errOut, cmd) }
	if cmd.Flags != nil {
		cmd.Flags(fs)
	}
	if err := fs.Parse(rest[1:]); err != nil {
		return ExitUsage
	}

	if err := cmd.Run(ctx, env, fs.Args()); err != nil {
		return renderError(errOut, err)
	}
	return ExitOK
}

func renderError(w io.Writer, err error) int {
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(w, "ERROR: interrupted")
		return ExitInterrupt
	}
	var ue *usageError
	if errors.As(err, &ue) {
		fmt.Fprintf(w, "ERROR: %s\n", ue.msg)
		return ExitUsage
	}
	var te *transport.Error
	if errors.As(err, &te) {
		fmt.Fprintf(w, "ERROR: %s: %s\n", te.Kind, te.Message)
		if te.Kind == transport.KindValidationError {
			return ExitUsage
		}
		return ExitError
	}
	fmt.Fprintf(w, "ERROR: %s\n", err)
	return ExitError
}

func applyString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func printCommands(w io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-28s %s\n", name, commands[name].Summary)
	}
}

func printCommandHelp(w io.Writer, cmd *Command) {
	fmt.Fprintf(w, "Usage: dbaasctl %s %s\n\n%s\n", cmd.Name, cmd.Usage, cmd.Summary)
	fs := flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
	if cmd.Flags != nil {
		cmd.Flags(fs)
		fmt.Fprintln(w, "\nFlags:")
		fs.SetOutput(w)
		fs.PrintDefaults()
	}
}

// parseDuration accepts plain seconds for compatibility with scripted use.
func parseDuration(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	var secs int
	if _, err := fmt.Sscanf(s, "%d", &secs); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return 0, fmt.Errorf("invalid duration %q", s)
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
