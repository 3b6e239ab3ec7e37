// Package cli implements the storefront command line client.
package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/joao-fontenele/storefront/internal/api"
	"github.com/joao-fontenele/storefront/internal/app"
	"github.com/joao-fontenele/storefront/internal/config"
	"github.com/joao-fontenele/storefront/internal/logging"
	"github.com/joao-fontenele/storefront/internal/telemetry"
	"github.com/joao-fontenele/storefront/internal/views"
)

var errUsage = errors.New("usage")

// IO bundles the process streams so commands can be driven from tests.
type IO struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

type cli struct {
	app    *app.App
	out    io.Writer
	errOut io.Writer
	in     *bufio.Reader
	json   bool
	logger *slog.Logger
}

type command struct {
	usage string
	run   func(ctx context.Context, c *cli, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"login":      {"login --email E --password P", runLogin},
		"register":   {"register --name N --email E --password P [--seller]", runRegister},
		"logout":     {"logout", runLogout},
		"whoami":     {"whoami", runWhoami},
		"products":   {"products [--category ID] [--search Q]", runProducts},
		"product":    {"product <id>", runProduct},
		"categories": {"categories", runCategories},
		"cart":       {"cart [add <product> [qty] | update <line> <qty> | inc <line> | dec <line> | remove <line> | clear]", runCart},
		"checkout":   {"checkout --address A --phone P", runCheckout},
		"orders":     {"orders [show <id> | cancel <id>]", runOrders},
		"admin":      {"admin <" + strings.Join(sortedKeys(adminCommands), "|") + ">", runAdmin},
		"seller":     {"seller <" + strings.Join(sortedKeys(sellerCommands), "|") + ">", runSeller},
	}
}

// Run executes one invocation and returns the process exit code.
func Run(ctx context.Context, args []string, stdio IO) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stdio.Err, "Error:", err)
		return 1
	}
	return run(ctx, cfg, args, stdio)
}

func run(ctx context.Context, cfg *config.Config, args []string, stdio IO, opts ...app.Option) int {
	fs := flag.NewFlagSet("storefront", flag.ContinueOnError)
	fs.SetOutput(stdio.Err)
	apiURL := fs.String("api", "", "Override the backend API base URL")
	profile := fs.String("profile", "", "Credential profile (sqlite backend)")
	yes := fs.Bool("yes", false, "Skip confirmation prompts")
	asJSON := fs.Bool("json", false, "Print JSON instead of tables")
	verbose := fs.Bool("v", false, "Log at debug level")
	fs.Usage = func() { usage(stdio.Err, fs) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	if *apiURL != "" {
		cfg.API.URL = strings.TrimRight(*apiURL, "/")
	}
	if *profile != "" {
		cfg.Credentials.Profile = *profile
	}
	level := cfg.Log.Level
	if *verbose {
		level = "debug"
	} else if level == "" || level == "info" {
		level = "warn"
	}
	logger := logging.New(logging.Options{
		Service: "storefront-cli",
		Level:   level,
		Format:  "text",
		Output:  stdio.Err,
	})

	shutdown, err := telemetry.InitTracerProvider(ctx, "storefront-cli", cfg.Telemetry.ServiceVersion, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	} else {
		defer func() { _ = shutdown(context.Background()) }()
	}

	name, rest := fs.Arg(0), fs.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stdio.Err, "unknown command %q\n", name)
		fs.Usage()
		return 2
	}

	c := &cli{
		out:    stdio.Out,
		errOut: stdio.Err,
		in:     bufio.NewReader(stdio.In),
		json:   *asJSON,
		logger: logger,
	}
	confirmer := views.AlwaysConfirm
	if !*yes {
		confirmer = views.ConfirmFunc(c.prompt)
	}

	a, err := app.New(cfg, logger, append([]app.Option{app.WithConfirmer(confirmer)}, opts...)...)
	if err != nil {
		fmt.Fprintln(stdio.Err, "Error:", err)
		return 1
	}
	defer func() { _ = a.Close() }()
	c.app = a

	if err := a.Start(ctx); err != nil {
		logger.Warn("session not restored", "error", err)
	}

	if err := cmd.run(ctx, c, rest); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(stdio.Err, "usage: storefront", cmd.usage)
			return 2
		}
		fmt.Fprintln(stdio.Err, "Error:", describe(err))
		return 1
	}
	return 0
}

// prompt asks on stderr and reads y/yes from stdin.
func (c *cli) prompt(_ context.Context, question string) (bool, error) {
	fmt.Fprintf(c.errOut, "%s [y/N] ", question)
	line, err := c.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func describe(err error) string {
	switch {
	case errors.Is(err, views.ErrLoginRequired):
		return "please log in first: storefront login --email E --password P"
	case errors.Is(err, views.ErrNotConfirmed):
		return "cancelled"
	case errors.Is(err, api.ErrForbidden):
		return "you do not have permission to do that"
	}
	return api.Message(err)
}

func usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "usage: storefront [flags] <command> [args]")
	fmt.Fprintln(w, "\ncommands:")
	for _, name := range sortedKeys(commands) {
		fmt.Fprintln(w, "  "+commands[name].usage)
	}
	fmt.Fprintln(w, "\nflags:")
	fs.PrintDefaults()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// subcommand parses flags declared by define and requires want positional args.
func subcommand(name string, args []string, want int, define func(fs *flag.FlagSet)) ([]string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if define != nil {
		define(fs)
	}
	if err := fs.Parse(args); err != nil {
		return nil, errUsage
	}
	if fs.NArg() != want {
		return nil, errUsage
	}
	return fs.Args(), nil
}
