package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/template"

	"github.com/rs/zerolog"
	"github.com/selfmon/selfmon/internal/clock"
	"github.com/selfmon/selfmon/internal/config"
	"github.com/selfmon/selfmon/internal/logger"
	"github.com/selfmon/selfmon/internal/meta"
	"github.com/selfmon/selfmon/internal/monerr"
	"github.com/selfmon/selfmon/internal/monitor"
	"github.com/selfmon/selfmon/internal/probe"
	"github.com/selfmon/selfmon/internal/store"
	api "github.com/selfmon/selfmon/lib-selfmon"
	"github.com/spf13/pflag"
)

func init() {
	probe.HTTPUserAgent = fmt.Sprintf("selfmon/%s health check", meta.Version)
}

const (
	CommandServe     = "serve"
	CommandCheck     = "check"
	CommandStats     = "stats"
	CommandIncidents = "incidents"
)

type SelfmonCommand struct {
	OutStream io.Writer
	ErrStream io.Writer

	Command     string
	ConfigFile  string
	EnvFile     string
	Days        int
	Limit       int
	ShowVersion bool
	ShowHelp    bool

	Config *config.Config
}

var defaultSelfmonCommand = &SelfmonCommand{
	OutStream: os.Stdout,
	ErrStream: os.Stderr,
}

//go:embed help.txt
var helpText string

func (cmd *SelfmonCommand) PrintUsage(detail bool) {
	tmpl := template.Must(template.New("help.txt").Parse(helpText))
	tmpl.Execute(cmd.ErrStream, map[string]interface{}{
		"HTTPRedirectMax": probe.HTTP_REDIRECT_MAX,
		"Short":           !detail,
	})
}

func (cmd *SelfmonCommand) PrintVersion() {
	fmt.Fprintf(cmd.OutStream, "selfmon version %s (%s)\n", meta.Version, meta.Commit)
}

func newFlagSet() *pflag.FlagSet {
	def := config.Default()

	flags := pflag.NewFlagSet("selfmon", pflag.ContinueOnError)
	flags.Usage = func() {}

	flags.StringP("target-url", "t", "", "URL of the target")
	flags.String("check-interval", def.CheckInterval, "Schedule of checks")
	flags.String("resolve-interval", def.ResolveInterval, "Schedule of resolving incidents")
	flags.Duration("merge-window", def.MergeWindow, "Window to merge failures into an incident")
	flags.String("merge-from", def.MergeFrom, "Reference point of the merge window")
	flags.Duration("retention", def.Retention, "Retention of check results")
	flags.Duration("probe-timeout", def.ProbeTimeout, "Timeout of a check")
	flags.Bool("verify-tls", def.VerifyTLS, "Verify the certificate of the target")
	flags.Duration("storage-timeout", def.StorageTimeout, "Timeout of a storage operation")
	flags.StringP("store", "s", def.Store, "Storage")
	flags.StringP("listen", "l", def.Listen, "HTTP listen address")
	flags.StringP("user", "u", "", "Username to protect the force check")
	flags.String("password", "", "Password to protect the force check")
	flags.String("password-hash", "", "Bcrypt hash of the password")
	flags.String("timezone", def.Timezone, "Time zone of dates")
	flags.String("log-level", def.LogLevel, "Log level")
	flags.String("log-format", def.LogFormat, "Log format")

	return flags
}

func (cmd *SelfmonCommand) ParseArgs(args []string) (exitCode int) {
	rest := args[1:]

	cmd.Command = CommandServe
	if len(rest) > 0 && !strings.HasPrefix(rest[0], "-") {
		switch rest[0] {
		case CommandServe, CommandCheck, CommandStats, CommandIncidents:
			cmd.Command = rest[0]
			rest = rest[1:]
		default:
			fmt.Fprintf(cmd.ErrStream, "unknown command: %s\n", rest[0])
			fmt.Fprintf(cmd.ErrStream, "\nPlease see `%s -h` for more information.\n", args[0])
			return 2
		}
	}

	flags := newFlagSet()
	flags.StringVarP(&cmd.ConfigFile, "config", "c", "", "YAML config file")
	flags.StringVar(&cmd.EnvFile, "env-file", ".env", "Dotenv file")
	flags.IntVar(&cmd.Days, "days", 30, "Window of the stats command in days")
	flags.IntVar(&cmd.Limit, "limit", 10, "Number of incidents to print")
	flags.BoolVarP(&cmd.ShowVersion, "version", "v", false, "Show version")
	flags.BoolVarP(&cmd.ShowHelp, "help", "h", false, "Show help message")

	if err := flags.Parse(rest); err != nil {
		fmt.Fprintln(cmd.ErrStream, err)
		fmt.Fprintf(cmd.ErrStream, "\nPlease see `%s -h` for more information.\n", args[0])
		return 2
	}

	if cmd.ShowVersion || cmd.ShowHelp {
		return 0
	}

	if flags.NArg() > 0 {
		fmt.Fprintf(cmd.ErrStream, "invalid argument: unexpected argument: %s\n", strings.Join(flags.Args(), " "))
		fmt.Fprintf(cmd.ErrStream, "\nPlease see `%s -h` for more information.\n", args[0])
		return 2
	}
	if cmd.Days <= 0 || cmd.Limit <= 0 {
		fmt.Fprintln(cmd.ErrStream, "invalid argument: --days and --limit must be positive.")
		return 2
	}

	cfg, err := config.Load(config.Source{
		ConfigFile: cmd.ConfigFile,
		EnvFile:    cmd.EnvFile,
		Flags:      flags,
	})
	if err != nil {
		fmt.Fprintln(cmd.ErrStream, err)
		fmt.Fprintf(cmd.ErrStream, "\nPlease see `%s -h` for more information.\n", args[0])
		return 2
	}
	cmd.Config = cfg

	return 0
}

// Open makes the logger and the monitor from the config.
// The caller has to close the returned backend.
func (cmd *SelfmonCommand) Open(onCheck func(api.CheckResult)) (*monitor.Monitor, store.Backend, zerolog.Logger, error) {
	cfg := cmd.Config

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrStream)
	if err != nil {
		return nil, nil, log, err
	}

	prober, err := probe.NewHTTPProber(cfg.TargetURL, probe.Options{
		Timeout:   cfg.ProbeTimeout,
		VerifyTLS: cfg.VerifyTLS,
	})
	if err != nil {
		return nil, nil, log, err
	}

	backend, err := store.Open(cfg.Store, log)
	if err != nil {
		return nil, nil, log, err
	}

	m := monitor.New(prober, backend, backend, monitor.Options{
		Target:         prober.Target().String(),
		Clock:          clock.System,
		Location:       cfg.Location,
		Retention:      cfg.Retention,
		MergeWindow:    cfg.MergeWindow,
		MergeFrom:      cfg.MergeReference,
		StorageTimeout: cfg.StorageTimeout,
		Logger:         log,
		OnCheck:        onCheck,
	})

	return m, backend, log, nil
}

func (cmd *SelfmonCommand) Run(args []string) (exitCode int) {
	if code := cmd.ParseArgs(args); code != 0 {
		return code
	}

	if cmd.ShowVersion {
		cmd.PrintVersion()
		return 0
	}

	if cmd.ShowHelp {
		cmd.PrintUsage(true)
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd.Command {
	case CommandCheck:
		return cmd.RunCheck(ctx)
	case CommandStats:
		return cmd.RunStats(ctx)
	case CommandIncidents:
		return cmd.RunIncidents(ctx)
	default:
		return cmd.RunServer(ctx)
	}
}

// openOrReport is Open that prints the error, and returns the exit code for it.
func (cmd *SelfmonCommand) openOrReport(onCheck func(api.CheckResult)) (*monitor.Monitor, store.Backend, zerolog.Logger, int) {
	m, backend, log, err := cmd.Open(onCheck)
	if err != nil {
		fmt.Fprintf(cmd.ErrStream, "error: %s\n", err)
		if errors.Is(err, monerr.ErrConfig) {
			return nil, nil, log, 2
		}
		return nil, nil, log, 1
	}
	return m, backend, log, 0
}

func main() {
	os.Exit(defaultSelfmonCommand.Run(os.Args))
}
