// Package cli implements the freshbooks-report command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/freshbooks-report/internal/config"
	"github.com/Sternrassler/freshbooks-report/pkg/apperr"
	"github.com/Sternrassler/freshbooks-report/pkg/client"
	"github.com/Sternrassler/freshbooks-report/pkg/freshbooks"
	"github.com/Sternrassler/freshbooks-report/pkg/logging"
	"github.com/Sternrassler/freshbooks-report/pkg/metrics"
	"github.com/Sternrassler/freshbooks-report/pkg/tokenstore"
)

// options holds the persistent flags and the configuration they resolve to.
type options struct {
	configPath  string
	tokenPath   string
	debug       bool
	timeout     time.Duration
	metricsFile string
	redisAddr   string

	cfg    config.Config
	logger zerolog.Logger
}

// NewRootCmd creates the root command. Run without a subcommand it writes
// the invoice report to standard output.
func NewRootCmd(version string) *cobra.Command {
	cmd, _ := newRootCmd(version)
	return cmd
}

func newRootCmd(version string) (*cobra.Command, *options) {
	o := &options{logger: zerolog.Nop()}

	cmd := &cobra.Command{
		Use:     "freshbooks-report",
		Short:   "Export FreshBooks invoices as CSV",
		Long:    "freshbooks-report lists every invoice of a FreshBooks account as CSV, marking invoices paid by credit card.",
		Version: version,
		Example: rootCmdExample,
		Args:    cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return o.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.withMetrics(func() error {
				return o.runReport(cmd.Context(), cmd.OutOrStdout())
			})
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&o.configPath, "config", "", "path to a YAML config file")
	flags.StringVar(&o.tokenPath, "token", "", "path to the token file (overrides "+config.EnvTokenPath+")")
	flags.BoolVar(&o.debug, "debug", false, "enable debug logging")
	flags.DurationVar(&o.timeout, "timeout", 0, "HTTP timeout per request (overrides "+config.EnvTimeout+")")
	flags.StringVar(&o.metricsFile, "metrics-file", "", "write Prometheus metrics to this file after the run")
	flags.StringVar(&o.redisAddr, "redis-addr", "", "keep the token in Redis at this address instead of a file")

	cmd.AddCommand(newProjectsCmd(o), newTokenCmd(o))
	return cmd, o
}

const rootCmdExample = `  # Write the invoice report
  freshbooks-report > invoices.csv

  # Use a config file and a token stored elsewhere
  freshbooks-report --config freshbooks.yaml --token ~/.freshbooks/token.json

  # Keep the token in Redis and export run metrics
  freshbooks-report --redis-addr localhost:6379 --metrics-file /var/lib/node_exporter/freshbooks.prom

  # List projects of the business
  freshbooks-report projects`

// setup resolves the configuration and configures logging.
func (o *options) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("token") {
		cfg.TokenPath = o.tokenPath
	}
	if flags.Changed("timeout") {
		cfg.Timeout = o.timeout
	}
	if flags.Changed("redis-addr") {
		cfg.RedisAddr = o.redisAddr
	}
	if o.debug {
		cfg.LogLevel = string(logging.LevelDebug)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}

	errOut := cmd.ErrOrStderr()
	logging.Setup(logging.Config{
		Level:  level,
		Pretty: logging.IsTerminal(errOut),
		Output: errOut,
		RunID:  logging.NewRunID(),
	})

	o.cfg = cfg
	o.logger = logging.NewLogger("cli")
	o.logger.Debug().Str("command", cmd.Name()).Msg("Command started")
	return nil
}

// openStore returns the configured token store and a function releasing it.
func (o *options) openStore() (tokenstore.Store, func()) {
	if o.cfg.RedisAddr == "" {
		return tokenstore.NewFileStore(o.cfg.TokenPath), func() {}
	}

	rdb := redis.NewClient(&redis.Options{Addr: o.cfg.RedisAddr})
	closeFn := func() {
		if err := rdb.Close(); err != nil {
			o.logger.Warn().Err(err).Msg("Closing Redis client failed")
		}
	}
	return tokenstore.NewRedisStore(rdb, o.cfg.RedisKey), closeFn
}

// newService builds the authenticated client and the collection service.
func (o *options) newService(ctx context.Context) (*freshbooks.Service, func(), error) {
	store, closeStore := o.openStore()

	clientCfg := client.DefaultConfig(store, o.cfg.ClientID, o.cfg.ClientSecret)
	clientCfg.BaseURL = o.cfg.BaseURL
	clientCfg.Timeout = o.cfg.Timeout

	c, err := client.New(ctx, clientCfg)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return freshbooks.NewService(c, o.cfg.AccountID, o.cfg.BusinessID), closeStore, nil
}

// withMetrics runs fn and then writes the metrics file, if one was asked for.
// The metrics are written whether fn failed or not.
func (o *options) withMetrics(fn func() error) error {
	err := fn()
	if o.metricsFile != "" {
		if werr := metrics.WriteTextfile(o.metricsFile); werr != nil {
			o.logger.Warn().Err(werr).Str("path", o.metricsFile).Msg("Writing metrics file failed")
		}
	}
	return err
}

// Execute runs the root command with args and returns the process exit code.
func Execute(ctx context.Context, version string, args []string, stdout, stderr io.Writer) int {
	cmd, o := newRootCmd(version)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}

	// o.logger stays a no-op until setup has configured logging.
	code := ExitCode(err)
	event := o.logger.Error().Err(err).Int("exit_code", code)
	if kind := apperr.KindOf(err); kind != nil {
		event = event.Str("error_kind", kind.Error())
	}
	event.Msg("Run failed")
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return code
}
