package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"teamwallets/pkg/config"
	"teamwallets/pkg/dashboard"
	"teamwallets/pkg/i18n"
	"teamwallets/pkg/logging"
	"teamwallets/pkg/models"
	"teamwallets/pkg/roster"
	"teamwallets/pkg/server"
	"teamwallets/pkg/table"
	"teamwallets/pkg/tui"
	"teamwallets/pkg/watcher"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Version should be set during build
var Version = "dev"

var (
	configFlag string
	envFile    string
)

// app is everything a command needs after configuration is resolved.
type app struct {
	path   string
	cfg    config.Config
	roster []models.WalletRecord
	tr     *i18n.Translator
	logger zerolog.Logger
	closer io.Closer
}

func (a *app) Close() error { return a.closer.Close() }

func (a *app) newWatcher() *watcher.Watcher {
	return watcher.NewWatcher(a.roster, a.cfg.Chain, a.cfg.Global, a.logger)
}

// loadConfig resolves the config path, reads the file and applies environment
// overrides.
func loadConfig() (string, config.Config, error) {
	path, _, cfg, err := loadConfigLayers()
	return path, cfg, err
}

// loadConfigLayers returns the configuration as stored in the file alongside
// the same configuration with environment overrides applied.
func loadConfigLayers() (path string, file, effective config.Config, err error) {
	path, err = config.GetConfigPath(configFlag)
	if err != nil {
		return "", config.Config{}, config.Config{}, fmt.Errorf("determine config path: %w", err)
	}
	file, err = config.LoadConfigFromFile(path)
	if err != nil {
		return "", config.Config{}, config.Config{}, fmt.Errorf("load config from %s: %w", path, err)
	}
	effective = file
	effective.Addresses = append([]config.AddressConfig(nil), file.Addresses...)
	effective.Chain.RPCURLs = append([]string(nil), file.Chain.RPCURLs...)
	if err := config.ApplyEnv(&effective, envFile); err != nil {
		return "", config.Config{}, config.Config{}, err
	}
	return path, file, effective, nil
}

// loadApp validates configuration and builds the logger. logTo picks the log
// file; an empty name logs to stderr.
func loadApp(logTo func(config.Config) string) (*app, error) {
	path, cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r, err := roster.FromConfig(cfg.Addresses)
	if err != nil {
		return nil, err
	}
	logger, closer, err := logging.Setup(cfg.Global.LogLevel, logTo(cfg))
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	logger.Debug().Str("config", path).Int("wallets", len(r)).Msg("configuration loaded")
	return &app{
		path:   path,
		cfg:    cfg,
		roster: r,
		tr:     i18n.New(cfg.Global.Locale),
		logger: logger,
		closer: closer,
	}, nil
}

func configuredLogFile(cfg config.Config) string { return cfg.Global.LogFile }

func stderrOnly(config.Config) string { return "" }

// tuiLogFile keeps log output off the alternate screen.
func tuiLogFile(cfg config.Config) string {
	if cfg.Global.LogFile != "" {
		return cfg.Global.LogFile
	}
	return filepath.Join(os.TempDir(), "teamwallets.log")
}

func newRootCmd() *cobra.Command {
	var apiPort int

	rootCmd := &cobra.Command{
		Use:           "teamwallets",
		Short:         "Team wallet balances dashboard",
		Long:          `Browse the team wallets and their token balances in a sortable, paginated terminal table.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if configFlag == "" && len(args) > 0 {
				configFlag = args[0]
			}
			a, err := loadApp(tuiLogFile)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			w := a.newWatcher()
			if apiPort > 0 {
				srv := server.NewServer(w, a.cfg.Global.PageSize, a.tr.Tag(), a.logger)
				go func() {
					if err := srv.Start(ctx, apiPort); err != nil {
						a.logger.Error().Err(err).Msg("API server stopped")
					}
				}()
			}
			return tui.Start(ctx, w, a.tr, a.cfg.Global.PageSize, a.logger, Version)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Path to configuration file (.json, .yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file with TEAMWALLETS_* overrides")
	rootCmd.Flags().IntVar(&apiPort, "api-port", 0, "Also serve the HTTP API on this port")

	rootCmd.AddCommand(newServeCmd(), newListCmd(), newCheckCmd(), newRestoreCmd(), newVersionCmd())
	return rootCmd
}

func newServeCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket API without the terminal UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(configuredLogFile)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			w := a.newWatcher()
			w.Start(ctx)
			defer w.Stop()

			a.logger.Info().Int("wallets", len(a.roster)).Str("chain", a.cfg.Chain.Name).Msg("running in server mode")
			return server.NewServer(w, a.cfg.Global.PageSize, a.tr.Tag(), a.logger).Start(ctx, port)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Port for API server")
	return cmd
}

type listOptions struct {
	page      int
	sort      string
	ascending bool
	json      bool
}

func newListCmd() *cobra.Command {
	opts := listOptions{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Fetch balances once and print one page of the table",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(stderrOnly)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			sort, err := opts.sortState(cmd.Flags().Changed("ascending"))
			if err != nil {
				return err
			}

			w := a.newWatcher()
			if err := w.Refresh(cmd.Context()); err != nil {
				// Keep going with the zero table, like the dashboard does.
				a.logger.Warn().Err(err).Msg("balance fetch failed")
			}
			page := dashboard.BuildPage(w.Wallets(), sort, opts.page, a.cfg.Global.PageSize, a.tr.Tag())
			return writePage(cmd.OutOrStdout(), page, a.tr, opts.json)
		},
	}
	cmd.Flags().IntVar(&opts.page, "page", 1, "Page to print (1-based)")
	cmd.Flags().StringVar(&opts.sort, "sort", string(table.FieldBalance), "Sort field: name, address or balance")
	cmd.Flags().BoolVar(&opts.ascending, "ascending", true, "Direction flag; true lists the greatest values first")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the page as JSON")
	return cmd
}

func (o listOptions) sortState(ascendingSet bool) (table.SortState, error) {
	f, ok := table.ParseField(o.sort)
	if !ok {
		return table.SortState{}, fmt.Errorf("unknown sort field %q", o.sort)
	}
	s := table.SortState{Field: f, Ascending: true}
	if ascendingSet {
		s.Ascending = o.ascending
	}
	return s, nil
}

func writePage(out io.Writer, page dashboard.Page, tr *i18n.Translator, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(page)
	}
	_, err := fmt.Fprintf(out, "%s\n%s\n", tui.RenderTable(page, tr, -1), tui.PageLabel(page, tr))
	return err
}

func newCheckCmd() *cobra.Command {
	opts := checkOptions{}
	var noColor bool
	cmd := &cobra.Command{
		Use:     "check",
		Aliases: []string{"test"},
		Short:   "Test configuration and RPC endpoints, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if noColor {
				color.NoColor = true
			}
			path, file, cfg, err := loadConfigLayers()
			if err != nil {
				return err
			}
			report := runCheck(cmd.Context(), file, cfg, path, opts, cmd.OutOrStdout())
			if opts.json {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			}
			if !report.ValidStructure {
				return errInvalidConfig
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.json, "json", false, "Output test results as JSON")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Perform a trial run with no changes made")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	return cmd
}

func newRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Restore the newest configuration backup",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.GetConfigPath(configFlag)
			if err != nil {
				return err
			}
			backup, err := config.RestoreLastBackup(path)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Restored %s from %s\n", path, backup)
			return err
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "teamwallets version %s\n", Version)
		},
	}
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, errInvalidConfig) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
