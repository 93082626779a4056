package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/trigonal/intake/internal/api"
	"github.com/trigonal/intake/internal/catalog"
	"github.com/trigonal/intake/internal/config"
	"github.com/trigonal/intake/internal/domain"
	"github.com/trigonal/intake/internal/enrich"
	"github.com/trigonal/intake/internal/intake"
	"github.com/trigonal/intake/internal/notify"
	"github.com/trigonal/intake/internal/store"
	"github.com/trigonal/intake/internal/triage"
)

var (
	dbPath      string
	catalogPath string
	verbose     bool

	cfg    *config.Config
	logger *zap.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "intake",
		Short: "Consultation intake: scope inquiries and triage briefs",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return err
			}
			if dbPath == "" {
				dbPath = cfg.DBPath
			}
			if catalogPath == "" {
				catalogPath = cfg.CatalogPath
			}

			// Initialize logger
			zc := zap.NewProductionConfig()
			if verbose || cfg.LogLevel == "debug" {
				zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			logger, err = zc.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default $INTAKE_DB or intake.db)")
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "catalog YAML file (default built-in)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(catalogCmd())
	rootCmd.AddCommand(previewCmd())
	rootCmd.AddCommand(submitCmd())
	rootCmd.AddCommand(briefsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func getStore() (*store.Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	return store.New(dbPath)
}

func getCatalog() (*domain.Catalog, error) {
	return catalog.Load(catalogPath)
}

// newService wires the optional enrichment, drafting and notification steps
func newService(s *store.Store) (*intake.Service, error) {
	opts := []intake.Option{intake.WithLogger(logger)}

	if cfg.Enrich.Enabled {
		opts = append(opts, intake.WithEnricher(enrich.New(cfg.Enrich.Timeout)))
	}

	if cfg.Drafter.APIKey != "" {
		d, err := triage.NewDrafter(cfg.Drafter.APIKey, cfg.Drafter.Model)
		if err != nil {
			return nil, err
		}
		opts = append(opts, intake.WithDrafter(d))
	}

	if cfg.Email.IsConfigured() {
		m, err := notify.NewMailgunMailer(cfg.Email.MailgunDomain, cfg.Email.MailgunAPIKey, cfg.Email.FromEmail, cfg.Email.FromName)
		if err != nil {
			return nil, err
		}
		n, err := notify.NewNotifier(m, cfg.Email.Architects, logger)
		if err != nil {
			return nil, err
		}
		opts = append(opts, intake.WithNotifier(n))
	} else {
		logger.Debug("brief notifications disabled")
	}

	return intake.NewService(s, opts...), nil
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = cfg.Addr
			}

			c, err := getCatalog()
			if err != nil {
				return err
			}

			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			svc, err := newService(s)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			server := api.New(s, c, svc, addr,
				api.WithLatency(cfg.SubmitLatency),
				api.WithAllowedOrigins(cfg.AllowedOrigins),
				api.WithLogger(logger),
			)
			return server.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "server address (default $INTAKE_ADDR or :8080)")
	return cmd
}

func catalogCmd() *cobra.Command {
	var presets bool

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List domains and their features",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := getCatalog()
			if err != nil {
				return err
			}

			if presets {
				for _, p := range c.Presets() {
					fmt.Printf("%-20s %s", p.Source, joinKeys(p.Domains))
					if len(p.Features) > 0 {
						fmt.Printf("  [%s]", strings.Join(p.Features, ", "))
					}
					if p.Scale != "" || p.Timeline != "" {
						fmt.Printf("  %s %s", p.Scale, p.Timeline)
					}
					fmt.Println()
				}
				return nil
			}

			for _, d := range c.Domains() {
				fmt.Printf("%s  %s\n", d.Key, d.Label)
				for _, f := range d.Features {
					fmt.Printf("  - %-16s %s\n", f.ID, f.Label)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&presets, "presets", false, "list source presets instead")
	return cmd
}

func joinKeys(keys []domain.DomainKey) string {
	s := make([]string, len(keys))
	for i, k := range keys {
		s[i] = string(k)
	}
	return strings.Join(s, " + ")
}

func truncate(s string, max int) string {
	// Replace newlines with spaces for display
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
