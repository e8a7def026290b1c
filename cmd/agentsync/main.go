package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/vschool/agentsync/internal/crawler"
	"github.com/vschool/agentsync/internal/extract"
	"github.com/vschool/agentsync/internal/gateway"
	"github.com/vschool/agentsync/internal/ledger"
	"github.com/vschool/agentsync/internal/orchestrator"
	"github.com/vschool/agentsync/internal/storage"
	"github.com/vschool/agentsync/internal/surface"
	"github.com/vschool/agentsync/pkg/config"
	"go.uber.org/zap"
)

var (
	configPath string

	flagAttach     bool
	flagHeadless   bool
	flagLimit      int
	flagPort       int
	flagLoop       bool
	flagContinuous bool
	flagDelay      int
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "agentsync",
		Short:         "Synchronize Business Suite conversation attribution into the CRM",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Discover conversations and deliver sender attribution",
		RunE:  runSync,
	}
	syncCmd.Flags().BoolVar(&flagAttach, "attach", false, "attach to a running Chrome over CDP instead of launching one")
	syncCmd.Flags().BoolVar(&flagHeadless, "headless", false, "run the launched browser headless")
	syncCmd.Flags().IntVar(&flagLimit, "limit", 9999, "maximum conversations to process in one pass")
	syncCmd.Flags().IntVar(&flagPort, "port", 9222, "CDP port for --attach")
	syncCmd.Flags().BoolVar(&flagLoop, "loop", false, "repeat the pass forever with --delay between rounds")
	syncCmd.Flags().BoolVar(&flagContinuous, "continuous", false, "alias for --loop")
	syncCmd.Flags().IntVar(&flagDelay, "delay", 60, "minutes between rounds when looping")

	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "Recompute session assignments over stored conversation history",
		RunE:  runSessions,
	}

	rootCmd.AddCommand(syncCmd, sessionsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applySyncFlags(cmd, cfg)

	logger, err := newLogger(cfg.Sync.Debug)
	if err != nil {
		return err
	}
	defer logger.Sync()

	cutoff, err := cfg.Sync.HistoryCutoffTime()
	if err != nil {
		return err
	}

	release, err := orchestrator.AcquireRunLock(cfg.Sync.LockPath)
	if err != nil {
		return err
	}
	defer release()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inbox, err := surface.Connect(ctx, surface.ChromeOptions{
		Attach:      cfg.Browser.Attach,
		Port:        cfg.Browser.Port,
		Headless:    cfg.Browser.Headless,
		ProfilePath: cfg.Browser.ProfilePath,
	}, logger)
	if err != nil {
		// Cannot attach or no Business Suite session: nothing downstream
		// can run without a surface.
		if errors.Is(err, surface.ErrNoSession) || errors.Is(err, surface.ErrNoInboxSurface) {
			return fmt.Errorf("browser surface unavailable: %w", err)
		}
		return err
	}
	defer inbox.Close()

	pacer := orchestrator.NewRandomPacer(
		time.Duration(cfg.Sync.MinPaceSeconds)*time.Second,
		time.Duration(cfg.Sync.MaxPaceSeconds)*time.Second,
	)

	orch := orchestrator.New(
		inbox,
		crawler.New(inbox, logger),
		ledger.NewFileStore(cfg.Sync.CachePath, cfg.Sync.AuditPath, logger),
		extract.New(logger),
		gateway.NewClient(cfg.CRM.BaseURL, nil, logger),
		pacer,
		orchestrator.Options{
			Limit:         cfg.Sync.Limit,
			HistoryCutoff: cutoff,
			Loop:          cfg.Sync.Loop,
			Delay:         time.Duration(cfg.Sync.DelayMinutes) * time.Minute,
			Debug:         cfg.Sync.Debug,
		},
		logger,
	)

	if err := orch.RunForever(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// applySyncFlags copies explicitly-set flags over the file/env config, so
// flags always win.
func applySyncFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("attach") {
		cfg.Browser.Attach = flagAttach
	}
	if cmd.Flags().Changed("headless") {
		cfg.Browser.Headless = flagHeadless
	}
	if cmd.Flags().Changed("port") {
		cfg.Browser.Port = flagPort
	}
	if cmd.Flags().Changed("limit") {
		cfg.Sync.Limit = flagLimit
	}
	if cmd.Flags().Changed("loop") || cmd.Flags().Changed("continuous") {
		cfg.Sync.Loop = flagLoop || flagContinuous
	}
	if cmd.Flags().Changed("delay") {
		cfg.Sync.DelayMinutes = flagDelay
	}
}

func runSessions(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := newLogger(cfg.Sync.Debug)
	if err != nil {
		return err
	}
	defer logger.Sync()

	var store storage.MessageStore
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStore()
	} else {
		logger.Info("Using PostgreSQL storage")
		store, err = storage.NewPostgresStore(storage.DatabaseConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
	}
	defer store.Close()

	stats, err := storage.NewPipeline(store, logger).Run()
	if err != nil {
		return err
	}

	logger.Info("Session pipeline complete",
		zap.Int("conversations", stats.Conversations),
		zap.Int("messages", stats.Messages),
		zap.Int("reassigned", stats.Reassigned))
	return nil
}
