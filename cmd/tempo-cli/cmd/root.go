package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"tempo/internal/backend"
	"tempo/internal/cli"
	"tempo/internal/config"
	tlog "tempo/internal/log"
	"tempo/internal/services"
)

var (
	ownerID  string
	dbPath   string
	timezone string

	svc     *services.TimeService
	loc     *time.Location
	cleanup backend.CleanupFunc
)

var rootCmd = &cobra.Command{
	Use:   "tempo-cli",
	Short: "CLI for tracking time sections",
	Long: `tempo-cli manages categories and time sections stored in the tempo
SQLite database, and prints per-category statistics.

Every command acts on behalf of one owner, set with --owner or TEMPO_OWNER.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip initialization for help commands
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		if ownerID == "" {
			return errors.New("owner is required (use --owner or TEMPO_OWNER)")
		}

		var err error
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return fmt.Errorf("load timezone %q: %w", timezone, err)
		}

		cfg := config.Load()
		logger := tlog.New(tlog.Config{
			Level:     slog.LevelWarn,
			Component: tlog.ComponentBackend,
			Handler:   tlog.NewTextHandler(os.Stderr, slog.LevelWarn),
		})
		tlog.SetDefault(logger)

		res, err := backend.NewFactory(logger).CreateBackend(cmd.Context(), backend.Config{
			Type:         backend.SQLite,
			SQLiteDBPath: dbPath,
			AMQPURL:      cfg.AMQPURL,
			AMQPExchange: cfg.AMQPExchange,
			AMQPQueue:    cfg.AMQPQueue,
		})
		if err != nil {
			return err
		}
		cleanup = res.Cleanup
		svc = services.NewTimeService(res.Backend,
			services.WithLocation(loc),
			services.WithPublisher(res.Publisher))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if cleanup == nil {
			return nil
		}
		err := cleanup()
		cleanup = nil
		return err
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cli.LoadEnvFile()
	cfg := config.Load()
	rootCmd.PersistentFlags().StringVarP(&ownerID, "owner", "o", os.Getenv("TEMPO_OWNER"), "owner id")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", cfg.SQLiteDBPath, "path to the SQLite database")
	rootCmd.PersistentFlags().StringVar(&timezone, "timezone", cfg.Timezone, "IANA timezone for month windows and printed times")
}
