package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/SteelMorgan/offsetq/internal/config"
	"github.com/SteelMorgan/offsetq/internal/domain"
	"github.com/SteelMorgan/offsetq/internal/journal"
	"github.com/SteelMorgan/offsetq/internal/observability"
	"github.com/SteelMorgan/offsetq/internal/queue"
	"github.com/SteelMorgan/offsetq/internal/service"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogFile)

	shutdown, err := observability.InitTracer(observability.TracerConfig{
		ServiceName:    "offsetq",
		ServiceVersion: version,
		Endpoint:       cfg.OTLPEndpoint,
		Protocol:       cfg.OTLPProtocol,
		Enabled:        cfg.TracingEnabled,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize tracer")
	} else {
		defer shutdown(context.Background())
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rootCmd := &cobra.Command{
		Use:           "offsetq",
		Short:         "Consume line-delimited queue files",
		Long:          "offsetq reads records from flat text queue files and remembers how far it got in a header at the start of each file.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(
		newReadCommand(cfg),
		newStatCommand(),
		newWatchCommand(cfg),
		newHistoryCommand(cfg),
	)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func newReadCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read <path>",
		Short: "Consume records from a queue file and print them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			deleteOnEmpty, _ := cmd.Flags().GetBool("delete-on-empty")
			width, _ := cmd.Flags().GetInt("header-width")

			p, err := queue.Open(cmd.Context(), args[0],
				queue.WithLimit(limit),
				queue.WithDeleteOnEmpty(deleteOnEmpty),
				queue.WithHeaderWidth(width),
			)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var writeErr error
			for record := range p.Records() {
				if _, writeErr = io.WriteString(out, record); writeErr != nil {
					break
				}
			}
			passErr := p.Close()

			journalPass(cmd.Context(), cfg, p.Summary(), passErr)

			if passErr != nil {
				return passErr
			}
			return writeErr
		},
	}
	cmd.Flags().IntP("limit", "n", -1, "Maximum records to consume (negative for all)")
	cmd.Flags().Bool("delete-on-empty", false, "Remove the file once every record is consumed")
	cmd.Flags().Int("header-width", 0, "Fixed header width (0 derives it from the file length)")
	return cmd
}

func newStatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <path>",
		Short: "Show the consumed position of a queue file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := queue.Inspect(args[0])
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "path\t%s\n", state.Path)
			fmt.Fprintf(w, "size\t%d\n", state.FileSize)
			fmt.Fprintf(w, "offset\t%d\n", state.Offset)
			fmt.Fprintf(w, "remaining\t%d\n", state.Remaining)
			fmt.Fprintf(w, "header\t%t\n", state.HasHeader)
			fmt.Fprintf(w, "header width\t%d\n", state.HeaderWidth)
			fmt.Fprintf(w, "exhausted\t%t\n", state.Exhausted)
			return w.Flush()
		},
	}
}

func newWatchCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Drain every configured queue on an interval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var store journal.Store
			if cfg.JournalEnabled {
				bolt, err := journal.NewBoltDBStore(cfg.JournalPath)
				if err != nil {
					return err
				}
				defer bolt.Close()
				store = bolt
			}

			svc, err := service.NewDrainService(cfg, store, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			log.Info().
				Str("version", version).
				Str("queues_file", cfg.QueuesFile).
				Msg("Starting offsetq watch")

			err = svc.Start(cmd.Context())
			if err == context.Canceled {
				log.Info().Msg("Received shutdown signal")
				err = nil
			}

			if stopErr := svc.Stop(); stopErr != nil {
				log.Error().Err(stopErr).Msg("Error during shutdown")
			}
			log.Info().Msg("Watch stopped")
			return err
		},
	}
}

func newHistoryCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "history [path]",
		Short: "List journaled passes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cfg.JournalEnabled {
				return fmt.Errorf("journal is disabled (OFFSETQ_JOURNAL_ENABLED=false)")
			}

			store, err := journal.NewBoltDBStore(cfg.JournalPath)
			if err != nil {
				return err
			}
			defer store.Close()

			var path string
			if len(args) == 1 {
				path = args[0]
			}

			passes, err := store.List(cmd.Context(), path)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tFILE\tFROM\tTO\tRECORDS\tSTATE")
			for _, p := range passes {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n",
					p.Timestamp.Format(time.DateTime), p.FilePath, p.FromOffset, p.ToOffset, p.Records, passState(p))
			}
			return w.Flush()
		},
	}
}

// journalPass records an ad-hoc pass. Journal failures never fail the command.
func journalPass(ctx context.Context, cfg *config.Config, summary queue.Summary, passErr error) {
	if !cfg.JournalEnabled || !journal.Worth(summary, passErr) {
		return
	}

	store, err := journal.NewBoltDBStore(cfg.JournalPath)
	if err != nil {
		log.Warn().Err(err).Msg("Journal unavailable, pass not recorded")
		return
	}
	defer store.Close()

	if err := store.Record(ctx, journal.PassFromSummary("", summary, passErr)); err != nil {
		log.Warn().Err(err).Msg("Failed to journal pass")
	}
}

func passState(p domain.PassRecord) string {
	switch {
	case p.Error != "":
		return "failed: " + p.Error
	case p.Deleted:
		return "deleted"
	case p.Exhausted:
		return "exhausted"
	default:
		return "partial"
	}
}
