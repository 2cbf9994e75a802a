package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"example.com/concertbot/config"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the notification worker",
	Long:  `Start the background worker that periodically searches concert sources and notifies subscribed users`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	deps, err := buildDependencies(cfg)
	if err != nil {
		return err
	}
	defer deps.close()

	g.Go(func() error {
		return runScheduler(ctx, cfg, deps)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}

// runScheduler drives the recurring jobs: an initial notification cycle
// shortly after startup, the regular interval cycle, and a nightly ledger
// purge that re-opens old concerts for notification.
func runScheduler(ctx context.Context, cfg config.Config, deps *dependencies) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}

	runCycle := func() {
		if err := deps.dispatcher.RunCycle(ctx); err != nil {
			log.Error().Err(err).Msg("Notification cycle failed")
		}
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(cfg.Notifier.CheckInterval),
		gocron.NewTask(runCycle),
	)
	if err != nil {
		return err
	}

	// The startup delay gives the sources and the chat API a moment before
	// the first full cycle hits them.
	_, err = scheduler.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(time.Now().Add(cfg.Notifier.StartupDelay))),
		gocron.NewTask(runCycle),
	)
	if err != nil {
		return err
	}

	_, err = scheduler.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(3, 0, 0))),
		gocron.NewTask(func() {
			if _, err := deps.ledger.PurgeOlderThan(ctx, cfg.Notifier.RetentionDays); err != nil {
				log.Error().Err(err).Msg("Failed to purge notification ledger")
			}
		}),
	)
	if err != nil {
		return err
	}

	log.Info().
		Dur("check_interval", cfg.Notifier.CheckInterval).
		Dur("startup_delay", cfg.Notifier.StartupDelay).
		Int("retention_days", cfg.Notifier.RetentionDays).
		Msg("Starting notification scheduler")

	scheduler.Start()

	<-ctx.Done()

	return scheduler.Shutdown()
}
