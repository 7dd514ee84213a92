package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/fescue/config"
	"github.com/Ramsey-B/fescue/pkg/backfill"
	"github.com/Ramsey-B/fescue/pkg/database"
	"github.com/Ramsey-B/fescue/pkg/kafka"
	"github.com/Ramsey-B/fescue/pkg/redis"
)

func newBackfillCommand(a *app) *cobra.Command {
	var (
		after  string
		limit  int
		noLock bool
	)

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Match every profile without a valid CRM link",
		Long: "Pages through profiles in id order and runs the matcher for each one that has no valid match.\n" +
			"Rerun with --after set to the reported last_profile_id to resume an interrupted run.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.backfill(ctx, after, limit, !noLock)
		},
	}

	cmd.Flags().StringVar(&after, "after", "", "resume after this profile id")
	cmd.Flags().IntVar(&limit, "limit", 0, "stop after this many profiles (0 = all)")
	cmd.Flags().BoolVar(&noLock, "no-lock", false, "skip the redis run lock")

	return cmd
}

func (a *app) backfill(ctx context.Context, after string, limit int, useLock bool) error {
	cfg := a.cfg
	log := a.logger

	db, err := database.Connect(ctx, databaseConfig(cfg), log)
	if err != nil {
		return err
	}
	defer db.Close()

	var redisClient *redis.Client
	var locker backfill.Locker
	if useLock || cfg.StatusCacheBackend == config.StatusCacheRedis {
		redisClient, err = redis.NewClient(ctx, redisConfig(cfg), log)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		if useLock {
			locker = redis.NewLocker(redisClient, "")
		}
	}

	var producer *kafka.Producer
	if cfg.KafkaEnabled {
		producer = kafka.NewProducer(producerConfig(cfg), log)
		defer producer.Close()
	}

	c, err := wire(ctx, cfg, log, db, redisClient, producer)
	if err != nil {
		return err
	}
	defer c.matcher.Wait()

	job := backfill.NewJob(c.profiles, c.store, c.matcher, c.customers, locker, backfill.Config{
		BatchSize:  cfg.BackfillBatchSize,
		BatchPause: cfg.BackfillBatchPause,
		After:      after,
		Limit:      limit,
	}, log)

	stats, err := job.Run(ctx)
	if stats != nil {
		log.WithFields(map[string]any{
			"processed":       stats.Processed,
			"matched":         stats.Matched,
			"unmatched":       stats.Unmatched,
			"skipped":         stats.Skipped,
			"no_data":         stats.NoData,
			"failed":          stats.Failed,
			"last_profile_id": stats.LastProfileID,
		}).Info("Backfill summary")
	}
	return err
}
