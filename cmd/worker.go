package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"example.com/backstage/services/fleet/messaging"
	"example.com/backstage/services/fleet/projections"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long:  `Start the background worker to consume handheld scan commands from Azure Service Bus and project outbox events into Elasticsearch`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	g, ctx := errgroup.WithContext(ctx)
	started := 0

	if cfg.Azure.QueueConnStr == "" {
		log.Warn().Msg("Azure Service Bus connection string not provided, command consumer disabled")
	} else {
		azureClient, err := messaging.NewAzureClient(cfg.Azure)
		if err != nil {
			return err
		}
		defer func() {
			if err := azureClient.Close(context.Background()); err != nil {
				log.Error().Err(err).Msg("Failed to close Azure Service Bus client")
			}
		}()

		processor := messaging.NewProcessor(rt.handlers.Deliveries, rt.handlers.Containers, rt.metrics, rt.tracer)
		g.Go(func() error {
			log.Info().Str("queue", cfg.Azure.CommandQueueName).Msg("Starting Azure Service Bus processor")
			return azureClient.StartConsumers(ctx, cfg.Azure.CommandQueueName, processor)
		})
		started++
	}

	elasticClient, err := projections.NewElasticsearchClient(cfg.Elastic)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, outbox projection disabled")
	} else {
		if err := projections.EnsureIndices(ctx, elasticClient, cfg.Elastic); err != nil {
			return err
		}

		projector := projections.NewProjector(projections.NewElasticIndexer(elasticClient), cfg.Elastic)
		eventProcessor := projections.NewEventProcessor(rt.store, projector, cfg.Worker.BatchSize, rt.metrics, rt.tracer).
			WithMaxAttempts(cfg.Worker.MaxAttempts)

		g.Go(func() error {
			scheduler, err := gocron.NewScheduler()
			if err != nil {
				return err
			}

			_, err = scheduler.NewJob(
				gocron.DurationJob(cfg.Worker.ProjectionInterval),
				gocron.NewTask(func() {
					n, err := eventProcessor.ProcessBatch(ctx)
					if err != nil && ctx.Err() == nil {
						log.Error().Err(err).Msg("Failed to process event batch")
						return
					}
					if n > 0 {
						log.Debug().Int("projected", n).Msg("Projected outbox events")
					}
				}),
				gocron.WithSingletonMode(gocron.LimitModeReschedule),
			)
			if err != nil {
				return err
			}

			log.Info().Dur("interval", cfg.Worker.ProjectionInterval).Msg("Starting outbox projector")
			scheduler.Start()

			<-ctx.Done()

			return scheduler.Shutdown()
		})
		started++
	}

	if started == 0 {
		return errors.New("worker has nothing to run: configure azure.queue_conn_str or elastic.url")
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}
