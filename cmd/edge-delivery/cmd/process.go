package cmd

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/version"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/telemetry-sdk/edge-delivery/internal/common"
	"github.com/telemetry-sdk/edge-delivery/internal/config"
	"github.com/telemetry-sdk/edge-delivery/internal/domain/entity"
	"github.com/telemetry-sdk/edge-delivery/internal/domain/repo/droppedhit"
	"github.com/telemetry-sdk/edge-delivery/internal/domain/repo/hitqueue"
	"github.com/telemetry-sdk/edge-delivery/internal/domain/repo/properties"
	"github.com/telemetry-sdk/edge-delivery/internal/domain/repo/sharedstate"
	"github.com/telemetry-sdk/edge-delivery/internal/factory"
	"github.com/telemetry-sdk/edge-delivery/internal/hit"
	"github.com/telemetry-sdk/edge-delivery/internal/log"
	"github.com/telemetry-sdk/edge-delivery/internal/network"
	"github.com/telemetry-sdk/edge-delivery/internal/processing"
	"github.com/telemetry-sdk/edge-delivery/internal/queue"
	"github.com/telemetry-sdk/edge-delivery/internal/registry"
	"github.com/telemetry-sdk/edge-delivery/internal/state"
	"github.com/telemetry-sdk/edge-delivery/pkg/pipeline"
)

var conf *config.Config

// processCmd represents the process command
var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Consume application events, queue them durably and send them to the edge endpoint",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		conf, err = config.Parse(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to parse config %s: %w", cfgFile, err)
		}

		// Init logger
		err = log.Init(conf.Logs)
		if err != nil {
			return fmt.Errorf("failed to init logger: %w", err)
		}

		logger := log.Logger()

		// Dump generic information
		logger.Info("Starting edge delivery",
			"version", version.Info(),
			"buildContext", version.BuildContext(),
		)
		logger.Info("Using config", "config", fmt.Sprintf("%+v", conf))

		if conf.Edge.ConfigID == "" {
			return errors.New("edge.configId is required")
		}

		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		logger := log.Logger()

		// Set max procs based on cpu limits
		err := common.SetMaxProcs()
		if err != nil {
			logger.Error(err, "failed to set max procs")

			return
		}

		// Set max memory
		err = common.SetMemLimit()
		if err != nil {
			logger.Error(err, "failed to set mem limit")

			return
		}

		// Listen to sigterm and interrupt signals
		ctx := common.SetupSignalHandler(context.Background())

		clock := clockwork.NewRealClock()
		promRegistry := prometheus.NewRegistry()

		// External clients

		valkeyClient, closeValkey, err := factory.CreateValkeyClient(ctx, conf.Valkey)
		if err != nil {
			logger.Error(err, "failed to create valkey client")

			return
		}
		defer func() {
			err := closeValkey(context.Background())
			if err != nil {
				logger.Error(err, "failed to close valkey client")
			}
		}()

		kafkaConsumer, err := factory.CreateKafkaConsumer(conf.Kafka)
		if err != nil {
			logger.Error(err, "failed to create kafka consumer")

			return
		}
		defer func() {
			err := kafkaConsumer.Close()
			if err != nil {
				logger.Error(err, "failed to close kafka consumer")
			}
		}()

		// Stores

		hitStore := hitqueue.NewValkeyRepo(valkeyClient)
		props := properties.NewValkeyRepo(valkeyClient)
		publisher := sharedstate.NewValkeyPublisher(valkeyClient)

		// Extension state and bootstrap

		hub := state.NewStaticHub(state.HubConfig{
			SDKVersion:        conf.Hub.SDKVersion,
			WrapperType:       conf.Hub.WrapperType,
			ConsentRegistered: conf.Hub.ConsentRegistered,
		})

		ext := state.NewExtension(hub, publisher, props, clock).WithLogger(logger)

		err = bootExtension(ctx, ext, clock, conf.Hub.BootRetryInterval)
		if err != nil {
			logger.Error(err, "failed to boot extension")

			return
		}

		if conf.Consent.Default != "" {
			ext.SetCollectConsent(entity.ConsentStatus(conf.Consent.Default))
		}

		// Hit processor and durable queue

		completion := registry.NewCompletion()
		transport := network.NewHTTPTransport(conf.Edge.RequestTimeout)

		processor, err := hit.NewProcessor(ext, completion, transport, hit.Config{Domain: conf.Edge.Domain}).
			WithLogger(logger).
			WithMetrics(promRegistry, "edge")
		if err != nil {
			logger.Error(err, "failed to create hit processor")

			return
		}

		backoff := queue.BackoffConfig{
			BaseDelay: conf.Queue.RetryBaseDelay,
			MaxDelay:  conf.Queue.RetryMaxDelay,
		}

		workQueue, err := queue.New(hitStore, processor, backoff, clock).
			WithLogger(logger).
			WithJitter(rand.New(rand.NewSource(time.Now().UnixNano()))).
			WithMetrics(promRegistry, "edge")
		if err != nil {
			logger.Error(err, "failed to create queue")

			return
		}

		// Dead letter archive

		var errorMain pipeline.ErrorProcessing = processing.NewLogError(logger)

		if conf.DeadLetterQueue.Bucket != "" {
			s3Client, err := factory.CreateS3Client(ctx, conf.DeadLetterQueue)
			if err != nil {
				logger.Error(err, "failed to create s3 client")

				return
			}

			dlqWriter := droppedhit.NewS3Writer(s3Client, clock, conf.DeadLetterQueue.Bucket, conf.DeadLetterQueue.KeyPrefix)

			workQueue.WithDroppedHitWriter(dlqWriter)

			errorMain = processing.NewMainError(dlqWriter)
		}

		// Ingest pipeline

		edgeConfiguration := map[string]any{
			"edge.configId": conf.Edge.ConfigID,
			"edge.domain":   conf.Edge.Domain,
		}

		mainProcessing := processing.NewMain(workQueue, completion, edgeConfiguration, clock).WithLogger(logger)

		decorated, err := factory.DecorateProcessing(mainProcessing, promRegistry, clock)
		if err != nil {
			logger.Error(err, "failed to decorate processing")

			return
		}

		decoratedError, err := factory.DecorateErrorProcessing(errorMain, promRegistry, clock)
		if err != nil {
			logger.Error(err, "failed to decorate error processing")

			return
		}

		runner := pipeline.NewRunner(kafkaConsumer, []string{conf.Kafka.Consumer.Topic}, decorated, decoratedError).WithLogger(logger)

		// Run everything

		metricsServer := factory.CreatePrometheusServer(conf.Metrics, promRegistry)

		group, groupCtx := errgroup.WithContext(ctx)

		group.Go(func() error {
			err := metricsServer.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server failed: %w", err)
			}

			return nil
		})

		group.Go(func() error {
			<-groupCtx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.GracefulDuration)
			defer cancel()

			return metricsServer.Shutdown(shutdownCtx)
		})

		group.Go(func() error {
			err := workQueue.Run(groupCtx)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			return nil
		})

		group.Go(func() error {
			err := runner.Start(groupCtx)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			return nil
		})

		err = group.Wait()
		if err != nil {
			logger.Error(err, "processing failed")

			return
		}

		logger.V(2).Info("Processing stopped")
	},
}

// bootExtension retries BootupIfNeeded while the hub dependency still reports
// a pending shared state.
func bootExtension(ctx context.Context, ext *state.Extension, clock clockwork.Clock, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}

	for {
		booted, err := ext.BootupIfNeeded(ctx)
		if err != nil {
			return err
		}

		if booted {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clock.After(interval):
		}
	}
}

func init() {
	rootCmd.AddCommand(processCmd)
}
