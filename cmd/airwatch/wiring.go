package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"airwatch/internal/config"
	"airwatch/internal/metrics"
	"airwatch/internal/notify"
	"airwatch/internal/source"
	"airwatch/internal/state"
	"airwatch/internal/telemetry"
)

// deps holds the components bound at startup. Source, sinks and the state
// backend are not hot-reloaded.
type deps struct {
	Source   source.DataSource
	State    state.Persister
	Notifier notify.Notifier
	Sink     telemetry.Sink
	Metrics  metrics.CycleMetrics

	closers closers
}

func (d *deps) Close() {
	d.closers.run()
}

// awsLoader loads the shared AWS config at most once, only when a component
// needs it.
type awsLoader struct {
	cfg    config.AWSConfig
	loaded *aws.Config
}

func (l *awsLoader) get(ctx context.Context) (aws.Config, error) {
	if l.loaded != nil {
		return *l.loaded, nil
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(l.cfg.Region)}
	if l.cfg.EndpointURL != "" {
		opts = append(opts, awsconfig.WithBaseEndpoint(l.cfg.EndpointURL))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS SDK config: %w", err)
	}
	l.loaded = &awsCfg
	return awsCfg, nil
}

func wire(ctx context.Context, cfg *config.Config, settings *config.Settings, logger *slog.Logger) (*deps, error) {
	d := &deps{}
	awsLoad := &awsLoader{cfg: cfg.AWS}

	opened, err := state.Open(ctx, state.OpenConfig{
		Backend:       settings.State.Backend,
		Path:          cfg.StatePath,
		RedisAddr:     settings.State.RedisAddr,
		RedisPassword: cfg.Secrets.RedisPassword.Unmask(),
		RedisKey:      settings.State.RedisKey,
		DatabaseURL:   cfg.Secrets.DatabaseURL.Unmask(),
		Device:        settings.DeviceName,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}
	d.closers = append(d.closers, opened.Close)
	d.State = opened.Store

	cursor := source.CursorStore(source.NewFileCursorStore(cfg.CursorPath, logger))
	if opened.Redis != nil {
		prefix := state.OpenConfig{RedisKey: settings.State.RedisKey, Device: settings.DeviceName}.KeyPrefix()
		cursor = source.NewRedisCursorStore(opened.Redis, prefix+":cursor", logger)
	}

	if d.Source, err = buildSource(settings, cursor, logger); err != nil {
		d.Close()
		return nil, err
	}
	if d.Notifier, err = buildNotifier(ctx, settings, awsLoad, logger); err != nil {
		d.Close()
		return nil, err
	}
	sink, closeSink, err := buildSink(ctx, settings, awsLoad, logger)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Sink = sink
	if closeSink != nil {
		d.closers = append(d.closers, closeSink)
	}
	if d.Metrics, err = buildMetrics(ctx, cfg, settings, awsLoad, logger); err != nil {
		d.Close()
		return nil, err
	}

	logger.Info("components initialized",
		"state", describe(stateBackend(settings), settings.State.RedisAddr),
		"telemetry", sinkKind(settings),
		"email_provider", settings.Email.Provider,
		"metrics", settings.Metrics.Enabled,
	)
	return d, nil
}

func stateBackend(settings *config.Settings) string {
	if settings.State.Backend == "" {
		return state.BackendFile
	}
	return settings.State.Backend
}

func buildSource(settings *config.Settings, cursor source.CursorStore, logger *slog.Logger) (source.DataSource, error) {
	if settings.SourceKind() == config.SourceCSV {
		return source.NewCsvCursorSource(source.CSVConfig{
			Path:   settings.DataFile,
			Cursor: cursor,
			Logger: logger,
		}), nil
	}

	w := settings.WeatherAPI
	pc := source.ProviderConfig{
		APIKey:      w.APIKey.Unmask(),
		City:        w.City,
		CountryCode: w.CountryCode,
		BaseURL:     w.BaseURL,
		Logger:      logger,
	}

	var provider source.WeatherProvider
	switch w.Provider {
	case "", "weatherapi":
		provider = source.NewWeatherAPIProvider(pc)
	case "openweathermap":
		provider = source.NewOpenWeatherMapProvider(pc)
	default:
		return nil, fmt.Errorf("unknown weather provider %q", w.Provider)
	}

	return source.NewLiveWeatherSource(provider, source.LiveWeatherConfig{
		Location: settings.Location(),
		Logger:   logger,
	}), nil
}

// buildNotifier always wires SMTP. SES is wired when selected at startup so
// AWS credentials are only required by deployments that use it.
func buildNotifier(ctx context.Context, settings *config.Settings, awsLoad *awsLoader, logger *slog.Logger) (notify.Notifier, error) {
	nc := notify.EmailNotifierConfig{
		SMTP:   notify.NewSMTPSender(notify.SMTPTimeout, logger),
		Logger: logger,
	}
	if settings.Email.Provider == notify.ProviderSES {
		awsCfg, err := awsLoad.get(ctx)
		if err != nil {
			return nil, err
		}
		nc.SES = notify.NewSESSender(awsCfg, logger)
	}
	return notify.NewEmailNotifier(nc), nil
}

// sinkKind resolves the telemetry sink. Without an explicit sink, a
// configured write key selects ThingSpeak.
func sinkKind(settings *config.Settings) string {
	if settings.Telemetry.Sink != "" {
		return settings.Telemetry.Sink
	}
	if !settings.APIKey.IsZero() {
		return telemetry.SinkThingSpeak
	}
	return telemetry.SinkNone
}

func buildSink(ctx context.Context, settings *config.Settings, awsLoad *awsLoader, logger *slog.Logger) (telemetry.Sink, func(), error) {
	t := settings.Telemetry
	device := settings.DeviceName

	switch sinkKind(settings) {
	case telemetry.SinkThingSpeak:
		return telemetry.NewThingSpeakSink(telemetry.ThingSpeakConfig{
			APIKey:  settings.APIKey.Unmask(),
			BaseURL: t.BaseURL,
			Logger:  logger,
		}), nil, nil

	case telemetry.SinkMQTT:
		client, err := telemetry.NewMQTTClient(telemetry.MQTTClientConfig{
			Broker:   t.MQTTBroker,
			ClientID: "airwatch-" + device,
			Logger:   logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return telemetry.NewMQTTSink(client, t.MQTTTopic, device, logger),
			func() { client.Disconnect(250) }, nil

	case telemetry.SinkKafka:
		if len(t.KafkaBrokers) == 0 || t.KafkaTopic == "" {
			return nil, nil, fmt.Errorf("telemetry.kafka_brokers and telemetry.kafka_topic are required for the kafka sink")
		}
		writer := telemetry.NewKafkaWriter(t.KafkaBrokers, t.KafkaTopic)
		return telemetry.NewKafkaSink(writer, device, logger),
			func() {
				if err := writer.Close(); err != nil {
					logger.Warn("failed to close kafka writer", "error", err)
				}
			}, nil

	case telemetry.SinkSQS:
		if t.SQSQueueURL == "" {
			return nil, nil, fmt.Errorf("telemetry.sqs_queue_url is required for the sqs sink")
		}
		awsCfg, err := awsLoad.get(ctx)
		if err != nil {
			return nil, nil, err
		}
		return telemetry.NewSQSSink(sqs.NewFromConfig(awsCfg), t.SQSQueueURL, device, logger), nil, nil

	default:
		return telemetry.NopSink{}, nil, nil
	}
}

func buildMetrics(ctx context.Context, cfg *config.Config, settings *config.Settings, awsLoad *awsLoader, logger *slog.Logger) (metrics.CycleMetrics, error) {
	if !settings.Metrics.Enabled {
		return metrics.Nop{}, nil
	}
	awsCfg, err := awsLoad.get(ctx)
	if err != nil {
		return nil, err
	}
	return metrics.NewCloudWatchRecorder(cloudwatch.NewFromConfig(awsCfg), cfg.Metrics.Namespace, settings.DeviceName, logger), nil
}
