// Package servecmder provides the serve command that runs the bot.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/papercomputeco/gymqr/bot"
	"github.com/papercomputeco/gymqr/bot/worker"
	"github.com/papercomputeco/gymqr/pkg/credentials"
	"github.com/papercomputeco/gymqr/pkg/logger"
	"github.com/papercomputeco/gymqr/pkg/publisher"
	"github.com/papercomputeco/gymqr/pkg/publisher/kafka"
	"github.com/papercomputeco/gymqr/pkg/telegram"
)

const serveLongDesc string = `Run the bot.

The secrets file is loaded once at startup; the bot refuses to start if it
is missing or invalid. By default updates are received by long polling.
With --webhook the bot registers --webhook-url with Telegram, listens on
--listen and removes the webhook again on shutdown.

Every flag can also be set from the environment with the GYMQR_ prefix,
for example GYMQR_WEBHOOK_URL or GYMQR_KAFKA_BROKERS.

Examples:
  gymqr serve
  gymqr serve --secrets secrets.toml --notify-failures
  gymqr serve --webhook --webhook-url https://bot.example.com/hook
  gymqr serve --kafka-brokers localhost:9092 --kafka-topic gymqr.dispatch`

const serveShortDesc string = "Run the bot"

const envPrefix = "GYMQR"

// settings is the resolved runtime configuration of the serve command.
type settings struct {
	SecretsPath string
	Debug       bool

	Webhook     bool
	WebhookURL  string
	Listen      string
	PollTimeout int

	Workers    int
	QueueSize  int
	JobTimeout time.Duration

	KafkaBrokers  []string
	KafkaTopic    string
	KafkaClientID string

	NotifyFailures bool
	NoAck          bool
	TokenURL       string
	APIURL         string
	HTTPTimeout    time.Duration
}

type serveCommander struct {
	settings *settings
	logger   *zap.Logger
}

func NewServeCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSettings(v, cmd)
			if err != nil {
				return err
			}

			log, err := logger.New(s.Debug)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			sc := &serveCommander{settings: s, logger: log}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return sc.run(ctx)
		},
	}

	flags := cmd.Flags()
	flags.Bool("webhook", false, "Receive updates through a webhook instead of long polling")
	flags.String("webhook-url", "", "Public URL Telegram delivers updates to (webhook mode)")
	flags.String("listen", telegram.DefaultListenAddr, "Address the webhook listener binds to")
	flags.Int("poll-timeout", telegram.DefaultPollTimeout, "Long polling timeout in seconds")
	flags.Int("workers", 4, "Number of concurrent dispatches")
	flags.Int("queue-size", 64, "Maximum number of queued commands")
	flags.Duration("job-timeout", 60*time.Second, "Upper bound for a single dispatch")
	flags.StringSlice("kafka-brokers", nil, "Kafka brokers for dispatch events (disabled when empty)")
	flags.String("kafka-topic", "gymqr.dispatch", "Kafka topic for dispatch events")
	flags.String("kafka-client-id", "gymqr", "Kafka client id")
	flags.Bool("notify-failures", false, "Tell the user when a QR code could not be fetched")
	flags.Bool("no-ack", false, "Do not send the acknowledgment message before calling the API")
	flags.String("token-url", "", "Override the identity provider token endpoint")
	flags.String("api-url", "", "Override the member API base URL")
	flags.Duration("http-timeout", 30*time.Second, "Timeout for each remote API call")

	return cmd
}

// loadSettings binds the command's flags, including the inherited
// --secrets and --debug, into v and resolves them against the environment.
func loadSettings(v *viper.Viper, cmd *cobra.Command) (*settings, error) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}

	s := &settings{
		SecretsPath:    v.GetString("secrets"),
		Debug:          v.GetBool("debug"),
		Webhook:        v.GetBool("webhook"),
		WebhookURL:     strings.TrimSpace(v.GetString("webhook-url")),
		Listen:         v.GetString("listen"),
		PollTimeout:    v.GetInt("poll-timeout"),
		Workers:        v.GetInt("workers"),
		QueueSize:      v.GetInt("queue-size"),
		JobTimeout:     v.GetDuration("job-timeout"),
		KafkaBrokers:   splitList(v.GetStringSlice("kafka-brokers")),
		KafkaTopic:     v.GetString("kafka-topic"),
		KafkaClientID:  v.GetString("kafka-client-id"),
		NotifyFailures: v.GetBool("notify-failures"),
		NoAck:          v.GetBool("no-ack"),
		TokenURL:       v.GetString("token-url"),
		APIURL:         v.GetString("api-url"),
		HTTPTimeout:    v.GetDuration("http-timeout"),
	}

	if s.SecretsPath == "" {
		s.SecretsPath = credentials.DefaultSecretsFile
	}
	if s.Webhook && s.WebhookURL == "" {
		return nil, errors.New("--webhook requires --webhook-url")
	}
	if !s.Webhook && s.WebhookURL != "" {
		return nil, errors.New("--webhook-url is only used with --webhook")
	}
	if len(s.KafkaBrokers) > 0 && s.KafkaTopic == "" {
		return nil, errors.New("--kafka-topic is required when --kafka-brokers is set")
	}

	return s, nil
}

// splitList accepts both repeated values and a single comma separated value
// as it arrives from the environment.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (sc *serveCommander) run(ctx context.Context) error {
	s := sc.settings

	cfg, err := credentials.NewManager(s.SecretsPath).Open()
	if err != nil {
		return err
	}
	sc.logger.Info("loaded secrets",
		zap.String("path", s.SecretsPath),
		zap.Int("authorized_chats", cfg.Store.Len()),
	)

	pub, err := sc.newPublisher()
	if err != nil {
		return err
	}
	defer func() {
		if err := pub.Close(); err != nil {
			sc.logger.Warn("closing publisher", zap.Error(err))
		}
	}()

	client, err := telegram.NewClient(cfg.BotToken, sc.logger)
	if err != nil {
		return err
	}

	d, err := bot.NewDispatcher(&bot.Config{
		Store:          cfg.Store,
		Sender:         client,
		TokenURL:       s.TokenURL,
		APIURL:         s.APIURL,
		HTTPTimeout:    s.HTTPTimeout,
		Publisher:      pub,
		Logger:         sc.logger,
		Acknowledge:    !s.NoAck,
		NotifyFailures: s.NotifyFailures,
	})
	if err != nil {
		return err
	}

	pool, err := worker.NewPool(&worker.Config{
		Dispatcher: d,
		Logger:     sc.logger,
		NumWorkers: s.Workers,
		QueueSize:  s.QueueSize,
		JobTimeout: s.JobTimeout,
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	handle := func(cmd worker.Job) { pool.Enqueue(cmd) }

	sc.logger.Info("bot started",
		zap.String("bot", client.UserName()),
		zap.Bool("webhook", s.Webhook),
	)

	if s.Webhook {
		err = sc.serveWebhook(ctx, client, handle)
	} else {
		err = client.Poll(ctx, s.PollTimeout, handle)
	}

	sc.logger.Info("bot stopping")
	return err
}

func (sc *serveCommander) serveWebhook(ctx context.Context, client *telegram.Client, handle telegram.Handler) error {
	s := sc.settings

	server, err := telegram.NewWebhookServer(s.WebhookURL, client.UserName(), handle, sc.logger)
	if err != nil {
		return err
	}

	if err := client.SetWebhook(s.WebhookURL); err != nil {
		return err
	}
	sc.logger.Info("webhook registered", zap.String("url", s.WebhookURL))

	defer func() {
		if err := client.DeleteWebhook(); err != nil {
			sc.logger.Warn("removing webhook", zap.Error(err))
			return
		}
		sc.logger.Info("webhook removed")
	}()

	return server.Serve(ctx, s.Listen)
}

func (sc *serveCommander) newPublisher() (publisher.Publisher, error) {
	s := sc.settings
	if len(s.KafkaBrokers) == 0 {
		return publisher.NewNopPublisher(), nil
	}

	pub, err := kafka.NewPublisher(kafka.Config{
		Brokers:  s.KafkaBrokers,
		Topic:    s.KafkaTopic,
		ClientID: s.KafkaClientID,
	})
	if err != nil {
		return nil, fmt.Errorf("creating kafka publisher: %w", err)
	}

	sc.logger.Info("publishing dispatch events",
		zap.Strings("brokers", s.KafkaBrokers),
		zap.String("topic", s.KafkaTopic),
	)
	return pub, nil
}
