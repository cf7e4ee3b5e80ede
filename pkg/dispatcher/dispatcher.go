// Package dispatcher authorizes inbound chat commands and runs the
// token -> qr code -> image pipeline for them.
package dispatcher

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/papercomputeco/gymqr/pkg/credentials"
	"github.com/papercomputeco/gymqr/pkg/publisher"
)

const tracerName = "github.com/papercomputeco/gymqr/pkg/dispatcher"

const (
	// DefaultAcknowledgeText is sent before the remote calls start.
	DefaultAcknowledgeText = "Calling API..."

	// DefaultFailureText is sent when FailureText is enabled.
	DefaultFailureText = "Sorry, the QR code could not be fetched. Please try again later."
)

// TokenFetcher exchanges a credential for a bearer token.
type TokenFetcher interface {
	FetchToken(ctx context.Context, cred credentials.Credential) (string, error)
}

// QRFetcher fetches the QR payload for a bearer token.
type QRFetcher interface {
	FetchQRCode(ctx context.Context, token string) (string, error)
}

// Renderer turns a QR payload into PNG bytes.
type Renderer interface {
	Render(payload string) ([]byte, error)
}

// Sender is the outbound chat transport. Implementations may ignore ctx
// when the underlying client cannot be canceled; telegram.Client does.
type Sender interface {
	SendImage(ctx context.Context, chatID int64, png []byte) error
	SendText(ctx context.Context, chatID int64, text string) error
}

// Config configures a Dispatcher.
type Config struct {
	Store    *credentials.Store
	Tokens   TokenFetcher
	QRCodes  QRFetcher
	Renderer Renderer
	Sender   Sender

	// Optional.
	Publisher      publisher.Publisher
	Logger         *zap.Logger
	TracerProvider trace.TracerProvider

	// AcknowledgeText is sent to authorized chats before the pipeline runs.
	// Empty disables it.
	AcknowledgeText string

	// FailureText is sent to the chat when the pipeline fails. Empty disables
	// it.
	FailureText string
}

// Result describes how a single dispatch ended.
type Result struct {
	RequestID string
	ChatID    int64
	Command   Command

	// State is terminal: StateIgnored, StateDelivered or StateFailed.
	State State

	// Stage is the last state reached before a failure.
	Stage State
	Kind  FailureKind
	Err   error

	Duration time.Duration
}

// Dispatcher runs one independent pipeline per Dispatch call. It holds no
// mutable state and is safe for concurrent use.
type Dispatcher struct {
	store     *credentials.Store
	tokens    TokenFetcher
	qrCodes   QRFetcher
	renderer  Renderer
	sender    Sender
	publisher publisher.Publisher
	logger    *zap.Logger
	tracer    trace.Tracer

	ackText     string
	failureText string
}

// New creates a Dispatcher.
func New(c *Config) (*Dispatcher, error) {
	if c == nil {
		return nil, errors.New("config is required")
	}
	if c.Store == nil {
		return nil, errors.New("credential store is required")
	}
	if c.Tokens == nil || c.QRCodes == nil {
		return nil, errors.New("token and qr code fetchers are required")
	}
	if c.Renderer == nil {
		return nil, errors.New("renderer is required")
	}
	if c.Sender == nil {
		return nil, errors.New("sender is required")
	}

	d := &Dispatcher{
		store:       c.Store,
		tokens:      c.Tokens,
		qrCodes:     c.QRCodes,
		renderer:    c.Renderer,
		sender:      c.Sender,
		publisher:   c.Publisher,
		logger:      c.Logger,
		ackText:     c.AcknowledgeText,
		failureText: c.FailureText,
	}

	if d.publisher == nil {
		d.publisher = publisher.NewNopPublisher()
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}

	tp := c.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	d.tracer = tp.Tracer(tracerName)

	return d, nil
}

// Dispatch handles cmd end to end. It never returns an error: failures are
// logged, published and reported in the Result, and no image is sent.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd InboundCommand) Result {
	start := time.Now()
	res := Result{
		RequestID: uuid.NewString(),
		ChatID:    cmd.ChatID,
		Command:   cmd.Command,
		State:     StateReceived,
	}

	log := d.logger.With(
		zap.String("request_id", res.RequestID),
		zap.Int64("chat_id", cmd.ChatID),
		zap.Stringer("command", cmd.Command),
	)

	ctx, span := d.tracer.Start(ctx, "dispatch", trace.WithAttributes(
		attribute.String("gymqr.request_id", res.RequestID),
		attribute.Int64("gymqr.chat_id", cmd.ChatID),
		attribute.String("gymqr.command", cmd.Command.String()),
	))
	defer span.End()

	log.Info("command received")

	res = d.run(ctx, log, cmd, res)
	res.Duration = time.Since(start)

	span.SetAttributes(attribute.String("gymqr.state", res.State.String()))

	switch res.State {
	case StateDelivered:
		log.Info("qr code delivered", zap.Duration("duration", res.Duration))
	case StateFailed:
		span.SetStatus(codes.Error, res.Err.Error())
		log.Error("dispatch failed",
			zap.Stringer("stage", res.Stage),
			zap.String("failure_kind", string(res.Kind)),
			zap.Duration("duration", res.Duration),
			zap.Error(res.Err),
		)
		d.notifyFailure(ctx, log, cmd.ChatID)
	}

	d.publish(ctx, log, res)

	return res
}

func (d *Dispatcher) run(ctx context.Context, log *zap.Logger, cmd InboundCommand, res Result) Result {
	if cmd.Command != CommandQR {
		log.Info("ignoring unsupported command")
		res.State = StateIgnored
		return res
	}

	auth := d.store.Lookup(cmd.ChatID)
	if auth.Status != credentials.Authorized {
		log.Info("ignoring command from unauthorized chat")
		res.State = StateIgnored
		return res
	}
	res.State = StateAuthorized

	d.acknowledge(ctx, log, cmd.ChatID)

	token, err := runStage(ctx, d.tracer, "fetch_token", func(ctx context.Context) (string, error) {
		return d.tokens.FetchToken(ctx, auth.Credential)
	})
	if err != nil {
		return fail(res, err)
	}
	res.State = StateTokenFetched

	payload, err := runStage(ctx, d.tracer, "fetch_qr", func(ctx context.Context) (string, error) {
		return d.qrCodes.FetchQRCode(ctx, token)
	})
	if err != nil {
		return fail(res, err)
	}
	res.State = StateQRFetched

	img, err := runStage(ctx, d.tracer, "render", func(context.Context) ([]byte, error) {
		return d.renderer.Render(payload)
	})
	if err != nil {
		return fail(res, err)
	}
	res.State = StateRendered

	_, err = runStage(ctx, d.tracer, "deliver", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, d.sender.SendImage(ctx, cmd.ChatID, img)
	})
	if err != nil {
		return fail(res, &DeliveryError{Err: err})
	}
	res.State = StateDelivered

	return res
}

func fail(res Result, err error) Result {
	res.Stage = res.State
	res.State = StateFailed
	res.Kind = Classify(err)
	res.Err = err
	return res
}

func runStage[T any](ctx context.Context, tracer trace.Tracer, name string, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := tracer.Start(ctx, name)
	defer span.End()

	out, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return out, err
}

func (d *Dispatcher) acknowledge(ctx context.Context, log *zap.Logger, chatID int64) {
	if d.ackText == "" {
		return
	}
	if err := d.sender.SendText(ctx, chatID, d.ackText); err != nil {
		log.Warn("sending acknowledgment", zap.Error(err))
	}
}

func (d *Dispatcher) notifyFailure(ctx context.Context, log *zap.Logger, chatID int64) {
	if d.failureText == "" {
		return
	}
	if err := d.sender.SendText(ctx, chatID, d.failureText); err != nil {
		log.Warn("sending failure notice", zap.Error(err))
	}
}

func (d *Dispatcher) publish(ctx context.Context, log *zap.Logger, res Result) {
	event, err := publisher.NewEvent(publisher.Outcome{
		RequestID:   res.RequestID,
		ChatID:      res.ChatID,
		Command:     res.Command.String(),
		State:       res.State.String(),
		FailureKind: string(res.Kind),
		Err:         res.Err,
		Duration:    res.Duration,
	})
	if err != nil {
		log.Warn("building dispatch event", zap.Error(err))
		return
	}

	if err := d.publisher.Publish(ctx, event); err != nil {
		log.Warn("publishing dispatch event", zap.Error(err))
	}
}
