package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	DefaultListenAddr = ":8443"
	shutdownTimeout   = 5 * time.Second
)

// WebhookServer receives updates pushed by Telegram.
type WebhookServer struct {
	app    *fiber.App
	path   string
	logger *zap.Logger
}

// NewWebhookServer creates a server that accepts updates on POST path. Only
// the path of webhookURL is used; an empty path means "/".
func NewWebhookServer(webhookURL, botName string, handle Handler, logger *zap.Logger) (*WebhookServer, error) {
	if handle == nil {
		return nil, errors.New("handler is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	path := "/"
	if webhookURL != "" {
		parsed, err := url.Parse(webhookURL)
		if err != nil {
			return nil, fmt.Errorf("parsing webhook url: %w", err)
		}
		if parsed.Path != "" {
			path = parsed.Path
		}
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Post(path, updateHandler(botName, handle, logger))

	return &WebhookServer{app: app, path: path, logger: logger}, nil
}

// Path returns the route updates are accepted on.
func (s *WebhookServer) Path() string {
	return s.path
}

// App exposes the underlying fiber app.
func (s *WebhookServer) App() *fiber.App {
	return s.app
}

// Handler returns the server as a net/http handler, for hosting updates
// behind an existing http.Server or a serverless function runtime instead of
// Serve.
func (s *WebhookServer) Handler() http.Handler {
	return adaptor.FiberApp(s.app)
}

// Serve listens on addr until ctx is canceled, then shuts down gracefully.
func (s *WebhookServer) Serve(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultListenAddr
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("webhook listener started", zap.String("addr", addr), zap.String("path", s.path))
		errCh <- s.app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("webhook listener: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down webhook listener: %w", err)
	}
	return nil
}

// updateHandler always acknowledges decodable updates so Telegram does not
// redeliver them; the dispatch itself happens in handle.
func updateHandler(botName string, handle Handler, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var update tgbotapi.Update
		if err := c.BodyParser(&update); err != nil {
			logger.Warn("decoding webhook update", zap.Error(err))
			return c.Status(fiber.StatusBadRequest).SendString("invalid update")
		}

		if cmd, ok := ParseUpdate(update, botName); ok {
			handle(cmd)
		} else {
			logger.Debug("skipping update", zap.Int("update_id", update.UpdateID))
		}

		return c.SendStatus(fiber.StatusOK)
	}
}

// SetWebhook registers webhookURL with Telegram.
func (c *Client) SetWebhook(webhookURL string) error {
	wh, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return fmt.Errorf("parsing webhook url: %w", err)
	}
	if _, err := c.api.Request(wh); err != nil {
		return fmt.Errorf("setting webhook: %w", err)
	}
	return nil
}

// DeleteWebhook removes the registered webhook so polling works again.
func (c *Client) DeleteWebhook() error {
	if _, err := c.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("deleting webhook: %w", err)
	}
	return nil
}

// WebhookInfo returns the current webhook registration.
func (c *Client) WebhookInfo() (tgbotapi.WebhookInfo, error) {
	info, err := c.api.GetWebhookInfo()
	if err != nil {
		return tgbotapi.WebhookInfo{}, fmt.Errorf("getting webhook info: %w", err)
	}
	return info, nil
}
