// Package telegram adapts the Telegram Bot API to the dispatcher: it turns
// updates into InboundCommands, by long polling or through a webhook
// listener, and delivers images and texts back to chats.
package telegram

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/papercomputeco/gymqr/pkg/dispatcher"
)

// ImageFileName is the file name photo uploads are sent with.
const ImageFileName = "qr.png"

// API is the subset of *tgbotapi.BotAPI used by Client.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	GetWebhookInfo() (tgbotapi.WebhookInfo, error)
}

// Handler receives every command addressed to the bot.
type Handler func(cmd dispatcher.InboundCommand)

// Client is a Telegram bot. It implements dispatcher.Sender.
//
// The Bot API client has no context support, so SendImage and SendText do
// not observe ctx cancellation or deadlines; a send is bounded only by the
// library's HTTP client.
type Client struct {
	api      API
	userName string
	logger   *zap.Logger
}

var _ dispatcher.Sender = (*Client)(nil)

// NewClient authenticates with token and returns a Client. The library's own
// logging is routed through logger.
func NewClient(token string, logger *zap.Logger) (*Client, error) {
	if token == "" {
		return nil, errors.New("bot token is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := tgbotapi.SetLogger(zap.NewStdLog(logger.Named("tgbotapi"))); err != nil {
		return nil, fmt.Errorf("configuring bot logger: %w", err)
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}

	return NewClientWithAPI(api, api.Self.UserName, logger), nil
}

// NewClientWithAPI wraps an existing API. userName is the bot's username,
// used to ignore commands addressed to other bots in group chats.
func NewClientWithAPI(api API, userName string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{api: api, userName: userName, logger: logger}
}

// UserName returns the bot's username.
func (c *Client) UserName() string {
	return c.userName
}

// SendImage uploads png as a photo to chatID.
func (c *Client) SendImage(_ context.Context, chatID int64, png []byte) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: ImageFileName, Bytes: png})
	if _, err := c.api.Send(photo); err != nil {
		return fmt.Errorf("sending photo: %w", err)
	}
	return nil
}

// SendText sends a plain text message to chatID.
func (c *Client) SendText(_ context.Context, chatID int64, text string) error {
	if _, err := c.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}
