// Package bot assembles a dispatcher from loaded secrets and a chat
// transport.
package bot

import (
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/papercomputeco/gymqr/pkg/credentials"
	"github.com/papercomputeco/gymqr/pkg/dispatcher"
	"github.com/papercomputeco/gymqr/pkg/publisher"
	"github.com/papercomputeco/gymqr/pkg/puregym"
	"github.com/papercomputeco/gymqr/pkg/qrimage"
)

// Config holds everything needed to build a Dispatcher.
type Config struct {
	Store  *credentials.Store
	Sender dispatcher.Sender

	// TokenURL and APIURL override the production endpoints.
	TokenURL string
	APIURL   string

	// HTTPTimeout bounds each remote call. Zero uses the client default.
	HTTPTimeout time.Duration

	Publisher      publisher.Publisher
	Logger         *zap.Logger
	TracerProvider trace.TracerProvider

	Acknowledge    bool
	NotifyFailures bool
}

// NewDispatcher wires the PureGym clients and the PNG renderer into a
// dispatcher.Dispatcher.
func NewDispatcher(c *Config) (*dispatcher.Dispatcher, error) {
	if c == nil {
		return nil, errors.New("bot config is required")
	}

	var httpClient *http.Client
	if c.HTTPTimeout > 0 {
		httpClient = &http.Client{Timeout: c.HTTPTimeout}
	}

	dc := &dispatcher.Config{
		Store: c.Store,
		Tokens: puregym.NewAuthClient(puregym.AuthConfig{
			TokenURL:   c.TokenURL,
			HTTPClient: httpClient,
		}),
		QRCodes: puregym.NewQRFetcher(puregym.FetcherConfig{
			BaseURL:    c.APIURL,
			HTTPClient: httpClient,
		}),
		Renderer:       qrimage.New(),
		Sender:         c.Sender,
		Publisher:      c.Publisher,
		Logger:         c.Logger,
		TracerProvider: c.TracerProvider,
	}
	if c.Acknowledge {
		dc.AcknowledgeText = dispatcher.DefaultAcknowledgeText
	}
	if c.NotifyFailures {
		dc.FailureText = dispatcher.DefaultFailureText
	}

	return dispatcher.New(dc)
}
