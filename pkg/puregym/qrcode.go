package puregym

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// QRCodePath is the member API endpoint returning the entry QR code.
const QRCodePath = "/api/v2/member/qrcode"

// QRCodeResponse is the body returned by QRCodePath. Only QrCode is used;
// the expiry fields are informational.
type QRCodeResponse struct {
	QrCode *string `json:"QrCode"`
}

// FetcherConfig configures a QRFetcher.
type FetcherConfig struct {
	BaseURL    string
	HTTPClient *http.Client
}

// QRFetcher retrieves the opaque QR code payload for a bearer token.
type QRFetcher struct {
	endpoint   string
	httpClient *http.Client
}

// NewQRFetcher creates a QRFetcher.
func NewQRFetcher(cfg FetcherConfig) *QRFetcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAPIBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	return &QRFetcher{
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + QRCodePath,
		httpClient: cfg.HTTPClient,
	}
}

// FetchQRCode calls the member API with token and returns the QrCode field
// unchanged. Every call hits the API.
func (f *QRFetcher) FetchQRCode(ctx context.Context, token string) (string, error) {
	const op = "fetch qr code"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("creating qr code request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", &RequestError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &RequestError{Op: op, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", &ResponseError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}

	var parsed QRCodeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &ResponseError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("parsing response: %w", err)}
	}

	if parsed.QrCode == nil {
		return "", &ResponseError{Op: op, StatusCode: resp.StatusCode, Err: errors.New("response missing QrCode")}
	}

	return *parsed.QrCode, nil
}
