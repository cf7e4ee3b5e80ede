package bot_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/gymqr/bot"
	"github.com/papercomputeco/gymqr/pkg/credentials"
	"github.com/papercomputeco/gymqr/pkg/dispatcher"
	"github.com/papercomputeco/gymqr/pkg/qrimage"
)

type recordingSender struct {
	mu     sync.Mutex
	images map[int64][]byte
	texts  []string
}

func (s *recordingSender) SendImage(_ context.Context, chatID int64, png []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.images == nil {
		s.images = map[int64][]byte{}
	}
	s.images[chatID] = png
	return nil
}

func (s *recordingSender) SendText(_ context.Context, _ int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return nil
}

func newGymServer(qrStatus int) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/connect/token", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "member-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/api/v2/member/qrcode", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer member-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if qrStatus != http.StatusOK {
			w.WriteHeader(qrStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"QrCode":"exerp:checkin:123456"}`))
	})
	return httptest.NewServer(mux)
}

var _ = Describe("NewDispatcher", func() {
	var store *credentials.Store

	BeforeEach(func() {
		store = credentials.NewStore(map[int64]credentials.Credential{
			1001: {Email: "member@example.com", Password: "hunter2"},
		})
	})

	It("requires a config", func() {
		_, err := bot.NewDispatcher(nil)
		Expect(err).To(HaveOccurred())
	})

	It("requires a sender", func() {
		_, err := bot.NewDispatcher(&bot.Config{Store: store})
		Expect(err).To(HaveOccurred())
	})

	It("delivers the rendered code from the configured endpoints", func() {
		server := newGymServer(http.StatusOK)
		defer server.Close()

		sender := &recordingSender{}
		d, err := bot.NewDispatcher(&bot.Config{
			Store:       store,
			Sender:      sender,
			TokenURL:    server.URL + "/connect/token",
			APIURL:      server.URL,
			Acknowledge: true,
		})
		Expect(err).NotTo(HaveOccurred())

		res := d.Dispatch(context.Background(), dispatcher.InboundCommand{ChatID: 1001, Command: dispatcher.CommandQR})
		Expect(res.State).To(Equal(dispatcher.StateDelivered))

		expected, err := qrimage.Render("exerp:checkin:123456")
		Expect(err).NotTo(HaveOccurred())
		Expect(sender.images[1001]).To(Equal(expected))
		Expect(sender.texts).To(Equal([]string{dispatcher.DefaultAcknowledgeText}))
	})

	It("sends the failure text only when asked to", func() {
		server := newGymServer(http.StatusInternalServerError)
		defer server.Close()

		sender := &recordingSender{}
		d, err := bot.NewDispatcher(&bot.Config{
			Store:          store,
			Sender:         sender,
			TokenURL:       server.URL + "/connect/token",
			APIURL:         server.URL,
			NotifyFailures: true,
		})
		Expect(err).NotTo(HaveOccurred())

		res := d.Dispatch(context.Background(), dispatcher.InboundCommand{ChatID: 1001, Command: dispatcher.CommandQR})
		Expect(res.State).To(Equal(dispatcher.StateFailed))
		Expect(res.Kind).To(Equal(dispatcher.FailureResponse))
		Expect(sender.images).To(BeEmpty())
		Expect(sender.texts).To(Equal([]string{dispatcher.DefaultFailureText}))
	})
})
