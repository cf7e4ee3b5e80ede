package webhookcmder

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/gymqr/pkg/credentials"
	"github.com/papercomputeco/gymqr/pkg/telegram"
)

type fakeBotAPI struct {
	requested []tgbotapi.Chattable
	info      tgbotapi.WebhookInfo
}

func (f *fakeBotAPI) Send(tgbotapi.Chattable) (tgbotapi.Message, error) {
	return tgbotapi.Message{}, nil
}

func (f *fakeBotAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requested = append(f.requested, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeBotAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (f *fakeBotAPI) StopReceivingUpdates() {}

func (f *fakeBotAPI) GetWebhookInfo() (tgbotapi.WebhookInfo, error) {
	return f.info, nil
}

var _ = Describe("Webhook Command", func() {
	var (
		tmpDir      string
		secretsPath string
		api         *fakeBotAPI
		usedToken   string
		origClient  func(string, *zap.Logger) (*telegram.Client, error)
	)

	newCmd := func(args ...string) (*cobra.Command, *bytes.Buffer) {
		cmd := NewWebhookCmd()
		out := &bytes.Buffer{}
		cmd.SetOut(out)
		cmd.SilenceUsage = true
		cmd.PersistentFlags().String("secrets", "", "Path to the secrets file")
		cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
		cmd.SetArgs(append(args, "--secrets", secretsPath))
		return cmd, out
	}

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		secretsPath = filepath.Join(tmpDir, "secrets.json")
		Expect(credentials.NewManager(secretsPath).SetBotToken("123:abc")).To(Succeed())

		api = &fakeBotAPI{}
		usedToken = ""
		origClient = newBotClient
		newBotClient = func(token string, log *zap.Logger) (*telegram.Client, error) {
			usedToken = token
			return telegram.NewClientWithAPI(api, "gym_bot", log), nil
		}
	})

	AfterEach(func() {
		newBotClient = origClient
	})

	Describe("NewWebhookCmd", func() {
		It("creates a command with expected properties", func() {
			cmd := NewWebhookCmd()
			Expect(cmd.Use).To(Equal("webhook"))
			Expect(cmd.Short).NotTo(BeEmpty())
			for _, name := range []string{"enable", "disable", "info", "webhook-url"} {
				Expect(cmd.Flags().Lookup(name)).NotTo(BeNil(), name)
			}
		})
	})

	Describe("flag validation", func() {
		It("requires exactly one action", func() {
			cmd, _ := newCmd()
			Expect(cmd.Execute()).To(MatchError(ContainSubstring("exactly one of")))

			cmd, _ = newCmd("--enable", "--disable", "--webhook-url", "https://bot.example.com/hook")
			Expect(cmd.Execute()).To(MatchError(ContainSubstring("exactly one of")))
		})

		It("requires a url to enable", func() {
			cmd, _ := newCmd("--enable")
			Expect(cmd.Execute()).To(MatchError(ContainSubstring("--webhook-url")))
		})
	})

	It("registers the webhook with the stored bot token", func() {
		cmd, out := newCmd("--enable", "--webhook-url", "https://bot.example.com/hook")
		Expect(cmd.Execute()).To(Succeed())

		Expect(usedToken).To(Equal("123:abc"))
		Expect(api.requested).To(HaveLen(1))
		Expect(api.requested[0]).To(BeAssignableToTypeOf(tgbotapi.WebhookConfig{}))
		Expect(out.String()).To(ContainSubstring("https://bot.example.com/hook"))
	})

	It("removes the webhook", func() {
		cmd, out := newCmd("--disable")
		Expect(cmd.Execute()).To(Succeed())

		Expect(api.requested).To(ConsistOf(BeAssignableToTypeOf(tgbotapi.DeleteWebhookConfig{})))
		Expect(out.String()).To(ContainSubstring("Webhook removed"))
	})

	It("shows the registration", func() {
		api.info = tgbotapi.WebhookInfo{URL: "https://bot.example.com/hook", PendingUpdateCount: 3, LastErrorMessage: "timeout"}

		cmd, out := newCmd("--info")
		Expect(cmd.Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("https://bot.example.com/hook"))
		Expect(out.String()).To(ContainSubstring("3"))
		Expect(out.String()).To(ContainSubstring("timeout"))
	})

	It("reports polling mode when no webhook is set", func() {
		cmd, out := newCmd("--info")
		Expect(cmd.Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("No webhook registered"))
	})

	It("fails with a configuration error without a bot token", func() {
		Expect(os.Remove(secretsPath)).To(Succeed())

		cmd, _ := newCmd("--info")
		err := cmd.Execute()

		var cfgErr *credentials.ConfigurationError
		Expect(errors.As(err, &cfgErr)).To(BeTrue())
		Expect(usedToken).To(BeEmpty())
	})
})
