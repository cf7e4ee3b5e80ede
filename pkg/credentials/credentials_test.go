package credentials_test

import (
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/gymqr/pkg/credentials"
)

const secretsFixture = `{
  "bot_token": "123456:bot-token",
  "chat_credentials": {
    "1001": {"email": "alice@example.com", "password": "alice-pw"},
    "-2002": {"email": "bob@example.com", "password": "bob-pw"}
  }
}`

const duplicateChatFixture = `{
  "bot_token": "123456:bot-token",
  "chat_credentials": {
    "7": {"email": "alice@example.com", "password": "alice-pw"},
    "+7": {"email": "mallory@example.com", "password": "mallory-pw"}
  }
}`

var _ = Describe("Manager", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "secrets-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("NewManager", func() {
		It("uses the given path", func() {
			path := filepath.Join(tmpDir, "secrets.json")
			mgr := credentials.NewManager(path)
			Expect(mgr.GetTarget()).To(Equal(path))
		})

		It("defaults to secrets.json", func() {
			mgr := credentials.NewManager("")
			Expect(mgr.GetTarget()).To(Equal(credentials.DefaultSecretsFile))
		})
	})

	Describe("Load", func() {
		It("returns empty secrets when no file exists", func() {
			mgr := credentials.NewManager(filepath.Join(tmpDir, "secrets.json"))

			secrets, err := mgr.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(secrets).NotTo(BeNil())
			Expect(secrets.ChatCredentials).To(BeEmpty())
		})

		It("loads an existing JSON file", func() {
			path := filepath.Join(tmpDir, "secrets.json")
			Expect(os.WriteFile(path, []byte(secretsFixture), 0o600)).To(Succeed())

			secrets, err := credentials.NewManager(path).Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(secrets.BotToken).To(Equal("123456:bot-token"))
			Expect(secrets.ChatCredentials).To(HaveKey("1001"))
			Expect(secrets.ChatCredentials["1001"].Email).To(Equal("alice@example.com"))
		})

		It("loads an existing TOML file", func() {
			data := `bot_token = "123456:bot-token"

[chat_credentials.1001]
email = "alice@example.com"
password = "alice-pw"
`
			path := filepath.Join(tmpDir, "secrets.toml")
			Expect(os.WriteFile(path, []byte(data), 0o600)).To(Succeed())

			secrets, err := credentials.NewManager(path).Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(secrets.BotToken).To(Equal("123456:bot-token"))
			Expect(secrets.ChatCredentials["1001"].Password).To(Equal("alice-pw"))
		})

		It("returns error for malformed JSON", func() {
			path := filepath.Join(tmpDir, "secrets.json")
			Expect(os.WriteFile(path, []byte("{not json"), 0o600)).To(Succeed())

			secrets, err := credentials.NewManager(path).Load()
			Expect(err).To(HaveOccurred())
			Expect(secrets).To(BeNil())
		})
	})

	Describe("Save", func() {
		It("persists secrets with restricted permissions", func() {
			path := filepath.Join(tmpDir, "secrets.json")
			mgr := credentials.NewManager(path)

			err := mgr.Save(&credentials.Secrets{BotToken: "tok"})
			Expect(err).NotTo(HaveOccurred())

			info, err := os.Stat(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))
		})

		It("returns error for nil secrets", func() {
			mgr := credentials.NewManager(filepath.Join(tmpDir, "secrets.json"))
			Expect(mgr.Save(nil)).NotTo(Succeed())
		})

		It("round-trips through TOML", func() {
			mgr := credentials.NewManager(filepath.Join(tmpDir, "secrets.toml"))
			Expect(mgr.SetBotToken("tok")).To(Succeed())
			Expect(mgr.SetChat(42, credentials.Credential{Email: "a@example.com", Password: "pw"})).To(Succeed())

			secrets, err := mgr.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(secrets.BotToken).To(Equal("tok"))
			Expect(secrets.ChatCredentials).To(HaveKeyWithValue("42", credentials.Credential{
				Email:    "a@example.com",
				Password: "pw",
			}))
		})
	})

	Describe("SetChat", func() {
		It("overwrites an existing chat and preserves others", func() {
			mgr := credentials.NewManager(filepath.Join(tmpDir, "secrets.json"))
			Expect(mgr.SetChat(1, credentials.Credential{Email: "old@example.com", Password: "old"})).To(Succeed())
			Expect(mgr.SetChat(2, credentials.Credential{Email: "two@example.com", Password: "two"})).To(Succeed())
			Expect(mgr.SetChat(1, credentials.Credential{Email: "new@example.com", Password: "new"})).To(Succeed())

			secrets, err := mgr.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(secrets.ChatCredentials["1"].Email).To(Equal("new@example.com"))
			Expect(secrets.ChatCredentials["2"].Email).To(Equal("two@example.com"))
		})

		It("rejects empty email or password", func() {
			mgr := credentials.NewManager(filepath.Join(tmpDir, "secrets.json"))
			Expect(mgr.SetChat(1, credentials.Credential{Password: "pw"})).NotTo(Succeed())
			Expect(mgr.SetChat(1, credentials.Credential{Email: "a@example.com"})).NotTo(Succeed())
		})
	})

	Describe("RemoveChat", func() {
		It("removes an existing chat", func() {
			mgr := credentials.NewManager(filepath.Join(tmpDir, "secrets.json"))
			Expect(mgr.SetChat(7, credentials.Credential{Email: "a@example.com", Password: "pw"})).To(Succeed())
			Expect(mgr.RemoveChat(7)).To(Succeed())

			ids, err := mgr.ListChats()
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(BeEmpty())
		})

		It("is a no-op for an unknown chat", func() {
			mgr := credentials.NewManager(filepath.Join(tmpDir, "secrets.json"))
			Expect(mgr.RemoveChat(99)).To(Succeed())
		})
	})

	Describe("ListChats", func() {
		It("rejects keys that name the same chat", func() {
			path := filepath.Join(tmpDir, "secrets.json")
			Expect(os.WriteFile(path, []byte(duplicateChatFixture), 0o600)).To(Succeed())

			ids, err := credentials.NewManager(path).ListChats()
			Expect(err).To(MatchError(ContainSubstring("both refer to chat 7")))
			Expect(ids).To(BeNil())
		})

		It("returns chat ids in ascending order", func() {
			path := filepath.Join(tmpDir, "secrets.json")
			Expect(os.WriteFile(path, []byte(secretsFixture), 0o600)).To(Succeed())

			ids, err := credentials.NewManager(path).ListChats()
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(Equal([]int64{-2002, 1001}))
		})
	})

	Describe("Open", func() {
		It("builds a store from a valid file", func() {
			path := filepath.Join(tmpDir, "secrets.json")
			Expect(os.WriteFile(path, []byte(secretsFixture), 0o600)).To(Succeed())

			cfg, err := credentials.NewManager(path).Open()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.BotToken).To(Equal("123456:bot-token"))
			Expect(cfg.Store.Len()).To(Equal(2))

			auth := cfg.Store.Lookup(-2002)
			Expect(auth.Status).To(Equal(credentials.Authorized))
			Expect(auth.Credential.Email).To(Equal("bob@example.com"))
		})

		DescribeTable("returns a ConfigurationError",
			func(contents string) {
				path := filepath.Join(tmpDir, "secrets.json")
				if contents != "" {
					Expect(os.WriteFile(path, []byte(contents), 0o600)).To(Succeed())
				}

				cfg, err := credentials.NewManager(path).Open()
				Expect(cfg).To(BeNil())

				var cfgErr *credentials.ConfigurationError
				Expect(errors.As(err, &cfgErr)).To(BeTrue())
				Expect(cfgErr.Path).To(Equal(path))
			},
			Entry("for a missing file", ""),
			Entry("for malformed JSON", `{"bot_token":`),
			Entry("for a missing bot token", `{"chat_credentials":{}}`),
			Entry("for a non-integer chat id", `{"bot_token":"t","chat_credentials":{"abc":{"email":"a","password":"b"}}}`),
			Entry("for an empty password", `{"bot_token":"t","chat_credentials":{"1":{"email":"a","password":""}}}`),
			Entry("for two keys naming the same chat", `{"bot_token":"t","chat_credentials":{"1":{"email":"a@x","password":"p"},"01":{"email":"b@x","password":"p"}}}`),
		)

		It("names both spellings of a duplicated chat id", func() {
			path := filepath.Join(tmpDir, "secrets.json")
			Expect(os.WriteFile(path, []byte(duplicateChatFixture), 0o600)).To(Succeed())

			for range 20 {
				_, err := credentials.NewManager(path).Open()
				Expect(err).To(MatchError(ContainSubstring(`chat ids "+7" and "7" both refer to chat 7`)))
			}
		})
	})
})
