// Package credentials loads and edits the secrets file that holds the bot
// token and the per-chat gym logins, and exposes the read-only Store the
// dispatcher authorizes against.
package credentials

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultSecretsFile is used when no path is given.
const DefaultSecretsFile = "secrets.json"

// Manager manages reading and writing a secrets file. Files ending in .toml are
// encoded as TOML, everything else as JSON.
type Manager struct {
	targetPath string
}

// NewManager creates a new Manager for path, or DefaultSecretsFile when path
// is empty.
func NewManager(path string) *Manager {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultSecretsFile
	}
	return &Manager{targetPath: path}
}

func (m *Manager) isTOML() bool {
	return strings.EqualFold(filepath.Ext(m.targetPath), ".toml")
}

// Load reads the secrets file.
// Returns empty Secrets if the file does not exist.
func (m *Manager) Load() (*Secrets, error) {
	data, err := os.ReadFile(m.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Secrets{ChatCredentials: make(map[string]Credential)}, nil
		}
		return nil, fmt.Errorf("reading secrets: %w", err)
	}

	secrets := &Secrets{}
	if m.isTOML() {
		err = toml.Unmarshal(data, secrets)
	} else {
		err = json.Unmarshal(data, secrets)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing secrets: %w", err)
	}

	if secrets.ChatCredentials == nil {
		secrets.ChatCredentials = make(map[string]Credential)
	}

	return secrets, nil
}

// Save writes secrets with 0600 permissions.
func (m *Manager) Save(secrets *Secrets) error {
	if secrets == nil {
		return errors.New("cannot save nil secrets")
	}

	var buf bytes.Buffer
	if m.isTOML() {
		if err := toml.NewEncoder(&buf).Encode(secrets); err != nil {
			return fmt.Errorf("encoding secrets: %w", err)
		}
	} else {
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(secrets); err != nil {
			return fmt.Errorf("encoding secrets: %w", err)
		}
	}

	if err := os.WriteFile(m.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing secrets: %w", err)
	}

	return nil
}

// SetChat stores the credential for a chat, replacing any existing one.
func (m *Manager) SetChat(chatID int64, cred Credential) error {
	if strings.TrimSpace(cred.Email) == "" {
		return errors.New("email cannot be empty")
	}
	if cred.Password == "" {
		return errors.New("password cannot be empty")
	}

	secrets, err := m.Load()
	if err != nil {
		return err
	}

	secrets.ChatCredentials[strconv.FormatInt(chatID, 10)] = cred

	return m.Save(secrets)
}

// SetBotToken stores the chat bot token.
func (m *Manager) SetBotToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("bot token cannot be empty")
	}

	secrets, err := m.Load()
	if err != nil {
		return err
	}

	secrets.BotToken = token

	return m.Save(secrets)
}

// RemoveChat deletes the stored credential for a chat.
func (m *Manager) RemoveChat(chatID int64) error {
	secrets, err := m.Load()
	if err != nil {
		return err
	}

	delete(secrets.ChatCredentials, strconv.FormatInt(chatID, 10))

	return m.Save(secrets)
}

// ListChats returns the chat ids that have stored credentials, sorted.
func (m *Manager) ListChats() ([]int64, error) {
	secrets, err := m.Load()
	if err != nil {
		return nil, err
	}

	chats, err := parseChats(secrets.ChatCredentials)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(chats))
	for id := range chats {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids, nil
}

// GetTarget returns the path of the secrets file.
func (m *Manager) GetTarget() string {
	return m.targetPath
}

// Open loads the secrets file for serving. Unlike Load, a missing file is an
// error, and every entry must be usable. All failures are returned as a
// *ConfigurationError.
func (m *Manager) Open() (*Config, error) {
	if _, err := os.Stat(m.targetPath); err != nil {
		return nil, &ConfigurationError{Path: m.targetPath, Err: err}
	}

	secrets, err := m.Load()
	if err != nil {
		return nil, &ConfigurationError{Path: m.targetPath, Err: err}
	}

	if strings.TrimSpace(secrets.BotToken) == "" {
		return nil, &ConfigurationError{Path: m.targetPath, Err: errors.New("bot_token is required")}
	}

	chats, err := parseChats(secrets.ChatCredentials)
	if err != nil {
		return nil, &ConfigurationError{Path: m.targetPath, Err: err}
	}

	for id, cred := range chats {
		if strings.TrimSpace(cred.Email) == "" || cred.Password == "" {
			return nil, &ConfigurationError{
				Path: m.targetPath,
				Err:  fmt.Errorf("chat %d: email and password are required", id),
			}
		}
	}

	return &Config{
		BotToken: strings.TrimSpace(secrets.BotToken),
		Store:    NewStore(chats),
	}, nil
}

// parseChats converts the string keys of the secrets file to chat ids. Keys
// that spell the same id differently ("1", "01", "+1") are rejected so every
// chat maps to exactly one credential.
func parseChats(raw map[string]Credential) (map[int64]Credential, error) {
	chats := make(map[int64]Credential, len(raw))
	keys := make(map[int64]string, len(raw))
	for key, cred := range raw {
		id, err := strconv.ParseInt(strings.TrimSpace(key), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("chat id %q is not an integer", key)
		}
		if prev, dup := keys[id]; dup {
			first, second := prev, key
			if second < first {
				first, second = second, first
			}
			return nil, fmt.Errorf("chat ids %q and %q both refer to chat %d", first, second, id)
		}
		keys[id] = key
		chats[id] = cred
	}
	return chats, nil
}
