package credentials

// Secrets represents the on-disk secrets document.
type Secrets struct {
	BotToken        string                `json:"bot_token" toml:"bot_token"`
	ChatCredentials map[string]Credential `json:"chat_credentials" toml:"chat_credentials"`
}

// Credential is a single member's login for the gym API.
type Credential struct {
	Email    string `json:"email" toml:"email"`
	Password string `json:"password" toml:"password"`
}

// Config is the validated result of loading a secrets file.
type Config struct {
	BotToken string
	Store    *Store
}
