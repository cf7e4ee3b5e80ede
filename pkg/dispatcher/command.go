package dispatcher

import (
	"strings"
)

// Command is a recognized chat command.
type Command int

const (
	CommandUnknown Command = iota
	// CommandQR requests the chat's gym entry QR code.
	CommandQR
)

func (c Command) String() string {
	switch c {
	case CommandQR:
		return "qr"
	default:
		return "unknown"
	}
}

// ParseCommand maps a command name, without the leading slash, to a Command.
func ParseCommand(name string) Command {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "qr":
		return CommandQR
	default:
		return CommandUnknown
	}
}

// InboundCommand is a normalized command received from a chat.
type InboundCommand struct {
	ChatID  int64
	Command Command
}

// State is a step of the dispatch state machine. Ignored, Delivered and Failed
// are terminal.
type State int

const (
	StateReceived State = iota
	StateAuthorized
	StateIgnored
	StateTokenFetched
	StateQRFetched
	StateRendered
	StateDelivered
	StateFailed
)

var stateNames = map[State]string{
	StateReceived:     "received",
	StateAuthorized:   "authorized",
	StateIgnored:      "ignored",
	StateTokenFetched: "token_fetched",
	StateQRFetched:    "qr_fetched",
	StateRendered:     "rendered",
	StateDelivered:    "delivered",
	StateFailed:       "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}
