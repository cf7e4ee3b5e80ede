// Package authcmder provides the auth command for editing the secrets file.
package authcmder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/gymqr/pkg/credentials"
)

const authLongDesc string = `Store the bot token and the gym logins of authorized chats.

Credentials are stored in the secrets file (secrets.json by default, TOML
when the path ends in .toml) with 0600 permissions. Only chats listed there
get a reply from the bot; gymqr serve reads the file once at startup.

Passwords and tokens are read with hidden input, or from the first line of
stdin when it is piped.

Examples:
  gymqr auth 123456789 member@example.com     Store the login for a chat
  gymqr auth --bot-token                       Store the bot token
  gymqr auth --list                            List authorized chats
  gymqr auth --remove 123456789                Remove a chat
  echo $PASSWORD | gymqr auth 123456789 me@example.com`

const authShortDesc string = "Store bot and chat credentials"

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	idStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

func NewAuthCmd() *cobra.Command {
	var listFlag bool
	var removeFlag string
	var botTokenFlag bool

	cmd := &cobra.Command{
		Use:   "auth [chat-id] [email]",
		Short: authShortDesc,
		Long:  authLongDesc,
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			secretsPath, _ := cmd.Flags().GetString("secrets")
			mgr := credentials.NewManager(secretsPath)

			switch {
			case listFlag:
				return runList(cmd.OutOrStdout(), mgr)
			case removeFlag != "":
				return runRemove(cmd.OutOrStdout(), mgr, removeFlag)
			case botTokenFlag:
				return runBotToken(cmd, mgr)
			default:
				if len(args) != 2 {
					return errors.New("chat id and email arguments required\n\nUsage: gymqr auth <chat-id> <email>")
				}
				return runAuth(cmd, mgr, args[0], args[1])
			}
		},
	}

	cmd.Flags().BoolVar(&listFlag, "list", false, "List authorized chats")
	cmd.Flags().StringVar(&removeFlag, "remove", "", "Remove the credentials of a chat")
	cmd.Flags().BoolVar(&botTokenFlag, "bot-token", false, "Store the bot token")

	return cmd
}

func runAuth(cmd *cobra.Command, mgr *credentials.Manager, chatArg, email string) error {
	chatID, err := parseChatID(chatArg)
	if err != nil {
		return err
	}

	email = strings.TrimSpace(email)
	if email == "" {
		return errors.New("email cannot be empty")
	}

	password, err := readSecret(cmd, fmt.Sprintf("Enter PureGym password for %s: ", email))
	if err != nil {
		return err
	}
	if password == "" {
		return errors.New("password cannot be empty")
	}

	if err := mgr.SetChat(chatID, credentials.Credential{Email: email, Password: password}); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Stored credentials for chat %d (%s) in %s\n", chatID, email, mgr.GetTarget())
	return nil
}

func runBotToken(cmd *cobra.Command, mgr *credentials.Manager) error {
	token, err := readSecret(cmd, "Enter bot token: ")
	if err != nil {
		return err
	}

	if err := mgr.SetBotToken(token); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Stored bot token in %s\n", mgr.GetTarget())
	return nil
}

func runList(out io.Writer, mgr *credentials.Manager) error {
	secrets, err := mgr.Load()
	if err != nil {
		return err
	}
	chats, err := mgr.ListChats()
	if err != nil {
		return err
	}

	token := "not set"
	if strings.TrimSpace(secrets.BotToken) != "" {
		token = "set"
	}
	fmt.Fprintf(out, "%s %s\n", headerStyle.Render("Bot token:"), token)

	if len(chats) == 0 {
		fmt.Fprintln(out, "No authorized chats.")
		fmt.Fprintln(out, dimStyle.Render("\nUse 'gymqr auth <chat-id> <email>' to authorize a chat."))
		return nil
	}

	fmt.Fprintln(out, headerStyle.Render("Authorized chats:"))
	for _, id := range chats {
		cred := secrets.ChatCredentials[strconv.FormatInt(id, 10)]
		fmt.Fprintf(out, "  %s %s\n", idStyle.Render(strconv.FormatInt(id, 10)), cred.Email)
	}

	return nil
}

func runRemove(out io.Writer, mgr *credentials.Manager, chatArg string) error {
	chatID, err := parseChatID(chatArg)
	if err != nil {
		return err
	}

	if err := mgr.RemoveChat(chatID); err != nil {
		return err
	}

	fmt.Fprintf(out, "Removed credentials for chat %d.\n", chatID)
	return nil
}

func parseChatID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chat id %q: must be an integer", raw)
	}
	return id, nil
}

// readSecret reads a secret from the command's input. A terminal gets a
// prompt with hidden input; anything else is read up to the first newline.
func readSecret(cmd *cobra.Command, prompt string) (string, error) {
	in := cmd.InOrStdin()

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.OutOrStdout(), prompt)

		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.OutOrStdout()) // newline after hidden input
		if err != nil {
			return "", fmt.Errorf("reading input: %w", err)
		}
		return string(secret), nil
	}

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return strings.TrimRight(scanner.Text(), "\r"), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return "", errors.New("no input received on stdin")
}
