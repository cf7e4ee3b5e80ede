// Package qrcmder provides the qr command that fetches a chat's QR code
// without going through the chat transport.
package qrcmder

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/gymqr/bot"
	"github.com/papercomputeco/gymqr/pkg/credentials"
	"github.com/papercomputeco/gymqr/pkg/dispatcher"
	"github.com/papercomputeco/gymqr/pkg/logger"
)

const qrLongDesc string = `Fetch the QR code of an authorized chat and write it as a PNG file.

This runs the same pipeline as the bot: sign in with the chat's stored
login, fetch the QR payload and render it. It is useful for checking a
login before handing the bot to its user.

Examples:
  gymqr qr 123456789
  gymqr qr 123456789 --out /tmp/entry.png`

const qrShortDesc string = "Fetch a chat's QR code into a PNG file"

const defaultOutFile = "qr.png"

// fileSender delivers images to a local file and texts to the terminal.
type fileSender struct {
	path string
	out  io.Writer
}

func (s *fileSender) SendImage(_ context.Context, _ int64, png []byte) error {
	if err := os.WriteFile(s.path, png, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", s.path, err)
	}
	return nil
}

func (s *fileSender) SendText(_ context.Context, _ int64, text string) error {
	_, err := fmt.Fprintln(s.out, text)
	return err
}

func NewQRCmd() *cobra.Command {
	var outFlag string
	var tokenURLFlag string
	var apiURLFlag string

	cmd := &cobra.Command{
		Use:   "qr <chat-id>",
		Short: qrShortDesc,
		Long:  qrLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chatID, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid chat id %q: must be an integer", args[0])
			}

			secretsPath, _ := cmd.Flags().GetString("secrets")
			debug, _ := cmd.Flags().GetBool("debug")

			store, err := loadChat(secretsPath, chatID)
			if err != nil {
				return err
			}

			d, err := bot.NewDispatcher(&bot.Config{
				Store:       store,
				Sender:      &fileSender{path: outFlag, out: cmd.OutOrStdout()},
				TokenURL:    tokenURLFlag,
				APIURL:      apiURLFlag,
				Logger:      logger.Must(debug),
				Acknowledge: true,
			})
			if err != nil {
				return err
			}

			res := d.Dispatch(cmd.Context(), dispatcher.InboundCommand{ChatID: chatID, Command: dispatcher.CommandQR})
			if res.State == dispatcher.StateIgnored {
				return fmt.Errorf("chat %d is not authorized", chatID)
			}
			if res.State != dispatcher.StateDelivered {
				return fmt.Errorf("%s failed after %s (%s): %w", res.Command, res.Stage, res.Kind, res.Err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", outFlag)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outFlag, "out", "o", defaultOutFile, "Output PNG file")
	cmd.Flags().StringVar(&tokenURLFlag, "token-url", "", "Override the identity provider token endpoint")
	cmd.Flags().StringVar(&apiURLFlag, "api-url", "", "Override the member API base URL")

	return cmd
}

// loadChat builds a store holding only chatID. The bot token is not needed
// here, so the file is read leniently.
func loadChat(secretsPath string, chatID int64) (*credentials.Store, error) {
	mgr := credentials.NewManager(secretsPath)
	secrets, err := mgr.Load()
	if err != nil {
		return nil, &credentials.ConfigurationError{Path: mgr.GetTarget(), Err: err}
	}

	cred, ok := secrets.ChatCredentials[strconv.FormatInt(chatID, 10)]
	if !ok {
		return nil, fmt.Errorf("chat %d is not authorized in %s", chatID, mgr.GetTarget())
	}

	return credentials.NewStore(map[int64]credentials.Credential{chatID: cred}), nil
}
