// Package webhookcmder provides the webhook command for managing the bot's
// Telegram webhook registration.
package webhookcmder

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/gymqr/pkg/credentials"
	"github.com/papercomputeco/gymqr/pkg/logger"
	"github.com/papercomputeco/gymqr/pkg/telegram"
)

const webhookLongDesc string = `Manage the Telegram webhook of the bot.

While a webhook is registered Telegram pushes updates to it and long
polling (the default mode of gymqr serve) receives nothing. Use --disable
to go back to polling after a webhook deployment.

The bot token is read from the secrets file.

Examples:
  gymqr webhook --enable --webhook-url https://bot.example.com/hook
  gymqr webhook --disable
  gymqr webhook --info`

const webhookShortDesc string = "Manage the Telegram webhook"

var newBotClient = func(token string, log *zap.Logger) (*telegram.Client, error) {
	return telegram.NewClient(token, log)
}

func NewWebhookCmd() *cobra.Command {
	var enableFlag bool
	var disableFlag bool
	var infoFlag bool
	var urlFlag string

	cmd := &cobra.Command{
		Use:   "webhook",
		Short: webhookShortDesc,
		Long:  webhookLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			selected := 0
			for _, set := range []bool{enableFlag, disableFlag, infoFlag} {
				if set {
					selected++
				}
			}
			if selected != 1 {
				return errors.New("exactly one of --enable, --disable or --info is required")
			}
			if enableFlag && strings.TrimSpace(urlFlag) == "" {
				return errors.New("--enable requires --webhook-url")
			}

			secretsPath, _ := cmd.Flags().GetString("secrets")
			debug, _ := cmd.Flags().GetBool("debug")

			client, err := openClient(secretsPath, logger.Must(debug))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case enableFlag:
				return runEnable(out, client, strings.TrimSpace(urlFlag))
			case disableFlag:
				return runDisable(out, client)
			default:
				return runInfo(out, client)
			}
		},
	}

	cmd.Flags().BoolVar(&enableFlag, "enable", false, "Register --webhook-url as the webhook")
	cmd.Flags().BoolVar(&disableFlag, "disable", false, "Remove the registered webhook")
	cmd.Flags().BoolVar(&infoFlag, "info", false, "Show the current webhook registration")
	cmd.Flags().StringVar(&urlFlag, "webhook-url", "", "Public URL Telegram delivers updates to")

	return cmd
}

func openClient(secretsPath string, log *zap.Logger) (*telegram.Client, error) {
	mgr := credentials.NewManager(secretsPath)
	secrets, err := mgr.Load()
	if err != nil {
		return nil, &credentials.ConfigurationError{Path: mgr.GetTarget(), Err: err}
	}
	if strings.TrimSpace(secrets.BotToken) == "" {
		return nil, &credentials.ConfigurationError{
			Path: mgr.GetTarget(),
			Err:  errors.New("bot_token is required, store one with 'gymqr auth --bot-token'"),
		}
	}

	return newBotClient(strings.TrimSpace(secrets.BotToken), log)
}

func runEnable(out io.Writer, client *telegram.Client, url string) error {
	if err := client.SetWebhook(url); err != nil {
		return err
	}
	fmt.Fprintf(out, "Webhook set to %s\n", url)
	return nil
}

func runDisable(out io.Writer, client *telegram.Client) error {
	if err := client.DeleteWebhook(); err != nil {
		return err
	}
	fmt.Fprintln(out, "Webhook removed.")
	return nil
}

func runInfo(out io.Writer, client *telegram.Client) error {
	info, err := client.WebhookInfo()
	if err != nil {
		return err
	}

	if info.URL == "" {
		fmt.Fprintln(out, "No webhook registered, updates are received by polling.")
		return nil
	}

	fmt.Fprintf(out, "URL:              %s\n", info.URL)
	fmt.Fprintf(out, "Pending updates:  %d\n", info.PendingUpdateCount)
	if info.LastErrorMessage != "" {
		fmt.Fprintf(out, "Last error:       %s\n", info.LastErrorMessage)
	}
	return nil
}
