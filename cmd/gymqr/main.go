package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/gymqr/cmd/gymqr/auth"
	qrcmder "github.com/papercomputeco/gymqr/cmd/gymqr/qr"
	servecmder "github.com/papercomputeco/gymqr/cmd/gymqr/serve"
	webhookcmder "github.com/papercomputeco/gymqr/cmd/gymqr/webhook"
	"github.com/papercomputeco/gymqr/pkg/credentials"
)

const rootLongDesc string = `gymqr is a chat bot that replies to /qr with a member's gym entry QR code.

Authorized chats are listed in a secrets file together with the PureGym
account credentials used for them. Every /qr request signs in, fetches the
current QR payload and sends it back rendered as a PNG image.`

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gymqr",
		Short:         "Gym entry QR code chat bot",
		Long:          rootLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("secrets", credentials.DefaultSecretsFile, "Path to the secrets file (.json or .toml)")
	cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(webhookcmder.NewWebhookCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(qrcmder.NewQRCmd())

	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
