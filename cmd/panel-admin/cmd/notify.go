package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/sirosfoundation/relay-panel/internal/domain"
)

var notifyUsername string

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Send an account summary to the admin chat",
	Long:  `Send the login, message count and location of an account to the admin chat. Requires an admin session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if notifyUsername == "" {
			return fmt.Errorf("--username is required")
		}
		if token == "" {
			return fmt.Errorf("--token or PANEL_TOKEN is required")
		}

		client := NewClient(panelURL, token)
		data, err := client.Request(http.MethodPost, "/admin/notify", domain.NotifyRequest{Username: notifyUsername})
		if err != nil {
			return err
		}

		if output == "json" {
			return printJSON(cmd.OutOrStdout(), data)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Admin notified about %s.\n", notifyUsername)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(notifyCmd)
	notifyCmd.Flags().StringVar(&notifyUsername, "username", "", "Account to report (required)")
}
