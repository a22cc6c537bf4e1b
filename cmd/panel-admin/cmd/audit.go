package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sirosfoundation/relay-panel/internal/domain"
)

type loginEventsResponse struct {
	Success bool                 `json:"success"`
	Events  []*domain.LoginEvent `json:"events"`
}

var (
	auditUsername string
	auditLimit    int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "List recent login events of an account",
	Long:  `List the newest login attempts of an account, newest first. Requires an admin session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if auditUsername == "" {
			return fmt.Errorf("--username is required")
		}
		if token == "" {
			return fmt.Errorf("--token or PANEL_TOKEN is required")
		}

		query := url.Values{}
		query.Set("username", auditUsername)
		query.Set("limit", strconv.Itoa(auditLimit))

		client := NewClient(panelURL, token)
		data, err := client.Request(http.MethodGet, "/admin/login-events?"+query.Encode(), nil)
		if err != nil {
			return err
		}

		if output == "json" {
			return printJSON(cmd.OutOrStdout(), data)
		}

		var resp loginEventsResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		if len(resp.Events) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No login events found.")
			return nil
		}

		rows := make([][]string, len(resp.Events))
		for i, e := range resp.Events {
			reason := e.Reason
			if reason == "" {
				reason = "-"
			}
			rows[i] = []string{
				e.CreatedAt.Format("2006-01-02 15:04:05"),
				e.Stage,
				strconv.FormatBool(e.Success),
				e.ClientIP,
				reason,
			}
		}
		printTable(cmd.OutOrStdout(), []string{"TIME", "STAGE", "SUCCESS", "CLIENT IP", "REASON"}, rows)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.Flags().StringVar(&auditUsername, "username", "", "Account to inspect (required)")
	auditCmd.Flags().IntVar(&auditLimit, "limit", 20, "Maximum number of events")
}
