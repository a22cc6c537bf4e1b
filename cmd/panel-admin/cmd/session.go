package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sirosfoundation/relay-panel/internal/domain"
)

type verifyResponse struct {
	Success bool                   `json:"success"`
	Token   string                 `json:"token"`
	User    *domain.UserProjection `json:"user"`
}

type meResponse struct {
	Success bool                   `json:"success"`
	User    *domain.UserProjection `json:"user"`
}

var (
	loginUsername string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Start a login and have a code sent to the account's chat",
	RunE: func(cmd *cobra.Command, args []string) error {
		if loginUsername == "" {
			return fmt.Errorf("--username is required")
		}
		password := loginPassword
		if password == "" {
			var err error
			if password, err = promptPassword(cmd.ErrOrStderr(), "Password: "); err != nil {
				return err
			}
		}

		client := NewClient(panelURL, "")
		data, err := client.Request(http.MethodPost, "/login", domain.LoginRequest{
			Username: loginUsername,
			Password: password,
		})
		if err != nil {
			return err
		}

		if output == "json" {
			return printJSON(cmd.OutOrStdout(), data)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Code sent. Complete the login with verify-otp.")
		return nil
	},
}

var (
	verifyUsername string
	verifyCode     string
)

var verifyOTPCmd = &cobra.Command{
	Use:   "verify-otp",
	Short: "Exchange a one-time code for a session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if verifyUsername == "" || verifyCode == "" {
			return fmt.Errorf("--username and --code are required")
		}

		client := NewClient(panelURL, "")
		data, err := client.Request(http.MethodPost, "/verify-otp", domain.VerifyOTPRequest{
			Username: verifyUsername,
			OTP:      verifyCode,
		})
		if err != nil {
			return err
		}

		if output == "json" {
			return printJSON(cmd.OutOrStdout(), data)
		}

		var resp verifyResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), resp.Token)
		return nil
	},
}

var meCmd = &cobra.Command{
	Use:   "me",
	Short: "Show the account behind the session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if token == "" {
			return fmt.Errorf("--token or PANEL_TOKEN is required")
		}

		client := NewClient(panelURL, token)
		data, err := client.Request(http.MethodGet, "/me", nil)
		if err != nil {
			return err
		}

		if output == "json" {
			return printJSON(cmd.OutOrStdout(), data)
		}

		var resp meResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		if resp.User == nil {
			return fmt.Errorf("response carries no user")
		}
		printTable(cmd.OutOrStdout(), projectionHeaders, [][]string{projectionRow(resp.User)})
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke the session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if token == "" {
			return fmt.Errorf("--token or PANEL_TOKEN is required")
		}

		client := NewClient(panelURL, token)
		if _, err := client.Request(http.MethodPost, "/logout", nil); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
		return nil
	},
}

var projectionHeaders = []string{"ID", "USERNAME", "ROLE", "EXPIRES", "CREDITS", "INSTANCE"}

func projectionRow(p *domain.UserProjection) []string {
	expires := "-"
	if p.ExpiresAt != nil {
		expires = p.ExpiresAt.Format("2006-01-02 15:04")
	}
	instance := "-"
	if p.InstanceName != nil {
		instance = *p.InstanceName
	}
	return []string{
		strconv.FormatInt(p.ID, 10),
		p.Username,
		string(p.Role),
		expires,
		strconv.FormatInt(p.Credits, 10),
		instance,
	}
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(verifyOTPCmd)
	rootCmd.AddCommand(meCmd)
	rootCmd.AddCommand(logoutCmd)

	loginCmd.Flags().StringVar(&loginUsername, "username", "", "Account username (required)")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Account password (prompted when omitted)")

	verifyOTPCmd.Flags().StringVar(&verifyUsername, "username", "", "Account username (required)")
	verifyOTPCmd.Flags().StringVar(&verifyCode, "code", "", "One-time code (required)")
}
