package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/sirosfoundation/relay-panel/internal/backend"
	"github.com/sirosfoundation/relay-panel/internal/domain"
	"github.com/sirosfoundation/relay-panel/internal/service"
	"github.com/sirosfoundation/relay-panel/pkg/config"
)

var configFile string

// openStore connects to the storage named in the panel configuration
func openStore(ctx context.Context) (backend.Backend, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if backend.Type(cfg.Storage.Type) == backend.TypeMemory || cfg.Storage.Type == "" {
		return nil, fmt.Errorf("user commands need persistent storage, configured type is %q", cfg.Storage.Type)
	}
	return backend.New(ctx, cfg)
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage panel accounts in storage",
}

var (
	userCreateName     string
	userCreatePassword string
	userCreateRole     string
	userCreateChatID   string
	userCreateExpires  string
	userCreateCredits  int64
	userCreateInstance string
)

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a panel account",
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := domain.ParseRole(userCreateRole)
		if err != nil {
			return err
		}
		if userCreateName == "" {
			return fmt.Errorf("--username is required")
		}
		password := userCreatePassword
		if password == "" {
			if password, err = promptPassword(cmd.ErrOrStderr(), "Password for "+userCreateName+": "); err != nil {
				return err
			}
		}

		user := &domain.User{
			Username: userCreateName,
			Role:     role,
			Active:   true,
			ChatID:   userCreateChatID,
			Credits:  userCreateCredits,
		}
		if userCreateExpires != "" {
			expires, err := time.Parse(time.RFC3339, userCreateExpires)
			if err != nil {
				return fmt.Errorf("invalid --expires (want RFC 3339): %w", err)
			}
			user.ExpiresAt = &expires
		}
		if userCreateInstance != "" {
			user.InstanceName = &userCreateInstance
		}
		if user.PasswordHash, err = service.HashPassword(password); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		if err := store.Users().Create(ctx, user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s %q with ID %d.\n", user.Role, user.Username, user.ID)
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List panel accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		users, err := store.Users().GetAll(ctx)
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}

		if output == "json" {
			projections := make([]domain.UserProjection, len(users))
			for i, u := range users {
				projections[i] = u.Projection()
			}
			data, err := json.Marshal(projections)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		}

		if len(users) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No users found.")
			return nil
		}
		rows := make([][]string, len(users))
		for i, u := range users {
			p := u.Projection()
			rows[i] = append(projectionRow(&p), strconv.FormatBool(u.Active))
		}
		printTable(cmd.OutOrStdout(), append(projectionHeaders, "ACTIVE"), rows)
		return nil
	},
}

var (
	userActiveName  string
	userActiveValue bool
)

var userSetActiveCmd = &cobra.Command{
	Use:   "set-active",
	Short: "Enable or disable a panel account",
	RunE: func(cmd *cobra.Command, args []string) error {
		if userActiveName == "" {
			return fmt.Errorf("--username is required")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		user, err := store.Users().GetByUsername(ctx, userActiveName)
		if err != nil {
			return fmt.Errorf("failed to get user: %w", err)
		}
		user.Active = userActiveValue
		if err := store.Users().Update(ctx, user); err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s active=%t\n", user.Username, user.Active)
		return nil
	},
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [PASSWORD]",
	Short: "Print the bcrypt hash of a password",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var password string
		if len(args) == 1 {
			password = args[0]
		} else {
			var err error
			if password, err = promptPassword(cmd.ErrOrStderr(), "Password: "); err != nil {
				return err
			}
		}
		hash, err := service.HashPassword(password)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(hashPasswordCmd)
	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userSetActiveCmd)

	userCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "configs/config.yaml", "Path to the panel configuration file")

	userCreateCmd.Flags().StringVar(&userCreateName, "username", "", "Account username (required)")
	userCreateCmd.Flags().StringVar(&userCreatePassword, "password", "", "Account password (prompted when omitted)")
	userCreateCmd.Flags().StringVar(&userCreateRole, "role", string(domain.RoleUser), "Role: user or admin")
	userCreateCmd.Flags().StringVar(&userCreateChatID, "chat-id", "", "Chat that receives one-time codes")
	userCreateCmd.Flags().StringVar(&userCreateExpires, "expires", "", "Account expiry (RFC 3339)")
	userCreateCmd.Flags().Int64Var(&userCreateCredits, "credits", 0, "Initial credit balance")
	userCreateCmd.Flags().StringVar(&userCreateInstance, "instance", "", "Relay instance name")

	userSetActiveCmd.Flags().StringVar(&userActiveName, "username", "", "Account username (required)")
	userSetActiveCmd.Flags().BoolVar(&userActiveValue, "active", true, "Whether the account may log in")
}
