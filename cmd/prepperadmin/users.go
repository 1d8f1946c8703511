package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dukerupert/prepper/internal/auth"
	"github.com/dukerupert/prepper/internal/model"
	"github.com/dukerupert/prepper/internal/store"
)

func newUsersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List and manage user accounts",
	}
	cmd.AddCommand(newUsersListCmd(a))
	cmd.AddCommand(newResetPasswordCmd(a))
	cmd.AddCommand(newCreateAdminCmd(a))
	cmd.AddCommand(newSetActiveCmd(a))
	return cmd
}

func (a *app) stores() (*store.Stores, error) {
	db, err := a.open()
	if err != nil {
		return nil, err
	}
	return store.New(db), nil
}

// findUser resolves a numeric id, a username or an email address.
func findUser(ctx context.Context, s *store.Stores, ref string) (*model.User, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		u, err := s.Users.GetByID(ctx, id)
		if err != nil || u != nil {
			return u, err
		}
	}
	u, err := s.Users.GetByUsername(ctx, ref)
	if err != nil || u != nil {
		return u, err
	}
	u, err = s.Users.GetByEmail(ctx, strings.ToLower(ref))
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("user %q not found", ref)
	}
	return u, nil
}

func newUsersListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.stores()
			if err != nil {
				return err
			}
			users, err := s.Users.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(users) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no users")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tUSERNAME\tEMAIL\tADMIN\tACTIVE")
			for _, u := range users {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%t\n", u.ID, u.Username, u.Email, u.Admin, u.Active)
			}
			return tw.Flush()
		},
	}
}

func (a *app) passwordFromFlagOrStdin(cmd *cobra.Command, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	return a.readPassword(cmd.ErrOrStderr(), "New password: ")
}

func hashPassword(password string) (string, error) {
	hash, err := auth.HashPassword(password)
	if errors.Is(err, auth.ErrPasswordTooShort) {
		return "", err
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

func newResetPasswordCmd(a *app) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "reset-password <id|username|email>",
		Short: "Set a new password for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.stores()
			if err != nil {
				return err
			}
			u, err := findUser(cmd.Context(), s, args[0])
			if err != nil {
				return err
			}
			pw, err := a.passwordFromFlagOrStdin(cmd, password)
			if err != nil {
				return err
			}
			hash, err := hashPassword(pw)
			if err != nil {
				return err
			}
			if err := s.Users.SetPassword(cmd.Context(), u.ID, hash); err != nil {
				return err
			}
			a.logger.Info("password reset by operator", "user_id", u.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "password updated for %s\n", u.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "new password (read from stdin when empty)")
	return cmd
}

func newCreateAdminCmd(a *app) *cobra.Command {
	var username, email, password string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			username = strings.TrimSpace(username)
			email = strings.ToLower(strings.TrimSpace(email))
			if username == "" || !strings.Contains(email, "@") {
				return errors.New("--username and a valid --email are required")
			}
			s, err := a.stores()
			if err != nil {
				return err
			}
			pw, err := a.passwordFromFlagOrStdin(cmd, password)
			if err != nil {
				return err
			}
			hash, err := hashPassword(pw)
			if err != nil {
				return err
			}
			u, err := s.Users.Create(cmd.Context(), username, email, hash, true)
			if errors.Is(err, store.ErrConflict) {
				return fmt.Errorf("username %q or email %q is already taken", username, email)
			}
			if err != nil {
				return err
			}
			a.logger.Info("admin created", "user_id", u.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (id %d)\n", u.Username, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "username")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password (read from stdin when empty)")
	return cmd
}

func newSetActiveCmd(a *app) *cobra.Command {
	var active bool
	cmd := &cobra.Command{
		Use:   "set-active <id|username|email>",
		Short: "Activate or deactivate a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.stores()
			if err != nil {
				return err
			}
			u, err := findUser(cmd.Context(), s, args[0])
			if err != nil {
				return err
			}
			if err := s.Users.SetActive(cmd.Context(), u.ID, active); err != nil {
				return err
			}
			state := "deactivated"
			if active {
				state = "activated"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", u.Username, state)
			return nil
		},
	}
	cmd.Flags().BoolVar(&active, "active", true, "whether the user may sign in")
	return cmd
}
