package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/socialhub-cli/internal/session"
)

var (
	loginName  string
	loginEmail string
	loginRole  string
)

func sessionManager() (*session.Manager, error) {
	c, err := currentConfig()
	if err != nil {
		return nil, err
	}
	return session.NewManager(session.NewFileKV(c.SessionFile)), nil
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with the demo account",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := sessionManager()
		if err != nil {
			return err
		}
		if _, err := m.SignIn(session.MockUser); err != nil {
			return fmt.Errorf("sign in: %w", err)
		}
		u := &session.MockUser
		if loginName != "" || loginEmail != "" || loginRole != "" {
			if u, err = m.UpdateProfile(session.User{Name: loginName, Email: loginEmail, Role: loginRole}); err != nil {
				return fmt.Errorf("update profile: %w", err)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Signed in as %s\n", u.Name)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := sessionManager()
		if err != nil {
			return err
		}
		if err := m.SignOut(); err != nil {
			return fmt.Errorf("sign out: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Signed out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := sessionManager()
		if err != nil {
			return err
		}
		u, err := m.Current()
		if err != nil {
			return err
		}
		if u == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> %s\n", u.Name, u.Email, u.Role)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd)
	loginCmd.Flags().StringVar(&loginName, "name", "", "profile name")
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "profile email")
	loginCmd.Flags().StringVar(&loginRole, "role", "", "profile role")
}
