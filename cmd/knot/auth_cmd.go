package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/slowlime/knotd/internal/client"
	"github.com/slowlime/knotd/internal/cliconfig"
)

func newLoginCmd() *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate against a registry and save the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, _ := cmd.Flags().GetString("registry")
			cfg, err := cliconfig.LoadConfig()
			if err != nil {
				return err
			}
			if registry == "" {
				registry = cfg.RegistryURL
			}
			if registry == "" {
				return fmt.Errorf("no registry configured; pass --registry")
			}

			if username == "" {
				fmt.Fprint(cmd.OutOrStdout(), "username: ")
				if _, err := fmt.Fscanln(cmd.InOrStdin(), &username); err != nil {
					return fmt.Errorf("read username: %w", err)
				}
			}
			password, err := readPassword(cmd)
			if err != nil {
				return err
			}

			c := client.New(registry, "")
			token, err := c.Login(context.Background(), username, password)
			if err != nil {
				return explain(err)
			}

			if registry != cfg.RegistryURL {
				cfg.RegistryURL = registry
				if err := cliconfig.SaveConfig(cfg); err != nil {
					return err
				}
			}
			if err := cliconfig.SaveSession(cliconfig.Session{Username: username, Token: token}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", username)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "account username (prompted if omitted)")
	return cmd
}

func readPassword(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), "password: ")
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	var password string
	if _, err := fmt.Fscanln(cmd.InOrStdin(), &password); err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return password, nil
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Drop the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cliconfig.ClearSession(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

func newRegisterCmd() *cobra.Command {
	var username, email string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a new account on a registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			if username == "" {
				fmt.Fprint(cmd.OutOrStdout(), "username: ")
				if _, err := fmt.Fscanln(cmd.InOrStdin(), &username); err != nil {
					return fmt.Errorf("read username: %w", err)
				}
			}
			if email == "" {
				fmt.Fprint(cmd.OutOrStdout(), "email: ")
				if _, err := fmt.Fscanln(cmd.InOrStdin(), &email); err != nil {
					return fmt.Errorf("read email: %w", err)
				}
			}
			password, err := readPassword(cmd)
			if err != nil {
				return err
			}
			if err := c.Register(context.Background(), username, email, password); err != nil {
				return explain(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "account created; run `knot login` to authenticate")
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "account username (prompted if omitted)")
	cmd.Flags().StringVar(&email, "email", "", "account email (prompted if omitted)")
	return cmd
}

func newAccountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "account",
		Short: "Show the currently logged-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, sess, err := requireSession(cmd)
			if err != nil {
				return err
			}
			user, err := c.GetUser(context.Background(), sess.Username)
			if err != nil {
				return explain(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "username: %s\nemail: %s\nrole: %s\nregistered: %s\n",
				user.Username, user.Email, user.Role, user.RegisteredAt)
			return nil
		},
	}
}
