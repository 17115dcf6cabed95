package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/panyam/wardwatch/client"
)

func newLoginCmd(a *app) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			in := bufio.NewReader(cmd.InOrStdin())

			if email == "" {
				email = prompt(cmd.OutOrStdout(), in, "Email: ")
			}
			if password == "" {
				password = os.Getenv("WARDWATCH_PASSWORD")
			}
			if password == "" {
				password = prompt(cmd.OutOrStdout(), in, "Password: ")
			}
			if email == "" || password == "" {
				return errors.New("email and password are required")
			}

			ac, closeStore, err := a.newClient(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			result, err := ac.Login(ctx, email, password)
			if err != nil {
				return err
			}

			name := ""
			if len(result.User) > 0 {
				var profile client.Profile
				if json.Unmarshal(result.User, &profile) == nil {
					name = profile.DisplayName()
				}
			}
			if name == "" {
				name = email
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", name)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (or WARDWATCH_PASSWORD)")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session on the server and forget it locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ac, closeStore, err := a.newClient(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := ac.Logout(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func prompt(out io.Writer, in *bufio.Reader, label string) string {
	fmt.Fprint(out, label)
	line, _ := in.ReadString('\n')
	return strings.TrimSpace(line)
}
