package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	authPassword string
	authEmail    string
	whoamiJSON   bool
)

var registerCmd = &cobra.Command{
	Use:   "register [username]",
	Short: "Create an account and log in",
	Long:  `Create an account on the server. The password is read from --password or the first line of stdin.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		password, err := readSecret(authPassword, os.Stdin)
		if err != nil {
			fatal("Failed to read password", err)
		}
		c := newClient()
		u, err := c.Register(context.Background(), args[0], password, authEmail)
		if err != nil {
			fatal("Registration failed", describe(err))
		}
		saveSession(c)
		fmt.Printf("Registered and logged in as %s\n", u.Username)
	},
}

var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Log in and remember the session",
	Long:  `Log in to the server. The password is read from --password or the first line of stdin.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		password, err := readSecret(authPassword, os.Stdin)
		if err != nil {
			fatal("Failed to read password", err)
		}
		c := newClient()
		u, err := c.Login(context.Background(), args[0], password)
		if err != nil {
			fatal("Login failed", describe(err))
		}
		saveSession(c)
		fmt.Printf("Logged in as %s\n", u.Username)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the saved session",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		c := newClient()
		err := c.Logout(context.Background())
		saveSession(c)
		if err != nil {
			fatal("Logout failed", err)
		}
		fmt.Println("Logged out")
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged in user",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		u, err := newClient().Me(context.Background())
		if err != nil {
			fatal("Not logged in", err)
		}
		if whoamiJSON {
			printJSON(u)
			return
		}
		fmt.Printf("%d %s\n", u.ID, u.Username)
	},
}

func init() {
	rootCmd.AddCommand(registerCmd, loginCmd, logoutCmd, whoamiCmd)
	for _, c := range []*cobra.Command{registerCmd, loginCmd} {
		c.Flags().StringVarP(&authPassword, "password", "p", "", "Password (default: read from stdin)")
	}
	registerCmd.Flags().StringVar(&authEmail, "email", "", "Email address")
	whoamiCmd.Flags().BoolVar(&whoamiJSON, "json", false, "Output in JSON format")
}
