package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/s0up4200/requestarr/session"
)

var tokenEmail string

var tokenCmd = &cobra.Command{
	Use:   "token <username>",
	Short: "Issue a session token for API clients",
	Long: `Print a session token signed with the configured secret. Send it as the
session cookie or in the X-Session-Token header.`,
	Args: cobra.ExactArgs(1),
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "e-mail address used for availability notifications")
}

func runToken(cmd *cobra.Command, args []string) error {
	resolver, err := newCookieResolver()
	if err != nil {
		return err
	}

	token, err := resolver.Encode(session.Identity{Username: args[0], Email: tokenEmail})
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	fmt.Println(token)
	return nil
}
