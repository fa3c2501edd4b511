package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login <username-or-email>",
	Short: "Sign in and print a session token",
	Long: `Sign in with your username or email. The password is read from
--password or, when omitted, from standard input.

Examples:
  traveltweets login alice
  eval $(traveltweets login alice --password secret --export)`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, _ := cmd.Flags().GetString("password")
		code, _ := cmd.Flags().GetString("code")
		export, _ := cmd.Flags().GetBool("export")
		return login(args[0], password, code, export)
	},
}

func init() {
	loginCmd.Flags().StringP("password", "p", "", "Account password")
	loginCmd.Flags().String("code", "", "Two-factor code, if enabled")
	loginCmd.Flags().Bool("export", false, "Print a shell export line only")
}

type loginResponse struct {
	User      user      `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func login(identifier, password, code string, export bool) error {
	if password == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	payload := map[string]string{"login": identifier, "password": password}
	if code != "" {
		payload["code"] = code
	}

	var result loginResponse
	printed, err := apiCall("POST", "/api/auth/login", payload, &result)
	if err != nil || printed {
		return err
	}

	if export {
		fmt.Printf("export TRAVELTWEETS_TOKEN=%s\n", result.Token)
		return nil
	}
	fmt.Printf("✓ Signed in as @%s (expires %s)\n", result.User.Username, result.ExpiresAt.Local().Format(time.RFC1123))
	fmt.Printf("\nexport TRAVELTWEETS_TOKEN=%s\n", result.Token)
	return nil
}
