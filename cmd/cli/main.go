package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	authToken string
	apiURL    string = "http://localhost:8787"
	output    string = "text" // "text" or "json"
)

var rootCmd = &cobra.Command{
	Use:   "traveltweets",
	Short: "Travel Tweets CLI - read and post from the terminal",
	Long: `Travel Tweets CLI provides command-line access to your account.
Post tweets, read your timeline, handle follow requests and notifications.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if authToken == "" {
			authToken = os.Getenv("TRAVELTWEETS_TOKEN")
		}
		if authToken == "" && !publicCommand(cmd) {
			fmt.Fprintf(os.Stderr, "Error: TRAVELTWEETS_TOKEN environment variable not set\n")
			fmt.Fprintf(os.Stderr, "Sign in first: traveltweets login <username>\n")
			os.Exit(1)
		}
	},
}

// publicCommand reports whether cmd works without a session
func publicCommand(cmd *cobra.Command) bool {
	if cmd.Parent() == nil {
		return true
	}
	switch cmd.Name() {
	case "help", "login", "completion", "search":
		return true
	}
	return false
}

func init() {
	rootCmd.PersistentFlags().StringVar(&authToken, "token", "", "Session token (defaults to TRAVELTWEETS_TOKEN env var)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", apiURL, "API server URL")
	rootCmd.PersistentFlags().StringVar(&output, "output", output, "Output format: text or json")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(tweetsCmd)
	rootCmd.AddCommand(followRequestsCmd)
	rootCmd.AddCommand(notificationsCmd)
	rootCmd.AddCommand(searchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
