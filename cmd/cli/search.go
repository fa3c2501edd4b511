package main

import (
	"fmt"
	"net/url"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search travellers and tweets",
}

var searchUsersCmd = &cobra.Command{
	Use:   "users <query>",
	Short: "Search travellers by username or display name",
	Long: `Search travellers by username, display name or bio.

Examples:
  traveltweets search users "alice"
  traveltweets search users "nomad" --limit 50`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		return searchUsers(args[0], limit, offset)
	},
}

var searchTweetsCmd = &cobra.Command{
	Use:   "tweets <query>",
	Short: "Search tweets by text or location",
	Long: `Search tweets by their text and location. Tweets from private
accounts only show up for their followers.

Examples:
  traveltweets search tweets "night train"
  traveltweets search tweets "Lisbon" --limit 50`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		return searchTweets(args[0], limit, offset)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{searchUsersCmd, searchTweetsCmd} {
		cmd.Flags().IntP("limit", "l", 20, "Maximum number of results")
		cmd.Flags().IntP("offset", "o", 0, "Pagination offset")
	}

	searchCmd.AddCommand(searchUsersCmd)
	searchCmd.AddCommand(searchTweetsCmd)
}

func searchPath(kind, query string, limit, offset int) string {
	params := url.Values{}
	params.Set("type", kind)
	params.Set("q", query)
	params.Set("limit", fmt.Sprint(limit))
	params.Set("offset", fmt.Sprint(offset))
	return "/api/search?" + params.Encode()
}

func searchUsers(query string, limit, offset int) error {
	var result struct {
		Users      []user     `json:"users"`
		Pagination pagination `json:"pagination"`
	}
	printed, err := apiCall("GET", searchPath("users", query, limit, offset), nil, &result)
	if err != nil || printed {
		return err
	}

	if len(result.Users) == 0 {
		fmt.Printf("No travellers found for %q\n", query)
		return nil
	}

	fmt.Printf("\n🔍 Travellers (%d found)\n", result.Pagination.Total)
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USERNAME\tNAME\tLOCATION\tFOLLOWERS")
	for _, u := range result.Users {
		name := u.DisplayName
		if u.IsVerified {
			name += " ✓"
		}
		if u.IsPrivate {
			name += " 🔒"
		}
		fmt.Fprintf(w, "@%s\t%s\t%s\t%d\n", u.Username, truncateString(name, 24), truncateString(u.Location, 20), u.FollowerCount)
	}
	return w.Flush()
}

func searchTweets(query string, limit, offset int) error {
	var result struct {
		Tweets     []tweet    `json:"tweets"`
		Pagination pagination `json:"pagination"`
	}
	printed, err := apiCall("GET", searchPath("tweets", query, limit, offset), nil, &result)
	if err != nil || printed {
		return err
	}

	if len(result.Tweets) == 0 {
		fmt.Printf("No tweets found for %q\n", query)
		return nil
	}

	fmt.Printf("\n🔍 Tweets (%d found)\n", result.Pagination.Total)
	for _, t := range result.Tweets {
		printTweet(t)
	}
	return nil
}
