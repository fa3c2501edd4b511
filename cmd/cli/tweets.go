package main

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var tweetsCmd = &cobra.Command{
	Use:   "tweets",
	Short: "Read and post tweets",
}

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Show your home timeline, or the global one with --global",
	RunE: func(cmd *cobra.Command, args []string) error {
		global, _ := cmd.Flags().GetBool("global")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		feed := "home"
		if global {
			feed = "global"
		}
		return listTweets("/api/tweets?feed="+feed, limit, offset)
	},
}

var userTweetsCmd = &cobra.Command{
	Use:   "user <username>",
	Short: "Show a traveller's tweets",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		replies, _ := cmd.Flags().GetBool("replies")
		path := "/api/users/" + url.PathEscape(args[0]) + "/tweets?replies=" + strconv.FormatBool(replies)
		return listTweets(path, limit, offset)
	},
}

var postTweetCmd = &cobra.Command{
	Use:   "post <text>",
	Short: "Post a tweet",
	Long: `Post a tweet of up to 280 characters.

Examples:
  traveltweets tweets post "Sunrise over the Douro" --location Porto
  traveltweets tweets post "Agreed!" --reply-to <tweet-id>`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		location, _ := cmd.Flags().GetString("location")
		replyTo, _ := cmd.Flags().GetString("reply-to")
		return postTweet(strings.Join(args, " "), location, replyTo)
	},
}

var deleteTweetCmd = &cobra.Command{
	Use:   "delete <tweet-id>",
	Short: "Delete one of your tweets",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		printed, err := apiCall("DELETE", "/api/tweets/"+args[0], nil, nil)
		if err != nil || printed {
			return err
		}
		fmt.Println("✓ Tweet deleted")
		return nil
	},
}

var likeTweetCmd = &cobra.Command{
	Use:   "like <tweet-id>",
	Short: "Like or unlike a tweet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var result struct {
			IsLiked   bool `json:"isLiked"`
			LikeCount int  `json:"likeCount"`
		}
		printed, err := apiCall("POST", "/api/tweets/"+args[0]+"/like", nil, &result)
		if err != nil || printed {
			return err
		}
		if result.IsLiked {
			fmt.Printf("♥ Liked (%d likes)\n", result.LikeCount)
		} else {
			fmt.Printf("♡ Unliked (%d likes)\n", result.LikeCount)
		}
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{timelineCmd, userTweetsCmd} {
		cmd.Flags().IntP("limit", "l", 20, "Maximum number of tweets")
		cmd.Flags().IntP("offset", "o", 0, "Pagination offset")
	}
	timelineCmd.Flags().Bool("global", false, "Show every public traveller instead of who you follow")
	userTweetsCmd.Flags().Bool("replies", false, "Include replies")
	postTweetCmd.Flags().String("location", "", "Where you are")
	postTweetCmd.Flags().String("reply-to", "", "Tweet ID to reply to")

	tweetsCmd.AddCommand(timelineCmd)
	tweetsCmd.AddCommand(userTweetsCmd)
	tweetsCmd.AddCommand(postTweetCmd)
	tweetsCmd.AddCommand(deleteTweetCmd)
	tweetsCmd.AddCommand(likeTweetCmd)
}

func listTweets(path string, limit, offset int) error {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	path += fmt.Sprintf("%slimit=%d&offset=%d", sep, limit, offset)

	var result struct {
		Tweets     []tweet    `json:"tweets"`
		Pagination pagination `json:"pagination"`
	}
	printed, err := apiCall("GET", path, nil, &result)
	if err != nil || printed {
		return err
	}

	if len(result.Tweets) == 0 {
		fmt.Println("No tweets yet")
		return nil
	}
	for _, t := range result.Tweets {
		printTweet(t)
	}
	if result.Pagination.HasMore {
		fmt.Printf("\nMore: --offset %d\n", offset+len(result.Tweets))
	}
	return nil
}

func printTweet(t tweet) {
	header := handle(t.User)
	if t.Location != "" {
		header += " · 📍 " + t.Location
	}
	header += " · " + t.CreatedAt.Local().Format("Jan 2 15:04")
	fmt.Printf("\n%s\n", header)
	if t.ReplyToID != nil {
		fmt.Printf("  ↪ reply to %s\n", truncateString(*t.ReplyToID, 8))
	}
	if t.Content != "" {
		fmt.Printf("  %s\n", t.Content)
	}
	if t.ImageURL != "" {
		fmt.Printf("  🖼  %s\n", t.ImageURL)
	}
	liked := "♡"
	if t.IsLiked {
		liked = "♥"
	}
	fmt.Printf("  %s %d  ⟲ %d  💬 %d   id:%s\n", liked, t.LikeCount, t.RetweetCount, t.ReplyCount, t.ID)
}

func postTweet(content, location, replyTo string) error {
	payload := map[string]interface{}{"content": content}
	if location != "" {
		payload["location"] = location
	}
	if replyTo != "" {
		payload["replyToId"] = replyTo
	}

	var result struct {
		Tweet tweet `json:"tweet"`
	}
	printed, err := apiCall("POST", "/api/tweets", payload, &result)
	if err != nil || printed {
		return err
	}
	fmt.Println("✓ Tweet posted")
	printTweet(result.Tweet)
	return nil
}
