package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Read your notifications",
}

var listNotificationsCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return listNotifications(limit)
	},
}

var readAllNotificationsCmd = &cobra.Command{
	Use:   "read-all",
	Short: "Mark every notification read",
	RunE: func(cmd *cobra.Command, args []string) error {
		var result struct {
			Updated int64 `json:"updated"`
		}
		printed, err := apiCall("POST", "/api/notifications/read-all", nil, &result)
		if err != nil || printed {
			return err
		}
		fmt.Printf("✓ Marked %d notifications read\n", result.Updated)
		return nil
	},
}

func init() {
	listNotificationsCmd.Flags().IntP("limit", "l", 20, "Maximum number of notifications")

	notificationsCmd.AddCommand(listNotificationsCmd)
	notificationsCmd.AddCommand(readAllNotificationsCmd)
}

type notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Actor     *user     `json:"actor"`
	Tweet     *tweet    `json:"tweet"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

var notificationVerbs = map[string]string{
	"LIKE":            "liked your tweet",
	"RETWEET":         "retweeted your tweet",
	"REPLY":           "replied to your tweet",
	"MENTION":         "mentioned you",
	"FOLLOW":          "followed you",
	"FOLLOW_REQUEST":  "asked to follow you",
	"FOLLOW_ACCEPTED": "accepted your follow request",
	"MESSAGE":         "sent you a message",
}

func listNotifications(limit int) error {
	var result struct {
		Notifications []notification `json:"notifications"`
		UnreadCount   int64          `json:"unreadCount"`
	}
	printed, err := apiCall("GET", fmt.Sprintf("/api/notifications?limit=%d", limit), nil, &result)
	if err != nil || printed {
		return err
	}

	if len(result.Notifications) == 0 {
		fmt.Println("✓ No notifications")
		return nil
	}

	fmt.Printf("\n🔔 Notifications (%d unread)\n", result.UnreadCount)
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, n := range result.Notifications {
		marker := " "
		if !n.Read {
			marker = "•"
		}
		verb, ok := notificationVerbs[n.Type]
		if !ok {
			verb = n.Type
		}
		detail := ""
		if n.Tweet != nil {
			detail = truncateString(n.Tweet.Content, 40)
		}
		fmt.Fprintf(w, "%s\t%s %s\t%s\t%s\n", marker, handle(n.Actor), verb, detail, n.CreatedAt.Local().Format("Jan 2 15:04"))
	}
	return w.Flush()
}
