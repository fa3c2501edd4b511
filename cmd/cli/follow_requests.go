package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var followRequestsCmd = &cobra.Command{
	Use:   "follow-requests",
	Short: "Manage follow requests for your private account",
	Long:  "Commands for reviewing pending follow requests and the ones you sent",
}

var listFollowRequestsCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending follow requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		sent, _ := cmd.Flags().GetBool("sent")
		return listFollowRequests(sent)
	},
}

var acceptFollowRequestCmd = &cobra.Command{
	Use:   "accept <request-id>",
	Short: "Accept a follow request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return answerFollowRequest(args[0], "accept")
	},
}

var rejectFollowRequestCmd = &cobra.Command{
	Use:   "reject <request-id>",
	Short: "Reject a follow request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return answerFollowRequest(args[0], "reject")
	},
}

func init() {
	listFollowRequestsCmd.Flags().Bool("sent", false, "List requests you sent instead of received")

	followRequestsCmd.AddCommand(listFollowRequestsCmd)
	followRequestsCmd.AddCommand(acceptFollowRequestCmd)
	followRequestsCmd.AddCommand(rejectFollowRequestCmd)
}

type followRequest struct {
	ID        string    `json:"id"`
	Follower  *user     `json:"follower"`
	Following *user     `json:"following"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

func listFollowRequests(sent bool) error {
	path := "/api/follows/requests?limit=50"
	if sent {
		path = "/api/follows/requests/sent?limit=50"
	}

	var result struct {
		Requests   []followRequest `json:"requests"`
		Pagination pagination      `json:"pagination"`
	}
	printed, err := apiCall("GET", path, nil, &result)
	if err != nil || printed {
		return err
	}

	if result.Pagination.Total == 0 {
		fmt.Printf("✓ No pending follow requests\n")
		return nil
	}

	fmt.Printf("\n📝 Pending Follow Requests (%d)\n", result.Pagination.Total)
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSER\tREQUESTED")
	for _, req := range result.Requests {
		other := req.Follower
		if sent {
			other = req.Following
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", req.ID, handle(other), req.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	w.Flush()

	if !sent {
		fmt.Printf("\nUse: traveltweets follow-requests accept <id>\n")
		fmt.Printf("     traveltweets follow-requests reject <id>\n")
	}
	return nil
}

func answerFollowRequest(requestID, action string) error {
	printed, err := apiCall("POST", "/api/follows/requests/"+requestID+"/"+action, nil, nil)
	if err != nil || printed {
		return err
	}
	if action == "accept" {
		fmt.Printf("✓ Follow request accepted\n")
	} else {
		fmt.Printf("✓ Follow request rejected\n")
	}
	return nil
}
