package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage your profile settings",
	Long:  "Commands for viewing your profile and changing its privacy",
}

var setPrivateCmd = &cobra.Command{
	Use:   "set-private",
	Short: "Make your account private",
	Long: `Make your account private. This will:
- Require approval for new followers
- Hide your tweets from non-followers
- Keep existing followers`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return updatePrivacy(true)
	},
}

var setPublicCmd = &cobra.Command{
	Use:   "set-public",
	Short: "Make your account public",
	Long: `Make your account public. This will:
- Accept every pending follow request
- Show your tweets to everyone`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return updatePrivacy(false)
	},
}

var getProfileCmd = &cobra.Command{
	Use:   "get",
	Short: "Show your profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getProfile()
	},
}

func init() {
	profileCmd.AddCommand(setPrivateCmd)
	profileCmd.AddCommand(setPublicCmd)
	profileCmd.AddCommand(getProfileCmd)
}

func updatePrivacy(isPrivate bool) error {
	var result struct {
		User user `json:"user"`
	}
	printed, err := apiCall("PATCH", "/api/users/me", map[string]interface{}{"isPrivate": isPrivate}, &result)
	if err != nil || printed {
		return err
	}

	if result.User.IsPrivate {
		fmt.Println("✓ Your account is now private")
	} else {
		fmt.Println("✓ Your account is now public")
	}
	return nil
}

func getProfile() error {
	var result struct {
		User             user   `json:"user"`
		Email            string `json:"email"`
		TwoFactorEnabled bool   `json:"twoFactorEnabled"`
	}
	printed, err := apiCall("GET", "/api/auth/me", nil, &result)
	if err != nil || printed {
		return err
	}

	u := result.User
	visibility := "public"
	if u.IsPrivate {
		visibility = "private"
	}
	fmt.Printf("\n%s (@%s)\n", u.DisplayName, u.Username)
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	if u.Bio != "" {
		fmt.Printf("%s\n\n", u.Bio)
	}
	if u.Location != "" {
		fmt.Printf("Location:   %s\n", u.Location)
	}
	if u.Website != "" {
		fmt.Printf("Website:    %s\n", u.Website)
	}
	fmt.Printf("Email:      %s\n", result.Email)
	fmt.Printf("Account:    %s\n", visibility)
	fmt.Printf("2FA:        %t\n", result.TwoFactorEnabled)
	fmt.Printf("Tweets:     %d\n", u.TweetCount)
	fmt.Printf("Followers:  %d\n", u.FollowerCount)
	fmt.Printf("Following:  %d\n", u.FollowingCount)
	return nil
}
