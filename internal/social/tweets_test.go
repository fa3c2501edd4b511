package social

import (
	"strings"

	"github.com/zfogg/traveltweets/internal/database"
	"github.com/zfogg/traveltweets/internal/models"
)

func (s *SocialTestSuite) TestCreateTweetTrimsAndCounts() {
	tweet, err := s.svc.CreateTweet(s.ctx, s.bob, TweetInput{Content: "  Sunrise over Bagan  ", Location: " Myanmar "})
	s.Require().NoError(err)
	s.Equal("Sunrise over Bagan", tweet.Content)
	s.Equal("Myanmar", tweet.Location)
	s.Equal(s.bob.ID, tweet.User.ID)

	s.Equal(1, s.reloadUser(s.bob.ID).TweetCount)
	s.True(s.feeds.AssertCallCount("AddTweetActivity", 1))
}

func (s *SocialTestSuite) TestCreateTweetValidation() {
	_, err := s.svc.CreateTweet(s.ctx, s.bob, TweetInput{Content: "   "})
	s.ErrorIs(err, ErrEmptyTweet)

	_, err = s.svc.CreateTweet(s.ctx, s.bob, TweetInput{Content: strings.Repeat("ü", models.MaxTweetLength+1)})
	s.ErrorIs(err, ErrTweetTooLong)

	_, err = s.svc.CreateTweet(s.ctx, s.bob, TweetInput{Content: strings.Repeat("ü", models.MaxTweetLength)})
	s.NoError(err, "the limit counts characters, not bytes")

	tweet, err := s.svc.CreateTweet(s.ctx, s.bob, TweetInput{ImageURL: "https://cdn.example.com/a.jpg"})
	s.Require().NoError(err, "an image alone is a valid tweet")
	s.Empty(tweet.Content)

	_, err = s.svc.CreateTweet(s.ctx, s.bob, TweetInput{
		ImageURL: "https://cdn.example.com/a.jpg",
		ImageKey: "images/2026/10/" + s.alice.ID + "/photo.jpg",
	})
	s.ErrorIs(err, ErrForbidden, "another user's upload cannot be attached")
}

func (s *SocialTestSuite) TestReplyNotifiesAuthorAndMentions() {
	reply, err := s.svc.CreateTweet(s.ctx, s.bob, TweetInput{
		Content:   "@alice @Wanderer you have to try the pierogi",
		ReplyToID: s.tweet.ID,
	})
	s.Require().NoError(err)
	s.Require().NotNil(reply.ReplyToID)
	s.Equal(s.tweet.ID, *reply.ReplyToID)

	var parent models.Tweet
	s.Require().NoError(database.DB.First(&parent, "id = ?", s.tweet.ID).Error)
	s.Equal(1, parent.ReplyCount)

	s.Equal(int64(1), s.notificationsFor(s.alice.ID, models.NotificationReply))
	s.Equal(int64(0), s.notificationsFor(s.alice.ID, models.NotificationMention), "the replied-to author only gets the reply")
	s.Equal(int64(1), s.notificationsFor(s.private.ID, models.NotificationMention))
	s.True(s.feeds.AssertNotCalled("AddTweetActivity"), "replies stay out of feeds")
}

func (s *SocialTestSuite) TestReplyToUnknownOrHiddenTweet() {
	_, err := s.svc.CreateTweet(s.ctx, s.bob, TweetInput{Content: "hi", ReplyToID: "missing"})
	s.ErrorIs(err, ErrTweetNotFound)

	hidden := &models.Tweet{UserID: s.private.ID, Content: "followers only"}
	s.Require().NoError(database.DB.Create(hidden).Error)

	_, err = s.svc.CreateTweet(s.ctx, s.bob, TweetInput{Content: "hi", ReplyToID: hidden.ID})
	s.ErrorIs(err, ErrForbidden)
}

func (s *SocialTestSuite) TestUpdateTweet() {
	content := " Night bus to Kraków, actually "
	tweet, err := s.svc.UpdateTweet(s.ctx, s.alice.ID, s.tweet.ID, TweetUpdate{Content: &content})
	s.Require().NoError(err)
	s.Equal("Night bus to Kraków, actually", tweet.Content)
	s.Require().NotNil(tweet.EditedAt)

	_, err = s.svc.UpdateTweet(s.ctx, s.bob.ID, s.tweet.ID, TweetUpdate{Content: &content})
	s.ErrorIs(err, ErrForbidden)

	empty := ""
	_, err = s.svc.UpdateTweet(s.ctx, s.alice.ID, s.tweet.ID, TweetUpdate{Content: &empty})
	s.ErrorIs(err, ErrEmptyTweet)

	_, err = s.svc.UpdateTweet(s.ctx, s.alice.ID, "missing", TweetUpdate{Content: &content})
	s.ErrorIs(err, ErrTweetNotFound)
}

func (s *SocialTestSuite) TestDeleteTweetRemovesEverything() {
	s.Require().NoError(database.DB.Model(s.alice).UpdateColumn("tweet_count", 1).Error)

	_, _, err := s.svc.ToggleLike(s.ctx, s.bob.ID, s.tweet.ID)
	s.Require().NoError(err)
	_, _, err = s.svc.ToggleBookmark(s.ctx, s.bob.ID, s.tweet.ID)
	s.Require().NoError(err)
	reply, err := s.svc.CreateTweet(s.ctx, s.bob, TweetInput{Content: "so jealous", ReplyToID: s.tweet.ID})
	s.Require().NoError(err)

	_, err = s.svc.DeleteTweet(s.ctx, s.bob.ID, s.tweet.ID)
	s.ErrorIs(err, ErrForbidden)

	deleted, err := s.svc.DeleteTweet(s.ctx, s.alice.ID, s.tweet.ID)
	s.Require().NoError(err)
	s.Equal(s.tweet.ID, deleted.ID)

	for _, model := range []interface{}{&models.Like{}, &models.Bookmark{}} {
		var count int64
		s.Require().NoError(database.DB.Model(model).Where("tweet_id = ?", s.tweet.ID).Count(&count).Error)
		s.Zero(count)
	}
	s.Zero(s.notificationsFor(s.alice.ID, models.NotificationLike))
	s.Zero(s.reloadUser(s.alice.ID).TweetCount)

	var orphan models.Tweet
	s.Require().NoError(database.DB.First(&orphan, "id = ?", reply.ID).Error)
	s.Nil(orphan.ReplyToID, "replies survive without their parent")

	s.True(s.feeds.AssertCallCount("RemoveTweetActivity", 1))

	_, err = s.svc.DeleteTweet(s.ctx, s.alice.ID, s.tweet.ID)
	s.ErrorIs(err, ErrTweetNotFound)
}

func (s *SocialTestSuite) TestDeletingReplyDropsParentReplyCount() {
	reply, err := s.svc.CreateTweet(s.ctx, s.bob, TweetInput{Content: "same!", ReplyToID: s.tweet.ID})
	s.Require().NoError(err)

	_, err = s.svc.DeleteTweet(s.ctx, s.bob.ID, reply.ID)
	s.Require().NoError(err)

	var parent models.Tweet
	s.Require().NoError(database.DB.First(&parent, "id = ?", s.tweet.ID).Error)
	s.Zero(parent.ReplyCount)
	s.Zero(s.notificationsFor(s.alice.ID, models.NotificationReply))
}
