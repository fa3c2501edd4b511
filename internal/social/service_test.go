package social

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/zfogg/traveltweets/internal/database"
	"github.com/zfogg/traveltweets/internal/models"
	"github.com/zfogg/traveltweets/internal/notifications"
	"github.com/zfogg/traveltweets/internal/stream"
)

type SocialTestSuite struct {
	suite.Suite
	ctx   context.Context
	svc   *Service
	feeds *stream.MockStreamClient

	alice   *models.User // public
	bob     *models.User
	private *models.User
	tweet   *models.Tweet // by alice
}

func TestSocialSuite(t *testing.T) {
	suite.Run(t, new(SocialTestSuite))
}

func (s *SocialTestSuite) SetupTest() {
	var err error
	database.DB, err = database.NewTestDB()
	s.Require().NoError(err)

	s.ctx = context.Background()
	s.feeds = stream.NewMockStreamClient()
	s.svc = NewService(notifications.NewService(nil, nil), s.feeds)

	s.alice = s.createUser("alice", false)
	s.bob = s.createUser("bob", false)
	s.private = s.createUser("wanderer", true)

	s.tweet = &models.Tweet{UserID: s.alice.ID, Content: "Night train to Kraków"}
	s.Require().NoError(database.DB.Create(s.tweet).Error)
}

func (s *SocialTestSuite) TearDownTest() {
	_ = database.Close()
}

func (s *SocialTestSuite) createUser(username string, private bool) *models.User {
	user := &models.User{
		Email:       username + "@example.com",
		Username:    username,
		DisplayName: username,
		IsPrivate:   private,
	}
	s.Require().NoError(database.DB.Create(user).Error)
	return user
}

func (s *SocialTestSuite) reloadUser(id string) models.User {
	var user models.User
	s.Require().NoError(database.DB.First(&user, "id = ?", id).Error)
	return user
}

func (s *SocialTestSuite) notificationsFor(userID string, t models.NotificationType) int64 {
	var count int64
	s.Require().NoError(database.DB.Model(&models.Notification{}).
		Where("user_id = ? AND type = ?", userID, t).Count(&count).Error)
	return count
}

func (s *SocialTestSuite) TestToggleLikeTwiceRestoresStateAndCount() {
	liked, count, err := s.svc.ToggleLike(s.ctx, s.bob.ID, s.tweet.ID)
	s.Require().NoError(err)
	s.True(liked)
	s.Equal(1, count)
	s.Equal(int64(1), s.notificationsFor(s.alice.ID, models.NotificationLike))

	liked, count, err = s.svc.ToggleLike(s.ctx, s.bob.ID, s.tweet.ID)
	s.Require().NoError(err)
	s.False(liked)
	s.Equal(0, count)
	s.Equal(int64(0), s.notificationsFor(s.alice.ID, models.NotificationLike))

	var likes int64
	database.DB.Model(&models.Like{}).Count(&likes)
	s.Equal(int64(0), likes)
}

func (s *SocialTestSuite) TestLikingOwnTweetIsAllowedWithoutNotification() {
	liked, count, err := s.svc.ToggleLike(s.ctx, s.alice.ID, s.tweet.ID)
	s.Require().NoError(err)
	s.True(liked)
	s.Equal(1, count)
	s.Equal(int64(0), s.notificationsFor(s.alice.ID, models.NotificationLike))
}

func (s *SocialTestSuite) TestRetweetOwnTweetIsRejected() {
	_, _, err := s.svc.ToggleRetweet(s.ctx, s.alice.ID, s.tweet.ID)
	s.ErrorIs(err, ErrSelfRetweet)

	retweeted, count, err := s.svc.ToggleRetweet(s.ctx, s.bob.ID, s.tweet.ID)
	s.Require().NoError(err)
	s.True(retweeted)
	s.Equal(1, count)
	s.Equal(int64(1), s.notificationsFor(s.alice.ID, models.NotificationRetweet))
}

func (s *SocialTestSuite) TestBookmarkNotifiesNobody() {
	bookmarked, count, err := s.svc.ToggleBookmark(s.ctx, s.bob.ID, s.tweet.ID)
	s.Require().NoError(err)
	s.True(bookmarked)
	s.Equal(1, count)

	var total int64
	database.DB.Model(&models.Notification{}).Count(&total)
	s.Equal(int64(0), total)
}

func (s *SocialTestSuite) TestToggleUnknownTweet() {
	_, _, err := s.svc.ToggleLike(s.ctx, s.bob.ID, "missing")
	s.ErrorIs(err, ErrTweetNotFound)
}

func (s *SocialTestSuite) TestCounterNeverGoesNegative() {
	s.Require().NoError(database.DB.Create(&models.Like{UserID: s.bob.ID, TweetID: s.tweet.ID}).Error)
	// like_count was never incremented for the row above

	liked, count, err := s.svc.ToggleLike(s.ctx, s.bob.ID, s.tweet.ID)
	s.Require().NoError(err)
	s.False(liked)
	s.Equal(0, count)
}

func (s *SocialTestSuite) TestViewerState() {
	_, _, err := s.svc.ToggleLike(s.ctx, s.bob.ID, s.tweet.ID)
	s.Require().NoError(err)
	_, _, err = s.svc.ToggleBookmark(s.ctx, s.bob.ID, s.tweet.ID)
	s.Require().NoError(err)

	state, err := s.svc.TweetViewerState(s.ctx, s.bob.ID, []string{s.tweet.ID})
	s.Require().NoError(err)
	s.True(state.Liked[s.tweet.ID])
	s.False(state.Retweeted[s.tweet.ID])
	s.True(state.Bookmarked[s.tweet.ID])
}

func (s *SocialTestSuite) TestFollowPublicAccount() {
	state, err := s.svc.ToggleFollow(s.ctx, s.bob.ID, s.alice.ID)
	s.Require().NoError(err)
	s.True(state.IsFollowing)
	s.False(state.IsPending)
	s.Equal(1, state.FollowerCount)

	s.Equal(1, s.reloadUser(s.bob.ID).FollowingCount)
	s.Equal(int64(1), s.notificationsFor(s.alice.ID, models.NotificationFollow))
	s.True(s.feeds.AssertCalled("FollowUser"))

	state, err = s.svc.ToggleFollow(s.ctx, s.bob.ID, s.alice.ID)
	s.Require().NoError(err)
	s.False(state.IsFollowing)
	s.Equal(0, state.FollowerCount)
	s.Equal(0, s.reloadUser(s.bob.ID).FollowingCount)
	s.Equal(int64(0), s.notificationsFor(s.alice.ID, models.NotificationFollow))
	s.True(s.feeds.AssertCalled("UnfollowUser"))
}

func (s *SocialTestSuite) TestFollowPrivateAccountCreatesRequestOnly() {
	state, err := s.svc.ToggleFollow(s.ctx, s.bob.ID, s.private.ID)
	s.Require().NoError(err)
	s.False(state.IsFollowing)
	s.True(state.IsPending)
	s.Equal(0, state.FollowerCount)

	s.Equal(int64(1), s.notificationsFor(s.private.ID, models.NotificationFollowRequest))
	s.Equal(int64(0), s.notificationsFor(s.private.ID, models.NotificationFollow))
	s.Equal(0, s.reloadUser(s.bob.ID).FollowingCount)
	s.True(s.feeds.AssertNotCalled("FollowUser"))
}

func (s *SocialTestSuite) TestTogglingPendingRequestCancelsIt() {
	_, err := s.svc.ToggleFollow(s.ctx, s.bob.ID, s.private.ID)
	s.Require().NoError(err)

	state, err := s.svc.ToggleFollow(s.ctx, s.bob.ID, s.private.ID)
	s.Require().NoError(err)
	s.False(state.IsPending)
	s.False(state.IsFollowing)
	s.Equal(int64(0), s.notificationsFor(s.private.ID, models.NotificationFollowRequest))
	s.True(s.feeds.AssertNotCalled("UnfollowUser"))
}

func (s *SocialTestSuite) TestSelfAndUnknownFollow() {
	_, err := s.svc.ToggleFollow(s.ctx, s.bob.ID, s.bob.ID)
	s.ErrorIs(err, ErrSelfFollow)

	_, err = s.svc.ToggleFollow(s.ctx, s.bob.ID, "nobody")
	s.ErrorIs(err, ErrUserNotFound)
}

func (s *SocialTestSuite) pendingRequest(followerID, targetID string) models.Follow {
	_, err := s.svc.ToggleFollow(s.ctx, followerID, targetID)
	s.Require().NoError(err)

	var follow models.Follow
	s.Require().NoError(database.DB.Where("follower_id = ? AND following_id = ?", followerID, targetID).First(&follow).Error)
	s.Require().True(follow.IsPending())
	return follow
}

func (s *SocialTestSuite) TestAcceptFollowRequest() {
	request := s.pendingRequest(s.bob.ID, s.private.ID)

	_, err := s.svc.AcceptFollowRequest(s.ctx, s.alice.ID, request.ID)
	s.ErrorIs(err, ErrForbidden, "only the target may accept")

	follow, err := s.svc.AcceptFollowRequest(s.ctx, s.private.ID, request.ID)
	s.Require().NoError(err)
	s.Equal(models.FollowStatusAccepted, follow.Status)
	s.NotNil(follow.AcceptedAt)

	s.Equal(1, s.reloadUser(s.private.ID).FollowerCount)
	s.Equal(1, s.reloadUser(s.bob.ID).FollowingCount)
	s.Equal(int64(0), s.notificationsFor(s.private.ID, models.NotificationFollowRequest))
	s.Equal(int64(1), s.notificationsFor(s.bob.ID, models.NotificationFollowAccepted))

	_, err = s.svc.AcceptFollowRequest(s.ctx, s.private.ID, request.ID)
	s.ErrorIs(err, ErrRequestNotFound, "already accepted")

	rel, err := s.svc.Relation(s.ctx, s.bob.ID, s.private.ID)
	s.Require().NoError(err)
	s.True(rel.IsFollowing)
	s.False(rel.IsPending)
}

func (s *SocialTestSuite) TestRejectFollowRequest() {
	request := s.pendingRequest(s.bob.ID, s.private.ID)

	s.Require().NoError(s.svc.RejectFollowRequest(s.ctx, s.private.ID, request.ID))
	s.Equal(int64(0), s.notificationsFor(s.private.ID, models.NotificationFollowRequest))
	s.Equal(0, s.reloadUser(s.private.ID).FollowerCount)

	s.ErrorIs(s.svc.RejectFollowRequest(s.ctx, s.private.ID, request.ID), ErrRequestNotFound)
}

func (s *SocialTestSuite) TestRemoveFollower() {
	_, err := s.svc.ToggleFollow(s.ctx, s.bob.ID, s.alice.ID)
	s.Require().NoError(err)

	s.Require().NoError(s.svc.RemoveFollower(s.ctx, s.alice.ID, s.bob.ID))
	s.Equal(0, s.reloadUser(s.alice.ID).FollowerCount)
	s.Equal(0, s.reloadUser(s.bob.ID).FollowingCount)

	s.ErrorIs(s.svc.RemoveFollower(s.ctx, s.alice.ID, s.bob.ID), ErrFollowNotFound)
}

func (s *SocialTestSuite) TestAcceptAllPending() {
	s.pendingRequest(s.bob.ID, s.private.ID)
	s.pendingRequest(s.alice.ID, s.private.ID)

	accepted, err := s.svc.AcceptAllPending(s.ctx, s.private.ID)
	s.Require().NoError(err)
	s.Equal(2, accepted)
	s.Equal(2, s.reloadUser(s.private.ID).FollowerCount)
	s.Equal(int64(0), s.notificationsFor(s.private.ID, models.NotificationFollowRequest))
	s.True(s.feeds.AssertCallCount("FollowUser", 2))
}

func (s *SocialTestSuite) TestCanViewPrivateAuthor() {
	ok, err := s.svc.CanView(s.ctx, "", s.alice)
	s.Require().NoError(err)
	s.True(ok, "public authors are visible to anyone")

	ok, err = s.svc.CanView(s.ctx, s.bob.ID, s.private)
	s.Require().NoError(err)
	s.False(ok)

	request := s.pendingRequest(s.bob.ID, s.private.ID)
	ok, _ = s.svc.CanView(s.ctx, s.bob.ID, s.private)
	s.False(ok, "pending followers cannot see private tweets")

	_, err = s.svc.AcceptFollowRequest(s.ctx, s.private.ID, request.ID)
	s.Require().NoError(err)
	ok, err = s.svc.CanView(s.ctx, s.bob.ID, s.private)
	s.Require().NoError(err)
	s.True(ok)

	ok, _ = s.svc.CanView(s.ctx, s.private.ID, s.private)
	s.True(ok, "authors see their own tweets")
}
