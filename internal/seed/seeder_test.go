package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/zfogg/traveltweets/internal/database"
	"github.com/zfogg/traveltweets/internal/messaging"
	"github.com/zfogg/traveltweets/internal/models"
	"github.com/zfogg/traveltweets/internal/notifications"
	"github.com/zfogg/traveltweets/internal/social"
)

type SeederTestSuite struct {
	suite.Suite
	seeder *Seeder
}

func TestSeederSuite(t *testing.T) {
	suite.Run(t, new(SeederTestSuite))
}

func (s *SeederTestSuite) SetupTest() {
	var err error
	database.DB, err = database.NewTestDB()
	s.Require().NoError(err)

	notifier := notifications.NewService(nil, nil)
	s.seeder = NewSeeder(database.DB, social.NewService(notifier, nil), messaging.NewService(notifier, nil, nil))
}

func (s *SeederTestSuite) TearDownTest() {
	_ = database.Close()
}

func (s *SeederTestSuite) count(model interface{}) int64 {
	var n int64
	s.Require().NoError(database.DB.Model(model).Count(&n).Error)
	return n
}

func (s *SeederTestSuite) TestSeedTestFixtures() {
	s.Require().NoError(s.seeder.SeedTest(context.Background()))

	s.Equal(int64(3), s.count(&models.User{}))
	s.Equal(int64(1), s.count(&models.Follow{}))
	s.Equal(int64(1), s.count(&models.Tweet{}))

	var alice models.User
	s.Require().NoError(database.DB.First(&alice, "username = ?", "alice").Error)
	s.Equal(1, alice.FollowerCount)
	s.Equal(1, alice.TweetCount)
}

func (s *SeederTestSuite) TestSeedDevThenClean() {
	s.Require().NoError(s.seeder.SeedDev(context.Background(), 6))
	s.Equal(int64(6), s.count(&models.User{}))
	s.Positive(s.count(&models.Tweet{}))

	s.Require().NoError(s.seeder.Clean())
	s.Zero(s.count(&models.User{}))
	s.Zero(s.count(&models.Tweet{}))
	s.Zero(s.count(&models.Notification{}))
}
