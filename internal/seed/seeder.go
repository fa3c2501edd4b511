package seed

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/zfogg/traveltweets/internal/logger"
	"github.com/zfogg/traveltweets/internal/messaging"
	"github.com/zfogg/traveltweets/internal/models"
	"github.com/zfogg/traveltweets/internal/social"
	"github.com/zfogg/traveltweets/internal/util"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DevPassword is the password of every seeded account
const DevPassword = "password123"

var places = []string{
	"Lisbon", "Porto", "Kraków", "Kyoto", "Oaxaca", "Hoi An", "Tbilisi",
	"Reykjavík", "Cusco", "Marrakech", "Hobart", "Valparaíso", "Ljubljana",
}

var openers = []string{
	"Just landed in %s",
	"Golden hour in %s",
	"Lost in the back streets of %s",
	"Best coffee so far is in %s",
	"Night train out of %s",
	"Rainy day in %s, still worth it",
	"Street food crawl in %s",
}

// Seeder fills a database with believable travellers. Tweets, follows,
// likes and messages go through the services so counters and
// notifications stay consistent.
type Seeder struct {
	db        *gorm.DB
	social    *social.Service
	messaging *messaging.Service
	rng       *rand.Rand
}

// NewSeeder creates a seeder. The services must write to db.
func NewSeeder(db *gorm.DB, socialService *social.Service, messagingService *messaging.Service) *Seeder {
	seed := time.Now().UnixNano()
	_ = gofakeit.Seed(seed)
	return &Seeder{
		db:        db,
		social:    socialService,
		messaging: messagingService,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// SeedDev creates a populated development network
func (s *Seeder) SeedDev(ctx context.Context, userCount int) error {
	logger.Log.Info("Creating users...", zap.Int("count", userCount))
	users, err := s.seedUsers(userCount)
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	logger.Log.Info("Creating follows...")
	if err := s.seedFollows(ctx, users); err != nil {
		return fmt.Errorf("failed to seed follows: %w", err)
	}

	logger.Log.Info("Creating tweets...")
	tweets, err := s.seedTweets(ctx, users, userCount*6)
	if err != nil {
		return fmt.Errorf("failed to seed tweets: %w", err)
	}

	logger.Log.Info("Creating likes, retweets and bookmarks...")
	if err := s.seedEngagement(ctx, users, tweets, userCount*15); err != nil {
		return fmt.Errorf("failed to seed engagement: %w", err)
	}

	logger.Log.Info("Creating conversations...")
	if err := s.seedConversations(ctx, users, userCount/2); err != nil {
		return fmt.Errorf("failed to seed conversations: %w", err)
	}
	return nil
}

// SeedTest creates the fixed accounts end-to-end tests sign in with:
// alice and bob are public, wanderer is private.
func (s *Seeder) SeedTest(ctx context.Context) error {
	fixtures := []struct {
		username    string
		displayName string
		private     bool
	}{
		{"alice", "Alice", false},
		{"bob", "Bob", false},
		{"wanderer", "Wanderer", true},
	}

	users := make([]*models.User, 0, len(fixtures))
	for _, f := range fixtures {
		user, err := s.createUser(f.username, f.username+"@example.com", f.displayName, f.private)
		if err != nil {
			return err
		}
		users = append(users, user)
	}

	if _, err := s.social.ToggleFollow(ctx, users[1].ID, users[0].ID); err != nil {
		return err
	}
	if _, err := s.social.CreateTweet(ctx, users[0], social.TweetInput{
		Content:  "Night train to Kraków",
		Location: "Kraków",
	}); err != nil {
		return err
	}

	logger.Log.Info("Created test users", zap.Int("count", len(users)))
	return nil
}

// Clean deletes all application data. Development only.
func (s *Seeder) Clean() error {
	tables := []string{
		"messages", "conversations",
		"notifications", "notification_preferences",
		"likes", "retweets", "bookmarks",
		"tweets", "follows",
		"password_resets", "oauth_providers", "users",
	}
	for _, table := range tables {
		if err := s.db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clean %s: %w", table, err)
		}
	}
	return nil
}

func (s *Seeder) seedUsers(count int) ([]*models.User, error) {
	users := make([]*models.User, 0, count)
	for len(users) < count {
		username := seedUsername()
		user, err := s.createUser(username, strings.ToLower(username)+"@example.com", gofakeit.Name(), s.rng.Float32() < 0.2)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			continue
		}
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

func seedUsername() string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return -1
	}, gofakeit.Username())
	if len(name) > 30 {
		name = name[:30]
	}
	if !util.IsValidUsername(name) {
		return seedUsername()
	}
	return name
}

func (s *Seeder) createUser(username, email, displayName string, private bool) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(DevPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	hashStr := string(hash)

	user := &models.User{
		Email:        email,
		Username:     username,
		DisplayName:  displayName,
		Bio:          gofakeit.HipsterSentence(),
		Location:     fmt.Sprintf("%s, %s", gofakeit.City(), gofakeit.Country()),
		AvatarURL:    fmt.Sprintf("https://api.dicebear.com/7.x/avataaars/png?seed=%s", username),
		PasswordHash: &hashStr,
		IsPrivate:    private,
	}
	lastActive := gofakeit.DateRange(time.Now().AddDate(0, 0, -30), time.Now())
	user.LastActiveAt = &lastActive

	if err := s.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Seeder) seedFollows(ctx context.Context, users []*models.User) error {
	for _, follower := range users {
		for i := 0; i < 3+s.rng.Intn(8); i++ {
			target := users[s.rng.Intn(len(users))]
			if target.ID == follower.ID {
				continue
			}
			var existing int64
			s.db.Model(&models.Follow{}).Where("follower_id = ? AND following_id = ?", follower.ID, target.ID).Count(&existing)
			if existing > 0 {
				continue
			}
			if _, err := s.social.ToggleFollow(ctx, follower.ID, target.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Seeder) seedTweets(ctx context.Context, users []*models.User, count int) ([]*models.Tweet, error) {
	tweets := make([]*models.Tweet, 0, count)
	for i := 0; i < count; i++ {
		author := users[s.rng.Intn(len(users))]
		place := places[s.rng.Intn(len(places))]
		in := social.TweetInput{
			Content:  fmt.Sprintf(openers[s.rng.Intn(len(openers))], place) + ". " + gofakeit.HipsterSentence(),
			Location: place,
		}
		// A quarter are replies to earlier tweets
		if len(tweets) > 0 && s.rng.Float32() < 0.25 {
			parent := tweets[s.rng.Intn(len(tweets))]
			in.ReplyToID = parent.ID
			in.Content = gofakeit.HipsterSentence()
		}

		tweet, err := s.social.CreateTweet(ctx, author, in)
		if errors.Is(err, social.ErrForbidden) || errors.Is(err, social.ErrTweetTooLong) {
			continue
		}
		if err != nil {
			return nil, err
		}

		createdAt := gofakeit.DateRange(time.Now().AddDate(0, 0, -14), time.Now())
		if err := s.db.Model(tweet).Update("created_at", createdAt).Error; err != nil {
			return nil, err
		}
		tweets = append(tweets, tweet)
	}
	return tweets, nil
}

func (s *Seeder) seedEngagement(ctx context.Context, users []*models.User, tweets []*models.Tweet, count int) error {
	if len(tweets) == 0 {
		return nil
	}
	for i := 0; i < count; i++ {
		user := users[s.rng.Intn(len(users))]
		tweet := tweets[s.rng.Intn(len(tweets))]

		var err error
		switch roll := s.rng.Float32(); {
		case roll < 0.7:
			_, _, err = s.social.ToggleLike(ctx, user.ID, tweet.ID)
		case roll < 0.85:
			_, _, err = s.social.ToggleRetweet(ctx, user.ID, tweet.ID)
		default:
			_, _, err = s.social.ToggleBookmark(ctx, user.ID, tweet.ID)
		}
		if err != nil && !errors.Is(err, social.ErrSelfRetweet) {
			return err
		}
	}
	return nil
}

func (s *Seeder) seedConversations(ctx context.Context, users []*models.User, count int) error {
	for i := 0; i < count; i++ {
		a := users[s.rng.Intn(len(users))]
		b := users[s.rng.Intn(len(users))]
		if a.ID == b.ID {
			continue
		}
		for turn := 0; turn < 2+s.rng.Intn(5); turn++ {
			sender, recipient := a, b
			if turn%2 == 1 {
				sender, recipient = b, a
			}
			_, _, err := s.messaging.SendMessage(ctx, sender, messaging.SendInput{
				RecipientID: recipient.ID,
				Content:     gofakeit.HipsterSentence(),
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}
