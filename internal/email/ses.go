package email

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// Sender delivers transactional email
type Sender interface {
	SendPasswordResetEmail(ctx context.Context, toEmail, resetToken string) error
}

// EmailService sends email through AWS SES
type EmailService struct {
	client    *ses.Client
	fromEmail string
	fromName  string
	webAppURL string
}

var _ Sender = (*EmailService)(nil)

// NewEmailService creates an SES-backed sender. webAppURL is where reset
// links point.
func NewEmailService(region, fromEmail, fromName, webAppURL string) (*EmailService, error) {
	if fromEmail == "" {
		return nil, fmt.Errorf("sender address not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &EmailService{
		client:    ses.NewFromConfig(cfg),
		fromEmail: fromEmail,
		fromName:  fromName,
		webAppURL: webAppURL,
	}, nil
}

// ResetURL is the web page that consumes a reset token
func ResetURL(webAppURL, token string) string {
	return fmt.Sprintf("%s/reset-password?token=%s", webAppURL, url.QueryEscape(token))
}

// SendPasswordResetEmail sends the reset link. Links expire after an hour.
func (e *EmailService) SendPasswordResetEmail(ctx context.Context, toEmail, resetToken string) error {
	resetURL := ResetURL(e.webAppURL, resetToken)

	subject := "Reset your Travel Tweets password"
	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; color: #222;">
  <div style="max-width: 560px; margin: 0 auto; padding: 20px;">
    <h1>Reset your password</h1>
    <p>Someone asked to reset the password on your Travel Tweets account.</p>
    <p><a href="%s" style="display: inline-block; padding: 12px 24px; background: #1d9bf0; color: #fff; border-radius: 6px; text-decoration: none;">Choose a new password</a></p>
    <p>The link expires in one hour. If it wasn't you, ignore this email.</p>
    <p style="word-break: break-all; color: #666;">%s</p>
  </div>
</body>
</html>`, resetURL, resetURL)

	textBody := fmt.Sprintf(`Reset your Travel Tweets password

Someone asked to reset the password on your Travel Tweets account.
Open this link within one hour to choose a new one:

%s

If it wasn't you, ignore this email.
`, resetURL)

	from := e.fromEmail
	if e.fromName != "" {
		from = fmt.Sprintf("%s <%s>", e.fromName, e.fromEmail)
	}

	_, err := e.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(from),
		Destination: &types.Destination{ToAddresses: []string{toEmail}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(htmlBody), Charset: aws.String("UTF-8")},
				Text: &types.Content{Data: aws.String(textBody), Charset: aws.String("UTF-8")},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send password reset email: %w", err)
	}
	return nil
}
