package service

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"

	"speechworks/internal/logging"
	"speechworks/internal/models"
)

// emailSender is the part of the SES client the notifier uses
type emailSender interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailNotifier sends session notices via Amazon SES
type EmailNotifier struct {
	client    emailSender
	fromEmail string
	fromName  string
	toEmail   string
	enabled   bool
	logger    *zap.Logger
}

// EmailOptions configures an EmailNotifier
type EmailOptions struct {
	Region    string
	FromEmail string
	FromName  string
	ToEmail   string
}

// NewEmailNotifier creates a new notifier. It is disabled, and sends nothing,
// unless both a sender and a recipient address are configured.
func NewEmailNotifier(ctx context.Context, opts EmailOptions, logger *zap.Logger) (*EmailNotifier, error) {
	logger = logging.OrNop(logger)
	if opts.FromEmail == "" || opts.ToEmail == "" {
		logger.Info("email notices disabled: SES_FROM_EMAIL or NOTIFY_EMAIL not configured")
		return &EmailNotifier{logger: logger}, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	logger.Info("email notices enabled",
		zap.String("from", opts.FromEmail),
		zap.String("region", opts.Region))
	return newEmailNotifier(sesv2.NewFromConfig(cfg), opts, logger), nil
}

func newEmailNotifier(client emailSender, opts EmailOptions, logger *zap.Logger) *EmailNotifier {
	return &EmailNotifier{
		client:    client,
		fromEmail: opts.FromEmail,
		fromName:  opts.FromName,
		toEmail:   opts.ToEmail,
		enabled:   true,
		logger:    logging.OrNop(logger),
	}
}

// IsEnabled returns whether the notifier sends anything
func (n *EmailNotifier) IsEnabled() bool {
	return n.enabled
}

// SessionCompleted tells the configured recipient that a session completed itself
func (n *EmailNotifier) SessionCompleted(ctx context.Context, session models.TherapySession) error {
	if !n.enabled {
		n.logger.Debug("skipping session completed notice (disabled)", zap.Int64("session_id", session.ID))
		return nil
	}

	when := session.ScheduledStart.Format("Mon 2 Jan 2006 15:04")
	subject := fmt.Sprintf("Session #%d completed", session.ID)
	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<style>
		body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
		.container { max-width: 600px; margin: 0 auto; padding: 20px; }
		.footer { text-align: center; margin-top: 20px; font-size: 12px; color: #666; }
	</style>
</head>
<body>
	<div class="container">
		<h1>Session completed</h1>
		<p>Every activity assigned to session #%d (%s, %d minutes) has been attempted,
		so the session was marked completed.</p>
		<p>Remember to finish the SOAP notes.</p>
		<div class="footer">
			<p>This is an automated email from SpeechWorks. Please do not reply.</p>
		</div>
	</div>
</body>
</html>
`, session.ID, when, session.DurationMinutes)

	textBody := fmt.Sprintf(`Every activity assigned to session #%d (%s, %d minutes) has been attempted,
so the session was marked completed.

Remember to finish the SOAP notes.

---
This is an automated email from SpeechWorks. Please do not reply.
`, session.ID, when, session.DurationMinutes)

	return n.sendEmail(ctx, subject, htmlBody, textBody)
}

func (n *EmailNotifier) sendEmail(ctx context.Context, subject, htmlBody, textBody string) error {
	fromAddress := n.fromEmail
	if n.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", n.fromName, n.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{n.toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(htmlBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	result, err := n.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", n.toEmail, err)
	}

	fields := []zap.Field{zap.String("to", n.toEmail), zap.String("subject", subject)}
	if result.MessageId != nil {
		fields = append(fields, zap.String("message_id", *result.MessageId))
	}
	n.logger.Info("email sent", fields...)
	return nil
}
