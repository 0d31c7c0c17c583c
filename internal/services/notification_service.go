package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	pkglogger "github.com/BradenHooton/authguard/pkg/logger"
)

// SESClient is the subset of the SES API used for notifications
type SESClient interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESLockoutNotifier emails account holders when their account is locked
type SESLockoutNotifier struct {
	sesClient   SESClient
	fromAddress string
	logger      *slog.Logger
}

// NewSESLockoutNotifier creates a notifier using the default AWS credential chain
func NewSESLockoutNotifier(ctx context.Context, region, fromAddress string, logger *slog.Logger) (*SESLockoutNotifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewSESLockoutNotifierWithClient(ses.NewFromConfig(cfg), fromAddress, logger), nil
}

// NewSESLockoutNotifierWithClient creates a notifier around an existing SES client
func NewSESLockoutNotifierWithClient(client SESClient, fromAddress string, logger *slog.Logger) *SESLockoutNotifier {
	return &SESLockoutNotifier{
		sesClient:   client,
		fromAddress: fromAddress,
		logger:      logger,
	}
}

// NotifyLockout sends the lockout email. Identities that are not email addresses are skipped.
func (s *SESLockoutNotifier) NotifyLockout(ctx context.Context, identity, origin string, duration time.Duration, until time.Time) error {
	addr, err := mail.ParseAddress(identity)
	if err != nil {
		s.logger.Debug("skipping lockout notification for non-email identity")
		return nil
	}

	textBody := fmt.Sprintf(`Your account has been temporarily locked

We detected several failed sign-in attempts on your account from %s.
To protect your account, sign-in has been blocked for %s (until %s).

If this was you, wait until the lock expires and try again.
If this was not you, consider changing your password once the lock expires.

This is an automated message. Please do not reply to this email.
`, originOrUnknown(origin), duration.Round(time.Minute), until.UTC().Format(time.RFC1123))

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{addr.Address},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String("Your account has been temporarily locked"),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send lockout email: %w", err)
	}

	s.logger.Info("lockout notification sent",
		slog.String("identity", pkglogger.SanitizedEmail(addr.Address)),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}

func originOrUnknown(origin string) string {
	if origin == "" {
		return "an unknown location"
	}
	return origin
}
