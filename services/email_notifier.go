package services

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"

	"synapse_server/models"
)

// InitializeSESClient initializes the SES client from the default AWS
// config chain.
func InitializeSESClient(region string) (*sesv2.Client, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return sesv2.NewFromConfig(cfg), nil
}

// SESClient is the slice of the SES API the notifier uses.
type SESClient interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailNotifier sends match lifecycle emails through SES. Every send is
// best-effort: the caller logs failures and moves on.
type EmailNotifier struct {
	Client   SESClient
	Store    Store
	From     string
	FromName string
	AppURL   string
	Logger   *zap.Logger
}

func (n *EmailNotifier) SendMatchNotification(ctx context.Context, match *models.Match) NotificationResult {
	request, err := n.Store.GetRequest(ctx, match.RequestID)
	if err != nil {
		return NotificationResult{Err: fmt.Errorf("loading request for notification: %w", err)}
	}
	requester, err := n.Store.GetProfile(ctx, request.RequesterID)
	if err != nil {
		return NotificationResult{Err: fmt.Errorf("loading requester for notification: %w", err)}
	}
	matched, err := n.Store.GetProfile(ctx, match.MatchedUserID)
	if err != nil {
		return NotificationResult{Err: fmt.Errorf("loading matched user for notification: %w", err)}
	}
	if matched.Email == "" {
		return NotificationResult{Err: fmt.Errorf("matched user %s has no email address", matched.ID)}
	}

	acceptURL := fmt.Sprintf("%s/match/%s/accept", n.AppURL, match.ID)
	subject := "You've been matched with a curious student!"
	body := fmt.Sprintf(
		"<p>Hi %s,</p>"+
			"<p>A student from %s (%s) is curious about:</p>"+
			"<blockquote>%s</blockquote>"+
			"<p><a href=\"%s\">Accept or decline this match</a>. "+
			"The match expires on %s.</p>",
		matched.Name, requester.Faculty, requester.Program,
		request.Text, acceptURL, match.ExpiresAt)

	if err := n.send(ctx, matched.Email, subject, body); err != nil {
		return NotificationResult{Err: err}
	}
	n.Logger.Info("match notification sent",
		zap.String("matchId", match.ID), zap.String("to", matched.ID))
	return NotificationResult{Success: true}
}

func (n *EmailNotifier) SendConnectionEmail(ctx context.Context, match *models.Match) NotificationResult {
	request, err := n.Store.GetRequest(ctx, match.RequestID)
	if err != nil {
		return NotificationResult{Err: fmt.Errorf("loading request for connection email: %w", err)}
	}
	requester, err := n.Store.GetProfile(ctx, request.RequesterID)
	if err != nil {
		return NotificationResult{Err: fmt.Errorf("loading requester for connection email: %w", err)}
	}
	matched, err := n.Store.GetProfile(ctx, match.MatchedUserID)
	if err != nil {
		return NotificationResult{Err: fmt.Errorf("loading matched user for connection email: %w", err)}
	}

	subject := "You're connected!"
	// Both parties get each other's contact details.
	pairs := []struct {
		to    *models.Profile
		other *models.Profile
	}{
		{to: requester, other: matched},
		{to: matched, other: requester},
	}

	for _, p := range pairs {
		if p.to.Email == "" {
			return NotificationResult{Err: fmt.Errorf("user %s has no email address", p.to.ID)}
		}
		body := fmt.Sprintf(
			"<p>Hi %s,</p>"+
				"<p>Your match accepted! You are now connected with %s (%s, %s).</p>"+
				"<p>Reach out at <a href=\"mailto:%s\">%s</a> and talk about:</p>"+
				"<blockquote>%s</blockquote>",
			p.to.Name, p.other.Name, p.other.Faculty, p.other.Program,
			p.other.Email, p.other.Email, request.Text)
		if err := n.send(ctx, p.to.Email, subject, body); err != nil {
			return NotificationResult{Err: err}
		}
	}

	n.Logger.Info("connection emails sent", zap.String("matchId", match.ID))
	return NotificationResult{Success: true}
}

func (n *EmailNotifier) send(ctx context.Context, to, subject, htmlBody string) error {
	from := n.From
	if n.FromName != "" {
		from = fmt.Sprintf("%s <%s>", n.FromName, n.From)
	}

	_, err := n.Client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination: &sestypes.Destination{
			ToAddresses: []string{to},
		},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(subject)},
				Body: &sestypes.Body{
					Html: &sestypes.Content{Data: aws.String(htmlBody)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("sending email to %s: %w", to, err)
	}
	return nil
}
