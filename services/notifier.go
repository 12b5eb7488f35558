package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"synapse_server/models"
)

// NotificationResult reports the outcome of a best-effort notification.
type NotificationResult struct {
	Success bool
	Err     error
}

// Notifier delivers match lifecycle notifications. Both operations are
// best-effort: failures are logged by callers and never abort the match or
// request state change that triggered them.
type Notifier interface {
	// SendMatchNotification tells the matched user they have a pending match.
	SendMatchNotification(ctx context.Context, match *models.Match) NotificationResult
	// SendConnectionEmail connects both parties after an accept.
	SendConnectionEmail(ctx context.Context, match *models.Match) NotificationResult
}

// MultiNotifier fans a notification out to every configured channel. The
// combined result succeeds only when every channel succeeded.
type MultiNotifier struct {
	Notifiers []Notifier
	Logger    *zap.Logger
}

func (m *MultiNotifier) SendMatchNotification(ctx context.Context, match *models.Match) NotificationResult {
	return m.fanOut(match, func(n Notifier) NotificationResult {
		return n.SendMatchNotification(ctx, match)
	})
}

func (m *MultiNotifier) SendConnectionEmail(ctx context.Context, match *models.Match) NotificationResult {
	return m.fanOut(match, func(n Notifier) NotificationResult {
		return n.SendConnectionEmail(ctx, match)
	})
}

func (m *MultiNotifier) fanOut(match *models.Match, send func(Notifier) NotificationResult) NotificationResult {
	var errs []error
	for _, n := range m.Notifiers {
		if result := send(n); !result.Success {
			m.Logger.Warn("notification channel failed",
				zap.String("matchId", match.ID),
				zap.Error(result.Err))
			errs = append(errs, result.Err)
		}
	}
	if len(errs) > 0 {
		return NotificationResult{Err: errors.Join(errs...)}
	}
	return NotificationResult{Success: true}
}
