package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/nowastemate/internal/model"
	"github.com/sakif/nowastemate/internal/repository"
)

// LatestNotifications is how many notifications the page header shows.
const LatestNotifications = 5

type NotificationService struct {
	repo   repository.NotificationRepository
	logger *slog.Logger
}

func NewNotificationService(repo repository.NotificationRepository, logger *slog.Logger) *NotificationService {
	return &NotificationService{repo: repo, logger: logger}
}

// Summary returns the unread count and the newest notifications of accountID.
func (s *NotificationService) Summary(ctx context.Context, accountID string) (*model.NotificationSummary, error) {
	unread, err := s.repo.CountUnread(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("service/notify: summary for %s: %w", accountID, err)
	}
	latest, err := s.repo.ListNotifications(ctx, accountID, LatestNotifications)
	if err != nil {
		return nil, fmt.Errorf("service/notify: summary for %s: %w", accountID, err)
	}
	return &model.NotificationSummary{Unread: unread, Latest: latest}, nil
}

// MarkAllRead clears the unread badge of accountID.
func (s *NotificationService) MarkAllRead(ctx context.Context, accountID string) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("service/notify: marking read for %s: %w", accountID, err)
	}
	s.logger.Debug("notifications marked read", slog.String("accountID", accountID), slog.Int64("count", n))
	return n, nil
}
