package usecase

import (
	"context"

	"github.com/iho/leaveledger/internal/domain"
)

// NotificationUseCase exposes delivered notifications to their recipients.
type NotificationUseCase struct {
	repo NotificationRepository
}

// NewNotificationUseCase creates a new NotificationUseCase.
func NewNotificationUseCase(repo NotificationRepository) *NotificationUseCase {
	return &NotificationUseCase{repo: repo}
}

// ListForUser lists notifications of a user, newest first.
func (uc *NotificationUseCase) ListForUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]*domain.Notification, error) {
	if err := domain.ValidateID("user id", userID); err != nil {
		return nil, err
	}

	limit, offset, _ = domain.ValidatePagination(limit, offset)

	return uc.repo.ListByUser(ctx, userID, unreadOnly, limit, offset)
}

// MarkRead marks a notification of userID as read.
func (uc *NotificationUseCase) MarkRead(ctx context.Context, userID, id string) error {
	n, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if n.UserID != userID {
		return domain.ErrForbidden
	}
	if n.Read {
		return nil
	}
	return uc.repo.MarkRead(ctx, id)
}

// UnreadCount returns the number of unread notifications of a user.
func (uc *NotificationUseCase) UnreadCount(ctx context.Context, userID string) (int, error) {
	if err := domain.ValidateID("user id", userID); err != nil {
		return 0, err
	}
	return uc.repo.CountUnread(ctx, userID)
}
