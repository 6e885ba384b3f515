package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/leaveledger/internal/adapter/http/dto"
	"github.com/iho/leaveledger/internal/domain"
)

// NotificationService defines the behavior needed by NotificationHandler.
type NotificationService interface {
	ListForUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]*domain.Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
	UnreadCount(ctx context.Context, userID string) (int, error)
}

// NotificationHandler handles notification HTTP requests.
type NotificationHandler struct {
	notificationUC NotificationService
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(notificationUC NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationUC: notificationUC}
}

// ListForEmployee lists the notifications of an employee, newest first.
func (h *NotificationHandler) ListForEmployee(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")
	unreadOnly := r.URL.Query().Get("unread") == "true"
	limit, offset := pagination(r)

	list, err := h.notificationUC.ListForUser(r.Context(), employeeID, unreadOnly, limit, offset)
	if err != nil {
		writeDomainError(w, "failed to list notifications", err)
		return
	}

	unread, err := h.notificationUC.UnreadCount(r.Context(), employeeID)
	if err != nil {
		writeDomainError(w, "failed to count notifications", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListNotificationsResponse{
		Notifications: dto.NotificationsFromDomain(list),
		Unread:        unread,
	})
}

// MarkRead marks a notification of the caller as read.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	requesterID, _ := requester(r)

	if err := h.notificationUC.MarkRead(r.Context(), requesterID, chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "failed to mark notification read", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
