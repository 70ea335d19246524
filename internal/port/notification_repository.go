package port

import (
	"context"

	"github.com/freshmart/order-core/internal/core/domain"
)

type NotificationRepository interface {
	// CreateNotification inserts a zero-count record and returns its id.
	// The id is a plain value; callers hold it, never a row handle, across
	// later commit/rollback boundaries.
	CreateNotification(ctx context.Context, title, message string) (int64, error)

	// FinalizeDispatch records the final tallies and, when recipients is
	// non-nil, replaces the recipient rows for the notification. It is
	// idempotent by notification id so a failed recording step can be
	// retried without re-sending anything.
	FinalizeDispatch(ctx context.Context, id int64, sent, failed int, recipients []domain.NotificationRecipient) error

	// GetNotification returns (nil, nil) when absent.
	GetNotification(ctx context.Context, id int64) (*domain.Notification, error)

	// MarkClicked returns false when there is no matching unclicked
	// recipient row.
	MarkClicked(ctx context.Context, notificationID int64, deviceID string) (bool, error)
}
