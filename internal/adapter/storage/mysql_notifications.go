package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/freshmart/order-core/internal/core/domain"
)

func (m *MySQLAdapter) CreateNotification(ctx context.Context, title, message string) (int64, error) {
	res, err := m.db.ExecContext(ctx, `
		INSERT INTO notifications (title, message, sent_count, failed_count, created_at)
		VALUES (?, ?, 0, 0, ?)`,
		title, message, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert notification: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("notification id: %w", err)
	}
	return id, nil
}

// FinalizeDispatch writes the tallies and, when recipients is non-nil,
// replaces the recipient rows for the notification. Replacing rather than
// appending keeps the operation idempotent by notification id.
func (m *MySQLAdapter) FinalizeDispatch(ctx context.Context, id int64, sent, failed int, recipients []domain.NotificationRecipient) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE notifications SET sent_count = ?, failed_count = ? WHERE id = ?`,
		sent, failed, id); err != nil {
		return fmt.Errorf("update notification counts: %w", err)
	}

	if recipients != nil {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM notification_recipients WHERE notification_id = ?`, id); err != nil {
			return fmt.Errorf("clear recipients: %w", err)
		}
		for _, r := range recipients {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO notification_recipients (notification_id, device_id, token_id, sent_at)
				VALUES (?, ?, ?, ?)`,
				id, r.DeviceID, nullInt64(r.TokenID), time.Now().UTC()); err != nil {
				return fmt.Errorf("insert recipient: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit dispatch record: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) GetNotification(ctx context.Context, id int64) (*domain.Notification, error) {
	var n domain.Notification
	err := m.db.QueryRowContext(ctx, `
		SELECT id, title, message, sent_count, failed_count, created_at
		FROM notifications WHERE id = ?`, id,
	).Scan(&n.ID, &n.Title, &n.Message, &n.SentCount, &n.FailedCount, &n.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query notification: %w", err)
	}
	return &n, nil
}

func (m *MySQLAdapter) MarkClicked(ctx context.Context, notificationID int64, deviceID string) (bool, error) {
	res, err := m.db.ExecContext(ctx, `
		UPDATE notification_recipients
		SET is_clicked = TRUE, clicked_at = NOW()
		WHERE notification_id = ? AND device_id = ? AND is_clicked = FALSE`,
		notificationID, deviceID,
	)
	if err != nil {
		return false, fmt.Errorf("mark clicked: %w", err)
	}
	rows, _ := res.RowsAffected()
	return rows > 0, nil
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}
