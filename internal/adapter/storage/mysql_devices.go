package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/freshmart/order-core/internal/core/domain"
	"github.com/freshmart/order-core/internal/port"
)

func (m *MySQLAdapter) FindTokenByValue(ctx context.Context, token string) (*domain.DeviceToken, error) {
	var t domain.DeviceToken
	err := m.db.QueryRowContext(ctx, `
		SELECT id, device_id, token, is_admin, created_at, updated_at
		FROM device_tokens WHERE token = ?`, token,
	).Scan(&t.ID, &t.DeviceID, &t.Token, &t.IsAdmin, &t.CreatedAt, &t.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query token: %w", err)
	}
	return &t, nil
}

func (m *MySQLAdapter) InsertToken(ctx context.Context, t *domain.DeviceToken) error {
	now := time.Now().UTC()
	res, err := m.db.ExecContext(ctx, `
		INSERT INTO device_tokens (device_id, token, is_admin, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		t.DeviceID, t.Token, t.IsAdmin, now, now,
	)
	if err != nil {
		if isDuplicateEntry(err) {
			return fmt.Errorf("insert token: %w", port.ErrDuplicateToken)
		}
		return fmt.Errorf("insert token: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("token id: %w", err)
	}
	t.ID = id
	t.CreatedAt = now
	t.UpdatedAt = now
	return nil
}

func (m *MySQLAdapter) UpdateToken(ctx context.Context, id int64, deviceID string, isAdmin bool) (bool, error) {
	res, err := m.db.ExecContext(ctx, `
		UPDATE device_tokens SET device_id = ?, is_admin = ?, updated_at = NOW()
		WHERE id = ?`,
		deviceID, isAdmin, id,
	)
	if err != nil {
		return false, fmt.Errorf("update token: %w", err)
	}

	rows, _ := res.RowsAffected()
	if rows > 0 {
		return true, nil
	}

	// MySQL reports zero affected rows when the new values equal the old
	// ones, so zero does not prove the row is gone. Check explicitly.
	var n int
	err = m.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM device_tokens WHERE id = ?`, id,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check token: %w", err)
	}
	return n > 0, nil
}

func (m *MySQLAdapter) ListTokens(ctx context.Context, audience domain.Audience) ([]domain.DeviceToken, error) {
	query := `
		SELECT id, device_id, token, is_admin, created_at, updated_at
		FROM device_tokens`
	if audience == domain.AudienceAdmins {
		query += ` WHERE is_admin = TRUE`
	}

	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tokens: %w", err)
	}
	defer rows.Close()

	var tokens []domain.DeviceToken
	for rows.Next() {
		var t domain.DeviceToken
		if err := rows.Scan(&t.ID, &t.DeviceID, &t.Token, &t.IsAdmin, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// RemoveToken detaches recipient rows and deletes the token in one
// transaction so the recipient FK never dangles.
func (m *MySQLAdapter) RemoveToken(ctx context.Context, id int64) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE notification_recipients SET token_id = NULL WHERE token_id = ?`, id); err != nil {
		return fmt.Errorf("detach recipients: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM device_tokens WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit token removal: %w", err)
	}
	return nil
}
