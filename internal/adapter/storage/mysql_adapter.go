package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// mysqlDuplicateEntry is MySQL error 1062, raised on unique-key violations.
const mysqlDuplicateEntry = 1062

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func isDuplicateEntry(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		description TEXT,
		price DECIMAL(12,2) NOT NULL,
		unit VARCHAR(50) NOT NULL DEFAULT 'kg',
		available BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		customer_name VARCHAR(255) NOT NULL,
		customer_phone VARCHAR(50) NOT NULL,
		delivery_address TEXT,
		device_id VARCHAR(255),
		total_amount DECIMAL(12,2) NOT NULL,
		payment_proof_ref VARCHAR(500),
		status VARCHAR(50) NOT NULL DEFAULT 'pending',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		INDEX idx_orders_status (status),
		INDEX idx_orders_created (created_at)
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		order_id BIGINT NOT NULL,
		product_id BIGINT NOT NULL,
		product_name VARCHAR(255) NOT NULL,
		product_price DECIMAL(12,2) NOT NULL,
		quantity INT NOT NULL,
		subtotal DECIMAL(12,2) NOT NULL,
		CONSTRAINT fk_order_items_order FOREIGN KEY (order_id)
			REFERENCES orders(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS device_tokens (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		device_id VARCHAR(255) NOT NULL,
		token VARCHAR(500) NOT NULL,
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_device_tokens_token (token),
		INDEX idx_device_tokens_admin (is_admin)
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		message TEXT NOT NULL,
		sent_count INT NOT NULL DEFAULT 0,
		failed_count INT NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS notification_recipients (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		notification_id BIGINT NOT NULL,
		device_id VARCHAR(255) NOT NULL,
		token_id BIGINT NULL,
		sent_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		is_clicked BOOLEAN NOT NULL DEFAULT FALSE,
		clicked_at DATETIME NULL,
		CONSTRAINT fk_recipients_notification FOREIGN KEY (notification_id)
			REFERENCES notifications(id) ON DELETE CASCADE,
		CONSTRAINT fk_recipients_token FOREIGN KEY (token_id)
			REFERENCES device_tokens(id)
	)`,
}

// InitSchema creates the tables if they do not exist yet.
func (m *MySQLAdapter) InitSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}
