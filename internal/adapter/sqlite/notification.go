package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/calegria/opsgate/internal/domain"
)

// NotificationRepository implements domain.NotificationRepository using SQLite.
type NotificationRepository struct {
	db *sql.DB
}

// Compile-time check: NotificationRepository implements domain.NotificationRepository.
var _ domain.NotificationRepository = (*NotificationRepository)(nil)

// NewNotificationRepository creates a notification repository on the store's connection.
func NewNotificationRepository(s *Store) *NotificationRepository {
	return &NotificationRepository{db: s.db}
}

func (r *NotificationRepository) Create(ctx context.Context, n domain.Notification) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (id, recipient, title, message, severity, action_url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.Recipient, n.Title, n.Message, string(n.Severity), n.ActionURL,
		formatTime(n.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting notification: %w", err)
	}
	return nil
}

func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipient string, limit int) ([]domain.Notification, error) {
	query := `SELECT id, recipient, title, message, severity, action_url, created_at
	          FROM notifications WHERE recipient = ? ORDER BY created_at DESC`
	args := []any{recipient}

	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var severity, createdAt string
		if err := rows.Scan(&n.ID, &n.Recipient, &n.Title, &n.Message, &severity, &n.ActionURL, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		n.Severity = domain.Severity(severity)
		n.CreatedAt = parseTime(createdAt)
		out = append(out, n)
	}

	return out, rows.Err()
}
