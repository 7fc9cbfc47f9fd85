// Package sqlite persists the notification audit log in SQLite. The log is
// append-only.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/releaseline/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/releaseline/internal/services/notifier/domain"
	"github.com/louisbranch/releaseline/internal/services/notifier/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed audit log persistence.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a notification SQLite store at the provided path and applies
// migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping reports audit log storage liveness.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("notification storage is not configured")
	}
	return s.sqlDB.PingContext(ctx)
}

// AppendRecord writes one audit log entry.
func (s *Store) AppendRecord(ctx context.Context, record domain.NotificationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("notification storage is not configured")
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("record id is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO notification_logs (id, recipient, subject, body, event_type, delivery_status, related_event_id, error_message, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		record.ID,
		record.Recipient,
		record.Subject,
		record.Body,
		string(record.EventType),
		string(record.DeliveryStatus),
		record.RelatedEventID,
		record.ErrorMessage,
		toMillis(record.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("append notification record %s: %w", record.ID, err)
	}
	return nil
}

// ListRecords returns the most recent audit entries, newest first.
func (s *Store) ListRecords(ctx context.Context, limit int) ([]domain.NotificationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("notification storage is not configured")
	}
	if limit <= 0 {
		return []domain.NotificationRecord{}, nil
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, recipient, subject, body, event_type, delivery_status, related_event_id, error_message, created_at
FROM notification_logs
ORDER BY created_at DESC, id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list notification records: %w", err)
	}
	defer rows.Close()

	records := make([]domain.NotificationRecord, 0, limit)
	for rows.Next() {
		var (
			record         domain.NotificationRecord
			eventType      string
			deliveryStatus string
			createdAt      int64
		)
		if err := rows.Scan(&record.ID, &record.Recipient, &record.Subject, &record.Body, &eventType, &deliveryStatus, &record.RelatedEventID, &record.ErrorMessage, &createdAt); err != nil {
			return nil, fmt.Errorf("scan notification record: %w", err)
		}
		record.EventType = domain.EventType(eventType)
		record.DeliveryStatus = domain.DeliveryStatus(deliveryStatus)
		record.Timestamp = fromMillis(createdAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notification records: %w", err)
	}
	return records, nil
}
