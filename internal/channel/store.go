package channel

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/releaseline/internal/channel/migrations"
	sqlitemigrate "github.com/louisbranch/releaseline/internal/platform/storage/sqlitemigrate"
	_ "modernc.org/sqlite"
)

// processingLease bounds how long a claimed message stays invisible before a
// crashed consumer's claim is considered stale.
const processingLease = 2 * time.Minute

// Store provides SQLite-backed channel persistence shared by producers and
// consumers.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a channel SQLite store at the provided path and applies
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

// Ping reports channel storage liveness.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("channel storage is not configured")
	}
	return s.sqlDB.PingContext(ctx)
}

// Publish appends one message to a named channel with a routing key.
func (s *Store) Publish(ctx context.Context, channelName, routingKey string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("channel storage is not configured")
	}
	channelName = strings.TrimSpace(channelName)
	if channelName == "" {
		return fmt.Errorf("channel name is required")
	}
	routingKey = strings.TrimSpace(routingKey)
	if routingKey == "" {
		return fmt.Errorf("routing key is required")
	}
	if len(payload) == 0 {
		return fmt.Errorf("payload is required")
	}

	now := toMillis(time.Now())
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO channel_messages (
	channel, routing_key, payload, status, attempt_count, next_attempt_at, enqueued_at, updated_at
) VALUES (?, ?, ?, 'pending', 0, ?, ?, ?)
`,
		channelName,
		routingKey,
		payload,
		now,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("publish message to %s: %w", channelName, err)
	}
	return nil
}

// ClaimDue claims up to limit deliverable messages on a channel, marking each
// as processing. Messages whose processing lease expired are reclaimed.
func (s *Store) ClaimDue(ctx context.Context, channelName string, now time.Time, limit int) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("channel storage is not configured")
	}
	if limit <= 0 {
		return nil, nil
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer tx.Rollback()

	staleBefore := now.Add(-processingLease)
	rows, err := tx.QueryContext(ctx, `
SELECT id, channel, routing_key, payload, attempt_count, enqueued_at
FROM channel_messages
WHERE channel = ?
  AND (
	(status IN ('pending', 'failed') AND next_attempt_at <= ?)
	OR (status = 'processing' AND updated_at <= ?)
  )
ORDER BY next_attempt_at, id
LIMIT ?
`,
		channelName,
		toMillis(now),
		toMillis(staleBefore),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list due messages: %w", err)
	}
	defer rows.Close()

	candidates := make([]Message, 0, limit)
	for rows.Next() {
		var (
			msg      Message
			enqueued int64
		)
		if err := rows.Scan(&msg.ID, &msg.Channel, &msg.RoutingKey, &msg.Payload, &msg.Attempt, &enqueued); err != nil {
			return nil, fmt.Errorf("scan due message: %w", err)
		}
		msg.EnqueuedAt = fromMillis(enqueued)
		candidates = append(candidates, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due messages: %w", err)
	}

	claimed := make([]Message, 0, len(candidates))
	for _, candidate := range candidates {
		result, err := tx.ExecContext(ctx, `
UPDATE channel_messages
SET status = 'processing', updated_at = ?
WHERE id = ?
  AND (
	(status IN ('pending', 'failed') AND next_attempt_at <= ?)
	OR (status = 'processing' AND updated_at <= ?)
  )
`,
			toMillis(now),
			candidate.ID,
			toMillis(now),
			toMillis(staleBefore),
		)
		if err != nil {
			return nil, fmt.Errorf("claim message %d: %w", candidate.ID, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("claim message %d rows affected: %w", candidate.ID, err)
		}
		if affected == 1 {
			claimed = append(claimed, candidate)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim tx: %w", err)
	}
	return claimed, nil
}

// MarkRetry requeues one claimed message for redelivery after a backoff.
func (s *Store) MarkRetry(ctx context.Context, msg Message, now, nextAttempt time.Time, lastError string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("channel storage is not configured")
	}
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE channel_messages
SET status = 'failed',
    attempt_count = ?,
    next_attempt_at = ?,
    last_error = ?,
    updated_at = ?
WHERE id = ? AND status = 'processing'
`,
		msg.Attempt+1,
		toMillis(nextAttempt),
		lastError,
		toMillis(now),
		msg.ID,
	)
	if err != nil {
		return fmt.Errorf("mark retry for message %d: %w", msg.ID, err)
	}
	return ensureSingleRow(result, msg.ID, "mark retry", "updated")
}

// MarkDead routes one claimed message to the channel's dead-letter channel
// for manual inspection.
func (s *Store) MarkDead(ctx context.Context, msg Message, now time.Time, lastError string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("channel storage is not configured")
	}
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE channel_messages
SET channel = ?,
    status = 'dead',
    attempt_count = ?,
    last_error = ?,
    updated_at = ?
WHERE id = ? AND status = 'processing'
`,
		DeadLetterChannel(msg.Channel),
		msg.Attempt+1,
		lastError,
		toMillis(now),
		msg.ID,
	)
	if err != nil {
		return fmt.Errorf("dead-letter message %d: %w", msg.ID, err)
	}
	return ensureSingleRow(result, msg.ID, "dead-letter", "updated")
}

// Complete removes one successfully processed message.
func (s *Store) Complete(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("channel storage is not configured")
	}
	result, err := s.sqlDB.ExecContext(ctx, `
DELETE FROM channel_messages
WHERE id = ? AND status = 'processing'
`, msg.ID)
	if err != nil {
		return fmt.Errorf("complete message %d: %w", msg.ID, err)
	}
	return ensureSingleRow(result, msg.ID, "complete", "deleted")
}

// ListDeadLetters lists dead-lettered messages for a channel, oldest first.
func (s *Store) ListDeadLetters(ctx context.Context, channelName string, limit int) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("channel storage is not configured")
	}
	if limit <= 0 {
		return []Message{}, nil
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, channel, routing_key, payload, attempt_count, enqueued_at
FROM channel_messages
WHERE channel = ? AND status = 'dead'
ORDER BY id
LIMIT ?
`,
		DeadLetterChannel(channelName),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	messages := make([]Message, 0, limit)
	for rows.Next() {
		var (
			msg      Message
			enqueued int64
		)
		if err := rows.Scan(&msg.ID, &msg.Channel, &msg.RoutingKey, &msg.Payload, &msg.Attempt, &enqueued); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		msg.EnqueuedAt = fromMillis(enqueued)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dead letters: %w", err)
	}
	return messages, nil
}

// RequeueDeadLetters moves up to limit dead-lettered messages back onto their
// origin channel for reprocessing after a fix.
func (s *Store) RequeueDeadLetters(ctx context.Context, channelName string, limit int, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("channel storage is not configured")
	}
	if limit <= 0 {
		return 0, fmt.Errorf("requeue limit must be greater than zero")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	result, err := s.sqlDB.ExecContext(ctx, `
WITH to_requeue AS (
	SELECT id
	FROM channel_messages
	WHERE channel = ? AND status = 'dead'
	ORDER BY id
	LIMIT ?
)
UPDATE channel_messages
SET channel = ?,
    status = 'pending',
    attempt_count = 0,
    next_attempt_at = ?,
    last_error = '',
    updated_at = ?
WHERE status = 'dead'
  AND id IN (SELECT id FROM to_requeue)
`,
		DeadLetterChannel(channelName),
		limit,
		strings.TrimSpace(channelName),
		toMillis(now),
		toMillis(now),
	)
	if err != nil {
		return 0, fmt.Errorf("requeue dead letters: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("requeue dead letters rows affected: %w", err)
	}
	return int(affected), nil
}

func ensureSingleRow(result sql.Result, id int64, operation, verb string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s message %d rows affected: %w", operation, id, err)
	}
	if affected != 1 {
		return fmt.Errorf("%s message %d: expected 1 row %s, got %d", operation, id, verb, affected)
	}
	return nil
}
