// Package sqlite persists release aggregates in SQLite. Each aggregate write
// replaces the release row together with its task and comment rows, so reads
// always observe a consistent aggregate. Comment trees are flattened into one
// arena table keyed by parent_id and rebuilt on load.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/releaseline/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/releaseline/internal/services/release/domain"
	"github.com/louisbranch/releaseline/internal/services/release/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed release persistence.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func toNullMillis(value *time.Time) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*value), Valid: true}
}

func fromNullMillis(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	ts := fromMillis(value.Int64)
	return &ts
}

// Open opens a release SQLite store at the provided path and applies
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

// Ping reports release storage liveness.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("release storage is not configured")
	}
	return s.sqlDB.PingContext(ctx)
}

// PutRelease writes one release aggregate, replacing its existing task and
// comment rows.
func (s *Store) PutRelease(ctx context.Context, release domain.Release) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("release storage is not configured")
	}
	if strings.TrimSpace(release.ID) == "" {
		return fmt.Errorf("release id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put tx: %w", err)
	}
	defer tx.Rollback()

	reopened := 0
	if release.Reopened {
		reopened = 1
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO releases (id, name, description, status, reopened, hotfix_count, reopened_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	name = excluded.name,
	description = excluded.description,
	status = excluded.status,
	reopened = excluded.reopened,
	hotfix_count = excluded.hotfix_count,
	reopened_at = excluded.reopened_at,
	updated_at = excluded.updated_at
`,
		release.ID,
		release.Name,
		release.Description,
		string(release.Status),
		reopened,
		release.HotfixCount,
		toNullMillis(release.ReopenedAt),
		toMillis(release.CreatedAt),
		toMillis(release.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert release %s: %w", release.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE release_id = ?`, release.ID); err != nil {
		return fmt.Errorf("clear comments for %s: %w", release.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE release_id = ?`, release.ID); err != nil {
		return fmt.Errorf("clear tasks for %s: %w", release.ID, err)
	}

	for position, task := range release.Tasks {
		_, err := tx.ExecContext(ctx, `
INSERT INTO tasks (id, release_id, title, description, status, assigned_developer_id, order_index, position, started_at, completed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
			task.ID,
			release.ID,
			task.Title,
			task.Description,
			string(task.Status),
			task.AssignedDeveloperID,
			task.OrderIndex,
			position,
			toNullMillis(task.StartedAt),
			toNullMillis(task.CompletedAt),
		)
		if err != nil {
			return fmt.Errorf("insert task %s: %w", task.ID, err)
		}
		if err := insertComments(ctx, tx, release.ID, task.ID, sql.NullString{}, task.Comments); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put tx: %w", err)
	}
	return nil
}

func insertComments(ctx context.Context, tx *sql.Tx, releaseID, taskID string, parentID sql.NullString, comments []domain.Comment) error {
	for position, comment := range comments {
		_, err := tx.ExecContext(ctx, `
INSERT INTO comments (id, release_id, task_id, parent_id, author_id, content, position, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`,
			comment.ID,
			releaseID,
			taskID,
			parentID,
			comment.AuthorID,
			comment.Content,
			position,
			toMillis(comment.Timestamp),
		)
		if err != nil {
			return fmt.Errorf("insert comment %s: %w", comment.ID, err)
		}
		childParent := sql.NullString{String: comment.ID, Valid: true}
		if err := insertComments(ctx, tx, releaseID, taskID, childParent, comment.Replies); err != nil {
			return err
		}
	}
	return nil
}

// GetRelease loads one release aggregate by id.
func (s *Store) GetRelease(ctx context.Context, id string) (domain.Release, error) {
	if err := ctx.Err(); err != nil {
		return domain.Release{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Release{}, fmt.Errorf("release storage is not configured")
	}

	release, err := s.loadReleaseRow(ctx, id)
	if err != nil {
		return domain.Release{}, err
	}
	if err := s.loadTasks(ctx, &release); err != nil {
		return domain.Release{}, err
	}
	return release, nil
}

func (s *Store) loadReleaseRow(ctx context.Context, id string) (domain.Release, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, name, description, status, reopened, hotfix_count, reopened_at, created_at, updated_at
FROM releases
WHERE id = ?
`, id)

	var (
		release    domain.Release
		status     string
		reopened   int
		reopenedAt sql.NullInt64
		createdAt  int64
		updatedAt  int64
	)
	err := row.Scan(&release.ID, &release.Name, &release.Description, &status, &reopened, &release.HotfixCount, &reopenedAt, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Release{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Release{}, fmt.Errorf("scan release %s: %w", id, err)
	}
	release.Status = domain.ReleaseStatus(status)
	release.Reopened = reopened != 0
	release.ReopenedAt = fromNullMillis(reopenedAt)
	release.CreatedAt = fromMillis(createdAt)
	release.UpdatedAt = fromMillis(updatedAt)
	return release, nil
}

func (s *Store) loadTasks(ctx context.Context, release *domain.Release) error {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, title, description, status, assigned_developer_id, order_index, started_at, completed_at
FROM tasks
WHERE release_id = ?
ORDER BY position
`, release.ID)
	if err != nil {
		return fmt.Errorf("list tasks for %s: %w", release.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			task        domain.Task
			status      string
			startedAt   sql.NullInt64
			completedAt sql.NullInt64
		)
		if err := rows.Scan(&task.ID, &task.Title, &task.Description, &status, &task.AssignedDeveloperID, &task.OrderIndex, &startedAt, &completedAt); err != nil {
			return fmt.Errorf("scan task: %w", err)
		}
		task.Status = domain.TaskStatus(status)
		task.StartedAt = fromNullMillis(startedAt)
		task.CompletedAt = fromNullMillis(completedAt)
		release.Tasks = append(release.Tasks, task)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate tasks for %s: %w", release.ID, err)
	}

	for i := range release.Tasks {
		comments, err := s.loadCommentTree(ctx, release.Tasks[i].ID)
		if err != nil {
			return err
		}
		release.Tasks[i].Comments = comments
	}
	return nil
}

// loadCommentTree reads a task's comment arena and rebuilds the reply tree.
// Rows come back in position order, so sibling order within each parent
// survives the round trip.
func (s *Store) loadCommentTree(ctx context.Context, taskID string) ([]domain.Comment, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, parent_id, author_id, content, created_at
FROM comments
WHERE task_id = ?
ORDER BY position, id
`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list comments for task %s: %w", taskID, err)
	}
	defer rows.Close()

	nodes := make(map[string]domain.Comment)
	children := make(map[string][]string)
	var rootIDs []string
	for rows.Next() {
		var (
			comment   domain.Comment
			parentID  sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&comment.ID, &parentID, &comment.AuthorID, &comment.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comment.Timestamp = fromMillis(createdAt)
		nodes[comment.ID] = comment
		if parentID.Valid {
			children[parentID.String] = append(children[parentID.String], comment.ID)
		} else {
			rootIDs = append(rootIDs, comment.ID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments for task %s: %w", taskID, err)
	}

	var build func(id string) domain.Comment
	build = func(id string) domain.Comment {
		node := nodes[id]
		for _, childID := range children[id] {
			node.Replies = append(node.Replies, build(childID))
		}
		return node
	}
	var roots []domain.Comment
	for _, id := range rootIDs {
		roots = append(roots, build(id))
	}
	return roots, nil
}

// ListReleases returns every release aggregate ordered by creation time.
func (s *Store) ListReleases(ctx context.Context) ([]domain.Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("release storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `SELECT id FROM releases ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list releases: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan release id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate releases: %w", err)
	}

	releases := make([]domain.Release, 0, len(ids))
	for _, id := range ids {
		release, err := s.GetRelease(ctx, id)
		if err != nil {
			return nil, err
		}
		releases = append(releases, release)
	}
	return releases, nil
}

// FindReleaseByTaskID loads the release aggregate owning a task.
func (s *Store) FindReleaseByTaskID(ctx context.Context, taskID string) (domain.Release, error) {
	if err := ctx.Err(); err != nil {
		return domain.Release{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Release{}, fmt.Errorf("release storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `SELECT release_id FROM tasks WHERE id = ?`, taskID)
	var releaseID string
	err := row.Scan(&releaseID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Release{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Release{}, fmt.Errorf("find release for task %s: %w", taskID, err)
	}
	return s.GetRelease(ctx, releaseID)
}

// FindReleaseByCommentID loads the release aggregate owning a comment at any
// nesting depth.
func (s *Store) FindReleaseByCommentID(ctx context.Context, commentID string) (domain.Release, error) {
	if err := ctx.Err(); err != nil {
		return domain.Release{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Release{}, fmt.Errorf("release storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `SELECT release_id FROM comments WHERE id = ?`, commentID)
	var releaseID string
	err := row.Scan(&releaseID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Release{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Release{}, fmt.Errorf("find release for comment %s: %w", commentID, err)
	}
	return s.GetRelease(ctx, releaseID)
}

// FindReleasesWithActiveTaskForDeveloper returns every release where the
// developer has an in-process task.
func (s *Store) FindReleasesWithActiveTaskForDeveloper(ctx context.Context, developerID string) ([]domain.Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("release storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT DISTINCT release_id
FROM tasks
WHERE assigned_developer_id = ? AND status = ?
ORDER BY release_id
`, developerID, string(domain.TaskInProcess))
	if err != nil {
		return nil, fmt.Errorf("find active releases for %s: %w", developerID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan release id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active releases: %w", err)
	}

	releases := make([]domain.Release, 0, len(ids))
	for _, id := range ids {
		release, err := s.GetRelease(ctx, id)
		if err != nil {
			return nil, err
		}
		releases = append(releases, release)
	}
	return releases, nil
}

// ListInProcessTasks returns every in-process task across releases together
// with its release id, used by the stale-task detector.
func (s *Store) ListInProcessTasks(ctx context.Context) ([]domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("release storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, title, description, status, assigned_developer_id, order_index, started_at, completed_at
FROM tasks
WHERE status = ?
ORDER BY started_at, id
`, string(domain.TaskInProcess))
	if err != nil {
		return nil, fmt.Errorf("list in-process tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		var (
			task        domain.Task
			status      string
			startedAt   sql.NullInt64
			completedAt sql.NullInt64
		)
		if err := rows.Scan(&task.ID, &task.Title, &task.Description, &status, &task.AssignedDeveloperID, &task.OrderIndex, &startedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan in-process task: %w", err)
		}
		task.Status = domain.TaskStatus(status)
		task.StartedAt = fromNullMillis(startedAt)
		task.CompletedAt = fromNullMillis(completedAt)
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate in-process tasks: %w", err)
	}
	return tasks, nil
}
