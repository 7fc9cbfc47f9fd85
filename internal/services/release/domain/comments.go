package domain

import (
	"context"
	"errors"
	"strings"

	apperrors "github.com/louisbranch/releaseline/internal/errors"
)

// AddComment attaches a new top-level comment to a task.
func (e *Engine) AddComment(ctx context.Context, taskID, authorID, content string) (Comment, error) {
	if e == nil || e.store == nil {
		return Comment{}, ErrStoreNotConfigured
	}

	release, task, err := e.findTask(ctx, taskID)
	if err != nil {
		return Comment{}, err
	}

	comment, err := e.newComment(authorID, content)
	if err != nil {
		return Comment{}, err
	}
	task.Comments = append(task.Comments, comment)

	if err := e.store.PutRelease(ctx, release); err != nil {
		return Comment{}, err
	}

	e.push("New Comment", "New comment on task "+task.Title+" by "+comment.AuthorID)
	return comment, nil
}

// AddReply attaches a reply to an existing comment anywhere in a task's
// discussion tree. Replies nest without a depth limit.
func (e *Engine) AddReply(ctx context.Context, parentCommentID, authorID, content string) (Comment, error) {
	if e == nil || e.store == nil {
		return Comment{}, ErrStoreNotConfigured
	}

	release, err := e.store.FindReleaseByCommentID(ctx, parentCommentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Comment{}, apperrors.New(apperrors.CodeCommentNotFound, "comment not found")
		}
		return Comment{}, err
	}

	parent := findComment(release.Tasks, parentCommentID)
	if parent == nil {
		return Comment{}, apperrors.New(apperrors.CodeCommentNotFound, "comment not found")
	}

	reply, err := e.newComment(authorID, content)
	if err != nil {
		return Comment{}, err
	}
	parent.Replies = append(parent.Replies, reply)

	if err := e.store.PutRelease(ctx, release); err != nil {
		return Comment{}, err
	}

	e.push("New Reply", "New reply by "+reply.AuthorID)
	return reply, nil
}

// GetCommentsForTask returns a task's top-level comments with their reply
// trees.
func (e *Engine) GetCommentsForTask(ctx context.Context, taskID string) ([]Comment, error) {
	if e == nil || e.store == nil {
		return nil, ErrStoreNotConfigured
	}

	_, task, err := e.findTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return task.Comments, nil
}

func (e *Engine) newComment(authorID, content string) (Comment, error) {
	commentID, err := e.newID()
	if err != nil {
		return Comment{}, err
	}
	return Comment{
		ID:        commentID,
		AuthorID:  strings.TrimSpace(authorID),
		Content:   content,
		Timestamp: e.nowUTC(),
	}, nil
}

// findComment walks every task's discussion tree depth-first and returns a
// pointer to the matching node so the caller can append replies in place.
func findComment(tasks []Task, commentID string) *Comment {
	for i := range tasks {
		if found := findCommentIn(tasks[i].Comments, commentID); found != nil {
			return found
		}
	}
	return nil
}

func findCommentIn(comments []Comment, commentID string) *Comment {
	for i := range comments {
		if comments[i].ID == commentID {
			return &comments[i]
		}
		if found := findCommentIn(comments[i].Replies, commentID); found != nil {
			return found
		}
	}
	return nil
}
