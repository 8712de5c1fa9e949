package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bitboard/internal/mention"
	"bitboard/internal/models"
	"bitboard/internal/realtime"
	"bitboard/internal/repository"
	"bitboard/internal/validation"
)

// CommentService writes comments on posts.
type CommentService struct {
	comments      repository.CommentRepository
	posts         repository.PostRepository
	threads       repository.ThreadRepository
	users         repository.UserRepository
	mentions      *mention.Processor
	notifications *NotificationService
	publisher     *realtime.Publisher
}

// CreateCommentInput is a comment on a post.
type CreateCommentInput struct {
	UserID   uint
	PostID   uint
	Content  string
	ImageURL string
}

// NewCommentService wires a CommentService.
func NewCommentService(
	comments repository.CommentRepository,
	posts repository.PostRepository,
	threads repository.ThreadRepository,
	users repository.UserRepository,
	mentions *mention.Processor,
	notifications *NotificationService,
	publisher *realtime.Publisher,
) *CommentService {
	return &CommentService{
		comments:      comments,
		posts:         posts,
		threads:       threads,
		users:         users,
		mentions:      mentions,
		notifications: notifications,
		publisher:     publisher,
	}
}

// ListComments returns a post's live comments, oldest first.
func (s *CommentService) ListComments(ctx context.Context, postID uint) ([]models.Comment, error) {
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return nil, err
	}
	return s.comments.ListByPost(ctx, postID)
}

// CreateComment comments on a post and notifies the post's author.
func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	content, err := validation.ValidateText("Content", in.Content, validation.MaxCommentLen)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	post, err := s.posts.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	thread, err := s.threads.GetByID(ctx, post.ThreadID)
	if err != nil {
		return nil, err
	}
	if thread.IsLocked {
		return nil, models.NewForbiddenError("Thread is locked")
	}

	comment := &models.Comment{
		PostID:    post.ID,
		UserID:    in.UserID,
		Content:   content,
		ImageURL:  in.ImageURL,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}

	if s.mentions != nil {
		if _, err := s.mentions.Process(ctx, content, in.UserID, false, nil, &comment.ID); err != nil {
			logWarn(ctx, "mention processing failed", err, slog.Uint64("comment_id", uint64(comment.ID)))
		}
	}
	if post.UserID != in.UserID {
		actor := actorName(ctx, s.users, in.UserID)
		notifySafely(ctx, s.notifications, models.CreateNotificationParams{
			UserID:     post.UserID,
			Type:       models.NotificationComment,
			Title:      actor + " commented on your post",
			Message:    fmt.Sprintf(`%s commented: "%s"`, actor, mention.Preview(content)),
			PostID:     &post.ID,
			CommentID:  &comment.ID,
			ThreadID:   &thread.ID,
			FromUserID: uintPtr(in.UserID),
			Data:       map[string]interface{}{"username": actor},
		})
	}

	created, err := s.comments.GetByID(ctx, comment.ID)
	if err != nil {
		return nil, err
	}
	s.publisher.PublishChange(ctx, realtime.EventInsert, "comments", created, nil)
	return created, nil
}

// UpdateComment edits a comment. Only the author may edit.
func (s *CommentService) UpdateComment(ctx context.Context, userID, commentID uint, content string) (*models.Comment, error) {
	content, err := validation.ValidateText("Content", content, validation.MaxCommentLen)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment.UserID != userID {
		return nil, models.NewForbiddenError("Only the author can edit this comment")
	}
	if err := s.comments.UpdateContent(ctx, commentID, content); err != nil {
		return nil, err
	}
	updated, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	s.publisher.PublishChange(ctx, realtime.EventUpdate, "comments", updated, nil)
	return updated, nil
}

// DeleteComment soft-deletes a comment. Its author or a moderator may do it.
func (s *CommentService) DeleteComment(ctx context.Context, actorID, commentID uint) error {
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return err
	}
	ok, err := canModify(ctx, s.users, actorID, comment.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewForbiddenError("Only the author or a moderator can delete this comment")
	}
	if err := s.comments.SetDeleted(ctx, commentID, true, actorID); err != nil {
		return err
	}
	s.publisher.PublishChange(ctx, realtime.EventDelete, "comments", nil, map[string]interface{}{
		"id": commentID, "post_id": comment.PostID,
	})
	return nil
}
