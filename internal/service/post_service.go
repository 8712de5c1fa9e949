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

// PostService writes replies inside threads.
type PostService struct {
	posts         repository.PostRepository
	threads       repository.ThreadRepository
	users         repository.UserRepository
	mentions      *mention.Processor
	notifications *NotificationService
	indexer       Indexer
	publisher     *realtime.Publisher
}

// CreatePostInput is a reply to a thread.
type CreatePostInput struct {
	UserID      uint
	ThreadID    uint
	Content     string
	ImageURL    string
	VideoURL    string
	IsAnonymous bool
}

// NewPostService wires a PostService. mentions, notifications, indexer and publisher may be nil.
func NewPostService(
	posts repository.PostRepository,
	threads repository.ThreadRepository,
	users repository.UserRepository,
	mentions *mention.Processor,
	notifications *NotificationService,
	indexer Indexer,
	publisher *realtime.Publisher,
) *PostService {
	return &PostService{
		posts:         posts,
		threads:       threads,
		users:         users,
		mentions:      mentions,
		notifications: notifications,
		indexer:       orNoopIndexer(indexer),
		publisher:     publisher,
	}
}

// CreatePost replies to an unlocked thread and notifies the thread's author.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	content, err := validation.ValidateText("Content", in.Content, validation.MaxPostLen)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	thread, err := s.threads.GetByID(ctx, in.ThreadID)
	if err != nil {
		return nil, err
	}
	if thread.IsLocked {
		return nil, models.NewForbiddenError("Thread is locked")
	}

	post := &models.Post{
		ThreadID:    thread.ID,
		UserID:      in.UserID,
		Content:     content,
		ImageURL:    in.ImageURL,
		VideoURL:    in.VideoURL,
		IsAnonymous: in.IsAnonymous,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	if err := s.users.IncrementPostCount(ctx, in.UserID, 1); err != nil {
		logWarn(ctx, "post count update failed", err, slog.Uint64("user_id", uint64(in.UserID)))
	}

	if s.mentions != nil {
		if _, err := s.mentions.Process(ctx, content, in.UserID, in.IsAnonymous, &post.ID, nil); err != nil {
			logWarn(ctx, "mention processing failed", err, slog.Uint64("post_id", uint64(post.ID)))
		}
	}
	if thread.UserID != in.UserID {
		actor, from := fallbackActor, (*uint)(nil)
		if !in.IsAnonymous {
			actor, from = actorName(ctx, s.users, in.UserID), uintPtr(in.UserID)
		}
		notifySafely(ctx, s.notifications, models.CreateNotificationParams{
			UserID:     thread.UserID,
			Type:       models.NotificationReply,
			Title:      actor + " replied to your post",
			Message:    fmt.Sprintf(`%s replied: "%s"`, actor, mention.Preview(content)),
			PostID:     &post.ID,
			ThreadID:   &thread.ID,
			FromUserID: from,
			Data:       map[string]interface{}{"username": actor, "thread_title": thread.Title},
		})
	}

	created, err := s.posts.GetByID(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	s.indexer.IndexPost(ctx, created)
	redactPost(created)
	s.publisher.PublishChange(ctx, realtime.EventInsert, "posts", created, nil)
	return created, nil
}

// UpdatePost edits a post's content. Only the author may edit.
func (s *PostService) UpdatePost(ctx context.Context, userID, postID uint, content string) (*models.Post, error) {
	content, err := validation.ValidateText("Content", content, validation.MaxPostLen)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.UserID != userID {
		return nil, models.NewForbiddenError("Only the author can edit this post")
	}
	if err := s.posts.UpdateContent(ctx, postID, content, time.Now().UTC()); err != nil {
		return nil, err
	}
	updated, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	s.indexer.IndexPost(ctx, updated)
	redactPost(updated)
	s.publisher.PublishChange(ctx, realtime.EventUpdate, "posts", updated, nil)
	return updated, nil
}

// DeletePost soft-deletes a post. Its author or a moderator may do it.
func (s *PostService) DeletePost(ctx context.Context, actorID, postID uint) error {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	ok, err := canModify(ctx, s.users, actorID, post.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewForbiddenError("Only the author or a moderator can delete this post")
	}
	if err := s.posts.SetDeleted(ctx, postID, true, actorID); err != nil {
		return err
	}
	s.indexer.Remove(ctx, models.ContentPost, postID)
	s.publisher.PublishChange(ctx, realtime.EventDelete, "posts", nil, map[string]interface{}{
		"id": postID, "thread_id": post.ThreadID,
	})
	return nil
}
