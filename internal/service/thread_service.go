package service

import (
	"context"
	"log/slog"
	"time"

	"bitboard/internal/feed"
	"bitboard/internal/mention"
	"bitboard/internal/models"
	"bitboard/internal/realtime"
	"bitboard/internal/repository"
	"bitboard/internal/saga"
	"bitboard/internal/validation"
)

// ThreadService creates, lists and deletes threads.
type ThreadService struct {
	threads    repository.ThreadRepository
	posts      repository.PostRepository
	categories repository.CategoryRepository
	users      repository.UserRepository
	mentions   *mention.Processor
	indexer    Indexer
	publisher  *realtime.Publisher
}

// CreateThreadInput is a new thread together with its first post.
type CreateThreadInput struct {
	UserID      uint
	CategoryID  uint
	Title       string
	Content     string
	ImageURL    string
	VideoURL    string
	IsAnonymous bool
}

// ThreadDetail is a thread with one page of its posts.
type ThreadDetail struct {
	Thread *models.Thread         `json:"thread"`
	Posts  feed.Page[models.Post] `json:"posts"`
}

// NewThreadService wires a ThreadService. mentions, indexer and publisher may be nil.
func NewThreadService(
	threads repository.ThreadRepository,
	posts repository.PostRepository,
	categories repository.CategoryRepository,
	users repository.UserRepository,
	mentions *mention.Processor,
	indexer Indexer,
	publisher *realtime.Publisher,
) *ThreadService {
	return &ThreadService{
		threads:    threads,
		posts:      posts,
		categories: categories,
		users:      users,
		mentions:   mentions,
		indexer:    orNoopIndexer(indexer),
		publisher:  publisher,
	}
}

// CreateThread inserts the thread and its first post. If the post cannot be
// written the thread is removed again, so no thread exists without posts.
func (s *ThreadService) CreateThread(ctx context.Context, in CreateThreadInput) (*models.Thread, error) {
	title, err := validation.ValidateText("Title", in.Title, validation.MaxTitleLen)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	content, err := validation.ValidateText("Content", in.Content, validation.MaxPostLen)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if in.CategoryID == 0 {
		return nil, models.NewValidationError("Category is required")
	}
	if _, err := s.categories.GetByID(ctx, in.CategoryID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	thread := &models.Thread{
		CategoryID:  in.CategoryID,
		UserID:      in.UserID,
		Title:       title,
		IsAnonymous: in.IsAnonymous,
		CreatedAt:   now,
	}
	post := &models.Post{
		UserID:      in.UserID,
		Content:     content,
		ImageURL:    in.ImageURL,
		VideoURL:    in.VideoURL,
		IsAnonymous: in.IsAnonymous,
		CreatedAt:   now,
	}

	err = saga.New("create_thread").
		Then("insert_thread",
			func(ctx context.Context) error { return s.threads.Create(ctx, thread) },
			func(ctx context.Context) error { return s.threads.HardDelete(ctx, thread.ID) },
		).
		Then("insert_first_post",
			func(ctx context.Context) error {
				post.ThreadID = thread.ID
				return s.posts.Create(ctx, post)
			},
			nil,
		).
		Run(ctx)
	if err != nil {
		return nil, sagaError(err)
	}

	if err := s.users.IncrementPostCount(ctx, in.UserID, 1); err != nil {
		logWarn(ctx, "post count update failed", err, slog.Uint64("user_id", uint64(in.UserID)))
	}
	if s.mentions != nil {
		if _, err := s.mentions.Process(ctx, content, in.UserID, in.IsAnonymous, &post.ID, nil); err != nil {
			logWarn(ctx, "mention processing failed", err, slog.Uint64("post_id", uint64(post.ID)))
		}
	}

	created, err := s.threads.GetByID(ctx, thread.ID)
	if err != nil {
		return nil, err
	}
	s.indexer.IndexThread(ctx, created)
	s.indexer.IndexPost(ctx, post)

	out := *created
	redactThread(&out)
	p := *post
	redactPost(&p)
	s.publisher.PublishChange(ctx, realtime.EventInsert, "threads", &out, nil)
	s.publisher.PublishChange(ctx, realtime.EventInsert, "posts", &p, nil)
	return &out, nil
}

// ListThreads returns one page of live threads, optionally in one category.
func (s *ThreadService) ListThreads(ctx context.Context, categoryID uint, c feed.Cursor) (feed.Page[models.Thread], error) {
	c = c.Normalize()
	rows, err := s.threads.List(ctx, categoryID, c.Offset(), c.Limit+1)
	if err != nil {
		return feed.Page[models.Thread]{}, err
	}
	page := feed.TrimPage(rows, c)
	for i := range page.Items {
		redactThread(&page.Items[i])
	}
	return page, nil
}

// GetThread returns a thread with one page of posts, oldest first, and counts the view.
func (s *ThreadService) GetThread(ctx context.Context, id uint, c feed.Cursor) (*ThreadDetail, error) {
	thread, err := s.threads.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.threads.IncrementViews(ctx, id); err != nil {
		logWarn(ctx, "view count update failed", err, slog.Uint64("thread_id", uint64(id)))
	}

	c = c.Normalize()
	rows, err := s.posts.ListByThread(ctx, id, c.Offset(), c.Limit+1)
	if err != nil {
		return nil, err
	}
	page := feed.TrimPage(rows, c)
	for i := range page.Items {
		redactPost(&page.Items[i])
	}
	redactThread(thread)
	return &ThreadDetail{Thread: thread, Posts: page}, nil
}

// ListByUser returns a user's most recent threads.
func (s *ThreadService) ListByUser(ctx context.Context, userID uint, limit int) ([]models.Thread, error) {
	threads, err := s.threads.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	visible := threads[:0]
	for _, t := range threads {
		if !t.IsAnonymous {
			visible = append(visible, t)
		}
	}
	return visible, nil
}

// DeleteThread soft-deletes a thread. Only its author or a moderator may do it.
func (s *ThreadService) DeleteThread(ctx context.Context, actorID, id uint) error {
	thread, err := s.threads.GetByID(ctx, id)
	if err != nil {
		return err
	}
	ok, err := canModify(ctx, s.users, actorID, thread.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewForbiddenError("Only the author or a moderator can delete this thread")
	}
	if err := s.threads.SetDeleted(ctx, id, true, actorID); err != nil {
		return err
	}
	s.indexer.Remove(ctx, models.ContentThread, id)
	s.publisher.PublishChange(ctx, realtime.EventDelete, "threads", nil, map[string]interface{}{
		"id": id, "category_id": thread.CategoryID,
	})
	return nil
}
