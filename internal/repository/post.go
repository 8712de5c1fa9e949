package repository

import (
	"context"
	"time"

	"bitboard/internal/models"

	"gorm.io/gorm"
)

// PostRepository defines persistence operations for posts.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	ListByThread(ctx context.Context, threadID uint, offset, limit int) ([]models.Post, error)
	UpdateContent(ctx context.Context, id uint, content string, editedAt time.Time) error
	SetDeleted(ctx context.Context, id uint, deleted bool, by uint) error
	ThreadIDFor(ctx context.Context, postID uint) (uint, error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	return translate(r.db.WithContext(ctx).Omit("User", "Thread", "Comments", "Reactions").Create(post).Error, "Post", post.ThreadID)
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).
		Scopes(notDeleted("posts")).
		Preload("User", authorColumns).
		First(&post, id).Error
	if err != nil {
		return nil, translate(err, "Post", id)
	}
	return &post, nil
}

// ListByThread returns a thread's live posts oldest first with their live
// comments and all reactions.
func (r *postRepository) ListByThread(ctx context.Context, threadID uint, offset, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.WithContext(ctx).
		Scopes(notDeleted("posts"), page(offset, limit)).
		Where("thread_id = ?", threadID).
		Preload("User", authorColumns).
		Preload("Reactions").
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Scopes(notDeleted("comments")).Order("comments.created_at ASC")
		}).
		Preload("Comments.User", authorColumns).
		Preload("Comments.Reactions").
		Order("posts.created_at ASC").
		Order("posts.id ASC").
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) UpdateContent(ctx context.Context, id uint, content string, editedAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Post{}).
		Scopes(notDeleted("posts")).
		Where("id = ?", id).
		Updates(map[string]interface{}{"content": content, "edited_at": editedAt})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	return nil
}

func (r *postRepository) SetDeleted(ctx context.Context, id uint, deleted bool, by uint) error {
	return setDeleted(ctx, r.db, &models.Post{}, "Post", id, deleted, by)
}

// ThreadIDFor resolves the thread a post belongs to, deleted or not.
func (r *postRepository) ThreadIDFor(ctx context.Context, postID uint) (uint, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Select("id", "thread_id").First(&post, postID).Error; err != nil {
		return 0, translate(err, "Post", postID)
	}
	return post.ThreadID, nil
}
