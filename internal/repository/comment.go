package repository

import (
	"context"

	"bitboard/internal/models"

	"gorm.io/gorm"
)

// CommentRepository defines persistence operations for comments.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	ListByPost(ctx context.Context, postID uint) ([]models.Comment, error)
	UpdateContent(ctx context.Context, id uint, content string) error
	SetDeleted(ctx context.Context, id uint, deleted bool, by uint) error
	PostIDFor(ctx context.Context, commentID uint) (uint, error)
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new comment repository.
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	return translate(r.db.WithContext(ctx).Omit("User", "Post", "Reactions").Create(comment).Error, "Comment", comment.PostID)
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	err := r.db.WithContext(ctx).
		Scopes(notDeleted("comments")).
		Preload("User", authorColumns).
		First(&comment, id).Error
	if err != nil {
		return nil, translate(err, "Comment", id)
	}
	return &comment, nil
}

func (r *commentRepository) ListByPost(ctx context.Context, postID uint) ([]models.Comment, error) {
	var comments []models.Comment
	err := r.db.WithContext(ctx).
		Scopes(notDeleted("comments")).
		Where("post_id = ?", postID).
		Preload("User", authorColumns).
		Preload("Reactions").
		Order("comments.created_at ASC").
		Order("comments.id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return comments, nil
}

func (r *commentRepository) UpdateContent(ctx context.Context, id uint, content string) error {
	res := r.db.WithContext(ctx).Model(&models.Comment{}).
		Scopes(notDeleted("comments")).
		Where("id = ?", id).
		Update("content", content)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Comment", id)
	}
	return nil
}

func (r *commentRepository) SetDeleted(ctx context.Context, id uint, deleted bool, by uint) error {
	return setDeleted(ctx, r.db, &models.Comment{}, "Comment", id, deleted, by)
}

// PostIDFor resolves the post a comment belongs to, deleted or not.
func (r *commentRepository) PostIDFor(ctx context.Context, commentID uint) (uint, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).Select("id", "post_id").First(&comment, commentID).Error; err != nil {
		return 0, translate(err, "Comment", commentID)
	}
	return comment.PostID, nil
}
