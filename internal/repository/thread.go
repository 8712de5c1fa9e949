package repository

import (
	"context"
	"time"

	"bitboard/internal/models"

	"gorm.io/gorm"
)

// ThreadRepository defines persistence operations for threads.
type ThreadRepository interface {
	Create(ctx context.Context, thread *models.Thread) error
	GetByID(ctx context.Context, id uint) (*models.Thread, error)
	List(ctx context.Context, categoryID uint, offset, limit int) ([]models.Thread, error)
	ListByUser(ctx context.Context, userID uint, limit int) ([]models.Thread, error)
	SetDeleted(ctx context.Context, id uint, deleted bool, by uint) error
	HardDelete(ctx context.Context, id uint) error
	IncrementViews(ctx context.Context, id uint) error
}

type threadRepository struct {
	db *gorm.DB
}

// NewThreadRepository creates a new thread repository.
func NewThreadRepository(db *gorm.DB) ThreadRepository {
	return &threadRepository{db: db}
}

func (r *threadRepository) Create(ctx context.Context, thread *models.Thread) error {
	return translate(r.db.WithContext(ctx).Omit("User", "Category", "Posts").Create(thread).Error, "Thread", thread.Title)
}

func (r *threadRepository) details(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.Thread{}).
		Select("threads.*, (SELECT COUNT(*) FROM posts WHERE posts.thread_id = threads.id AND posts.is_deleted = ?) AS post_count", false).
		Preload("User", authorColumns).
		Preload("Category")
}

func (r *threadRepository) GetByID(ctx context.Context, id uint) (*models.Thread, error) {
	var thread models.Thread
	err := r.details(ctx).Scopes(notDeleted("threads")).Where("threads.id = ?", id).First(&thread).Error
	if err != nil {
		return nil, translate(err, "Thread", id)
	}
	return &thread, nil
}

// List returns live threads newest first, pinned threads leading. categoryID 0 lists all.
func (r *threadRepository) List(ctx context.Context, categoryID uint, offset, limit int) ([]models.Thread, error) {
	q := r.details(ctx).Scopes(notDeleted("threads"), page(offset, limit))
	if categoryID != 0 {
		q = q.Where("threads.category_id = ?", categoryID)
	}
	var threads []models.Thread
	if err := q.Order("threads.is_pinned DESC").Order("threads.created_at DESC").Order("threads.id DESC").Find(&threads).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return threads, nil
}

func (r *threadRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]models.Thread, error) {
	var threads []models.Thread
	err := r.details(ctx).Scopes(notDeleted("threads"), page(0, limit)).
		Where("threads.user_id = ?", userID).
		Order("threads.created_at DESC").
		Find(&threads).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return threads, nil
}

// SetDeleted flips the soft-delete flag. Restoring clears deleted_by and deleted_at.
func (r *threadRepository) SetDeleted(ctx context.Context, id uint, deleted bool, by uint) error {
	return setDeleted(ctx, r.db, &models.Thread{}, "Thread", id, deleted, by)
}

// HardDelete removes a thread and its posts. Only saga compensation uses it.
func (r *threadRepository) HardDelete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("thread_id = ?", id).Delete(&models.Post{}).Error; err != nil {
			return models.NewInternalError(err)
		}
		if err := tx.Delete(&models.Thread{}, id).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
}

func (r *threadRepository) IncrementViews(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Model(&models.Thread{}).Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error
	return translate(err, "Thread", id)
}

func setDeleted(ctx context.Context, db *gorm.DB, model interface{}, resource string, id uint, deleted bool, by uint) error {
	fields := map[string]interface{}{"is_deleted": deleted, "deleted_by": nil, "deleted_at": nil}
	if deleted {
		now := time.Now().UTC()
		fields["deleted_by"] = by
		fields["deleted_at"] = now
	}
	res := db.WithContext(ctx).Model(model).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError(resource, id)
	}
	return nil
}
