package repository

import (
	"context"

	"bitboard/internal/cache"
	"bitboard/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CategoryRepository reads and seeds forum categories.
type CategoryRepository interface {
	List(ctx context.Context) ([]models.Category, error)
	GetByID(ctx context.Context, id uint) (*models.Category, error)
	Upsert(ctx context.Context, categories []models.Category) error
}

type categoryRepository struct {
	db    *gorm.DB
	cache *cache.Cache
}

// NewCategoryRepository creates a new category repository. c may be nil.
func NewCategoryRepository(db *gorm.DB, c *cache.Cache) CategoryRepository {
	return &categoryRepository{db: db, cache: c}
}

func (r *categoryRepository) withThreadCount(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.Category{}).
		Select("categories.*, (SELECT COUNT(*) FROM threads WHERE threads.category_id = categories.id AND threads.is_deleted = ?) AS thread_count", false)
}

func (r *categoryRepository) List(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := r.cache.Aside(ctx, cache.CategoriesKey, &categories, cache.CategoriesTTL, func() error {
		if err := r.withThreadCount(ctx).Order("categories.name ASC").Find(&categories).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	return categories, err
}

func (r *categoryRepository) GetByID(ctx context.Context, id uint) (*models.Category, error) {
	var category models.Category
	if err := r.withThreadCount(ctx).Where("categories.id = ?", id).First(&category).Error; err != nil {
		return nil, translate(err, "Category", id)
	}
	return &category, nil
}

// Upsert inserts categories keyed by slug, refreshing name and description.
func (r *categoryRepository) Upsert(ctx context.Context, categories []models.Category) error {
	if len(categories) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "description", "updated_at"}),
	}).Create(&categories).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	r.cache.Invalidate(ctx, cache.CategoriesKey)
	return nil
}
