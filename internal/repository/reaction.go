package repository

import (
	"context"
	"errors"

	"bitboard/internal/models"

	"gorm.io/gorm"
)

// ReactionTarget identifies the post or comment a reaction is attached to.
type ReactionTarget struct {
	PostID    uint
	CommentID uint
}

// Column returns the foreign key column and id for the target.
func (t ReactionTarget) Column() (string, uint) {
	if t.CommentID != 0 {
		return "comment_id", t.CommentID
	}
	return "post_id", t.PostID
}

func (t ReactionTarget) apply(r *models.Reaction) {
	if t.CommentID != 0 {
		id := t.CommentID
		r.CommentID = &id
		return
	}
	id := t.PostID
	r.PostID = &id
}

// ReactionRepository defines persistence operations for reactions.
type ReactionRepository interface {
	Find(ctx context.Context, userID uint, target ReactionTarget) (*models.Reaction, error)
	Create(ctx context.Context, userID uint, target ReactionTarget, t models.ReactionType) (*models.Reaction, error)
	Delete(ctx context.Context, id uint) error
	Replace(ctx context.Context, existing *models.Reaction, t models.ReactionType) (*models.Reaction, error)
	Counts(ctx context.Context, target ReactionTarget) (map[models.ReactionType]int64, error)
}

type reactionRepository struct {
	db *gorm.DB
}

// NewReactionRepository creates a new reaction repository.
func NewReactionRepository(db *gorm.DB) ReactionRepository {
	return &reactionRepository{db: db}
}

// Find returns the caller's reaction on target, or nil, nil.
func (r *reactionRepository) Find(ctx context.Context, userID uint, target ReactionTarget) (*models.Reaction, error) {
	col, id := target.Column()
	var reaction models.Reaction
	err := r.db.WithContext(ctx).Where("user_id = ? AND "+col+" = ?", userID, id).First(&reaction).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &reaction, nil
}

// Create inserts a reaction. A unique violation surfaces as a Conflict error.
func (r *reactionRepository) Create(ctx context.Context, userID uint, target ReactionTarget, t models.ReactionType) (*models.Reaction, error) {
	reaction := &models.Reaction{UserID: userID, ReactionType: t}
	target.apply(reaction)
	if err := r.db.WithContext(ctx).Create(reaction).Error; err != nil {
		return nil, translate(err, "Reaction", userID)
	}
	return reaction, nil
}

func (r *reactionRepository) Delete(ctx context.Context, id uint) error {
	return translate(r.db.WithContext(ctx).Delete(&models.Reaction{}, id).Error, "Reaction", id)
}

// Replace swaps existing for a reaction of type t in one transaction.
func (r *reactionRepository) Replace(ctx context.Context, existing *models.Reaction, t models.ReactionType) (*models.Reaction, error) {
	next := &models.Reaction{
		UserID:       existing.UserID,
		PostID:       existing.PostID,
		CommentID:    existing.CommentID,
		ReactionType: t,
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Reaction{}, existing.ID).Error; err != nil {
			return err
		}
		return tx.Create(next).Error
	})
	if err != nil {
		return nil, translate(err, "Reaction", existing.UserID)
	}
	return next, nil
}

func (r *reactionRepository) Counts(ctx context.Context, target ReactionTarget) (map[models.ReactionType]int64, error) {
	col, id := target.Column()
	var rows []struct {
		ReactionType models.ReactionType
		Count        int64
	}
	err := r.db.WithContext(ctx).Model(&models.Reaction{}).
		Select("reaction_type, COUNT(*) AS count").
		Where(col+" = ?", id).
		Group("reaction_type").
		Scan(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	counts := make(map[models.ReactionType]int64, len(rows))
	for _, row := range rows {
		counts[row.ReactionType] = row.Count
	}
	return counts, nil
}
