package repository

import (
	"context"
	"slices"

	"bitboard/internal/models"

	"gorm.io/gorm"
)

// ActivityRepository reads the recent public actions of a set of users.
type ActivityRepository interface {
	Recent(ctx context.Context, userIDs []uint, limit int) ([]models.Activity, error)
}

type activityRepository struct {
	db *gorm.DB
}

// NewActivityRepository creates a new activity repository.
func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{db: db}
}

// Recent merges posts, comments and reactions by userIDs, newest first.
// Anonymous posts and anything inside a deleted thread are left out.
func (r *activityRepository) Recent(ctx context.Context, userIDs []uint, limit int) ([]models.Activity, error) {
	if len(userIDs) == 0 || limit <= 0 {
		return []models.Activity{}, nil
	}
	db := r.db.WithContext(ctx)

	var posts []models.Activity
	err := db.Table("posts").
		Select("posts.id, 'post' AS type, posts.content, posts.created_at, posts.user_id, "+
			"users.username, users.avatar_url, threads.id AS thread_id, threads.title AS thread_title, "+
			"posts.id AS post_id").
		Joins("JOIN users ON users.id = posts.user_id").
		Joins("JOIN threads ON threads.id = posts.thread_id").
		Where("posts.user_id IN ?", userIDs).
		Where("posts.is_anonymous = ?", false).
		Scopes(notDeleted("posts"), notDeleted("threads")).
		Order("posts.created_at DESC").Limit(limit).
		Scan(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	var comments []models.Activity
	err = db.Table("comments").
		Select("comments.id, 'comment' AS type, comments.content, comments.created_at, comments.user_id, "+
			"users.username, users.avatar_url, threads.id AS thread_id, threads.title AS thread_title, "+
			"comments.post_id, comments.id AS comment_id").
		Joins("JOIN users ON users.id = comments.user_id").
		Joins("JOIN posts ON posts.id = comments.post_id").
		Joins("JOIN threads ON threads.id = posts.thread_id").
		Where("comments.user_id IN ?", userIDs).
		Scopes(notDeleted("comments"), notDeleted("posts"), notDeleted("threads")).
		Order("comments.created_at DESC").Limit(limit).
		Scan(&comments).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	var reactions []models.Activity
	err = db.Table("reactions").
		Select("reactions.id, 'reaction' AS type, reactions.reaction_type AS content, reactions.created_at, "+
			"reactions.user_id, users.username, users.avatar_url, threads.id AS thread_id, "+
			"threads.title AS thread_title, reactions.post_id, reactions.comment_id").
		Joins("JOIN users ON users.id = reactions.user_id").
		Joins("LEFT JOIN posts ON posts.id = reactions.post_id").
		Joins("LEFT JOIN comments ON comments.id = reactions.comment_id").
		Joins("LEFT JOIN posts AS comment_posts ON comment_posts.id = comments.post_id").
		Joins("JOIN threads ON threads.id = COALESCE(posts.thread_id, comment_posts.thread_id)").
		Where("reactions.user_id IN ?", userIDs).
		Scopes(notDeleted("threads")).
		Order("reactions.created_at DESC").Limit(limit).
		Scan(&reactions).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	out := make([]models.Activity, 0, len(posts)+len(comments)+len(reactions))
	out = append(append(append(out, posts...), comments...), reactions...)
	slices.SortStableFunc(out, func(a, b models.Activity) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
