package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bitboard/internal/middleware"

	"gorm.io/gorm"
)

// SQL searches the primary database with substring matches. Postgres uses
// ILIKE; other dialects fall back to lower() LIKE.
type SQL struct {
	db *gorm.DB
}

// NewSQL returns a SQL backend over db.
func NewSQL(db *gorm.DB) *SQL {
	return &SQL{db: db}
}

func (s *SQL) match(column string) string {
	if s.db.Dialector.Name() == "postgres" {
		return column + " ILIKE ?"
	}
	return "lower(" + column + ") LIKE lower(?)"
}

type threadRow struct {
	ID           uint
	Title        string
	CreatedAt    time.Time
	UserID       uint
	IsAnonymous  bool
	Username     string
	CategoryName string
}

type postRow struct {
	ID           uint
	Content      string
	CreatedAt    time.Time
	UserID       uint
	ThreadID     uint
	IsAnonymous  bool
	Username     string
	ThreadTitle  string
	CategoryName string
}

type userRow struct {
	ID             uint
	Username       string
	Bio            string
	AvatarURL      string
	FollowersCount int
	CreatedAt      time.Time
}

// Search runs the thread, post and user queries and merges them. A failing
// source is logged and skipped; only when every source fails is an error returned.
func (s *SQL) Search(ctx context.Context, term string) ([]Result, error) {
	pattern := "%" + term + "%"
	var (
		results []Result
		errs    []error
	)

	threads, err := s.threads(ctx, pattern)
	if err != nil {
		errs = append(errs, err)
	}
	results = append(results, threads...)

	posts, err := s.posts(ctx, pattern)
	if err != nil {
		errs = append(errs, err)
	}
	results = append(results, posts...)

	users, err := s.users(ctx, pattern)
	if err != nil {
		errs = append(errs, err)
	}
	results = append(results, users...)

	for _, e := range errs {
		middleware.Logger.WarnContext(ctx, "search source failed", slog.String("error", e.Error()))
	}
	if len(errs) == 3 {
		return nil, errors.Join(errs...)
	}
	return results, nil
}

func (s *SQL) threads(ctx context.Context, pattern string) ([]Result, error) {
	var rows []threadRow
	err := s.db.WithContext(ctx).
		Table("threads").
		Select("threads.id, threads.title, threads.created_at, threads.user_id, threads.is_anonymous, users.username, categories.name AS category_name").
		Joins("LEFT JOIN users ON users.id = threads.user_id").
		Joins("LEFT JOIN categories ON categories.id = threads.category_id").
		Where("threads.is_deleted = ?", false).
		Where(s.match("threads.title"), pattern).
		Order("threads.created_at DESC").
		Limit(ThreadLimit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("search threads: %w", err)
	}

	out := make([]Result, 0, len(rows))
	for _, r := range rows {
		res := Result{
			Type:         ResultThread,
			ID:           r.ID,
			Title:        r.Title,
			CreatedAt:    r.CreatedAt,
			UserID:       r.UserID,
			Username:     orUnknown(r.Username),
			CategoryName: orUnknown(r.CategoryName),
			ThreadID:     r.ID,
			Rank:         1,
		}
		if r.IsAnonymous {
			res.UserID, res.Username = 0, unknownLabel
		}
		out = append(out, res)
	}
	return out, nil
}

func (s *SQL) posts(ctx context.Context, pattern string) ([]Result, error) {
	var rows []postRow
	err := s.db.WithContext(ctx).
		Table("posts").
		Select("posts.id, posts.content, posts.created_at, posts.user_id, posts.thread_id, posts.is_anonymous, users.username, threads.title AS thread_title, categories.name AS category_name").
		Joins("LEFT JOIN users ON users.id = posts.user_id").
		Joins("LEFT JOIN threads ON threads.id = posts.thread_id").
		Joins("LEFT JOIN categories ON categories.id = threads.category_id").
		Where("posts.is_deleted = ?", false).
		Where("threads.is_deleted = ?", false).
		Where(s.match("posts.content"), pattern).
		Order("posts.created_at DESC").
		Limit(PostLimit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("search posts: %w", err)
	}

	out := make([]Result, 0, len(rows))
	for _, r := range rows {
		res := Result{
			Type:         ResultPost,
			ID:           r.ID,
			Title:        orUnknown(r.ThreadTitle),
			Content:      r.Content,
			CreatedAt:    r.CreatedAt,
			UserID:       r.UserID,
			Username:     orUnknown(r.Username),
			CategoryName: orUnknown(r.CategoryName),
			ThreadID:     r.ThreadID,
			Rank:         1,
		}
		if r.IsAnonymous {
			res.UserID, res.Username = 0, unknownLabel
		}
		out = append(out, res)
	}
	return out, nil
}

func (s *SQL) users(ctx context.Context, pattern string) ([]Result, error) {
	var rows []userRow
	err := s.db.WithContext(ctx).
		Table("users").
		Select("id, username, bio, avatar_url, followers_count, created_at").
		Where(s.db.Where(s.match("username"), pattern).Or(s.match("bio"), pattern)).
		Order("created_at DESC").
		Limit(UserLimit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}

	out := make([]Result, 0, len(rows))
	for _, r := range rows {
		followers := r.FollowersCount
		out = append(out, Result{
			Type:           ResultUser,
			ID:             r.ID,
			Title:          r.Username,
			Content:        r.Bio,
			CreatedAt:      r.CreatedAt,
			UserID:         r.ID,
			Username:       r.Username,
			Rank:           1,
			AvatarURL:      r.AvatarURL,
			Bio:            r.Bio,
			FollowersCount: &followers,
		})
	}
	return out, nil
}
