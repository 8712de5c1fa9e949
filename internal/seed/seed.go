package seed

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"bitboard/internal/database"
	"bitboard/internal/middleware"
	"bitboard/internal/models"
	"bitboard/internal/repository"

	"gorm.io/gorm"
)

// Options configures the seeder.
type Options struct {
	NumUsers        int
	NumThreads      int
	PostsPerThread  int
	CommentsPerPost int
	MaxDays         int
	RandSeed        int64
	SkipBcrypt      bool
	ShouldClean     bool
}

// DefaultOptions is a small but lively forum.
func DefaultOptions() Options {
	return Options{
		NumUsers:        25,
		NumThreads:      40,
		PostsPerThread:  6,
		CommentsPerPost: 2,
		MaxDays:         60,
	}
}

// Result counts what Seed created.
type Result struct {
	Users     int
	Threads   int
	Posts     int
	Comments  int
	Reactions int
	Follows   int
}

// Seed populates db with categories, users and discussion.
func Seed(ctx context.Context, db *gorm.DB, opts Options) (*Result, error) {
	start := time.Now()
	log := middleware.Logger.With(slog.String("component", "seed"))

	if opts.ShouldClean {
		if err := Clean(ctx, db); err != nil {
			return nil, err
		}
		log.Info("existing data cleared")
	}

	if err := Categories(ctx, repository.NewCategoryRepository(db, nil)); err != nil {
		return nil, fmt.Errorf("seed categories: %w", err)
	}
	var categories []models.Category
	if err := db.WithContext(ctx).Order("id").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	if len(categories) == 0 {
		return nil, fmt.Errorf("no categories available")
	}

	f, err := NewFactory(db, opts)
	if err != nil {
		return nil, err
	}
	res := &Result{}

	users := make([]*models.User, 0, opts.NumUsers)
	for range opts.NumUsers {
		u, err := f.CreateUser(ctx)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	res.Users = len(users)
	if len(users) == 0 {
		return res, nil
	}

	for i := range opts.NumThreads {
		category := &categories[i%len(categories)]
		if err := seedThread(ctx, f, opts, users, category, res); err != nil {
			return nil, err
		}
	}

	if err := seedFollows(ctx, f, users, res); err != nil {
		return nil, err
	}
	if err := RecountUsers(ctx, db); err != nil {
		return nil, err
	}

	log.Info("seeding complete",
		slog.Int("users", res.Users),
		slog.Int("threads", res.Threads),
		slog.Int("posts", res.Posts),
		slog.Int("comments", res.Comments),
		slog.Int("reactions", res.Reactions),
		slog.Int("follows", res.Follows),
		slog.Duration("took", time.Since(start)))
	return res, nil
}

func seedThread(ctx context.Context, f *Factory, opts Options, users []*models.User, category *models.Category, res *Result) error {
	text, image, video := computeCounts(opts.PostsPerThread, mixFor(category.Slug))
	kinds := slices.Concat(
		slices.Repeat([]PostKind{KindText}, text),
		slices.Repeat([]PostKind{KindImage}, image),
		slices.Repeat([]PostKind{KindVideo}, video),
	)

	firstKind := KindText
	if len(kinds) > 0 {
		firstKind = kinds[0]
		kinds = kinds[1:]
	}
	thread, err := f.CreateThread(ctx, Pick(f, users), category, firstKind)
	if err != nil {
		return err
	}
	res.Threads++
	res.Posts++

	for _, kind := range kinds {
		author := Pick(f, users)
		post, err := f.CreatePost(ctx, author, thread, kind)
		if err != nil {
			return err
		}
		res.Posts++

		for range opts.CommentsPerPost {
			if _, err := f.CreateComment(ctx, Pick(f, users), post); err != nil {
				return err
			}
			res.Comments++
		}

		reactor := Pick(f, users)
		if reactor.ID != author.ID {
			if _, err := f.CreateReaction(ctx, reactor, post); err != nil {
				return err
			}
			res.Reactions++
		}
	}
	return nil
}

// seedFollows makes every user follow the next few users in the list.
func seedFollows(ctx context.Context, f *Factory, users []*models.User, res *Result) error {
	const fanOut = 3
	for i, u := range users {
		for j := 1; j <= fanOut && j < len(users); j++ {
			if err := f.CreateFollow(ctx, u, users[(i+j)%len(users)]); err != nil {
				return fmt.Errorf("create follow: %w", err)
			}
			res.Follows++
		}
	}
	return nil
}

// RecountUsers rebuilds the denormalized follower, following and post counters.
func RecountUsers(ctx context.Context, db *gorm.DB) error {
	err := db.WithContext(ctx).Exec(`UPDATE users SET
		followers_count = (SELECT COUNT(*) FROM follows WHERE follows.following_id = users.id),
		following_count = (SELECT COUNT(*) FROM follows WHERE follows.follower_id = users.id),
		post_count = (SELECT COUNT(*) FROM posts WHERE posts.user_id = users.id AND posts.is_deleted = ?)`, false).Error
	if err != nil {
		return fmt.Errorf("recount users: %w", err)
	}
	return nil
}

// Clean deletes every row of every forum table, children first. Categories
// are kept since they are reference data.
func Clean(ctx context.Context, db *gorm.DB) error {
	persistent := database.PersistentModels()
	tx := db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	for i := len(persistent) - 1; i >= 0; i-- {
		if _, ok := persistent[i].(*models.Category); ok {
			continue
		}
		if err := tx.Delete(persistent[i]).Error; err != nil {
			return fmt.Errorf("clean %T: %w", persistent[i], err)
		}
	}
	return nil
}
