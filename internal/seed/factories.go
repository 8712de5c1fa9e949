// Package seed provides helpers to create demo data for the forum database.
// These helpers are intended for development and testing only.
package seed

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"bitboard/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every seeded user.
const DefaultPassword = "Satoshi-Nakamoto-21!"

// PostKind selects the media attached to a generated post.
type PostKind int

const (
	KindText PostKind = iota
	KindImage
	KindVideo
)

// Mix weights the post kinds generated per thread.
type Mix struct {
	Text  int
	Image int
	Video int
}

var defaultMix = Mix{Text: 6, Image: 3, Video: 1}

// CategoryMixes overrides the default mix for some category slugs.
var CategoryMixes = map[string]Mix{
	"trading":   {Text: 4, Image: 6, Video: 0},
	"education": {Text: 5, Image: 2, Video: 3},
}

func mixFor(slug string) Mix {
	if m, ok := CategoryMixes[slug]; ok {
		return m
	}
	return defaultMix
}

// computeCounts splits n posts by the mix weights. Rounding leftovers go to text.
func computeCounts(n int, m Mix) (text, image, video int) {
	total := m.Text + m.Image + m.Video
	if n <= 0 || total <= 0 {
		return 0, 0, 0
	}
	image = n * m.Image / total
	video = n * m.Video / total
	text = n - image - video
	return text, image, video
}

var nonWord = regexp.MustCompile(`\W+`)

// Factory builds forum entities and persists them.
type Factory struct {
	db    *gorm.DB
	opts  Options
	faker *gofakeit.Faker
	hash  string
}

// NewFactory creates a Factory bound to db. A zero Options.RandSeed picks a
// random seed.
func NewFactory(db *gorm.DB, opts Options) (*Factory, error) {
	f := &Factory{db: db, opts: opts, faker: gofakeit.New(opts.RandSeed)}
	if opts.SkipBcrypt {
		f.hash = DefaultPassword
		return f, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash seed password: %w", err)
	}
	f.hash = string(hash)
	return f, nil
}

// createdAt returns a timestamp spread over the last MaxDays days.
func (f *Factory) createdAt() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	back := time.Duration(f.faker.Number(0, maxDays*24*60)) * time.Minute
	return time.Now().UTC().Add(-back)
}

// BuildUser returns an unsaved user with a word-character username.
func (f *Factory) BuildUser(overrides ...func(*models.User)) *models.User {
	name := nonWord.ReplaceAllString(f.faker.Username(), "")
	if name == "" {
		name = "pleb"
	}
	name = fmt.Sprintf("%s%d", strings.ToLower(name), f.faker.Number(100, 9999))
	if len(name) > 30 {
		name = name[len(name)-30:]
	}

	u := &models.User{
		Username:  name,
		Email:     name + "@" + f.faker.DomainName(),
		Password:  f.hash,
		Role:      models.RoleUser,
		Bio:       f.faker.Sentence(10),
		AvatarURL: fmt.Sprintf("https://i.pravatar.cc/150?u=%s", f.faker.UUID()),
	}
	for _, o := range overrides {
		o(u)
	}
	return u
}

// CreateUser persists a generated user.
func (f *Factory) CreateUser(ctx context.Context, overrides ...func(*models.User)) (*models.User, error) {
	u := f.BuildUser(overrides...)
	if err := f.db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, fmt.Errorf("create user %s: %w", u.Username, err)
	}
	return u, nil
}

// BuildPost returns an unsaved post of the given kind.
func (f *Factory) BuildPost(userID, threadID uint, kind PostKind) *models.Post {
	p := &models.Post{
		ThreadID:  threadID,
		UserID:    userID,
		Content:   f.faker.Paragraph(1, 3, 12, "\n\n"),
		CreatedAt: f.createdAt(),
	}
	switch kind {
	case KindImage:
		p.ImageURL = fmt.Sprintf("https://picsum.photos/seed/%s/800/600", f.faker.UUID())
	case KindVideo:
		ids := []string{"bBC-nXj3Ng4", "Gc2en3nHxA4", "rbkAUuYSIK4", "Pl8OlkkwRpc"}
		p.VideoURL = "https://www.youtube.com/watch?v=" + ids[f.faker.Number(0, len(ids)-1)]
	}
	return p
}

// CreateThread persists a thread with its first post in one transaction.
func (f *Factory) CreateThread(ctx context.Context, author *models.User, category *models.Category, kind PostKind) (*models.Thread, error) {
	thread := &models.Thread{
		CategoryID:  category.ID,
		UserID:      author.ID,
		Title:       strings.TrimSuffix(f.faker.Sentence(f.faker.Number(4, 9)), "."),
		IsAnonymous: f.faker.Number(1, 20) == 1,
		CreatedAt:   f.createdAt(),
	}
	err := f.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("User", "Category", "Posts").Create(thread).Error; err != nil {
			return err
		}
		first := f.BuildPost(author.ID, thread.ID, kind)
		first.IsAnonymous = thread.IsAnonymous
		first.CreatedAt = thread.CreatedAt
		return tx.Omit("User", "Thread", "Comments", "Reactions").Create(first).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}
	return thread, nil
}

// CreatePost persists a reply.
func (f *Factory) CreatePost(ctx context.Context, author *models.User, thread *models.Thread, kind PostKind) (*models.Post, error) {
	p := f.BuildPost(author.ID, thread.ID, kind)
	if p.CreatedAt.Before(thread.CreatedAt) {
		p.CreatedAt = thread.CreatedAt.Add(time.Duration(f.faker.Number(1, 600)) * time.Minute)
	}
	if err := f.db.WithContext(ctx).Omit("User", "Thread", "Comments", "Reactions").Create(p).Error; err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return p, nil
}

// CreateComment persists a comment on post.
func (f *Factory) CreateComment(ctx context.Context, author *models.User, post *models.Post) (*models.Comment, error) {
	c := &models.Comment{
		PostID:    post.ID,
		UserID:    author.ID,
		Content:   f.faker.Sentence(f.faker.Number(3, 20)),
		CreatedAt: post.CreatedAt.Add(time.Duration(f.faker.Number(1, 240)) * time.Minute),
	}
	if err := f.db.WithContext(ctx).Omit("User", "Post", "Reactions").Create(c).Error; err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return c, nil
}

// CreateReaction persists a random reaction by user on post.
func (f *Factory) CreateReaction(ctx context.Context, user *models.User, post *models.Post) (*models.Reaction, error) {
	types := models.ReactionTypes()
	postID := post.ID
	r := &models.Reaction{
		UserID:       user.ID,
		PostID:       &postID,
		ReactionType: types[f.faker.Number(0, len(types)-1)],
	}
	if err := f.db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, fmt.Errorf("create reaction: %w", err)
	}
	return r, nil
}

// CreateFollow persists follower -> following.
func (f *Factory) CreateFollow(ctx context.Context, follower, following *models.User) error {
	return f.db.WithContext(ctx).Create(&models.Follow{FollowerID: follower.ID, FollowingID: following.ID}).Error
}

// Pick returns a random element of xs.
func Pick[T any](f *Factory, xs []T) T {
	return xs[f.faker.Number(0, len(xs)-1)]
}
