package service

import (
	"context"
	"io"
	"strings"

	"bitboard/internal/models"
	"bitboard/internal/repository"
	"bitboard/internal/validation"
)

const recentThreadsLimit = 10

// MediaStore persists uploaded files and returns their public URL.
type MediaStore interface {
	UploadAvatar(ctx context.Context, userID uint, r io.Reader) (string, error)
	UploadMedia(ctx context.Context, userID uint, name, contentType string, r io.Reader, size int64) (string, error)
}

// UserService reads and edits user profiles.
type UserService struct {
	users   repository.UserRepository
	threads *ThreadService
	follows *FollowService
	media   MediaStore
	indexer Indexer
}

// UpdateProfileInput carries the editable profile fields. Nil fields are left unchanged.
type UpdateProfileInput struct {
	UserID   uint
	Username *string
	Bio      *string
}

// Profile is a public profile view.
type Profile struct {
	User          *models.User    `json:"user"`
	RecentThreads []models.Thread `json:"recent_threads"`
	IsFollowing   bool            `json:"is_following"`
}

// NewUserService returns a new UserService. media may be nil when uploads are disabled.
func NewUserService(users repository.UserRepository, threads *ThreadService, follows *FollowService, media MediaStore, indexer Indexer) *UserService {
	return &UserService{users: users, threads: threads, follows: follows, media: media, indexer: orNoopIndexer(indexer)}
}

// GetUser returns the user row.
func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

// GetProfile returns the user with counters, recent threads and whether
// viewerID follows them. viewerID may be zero.
func (s *UserService) GetProfile(ctx context.Context, viewerID, id uint) (*Profile, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.profile(ctx, viewerID, user)
}

// GetProfileByUsername is GetProfile keyed by username.
func (s *UserService) GetProfileByUsername(ctx context.Context, viewerID uint, username string) (*Profile, error) {
	username = strings.TrimSpace(username)
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User", username)
	}
	return s.profile(ctx, viewerID, user)
}

func (s *UserService) profile(ctx context.Context, viewerID uint, user *models.User) (*Profile, error) {
	public := *user
	if viewerID != user.ID {
		public.Email = ""
	}

	threads, err := s.threads.ListByUser(ctx, user.ID, recentThreadsLimit)
	if err != nil {
		return nil, err
	}
	following, err := s.follows.IsFollowing(ctx, viewerID, user.ID)
	if err != nil {
		return nil, err
	}
	return &Profile{User: &public, RecentThreads: threads, IsFollowing: following}, nil
}

// UpdateProfile edits username and bio.
func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.users.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if err := validation.ValidateUsername(username); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		if username != user.Username {
			taken, err := s.users.GetByUsername(ctx, username)
			if err != nil {
				return nil, err
			}
			if taken != nil && taken.ID != user.ID {
				return nil, models.NewConflictError("Username is already taken")
			}
			fields["username"] = username
		}
	}
	if in.Bio != nil {
		bio := strings.TrimSpace(*in.Bio)
		if len([]rune(bio)) > validation.MaxBioLen {
			return nil, models.NewValidationError("Bio too long (max 500 characters)")
		}
		fields["bio"] = bio
	}
	if len(fields) == 0 {
		return user, nil
	}

	if err := s.users.UpdateProfile(ctx, user.ID, fields); err != nil {
		return nil, err
	}
	updated, err := s.users.GetByID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	s.indexer.IndexUser(ctx, updated)
	return updated, nil
}

// UploadAvatar stores a new avatar and points the profile at it.
func (s *UserService) UploadAvatar(ctx context.Context, userID uint, r io.Reader) (*models.User, error) {
	if s.media == nil {
		return nil, models.NewInternalError(errStorageDisabled)
	}
	url, err := s.media.UploadAvatar(ctx, userID, r)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdateProfile(ctx, userID, map[string]interface{}{"avatar_url": url}); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.indexer.IndexUser(ctx, user)
	return user, nil
}

// UploadMedia stores a post or comment attachment and returns its URL.
func (s *UserService) UploadMedia(ctx context.Context, userID uint, name, contentType string, r io.Reader, size int64) (string, error) {
	if s.media == nil {
		return "", models.NewInternalError(errStorageDisabled)
	}
	return s.media.UploadMedia(ctx, userID, name, contentType, r, size)
}

// CategoryService lists the seeded categories.
type CategoryService struct {
	categories repository.CategoryRepository
}

// NewCategoryService returns a new CategoryService.
func NewCategoryService(categories repository.CategoryRepository) *CategoryService {
	return &CategoryService{categories: categories}
}

// List returns every category with its thread count.
func (s *CategoryService) List(ctx context.Context) ([]models.Category, error) {
	return s.categories.List(ctx)
}

// Get returns one category.
func (s *CategoryService) Get(ctx context.Context, id uint) (*models.Category, error) {
	return s.categories.GetByID(ctx, id)
}
