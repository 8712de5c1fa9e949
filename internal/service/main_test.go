package service

import (
	"errors"
	"testing"

	"bitboard/internal/mention"
	"bitboard/internal/models"
	"bitboard/internal/repository"
	"bitboard/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// harness wires every service against an in-memory sqlite database.
type harness struct {
	db *gorm.DB

	users      repository.UserRepository
	categories repository.CategoryRepository
	threadRepo repository.ThreadRepository
	postRepo   repository.PostRepository
	comments   repository.CommentRepository
	reactions  repository.ReactionRepository
	followRepo repository.FollowRepository
	activity   repository.ActivityRepository
	reportRepo repository.ReportRepository
	modRepo    repository.ModerationRepository
	notifRepo  repository.NotificationRepository

	notifications *NotificationService
	mentions      *mention.Processor
	threads       *ThreadService
	posts         *PostService
	commentSvc    *CommentService
	reactionSvc   *ReactionService
	follows       *FollowService
	reports       *ReportService
	moderation    *ModerationService
}

func newTestDB(t *testing.T) *gorm.DB {
	return testutil.NewSQLiteDB(t)
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := newTestDB(t)
	h := &harness{
		db:         db,
		users:      repository.NewUserRepository(db, nil),
		categories: repository.NewCategoryRepository(db, nil),
		threadRepo: repository.NewThreadRepository(db),
		postRepo:   repository.NewPostRepository(db),
		comments:   repository.NewCommentRepository(db),
		reactions:  repository.NewReactionRepository(db),
		followRepo: repository.NewFollowRepository(db, nil),
		activity:   repository.NewActivityRepository(db),
		reportRepo: repository.NewReportRepository(db),
		modRepo:    repository.NewModerationRepository(db),
		notifRepo:  repository.NewNotificationRepository(db),
	}
	h.rewire()
	return h
}

// rewire rebuilds the services from the harness repositories, so a test can
// swap one repository for a failing stub first.
func (h *harness) rewire() {
	h.notifications = NewNotificationService(h.notifRepo, nil, nil)
	h.mentions = mention.NewProcessor(h.users, h.notifications, h.postRepo, h.comments, h.notifications)
	h.threads = NewThreadService(h.threadRepo, h.postRepo, h.categories, h.users, h.mentions, nil, nil)
	h.posts = NewPostService(h.postRepo, h.threadRepo, h.users, h.mentions, h.notifications, nil, nil)
	h.commentSvc = NewCommentService(h.comments, h.postRepo, h.threadRepo, h.users, h.mentions, h.notifications, nil)
	h.reactionSvc = NewReactionService(h.reactions, h.postRepo, h.comments, h.users, h.notifications, nil)
	h.follows = NewFollowService(h.followRepo, h.users, h.activity, h.notifications)
	h.reports = NewReportService(h.reportRepo, h.threadRepo, h.postRepo, h.comments, h.users)
	h.moderation = NewModerationService(h.reportRepo, h.modRepo, h.threadRepo, h.postRepo, h.comments, h.users, nil, nil, nil)
}

func (h *harness) user(t *testing.T, username string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{Username: username, Email: username + "@example.com", Password: "hash", Role: role}
	require.NoError(t, h.db.Create(u).Error)
	return u
}

func (h *harness) category(t *testing.T, slug string) *models.Category {
	t.Helper()
	c := &models.Category{Name: slug, Slug: slug}
	require.NoError(t, h.db.Create(c).Error)
	return c
}

func (h *harness) notificationsFor(t *testing.T, userID uint) []models.Notification {
	t.Helper()
	var rows []models.Notification
	require.NoError(t, h.db.Where("user_id = ?", userID).Order("id ASC").Find(&rows).Error)
	return rows
}

func assertAppError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeValidation)
}
