package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"bitboard/internal/cache"
	"bitboard/internal/feed"
	"bitboard/internal/middleware"
	"bitboard/internal/models"
	"bitboard/internal/observability"
	"bitboard/internal/realtime"
	"bitboard/internal/repository"

	"gorm.io/datatypes"
)

// Realtime frame types delivered on a user's channel.
const (
	FrameNotification = "notification"
	FrameAuth         = "auth"
)

// NotificationService is the only writer of notifications.
type NotificationService struct {
	repo      repository.NotificationRepository
	publisher *realtime.Publisher
	cache     *cache.Cache
}

// NewNotificationService returns a NotificationService. publisher and c may be nil.
func NewNotificationService(repo repository.NotificationRepository, publisher *realtime.Publisher, c *cache.Cache) *NotificationService {
	return &NotificationService{repo: repo, publisher: publisher, cache: c}
}

func validNotificationType(t models.NotificationType) bool {
	switch t {
	case models.NotificationMention, models.NotificationReaction, models.NotificationReply,
		models.NotificationComment, models.NotificationFollow:
		return true
	}
	return false
}

// Create inserts a notification and pushes it to the recipient.
func (s *NotificationService) Create(ctx context.Context, p models.CreateNotificationParams) (*models.Notification, error) {
	if p.UserID == 0 {
		return nil, models.NewValidationError("Recipient is required")
	}
	if !validNotificationType(p.Type) {
		return nil, models.NewValidationError("Invalid notification type")
	}
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return nil, models.NewValidationError("Title is required")
	}

	n := &models.Notification{
		UserID:     p.UserID,
		Type:       p.Type,
		Title:      title,
		Message:    p.Message,
		PostID:     p.PostID,
		CommentID:  p.CommentID,
		ThreadID:   p.ThreadID,
		FromUserID: p.FromUserID,
		Data:       datatypes.JSONMap(p.Data),
		CreatedAt:  time.Now().UTC(),
	}
	if n.Data == nil {
		n.Data = datatypes.JSONMap{}
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	observability.NotificationsCreated.WithLabelValues(string(n.Type)).Inc()
	s.cache.Invalidate(ctx, cache.UnreadCountKey(n.UserID))

	if err := s.publisher.PublishUser(ctx, n.UserID, FrameNotification, n); err != nil {
		middleware.Logger.WarnContext(ctx, "notification push failed",
			slog.Uint64("user_id", uint64(n.UserID)),
			slog.String("error", err.Error()),
		)
	}
	s.publisher.PublishChange(ctx, realtime.EventInsert, "notifications", n, nil)
	return n, nil
}

// List returns one page of the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID uint, c feed.Cursor) (feed.Page[models.Notification], error) {
	c = c.Normalize()
	rows, err := s.repo.ListByUser(ctx, userID, c.Offset(), c.Limit+1)
	if err != nil {
		return feed.Page[models.Notification]{}, err
	}
	return feed.TrimPage(rows, c), nil
}

// UnreadCount returns the number of unread notifications, cached briefly.
func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := s.cache.Aside(ctx, cache.UnreadCountKey(userID), &count, cache.UnreadCountTTL, func() error {
		var err error
		count, err = s.repo.UnreadCount(ctx, userID)
		return err
	})
	return count, err
}

// MarkRead marks one notification read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint) error {
	if err := s.repo.MarkRead(ctx, userID, id); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, cache.UnreadCountKey(userID))
	return nil
}

// MarkAllRead marks every unread notification read and returns how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.cache.Invalidate(ctx, cache.UnreadCountKey(userID))
	return n, nil
}

// CreateMention stores a mention row.
func (s *NotificationService) CreateMention(ctx context.Context, m *models.Mention) error {
	return s.repo.CreateMention(ctx, m)
}

// notifySafely creates a notification and logs instead of failing the caller.
func notifySafely(ctx context.Context, n *NotificationService, p models.CreateNotificationParams) {
	if n == nil {
		return
	}
	if _, err := n.Create(ctx, p); err != nil {
		middleware.Logger.WarnContext(ctx, "notification failed",
			slog.String("type", string(p.Type)),
			slog.Uint64("user_id", uint64(p.UserID)),
			slog.String("error", err.Error()),
		)
	}
}
