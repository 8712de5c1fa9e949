package service

import (
	"context"

	"bitboard/internal/models"
	"bitboard/internal/repository"
)

// activityLimit caps the following feed.
const activityLimit = 50

// FollowService manages follower edges between users.
type FollowService struct {
	follows       repository.FollowRepository
	users         repository.UserRepository
	activity      repository.ActivityRepository
	notifications *NotificationService
}

// FollowResult is the state after a toggle.
type FollowResult struct {
	Following      bool `json:"following"`
	FollowersCount int  `json:"followers_count"`
}

// NewFollowService returns a new FollowService.
func NewFollowService(follows repository.FollowRepository, users repository.UserRepository, activity repository.ActivityRepository, notifications *NotificationService) *FollowService {
	return &FollowService{follows: follows, users: users, activity: activity, notifications: notifications}
}

// Toggle follows targetID when the edge is absent and unfollows it otherwise.
func (s *FollowService) Toggle(ctx context.Context, followerID, targetID uint) (*FollowResult, error) {
	if followerID == targetID {
		return nil, models.NewValidationError("You cannot follow yourself")
	}
	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		return nil, err
	}

	exists, err := s.follows.Exists(ctx, followerID, targetID)
	if err != nil {
		return nil, err
	}
	if exists {
		if err := s.follows.Unfollow(ctx, followerID, targetID); err != nil {
			return nil, err
		}
	} else {
		if err := s.follows.Follow(ctx, followerID, targetID); err != nil {
			return nil, err
		}
		actor := actorName(ctx, s.users, followerID)
		notifySafely(ctx, s.notifications, models.CreateNotificationParams{
			UserID:     targetID,
			Type:       models.NotificationFollow,
			Title:      actor + " started following you",
			Message:    actor + " started following you",
			FromUserID: uintPtr(followerID),
			Data:       map[string]interface{}{"username": actor},
		})
	}

	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	return &FollowResult{Following: !exists, FollowersCount: target.FollowersCount}, nil
}

// IsFollowing reports whether followerID follows targetID.
func (s *FollowService) IsFollowing(ctx context.Context, followerID, targetID uint) (bool, error) {
	if followerID == 0 || followerID == targetID {
		return false, nil
	}
	return s.follows.Exists(ctx, followerID, targetID)
}

// Activity returns the latest posts, comments and reactions of the users
// userID follows, newest first.
func (s *FollowService) Activity(ctx context.Context, userID uint) ([]models.Activity, error) {
	ids, err := s.follows.ListFollowing(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.activity.Recent(ctx, ids, activityLimit)
}
