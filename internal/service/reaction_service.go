package service

import (
	"context"
	"fmt"

	"bitboard/internal/models"
	"bitboard/internal/realtime"
	"bitboard/internal/repository"
)

// Toggle outcomes reported in ReactionSummary.Toggled.
const (
	ReactionAdded    = "added"
	ReactionRemoved  = "removed"
	ReactionReplaced = "replaced"
)

// ReactionService toggles emoji reactions on posts and comments.
type ReactionService struct {
	reactions     repository.ReactionRepository
	posts         repository.PostRepository
	comments      repository.CommentRepository
	users         repository.UserRepository
	notifications *NotificationService
	publisher     *realtime.Publisher
}

// NewReactionService wires a ReactionService.
func NewReactionService(
	reactions repository.ReactionRepository,
	posts repository.PostRepository,
	comments repository.CommentRepository,
	users repository.UserRepository,
	notifications *NotificationService,
	publisher *realtime.Publisher,
) *ReactionService {
	return &ReactionService{
		reactions:     reactions,
		posts:         posts,
		comments:      comments,
		users:         users,
		notifications: notifications,
		publisher:     publisher,
	}
}

type reactionTargetInfo struct {
	authorID uint
	postID   uint
	threadID uint
	noun     string
}

func (s *ReactionService) resolveTarget(ctx context.Context, target repository.ReactionTarget) (*reactionTargetInfo, error) {
	if (target.PostID == 0) == (target.CommentID == 0) {
		return nil, models.NewValidationError("Exactly one of post or comment is required")
	}
	if target.CommentID != 0 {
		c, err := s.comments.GetByID(ctx, target.CommentID)
		if err != nil {
			return nil, err
		}
		info := &reactionTargetInfo{authorID: c.UserID, postID: c.PostID, noun: "comment"}
		if tid, err := s.posts.ThreadIDFor(ctx, c.PostID); err == nil {
			info.threadID = tid
		}
		return info, nil
	}
	p, err := s.posts.GetByID(ctx, target.PostID)
	if err != nil {
		return nil, err
	}
	return &reactionTargetInfo{authorID: p.UserID, postID: p.ID, threadID: p.ThreadID, noun: "post"}, nil
}

// Toggle applies the caller's reaction: the same type again removes it, a
// different type replaces it, none adds it. A concurrent insert that trips
// the unique index is retried once against the fresh state.
func (s *ReactionService) Toggle(ctx context.Context, userID uint, target repository.ReactionTarget, t models.ReactionType) (*models.ReactionSummary, error) {
	if !t.Valid() {
		return nil, models.NewValidationError("Invalid reaction type")
	}
	info, err := s.resolveTarget(ctx, target)
	if err != nil {
		return nil, err
	}

	outcome, err := s.toggleOnce(ctx, userID, target, t)
	if err != nil && repository.IsConflict(err) {
		outcome, err = s.toggleOnce(ctx, userID, target, t)
	}
	if err != nil {
		return nil, err
	}

	if outcome != ReactionRemoved && info.authorID != userID {
		actor := actorName(ctx, s.users, userID)
		p := models.CreateNotificationParams{
			UserID:     info.authorID,
			Type:       models.NotificationReaction,
			Title:      fmt.Sprintf("%s reacted to your %s", actor, info.noun),
			Message:    fmt.Sprintf("%s reacted with %s to your %s", actor, t.Emoji(), info.noun),
			PostID:     uintPtr(info.postID),
			FromUserID: uintPtr(userID),
			Data: map[string]interface{}{
				"username":      actor,
				"reaction_type": string(t),
				"emoji":         t.Emoji(),
			},
		}
		if target.CommentID != 0 {
			p.CommentID = uintPtr(target.CommentID)
		}
		if info.threadID != 0 {
			p.ThreadID = uintPtr(info.threadID)
		}
		notifySafely(ctx, s.notifications, p)
	}

	summary, err := s.Summary(ctx, userID, target)
	if err != nil {
		return nil, err
	}
	summary.Toggled = outcome
	return summary, nil
}

func (s *ReactionService) toggleOnce(ctx context.Context, userID uint, target repository.ReactionTarget, t models.ReactionType) (string, error) {
	existing, err := s.reactions.Find(ctx, userID, target)
	if err != nil {
		return "", err
	}
	switch {
	case existing == nil:
		created, err := s.reactions.Create(ctx, userID, target, t)
		if err != nil {
			return "", err
		}
		s.publisher.PublishChange(ctx, realtime.EventInsert, "reactions", created, nil)
		return ReactionAdded, nil
	case existing.ReactionType == t:
		if err := s.reactions.Delete(ctx, existing.ID); err != nil {
			return "", err
		}
		s.publisher.PublishChange(ctx, realtime.EventDelete, "reactions", nil, existing)
		return ReactionRemoved, nil
	default:
		next, err := s.reactions.Replace(ctx, existing, t)
		if err != nil {
			return "", err
		}
		s.publisher.PublishChange(ctx, realtime.EventDelete, "reactions", nil, existing)
		s.publisher.PublishChange(ctx, realtime.EventInsert, "reactions", next, nil)
		return ReactionReplaced, nil
	}
}

// Summary returns per-type counts for target and the caller's own reaction.
func (s *ReactionService) Summary(ctx context.Context, userID uint, target repository.ReactionTarget) (*models.ReactionSummary, error) {
	counts, err := s.reactions.Counts(ctx, target)
	if err != nil {
		return nil, err
	}
	summary := &models.ReactionSummary{Counts: counts}
	_, summary.TargetID = target.Column()
	for _, c := range counts {
		summary.Total += c
	}
	if userID != 0 {
		mine, err := s.reactions.Find(ctx, userID, target)
		if err != nil {
			return nil, err
		}
		if mine != nil {
			t := mine.ReactionType
			summary.Mine = &t
		}
	}
	return summary, nil
}
