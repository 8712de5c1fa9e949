// Package service holds the forum's business rules. Services are stateless,
// take their collaborators through constructors and return *models.AppError
// for every failure a caller can act on.
package service

import (
	"context"
	"errors"
	"log/slog"

	"bitboard/internal/middleware"
	"bitboard/internal/models"
	"bitboard/internal/repository"
)

const fallbackActor = "Someone"

var errStorageDisabled = errors.New("object storage not configured")

// Indexer receives documents for full-text search. Implementations must not
// block the caller on a slow search engine.
type Indexer interface {
	IndexThread(ctx context.Context, t *models.Thread)
	IndexPost(ctx context.Context, p *models.Post)
	IndexUser(ctx context.Context, u *models.User)
	Remove(ctx context.Context, kind models.ContentType, id uint)
}

type noopIndexer struct{}

func (noopIndexer) IndexThread(context.Context, *models.Thread)      {}
func (noopIndexer) IndexPost(context.Context, *models.Post)          {}
func (noopIndexer) IndexUser(context.Context, *models.User)          {}
func (noopIndexer) Remove(context.Context, models.ContentType, uint) {}

func orNoopIndexer(i Indexer) Indexer {
	if i == nil {
		return noopIndexer{}
	}
	return i
}

// actorName returns the username for notification texts.
func actorName(ctx context.Context, users repository.UserRepository, id uint) string {
	u, err := users.GetByID(ctx, id)
	if err != nil || u == nil || u.Username == "" {
		return fallbackActor
	}
	return u.Username
}

// requireModerator loads the user and checks that they may moderate.
func requireModerator(ctx context.Context, users repository.UserRepository, id uint) (*models.User, error) {
	u, err := users.GetByID(ctx, id)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, models.NewUnauthorizedError("Unknown user")
		}
		return nil, err
	}
	if !u.Role.CanModerate() {
		return nil, models.NewForbiddenError("Moderator role required")
	}
	return u, nil
}

// canModify reports whether actor may edit or delete content owned by ownerID.
func canModify(ctx context.Context, users repository.UserRepository, actorID, ownerID uint) (bool, error) {
	if actorID == ownerID {
		return true, nil
	}
	u, err := users.GetByID(ctx, actorID)
	if err != nil {
		return false, err
	}
	return u.Role.CanModerate(), nil
}

// sagaError keeps AppErrors raised by a step and wraps everything else.
func sagaError(err error) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return models.NewInternalError(err)
}

func logWarn(ctx context.Context, msg string, err error, attrs ...any) {
	args := append(attrs, slog.String("error", err.Error()))
	middleware.Logger.WarnContext(ctx, msg, args...)
}

func uintPtr(v uint) *uint { return &v }

// redactThread hides the author of anonymous threads.
func redactThread(t *models.Thread) {
	if t != nil && t.IsAnonymous {
		t.User = nil
		t.UserID = 0
	}
}

// redactPost hides the author of anonymous posts.
func redactPost(p *models.Post) {
	if p != nil && p.IsAnonymous {
		p.User = nil
		p.UserID = 0
	}
}
