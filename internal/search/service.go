package search

import (
	"context"
	"log/slog"

	"bitboard/internal/featureflags"
	"bitboard/internal/middleware"
	"bitboard/internal/models"
	"bitboard/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

// FlagMeili routes queries to Meilisearch when it is configured and healthy.
const FlagMeili = featureflags.Meili

// Service is the facade that tries Meilisearch first and falls back to SQL.
// It also receives index updates from the write paths.
type Service struct {
	sql   Backend
	meili *Meili
	flags *featureflags.Manager
}

// NewService creates a search service over the SQL backend. meili and
// flags may be nil.
func NewService(sql Backend, meili *Meili, flags *featureflags.Manager) *Service {
	return &Service{sql: sql, meili: meili, flags: flags}
}

func (s *Service) useMeili(userID uint) bool {
	return s.meili != nil && s.meili.Healthy() && s.flags.Enabled(FlagMeili, userID)
}

// Search answers q for userID (0 when anonymous). Queries shorter than
// MinQueryLen return no results without touching any store.
func (s *Service) Search(ctx context.Context, userID uint, q string) (resp Response, err error) {
	term, ok := normalizeQuery(q)
	if !ok {
		return Response{Results: []Result{}}, nil
	}

	ctx, span := observability.StartServiceSpan(ctx, "search", "Search", attribute.Int("search.term_len", len(term)))
	defer func() { observability.EndSpan(span, err) }()

	if s.useMeili(userID) {
		results, err := s.meili.Search(term)
		if err == nil {
			observability.SearchRequests.WithLabelValues("meili").Inc()
			return Response{Results: finalize(results)}, nil
		}
		middleware.Logger.WarnContext(ctx, "meilisearch failed, falling back to sql", slog.String("error", err.Error()))
	}

	observability.SearchRequests.WithLabelValues("sql").Inc()
	results, err := s.sql.Search(ctx, term)
	if err != nil {
		return Response{}, models.NewInternalError(err)
	}
	return Response{Results: finalize(results)}, nil
}

func (s *Service) push(uid string, doc Document) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.index(uid, doc); err != nil {
			middleware.Logger.Warn("search index failed", slog.String("index", uid), slog.Uint64("id", uint64(doc.ID)), slog.String("error", err.Error()))
		}
	}()
}

// IndexThread indexes a thread (fire-and-forget).
func (s *Service) IndexThread(_ context.Context, t *models.Thread) {
	if t == nil {
		return
	}
	doc := Document{ID: t.ID, Title: t.Title, CreatedAt: t.CreatedAt.Unix(), ThreadID: t.ID, Username: unknownLabel}
	if !t.IsAnonymous && t.User != nil {
		doc.UserID, doc.Username = t.UserID, t.User.Username
	}
	doc.CategoryName = unknownLabel
	if t.Category != nil {
		doc.CategoryName = t.Category.Name
	}
	s.push(idxThreads, doc)
}

// IndexPost indexes a post (fire-and-forget).
func (s *Service) IndexPost(_ context.Context, p *models.Post) {
	if p == nil {
		return
	}
	doc := Document{ID: p.ID, Content: p.Content, CreatedAt: p.CreatedAt.Unix(), ThreadID: p.ThreadID, Title: unknownLabel, Username: unknownLabel}
	if !p.IsAnonymous && p.User != nil {
		doc.UserID, doc.Username = p.UserID, p.User.Username
	}
	if p.Thread != nil {
		doc.Title = p.Thread.Title
	}
	s.push(idxPosts, doc)
}

// IndexUser indexes a user profile (fire-and-forget).
func (s *Service) IndexUser(_ context.Context, u *models.User) {
	if u == nil {
		return
	}
	followers := u.FollowersCount
	s.push(idxUsers, Document{
		ID:             u.ID,
		Title:          u.Username,
		Content:        u.Bio,
		CreatedAt:      u.CreatedAt.Unix(),
		UserID:         u.ID,
		Username:       u.Username,
		AvatarURL:      u.AvatarURL,
		Bio:            u.Bio,
		FollowersCount: &followers,
	})
}

// Remove drops deleted content from the index (fire-and-forget).
func (s *Service) Remove(_ context.Context, kind models.ContentType, id uint) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	var uid string
	switch kind {
	case models.ContentThread:
		uid = idxThreads
	case models.ContentPost:
		uid = idxPosts
	case models.ContentUser:
		uid = idxUsers
	default:
		return
	}
	go func() {
		if err := s.meili.remove(uid, id); err != nil {
			middleware.Logger.Warn("search remove failed", slog.String("index", uid), slog.Uint64("id", uint64(id)), slog.String("error", err.Error()))
		}
	}()
}

// Close stops the Meilisearch health monitor.
func (s *Service) Close() {
	if s.meili != nil {
		s.meili.Close()
	}
}
