package service

import (
	"context"
	"log/slog"
	"time"

	"bitboard/internal/cache"
	"bitboard/internal/feed"
	"bitboard/internal/models"
	"bitboard/internal/realtime"
	"bitboard/internal/repository"
	"bitboard/internal/saga"
	"bitboard/internal/validation"
)

// ReportService files user reports.
type ReportService struct {
	reports  repository.ReportRepository
	threads  repository.ThreadRepository
	posts    repository.PostRepository
	comments repository.CommentRepository
	users    repository.UserRepository
}

// CreateReportInput is a report filed by ReporterID.
type CreateReportInput struct {
	ReporterID  uint
	ContentType models.ContentType
	ContentID   uint
	Reason      models.ReportReason
	Description string
}

// NewReportService returns a new ReportService.
func NewReportService(
	reports repository.ReportRepository,
	threads repository.ThreadRepository,
	posts repository.PostRepository,
	comments repository.CommentRepository,
	users repository.UserRepository,
) *ReportService {
	return &ReportService{reports: reports, threads: threads, posts: posts, comments: comments, users: users}
}

// Create files a pending report against existing content.
func (s *ReportService) Create(ctx context.Context, in CreateReportInput) (*models.Report, error) {
	if !in.Reason.Valid() {
		return nil, models.NewValidationError("Invalid report reason")
	}
	desc, err := validation.OptionalText("Description", in.Description, validation.MaxDescriptionLen)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	ownerID, err := contentOwner(ctx, in.ContentType, in.ContentID, s.threads, s.posts, s.comments, s.users)
	if err != nil {
		return nil, err
	}

	report := &models.Report{
		ReporterID:     in.ReporterID,
		ReportedUserID: uintPtr(ownerID),
		ContentType:    in.ContentType,
		ContentID:      in.ContentID,
		Reason:         in.Reason,
		Description:    desc,
		Status:         models.ReportPending,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// contentOwner returns the author of a piece of content, or the user itself.
func contentOwner(
	ctx context.Context,
	t models.ContentType,
	id uint,
	threads repository.ThreadRepository,
	posts repository.PostRepository,
	comments repository.CommentRepository,
	users repository.UserRepository,
) (uint, error) {
	switch t {
	case models.ContentThread:
		th, err := threads.GetByID(ctx, id)
		if err != nil {
			return 0, err
		}
		return th.UserID, nil
	case models.ContentPost:
		p, err := posts.GetByID(ctx, id)
		if err != nil {
			return 0, err
		}
		return p.UserID, nil
	case models.ContentComment:
		c, err := comments.GetByID(ctx, id)
		if err != nil {
			return 0, err
		}
		return c.UserID, nil
	case models.ContentUser:
		u, err := users.GetByID(ctx, id)
		if err != nil {
			return 0, err
		}
		return u.ID, nil
	}
	return 0, models.NewValidationError("Invalid content type")
}

// ModerationService handles the report queue, content removal and bans.
type ModerationService struct {
	reports    repository.ReportRepository
	moderation repository.ModerationRepository
	threads    repository.ThreadRepository
	posts      repository.PostRepository
	comments   repository.CommentRepository
	users      repository.UserRepository
	cache      *cache.Cache
	publisher  *realtime.Publisher
	indexer    Indexer
}

// BanUserInput describes a ban. DurationDays of 0 bans permanently.
type BanUserInput struct {
	ModeratorID  uint
	UserID       uint
	Reason       string
	DurationDays int
}

// NewModerationService returns a new ModerationService.
func NewModerationService(
	reports repository.ReportRepository,
	moderation repository.ModerationRepository,
	threads repository.ThreadRepository,
	posts repository.PostRepository,
	comments repository.CommentRepository,
	users repository.UserRepository,
	c *cache.Cache,
	publisher *realtime.Publisher,
	indexer Indexer,
) *ModerationService {
	return &ModerationService{
		reports:    reports,
		moderation: moderation,
		threads:    threads,
		posts:      posts,
		comments:   comments,
		users:      users,
		cache:      c,
		publisher:  publisher,
		indexer:    orNoopIndexer(indexer),
	}
}

// ListReports returns one page of reports, newest first. An empty status lists all.
func (s *ModerationService) ListReports(ctx context.Context, moderatorID uint, status models.ReportStatus, c feed.Cursor) (feed.Page[models.Report], error) {
	if _, err := requireModerator(ctx, s.users, moderatorID); err != nil {
		return feed.Page[models.Report]{}, err
	}
	c = c.Normalize()
	rows, err := s.reports.ListByStatus(ctx, status, c.Offset(), c.Limit+1)
	if err != nil {
		return feed.Page[models.Report]{}, err
	}
	return feed.TrimPage(rows, c), nil
}

// ResolveReport marks a report resolved and records the action.
func (s *ModerationService) ResolveReport(ctx context.Context, moderatorID, reportID uint, note string) (*models.Report, error) {
	return s.reviewReport(ctx, moderatorID, reportID, models.ReportResolved, models.ActionResolveReport, note)
}

// DismissReport marks a report dismissed and records the action.
func (s *ModerationService) DismissReport(ctx context.Context, moderatorID, reportID uint, note string) (*models.Report, error) {
	return s.reviewReport(ctx, moderatorID, reportID, models.ReportDismissed, models.ActionDismissReport, note)
}

func (s *ModerationService) reviewReport(ctx context.Context, moderatorID, reportID uint, status models.ReportStatus, action, note string) (*models.Report, error) {
	if _, err := requireModerator(ctx, s.users, moderatorID); err != nil {
		return nil, err
	}
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report.Status == models.ReportResolved || report.Status == models.ReportDismissed {
		return nil, models.NewConflictError("Report has already been closed")
	}

	now := time.Now().UTC()
	if err := s.reports.Review(ctx, reportID, status, moderatorID, now); err != nil {
		return nil, err
	}
	if err := s.moderation.CreateAction(ctx, &models.ModerationAction{
		ModeratorID: moderatorID,
		ActionType:  action,
		TargetType:  report.ContentType,
		TargetID:    report.ContentID,
		Reason:      note,
		CreatedAt:   now,
	}); err != nil {
		return nil, err
	}
	return s.reports.GetByID(ctx, reportID)
}

// DeleteContent soft-deletes a thread, post or comment and appends the audit
// entry. If the audit entry cannot be written the content is restored.
func (s *ModerationService) DeleteContent(ctx context.Context, moderatorID uint, t models.ContentType, id uint, reason string) error {
	if _, err := requireModerator(ctx, s.users, moderatorID); err != nil {
		return err
	}

	var (
		setDeleted func(ctx context.Context, id uint, deleted bool, by uint) error
		table      string
		oldRow     map[string]interface{}
	)
	switch t {
	case models.ContentThread:
		th, err := s.threads.GetByID(ctx, id)
		if err != nil {
			return err
		}
		setDeleted, table = s.threads.SetDeleted, "threads"
		oldRow = map[string]interface{}{"id": id, "category_id": th.CategoryID}
	case models.ContentPost:
		p, err := s.posts.GetByID(ctx, id)
		if err != nil {
			return err
		}
		setDeleted, table = s.posts.SetDeleted, "posts"
		oldRow = map[string]interface{}{"id": id, "thread_id": p.ThreadID}
	case models.ContentComment:
		c, err := s.comments.GetByID(ctx, id)
		if err != nil {
			return err
		}
		setDeleted, table = s.comments.SetDeleted, "comments"
		oldRow = map[string]interface{}{"id": id, "post_id": c.PostID}
	default:
		return models.NewValidationError("Only threads, posts and comments can be deleted")
	}

	err := saga.New("moderation_delete").
		Then("soft_delete",
			func(ctx context.Context) error { return setDeleted(ctx, id, true, moderatorID) },
			func(ctx context.Context) error { return setDeleted(ctx, id, false, 0) },
		).
		Then("audit",
			func(ctx context.Context) error {
				return s.moderation.CreateAction(ctx, &models.ModerationAction{
					ModeratorID: moderatorID,
					ActionType:  models.DeleteActionFor(t),
					TargetType:  t,
					TargetID:    id,
					Reason:      reason,
					CreatedAt:   time.Now().UTC(),
				})
			},
			nil,
		).
		Run(ctx)
	if err != nil {
		return sagaError(err)
	}

	s.indexer.Remove(ctx, t, id)
	s.publisher.PublishChange(ctx, realtime.EventDelete, table, nil, oldRow)
	return nil
}

// BanUser bans a user and appends the audit entry. If the audit entry cannot
// be written the ban is revoked again.
func (s *ModerationService) BanUser(ctx context.Context, in BanUserInput) (*models.UserBan, error) {
	mod, err := requireModerator(ctx, s.users, in.ModeratorID)
	if err != nil {
		return nil, err
	}
	if in.UserID == in.ModeratorID {
		return nil, models.NewValidationError("You cannot ban yourself")
	}
	reason, err := validation.ValidateText("Reason", in.Reason, validation.MaxReasonLen)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if in.DurationDays < 0 {
		return nil, models.NewValidationError("Duration must not be negative")
	}
	target, err := s.users.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if target.Role == models.RoleAdmin && mod.Role != models.RoleAdmin {
		return nil, models.NewForbiddenError("Only an admin can ban an admin")
	}

	now := time.Now().UTC()
	ban := &models.UserBan{
		UserID:    in.UserID,
		BannedBy:  in.ModeratorID,
		BanType:   models.BanPermanent,
		Reason:    reason,
		CreatedAt: now,
	}
	if in.DurationDays > 0 {
		expires := now.Add(time.Duration(in.DurationDays) * 24 * time.Hour)
		ban.BanType = models.BanTemporary
		ban.ExpiresAt = &expires
	}

	err = saga.New("ban_user").
		Then("insert_ban",
			func(ctx context.Context) error { return s.moderation.CreateBan(ctx, ban) },
			func(ctx context.Context) error { return s.moderation.RevokeBan(ctx, ban.ID, time.Now().UTC()) },
		).
		Then("audit",
			func(ctx context.Context) error {
				return s.moderation.CreateAction(ctx, &models.ModerationAction{
					ModeratorID: in.ModeratorID,
					ActionType:  models.ActionBanUser,
					TargetType:  models.ContentUser,
					TargetID:    in.UserID,
					Reason:      reason,
					CreatedAt:   now,
				})
			},
			nil,
		).
		Run(ctx)
	s.cache.Invalidate(ctx, cache.BanKey(in.UserID))
	if err != nil {
		return nil, sagaError(err)
	}
	return ban, nil
}

// UnbanUser revokes every active ban of a user and records the action.
func (s *ModerationService) UnbanUser(ctx context.Context, moderatorID, userID uint, reason string) error {
	if _, err := requireModerator(ctx, s.users, moderatorID); err != nil {
		return err
	}
	n, err := s.moderation.RevokeActiveBans(ctx, userID, time.Now().UTC())
	if err != nil {
		return err
	}
	s.cache.Invalidate(ctx, cache.BanKey(userID))
	if n == 0 {
		return models.NewNotFoundError("Active ban for user", userID)
	}
	return s.moderation.CreateAction(ctx, &models.ModerationAction{
		ModeratorID: moderatorID,
		ActionType:  models.ActionUnbanUser,
		TargetType:  models.ContentUser,
		TargetID:    userID,
		Reason:      reason,
		CreatedAt:   time.Now().UTC(),
	})
}

// IsBanned reports whether a ban is in force for userID. The answer is cached briefly.
func (s *ModerationService) IsBanned(ctx context.Context, userID uint) (bool, error) {
	var banned bool
	err := s.cache.Aside(ctx, cache.BanKey(userID), &banned, cache.BanTTL, func() error {
		ban, err := s.moderation.ActiveBan(ctx, userID, time.Now().UTC())
		if err != nil {
			return err
		}
		banned = ban != nil
		return nil
	})
	if err != nil {
		logWarn(ctx, "ban lookup failed", err, slog.Uint64("user_id", uint64(userID)))
	}
	return banned, err
}

// ListActions returns one page of the audit log, newest first.
func (s *ModerationService) ListActions(ctx context.Context, moderatorID uint, c feed.Cursor) (feed.Page[models.ModerationAction], error) {
	if _, err := requireModerator(ctx, s.users, moderatorID); err != nil {
		return feed.Page[models.ModerationAction]{}, err
	}
	c = c.Normalize()
	rows, err := s.moderation.ListActions(ctx, c.Offset(), c.Limit+1)
	if err != nil {
		return feed.Page[models.ModerationAction]{}, err
	}
	return feed.TrimPage(rows, c), nil
}
