package repository

import (
	"context"
	"errors"
	"time"

	"bitboard/internal/models"

	"gorm.io/gorm"
)

// ReportRepository defines persistence operations for user reports.
type ReportRepository interface {
	Create(ctx context.Context, report *models.Report) error
	GetByID(ctx context.Context, id uint) (*models.Report, error)
	ListByStatus(ctx context.Context, status models.ReportStatus, offset, limit int) ([]models.Report, error)
	Review(ctx context.Context, id uint, status models.ReportStatus, reviewerID uint, at time.Time) error
}

type reportRepository struct {
	db *gorm.DB
}

// NewReportRepository creates a new report repository.
func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) Create(ctx context.Context, report *models.Report) error {
	return translate(r.db.WithContext(ctx).Omit("Reporter").Create(report).Error, "Report", report.ContentID)
}

func (r *reportRepository) GetByID(ctx context.Context, id uint) (*models.Report, error) {
	var report models.Report
	if err := r.db.WithContext(ctx).First(&report, id).Error; err != nil {
		return nil, translate(err, "Report", id)
	}
	return &report, nil
}

// ListByStatus lists reports newest first. An empty status lists every report.
func (r *reportRepository) ListByStatus(ctx context.Context, status models.ReportStatus, offset, limit int) ([]models.Report, error) {
	q := r.db.WithContext(ctx).Scopes(page(offset, limit)).Preload("Reporter", authorColumns)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var reports []models.Report
	if err := q.Order("created_at DESC").Order("id DESC").Find(&reports).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return reports, nil
}

func (r *reportRepository) Review(ctx context.Context, id uint, status models.ReportStatus, reviewerID uint, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Report{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":      status,
		"reviewed_by": reviewerID,
		"reviewed_at": at,
	})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Report", id)
	}
	return nil
}

// ModerationRepository stores the audit log and user bans.
type ModerationRepository interface {
	CreateAction(ctx context.Context, action *models.ModerationAction) error
	ListActions(ctx context.Context, offset, limit int) ([]models.ModerationAction, error)
	CreateBan(ctx context.Context, ban *models.UserBan) error
	RevokeBan(ctx context.Context, id uint, at time.Time) error
	RevokeActiveBans(ctx context.Context, userID uint, at time.Time) (int64, error)
	ActiveBan(ctx context.Context, userID uint, at time.Time) (*models.UserBan, error)
}

type moderationRepository struct {
	db *gorm.DB
}

// NewModerationRepository creates a new moderation repository.
func NewModerationRepository(db *gorm.DB) ModerationRepository {
	return &moderationRepository{db: db}
}

func (r *moderationRepository) CreateAction(ctx context.Context, action *models.ModerationAction) error {
	return translate(r.db.WithContext(ctx).Omit("Moderator").Create(action).Error, "ModerationAction", action.TargetID)
}

func (r *moderationRepository) ListActions(ctx context.Context, offset, limit int) ([]models.ModerationAction, error) {
	var actions []models.ModerationAction
	err := r.db.WithContext(ctx).
		Scopes(page(offset, limit)).
		Preload("Moderator", authorColumns).
		Order("created_at DESC").
		Order("id DESC").
		Find(&actions).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return actions, nil
}

func (r *moderationRepository) CreateBan(ctx context.Context, ban *models.UserBan) error {
	return translate(r.db.WithContext(ctx).Create(ban).Error, "UserBan", ban.UserID)
}

func (r *moderationRepository) RevokeBan(ctx context.Context, id uint, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.UserBan{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Update("revoked_at", at)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("UserBan", id)
	}
	return nil
}

func (r *moderationRepository) RevokeActiveBans(ctx context.Context, userID uint, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.UserBan{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Where("expires_at IS NULL OR expires_at > ?", at).
		Update("revoked_at", at)
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

// ActiveBan returns the user's ban in force at t, or nil, nil.
func (r *moderationRepository) ActiveBan(ctx context.Context, userID uint, at time.Time) (*models.UserBan, error) {
	var ban models.UserBan
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Where("expires_at IS NULL OR expires_at > ?", at).
		Order("created_at DESC").
		First(&ban).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &ban, nil
}
