// Package repository implements the data access layer for the application.
package repository

import (
	"errors"
	"strings"

	"bitboard/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// isUniqueConstraintError checks if a DB error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, pgUniqueViolation)
}

// IsConflict reports whether err came from a unique constraint violation.
func IsConflict(err error) bool {
	return models.IsCode(err, models.CodeConflict) || isUniqueConstraintError(err)
}

// translate maps gorm errors onto the AppError taxonomy.
func translate(err error, resource string, id interface{}) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	if isUniqueConstraintError(err) {
		return &models.AppError{Code: models.CodeConflict, Message: resource + " already exists", Err: err}
	}
	return models.NewInternalError(err)
}

// notDeleted scopes a query to rows that have not been soft deleted.
func notDeleted(table string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(table+".is_deleted = ?", false)
	}
}

// page applies offset and limit. A non-positive limit means no limit.
func page(offset, limit int) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if offset > 0 {
			db = db.Offset(offset)
		}
		if limit > 0 {
			db = db.Limit(limit)
		}
		return db
	}
}

// authorColumns limits preloaded users to their public projection.
func authorColumns(db *gorm.DB) *gorm.DB {
	return db.Select("id", "username", "avatar_url", "role", "reputation")
}
