package repository

import (
	"testing"
	"time"

	"bitboard/internal/models"
	"bitboard/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

// newTestDB returns an isolated in-memory sqlite database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	return testutil.NewSQLiteDB(t)
}

func seedUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	u := &models.User{Username: username, Email: username + "@example.com", Password: "hash", Role: models.RoleUser}
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedCategory(t *testing.T, db *gorm.DB, slug string) *models.Category {
	t.Helper()
	c := &models.Category{Name: slug, Slug: slug}
	require.NoError(t, db.Create(c).Error)
	return c
}

func seedThread(t *testing.T, db *gorm.DB, categoryID, userID uint, title string, at time.Time) *models.Thread {
	t.Helper()
	th := &models.Thread{CategoryID: categoryID, UserID: userID, Title: title, CreatedAt: at}
	require.NoError(t, db.Omit("User", "Category", "Posts").Create(th).Error)
	return th
}
