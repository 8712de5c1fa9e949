package search

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"testing"
	"time"

	"bitboard/internal/featureflags"
	"bitboard/internal/models"
	"bitboard/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	meili "github.com/meilisearch/meilisearch-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	return testutil.NewSQLiteDB(t)
}

type fixture struct {
	db    *gorm.DB
	alice *models.User
	cat   *models.Category
	base  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	base := time.Date(2024, 4, 20, 12, 0, 0, 0, time.UTC)
	alice := &models.User{Username: "alice", Email: "alice@example.com", Password: "x", Bio: "lightning dev", FollowersCount: 3, CreatedAt: base}
	require.NoError(t, db.Create(alice).Error)
	cat := &models.Category{Name: "Lightning", Slug: "lightning"}
	require.NoError(t, db.Create(cat).Error)
	return &fixture{db: db, alice: alice, cat: cat, base: base}
}

func (f *fixture) thread(t *testing.T, title string, offset time.Duration, anonymous bool) *models.Thread {
	t.Helper()
	th := &models.Thread{CategoryID: f.cat.ID, UserID: f.alice.ID, Title: title, IsAnonymous: anonymous, CreatedAt: f.base.Add(offset)}
	require.NoError(t, f.db.Omit("User", "Category", "Posts").Create(th).Error)
	return th
}

func (f *fixture) post(t *testing.T, threadID uint, content string, offset time.Duration) *models.Post {
	t.Helper()
	p := &models.Post{ThreadID: threadID, UserID: f.alice.ID, Content: content, CreatedAt: f.base.Add(offset)}
	require.NoError(t, f.db.Omit("User", "Thread", "Comments", "Reactions").Create(p).Error)
	return p
}

func TestService_ShortQueryTouchesNoStore(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)

	svc := NewService(NewSQL(db), nil, nil)
	for _, q := range []string{"", " ", "a", "  b  "} {
		resp, err := svc.Search(context.Background(), 0, q)
		require.NoError(t, err)
		assert.NotNil(t, resp.Results)
		assert.Empty(t, resp.Results)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQL_PostgresUsesILike(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(`threads.title ILIKE $2`)).
		WithArgs(false, "%sats%").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).AddRow(1, "stack sats"))
	mock.ExpectQuery(regexp.QuoteMeta(`threads.is_deleted = $2 AND posts.content ILIKE $3`)).
		WithArgs(false, false, "%sats%").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta(`(username ILIKE $1 OR bio ILIKE $2)`)).
		WithArgs("%sats%", "%sats%").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	results, err := NewSQL(db).Search(context.Background(), "sats")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ResultThread, results[0].Type)
	assert.Equal(t, "Unknown", results[0].Username)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQL_SkipsPostsInDeletedThreads(t *testing.T) {
	f := newFixture(t)
	live := f.thread(t, "fees", time.Hour, false)
	kept := f.post(t, live.ID, "mempool is clearing", 2*time.Hour)
	gone := f.thread(t, "removed", 3*time.Hour, false)
	f.post(t, gone.ID, "mempool spam", 4*time.Hour)
	require.NoError(t, f.db.Model(gone).Update("is_deleted", true).Error)

	results, err := NewSQL(f.db).Search(context.Background(), "mempool")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ResultPost, results[0].Type)
	assert.Equal(t, kept.ID, results[0].ID)
}

func TestService_SQLMergesAndOrders(t *testing.T) {
	f := newFixture(t)
	th := f.thread(t, "Lightning routing fees", time.Hour, false)
	f.post(t, th.ID, "my LIGHTNING node is online", 2*time.Hour)
	f.post(t, th.ID, "unrelated", 3*time.Hour)
	gone := f.thread(t, "lightning rumours", 4*time.Hour, false)
	require.NoError(t, f.db.Model(gone).Update("is_deleted", true).Error)

	resp, err := NewService(NewSQL(f.db), nil, featureflags.NewManager("meili=on")).Search(context.Background(), 0, "  lightning ")
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)

	post, thread, user := resp.Results[0], resp.Results[1], resp.Results[2]
	assert.Equal(t, ResultPost, post.Type)
	assert.Equal(t, "Lightning routing fees", post.Title)
	assert.Equal(t, "Lightning", post.CategoryName)
	assert.Equal(t, th.ID, post.ThreadID)
	assert.Equal(t, "alice", post.Username)

	assert.Equal(t, ResultThread, thread.Type)
	assert.Equal(t, th.ID, thread.ThreadID)
	assert.Equal(t, 1, thread.Rank)

	assert.Equal(t, ResultUser, user.Type)
	assert.Equal(t, "lightning dev", user.Bio)
	require.NotNil(t, user.FollowersCount)
	assert.Equal(t, 3, *user.FollowersCount)
}

func TestService_AnonymousAuthorsStayHidden(t *testing.T) {
	f := newFixture(t)
	f.thread(t, "whistleblower thread", time.Hour, true)

	resp, err := NewService(NewSQL(f.db), nil, nil).Search(context.Background(), 0, "whistle")
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Zero(t, resp.Results[0].UserID)
	assert.Equal(t, "Unknown", resp.Results[0].Username)
}

func TestService_TruncatesToFifty(t *testing.T) {
	f := newFixture(t)
	var newest *models.Thread
	for i := 0; i < 25; i++ {
		newest = f.thread(t, fmt.Sprintf("halving %d", i), time.Duration(i)*time.Minute, false)
		f.post(t, newest.ID, "halving soon", time.Duration(i)*time.Minute+time.Second)
	}
	for i := 0; i < 5; i++ {
		u := &models.User{Username: fmt.Sprintf("halving%d", i), Email: fmt.Sprintf("h%d@example.com", i), Password: "x", CreatedAt: f.base.Add(-time.Hour)}
		require.NoError(t, f.db.Create(u).Error)
	}

	resp, err := NewService(NewSQL(f.db), nil, nil).Search(context.Background(), 0, "halving")
	require.NoError(t, err)
	assert.Len(t, resp.Results, MaxResults)
	for i := 1; i < len(resp.Results); i++ {
		assert.False(t, resp.Results[i].CreatedAt.After(resp.Results[i-1].CreatedAt), "results must be newest first")
	}
	for _, r := range resp.Results {
		assert.NotEqual(t, ResultUser, r.Type, "the oldest rows are cut")
	}
}

func TestFinalize(t *testing.T) {
	assert.Equal(t, []Result{}, finalize(nil))

	now := time.Now()
	got := finalize([]Result{{ID: 1, CreatedAt: now.Add(-time.Hour)}, {ID: 2, CreatedAt: now}})
	assert.Equal(t, uint(2), got[0].ID)
}

func TestMeiliHitDecoding(t *testing.T) {
	hit := meili.Hit{
		"id":            json.RawMessage(`7`),
		"title":         json.RawMessage(`"Taproot"`),
		"created_at":    json.RawMessage(`1700000000`),
		"username":      json.RawMessage(`"bob"`),
		"thread_id":     json.RawMessage(`7`),
		"category_name": json.RawMessage(`"Dev"`),
	}
	doc, err := decodeHit(hit)
	require.NoError(t, err)
	res := doc.result(indexToResultType(idxThreads))
	assert.Equal(t, ResultThread, res.Type)
	assert.Equal(t, uint(7), res.ID)
	assert.Equal(t, "Taproot", res.Title)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), res.CreatedAt)
	assert.Equal(t, 1, res.Rank)

	assert.Equal(t, ResultPost, indexToResultType(idxPosts))
	assert.Equal(t, ResultUser, indexToResultType(idxUsers))
}
