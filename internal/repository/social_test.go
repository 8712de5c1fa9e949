package repository

import (
	"context"
	"testing"
	"time"

	"bitboard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReactionRepository_UniquePerUserAndTarget(t *testing.T) {
	db := newTestDB(t)
	repo := NewReactionRepository(db)
	ctx := context.Background()

	u := seedUser(t, db, "alice")
	c := seedCategory(t, db, "general")
	th := seedThread(t, db, c.ID, u.ID, "t", time.Now().UTC())
	post := &models.Post{ThreadID: th.ID, UserID: u.ID, Content: "gm"}
	require.NoError(t, db.Omit("User", "Thread", "Comments", "Reactions").Create(post).Error)
	target := ReactionTarget{PostID: post.ID}

	first, err := repo.Create(ctx, u.ID, target, models.ReactionRocket)
	require.NoError(t, err)

	_, err = repo.Create(ctx, u.ID, target, models.ReactionFire)
	assert.True(t, IsConflict(err), "duplicate reaction must conflict, got %v", err)

	replaced, err := repo.Replace(ctx, first, models.ReactionFire)
	require.NoError(t, err)
	assert.Equal(t, models.ReactionFire, replaced.ReactionType)

	found, err := repo.Find(ctx, u.ID, target)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, models.ReactionFire, found.ReactionType)

	other := seedUser(t, db, "bob")
	_, err = repo.Create(ctx, other.ID, target, models.ReactionFire)
	require.NoError(t, err)

	counts, err := repo.Counts(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[models.ReactionFire])
	assert.Zero(t, counts[models.ReactionRocket])

	require.NoError(t, repo.Delete(ctx, found.ID))
	found, err = repo.Find(ctx, u.ID, target)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestFollowRepository_CountersTrackEdges(t *testing.T) {
	db := newTestDB(t)
	repo := NewFollowRepository(db, nil)
	ctx := context.Background()

	a := seedUser(t, db, "a")
	b := seedUser(t, db, "b")

	require.NoError(t, repo.Follow(ctx, a.ID, b.ID))
	require.NoError(t, repo.Follow(ctx, a.ID, b.ID))

	exists, err := repo.Exists(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	var fa, fb models.User
	require.NoError(t, db.First(&fa, a.ID).Error)
	require.NoError(t, db.First(&fb, b.ID).Error)
	assert.Equal(t, 1, fa.FollowingCount)
	assert.Equal(t, 1, fb.FollowersCount)

	ids, err := repo.ListFollowing(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{b.ID}, ids)

	require.NoError(t, repo.Unfollow(ctx, a.ID, b.ID))
	require.NoError(t, repo.Unfollow(ctx, a.ID, b.ID))

	var edges int64
	db.Model(&models.Follow{}).Count(&edges)
	assert.Zero(t, edges)
	require.NoError(t, db.First(&fb, b.ID).Error)
	assert.Equal(t, 0, fb.FollowersCount)
}

func TestNotificationRepository_ReadState(t *testing.T) {
	db := newTestDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	u := seedUser(t, db, "reader")
	other := seedUser(t, db, "other")
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, &models.Notification{
			UserID:     u.ID,
			Type:       models.NotificationMention,
			Title:      "other mentioned you",
			FromUserID: &other.ID,
			Data:       map[string]interface{}{"n": i},
		}))
	}

	list, err := repo.ListByUser(ctx, u.ID, 0, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].ID > list[1].ID)
	require.NotNil(t, list[0].FromUser)
	assert.Equal(t, "other", list[0].FromUser.Username)

	count, err := repo.UnreadCount(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	require.NoError(t, repo.MarkRead(ctx, u.ID, list[0].ID))
	assert.True(t, models.IsCode(repo.MarkRead(ctx, other.ID, list[1].ID), models.CodeNotFound))

	n, err := repo.MarkAllRead(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	count, err = repo.UnreadCount(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}
