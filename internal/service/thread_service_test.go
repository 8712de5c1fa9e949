package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"bitboard/internal/feed"
	"bitboard/internal/models"
	"bitboard/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingPostRepo rejects every insert.
type failingPostRepo struct {
	repository.PostRepository
}

func (failingPostRepo) Create(context.Context, *models.Post) error {
	return models.NewInternalError(errors.New("disk full"))
}

func TestThreadService_CreateThread(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice", models.RoleUser)
	bob := h.user(t, "bob", models.RoleUser)
	cat := h.category(t, "bitcoin")

	thread, err := h.threads.CreateThread(ctx, CreateThreadInput{
		UserID:     alice.ID,
		CategoryID: cat.ID,
		Title:      "  Halving predictions  ",
		Content:    "what do you think @bob?",
	})
	require.NoError(t, err)
	assert.Equal(t, "Halving predictions", thread.Title)
	assert.Equal(t, alice.ID, thread.UserID)

	detail, err := h.threads.GetThread(ctx, thread.ID, feed.Cursor{})
	require.NoError(t, err)
	require.Len(t, detail.Posts.Items, 1)
	assert.Equal(t, "what do you think @bob?", detail.Posts.Items[0].Content)
	assert.False(t, detail.Posts.HasMore)

	notes := h.notificationsFor(t, bob.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationMention, notes[0].Type)
	assert.Equal(t, "alice mentioned you", notes[0].Title)
	require.NotNil(t, notes[0].ThreadID)
	assert.Equal(t, thread.ID, *notes[0].ThreadID)

	var author models.User
	require.NoError(t, h.db.First(&author, alice.ID).Error)
	assert.Equal(t, 1, author.PostCount)
}

func TestThreadService_UnresolvedMentionStillPostsReply(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice", models.RoleUser)
	cat := h.category(t, "general")

	thread, err := h.threads.CreateThread(ctx, CreateThreadInput{
		UserID:     alice.ID,
		CategoryID: cat.ID,
		Title:      "Test",
		Content:    "first",
	})
	require.NoError(t, err)

	post, err := h.posts.CreatePost(ctx, CreatePostInput{UserID: alice.ID, ThreadID: thread.ID, Content: "hello @nobody"})
	require.NoError(t, err)

	var mentions, notifications int64
	require.NoError(t, h.db.Model(&models.Mention{}).Count(&mentions).Error)
	require.NoError(t, h.db.Model(&models.Notification{}).Count(&notifications).Error)
	assert.Zero(t, mentions)
	assert.Zero(t, notifications)

	detail, err := h.threads.GetThread(ctx, thread.ID, feed.Cursor{})
	require.NoError(t, err)
	require.Len(t, detail.Posts.Items, 2)
	assert.Equal(t, post.ID, detail.Posts.Items[1].ID)
	assert.Equal(t, "hello @nobody", detail.Posts.Items[1].Content)
}

func TestThreadService_AnonymousContentNotificationsNameNoAuthor(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice", models.RoleUser)
	bob := h.user(t, "bob", models.RoleUser)
	carol := h.user(t, "carol", models.RoleUser)
	cat := h.category(t, "privacy")

	thread, err := h.threads.CreateThread(ctx, CreateThreadInput{
		UserID:      bob.ID,
		CategoryID:  cat.ID,
		Title:       "Coinjoin tips",
		Content:     "ping @carol",
		IsAnonymous: true,
	})
	require.NoError(t, err)

	reply, err := h.threads.CreateThread(ctx, CreateThreadInput{
		UserID:     alice.ID,
		CategoryID: cat.ID,
		Title:      "Lightning routing",
		Content:    "ideas?",
	})
	require.NoError(t, err)
	_, err = h.posts.CreatePost(ctx, CreatePostInput{
		UserID:      bob.ID,
		ThreadID:    reply.ID,
		Content:     "try @carol's node",
		IsAnonymous: true,
	})
	require.NoError(t, err)

	toAlice := h.notificationsFor(t, alice.ID)
	require.Len(t, toAlice, 1)
	assert.Equal(t, models.NotificationReply, toAlice[0].Type)
	assert.Equal(t, "Someone replied to your post", toAlice[0].Title)

	toCarol := h.notificationsFor(t, carol.ID)
	require.Len(t, toCarol, 2)
	assert.Equal(t, "Someone mentioned you", toCarol[0].Title)
	require.NotNil(t, toCarol[0].ThreadID)
	assert.Equal(t, thread.ID, *toCarol[0].ThreadID)

	for _, n := range append(toAlice, toCarol...) {
		assert.Nil(t, n.FromUserID, "notification %d", n.ID)
		assert.NotContains(t, n.Title, "bob")
		assert.NotContains(t, n.Message, "bob")
		assert.Equal(t, "Someone", n.Data["username"])
	}
}

func TestThreadService_CreateThread_CompensatesWhenFirstPostFails(t *testing.T) {
	h := newHarness(t)
	h.postRepo = failingPostRepo{PostRepository: h.postRepo}
	h.rewire()
	ctx := context.Background()
	alice := h.user(t, "alice", models.RoleUser)
	cat := h.category(t, "bitcoin")

	_, err := h.threads.CreateThread(ctx, CreateThreadInput{
		UserID:     alice.ID,
		CategoryID: cat.ID,
		Title:      "orphan?",
		Content:    "never stored",
	})
	assertAppError(t, err, models.CodeInternal)

	var count int64
	require.NoError(t, h.db.Model(&models.Thread{}).Count(&count).Error)
	assert.Zero(t, count, "thread must be removed when its first post fails")
}

func TestThreadService_CreateThread_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice", models.RoleUser)
	cat := h.category(t, "bitcoin")

	tests := []struct {
		name string
		in   CreateThreadInput
	}{
		{"blank title", CreateThreadInput{UserID: alice.ID, CategoryID: cat.ID, Title: "   ", Content: "x"}},
		{"title too long", CreateThreadInput{UserID: alice.ID, CategoryID: cat.ID, Title: strings.Repeat("t", 301), Content: "x"}},
		{"blank content", CreateThreadInput{UserID: alice.ID, CategoryID: cat.ID, Title: "t", Content: ""}},
		{"missing category", CreateThreadInput{UserID: alice.ID, Title: "t", Content: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.threads.CreateThread(ctx, tt.in)
			assertValidationError(t, err)
		})
	}

	_, err := h.threads.CreateThread(ctx, CreateThreadInput{UserID: alice.ID, CategoryID: 999, Title: "t", Content: "x"})
	assertAppError(t, err, models.CodeNotFound)
}

func TestThreadService_ListThreads_ExactHasMore(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice", models.RoleUser)
	cat := h.category(t, "bitcoin")

	for i := 0; i < 10; i++ {
		_, err := h.threads.CreateThread(ctx, CreateThreadInput{
			UserID: alice.ID, CategoryID: cat.ID, Title: fmt.Sprintf("thread %d", i), Content: "body",
		})
		require.NoError(t, err)
	}

	page, err := h.threads.ListThreads(ctx, cat.ID, feed.Cursor{Page: 0, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, page.Items, 10)
	assert.False(t, page.HasMore, "exactly limit rows must not report more")

	page, err = h.threads.ListThreads(ctx, 0, feed.Cursor{Page: 0, Limit: 4})
	require.NoError(t, err)
	assert.Len(t, page.Items, 4)
	assert.True(t, page.HasMore)

	page, err = h.threads.ListThreads(ctx, 0, feed.Cursor{Page: 2, Limit: 4})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.False(t, page.HasMore)
}

func TestThreadService_AnonymousThreadHidesAuthor(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice", models.RoleUser)
	cat := h.category(t, "bitcoin")

	thread, err := h.threads.CreateThread(ctx, CreateThreadInput{
		UserID: alice.ID, CategoryID: cat.ID, Title: "whistle", Content: "blown", IsAnonymous: true,
	})
	require.NoError(t, err)
	assert.Nil(t, thread.User)
	assert.Zero(t, thread.UserID)

	mine, err := h.threads.ListByUser(ctx, alice.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestThreadService_DeleteThread_Permissions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice", models.RoleUser)
	mallory := h.user(t, "mallory", models.RoleUser)
	mod := h.user(t, "mod", models.RoleModerator)
	cat := h.category(t, "bitcoin")

	thread, err := h.threads.CreateThread(ctx, CreateThreadInput{UserID: alice.ID, CategoryID: cat.ID, Title: "t", Content: "x"})
	require.NoError(t, err)

	assertAppError(t, h.threads.DeleteThread(ctx, mallory.ID, thread.ID), models.CodeForbidden)
	require.NoError(t, h.threads.DeleteThread(ctx, mod.ID, thread.ID))

	_, err = h.threads.GetThread(ctx, thread.ID, feed.Cursor{})
	assertAppError(t, err, models.CodeNotFound)
}

func TestPostService_CreatePost(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice", models.RoleUser)
	bob := h.user(t, "bob", models.RoleUser)
	cat := h.category(t, "bitcoin")

	thread, err := h.threads.CreateThread(ctx, CreateThreadInput{UserID: alice.ID, CategoryID: cat.ID, Title: "t", Content: "x"})
	require.NoError(t, err)

	post, err := h.posts.CreatePost(ctx, CreatePostInput{UserID: bob.ID, ThreadID: thread.ID, Content: "stack sats"})
	require.NoError(t, err)
	assert.Equal(t, thread.ID, post.ThreadID)

	notes := h.notificationsFor(t, alice.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationReply, notes[0].Type)
	assert.Equal(t, "bob replied to your post", notes[0].Title)

	_, err = h.posts.CreatePost(ctx, CreatePostInput{UserID: alice.ID, ThreadID: thread.ID, Content: "self reply"})
	require.NoError(t, err)
	assert.Len(t, h.notificationsFor(t, alice.ID), 1, "replying to your own thread must not notify")

	_, err = h.posts.CreatePost(ctx, CreatePostInput{UserID: bob.ID, ThreadID: 999, Content: "x"})
	assertAppError(t, err, models.CodeNotFound)

	require.NoError(t, h.db.Model(&models.Thread{}).Where("id = ?", thread.ID).Update("is_locked", true).Error)
	_, err = h.posts.CreatePost(ctx, CreatePostInput{UserID: bob.ID, ThreadID: thread.ID, Content: "late"})
	assertAppError(t, err, models.CodeForbidden)
}

func TestPostService_UpdateAndDelete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice", models.RoleUser)
	bob := h.user(t, "bob", models.RoleUser)
	cat := h.category(t, "bitcoin")

	thread, err := h.threads.CreateThread(ctx, CreateThreadInput{UserID: alice.ID, CategoryID: cat.ID, Title: "t", Content: "x"})
	require.NoError(t, err)
	post, err := h.posts.CreatePost(ctx, CreatePostInput{UserID: bob.ID, ThreadID: thread.ID, Content: "first"})
	require.NoError(t, err)

	_, err = h.posts.UpdatePost(ctx, alice.ID, post.ID, "hijack")
	assertAppError(t, err, models.CodeForbidden)

	updated, err := h.posts.UpdatePost(ctx, bob.ID, post.ID, "second")
	require.NoError(t, err)
	assert.Equal(t, "second", updated.Content)
	assert.NotNil(t, updated.EditedAt)

	assertAppError(t, h.posts.DeletePost(ctx, alice.ID, post.ID), models.CodeForbidden)
	require.NoError(t, h.posts.DeletePost(ctx, bob.ID, post.ID))

	detail, err := h.threads.GetThread(ctx, thread.ID, feed.Cursor{})
	require.NoError(t, err)
	assert.Len(t, detail.Posts.Items, 1)
}

func TestCommentService_CreateComment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice", models.RoleUser)
	bob := h.user(t, "bob", models.RoleUser)
	carol := h.user(t, "carol", models.RoleUser)
	cat := h.category(t, "bitcoin")

	thread, err := h.threads.CreateThread(ctx, CreateThreadInput{UserID: alice.ID, CategoryID: cat.ID, Title: "t", Content: "x"})
	require.NoError(t, err)
	detail, err := h.threads.GetThread(ctx, thread.ID, feed.Cursor{})
	require.NoError(t, err)
	first := detail.Posts.Items[0]

	comment, err := h.commentSvc.CreateComment(ctx, CreateCommentInput{UserID: bob.ID, PostID: first.ID, Content: "agreed @carol"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, comment.PostID)

	aliceNotes := h.notificationsFor(t, alice.ID)
	require.Len(t, aliceNotes, 1)
	assert.Equal(t, "bob commented on your post", aliceNotes[0].Title)

	carolNotes := h.notificationsFor(t, carol.ID)
	require.Len(t, carolNotes, 1)
	assert.Equal(t, models.NotificationMention, carolNotes[0].Type)
	require.NotNil(t, carolNotes[0].ThreadID)
	assert.Equal(t, thread.ID, *carolNotes[0].ThreadID, "comment mentions resolve the thread through the post")

	list, err := h.commentSvc.ListComments(ctx, first.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = h.commentSvc.CreateComment(ctx, CreateCommentInput{UserID: bob.ID, PostID: 999, Content: "x"})
	assertAppError(t, err, models.CodeNotFound)
}
