package service

import (
	"context"
	"errors"
	"testing"

	"bitboard/internal/feed"
	"bitboard/internal/models"
	"bitboard/internal/repository"
	"bitboard/internal/saga"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// auditFailingRepo cannot write the audit log.
type auditFailingRepo struct {
	repository.ModerationRepository
}

func (auditFailingRepo) CreateAction(context.Context, *models.ModerationAction) error {
	return models.NewInternalError(errors.New("audit log unavailable"))
}

func TestModerationService_DeleteContent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice", models.RoleUser)
	mod := h.user(t, "mod", models.RoleModerator)
	post := firstPost(t, h, alice.ID)

	err := h.moderation.DeleteContent(ctx, alice.ID, models.ContentPost, post.ID, "spam")
	assertAppError(t, err, models.CodeForbidden)

	require.NoError(t, h.moderation.DeleteContent(ctx, mod.ID, models.ContentPost, post.ID, "spam"))
	_, err = h.postRepo.GetByID(ctx, post.ID)
	assertAppError(t, err, models.CodeNotFound)

	page, err := h.moderation.ListActions(ctx, mod.ID, feed.Cursor{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "delete_post", page.Items[0].ActionType)
	assert.Equal(t, post.ID, page.Items[0].TargetID)

	err = h.moderation.DeleteContent(ctx, mod.ID, models.ContentUser, alice.ID, "x")
	assertValidationError(t, err)
}

func TestModerationService_DeleteContent_RestoresWhenAuditFails(t *testing.T) {
	h := newHarness(t)
	h.modRepo = auditFailingRepo{ModerationRepository: h.modRepo}
	h.rewire()
	ctx := context.Background()
	alice := h.user(t, "alice", models.RoleUser)
	mod := h.user(t, "mod", models.RoleModerator)
	post := firstPost(t, h, alice.ID)

	err := h.moderation.DeleteContent(ctx, mod.ID, models.ContentPost, post.ID, "spam")
	require.Error(t, err)
	var stepErr *saga.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "audit", stepErr.Step)

	restored, err := h.postRepo.GetByID(ctx, post.ID)
	require.NoError(t, err, "post must be restored")
	assert.False(t, restored.IsDeleted)
	assert.Nil(t, restored.DeletedBy)
}

func TestModerationService_BanAndUnban(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice", models.RoleUser)
	mod := h.user(t, "mod", models.RoleModerator)
	admin := h.user(t, "root", models.RoleAdmin)

	_, err := h.moderation.BanUser(ctx, BanUserInput{ModeratorID: mod.ID, UserID: mod.ID, Reason: "x"})
	assertValidationError(t, err)
	_, err = h.moderation.BanUser(ctx, BanUserInput{ModeratorID: mod.ID, UserID: admin.ID, Reason: "x"})
	assertAppError(t, err, models.CodeForbidden)
	_, err = h.moderation.BanUser(ctx, BanUserInput{ModeratorID: mod.ID, UserID: alice.ID, Reason: ""})
	assertValidationError(t, err)

	ban, err := h.moderation.BanUser(ctx, BanUserInput{ModeratorID: mod.ID, UserID: alice.ID, Reason: "spam", DurationDays: 7})
	require.NoError(t, err)
	assert.Equal(t, models.BanTemporary, ban.BanType)
	require.NotNil(t, ban.ExpiresAt)

	banned, err := h.moderation.IsBanned(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, banned)

	require.NoError(t, h.moderation.UnbanUser(ctx, mod.ID, alice.ID, "appeal"))
	banned, err = h.moderation.IsBanned(ctx, alice.ID)
	require.NoError(t, err)
	assert.False(t, banned)

	assertAppError(t, h.moderation.UnbanUser(ctx, mod.ID, alice.ID, "again"), models.CodeNotFound)

	page, err := h.moderation.ListActions(ctx, admin.ID, feed.Cursor{})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, models.ActionUnbanUser, page.Items[0].ActionType)
	assert.Equal(t, models.ActionBanUser, page.Items[1].ActionType)
}

func TestModerationService_BanUser_RevokesWhenAuditFails(t *testing.T) {
	h := newHarness(t)
	h.modRepo = auditFailingRepo{ModerationRepository: h.modRepo}
	h.rewire()
	ctx := context.Background()
	alice := h.user(t, "alice", models.RoleUser)
	mod := h.user(t, "mod", models.RoleModerator)

	_, err := h.moderation.BanUser(ctx, BanUserInput{ModeratorID: mod.ID, UserID: alice.ID, Reason: "spam"})
	require.Error(t, err)

	banned, err := h.moderation.IsBanned(ctx, alice.ID)
	require.NoError(t, err)
	assert.False(t, banned, "ban must be revoked when the audit entry fails")
}

func TestModerationService_ReportQueue(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice", models.RoleUser)
	bob := h.user(t, "bob", models.RoleUser)
	mod := h.user(t, "mod", models.RoleModerator)
	post := firstPost(t, h, alice.ID)

	first, err := h.reports.Create(ctx, CreateReportInput{ReporterID: bob.ID, ContentType: models.ContentPost, ContentID: post.ID, Reason: models.ReasonSpam})
	require.NoError(t, err)
	second, err := h.reports.Create(ctx, CreateReportInput{ReporterID: bob.ID, ContentType: models.ContentUser, ContentID: alice.ID, Reason: models.ReasonHarassment})
	require.NoError(t, err)

	_, err = h.moderation.ListReports(ctx, bob.ID, models.ReportPending, feed.Cursor{})
	assertAppError(t, err, models.CodeForbidden)

	page, err := h.moderation.ListReports(ctx, mod.ID, models.ReportPending, feed.Cursor{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)

	resolved, err := h.moderation.ResolveReport(ctx, mod.ID, first.ID, "removed")
	require.NoError(t, err)
	assert.Equal(t, models.ReportResolved, resolved.Status)
	require.NotNil(t, resolved.ReviewedBy)
	assert.Equal(t, mod.ID, *resolved.ReviewedBy)
	assert.NotNil(t, resolved.ReviewedAt)

	_, err = h.moderation.DismissReport(ctx, mod.ID, first.ID, "")
	assertAppError(t, err, models.CodeConflict)

	dismissed, err := h.moderation.DismissReport(ctx, mod.ID, second.ID, "not harassment")
	require.NoError(t, err)
	assert.Equal(t, models.ReportDismissed, dismissed.Status)

	page, err = h.moderation.ListReports(ctx, mod.ID, models.ReportPending, feed.Cursor{})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}
