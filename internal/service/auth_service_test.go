package service

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"bitboard/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-with-enough-entropy-0123456789"

func newAuthService(t *testing.T, h *harness) (*AuthService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewAuthService(h.users, rdb, testSecret, time.Hour, nil), mr
}

func TestAuthService_SignUpAndSignIn(t *testing.T) {
	h := newHarness(t)
	auth, _ := newAuthService(t, h)
	ctx := context.Background()

	in := SignUpInput{
		Email:           "Satoshi@Example.com",
		Username:        "satoshi",
		Password:        "Genesis-Block-2009",
		ConfirmPassword: "Genesis-Block-2009",
	}
	res, err := auth.SignUp(ctx, in)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "satoshi@example.com", res.User.Email)
	assert.NotEqual(t, in.Password, res.User.Password)
	assert.Equal(t, models.RoleUser, res.User.Role)

	_, err = auth.SignUp(ctx, in)
	assertAppError(t, err, models.CodeConflict)

	in.Email = "other@example.com"
	_, err = auth.SignUp(ctx, in)
	assertAppError(t, err, models.CodeConflict)

	signedIn, err := auth.SignIn(ctx, "satoshi@example.com", "Genesis-Block-2009")
	require.NoError(t, err)
	claims, err := auth.Authenticate(ctx, signedIn.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)
	assert.Equal(t, "satoshi", claims.Username)

	_, err = auth.SignIn(ctx, "satoshi@example.com", "wrong-password")
	assertAppError(t, err, models.CodeUnauthorized)
	_, err = auth.SignIn(ctx, "nobody@example.com", "Genesis-Block-2009")
	assertAppError(t, err, models.CodeUnauthorized)
}

func TestAuthService_SignUp_Validation(t *testing.T) {
	h := newHarness(t)
	auth, _ := newAuthService(t, h)
	ctx := context.Background()

	valid := SignUpInput{Email: "a@example.com", Username: "alice", Password: "Correct-Horse-9", ConfirmPassword: "Correct-Horse-9"}
	tests := []struct {
		name   string
		mutate func(*SignUpInput)
	}{
		{"bad email", func(in *SignUpInput) { in.Email = "not-an-email" }},
		{"short username", func(in *SignUpInput) { in.Username = "al" }},
		{"username with dash", func(in *SignUpInput) { in.Username = "al-ice" }},
		{"weak password", func(in *SignUpInput) { in.Password, in.ConfirmPassword = "password", "password" }},
		{"mismatched confirmation", func(in *SignUpInput) { in.ConfirmPassword = "Correct-Horse-8" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, err := auth.SignUp(ctx, in)
			assertValidationError(t, err)
		})
	}
}

func TestAuthService_SignOutRevokesToken(t *testing.T) {
	h := newHarness(t)
	auth, mr := newAuthService(t, h)
	ctx := context.Background()

	res, err := auth.SignUp(ctx, SignUpInput{Email: "a@example.com", Username: "alice", Password: "Correct-Horse-9", ConfirmPassword: "Correct-Horse-9"})
	require.NoError(t, err)
	claims, err := auth.Authenticate(ctx, res.Token)
	require.NoError(t, err)

	require.NoError(t, auth.SignOut(ctx, claims))
	assert.True(t, mr.Exists(blacklistPrefix+claims.JTI))
	ttl := mr.TTL(blacklistPrefix + claims.JTI)
	assert.True(t, ttl > 0 && ttl <= time.Hour, "blacklist entry expires with the token, got %s", ttl)

	_, err = auth.Authenticate(ctx, res.Token)
	assertAppError(t, err, models.CodeUnauthorized)

	assertAppError(t, auth.SignOut(ctx, nil), models.CodeUnauthorized)
}

func TestAuthService_WSTicketIsSingleUse(t *testing.T) {
	h := newHarness(t)
	auth, mr := newAuthService(t, h)
	ctx := context.Background()

	ticket, err := auth.IssueWSTicket(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, WSTicketTTL, mr.TTL(wsTicketPrefix+ticket))

	id, err := auth.ConsumeWSTicket(ctx, ticket)
	require.NoError(t, err)
	assert.Equal(t, uint(7), id)

	_, err = auth.ConsumeWSTicket(ctx, ticket)
	assertAppError(t, err, models.CodeUnauthorized)

	other, err := auth.IssueWSTicket(ctx, 8)
	require.NoError(t, err)
	mr.FastForward(WSTicketTTL + time.Second)
	_, err = auth.ConsumeWSTicket(ctx, other)
	assertAppError(t, err, models.CodeUnauthorized)
}

func TestUsernameFromEmail(t *testing.T) {
	assert.Equal(t, "satoshin12", usernameFromEmail("satoshi.n@example.com", 12))
	assert.Equal(t, "user5", usernameFromEmail("a.b@example.com", 5))
	assert.Equal(t, "abcdefghijklmnopqrst9", usernameFromEmail("abcdefghijklmnopqrstuvwxyz@example.com", 9))
}

type stubMedia struct {
	avatarURL string
	got       []byte
}

func (s *stubMedia) UploadAvatar(_ context.Context, _ uint, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	s.got = b
	return s.avatarURL, err
}

func (s *stubMedia) UploadMedia(context.Context, uint, string, string, io.Reader, int64) (string, error) {
	return "http://media/x.png", nil
}

func TestUserService_Profile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice", models.RoleUser)
	bob := h.user(t, "bob", models.RoleUser)
	cat := h.category(t, "bitcoin")
	_, err := h.threads.CreateThread(ctx, CreateThreadInput{UserID: alice.ID, CategoryID: cat.ID, Title: "public", Content: "x"})
	require.NoError(t, err)
	_, err = h.threads.CreateThread(ctx, CreateThreadInput{UserID: alice.ID, CategoryID: cat.ID, Title: "secret", Content: "x", IsAnonymous: true})
	require.NoError(t, err)
	_, err = h.follows.Toggle(ctx, bob.ID, alice.ID)
	require.NoError(t, err)

	media := &stubMedia{avatarURL: "http://cdn/avatars/1/1.webp"}
	users := NewUserService(h.users, h.threads, h.follows, media, nil)

	profile, err := users.GetProfile(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, profile.User.Email, "email is private")
	assert.Equal(t, 1, profile.User.FollowersCount)
	assert.True(t, profile.IsFollowing)
	require.Len(t, profile.RecentThreads, 1)
	assert.Equal(t, "public", profile.RecentThreads[0].Title)

	own, err := users.GetProfile(ctx, alice.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", own.User.Email)
	assert.False(t, own.IsFollowing)

	taken := "bob"
	_, err = users.UpdateProfile(ctx, UpdateProfileInput{UserID: alice.ID, Username: &taken})
	assertAppError(t, err, models.CodeConflict)

	bad := "no spaces"
	_, err = users.UpdateProfile(ctx, UpdateProfileInput{UserID: alice.ID, Username: &bad})
	assertValidationError(t, err)

	name, bio := "alice_btc", "  stacking  "
	updated, err := users.UpdateProfile(ctx, UpdateProfileInput{UserID: alice.ID, Username: &name, Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "alice_btc", updated.Username)
	assert.Equal(t, "stacking", updated.Bio)

	withAvatar, err := users.UploadAvatar(ctx, alice.ID, bytes.NewReader([]byte("img")))
	require.NoError(t, err)
	assert.Equal(t, media.avatarURL, withAvatar.AvatarURL)
	assert.Equal(t, []byte("img"), media.got)

	noStorage := NewUserService(h.users, h.threads, h.follows, nil, nil)
	_, err = noStorage.UploadAvatar(ctx, alice.ID, bytes.NewReader(nil))
	assertAppError(t, err, models.CodeInternal)
}
