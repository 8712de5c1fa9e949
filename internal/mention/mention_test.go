package mention

import (
	"context"
	"errors"
	"strings"
	"testing"

	"bitboard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUsers struct {
	byName  map[string]models.User
	lookups int
	err     error
}

func (s *stubUsers) GetByID(_ context.Context, id uint) (*models.User, error) {
	for _, u := range s.byName {
		if u.ID == id {
			u := u
			return &u, nil
		}
	}
	return nil, models.NewNotFoundError("User", id)
}

func (s *stubUsers) FindByUsernames(_ context.Context, names []string) ([]models.User, error) {
	s.lookups++
	if s.err != nil {
		return nil, s.err
	}
	var out []models.User
	for _, n := range names {
		if u, ok := s.byName[n]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

type stubStore struct {
	rows []models.Mention
	err  error
}

func (s *stubStore) CreateMention(_ context.Context, m *models.Mention) error {
	if s.err != nil {
		return s.err
	}
	s.rows = append(s.rows, *m)
	return nil
}

type stubPosts map[uint]uint

func (s stubPosts) ThreadIDFor(_ context.Context, postID uint) (uint, error) {
	if id, ok := s[postID]; ok {
		return id, nil
	}
	return 0, models.NewNotFoundError("Post", postID)
}

type stubComments map[uint]uint

func (s stubComments) PostIDFor(_ context.Context, commentID uint) (uint, error) {
	if id, ok := s[commentID]; ok {
		return id, nil
	}
	return 0, models.NewNotFoundError("Comment", commentID)
}

type stubNotifier struct {
	sent []models.CreateNotificationParams
	err  error
}

func (s *stubNotifier) Create(_ context.Context, p models.CreateNotificationParams) (*models.Notification, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.sent = append(s.sent, p)
	return &models.Notification{UserID: p.UserID, Type: p.Type}, nil
}

func uintPtr(v uint) *uint { return &v }

func newFixture() (*Processor, *stubUsers, *stubStore, *stubNotifier) {
	users := &stubUsers{byName: map[string]models.User{
		"alice": {ID: 1, Username: "alice"},
		"bob":   {ID: 2, Username: "bob"},
		"carol": {ID: 3, Username: "carol"},
	}}
	store := &stubStore{}
	notifier := &stubNotifier{}
	p := NewProcessor(users, store, stubPosts{10: 100}, stubComments{50: 10}, notifier)
	return p, users, store, notifier
}

func TestExtract(t *testing.T) {
	assert.Equal(t, []string{"bob", "carol"}, Extract("hi @bob and @carol, @bob again"))
	assert.Nil(t, Extract("no mentions here"))
	assert.Equal(t, []string{"satoshi_n"}, Extract("email me@ no, @satoshi_n!"))
}

func TestHighlight(t *testing.T) {
	href := func(n string) string { return "/u/" + n }
	assert.Equal(t, "ping [@bob](/u/bob) and [@bob](/u/bob)", Highlight("ping @bob and @bob", href))
	assert.Equal(t,
		`&lt;b&gt; <a href="/u/bob" class="mention">@bob</a>`,
		HighlightHTML("<b> @bob", href))
}

func TestProcessResolvesSkipsSelfAndUnknown(t *testing.T) {
	p, users, store, notifier := newFixture()

	ids, err := p.Process(context.Background(), "@bob @alice @ghost @carol", 1, false, uintPtr(10), nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{2, 3}, ids)
	assert.Equal(t, 1, users.lookups, "usernames are resolved in one batch")
	require.Len(t, store.rows, 2)
	require.Len(t, notifier.sent, 2)

	n := notifier.sent[0]
	assert.Equal(t, models.NotificationMention, n.Type)
	assert.Equal(t, "alice mentioned you", n.Title)
	assert.Equal(t, `alice mentioned you: "@bob @alice @ghost @carol"`, n.Message)
	require.NotNil(t, n.ThreadID)
	assert.Equal(t, uint(100), *n.ThreadID)
	assert.Equal(t, uint(1), *n.FromUserID)
}

func TestProcessResolvesThreadThroughComment(t *testing.T) {
	p, _, store, notifier := newFixture()
	_, err := p.Process(context.Background(), "@bob", 1, false, nil, uintPtr(50))
	require.NoError(t, err)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, uint(100), *notifier.sent[0].ThreadID)
	assert.Equal(t, uint(50), *store.rows[0].CommentID)
	assert.Nil(t, store.rows[0].PostID)
}

func TestProcessTruncatesPreviewAndFallsBackToSomeone(t *testing.T) {
	p, _, _, notifier := newFixture()
	content := "@bob " + strings.Repeat("x", 200)
	_, err := p.Process(context.Background(), content, 99, false, uintPtr(10), nil)
	require.NoError(t, err)
	require.Len(t, notifier.sent, 1)
	n := notifier.sent[0]
	assert.Equal(t, "Someone mentioned you", n.Title)
	assert.Equal(t, `Someone mentioned you: "`+content[:100]+`..."`, n.Message)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "hello @bob", Preview("hello @bob"))
	exact := strings.Repeat("₿", 100)
	assert.Equal(t, exact, Preview(exact))
	assert.Equal(t, exact+"...", Preview(exact+"x"))
}

func TestProcessAnonymousHidesAuthor(t *testing.T) {
	p, _, store, notifier := newFixture()
	ids, err := p.Process(context.Background(), "gm @bob", 1, true, uintPtr(10), nil)
	require.NoError(t, err)
	assert.Equal(t, []uint{2}, ids)
	require.Len(t, store.rows, 1)
	require.Len(t, notifier.sent, 1)

	n := notifier.sent[0]
	assert.Equal(t, "Someone mentioned you", n.Title)
	assert.Equal(t, `Someone mentioned you: "gm @bob"`, n.Message)
	assert.Nil(t, n.FromUserID)
	assert.Equal(t, "Someone", n.Data["username"])
	assert.NotContains(t, n.Message, "alice")
}

func TestProcessSwallowsRowAndNotificationFailures(t *testing.T) {
	p, _, store, notifier := newFixture()
	store.err = errors.New("insert failed")
	notifier.err = errors.New("notify failed")

	ids, err := p.Process(context.Background(), "@bob", 1, false, uintPtr(10), nil)
	require.NoError(t, err)
	assert.Equal(t, []uint{2}, ids)
}

func TestProcessWithoutMentionsDoesNothing(t *testing.T) {
	p, users, _, _ := newFixture()
	ids, err := p.Process(context.Background(), "plain text", 1, false, uintPtr(10), nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Zero(t, users.lookups)
}

func TestProcessReturnsLookupErrors(t *testing.T) {
	p, users, _, _ := newFixture()
	users.err = errors.New("db down")
	_, err := p.Process(context.Background(), "@bob", 1, false, uintPtr(10), nil)
	assert.Error(t, err)
}

func TestValidateUsernames(t *testing.T) {
	p, _, _, _ := newFixture()
	got, err := p.ValidateUsernames(context.Background(), "@bob @nobody")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"bob": true, "nobody": false}, got)
}
