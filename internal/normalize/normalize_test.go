package normalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelationAcceptsEveryWireShape(t *testing.T) {
	tests := []struct {
		name string
		json string
		want *UserRef
	}{
		{"object", `{"users":{"id":1,"username":"satoshi"}}`, &UserRef{ID: 1, Username: "satoshi"}},
		{"array", `{"users":[{"id":2,"username":"hal"},{"id":3,"username":"nick"}]}`, &UserRef{ID: 2, Username: "hal"}},
		{"empty array", `{"users":[]}`, nil},
		{"null", `{"users":null}`, nil},
		{"absent", `{}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var row RawPost
			require.NoError(t, json.Unmarshal([]byte(tt.json), &row))
			assert.Equal(t, tt.want, NormalizePost(row).Author)
		})
	}
}

func TestRelationTreatsScalarsAsAbsent(t *testing.T) {
	for _, users := range []string{`5`, `"bob"`, `true`} {
		t.Run(users, func(t *testing.T) {
			var row RawPost
			raw := `{"id":7,"content":"still here","users":` + users + `}`
			require.NoError(t, json.Unmarshal([]byte(raw), &row))
			p := NormalizePost(row)
			assert.Nil(t, p.Author)
			assert.Equal(t, uint(7), p.ID)
			assert.Equal(t, "still here", p.Content)
			assert.Equal(t, UnknownUsername, Username(p.Author))
		})
	}
}

func TestUsernameFallsBackToUnknown(t *testing.T) {
	assert.Equal(t, "Unknown", Username(nil))
	assert.Equal(t, "Unknown", Username(&UserRef{ID: 1}))
	assert.Equal(t, "adam", Username(&UserRef{Username: "adam"}))
}

func TestSingle(t *testing.T) {
	assert.Nil(t, Single[int](nil))
	got := Single([]int{4, 5})
	require.NotNil(t, got)
	assert.Equal(t, 4, *got)
}

func TestNormalizeThreadRecursesIntoPostsAndComments(t *testing.T) {
	raw := `{
		"id": 1, "title": "Halving", "user_id": 9,
		"users": [{"id": 9, "username": "miner"}],
		"categories": {"id": 3, "name": "Mining", "slug": "mining"},
		"posts": [
			{"id": 10, "thread_id": 1, "content": "first", "users": {"id": 9, "username": "miner"},
			 "comments": [
				{"id": 100, "post_id": 10, "content": "nice", "users": []},
				{"id": 101, "post_id": 10, "content": "agreed", "users": [{"id": 4, "username": "pleb"}]}
			 ]},
			{"id": 11, "thread_id": 1, "content": "anon", "users": null}
		]
	}`
	var rt RawThread
	require.NoError(t, json.Unmarshal([]byte(raw), &rt))
	th := NormalizeThread(rt)

	assert.Equal(t, "miner", Username(th.Author))
	require.NotNil(t, th.Category)
	assert.Equal(t, "mining", th.Category.Slug)
	require.Len(t, th.Posts, 2)
	require.Len(t, th.Posts[0].Comments, 2)
	assert.Nil(t, th.Posts[0].Comments[0].Author)
	assert.Equal(t, "pleb", Username(th.Posts[0].Comments[1].Author))
	assert.Equal(t, "Unknown", Username(th.Posts[1].Author))
	assert.NotNil(t, th.Posts[1].Comments)
}

func TestRelationMarshalsCanonicalObject(t *testing.T) {
	b, err := json.Marshal(Relation[UserRef]{Value: &UserRef{ID: 1, Username: "a"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"username":"a"}`, string(b))

	b, err = json.Marshal(Relation[UserRef]{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))
}
