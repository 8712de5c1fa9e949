package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilter(t *testing.T) {
	tests := []struct {
		in      string
		want    *Filter
		wantErr bool
	}{
		{"", nil, false},
		{"thread_id=eq.42", &Filter{Column: "thread_id", Value: "42"}, false},
		{"  post_id=eq.7 ", &Filter{Column: "post_id", Value: "7"}, false},
		{"thread_id=42", nil, true},
		{"=eq.42", nil, true},
		{"thread_id=eq.", nil, true},
		{"Thread-Id=eq.1", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFilter(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChannel(t *testing.T) {
	assert.Equal(t, "realtime:threads", Channel("threads", nil))
	assert.Equal(t, "realtime:posts:thread_id=eq.5", Channel("posts", &Filter{Column: "thread_id", Value: "5"}))
}

func TestEventChannelsFanOutOnFilterColumns(t *testing.T) {
	evt, err := NewEvent(EventInsert, "posts", map[string]any{"id": 9, "thread_id": 5, "user_id": 3, "content": "gm"}, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"realtime:posts",
		"realtime:posts:thread_id=eq.5",
		"realtime:posts:user_id=eq.3",
	}, evt.Channels())

	del, err := NewEvent(EventDelete, "comments", nil, map[string]any{"id": 1, "post_id": 8})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"realtime:comments", "realtime:comments:post_id=eq.8"}, del.Channels())

	bare := Event{Type: EventUpdate, Table: "threads"}
	assert.Equal(t, []string{"realtime:threads"}, bare.Channels())
}

func TestEventMsgpackRoundTripKeepsRows(t *testing.T) {
	evt, err := NewEvent(EventUpdate, "threads", map[string]any{"id": 1, "title": "new"}, map[string]any{"id": 1, "title": "old"})
	require.NoError(t, err)

	b, err := evt.Encode()
	require.NoError(t, err)
	got, err := DecodeEvent(b)
	require.NoError(t, err)

	assert.Equal(t, evt.Type, got.Type)
	assert.Equal(t, evt.Table, got.Table)
	assert.JSONEq(t, string(evt.New), string(got.New))
	assert.JSONEq(t, string(evt.Old), string(got.Old))
	assert.True(t, evt.CommitTimestamp.Equal(got.CommitTimestamp))

	_, err = DecodeEvent([]byte("not msgpack"))
	assert.Error(t, err)
}
