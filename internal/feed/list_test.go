package feed

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	ID     uint   `json:"id"`
	Title  string `json:"title"`
	Locked bool   `json:"is_locked"`
	Author string `json:"author,omitempty"`
}

func rowID(r row) uint { return r.ID }

func ids(rows []row) []uint {
	out := make([]uint, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out
}

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestApplyInsertRespectsMode(t *testing.T) {
	threads := NewList(Prepend, rowID)
	threads.Replace([]row{{ID: 1}, {ID: 2}})
	threads.ApplyInsert(row{ID: 3})
	assert.Equal(t, []uint{3, 1, 2}, ids(threads.Items()))

	posts := NewList(Append, rowID)
	posts.Replace([]row{{ID: 1}, {ID: 2}})
	posts.ApplyInsert(row{ID: 3})
	assert.Equal(t, []uint{1, 2, 3}, ids(posts.Items()))
}

func TestApplyInsertOfPresentIDMergesInPlace(t *testing.T) {
	l := NewList(Prepend, rowID)
	l.Replace([]row{{ID: 1}, {ID: 2}})
	l.InsertLocal(row{ID: 9, Title: "pending"})
	require.Equal(t, 3, l.Len())

	l.ApplyInsert(row{ID: 9, Title: "confirmed"})
	items := l.Items()
	assert.Len(t, items, 3)
	assert.Equal(t, []uint{9, 1, 2}, ids(items))
	assert.Equal(t, "confirmed", items[0].Title)
}

func TestApplyUpdateShallowMerges(t *testing.T) {
	l := NewList(Prepend, rowID)
	l.Replace([]row{{ID: 1, Title: "old", Author: "alice"}})

	ok, err := l.ApplyUpdate(json.RawMessage(`{"id":1,"title":"new","is_locked":true}`))
	require.NoError(t, err)
	assert.True(t, ok)
	got := l.Items()[0]
	assert.Equal(t, "new", got.Title)
	assert.True(t, got.Locked)
	assert.Equal(t, "alice", got.Author, "fields missing from the patch survive")
}

func TestApplyUpdateAndDeleteOfAbsentIDAreNoOps(t *testing.T) {
	l := NewList(Append, rowID)
	l.Replace([]row{{ID: 1, Title: "a"}})

	ok, err := l.ApplyUpdate(json.RawMessage(`{"id":7,"title":"x"}`))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, l.ApplyDelete(7))
	assert.Equal(t, []row{{ID: 1, Title: "a"}}, l.Items())
}

func TestApplyDispatchesChanges(t *testing.T) {
	l := NewList(Prepend, rowID)
	require.NoError(t, l.Apply(Change{Type: Insert, New: raw(t, row{ID: 1, Title: "a"})}))
	require.NoError(t, l.Apply(Change{Type: Insert, New: raw(t, row{ID: 2, Title: "b"})}))
	require.NoError(t, l.Apply(Change{Type: Insert, New: raw(t, row{ID: 2, Title: "b"})}))
	require.NoError(t, l.Apply(Change{Type: Update, New: json.RawMessage(`{"id":1,"title":"a2"}`)}))
	require.NoError(t, l.Apply(Change{Type: Delete, Old: json.RawMessage(`{"id":2}`)}))

	assert.Equal(t, []row{{ID: 1, Title: "a2"}}, l.Items())
	assert.Error(t, l.Apply(Change{Type: "TRUNCATE"}))
	assert.Error(t, l.Apply(Change{Type: Insert, New: json.RawMessage(`[`)}))
}

func TestWithDecoder(t *testing.T) {
	l := NewList(Append, rowID, WithDecoder[row, uint](func(b json.RawMessage) (row, error) {
		var r row
		err := json.Unmarshal(b, &r)
		r.Author = "decoded"
		return r, err
	}))
	require.NoError(t, l.Apply(Change{Type: Insert, New: json.RawMessage(`{"id":4}`)}))
	assert.Equal(t, "decoded", l.Items()[0].Author)
}

func TestExtendUpdatesRowsAlreadyPushed(t *testing.T) {
	l := NewList(Prepend, rowID)
	l.Replace([]row{{ID: 5}, {ID: 4}})
	l.Extend([]row{{ID: 4, Title: "fresh"}, {ID: 3}})
	assert.Equal(t, []uint{5, 4, 3}, ids(l.Items()))
	assert.Equal(t, "fresh", l.Items()[1].Title)
}

func TestConcurrentChanges(t *testing.T) {
	l := NewList(Prepend, rowID)
	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			l.ApplyInsert(row{ID: id, Title: fmt.Sprint(id)})
			l.ApplyInsert(row{ID: id, Title: fmt.Sprint(id)})
			_ = l.Items()
		}(uint(i))
	}
	wg.Wait()
	assert.Equal(t, 50, l.Len())
}
