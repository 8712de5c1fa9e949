package featureflags

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnabled_BooleanValues(t *testing.T) {
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0")

	for _, name := range []string{"a", "c", "e"} {
		assert.True(t, m.Enabled(name, 1), name)
	}
	for _, name := range []string{"b", "d", "f", "missing"} {
		assert.False(t, m.Enabled(name, 1), name)
	}
}

func TestEnabled_Percentages(t *testing.T) {
	m := NewManager("always=100%,never=0%,canary=25%")

	assert.True(t, m.Enabled("always", 1))
	assert.True(t, m.Enabled("always", 0))
	assert.False(t, m.Enabled("never", 1))
	assert.False(t, m.Enabled("canary", 0), "anonymous users are outside partial rollouts")

	first := m.Enabled("canary", 42)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, m.Enabled("canary", 42))
	}

	enabled := 0
	for id := uint(1); id <= 1000; id++ {
		if m.Enabled("canary", id) {
			enabled++
		}
	}
	assert.InDelta(t, 250, enabled, 80)
}

func TestNewManager_SkipsMalformedPairs(t *testing.T) {
	m := NewManager(" bad ,x=on, Y = 20% ,z=off,w=maybe,=on,v=ten%")

	assert.Equal(t, map[string]string{"x": "on", "y": "20%", "z": "off"}, m.Raw())
	assert.Equal(t, []string{"x", "y", "z"}, m.Names())
	assert.Len(t, m.Snapshot(123), 3)
}

func TestSet(t *testing.T) {
	m := NewManager(Meili + "=off")
	require.False(t, m.Enabled(Meili, 7))

	require.NoError(t, m.Set(" MEILI ", "on"))
	assert.True(t, m.Enabled(Meili, 7))

	assert.Error(t, m.Set(Meili, "sometimes"))
	assert.True(t, m.Enabled(Meili, 7), "a rejected value leaves the flag untouched")

	require.NoError(t, m.Set(Meili, ""))
	assert.NotContains(t, m.Raw(), Meili)
	assert.Error(t, m.Set("  ", "on"))
}

func TestNilManager(t *testing.T) {
	var m *Manager
	assert.False(t, m.Enabled(Meili, 1))
	assert.Empty(t, m.Snapshot(1))
}

func TestConcurrentAccess(t *testing.T) {
	m := NewManager("stable=on")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = m.Set("flaky", []string{"on", "off"}[i%2])
		}(i)
		go func() {
			defer wg.Done()
			_ = m.Snapshot(1)
		}()
	}
	wg.Wait()
	assert.True(t, m.Enabled("stable", 1))
}
