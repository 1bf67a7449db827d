package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, 0, r.Len())

	s := r.Create("", nil, nil)
	require.NotEmpty(t, s.ID)
	assert.False(t, s.CreatedAt.IsZero())
	assert.Equal(t, 1, r.Len())

	got, ok := r.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)

	_, ok = r.Get("no-such-session")
	assert.False(t, ok)

	assert.True(t, r.Delete(s.ID))
	assert.False(t, r.Delete(s.ID))
	assert.Equal(t, 0, r.Len())
}

func TestRegistryIssuesUniqueIDs(t *testing.T) {
	r := NewRegistry()
	a := r.Create("", nil, nil)
	b := r.Create("", nil, nil)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestRegistryIsSafeForConcurrentUse(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := r.Create("", nil, nil)
			if _, ok := r.Get(s.ID); !ok {
				t.Error("created session not found")
			}
			r.Delete(s.ID)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, r.Len())
}
