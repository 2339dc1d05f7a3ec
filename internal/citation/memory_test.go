package citation

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matsen/citenet/internal/reference"
)

func newTestMemory() *Memory {
	return NewMemoryFromWorks(
		[]reference.Work{
			{DOI: "10.1/A", Title: "A"},
			{DOI: "10.1/b", Title: "B", Authors: []reference.Author{{First: "Ada", Last: "Lovelace"}}},
		},
		map[string][]string{
			"10.1/a": {"10.1/c", "10.1/b", "10.1/B", "10.1/a"},
			"10.1/d": {"https://doi.org/10.1/a"},
		},
	)
}

func TestMemory_Forward(t *testing.T) {
	m := newTestMemory()
	ctx := context.Background()

	got, err := m.Forward(ctx, "doi:10.1/A")
	require.NoError(t, err)
	assert.Equal(t, []string{"10.1/b", "10.1/c"}, got)

	// Known through the relation only, no metadata.
	got, err = m.Forward(ctx, "10.1/c")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemory_Reverse(t *testing.T) {
	m := newTestMemory()

	got, err := m.Reverse(context.Background(), "10.1/a")
	require.NoError(t, err)
	assert.Equal(t, []string{"10.1/d"}, got)
}

func TestMemory_NotFound(t *testing.T) {
	m := newTestMemory()
	ctx := context.Background()

	_, err := m.Forward(ctx, "10.9/missing")
	assert.True(t, IsNotFound(err))

	_, err = m.Reverse(ctx, "10.9/missing")
	assert.True(t, IsNotFound(err))

	_, err = m.Metadata(ctx, "10.1/c")
	assert.True(t, IsNotFound(err), "relation-only works have no metadata")
}

func TestMemory_MetadataReturnsCopy(t *testing.T) {
	m := newTestMemory()
	ctx := context.Background()

	w, err := m.Metadata(ctx, "10.1/B")
	require.NoError(t, err)
	w.Title = "changed"
	w.Authors[0].Last = "changed"

	again, err := m.Metadata(ctx, "10.1/b")
	require.NoError(t, err)
	assert.Equal(t, "B", again.Title)
	assert.Equal(t, "Lovelace", again.Authors[0].Last)
}

func TestMemory_CanceledContext(t *testing.T) {
	m := newTestMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Forward(ctx, "10.1/a")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemory_ConcurrentReads(t *testing.T) {
	m := newTestMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Forward(ctx, "10.1/a")
			_, _ = m.Reverse(ctx, "10.1/a")
			_, _ = m.Metadata(ctx, "10.1/b")
		}()
	}
	wg.Wait()
	assert.Equal(t, 2, m.Len())
}
