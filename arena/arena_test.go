package arena

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArenaRangesAreDisjoint(t *testing.T) {
	a, err := New[int32](context.Background(), nil, 10)
	require.NoError(t, err)
	defer a.Release()

	left := a.Range(0, 5)
	right := a.Range(5, 10)

	for i := range left {
		left[i] = 1
	}
	for i := range right {
		right[i] = 2
	}

	assert.Equal(t, []int32{1, 1, 1, 1, 1}, left)
	assert.Equal(t, []int32{2, 2, 2, 2, 2}, right)
}

func TestArenaRangeClipsCapacity(t *testing.T) {
	a, err := New[int32](context.Background(), nil, 10)
	require.NoError(t, err)
	defer a.Release()

	s := a.Range(0, 5)
	assert.Equal(t, 5, cap(s), "appending past a range must not spill into a neighbor's slice")
}

func TestBudgetEnforced(t *testing.T) {
	budget := NewBudget(64)

	// 8 int64s = 64 bytes, exactly the budget.
	a, err := New[int64](context.Background(), budget, 8)
	require.NoError(t, err)
	assert.Equal(t, int64(64), budget.Held())

	// The next allocation exceeds the limit outright.
	_, err = New[int64](context.Background(), budget, 9)
	require.Error(t, err)

	a.Release()
	assert.Equal(t, int64(0), budget.Held())

	b, err := New[int64](context.Background(), budget, 8)
	require.NoError(t, err)
	b.Release()
}

func TestNilBudgetUnlimited(t *testing.T) {
	a, err := New[float32](context.Background(), nil, 1<<16)
	require.NoError(t, err)
	assert.Equal(t, 1<<16, a.Len())
	a.Release()
}
