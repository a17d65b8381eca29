package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/routemonitor/pkg/core"
)

func pt(i int) core.Position3D {
	return core.Position3D{X: float64(i), Y: float64(-i), Z: 10000}
}

func TestTrace_AppendInOrder(t *testing.T) {
	tr := NewTrace(5, OverflowReset)

	for i := 0; i < 3; i++ {
		assert.Equal(t, 0, tr.Append(pt(i)))
	}

	assert.Equal(t, []core.Position3D{pt(0), pt(1), pt(2)}, tr.Snapshot())
	last, ok := tr.Last()
	require.True(t, ok)
	assert.Equal(t, pt(2), last)
}

func TestTrace_ResetOnOverflow(t *testing.T) {
	tr := NewTrace(3, OverflowReset)
	for i := 0; i < 3; i++ {
		tr.Append(pt(i))
	}

	discarded := tr.Append(pt(3))

	assert.Equal(t, 3, discarded)
	assert.Equal(t, []core.Position3D{pt(3)}, tr.Snapshot())
}

func TestTrace_SlideOnOverflow(t *testing.T) {
	tr := NewTrace(3, OverflowSlide)
	for i := 0; i < 7; i++ {
		tr.Append(pt(i))
	}

	assert.Equal(t, 3, tr.Len())
	assert.Equal(t, []core.Position3D{pt(4), pt(5), pt(6)}, tr.Snapshot())
	last, _ := tr.Last()
	assert.Equal(t, pt(6), last)
}

func TestTrace_NeverExceedsCapacity(t *testing.T) {
	for _, policy := range []OverflowPolicy{OverflowReset, OverflowSlide} {
		t.Run(string(policy), func(t *testing.T) {
			tr := NewTrace(7, policy)
			for i := 0; i < 100; i++ {
				tr.Append(pt(i))
				require.LessOrEqual(t, tr.Len(), tr.Capacity())
				require.Len(t, tr.Snapshot(), tr.Len())
			}
		})
	}
}

func TestTrace_SnapshotIsCopy(t *testing.T) {
	tr := NewTrace(3, OverflowReset)
	tr.Append(pt(1))

	snap := tr.Snapshot()
	snap[0] = pt(99)

	assert.Equal(t, []core.Position3D{pt(1)}, tr.Snapshot())
}
