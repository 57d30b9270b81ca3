package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrevious_NeverNegative(t *testing.T) {
	t.Parallel()
	for offset := 0; offset <= 60; offset++ {
		for size := 1; size <= 25; size++ {
			require.GreaterOrEqual(t, Previous(offset, size), 0)
		}
	}
	require.Equal(t, 0, Previous(3, 10))
	require.Equal(t, 0, Previous(-5, 10))
}

func TestNextPrevious_RoundTrip(t *testing.T) {
	t.Parallel()
	for offset := 0; offset <= 100; offset++ {
		for size := 1; size <= 20; size++ {
			if offset < size {
				continue
			}
			require.Equal(t, offset, Previous(Next(offset, size), size), "offset %d size %d", offset, size)
		}
	}
}

func TestNext_Unbounded(t *testing.T) {
	t.Parallel()
	require.Equal(t, 1_000_010, Next(1_000_000, 10))
	require.Equal(t, 10, Next(0, 0))
}

func TestRawVariants_Defaults(t *testing.T) {
	t.Parallel()
	require.Equal(t, 10, NextRaw("", ""))
	require.Equal(t, 10, NextRaw("x", "y"))
	require.Equal(t, 25, NextRaw("20", "5"))
	require.Equal(t, 0, PreviousRaw("", ""))
	require.Equal(t, 15, PreviousRaw("20", "5"))
	require.Equal(t, 0, PreviousRaw("4", "junk"))
}
