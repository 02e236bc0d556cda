package util

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash32_Deterministic(t *testing.T) {
	t.Parallel()

	keys := [][]byte{
		nil,
		{},
		[]byte("a"),
		[]byte("hello, world"),
		[]byte{0, 0, 0, 0},
		[]byte("0123456789abcdef0123456789abcdef"),
	}
	for _, k := range keys {
		first := Hash32(k)
		for i := 0; i < 3; i++ {
			assert.Equal(t, first, Hash32(k), "key %q must hash stably", k)
		}
	}

	// nil and empty are the same key.
	assert.Equal(t, Hash32(nil), Hash32([]byte{}))
}

func TestHash32_LengthSeeding(t *testing.T) {
	t.Parallel()

	// Zero-padded variants share byte prefixes but differ in length;
	// the length seed must keep them apart.
	base := []byte("ab")
	padded := append(append([]byte{}, base...), 0)
	assert.NotEqual(t, Hash32(base), Hash32(padded))

	longPad := append(append([]byte{}, base...), 0, 0, 0, 0)
	assert.NotEqual(t, Hash32(base), Hash32(longPad))
}

func TestHash32_Spread(t *testing.T) {
	t.Parallel()

	const n = 4096
	seen := make(map[uint32]struct{}, n)
	lowBits := make(map[uint32]int, 16)
	for i := 0; i < n; i++ {
		h := Hash32([]byte(fmt.Sprintf("k:%d", i)))
		seen[h] = struct{}{}
		lowBits[h&15]++
	}

	// Collisions among a few thousand short keys should be rare.
	require.Greater(t, len(seen), n-8, "too many 32-bit collisions")

	// Low bits drive shard selection and probe starts; every residue
	// class must be populated and none should dominate.
	require.Len(t, lowBits, 16)
	for b, count := range lowBits {
		assert.Greater(t, count, n/32, "low bits %d underpopulated", b)
	}
}
