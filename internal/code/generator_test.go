package code

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateShape(t *testing.T) {
	for i := 0; i < 200; i++ {
		c, err := Generate()
		require.NoError(t, err)
		require.Len(t, c, Length)
		for _, r := range c {
			assert.True(t, r >= '0' && r <= '9', "code %q contains non-digit", c)
		}
	}
}

func TestGenerateVaries(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		c, err := Generate()
		require.NoError(t, err)
		seen[c] = true
	}
	// 100 draws from a million-value space colliding down to a handful would
	// mean a broken randomness source.
	assert.Greater(t, len(seen), 90)
}
