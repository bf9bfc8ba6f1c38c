package region

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllOrderedAndComplete(t *testing.T) {
	list := All()
	require.Len(t, list, 47+3)
	assert.Equal(t, "2", list[0].Code)
	assert.Equal(t, "56", list[len(list)-1].Code)

	seen := map[string]bool{}
	for _, r := range list {
		assert.False(t, seen[r.Code], "duplicate code %s", r.Code)
		seen[r.Code] = true
	}
}

func TestName(t *testing.T) {
	name, ok := Name("21")
	require.True(t, ok)
	assert.Equal(t, "東京", name)

	_, ok = Name("99")
	assert.False(t, ok)
}

func TestPickIsDeterministicForSeed(t *testing.T) {
	a := Pick(rand.New(rand.NewPCG(1, 2)))
	b := Pick(rand.New(rand.NewPCG(1, 2)))
	assert.Equal(t, a, b)

	name, ok := Name(a.Code)
	require.True(t, ok)
	assert.Equal(t, name, a.Name)
}

func TestPickGlobalSource(t *testing.T) {
	r := Pick(nil)
	_, ok := Name(r.Code)
	assert.True(t, ok)
}
