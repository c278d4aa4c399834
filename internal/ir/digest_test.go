package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateDigest_Deterministic(t *testing.T) {
	a := IRObject{"bucket": IRString("site"), "files": IRInt(2)}
	b := IRObject{"files": IRInt(2), "bucket": IRString("site")}

	da, err := StateDigest(a)
	require.NoError(t, err)
	db, err := StateDigest(b)
	require.NoError(t, err)

	assert.Equal(t, da, db, "key order must not matter")
	assert.Len(t, da, 64, "SHA-256 hex is 64 characters")
}

func TestStateDigest_ChangesWithState(t *testing.T) {
	d1, err := StateDigest(IRObject{"files": IRInt(2)})
	require.NoError(t, err)
	d2, err := StateDigest(IRObject{"files": IRInt(3)})
	require.NoError(t, err)
	assert.NotEqual(t, d1, d2)

	empty, err := StateDigest(nil)
	require.NoError(t, err)
	alsoEmpty, err := StateDigest(IRObject{})
	require.NoError(t, err)
	assert.Equal(t, empty, alsoEmpty)
}

func TestDigest_DomainSeparation(t *testing.T) {
	v := IRObject{"src": IRString("./site")}

	state, err := Digest(DomainState, v)
	require.NoError(t, err)
	other, err := Digest("components/other/v1", v)
	require.NoError(t, err)
	assert.NotEqual(t, state, other)
}

func TestDigest_RejectsUnencodable(t *testing.T) {
	_, err := StateDigest(IRObject{"bad": IRFloat(math.NaN())})
	assert.Error(t, err)
}

func TestShortDigest(t *testing.T) {
	assert.Equal(t, "0123456789ab", ShortDigest("0123456789abcdef"))
	assert.Equal(t, "abc", ShortDigest("abc"))
}
