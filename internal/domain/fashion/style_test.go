package fashion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVocabularyIsClosedAndComplete(t *testing.T) {
	styles := Styles()
	require.Len(t, styles, 16)
	seen := map[Style]bool{}
	for _, s := range styles {
		assert.True(t, s.Valid(), "style %q", s)
		assert.NotEmpty(t, s.Description())
		assert.False(t, seen[s], "duplicate %q", s)
		seen[s] = true
	}
	assert.True(t, DefaultStyle.Valid())
	assert.Len(t, Categories(), 5)
}

func TestParseStyleAliases(t *testing.T) {
	cases := map[string]Style{
		"韓系":           StyleKorean,
		"Korean":       StyleKorean,
		"Korean-style": StyleKorean,
		" '休閒' ":       StyleCasual,
		"運動":           StyleSport,
	}
	for in, want := range cases {
		got, ok := ParseStyle(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseStyle("cyberpunk")
	assert.False(t, ok)
	assert.False(t, Style("korean").Valid(), "aliases are not stored values")
}

func TestStyleSetOperations(t *testing.T) {
	a := NewStyleSet(StyleKorean, StyleCasual, StyleKorean)
	require.Len(t, a, 2)

	b := StyleSet{StyleCasual, StyleKorean}
	assert.True(t, a.Equal(b))
	assert.Equal(t, 2, a.Overlap(b))

	c := StyleSet{StyleCasual, StyleStreet}
	assert.False(t, a.Equal(c))
	assert.Equal(t, 1, a.Overlap(c))
	assert.False(t, a.Equal(StyleSet{StyleKorean}))
}

func TestNormalizeCategory(t *testing.T) {
	assert.Equal(t, CategoryTop, NormalizeCategory("top"))
	assert.Equal(t, CategoryBottom, NormalizeCategory("下身"))
	assert.Equal(t, CategoryOther, NormalizeCategory("襪子"))
	assert.Equal(t, CategoryOther, NormalizeCategory(""))
}
