package glob

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchUnion(t *testing.T) {
	s := MustCompile("/a/*.js", "/b/**/*.css")

	assert.True(t, s.Match("/a/x.js"))
	assert.True(t, s.Match("/b/c/d/y.css"))
	assert.True(t, s.Match("/b/y.css"))
	assert.False(t, s.Match("/a/sub/x.js"))
	assert.False(t, s.Match("/c/x.js"))
}

func TestMatchNegation(t *testing.T) {
	s := MustCompile("/**/*.js", "!/test/**")

	assert.True(t, s.Match("/src/app.js"))
	assert.False(t, s.Match("/test/app.js"))
	assert.False(t, s.Match("/test/deep/app.js"))
}

func TestNegationOnlySubtractsEarlierMatches(t *testing.T) {
	s := MustCompile("!/a.js", "/*.js")

	// The negation precedes the positive term, so it has nothing to remove.
	assert.True(t, s.Match("/a.js"))
}

func TestBraceExpansion(t *testing.T) {
	s := MustCompile("**/*.{html,htm}")

	assert.True(t, s.Match("/index.html"))
	assert.True(t, s.Match("/pages/legacy.htm"))
	assert.False(t, s.Match("/index.js"))
}

func TestRelativePatternAnchored(t *testing.T) {
	s := MustCompile("pony/*")

	assert.True(t, s.Match("/pony/x"))
	assert.False(t, s.Match("/other/pony/x"))
}

func TestMatchIsCaseSensitive(t *testing.T) {
	s := MustCompile("/A.js")

	assert.True(t, s.Match("/A.js"))
	assert.False(t, s.Match("/a.js"))
}

func TestCompileRejectsBadPattern(t *testing.T) {
	_, err := Compile([]string{"/a/[b"})
	require.Error(t, err)
}

func TestBases(t *testing.T) {
	s := MustCompile("/resources/**/*.js", "/resources/lib/*.css", "/test/x.js", "!/resources/skip/**")
	assert.ElementsMatch(t, []string{"/resources", "/test"}, s.Bases())

	s = MustCompile("/a/b/*.js", "/**/*.css")
	assert.Equal(t, []string{"/"}, s.Bases())
}

func TestWithin(t *testing.T) {
	assert.True(t, Within("/a/b", "/a"))
	assert.True(t, Within("/a", "/a"))
	assert.True(t, Within("/a", "/"))
	assert.False(t, Within("/ab", "/a"))
}

func TestExclude(t *testing.T) {
	e, err := NewExclude([]string{"**/*.map", "/vendor/**", "!/vendor/keep.js"})
	require.NoError(t, err)

	assert.True(t, e.Excluded("/app.js.map"))
	assert.True(t, e.Excluded("/deep/x.map"))
	assert.True(t, e.Excluded("/vendor/lib.js"))
	assert.False(t, e.Excluded("/vendor/keep.js"))
	assert.False(t, e.Excluded("/app.js"))

	var zero Exclude
	assert.False(t, zero.Excluded("/anything"))
}
