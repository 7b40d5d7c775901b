package resource

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResource(t *testing.T, p, content string) *Resource {
	t.Helper()
	r, err := NewString(p, content)
	require.NoError(t, err)
	return r
}

func TestSetBufferRoundTrip(t *testing.T) {
	r := newTestResource(t, "/a.js", "old")

	r.SetBuffer([]byte("new content"))
	b, err := r.Buffer()
	require.NoError(t, err)
	assert.Equal(t, []byte("new content"), b)

	// Repeated materialisation keeps working.
	s, err := r.Text()
	require.NoError(t, err)
	assert.Equal(t, "new content", s)
}

func TestStreamIsConsumeOnce(t *testing.T) {
	r := newTestResource(t, "/a.js", "abc")

	rc, err := r.Stream()
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))

	_, err = r.Stream()
	var cse *ContentStateError
	require.ErrorAs(t, err, &cse)
	assert.ErrorIs(t, err, ErrContentDrained)
	assert.Equal(t, "/a.js", cse.Path)

	// Buffer access after a raw stream read fails too.
	_, err = r.Buffer()
	assert.ErrorIs(t, err, ErrContentDrained)

	// Setting content clears the drained state.
	r.SetText("xyz")
	rc, err = r.Stream()
	require.NoError(t, err)
	data, _ = io.ReadAll(rc)
	assert.Equal(t, "xyz", string(data))
}

func TestStreamContentMaterialisesOnce(t *testing.T) {
	r, err := New(Options{Path: "/s.txt", Stream: strings.NewReader("streamed")})
	require.NoError(t, err)

	b, err := r.Buffer()
	require.NoError(t, err)
	assert.Equal(t, "streamed", string(b))

	// The stream was cached as buffer, so a second read works.
	s, err := r.Text()
	require.NoError(t, err)
	assert.Equal(t, "streamed", s)
}

func TestStreamFuncIsLazy(t *testing.T) {
	calls := 0
	r, err := New(Options{Path: "/lazy.txt", StreamFunc: func() (io.ReadCloser, error) {
		calls++
		return io.NopCloser(strings.NewReader("lazy")), nil
	}})
	require.NoError(t, err)
	assert.Equal(t, 0, calls)

	size, err := r.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(4), size)
	assert.Equal(t, 1, calls)

	_, err = r.Buffer()
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestBufferedSizeNeverReads(t *testing.T) {
	calls := 0
	r, err := New(Options{Path: "/lazy.txt", StreamFunc: func() (io.ReadCloser, error) {
		calls++
		return io.NopCloser(strings.NewReader("lazy")), nil
	}})
	require.NoError(t, err)

	_, ok := r.BufferedSize()
	assert.False(t, ok)
	assert.Equal(t, 0, calls)

	_, err = r.Buffer()
	require.NoError(t, err)
	n, ok := r.BufferedSize()
	assert.True(t, ok)
	assert.Equal(t, int64(4), n)
}

func TestStreamFuncErrorPropagates(t *testing.T) {
	boom := errors.New("disk on fire")
	r, err := New(Options{Path: "/x", StreamFunc: func() (io.ReadCloser, error) { return nil, boom }})
	require.NoError(t, err)

	_, err = r.Buffer()
	assert.ErrorIs(t, err, boom)
}

func TestConflictingContentRejected(t *testing.T) {
	s := "text"
	_, err := New(Options{Path: "/a", Buffer: []byte("b"), Text: &s})

	var cse *ContentStateError
	require.ErrorAs(t, err, &cse)
	assert.ErrorIs(t, err, ErrConflictingContent)
}

func TestSizeWithoutContent(t *testing.T) {
	r, err := New(Options{Path: "/empty"})
	require.NoError(t, err)

	size, err := r.Size()
	require.NoError(t, err)
	assert.Zero(t, size)

	_, err = r.Buffer()
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestCloneIsIndependent(t *testing.T) {
	orig := newTestResource(t, "/a.js", "original")
	orig.PushCollection("src")

	clone, err := orig.Clone()
	require.NoError(t, err)
	assert.Empty(t, clone.Collections())
	assert.Equal(t, "/a.js", clone.Path())

	clone.SetText("changed clone")
	s, _ := orig.Text()
	assert.Equal(t, "original", s)

	orig.SetText("changed original")
	s, _ = clone.Text()
	assert.Equal(t, "changed clone", s)
}

func TestCloneOfStreamKeepsOriginalReadable(t *testing.T) {
	orig, err := New(Options{Path: "/s", Stream: strings.NewReader("data")})
	require.NoError(t, err)

	clone, err := orig.Clone()
	require.NoError(t, err)

	a, err := orig.Text()
	require.NoError(t, err)
	b, err := clone.Text()
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCloneBufferIsCopied(t *testing.T) {
	buf := []byte("abc")
	orig, err := New(Options{Path: "/b", Buffer: buf})
	require.NoError(t, err)

	clone, err := orig.Clone()
	require.NoError(t, err)
	cb, _ := clone.Buffer()
	buf[0] = 'X'
	assert.Equal(t, "abc", string(cb))
}

func TestSetPathIsPureRename(t *testing.T) {
	r := newTestResource(t, "/a.js", "content")

	require.NoError(t, r.SetPath("/b.js"))
	assert.Equal(t, "/b.js", r.Path())
	assert.Equal(t, "b.js", r.Name())
	s, _ := r.Text()
	assert.Equal(t, "content", s)

	assert.ErrorIs(t, r.SetPath("relative.js"), ErrInvalidPath)
	assert.ErrorIs(t, r.SetPath(`/win\path.js`), ErrInvalidPath)
	assert.ErrorIs(t, r.SetPath("/a//b.js"), ErrInvalidPath)
	assert.Equal(t, "/b.js", r.Path())
}

func TestStatInfoNotRefreshed(t *testing.T) {
	r := newTestResource(t, "/a.txt", "four")
	assert.Equal(t, int64(4), r.StatInfo().Size())

	r.SetText("much longer content")
	assert.Equal(t, int64(4), r.StatInfo().Size())
	assert.False(t, r.IsDir())
}

func TestPathTree(t *testing.T) {
	r := newTestResource(t, "/a.js", "x")
	r.PushCollection("adapter")
	r.PushCollection("source")
	r.PushCollection("workspace")

	assert.Equal(t, PathTree{
		"/a.js": {
			"workspace": {
				"source": {
					"adapter": {},
				},
			},
		},
	}, r.PathTree())
}

func TestDrainLeavesResourceEmpty(t *testing.T) {
	r := newTestResource(t, "/a.js", "payload")

	rc, err := r.DrainStream()
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "payload", string(data))

	assert.False(t, r.HasContent())
	_, err = r.Buffer()
	assert.ErrorIs(t, err, ErrNoContent)

	r.SetText("again")
	b, err := r.DrainBuffer()
	require.NoError(t, err)
	assert.Equal(t, "again", string(b))
	assert.False(t, r.HasContent())
}

func TestSharedAliasesBuffer(t *testing.T) {
	buf := []byte("abc")
	orig, err := New(Options{Path: "/b", Buffer: buf})
	require.NoError(t, err)

	shared, err := orig.Shared()
	require.NoError(t, err)
	sb, _ := shared.Buffer()
	assert.Same(t, &buf[0], &sb[0])
}

func TestWriteOptionsValidate(t *testing.T) {
	assert.NoError(t, WriteOptions{}.Validate())
	assert.NoError(t, WriteOptions{ReadOnly: true}.Validate())
	assert.NoError(t, WriteOptions{Drain: true}.Validate())

	var ioe *InvalidOptionsError
	assert.ErrorAs(t, WriteOptions{ReadOnly: true, Drain: true}.Validate(), &ioe)
}
