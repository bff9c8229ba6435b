package zipfs

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/nguyengg/zipfs/zar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildZip creates an archive in memory; names ending in "/" become directory entries, and names in
// stored are written with method Store instead of Deflate.
func buildZip(t *testing.T, members map[string]string, stored ...string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for name, content := range members {
		method := zip.Deflate
		for _, s := range stored {
			if s == name {
				method = zip.Store
			}
		}

		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: method})
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}

	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func newTestFS(t *testing.T, members map[string]string, optFns ...func(*Options)) *FS {
	t.Helper()

	fsys, err := New(buildZip(t, members), optFns...)
	require.NoError(t, err)
	return fsys
}

func TestLocate(t *testing.T) {
	fsys := newTestFS(t, map[string]string{
		"docs/guide.md":       "# guide",
		"docs/api/index.html": "<html>",
		"readme":              "hello",
		"empty/":              "",
	})

	tests := []struct {
		path string
		kind Kind
	}{
		{path: "", kind: Dir},
		{path: "/", kind: Dir},
		{path: "readme", kind: File},
		{path: "docs/guide.md", kind: File},
		{path: "docs", kind: Dir},      // implied by descendants
		{path: "docs/", kind: Dir},     // same, with trailing slash
		{path: "docs/api", kind: Dir},  // implied, two levels deep
		{path: "empty", kind: Dir},     // explicit directory record
		{path: "empty/", kind: Dir},
		{path: "nope", kind: None},
		{path: "docs/guide.md.bak", kind: None},
		{path: "read", kind: None}, // prefix of a file is not a directory
	}

	for _, tt := range tests {
		kind, _ := fsys.Locate(tt.path)
		assert.Equalf(t, tt.kind, kind, "Locate(%q)", tt.path)
	}
}

func TestLocateRootIndex(t *testing.T) {
	fsys := newTestFS(t, map[string]string{"a": "1"})

	kind, i := fsys.Locate("")
	assert.Equal(t, Dir, kind)
	assert.Equal(t, -1, i)
}

func TestLocateFindsExactIndex(t *testing.T) {
	fsys := newTestFS(t, map[string]string{"a": "1", "b": "2", "c": "3"})

	for _, name := range []string{"a", "b", "c"} {
		kind, i := fsys.Locate(name)
		require.Equal(t, File, kind)

		st, err := fsys.Stat(i)
		require.NoError(t, err)
		assert.Equal(t, name, st.Path)
	}
}

func TestStatLocateRoundTrip(t *testing.T) {
	// For every entry, locating its stat path must return the same index.
	fsys := newTestFS(t, map[string]string{
		"a/b/c.txt": "1",
		"a/b/d.txt": "2",
		"a/e":       "3",
		"f/":        "",
		"g":         "4",
	})

	for i := range fsys.Len() {
		st, err := fsys.Stat(i)
		require.NoError(t, err)

		kind, j := fsys.Locate(st.Path)
		if st.Dir {
			assert.Equalf(t, Dir, kind, "Locate(%q)", st.Path)
		} else {
			assert.Equalf(t, File, kind, "Locate(%q)", st.Path)
		}
		assert.Equalf(t, i, j, "Locate(%q)", st.Path)
	}
}

func TestRead(t *testing.T) {
	fsys, err := New(buildZip(t, map[string]string{
		"stored.txt":   "Hi!",
		"deflated.txt": strings.Repeat("Lorem ", 2000),
	}, "stored.txt"))
	require.NoError(t, err)

	kind, i := fsys.Locate("stored.txt")
	require.Equal(t, File, kind)
	data, err := fsys.Read(i)
	require.NoError(t, err)
	assert.Equal(t, "Hi!", string(data))

	kind, i = fsys.Locate("deflated.txt")
	require.Equal(t, File, kind)
	data, err = fsys.Read(i)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("Lorem ", 2000), string(data))
	assert.Len(t, data, 12000)
}

func TestReadCached(t *testing.T) {
	fsys := newTestFS(t, map[string]string{"f": strings.Repeat("x", 4096)})

	_, i := fsys.Locate("f")
	first, err := fsys.Read(i)
	require.NoError(t, err)

	// The second read must come from the cache: same backing array.
	second, err := fsys.Read(i)
	require.NoError(t, err)
	assert.Same(t, &first[0], &second[0])
}

func TestReadAfterClearCache(t *testing.T) {
	fsys := newTestFS(t, map[string]string{"f": strings.Repeat("y", 4096)})

	_, i := fsys.Locate("f")
	before, err := fsys.Read(i)
	require.NoError(t, err)

	fsys.ClearCache()

	after, err := fsys.Read(i)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestReadEvictionRereads(t *testing.T) {
	members := map[string]string{}
	for _, n := range []string{"a", "b", "c", "d"} {
		members[n] = "content " + n
	}

	// Capacity 2 forces evictions while cycling through all four members twice; contents must be
	// stable throughout.
	fsys, err := New(buildZip(t, members), func(opts *Options) { opts.CacheSize = 2 })
	require.NoError(t, err)

	want := map[int][]byte{}
	for i := range fsys.Len() {
		data, err := fsys.Read(i)
		require.NoError(t, err)
		want[i] = append([]byte(nil), data...)
	}

	for i := range fsys.Len() {
		data, err := fsys.Read(i)
		require.NoError(t, err)
		assert.Equal(t, want[i], data)
	}
}

func TestReadDirectoryIsEmpty(t *testing.T) {
	fsys := newTestFS(t, map[string]string{"d/": "", "d/f": "x"})

	kind, i := fsys.Locate("d")
	require.Equal(t, Dir, kind)

	data, err := fsys.Read(i)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestReadPath(t *testing.T) {
	fsys := newTestFS(t, map[string]string{"a/b": "deep"})

	data, err := fsys.ReadPath("a/b")
	require.NoError(t, err)
	assert.Equal(t, "deep", string(data))

	_, err = fsys.ReadPath("missing")
	assert.ErrorIs(t, err, zar.ErrNotFound)
}

func collect(fsys *FS, dir string) []DirEntry {
	var entries []DirEntry
	fsys.Each(dir, func(de DirEntry) bool {
		entries = append(entries, de)
		return true
	})
	return entries
}

func names(entries []DirEntry) []string {
	out := make([]string, len(entries))
	for i, de := range entries {
		out[i] = de.Name
	}
	return out
}

func TestEachRoot(t *testing.T) {
	fsys := newTestFS(t, map[string]string{
		"docs/guide.md":       "1",
		"docs/api/index.html": "2",
		"readme":              "3",
	})

	entries := collect(fsys, "")
	assert.Equal(t, []string{"docs/", "readme"}, names(entries))

	require.Len(t, entries, 2)
	assert.True(t, entries[0].Dir)
	assert.Equal(t, -1, entries[0].Index, "docs/ has no record; it is synthesized")
	assert.True(t, entries[0].ModTime.IsZero())
	assert.False(t, entries[1].Dir)
}

func TestEachSubdirs(t *testing.T) {
	fsys := newTestFS(t, map[string]string{
		"docs/guide.md":       "1",
		"docs/api/index.html": "2",
		"readme":              "3",
	})

	assert.Equal(t, []string{"api/", "guide.md"}, names(collect(fsys, "docs/")))
	assert.Equal(t, []string{"index.html"}, names(collect(fsys, "docs/api/")))

	// A missing trailing slash is tolerated.
	assert.Equal(t, []string{"api/", "guide.md"}, names(collect(fsys, "docs")))
}

func TestEachDeepSynthesis(t *testing.T) {
	fsys := newTestFS(t, map[string]string{"a/b/c.txt": "x"})

	assert.Equal(t, []string{"a/"}, names(collect(fsys, "")))
	assert.Equal(t, []string{"b/"}, names(collect(fsys, "a/")))
	assert.Equal(t, []string{"c.txt"}, names(collect(fsys, "a/b/")))
}

func TestEachCollapsesSiblingDescendants(t *testing.T) {
	fsys := newTestFS(t, map[string]string{
		"pkg/one/a":   "1",
		"pkg/one/b":   "2",
		"pkg/one/c/d": "3",
		"pkg/two/e":   "4",
	})

	// "one/" is emitted once despite three descendants.
	assert.Equal(t, []string{"one/", "two/"}, names(collect(fsys, "pkg/")))
}

func TestEachExplicitDirNotDuplicated(t *testing.T) {
	// "sub/" has its own record and deeper descendants; it must be emitted exactly once.
	fsys := newTestFS(t, map[string]string{
		"sub/":    "",
		"sub/a":   "1",
		"sub/b/c": "2",
	})

	entries := collect(fsys, "")
	assert.Equal(t, []string{"sub/"}, names(entries))
	require.Len(t, entries, 1)
	assert.GreaterOrEqual(t, entries[0].Index, 0, "sub/ has a real record")
}

func TestEachExcludesSelf(t *testing.T) {
	fsys := newTestFS(t, map[string]string{"d/": "", "d/f": "x"})

	assert.Equal(t, []string{"f"}, names(collect(fsys, "d/")))
}

func TestEachEmptyArchive(t *testing.T) {
	fsys := newTestFS(t, nil)
	assert.Empty(t, collect(fsys, ""))
	assert.Equal(t, 0, fsys.Len())
}

func TestEachStopsEarly(t *testing.T) {
	fsys := newTestFS(t, map[string]string{"a": "1", "b": "2", "c": "3"})

	var visited int
	fsys.Each("", func(DirEntry) bool {
		visited++
		return visited < 2
	})
	assert.Equal(t, 2, visited)
}

func TestEachChildNamesWellFormed(t *testing.T) {
	// Invariant: no emitted name contains "/" except a single trailing one for directories.
	fsys := newTestFS(t, map[string]string{
		"x/y/z/deep.txt": "1",
		"x/top.txt":      "2",
		"root.txt":       "3",
	})

	var check func(dir string)
	check = func(dir string) {
		for _, de := range collect(fsys, dir) {
			if de.Dir {
				assert.Truef(t, strings.HasSuffix(de.Name, "/"), "dir child %q", de.Name)
				assert.NotContainsf(t, de.Name[:len(de.Name)-1], "/", "dir child %q", de.Name)
				check(dir + de.Name)
			} else {
				assert.NotContainsf(t, de.Name, "/", "file child %q", de.Name)
			}
		}
	}
	check("")
}

func TestEachVisitsEveryEntryTransitively(t *testing.T) {
	members := map[string]string{
		"a/b/c.txt": "1",
		"a/b/d.txt": "2",
		"a/e":       "3",
		"f":         "4",
		"g/h/i/j":   "5",
	}
	fsys := newTestFS(t, members)

	found := map[string]bool{}
	var walk func(dir string)
	walk = func(dir string) {
		for _, de := range collect(fsys, dir) {
			if de.Dir {
				walk(dir + de.Name)
			} else {
				found[dir+de.Name] = true
			}
		}
	}
	walk("")

	assert.Len(t, found, len(members))
	for name := range members {
		assert.Truef(t, found[name], "member %q never enumerated", name)
	}
}

func TestChildrenIterator(t *testing.T) {
	fsys := newTestFS(t, map[string]string{"a": "1", "b": "2"})

	var got []string
	for de := range fsys.Children("") {
		got = append(got, de.Name)
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestConcurrentReads(t *testing.T) {
	members := map[string]string{}
	for _, n := range []string{"p", "q", "r", "s"} {
		members[n] = strings.Repeat(n, 2048)
	}

	fsys, err := New(buildZip(t, members), func(opts *Options) { opts.CacheSize = 2 })
	require.NoError(t, err)

	done := make(chan error, 16)
	for g := range 16 {
		go func(g int) {
			for k := range 50 {
				i := (g + k) % fsys.Len()
				data, err := fsys.Read(i)
				if err != nil {
					done <- err
					return
				}
				if len(data) != 2048 {
					done <- assert.AnError
					return
				}
			}
			done <- nil
		}(g)
	}

	for range 16 {
		assert.NoError(t, <-done)
	}
}
