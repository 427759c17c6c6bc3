package fileutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.senan.xyz/nddedup/fileutil"
)

func TestEqualWithNumericSuffix(t *testing.T) {
	assert.False(t, fileutil.EqualWithNumericSuffix("some_file.mp3", "some_file.mp3"))
	assert.True(t, fileutil.EqualWithNumericSuffix("some_file.mp3", "some_file1.mp3"))
	assert.True(t, fileutil.EqualWithNumericSuffix("some_file.mp3", "some_file01.mp3"))
	assert.True(t, fileutil.EqualWithNumericSuffix("some_file.mp3", "some_file 12.mp3"))
	assert.True(t, fileutil.EqualWithNumericSuffix("some_file.mp3", "some_file 3.mp3"))
	assert.False(t, fileutil.EqualWithNumericSuffix("/a/song.mp3", "/b/song (1).mp3")) // parens aren't digits
	assert.False(t, fileutil.EqualWithNumericSuffix("some_file.mp3", "other_file1.mp3"))
	assert.False(t, fileutil.EqualWithNumericSuffix("some_file.mp3", "some_file copy.mp3"))
}

func TestFolderKindOf(t *testing.T) {
	const root = "/music/library"
	assert.Equal(t, fileutil.KindRoot, fileutil.FolderKindOf(root, "/music/library"))
	assert.Equal(t, fileutil.KindArtist, fileutil.FolderKindOf(root, "/music/library/Artist"))
	assert.Equal(t, fileutil.KindAlbum, fileutil.FolderKindOf(root, "/music/library/Artist/Album"))
	assert.Equal(t, fileutil.KindAlbum, fileutil.FolderKindOf(root, "/music/library/Artist/Album/Disc 1"))
	assert.Equal(t, fileutil.KindRoot, fileutil.FolderKindOf(root, "/elsewhere/Artist"))
}

func TestNormPath(t *testing.T) {
	decomposed := "/music/Béla Fleck"
	precomposed := "/music/Béla Fleck"
	assert.NotEqual(t, decomposed, precomposed)
	assert.Equal(t, fileutil.NormPath(precomposed), fileutil.NormPath(decomposed))
}

func TestMoveByExt(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()

	touch := func(parts ...string) string {
		path := filepath.Join(append([]string{src}, parts...)...)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), os.ModePerm))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		return path
	}

	touch("Artist", "Album", "01 song.wma")
	touch("Artist", "Album", "02 song.mp3")
	touch("other.WMA")

	moved, err := fileutil.MoveByExt(src, dst, []string{"wma"}, true)
	require.NoError(t, err)
	assert.Equal(t, 2, moved)

	// dry run moved nothing
	_, err = os.Stat(filepath.Join(src, "Artist", "Album", "01 song.wma"))
	require.NoError(t, err)

	moved, err = fileutil.MoveByExt(src, dst, []string{"wma"}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, moved)

	_, err = os.Stat(filepath.Join(dst, "Artist", "Album", "01 song.wma"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dst, "other.WMA"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(src, "Artist", "Album", "02 song.mp3"))
	require.NoError(t, err)
}
