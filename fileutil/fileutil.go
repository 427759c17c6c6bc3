package fileutil

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormPath returns path in Unicode NFC form so that decomposed and
// precomposed spellings of the same name ("á" vs "á") compare equal.
func NormPath(path string) string {
	return norm.NFC.String(path)
}

// Stem returns the base name of path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// EqualWithNumericSuffix reports whether suffixed names the same file as
// plain except for a trailing numeric suffix before the extension, eg.
// "song.mp3" / "song1.mp3", or "song.mp3" / "song 3.mp3".
func EqualWithNumericSuffix(plain, suffixed string) bool {
	rest, ok := strings.CutPrefix(Stem(suffixed), Stem(plain))
	if !ok {
		return false
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

type FolderKind int

const (
	KindRoot FolderKind = iota
	KindArtist
	KindAlbum
)

func (k FolderKind) String() string {
	switch k {
	case KindArtist:
		return "artist"
	case KindAlbum:
		return "album"
	}
	return "root"
}

// FolderKindOf infers what a directory holds from its depth relative to
// the library root: the root itself, an artist folder directly below it,
// or an album folder anywhere deeper. Directories outside the root count
// as root-level since nothing is known about their layout.
func FolderKindOf(root, dir string) FolderKind {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(dir))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return KindRoot
	}
	if strings.Count(rel, string(filepath.Separator)) == 0 {
		return KindArtist
	}
	return KindAlbum
}

// MoveByExt moves all files below src matching one of the given
// extensions into dst, recreating the source directory layout. Used to
// sweep formats the media server can't index out of the library.
func MoveByExt(src, dst string, exts []string, dryRun bool) (int, error) {
	var moved int
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !extMatch(path, exts) {
			return nil
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return fmt.Errorf("rel %q: %w", path, err)
		}
		dest := filepath.Join(dst, rel)

		moved++
		if dryRun {
			slog.Info("would move file", "src", path, "dest", dest)
			return nil
		}
		if err := os.MkdirAll(filepath.Dir(dest), os.ModePerm); err != nil {
			return fmt.Errorf("create dest dir: %w", err)
		}
		if err := os.Rename(path, dest); err != nil {
			return fmt.Errorf("move %q: %w", path, err)
		}
		slog.Info("moved file", "src", path, "dest", dest)
		return nil
	})
	return moved, err
}

func extMatch(path string, exts []string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range exts {
		if ext == strings.ToLower(strings.TrimPrefix(e, ".")) {
			return true
		}
	}
	return false
}
