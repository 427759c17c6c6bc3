// Package similarity scores how well file and folder names line up with
// the metadata the store has for them. Scores are Levenshtein ratios in
// the range 0..100 over aggressively normalised strings, so punctuation,
// case, and accent differences don't count against a match.
package similarity

import (
	"path/filepath"
	"strings"
	"unicode"

	"github.com/rainycape/unidecode"
	"github.com/sergi/go-diff/diffmatchpatch"

	"go.senan.xyz/nddedup/fileutil"
)

var dmp = diffmatchpatch.New()

// Ratio returns a 0..100 similarity score between a and b. Two empty
// strings score 100.
func Ratio(a, b string) float64 {
	a, b = norm(a), norm(b)
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 100
	}

	diffs := dmp.DiffMain(a, b, false)
	dist := dmp.DiffLevenshtein(diffs)
	return 100 - (float64(dist) * 100 / float64(longest))
}

// TrackTitle scores a track's file name against its title, trying the
// bare title and the usual "artist - title" and "artist - album - title"
// naming schemes, keeping the best.
func TrackTitle(path, title, artist, album string) float64 {
	stem := fileutil.Stem(path)
	return maxRatio(stem,
		title,
		join(artist, title),
		join(artist, album, title),
	)
}

// AlbumFolder scores a track's folder name against its album, trying the
// bare album name and "artist - album".
func AlbumFolder(dir, album, artist string) float64 {
	base := filepath.Base(dir)
	return maxRatio(base,
		album,
		join(artist, album),
	)
}

func maxRatio(s string, candidates ...string) float64 {
	var best float64
	for _, c := range candidates {
		if r := Ratio(s, c); r > best {
			best = r
		}
	}
	return best
}

func join(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " - ")
}

func norm(input string) string {
	input = unidecode.Unidecode(input)
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) {
			return unicode.ToLower(r)
		}
		if unicode.IsNumber(r) {
			return r
		}
		return -1
	}, input)
}
