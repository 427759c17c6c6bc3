package nddedup

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"go.senan.xyz/nddedup/fileutil"
	"go.senan.xyz/nddedup/navidrome"
	"go.senan.xyz/nddedup/similarity"
)

// ResolveKeeper reduces a duplicate group to one keeper. Every other
// member is marked deletable with a reason naming the criterion that
// decided against it. The keeper's folder and album are marked as
// having a keeper, which biases later groups toward them.
//
// The reduction is a champion fold over the group from the back:
// exactly len(group)-1 pairwise comparisons.
func (p *Processor) ResolveKeeper(group []*navidrome.Track) *navidrome.Track {
	if len(group) == 0 {
		return nil
	}

	champion := group[len(group)-1]
	for i := len(group) - 2; i >= 0; i-- {
		challenger := group[i]

		winner, reason := p.compare(champion, challenger)
		loser := challenger
		if winner == challenger {
			loser = champion
		}

		loser.IsDeletable = true
		loser.DeleteReason = reason
		p.Stats.Deletable++
		slog.Debug("marked deletable", "path", loser.Path, "reason", reason)

		champion = winner
	}

	if champion.Folder != nil {
		champion.Folder.HasKeepable = true
	}
	if champion.Album != nil {
		champion.Album.HasKeepable = true
	}
	p.Stats.Keepable++
	return champion
}

// compare ranks two tracks of the same logical recording. Criteria are
// evaluated in order and the first one that tells the two apart wins;
// when nothing does, that wins by fiat and the tie is recorded as an
// anomaly.
func (p *Processor) compare(this, that *navidrome.Track) (*navidrome.Track, string) {
	p.checkSplitAlbum(this, that)

	for _, c := range criteria {
		if winner := c.pick(p, this, that); winner != nil {
			return winner, fmt.Sprintf("%s, kept %s", c.name, winner.Path)
		}
	}

	slog.Warn("no condition matched", "kept", that.Path, "dropped", this.Path)
	p.anomaly(AnomalyUndecided, "no condition matched", map[string]string{
		"kept": that.Path, "dropped": this.Path,
	})
	return that, fmt.Sprintf("no condition matched, kept %s", that.Path)
}

// checkSplitAlbum flags tracks of one album living in different
// folders: inconsistent input, worth a look, but comparison proceeds.
func (p *Processor) checkSplitAlbum(this, that *navidrome.Track) {
	if this.AlbumID == "" || this.AlbumID != that.AlbumID {
		return
	}
	if this.Folder == nil || that.Folder == nil || this.Folder == that.Folder {
		return
	}
	p.anomaly(AnomalySplitAlbum, "album split across folders", map[string]string{
		"album": this.AlbumName, "folder_a": this.Folder.SourcePath, "folder_b": that.Folder.SourcePath,
	})
}

type criterion struct {
	name string
	pick func(p *Processor, this, that *navidrome.Track) *navidrome.Track
}

// The order here is the whole algorithm. Earlier criteria assess where
// a file lives, later ones what the file is.
var criteria = []criterion{
	{"in genuine album folder", func(_ *Processor, this, that *navidrome.Track) *navidrome.Track {
		return prefer(this, that, inAlbumFolder(this), inAlbumFolder(that))
	}},
	{"in clean folder", func(_ *Processor, this, that *navidrome.Track) *navidrome.Track {
		return prefer(this, that, !dirtyFolder(this), !dirtyFolder(that))
	}},
	{"more complete folder", func(_ *Processor, this, that *navidrome.Track) *navidrome.Track {
		// a dirty folder's completeness numbers aren't trusted
		if dirtyFolder(this) || dirtyFolder(that) {
			return nil
		}
		if this.Folder == nil || that.Folder == nil {
			return nil
		}
		l, r := this.Folder.MissingTracks, that.Folder.MissingTracks
		if l == nil || r == nil || *l == *r {
			return nil
		}
		if *l < *r {
			return this
		}
		return that
	}},
	{"album already has a keeper", func(_ *Processor, this, that *navidrome.Track) *navidrome.Track {
		l := hasKeeper(this) && !dirtyFolder(this)
		r := hasKeeper(that) && !dirtyFolder(that)
		return prefer(this, that, l, r)
	}},
	{"no numeric filename suffix", func(_ *Processor, this, that *navidrome.Track) *navidrome.Track {
		if fileutil.EqualWithNumericSuffix(this.Path, that.Path) {
			return this
		}
		if fileutil.EqualWithNumericSuffix(that.Path, this.Path) {
			return that
		}
		return nil
	}},
	{"preferred file extension", func(p *Processor, this, that *navidrome.Track) *navidrome.Track {
		return prefer(this, that, p.cfg.preferredExt(this.Path), p.cfg.preferredExt(that.Path))
	}},
	{"has MusicBrainz recording ID", func(_ *Processor, this, that *navidrome.Track) *navidrome.Track {
		return prefer(this, that, this.MBZRecordingID != "", that.MBZRecordingID != "")
	}},
	{"has artist record", func(_ *Processor, this, that *navidrome.Track) *navidrome.Track {
		return prefer(this, that, this.Artist != nil, that.Artist != nil)
	}},
	{"has album MusicBrainz ID", func(_ *Processor, this, that *navidrome.Track) *navidrome.Track {
		return prefer(this, that, albumMBID(this) != "", albumMBID(that) != "")
	}},
	{"has track number", func(_ *Processor, this, that *navidrome.Track) *navidrome.Track {
		return prefer(this, that, this.TrackNumber > 0, that.TrackNumber > 0)
	}},
	{"higher bitrate", func(_ *Processor, this, that *navidrome.Track) *navidrome.Track {
		switch {
		case this.Bitrate > that.Bitrate:
			return this
		case that.Bitrate > this.Bitrate:
			return that
		}
		return nil
	}},
	{"has release year", func(_ *Processor, this, that *navidrome.Track) *navidrome.Track {
		return prefer(this, that, this.Year > 0, that.Year > 0)
	}},
	{"file name matches title closer", func(_ *Processor, this, that *navidrome.Track) *navidrome.Track {
		l := similarity.TrackTitle(this.Path, this.Title, this.ArtistName, this.AlbumName)
		r := similarity.TrackTitle(that.Path, that.Title, that.ArtistName, that.AlbumName)
		return preferScore(this, that, l, r)
	}},
	{"folder name matches album closer", func(_ *Processor, this, that *navidrome.Track) *navidrome.Track {
		l := similarity.AlbumFolder(filepath.Dir(this.SourcePath), this.AlbumName, this.ArtistName)
		r := similarity.AlbumFolder(filepath.Dir(that.SourcePath), that.AlbumName, that.ArtistName)
		return preferScore(this, that, l, r)
	}},
}

func prefer(this, that *navidrome.Track, l, r bool) *navidrome.Track {
	switch {
	case l && !r:
		return this
	case r && !l:
		return that
	}
	return nil
}

func preferScore(this, that *navidrome.Track, l, r float64) *navidrome.Track {
	switch {
	case l > r:
		return this
	case r > l:
		return that
	}
	return nil
}

func inAlbumFolder(tr *navidrome.Track) bool {
	return tr.Folder != nil && tr.Folder.Kind == fileutil.KindAlbum && !tr.Folder.IsDirty
}

func dirtyFolder(tr *navidrome.Track) bool {
	return tr.Folder != nil && tr.Folder.IsDirty
}

func hasKeeper(tr *navidrome.Track) bool {
	if tr.Folder != nil && tr.Folder.HasKeepable {
		return true
	}
	return tr.Album != nil && tr.Album.HasKeepable
}

func albumMBID(tr *navidrome.Track) string {
	if tr.Album == nil {
		return ""
	}
	return tr.Album.MBZAlbumID
}
