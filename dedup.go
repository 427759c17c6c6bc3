// Package nddedup deduplicates a Navidrome music library. Duplicate
// groups flagged by beets are enriched with records from the Navidrome
// database, their play state is merged to a consensus, and one keeper
// per group is chosen by an ordered chain of criteria, everything else
// being marked deletable with a reason. Nothing is ever deleted here:
// the output is a review file for a human operator.
package nddedup

import (
	"context"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"go.senan.xyz/nddedup/beets"
	"go.senan.xyz/nddedup/fileutil"
	"go.senan.xyz/nddedup/navidrome"
)

type Config struct {
	// SourceBase is the library root the beets export paths are
	// relative to, TargetBase the root Navidrome sees. Folder kinds
	// are inferred against SourceBase.
	SourceBase string
	TargetBase string

	// LibraryRoot overrides the root that folder kinds are inferred
	// against when it differs from SourceBase.
	LibraryRoot string

	// PreferredExts are file extensions worth keeping over others,
	// lowercase, without the dot.
	PreferredExts []string

	// DryRun keeps annotation writes out of the store.
	DryRun bool
}

func (c Config) preferredExt(path string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return slices.Contains(c.PreferredExts, ext)
}

// CompletenessChecker is the part of the beets client the processor
// needs, split out so tests can stub it.
type CompletenessChecker interface {
	AlbumInfos(ctx context.Context, dir string) ([]beets.AlbumInfo, error)
}

// Stats accumulates over a run and survives in the state file between
// phases.
type Stats struct {
	DuplicateGroups int `json:"duplicate_groups"`
	DuplicateFiles  int `json:"duplicate_files"`
	ResolvedMedia   int `json:"resolved_media"`
	Annotations     int `json:"annotations"`
	Keepable        int `json:"keepable"`
	Deletable       int `json:"deletable"`
}

// Processor holds one batch run: the enriched duplicate groups, the
// per-run folder and album state, and everything found wrong along the
// way. It is not safe for concurrent use; groups are processed strictly
// in order since keeper resolution reads folder state written by
// earlier groups.
type Processor struct {
	cfg   Config
	db    *navidrome.DB
	beets CompletenessChecker

	// Groups is keyed by the opaque beets duplicate key, iterated in
	// sorted key order for deterministic output.
	Groups    map[string][]*navidrome.Track
	Stats     Stats
	Anomalies []Anomaly

	folders map[string]*navidrome.Folder
}

func NewProcessor(cfg Config, db *navidrome.DB, bc CompletenessChecker) *Processor {
	return &Processor{
		cfg:     cfg,
		db:      db,
		beets:   bc,
		Groups:  map[string][]*navidrome.Track{},
		folders: map[string]*navidrome.Folder{},
	}
}

// HasAnomalies reports whether anything non-fatal went wrong so far.
// Later phases want operator confirmation when this is true.
func (p *Processor) HasAnomalies() bool {
	return len(p.Anomalies) > 0
}

// GroupKeys returns the duplicate keys in processing order.
func (p *Processor) GroupKeys() []string {
	keys := make([]string, 0, len(p.Groups))
	for k := range p.Groups {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// folderFor returns the shared Folder for the directory of a track's
// source path, creating it on first sight. Creation infers the folder
// kind from its depth under the library root and, when a beets client
// is available, asks it for track completeness. A folder holding a
// track with no artist or album name is marked dirty, as is one mixing
// several albums.
func (p *Processor) folderFor(ctx context.Context, tr *navidrome.Track) *navidrome.Folder {
	dir := filepath.Dir(tr.SourcePath)

	f, ok := p.folders[dir]
	if !ok {
		f = &navidrome.Folder{
			SourcePath: dir,
			Kind:       fileutil.FolderKindOf(p.libraryRoot(), dir),
		}
		p.checkCompleteness(ctx, f)
		p.folders[dir] = f
	}

	if tr.ArtistName == "" || tr.AlbumName == "" {
		f.IsDirty = true
	}
	return f
}

func (p *Processor) checkCompleteness(ctx context.Context, f *navidrome.Folder) {
	if p.beets == nil {
		return
	}

	infos, err := p.beets.AlbumInfos(ctx, f.SourcePath)
	if err != nil {
		slog.WarnContext(ctx, "completeness check failed", "dir", f.SourcePath, "err", err)
		return
	}
	switch len(infos) {
	case 0:
	case 1:
		total, missing := infos[0].Total, infos[0].Missing
		f.TotalTracks, f.MissingTracks = &total, &missing
	default:
		// several albums mixed in one directory, a dump
		f.IsDirty = true
	}
}

func (p *Processor) libraryRoot() string {
	switch {
	case p.cfg.LibraryRoot != "":
		return p.cfg.LibraryRoot
	case p.cfg.SourceBase != "":
		return p.cfg.SourceBase
	}
	return p.cfg.TargetBase
}
