package nddedup

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"go.senan.xyz/nddedup/beets"
	"go.senan.xyz/nddedup/fileutil"
	"go.senan.xyz/nddedup/navidrome"
)

// Load enriches a beets duplicate export with Navidrome records. Paths
// from the export are normalised and remapped from the source base to
// the base Navidrome indexes, then looked up in one batch per group.
// Paths Navidrome doesn't know become anomalies, not errors, and their
// group carries on without them.
func (p *Processor) Load(ctx context.Context, dups beets.Duplicates) error {
	start := time.Now()

	// each phase owns its counters, so a re-run starts them over
	p.Stats.DuplicateGroups, p.Stats.DuplicateFiles, p.Stats.ResolvedMedia = 0, 0, 0

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	keys := make([]string, 0, len(dups))
	for k := range dups {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		paths := dups[key]
		p.Stats.DuplicateGroups++
		p.Stats.DuplicateFiles += len(paths)

		group, err := p.loadGroup(ctx, tx, paths)
		if err != nil {
			return fmt.Errorf("group %q: %w", key, err)
		}
		if len(group) == 0 {
			p.anomaly(AnomalyEmptyGroup, "no media resolved for group", map[string]string{"key": key})
		}
		p.Groups[key] = group
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "loaded duplicates",
		"groups", p.Stats.DuplicateGroups, "files", p.Stats.DuplicateFiles,
		"resolved", p.Stats.ResolvedMedia, "anomalies", len(p.Anomalies),
		"took", time.Since(start).Truncate(time.Millisecond))
	return nil
}

func (p *Processor) loadGroup(ctx context.Context, tx *navidrome.Tx, paths []string) ([]*navidrome.Track, error) {
	sourceByCanonical := make(map[string]string, len(paths))
	canonical := make([]string, 0, len(paths))
	for _, src := range paths {
		src = fileutil.NormPath(src)
		c := p.canonicalPath(src)
		sourceByCanonical[c] = src
		canonical = append(canonical, c)
	}

	byPath, err := tx.TracksByPaths(ctx, canonical)
	if err != nil {
		return nil, err
	}

	var group []*navidrome.Track
	for _, c := range canonical {
		tr, ok := byPath[c]
		if !ok {
			p.anomaly(AnomalyNotFound, "media file not in navidrome", map[string]string{"path": c})
			continue
		}
		tr.SourcePath = sourceByCanonical[c]

		if err := tx.ResolveTrack(ctx, tr); err != nil {
			return nil, err
		}
		tr.Folder = p.folderFor(ctx, tr)
		p.Stats.ResolvedMedia++

		group = append(group, tr)
	}
	return group, nil
}

// canonicalPath maps an export path onto the library base Navidrome
// indexes. Only the leading base is rewritten.
func (p *Processor) canonicalPath(src string) string {
	if p.cfg.SourceBase == "" || p.cfg.SourceBase == p.cfg.TargetBase {
		return src
	}
	return strings.Replace(src, p.cfg.SourceBase, p.cfg.TargetBase, 1)
}

// Merge synchronises the play state inside every group and writes the
// consensus back to the store, one annotation row per member. Running
// it twice is harmless since the consensus of merged members is itself.
func (p *Processor) Merge(ctx context.Context) error {
	start := time.Now()
	p.Stats.Annotations = 0

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, key := range p.GroupKeys() {
		group := p.Groups[key]
		if len(group) < 2 {
			continue
		}

		MergeAnnotations(group)
		for _, tr := range group {
			if err := tx.StoreAnnotation(ctx, tr.Annotation); err != nil {
				return err
			}
			p.Stats.Annotations++
		}
	}

	if p.cfg.DryRun {
		slog.InfoContext(ctx, "dry run, rolling back annotation writes")
		return tx.Rollback()
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "merged annotations",
		"annotations", p.Stats.Annotations,
		"took", time.Since(start).Truncate(time.Millisecond))
	return nil
}

// Evaluate picks a keeper for every group. Strictly sequential: keeper
// choices feed folder and album state that biases the groups after
// them.
func (p *Processor) Evaluate(ctx context.Context) error {
	start := time.Now()
	p.Stats.Keepable, p.Stats.Deletable = 0, 0

	for _, key := range p.GroupKeys() {
		group := p.Groups[key]
		if len(group) == 0 {
			slog.DebugContext(ctx, "skipping empty group", "key", key)
			continue
		}
		keeper := p.ResolveKeeper(group)
		slog.DebugContext(ctx, "resolved keeper", "key", key, "keeper", keeper.Path)
	}

	slog.InfoContext(ctx, "evaluated keepers",
		"keepable", p.Stats.Keepable, "deletable", p.Stats.Deletable,
		"took", time.Since(start).Truncate(time.Millisecond))
	return nil
}
