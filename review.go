package nddedup

import (
	"fmt"
	"path/filepath"
	"slices"

	"go.senan.xyz/natcmp"
	"gopkg.in/yaml.v2"

	"go.senan.xyz/nddedup/navidrome"
)

// ReviewEntry is one file's verdict in the review document.
type ReviewEntry struct {
	File   string `yaml:"file"`
	Action string `yaml:"action"`
	Reason string `yaml:"reason,omitempty"`
}

const (
	ActionKeep   = "keep"
	ActionDelete = "delete"
)

// BuildReview regroups every evaluated track by the folder it lives in
// and orders folders and files naturally, so the document reads the way
// the library browses. Nothing is acted on here, the document is for a
// human.
func (p *Processor) BuildReview() yaml.MapSlice {
	byFolder := map[string][]*navidrome.Track{}
	for _, key := range p.GroupKeys() {
		for _, tr := range p.Groups[key] {
			dir := filepath.Dir(tr.SourcePath)
			byFolder[dir] = append(byFolder[dir], tr)
		}
	}

	dirs := make([]string, 0, len(byFolder))
	for dir := range byFolder {
		dirs = append(dirs, dir)
	}
	slices.SortFunc(dirs, natcmp.Compare)

	var doc yaml.MapSlice
	for _, dir := range dirs {
		tracks := byFolder[dir]
		slices.SortFunc(tracks, func(a, b *navidrome.Track) int {
			return natcmp.Compare(filepath.Base(a.SourcePath), filepath.Base(b.SourcePath))
		})

		entries := make([]ReviewEntry, 0, len(tracks))
		for _, tr := range tracks {
			e := ReviewEntry{File: filepath.Base(tr.SourcePath), Action: ActionKeep}
			if tr.IsDeletable {
				e.Action = ActionDelete
				e.Reason = tr.DeleteReason
			}
			entries = append(entries, e)
		}
		doc = append(doc, yaml.MapItem{Key: dir, Value: entries})
	}
	return doc
}

// WriteReview renders the review document to path, atomically.
func (p *Processor) WriteReview(path string) error {
	data, err := yaml.Marshal(p.BuildReview())
	if err != nil {
		return fmt.Errorf("marshal review: %w", err)
	}
	return writeFileAtomic(path, data)
}
