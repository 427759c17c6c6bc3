package nddedup

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.senan.xyz/nddedup/navidrome"
)

// ErrNoState is returned when a phase needs the state of an earlier one
// that hasn't run yet.
var ErrNoState = errors.New("no saved state")

// State is what survives between phases on disk. Tracks reference their
// artist, album and folder by ID or path only; the shared instances live
// in the side tables and are stitched back on load.
type State struct {
	Groups    map[string][]*navidrome.Track `json:"groups"`
	Folders   map[string]*navidrome.Folder  `json:"folders"`
	Albums    map[string]*navidrome.Album   `json:"albums"`
	Artists   map[string]*navidrome.Artist  `json:"artists"`
	Stats     Stats                         `json:"stats"`
	Anomalies []Anomaly                     `json:"anomalies,omitempty"`
}

// SaveState writes the processor's state to path, atomically so a crash
// mid-write never leaves a truncated file behind.
func (p *Processor) SaveState(path string) error {
	st := State{
		Groups:    p.Groups,
		Folders:   p.folders,
		Albums:    map[string]*navidrome.Album{},
		Artists:   map[string]*navidrome.Artist{},
		Stats:     p.Stats,
		Anomalies: p.Anomalies,
	}
	if p.db != nil {
		for id, a := range p.db.Albums() {
			st.Albums[id] = a
		}
	}
	for _, group := range p.Groups {
		for _, tr := range group {
			if tr.Album != nil {
				st.Albums[tr.Album.ID] = tr.Album
			}
			if tr.Artist != nil {
				st.Artists[tr.Artist.ID] = tr.Artist
			}
		}
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	return writeFileAtomic(path, data)
}

// LoadState restores a previous phase's state into the processor,
// rebuilding the shared artist, album and folder instances each track
// points at. Known albums are seeded into the database cache so later
// lookups return the same instances.
func (p *Processor) LoadState(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w at %q", ErrNoState, path)
	}
	if err != nil {
		return fmt.Errorf("read state: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("unmarshal state: %w", err)
	}

	p.Groups = st.Groups
	if p.Groups == nil {
		p.Groups = map[string][]*navidrome.Track{}
	}
	p.folders = st.Folders
	if p.folders == nil {
		p.folders = map[string]*navidrome.Folder{}
	}
	p.Stats = st.Stats
	p.Anomalies = st.Anomalies

	for _, group := range p.Groups {
		for _, tr := range group {
			tr.Artist = st.Artists[tr.ArtistID]
			tr.Album = st.Albums[tr.AlbumID]
			tr.Folder = p.folders[filepath.Dir(tr.SourcePath)]
		}
	}
	if p.db != nil {
		for _, a := range st.Albums {
			p.db.SeedAlbum(a)
		}
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %q: %w", path, err)
	}
	return nil
}
