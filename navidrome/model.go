// Package navidrome reads and writes the subset of a Navidrome database
// that duplicate processing cares about: media files, their artists and
// albums, and per-user annotations (play counts, ratings, stars).
package navidrome

import (
	"fmt"
	"time"

	"go.senan.xyz/nddedup/fileutil"
)

// AnnotationKind selects which table an annotation's ItemID refers to.
// Values match Navidrome's item_type column.
type AnnotationKind string

const (
	KindMediaFile AnnotationKind = "media_file"
	KindArtist    AnnotationKind = "artist"
	KindAlbum     AnnotationKind = "album"
)

// Annotation is one row of Navidrome's annotation table. Every Track
// resolved by this tool has exactly one, zero-valued when the database
// has none.
type Annotation struct {
	ItemID    string         `json:"item_id"`
	Kind      AnnotationKind `json:"kind"`
	PlayCount int            `json:"play_count"`
	PlayDate  *time.Time     `json:"play_date,omitempty"`
	Rating    int            `json:"rating"`
	Starred   bool           `json:"starred"`
	StarredAt *time.Time     `json:"starred_at,omitempty"`
}

func (a *Annotation) String() string {
	return fmt.Sprintf("Annotation(item=%s plays=%d rating=%d starred=%t)", a.ItemID, a.PlayCount, a.Rating, a.Starred)
}

type Artist struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	AlbumCount int         `json:"album_count"`
	Annotation *Annotation `json:"annotation,omitempty"`
}

type Album struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	ArtistID   string      `json:"artist_id"`
	SongCount  int         `json:"song_count"`
	MBZAlbumID string      `json:"mbz_album_id,omitempty"`
	Annotation *Annotation `json:"annotation,omitempty"`

	// HasKeepable is set once any track of this album has been chosen
	// as a keeper during the current run.
	HasKeepable bool `json:"has_keepable"`
}

// Folder groups tracks by the directory their source path lives in. One
// Folder instance is shared by every track in that directory for the
// duration of a run.
type Folder struct {
	SourcePath  string              `json:"source_path"`
	Kind        fileutil.FolderKind `json:"kind"`
	HasKeepable bool                `json:"has_keepable"`

	// IsDirty marks a folder whose artist or album name is unknown, or
	// which mixes several albums (a dump or manual compilation).
	IsDirty bool `json:"is_dirty"`

	TotalTracks   *int `json:"total_tracks,omitempty"`
	MissingTracks *int `json:"missing_tracks,omitempty"`
}

// Track is one media_file row plus everything resolved around it. Path
// is the canonical location known to Navidrome, SourcePath the location
// the tagging tool referenced it by.
type Track struct {
	ID          string `json:"id"`
	Path        string `json:"path"`
	SourcePath  string `json:"source_path"`
	Title       string `json:"title"`
	Year        int    `json:"year,omitempty"`
	TrackNumber int    `json:"track_number,omitempty"`
	Duration    int    `json:"duration"` // seconds
	Bitrate     int    `json:"bitrate"`  // kbps

	ArtistID   string `json:"artist_id,omitempty"`
	ArtistName string `json:"artist_name,omitempty"`
	AlbumID    string `json:"album_id,omitempty"`
	AlbumName  string `json:"album_name,omitempty"`

	MBZRecordingID string `json:"mbz_recording_id,omitempty"`

	Annotation *Annotation `json:"annotation,omitempty"`

	// Resolved lazily against the store and the folder cache. Shared
	// instances, rebuilt from the state tables when reloading.
	Artist *Artist `json:"-"`
	Album  *Album  `json:"-"`
	Folder *Folder `json:"-"`

	// Assigned by keeper resolution.
	IsDeletable  bool   `json:"is_deletable"`
	DeleteReason string `json:"delete_reason,omitempty"`
}

func (t *Track) String() string {
	return fmt.Sprintf("Track(id=%s path=%s title=%q bitrate=%d)", t.ID, t.Path, t.Title, t.Bitrate)
}

// FreshAnnotation returns a zero-value annotation for the given item,
// used when the store has no row.
func FreshAnnotation(itemID string, kind AnnotationKind) *Annotation {
	return &Annotation{ItemID: itemID, Kind: kind}
}
