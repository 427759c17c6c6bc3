package navidrome

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

var (
	// ErrNotFound is returned when a looked-up record has no row.
	ErrNotFound = errors.New("not found")

	// ErrUserCount means the database has zero or several user accounts.
	// Annotations are per-user, so processing requires exactly one.
	ErrUserCount = errors.New("need exactly one user account")
)

// DB wraps a Navidrome sqlite database. Artist and album lookups are
// cached for the lifetime of the DB, so every track of one album shares
// the same instance.
type DB struct {
	sql      *sql.DB
	UserID   string
	UserName string

	artists map[string]*Artist
	albums  map[string]*Album
}

func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db := &DB{
		sql:     sqlDB,
		artists: map[string]*Artist{},
		albums:  map[string]*Album{},
	}
	if err := db.initUser(context.Background()); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) Close() error {
	return db.sql.Close()
}

func (db *DB) initUser(ctx context.Context) error {
	rows, err := db.sql.QueryContext(ctx, `SELECT id, user_name FROM user`)
	if err != nil {
		return fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users [][2]string
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return fmt.Errorf("scan user: %w", err)
		}
		users = append(users, [2]string{id, name})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iter users: %w", err)
	}
	if len(users) != 1 {
		return fmt.Errorf("%w, have %d", ErrUserCount, len(users))
	}

	db.UserID, db.UserName = users[0][0], users[0][1]
	return nil
}

// Begin opens the one explicit transaction a phase runs in. Commit at
// phase end bounds transaction overhead over thousands of records.
func (db *DB) Begin(ctx context.Context) (*Tx, error) {
	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &Tx{tx: tx, db: db}, nil
}

// Albums exposes the album cache, shared instances included, so callers
// can persist or rehydrate HasKeepable state.
func (db *DB) Albums() map[string]*Album { return db.albums }

// SeedAlbum places an album into the cache, used when rehydrating a
// previous phase's state instead of hitting the database.
func (db *DB) SeedAlbum(a *Album) { db.albums[a.ID] = a }

type Tx struct {
	tx *sql.Tx
	db *DB
}

func (t *Tx) Commit() error   { return t.tx.Commit() }
func (t *Tx) Rollback() error { return t.tx.Rollback() }

const trackColumns = `id, path, title, year, track_number, duration, bit_rate, artist_id, artist, album_id, album, mbz_recording_id`

func scanTrack(row interface{ Scan(...any) error }) (*Track, error) {
	var tr Track
	var year, trackNumber, duration, bitrate sql.NullInt64
	var artistID, artistName, albumID, albumName, mbz sql.NullString
	err := row.Scan(
		&tr.ID, &tr.Path, &tr.Title, &year, &trackNumber, &duration, &bitrate,
		&artistID, &artistName, &albumID, &albumName, &mbz,
	)
	if err != nil {
		return nil, err
	}
	tr.Year = int(year.Int64)
	tr.TrackNumber = int(trackNumber.Int64)
	tr.Duration = int(duration.Int64)
	tr.Bitrate = int(bitrate.Int64)
	tr.ArtistID, tr.ArtistName = artistID.String, artistName.String
	tr.AlbumID, tr.AlbumName = albumID.String, albumName.String
	tr.MBZRecordingID = mbz.String
	return &tr, nil
}

// TrackByPath fetches one media file by its canonical path. Returns
// ErrNotFound when Navidrome doesn't know the path.
func (t *Tx) TrackByPath(ctx context.Context, path string) (*Track, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+trackColumns+` FROM media_file WHERE path = ?`, path)
	tr, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("track %q: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan track: %w", err)
	}
	return tr, nil
}

// TracksByPaths batch-fetches media files, keyed by canonical path.
// Paths with no row are simply absent from the result.
func (t *Tx) TracksByPaths(ctx context.Context, paths []string) (map[string]*Track, error) {
	if len(paths) == 0 {
		return map[string]*Track{}, nil
	}

	args := make([]any, 0, len(paths))
	for _, p := range paths {
		args = append(args, p)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(paths)), ", ")

	rows, err := t.tx.QueryContext(ctx, `SELECT `+trackColumns+` FROM media_file WHERE path IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query tracks: %w", err)
	}
	defer rows.Close()

	res := map[string]*Track{}
	for rows.Next() {
		tr, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		res[tr.Path] = tr
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iter tracks: %w", err)
	}
	return res, nil
}

func (t *Tx) ArtistByID(ctx context.Context, id string) (*Artist, error) {
	if id == "" {
		return nil, fmt.Errorf("artist: %w", ErrNotFound)
	}
	if a, ok := t.db.artists[id]; ok {
		return a, nil
	}

	row := t.tx.QueryRowContext(ctx, `SELECT name, album_count FROM artist WHERE id = ?`, id)

	var a Artist
	var albumCount sql.NullInt64
	switch err := row.Scan(&a.Name, &albumCount); {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("artist %q: %w", id, ErrNotFound)
	case err != nil:
		return nil, fmt.Errorf("scan artist: %w", err)
	}
	a.ID = id
	a.AlbumCount = int(albumCount.Int64)

	annotation, err := t.AnnotationFor(ctx, id, KindArtist)
	if err != nil {
		return nil, err
	}
	a.Annotation = annotation

	t.db.artists[id] = &a
	return &a, nil
}

func (t *Tx) AlbumByID(ctx context.Context, id string) (*Album, error) {
	if id == "" {
		return nil, fmt.Errorf("album: %w", ErrNotFound)
	}
	if a, ok := t.db.albums[id]; ok {
		return a, nil
	}

	row := t.tx.QueryRowContext(ctx, `SELECT name, artist_id, song_count, mbz_album_id FROM album WHERE id = ?`, id)

	var a Album
	var songCount sql.NullInt64
	var artistID, mbz sql.NullString
	switch err := row.Scan(&a.Name, &artistID, &songCount, &mbz); {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("album %q: %w", id, ErrNotFound)
	case err != nil:
		return nil, fmt.Errorf("scan album: %w", err)
	}
	a.ID = id
	a.ArtistID = artistID.String
	a.SongCount = int(songCount.Int64)
	a.MBZAlbumID = mbz.String

	annotation, err := t.AnnotationFor(ctx, id, KindAlbum)
	if err != nil {
		return nil, err
	}
	a.Annotation = annotation

	t.db.albums[id] = &a
	return &a, nil
}

// AnnotationFor returns the user's annotation for an item, or a fresh
// zero-value one when the store has none.
func (t *Tx) AnnotationFor(ctx context.Context, itemID string, kind AnnotationKind) (*Annotation, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT play_count, play_date, rating, starred, starred_at FROM annotation WHERE user_id = ? AND item_id = ? AND item_type = ?`,
		t.db.UserID, itemID, string(kind),
	)

	a := Annotation{ItemID: itemID, Kind: kind}
	var playCount, rating sql.NullInt64
	var starred sql.NullBool
	var playDate, starredAt sql.NullString
	switch err := row.Scan(&playCount, &playDate, &rating, &starred, &starredAt); {
	case errors.Is(err, sql.ErrNoRows):
		return FreshAnnotation(itemID, kind), nil
	case err != nil:
		return nil, fmt.Errorf("scan annotation: %w", err)
	}
	a.PlayCount = int(playCount.Int64)
	a.Rating = int(rating.Int64)
	a.Starred = starred.Bool
	a.PlayDate = parseTime(playDate)
	a.StarredAt = parseTime(starredAt)
	return &a, nil
}

func (t *Tx) StoreAnnotation(ctx context.Context, a *Annotation) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO annotation (user_id, item_id, item_type, play_count, play_date, rating, starred, starred_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.db.UserID, a.ItemID, string(a.Kind), a.PlayCount, formatTime(a.PlayDate), a.Rating, a.Starred, formatTime(a.StarredAt),
	)
	if err != nil {
		return fmt.Errorf("store annotation %q: %w", a.ItemID, err)
	}
	return nil
}

// ResolveTrack fills in a track's annotation and, where the records
// exist, its artist and album. A missing artist or album is not an
// error here, callers decide what that means.
func (t *Tx) ResolveTrack(ctx context.Context, tr *Track) error {
	annotation, err := t.AnnotationFor(ctx, tr.ID, KindMediaFile)
	if err != nil {
		return err
	}
	tr.Annotation = annotation

	switch artist, err := t.ArtistByID(ctx, tr.ArtistID); {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return err
	default:
		tr.Artist = artist
	}

	switch album, err := t.AlbumByID(ctx, tr.AlbumID); {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return err
	default:
		tr.Album = album
	}
	return nil
}

// Navidrome writes timestamps in a couple of layouts depending on
// version, so parse leniently.
func parseTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := dateparse.ParseAny(s.String)
	if err != nil {
		return nil
	}
	return &t
}

// Never-set timestamps are stored as NULL, matching what Navidrome
// itself writes for never-played rows.
func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.DateTime)
}
