package nddedup_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.senan.xyz/nddedup"
	"go.senan.xyz/nddedup/beets"
	"go.senan.xyz/nddedup/navidrome"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

func seedStore(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "navidrome.db")
	db, err := sql.Open("sqlite3", "file:"+path)
	require.NoError(t, err)
	defer db.Close()

	for _, stmt := range []string{
		`CREATE TABLE user (id TEXT PRIMARY KEY, user_name TEXT)`,
		`CREATE TABLE media_file (id TEXT PRIMARY KEY, path TEXT, title TEXT, year INT, track_number INT, duration INT, bit_rate INT, artist_id TEXT, artist TEXT, album_id TEXT, album TEXT, mbz_recording_id TEXT)`,
		`CREATE TABLE artist (id TEXT PRIMARY KEY, name TEXT, album_count INT)`,
		`CREATE TABLE album (id TEXT PRIMARY KEY, name TEXT, artist_id TEXT, song_count INT, mbz_album_id TEXT)`,
		`CREATE TABLE annotation (user_id TEXT, item_id TEXT, item_type TEXT, play_count INT, play_date TEXT, rating INT, starred BOOL, starred_at TEXT, PRIMARY KEY (user_id, item_id, item_type))`,

		`INSERT INTO user (id, user_name) VALUES ('u1', 'alice')`,
		`INSERT INTO artist (id, name, album_count) VALUES ('ar1', 'Oasis', 2)`,
		`INSERT INTO album (id, name, artist_id, song_count, mbz_album_id) VALUES ('al1', 'Morning Glory', 'ar1', 12, 'mbz-album-1')`,
		`INSERT INTO media_file (id, path, title, year, track_number, duration, bit_rate, artist_id, artist, album_id, album, mbz_recording_id)
			VALUES ('t1', '/music/Oasis/Morning Glory/03 Wonderwall.mp3', 'Wonderwall', 1995, 3, 258, 320, 'ar1', 'Oasis', 'al1', 'Morning Glory', 'mbz-rec-1')`,
		`INSERT INTO media_file (id, path, title, year, track_number, duration, bit_rate, artist_id, artist, album_id, album, mbz_recording_id)
			VALUES ('t2', '/music/incoming/Wonderwall.mp3', 'Wonderwall', 0, 0, 258, 128, NULL, NULL, NULL, NULL, NULL)`,
		`INSERT INTO annotation (user_id, item_id, item_type, play_count, play_date, rating, starred, starred_at)
			VALUES ('u1', 't1', 'media_file', 7, '2023-01-01 10:00:00', 4, 0, '')`,
		`INSERT INTO annotation (user_id, item_id, item_type, play_count, play_date, rating, starred, starred_at)
			VALUES ('u1', 't2', 'media_file', 12, '2024-03-02 08:00:00', 0, 1, '2024-03-02 08:00:00')`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return path
}

var testDups = beets.Duplicates{
	"wonderwall": {
		"/export/Oasis/Morning Glory/03 Wonderwall.mp3",
		"/export/incoming/Wonderwall.mp3",
		"/export/nowhere.mp3",
	},
}

func TestPipeline(t *testing.T) {
	ctx := context.Background()

	db, err := navidrome.Open(seedStore(t))
	require.NoError(t, err)
	defer db.Close()

	cfg := nddedup.Config{SourceBase: "/export", TargetBase: "/music"}
	p := nddedup.NewProcessor(cfg, db, nil)

	require.NoError(t, p.Load(ctx, testDups))

	require.Len(t, p.Groups["wonderwall"], 2)
	assert.Equal(t, 1, p.Stats.DuplicateGroups)
	assert.Equal(t, 3, p.Stats.DuplicateFiles)
	assert.Equal(t, 2, p.Stats.ResolvedMedia)

	// the path navidrome doesn't know became an anomaly, not an error
	require.Len(t, p.Anomalies, 1)
	assert.Equal(t, nddedup.AnomalyNotFound, p.Anomalies[0].Kind)

	tagged, bare := p.Groups["wonderwall"][0], p.Groups["wonderwall"][1]
	assert.Equal(t, "/export/Oasis/Morning Glory/03 Wonderwall.mp3", tagged.SourcePath)
	assert.Equal(t, "/music/Oasis/Morning Glory/03 Wonderwall.mp3", tagged.Path)
	require.NotNil(t, tagged.Folder)
	assert.False(t, tagged.Folder.IsDirty)
	require.NotNil(t, bare.Folder)
	assert.True(t, bare.Folder.IsDirty) // no artist or album name

	require.NoError(t, p.Merge(ctx))
	assert.Equal(t, 2, p.Stats.Annotations)

	// consensus reached the store for both members
	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()
	for _, id := range []string{"t1", "t2"} {
		a, err := tx.AnnotationFor(ctx, id, navidrome.KindMediaFile)
		require.NoError(t, err)
		assert.Equal(t, 12, a.PlayCount, id)
		assert.Equal(t, 4, a.Rating, id)
		assert.True(t, a.Starred, id)
	}

	require.NoError(t, p.Evaluate(ctx))

	assert.False(t, tagged.IsDeletable)
	assert.True(t, bare.IsDeletable)
	assert.Contains(t, bare.DeleteReason, "genuine album folder")
	assert.Equal(t, 1, p.Stats.Keepable)
	assert.Equal(t, 1, p.Stats.Deletable)
	require.NotNil(t, tagged.Album)
	assert.True(t, tagged.Album.HasKeepable)

	// state written from a live run rehydrates with the album cache intact
	statePath := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, p.SaveState(statePath))

	q := nddedup.NewProcessor(cfg, db, nil)
	require.NoError(t, q.LoadState(statePath))
	require.Len(t, q.Groups["wonderwall"], 2)
	require.NotNil(t, q.Groups["wonderwall"][0].Album)
	assert.True(t, q.Groups["wonderwall"][0].Album.HasKeepable)
}

func TestPhaseStatsRerun(t *testing.T) {
	ctx := context.Background()

	db, err := navidrome.Open(seedStore(t))
	require.NoError(t, err)
	defer db.Close()

	cfg := nddedup.Config{SourceBase: "/export", TargetBase: "/music"}
	p := nddedup.NewProcessor(cfg, db, nil)
	require.NoError(t, p.Load(ctx, testDups))

	// re-running a phase reports the same counts, not double
	require.NoError(t, p.Merge(ctx))
	require.NoError(t, p.Merge(ctx))
	assert.Equal(t, 2, p.Stats.Annotations)

	require.NoError(t, p.Evaluate(ctx))
	require.NoError(t, p.Evaluate(ctx))
	assert.Equal(t, 1, p.Stats.Keepable)
	assert.Equal(t, 1, p.Stats.Deletable)
}

func TestMergeDryRun(t *testing.T) {
	ctx := context.Background()

	db, err := navidrome.Open(seedStore(t))
	require.NoError(t, err)
	defer db.Close()

	cfg := nddedup.Config{SourceBase: "/export", TargetBase: "/music", DryRun: true}
	p := nddedup.NewProcessor(cfg, db, nil)

	require.NoError(t, p.Load(ctx, testDups))
	require.NoError(t, p.Merge(ctx))

	// in memory the group is merged, the store is untouched
	assert.Equal(t, 12, p.Groups["wonderwall"][0].Annotation.PlayCount)

	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()
	a, err := tx.AnnotationFor(ctx, "t1", navidrome.KindMediaFile)
	require.NoError(t, err)
	assert.Equal(t, 7, a.PlayCount)
}

type stubChecker struct {
	infos map[string][]beets.AlbumInfo
}

func (s *stubChecker) AlbumInfos(_ context.Context, dir string) ([]beets.AlbumInfo, error) {
	return s.infos[dir], nil
}

func TestLoadCompleteness(t *testing.T) {
	ctx := context.Background()

	db, err := navidrome.Open(seedStore(t))
	require.NoError(t, err)
	defer db.Close()

	checker := &stubChecker{infos: map[string][]beets.AlbumInfo{
		"/export/Oasis/Morning Glory": {{Album: "Morning Glory", Total: 12, Missing: 2}},
		"/export/incoming": {
			{Album: "Morning Glory", Total: 12, Missing: 11},
			{Album: "Be Here Now", Total: 12, Missing: 10},
		},
	}}

	cfg := nddedup.Config{SourceBase: "/export", TargetBase: "/music"}
	p := nddedup.NewProcessor(cfg, db, checker)
	require.NoError(t, p.Load(ctx, testDups))

	tagged, bare := p.Groups["wonderwall"][0], p.Groups["wonderwall"][1]
	require.NotNil(t, tagged.Folder.MissingTracks)
	assert.Equal(t, 2, *tagged.Folder.MissingTracks)

	// several albums in one directory marks the folder dirty
	assert.True(t, bare.Folder.IsDirty)
	assert.Nil(t, bare.Folder.MissingTracks)
}
