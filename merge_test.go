package nddedup_test

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.senan.xyz/nddedup"
	"go.senan.xyz/nddedup/navidrome"
)

func date(s string) *time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func trackWithAnnotation(id string, a *navidrome.Annotation) *navidrome.Track {
	if a != nil {
		a.ItemID = id
		a.Kind = navidrome.KindMediaFile
	}
	return &navidrome.Track{ID: id, Path: "/m/" + id + ".mp3", Annotation: a}
}

func TestMergedAnnotation(t *testing.T) {
	t.Parallel()

	group := []*navidrome.Track{
		trackWithAnnotation("a", &navidrome.Annotation{PlayCount: 10, Rating: 3, PlayDate: date("2025-05-01")}),
		trackWithAnnotation("b", &navidrome.Annotation{PlayCount: 5, Rating: 5, Starred: true, StarredAt: date("2025-03-01"), PlayDate: date("2025-05-07")}),
	}

	c := nddedup.MergedAnnotation(group)
	assert.Equal(t, 10, c.PlayCount)
	assert.Equal(t, 5, c.Rating)
	assert.True(t, c.Starred)
	require.NotNil(t, c.PlayDate)
	assert.Equal(t, *date("2025-05-07"), *c.PlayDate)
	require.NotNil(t, c.StarredAt)
	assert.Equal(t, *date("2025-03-01"), *c.StarredAt)
}

func TestMergedAnnotationOrderIndependent(t *testing.T) {
	t.Parallel()

	group := []*navidrome.Track{
		trackWithAnnotation("a", &navidrome.Annotation{PlayCount: 2, PlayDate: date("2024-01-01")}),
		trackWithAnnotation("b", &navidrome.Annotation{PlayCount: 7, Rating: 1}),
		trackWithAnnotation("c", &navidrome.Annotation{Starred: true, StarredAt: date("2023-06-15")}),
	}
	want := nddedup.MergedAnnotation(group)

	reversed := slices.Clone(group)
	slices.Reverse(reversed)
	assert.Equal(t, want, nddedup.MergedAnnotation(reversed))
}

func TestMergeAnnotations(t *testing.T) {
	t.Parallel()

	group := []*navidrome.Track{
		trackWithAnnotation("a", &navidrome.Annotation{PlayCount: 3}),
		trackWithAnnotation("b", &navidrome.Annotation{Rating: 4}),
		trackWithAnnotation("c", nil),
	}
	nddedup.MergeAnnotations(group)

	for _, tr := range group {
		require.NotNil(t, tr.Annotation)
		assert.Equal(t, tr.ID, tr.Annotation.ItemID)
		assert.Equal(t, 3, tr.Annotation.PlayCount)
		assert.Equal(t, 4, tr.Annotation.Rating)
	}
	assert.NotSame(t, group[0].Annotation, group[1].Annotation)

	// merging already-merged members changes nothing
	before := *group[0].Annotation
	nddedup.MergeAnnotations(group)
	assert.Equal(t, before, *group[0].Annotation)
}

func TestMergeAnnotationsSmallGroup(t *testing.T) {
	t.Parallel()

	tr := trackWithAnnotation("only", &navidrome.Annotation{PlayCount: 9})
	nddedup.MergeAnnotations([]*navidrome.Track{tr})
	assert.Equal(t, 9, tr.Annotation.PlayCount)
}
