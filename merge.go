package nddedup

import (
	"time"

	"go.senan.xyz/nddedup/navidrome"
)

// Consensus is the merged play state of a duplicate group: duplicates
// are the same logical recording, so the group keeps the best of
// everything rather than summing.
type Consensus struct {
	PlayCount int
	PlayDate  *time.Time
	Rating    int
	Starred   bool
	StarredAt *time.Time
}

// MergedAnnotation folds a group's annotations into one consensus. The
// fold is max/latest/any only, so it is order-independent and running it
// again over already-merged members changes nothing.
func MergedAnnotation(group []*navidrome.Track) Consensus {
	var c Consensus
	for _, tr := range group {
		a := tr.Annotation
		if a == nil {
			continue
		}
		c.PlayCount = max(c.PlayCount, a.PlayCount)
		c.Rating = max(c.Rating, a.Rating)
		c.Starred = c.Starred || a.Starred
		c.PlayDate = latest(c.PlayDate, a.PlayDate)
		c.StarredAt = latest(c.StarredAt, a.StarredAt)
	}
	return c
}

// MergeAnnotations computes the group consensus and assigns it to every
// member's annotation in place. Each track keeps its own Annotation
// instance, only the values are synchronized. Groups smaller than two
// have nothing to merge and are left untouched.
func MergeAnnotations(group []*navidrome.Track) {
	if len(group) < 2 {
		return
	}

	c := MergedAnnotation(group)
	for _, tr := range group {
		if tr.Annotation == nil {
			tr.Annotation = navidrome.FreshAnnotation(tr.ID, navidrome.KindMediaFile)
		}
		tr.Annotation.PlayCount = c.PlayCount
		tr.Annotation.PlayDate = copyTime(c.PlayDate)
		tr.Annotation.Rating = c.Rating
		tr.Annotation.Starred = c.Starred
		tr.Annotation.StarredAt = copyTime(c.StarredAt)
	}
}

func latest(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.After(*a):
		return b
	}
	return a
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
