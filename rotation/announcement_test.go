package rotation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMediaKind(t *testing.T) {
	testData := []struct {
		mediaURL string
		want     string
	}{
		{"announcements/lunch.mp4", KindVideo},
		{"announcements/tour.webm", KindVideo},
		{"announcements/loop.ogg", KindVideo},
		{"announcements/clip.MOV", KindVideo},
		{"https://cdn.example.com/a/b/promo.mp4?token=abc#t=1", KindVideo},
		{"announcements/poster.jpg", KindImage},
		{"announcements/banner.png", KindImage},
		{"announcements/flyer.webp", KindImage},
		{"announcements/noext", KindImage},
		{"", KindImage},
	}
	for _, td := range testData {
		assert.Equal(t, td.want, Announcement{MediaURL: td.mediaURL}.MediaKind(), td.mediaURL)
	}
}

func ptr(i int) *int { return &i }

func TestNormalize(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	items := []Announcement{
		{ID: "late-no-order", Active: true, CreatedAt: base.Add(3 * time.Hour)},
		{ID: "inactive", Active: false, OrderIndex: ptr(0), CreatedAt: base},
		{ID: "second", Active: true, OrderIndex: ptr(2), CreatedAt: base},
		{ID: "first", Active: true, OrderIndex: ptr(1), CreatedAt: base},
		{ID: "early-no-order", Active: true, CreatedAt: base.Add(time.Hour)},
		{ID: "tie-new", Active: true, OrderIndex: ptr(1), CreatedAt: base.Add(2 * time.Hour)},
	}

	got := Normalize(items)
	require.Len(t, got, 5)

	ids := make([]string, len(got))
	for i, a := range got {
		ids[i] = a.ID
	}
	// order_index ascending, ties newest first, unset order last and
	// newest first among themselves
	assert.Equal(t, []string{"tie-new", "first", "second", "late-no-order", "early-no-order"}, ids)
}

func TestNormalizeEmptyAndAllInactive(t *testing.T) {
	assert.Empty(t, Normalize(nil))
	assert.Empty(t, Normalize([]Announcement{{ID: "a"}, {ID: "b"}}))
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	items := []Announcement{
		{ID: "b", Active: true, OrderIndex: ptr(2)},
		{ID: "a", Active: true, OrderIndex: ptr(1)},
	}
	Normalize(items)
	assert.Equal(t, "b", items[0].ID)
	assert.Equal(t, "a", items[1].ID)
}
