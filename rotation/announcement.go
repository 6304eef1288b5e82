// Package rotation drives the announcement slideshow: which item is on
// screen, when to advance to the next one, and which media assets must
// be materialized ahead of time.
package rotation

import (
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

// Media kinds derived from the asset extension.
const (
	KindImage = "image"
	KindVideo = "video"
)

// Transition values understood by the render surface.
const (
	TransitionFade  = "fade"
	TransitionSlide = "slide"
	TransitionNone  = "none"
)

var videoExt = mapset.NewSet(
	".mp4", ".webm", ".ogg", ".mov",
)

// Announcement is one slide unit fetched from the remote data gateway.
type Announcement struct {
	ID              string    `json:"id"`
	MediaURL        string    `json:"media_url"`
	DisplayDuration int       `json:"display_duration"`
	Transition      string    `json:"transition_type"`
	Active          bool      `json:"active"`
	OrderIndex      *int      `json:"order_index,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// MediaKind classifies the announcement by the extension of its media
// locator. Query strings and fragments are ignored.
func (a Announcement) MediaKind() string {
	name := a.MediaURL
	if u, err := url.Parse(a.MediaURL); err == nil && u.Path != "" {
		name = u.Path
	}
	if videoExt.Contains(strings.ToLower(path.Ext(name))) {
		return KindVideo
	}
	return KindImage
}

func (a Announcement) transition() string {
	switch a.Transition {
	case TransitionFade, TransitionSlide, TransitionNone:
		return a.Transition
	default:
		return TransitionFade
	}
}

// Normalize filters and orders a fetched list for rotation: active
// items only, order_index ascending with unset values last, ties
// broken by created_at descending.
func Normalize(items []Announcement) []Announcement {
	out := make([]Announcement, 0, len(items))
	for _, a := range items {
		if a.Active {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		oi, oj := out[i].OrderIndex, out[j].OrderIndex
		switch {
		case oi != nil && oj != nil && *oi != *oj:
			return *oi < *oj
		case oi == nil && oj != nil:
			return false
		case oi != nil && oj == nil:
			return true
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
