package rotation

// Rotation states reported to the render surface and the status API.
const (
	StateLoading = "loading"
	StateEmpty   = "empty"
	StateSingle  = "single"
	StateCycling = "cycling"
)

// Slot is one materialized media element in the render surface. Only
// indices inside the preload window get a slot; everything else
// renders nothing and holds no media resources.
type Slot struct {
	Index      int    `json:"index"`
	ID         string `json:"id"`
	MediaURL   string `json:"media_url"`
	Kind       string `json:"kind"`
	Transition string `json:"transition"`
	Class      string `json:"class"`
	Current    bool   `json:"current"`
	Playing    bool   `json:"playing"`
}

// Frame is one complete description of what the display should show.
type Frame struct {
	Seq     uint64 `json:"seq"`
	State   string `json:"state"`
	Current int    `json:"current"`
	Count   int    `json:"count"`
	Slots   []Slot `json:"slots,omitempty"`
}

// Surface receives frames as rotation state changes. Render is called
// with the scheduler lock held and must not block; implementations
// hand off to their own delivery mechanism.
type Surface interface {
	Render(Frame)
}

func buildFrame(seq uint64, state string, items []Announcement, current int) Frame {
	f := Frame{
		Seq:     seq,
		State:   state,
		Current: current,
		Count:   len(items),
	}
	window := PreloadWindow(len(items), current)
	for i, item := range items {
		if !window.Contains(i) {
			continue
		}
		isCurrent := i == current
		kind := item.MediaKind()
		f.Slots = append(f.Slots, Slot{
			Index:      i,
			ID:         item.ID,
			MediaURL:   item.MediaURL,
			Kind:       kind,
			Transition: item.transition(),
			Class:      slotClass(item.transition(), isCurrent),
			Current:    isCurrent,
			// a video plays only while current; preloaded neighbors
			// stay decoded but paused
			Playing: isCurrent && kind == KindVideo,
		})
	}
	return f
}

// slotClass maps an item's transition onto the CSS hooks of the
// display page. The current item sits at rest fully visible; the
// preloaded neighbors are hidden according to the transition type.
func slotClass(transition string, current bool) string {
	class := "t-" + transition
	if current {
		class += " is-current"
	}
	return class
}
