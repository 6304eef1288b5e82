package rotation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFrameWindowOnly(t *testing.T) {
	items := testItems(1, 1, 1, 1, 1)
	items[2].MediaURL = "media/a2.mp4"
	items[3].MediaURL = "media/a3.webm"

	f := buildFrame(7, StateCycling, items, 2)
	assert.Equal(t, uint64(7), f.Seq)
	assert.Equal(t, 2, f.Current)
	assert.Equal(t, 5, f.Count)

	// only the window gets slots, in ascending index order
	require.Len(t, f.Slots, 3)
	assert.Equal(t, 1, f.Slots[0].Index)
	assert.Equal(t, 2, f.Slots[1].Index)
	assert.Equal(t, 3, f.Slots[2].Index)

	assert.True(t, f.Slots[1].Current)
	assert.False(t, f.Slots[0].Current)

	// the current video plays, the preloaded neighbor video is held
	// paused
	assert.Equal(t, KindVideo, f.Slots[1].Kind)
	assert.True(t, f.Slots[1].Playing)
	assert.Equal(t, KindVideo, f.Slots[2].Kind)
	assert.False(t, f.Slots[2].Playing)
	assert.Equal(t, KindImage, f.Slots[0].Kind)
	assert.False(t, f.Slots[0].Playing)
}

func TestBuildFrameWrapAround(t *testing.T) {
	f := buildFrame(1, StateCycling, testItems(1, 1, 1, 1, 1), 0)
	require.Len(t, f.Slots, 3)
	assert.Equal(t, 0, f.Slots[0].Index)
	assert.Equal(t, 1, f.Slots[1].Index)
	assert.Equal(t, 4, f.Slots[2].Index)
}

func TestBuildFrameSingleAndEmpty(t *testing.T) {
	f := buildFrame(1, StateSingle, testItems(1), 0)
	require.Len(t, f.Slots, 1)
	assert.True(t, f.Slots[0].Current)

	f = buildFrame(2, StateEmpty, nil, 0)
	assert.Empty(t, f.Slots)
	assert.Equal(t, 0, f.Count)
}

func TestSlotClass(t *testing.T) {
	testData := []struct {
		transition string
		current    bool
		want       string
	}{
		{TransitionFade, true, "t-fade is-current"},
		{TransitionFade, false, "t-fade"},
		{TransitionSlide, true, "t-slide is-current"},
		{TransitionSlide, false, "t-slide"},
		{TransitionNone, true, "t-none is-current"},
		{TransitionNone, false, "t-none"},
	}
	for _, td := range testData {
		assert.Equal(t, td.want, slotClass(td.transition, td.current))
	}
}

func TestBuildFrameUnknownTransitionFallsBackToFade(t *testing.T) {
	items := testItems(1)
	items[0].Transition = "sparkle"
	f := buildFrame(1, StateSingle, items, 0)
	require.Len(t, f.Slots, 1)
	assert.Equal(t, TransitionFade, f.Slots[0].Transition)
	assert.Equal(t, "t-fade is-current", f.Slots[0].Class)
}
