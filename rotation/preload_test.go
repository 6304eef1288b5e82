package rotation

import (
	"fmt"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
)

func TestPreloadWindow(t *testing.T) {
	testData := []struct {
		n       int
		current int
		want    []int
	}{
		{0, 0, nil},
		{1, 0, []int{0}},
		{2, 0, []int{0, 1}},
		{2, 1, []int{0, 1}},
		{3, 0, []int{0, 1, 2}},
		{5, 0, []int{4, 0, 1}},
		{5, 2, []int{1, 2, 3}},
		{5, 4, []int{3, 4, 0}},
		{12, 7, []int{6, 7, 8}},
	}
	for _, td := range testData {
		t.Run(fmt.Sprintf("n=%d_current=%d", td.n, td.current), func(t *testing.T) {
			got := PreloadWindow(td.n, td.current)
			assert.True(t, got.Equal(mapset.NewSet(td.want...)), "got %v want %v", got, td.want)
		})
	}
}

func TestPreloadWindowBounded(t *testing.T) {
	// never more than three materialized indices, whatever the list
	// size or position
	for n := 0; n <= 20; n++ {
		for current := 0; current < n; current++ {
			window := PreloadWindow(n, current)
			assert.LessOrEqual(t, window.Cardinality(), 3)
			if n >= 1 {
				assert.True(t, window.Contains(current))
			}
			if n >= 2 {
				assert.True(t, window.Contains((current+1)%n))
				assert.True(t, window.Contains((current-1+n)%n))
			}
		}
	}
}
