package rotation

import mapset "github.com/deckarep/golang-set/v2"

// PreloadWindow returns the indices whose media must be materialized
// in the render surface: every item when the list has at most one
// entry, otherwise the current item and its immediate neighbors. The
// result never exceeds three indices, so list size does not affect
// how many media elements are loaded at once.
func PreloadWindow(n, current int) mapset.Set[int] {
	window := mapset.NewSet[int]()
	if n <= 0 {
		return window
	}
	if n == 1 {
		window.Add(0)
		return window
	}
	window.Add(current)
	window.Add((current + 1) % n)
	window.Add((current - 1 + n) % n)
	return window
}
