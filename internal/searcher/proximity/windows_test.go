package proximity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNumWindows(t *testing.T) {
	assert.Equal(t, 9, NumWindows(2, 10))
	assert.Equal(t, 1, NumWindows(5, 3))
	assert.Equal(t, 1, NumWindows(2, 2))
	assert.Equal(t, 10, NumWindows(0, 10))
}

func TestWindowCounts(t *testing.T) {
	tests := []struct {
		name          string
		x, y          []int
		window, len   int
		wantOrdered   int
		wantUnordered int
	}{
		{"adjacent pair", []int{0}, []int{1}, 2, 2, 1, 1},
		{"reversed pair", []int{1}, []int{0}, 2, 2, 0, 1},
		{"two bigrams", []int{0, 5}, []int{1, 6}, 2, 10, 2, 2},
		{"wider window", []int{2}, []int{3}, 3, 10, 2, 2},
		{"short document", []int{0}, []int{2}, 5, 3, 1, 1},
		{"y on both sides", []int{3}, []int{1, 4}, 4, 8, 3, 4},
		{"too far apart", []int{0}, []int{7}, 3, 10, 0, 0},
		{"empty x", nil, []int{1}, 2, 4, 0, 0},
		{"empty y", []int{1}, []int{}, 2, 4, 0, 0},
	}
	var w Windows
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantOrdered, w.Ordered(tt.x, tt.y, tt.window, tt.len), "ordered")
			assert.Equal(t, tt.wantUnordered, w.Unordered(tt.x, tt.y, tt.window, tt.len), "unordered")
		})
	}
}

func TestUnorderedIsSymmetric(t *testing.T) {
	var w Windows
	x := []int{1, 4, 9, 15}
	y := []int{2, 8, 16, 20}
	for window := 1; window <= 6; window++ {
		assert.Equal(t, w.Unordered(x, y, window, 25), w.Unordered(y, x, window, 25), "window %d", window)
	}
}

func TestOrderedNeverExceedsUnordered(t *testing.T) {
	var w Windows
	x := []int{0, 3, 7, 12, 13}
	y := []int{1, 2, 8, 11, 14}
	for window := 1; window <= 8; window++ {
		o := w.Ordered(x, y, window, 20)
		u := w.Unordered(x, y, window, 20)
		assert.LessOrEqual(t, o, u, "window %d", window)
	}
}
