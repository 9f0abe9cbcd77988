// Package proximity counts how often two terms co-occur inside fixed-size
// token windows of a document.
//
// A document of length L has L-w+1 windows of w consecutive token slots,
// starting at offsets 0..L-w. A document shorter than the window is treated as
// a single window. Positions are 0-based token offsets in ascending order.
package proximity

// Windows counts co-occurrence windows. The zero value is ready to use.
type Windows struct{}

// NumWindows returns how many windows of the given length fit in a document.
func NumWindows(windowLength, docLength int) int {
	if windowLength < 1 {
		windowLength = 1
	}
	if docLength < windowLength {
		return 1
	}
	return docLength - windowLength + 1
}

// Unordered returns the number of windows holding at least one occurrence of
// each term, in either order.
func (Windows) Unordered(x, y []int, windowLength, docLength int) int {
	if len(x) == 0 || len(y) == 0 {
		return 0
	}
	if windowLength < 1 {
		windowLength = 1
	}
	n := NumWindows(windowLength, docLength)
	count := 0
	xi, yi := 0, 0
	for start := 0; start < n; start++ {
		end := start + windowLength - 1
		for xi < len(x) && x[xi] < start {
			xi++
		}
		for yi < len(y) && y[yi] < start {
			yi++
		}
		if xi == len(x) || yi == len(y) {
			break
		}
		if x[xi] <= end && y[yi] <= end {
			count++
		}
	}
	return count
}

// Ordered returns the number of windows in which an occurrence of x is
// followed, later in the same window, by an occurrence of y.
func (Windows) Ordered(x, y []int, windowLength, docLength int) int {
	if len(x) == 0 || len(y) == 0 {
		return 0
	}
	if windowLength < 1 {
		windowLength = 1
	}
	n := NumWindows(windowLength, docLength)
	count := 0
	xi, yi := 0, 0
	for start := 0; start < n; start++ {
		end := start + windowLength - 1
		for xi < len(x) && x[xi] < start {
			xi++
		}
		if xi == len(x) {
			break
		}
		// the earliest x in the window leaves the most room for a y after it
		first := x[xi]
		if first > end {
			continue
		}
		for yi < len(y) && y[yi] <= first {
			yi++
		}
		if yi == len(y) {
			break
		}
		if y[yi] <= end {
			count++
		}
	}
	return count
}
