package dependence

import "math"

// QTWFunc identifies how the query weights of two terms combine into the
// weight of the pair.
type QTWFunc int

const (
	QTWAverage QTWFunc = 1
	QTWProduct QTWFunc = 2
	QTWMin     QTWFunc = 3
	QTWMax     QTWFunc = 4
)

func (f QTWFunc) Valid() bool {
	return f >= QTWAverage && f <= QTWMax
}

func (f QTWFunc) String() string {
	switch f {
	case QTWAverage:
		return "average"
	case QTWProduct:
		return "product"
	case QTWMin:
		return "min"
	case QTWMax:
		return "max"
	default:
		return "unknown"
	}
}

// Combine returns the pair weight for query weights a and b. An unknown
// function yields the neutral weight 1.0.
func Combine(a, b float64, fn QTWFunc) float64 {
	switch fn {
	case QTWAverage:
		return 0.5*a + 0.5*b
	case QTWProduct:
		return a * b
	case QTWMin:
		return math.Min(a, b)
	case QTWMax:
		return math.Max(a, b)
	default:
		return 1.0
	}
}
