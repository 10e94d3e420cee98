package utils

import "math"

func Finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
