package utils

import (
	"math"

	"golang.org/x/exp/rand"
)

func FindIndex[T comparable](slice []T, item T) int {
	for i, v := range slice {
		if v == item {
			return i
		}
	}
	return -1
}

// RandMax returns one of the items with the greatest key, chosen uniformly at
// random among ties. Items keyed NaN never win.
func RandMax[T any](items []T, key func(T) float64, rng *rand.Rand) T {
	if len(items) == 0 {
		panic("cannot pick a maximum from no items")
	}

	maxValue := math.Inf(-1)
	maxItems := make([]T, 0, 1)
	for _, item := range items {
		value := key(item)
		if value == maxValue {
			maxItems = append(maxItems, item)
		} else if value > maxValue {
			maxItems = append(maxItems[:0], item)
			maxValue = value
		}
	}

	if len(maxItems) == 0 {
		panic("cannot pick a maximum: every key is NaN")
	}
	return maxItems[rng.Intn(len(maxItems))]
}
