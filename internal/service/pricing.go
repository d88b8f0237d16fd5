package service

import (
	"github.com/shopspring/decimal"
)

// Bounds is the effective [min, max] price constraint after folding rules.
// A nil side imposes no constraint.
type Bounds struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Clamp returns the price forced inside the bounds, and whether it moved.
func (b Bounds) Clamp(price float64) (float64, bool) {
	if b.Min != nil && price < *b.Min {
		return *b.Min, true
	}
	if b.Max != nil && price > *b.Max {
		return *b.Max, true
	}
	return price, false
}

// Contains reports whether the price already satisfies the bounds.
func (b Bounds) Contains(price float64) bool {
	_, moved := b.Clamp(price)
	return !moved
}

// roundPrice rounds to cents. All prices the engine emits pass through here so
// comparisons against stored prices are exact.
func roundPrice(price float64) float64 {
	v, _ := decimal.NewFromFloat(price).Round(2).Float64()
	return v
}

func floatPtr(v float64) *float64 {
	return &v
}
